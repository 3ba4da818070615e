package connector

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"volumedeck/internal/domain"
)

func paradexCred() *domain.Credential {
	return &domain.Credential{
		Platform:        domain.PlatformParadex,
		StarkAccount:    "0x49dfb8ce986e21d354ac93ea65e6a11f639c1934ea253e5ff14ca62eca0f38e",
		StarkPrivateKey: "0x3c1e9550e66958296d11b60f8e8e7a7ad990d07fa65d5f7652c4a6c87d4e3cc",
	}
}

func paradexTransport(t *testing.T, authCalls *int, day time.Time) roundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		switch {
		case req.Method == http.MethodPost && req.URL.Path == "/v1/auth":
			*authCalls++
			if req.Header.Get("PARADEX-STARKNET-ACCOUNT") == "" {
				t.Fatal("missing account header")
			}
			sig := req.Header.Get("PARADEX-STARKNET-SIGNATURE")
			if !strings.HasPrefix(sig, `["`) || !strings.HasSuffix(sig, `"]`) {
				t.Fatalf("signature not flattened: %q", sig)
			}
			if req.Header.Get("PARADEX-TIMESTAMP") == "" || req.Header.Get("PARADEX-SIGNATURE-EXPIRATION") == "" {
				t.Fatal("missing timestamp headers")
			}
			return jsonResponse(t, http.StatusOK, map[string]string{"jwt_token": "tok"}), nil

		case req.Method == http.MethodGet && req.URL.Path == "/v1/account/list-fills":
			if got := req.Header.Get("Authorization"); got != "Bearer tok" {
				t.Fatalf("unexpected authorization header %q", got)
			}
			switch req.URL.Query().Get("cursor") {
			case "":
				return jsonResponse(t, http.StatusOK, map[string]interface{}{
					"results": []map[string]interface{}{
						{"id": "f1", "market": "BTC-USD-PERP", "price": "60000", "size": "0.01", "created_at": day.Add(2 * time.Hour).UnixMilli()},
					},
					"next": "page2",
				}), nil
			case "page2":
				return jsonResponse(t, http.StatusOK, map[string]interface{}{
					"results": []map[string]interface{}{
						{"id": "f2", "market": "BTC-USD-PERP", "price": "61000", "size": "0.02", "created_at": day.Add(5 * time.Hour).UnixMilli()},
					},
					"next": "",
				}), nil
			default:
				t.Fatalf("unexpected cursor %q", req.URL.Query().Get("cursor"))
				return nil, nil
			}

		default:
			t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
			return nil, nil
		}
	}
}

func TestParadexFetchHistoricalDaily(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	authCalls := 0

	c := NewParadex(testTracer, "PRIVATE_SN_PARACLEAR_MAINNET")
	c.baseURL = "http://example"
	c.now = func() time.Time { return day1.Add(48 * time.Hour) }
	c.client = &http.Client{Transport: paradexTransport(t, &authCalls, day1)}

	records, err := c.FetchHistoricalDaily(context.Background(), "BTC-USD-PERP", day1, day1.Add(24*time.Hour), paradexCred())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Open != 60000 || rec.Close != 61000 || rec.VolumeUSD != 1820 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if authCalls != 1 {
		t.Fatalf("expected one auth call, got %d", authCalls)
	}

	// Second fetch must reuse the cached token.
	if _, err := c.FetchHistoricalDaily(context.Background(), "BTC-USD-PERP", day1, day1.Add(24*time.Hour), paradexCred()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if authCalls != 1 {
		t.Fatalf("token must be reused until expiry, auth called %d times", authCalls)
	}
}

func TestParadexFetchHistoricalDailyRequiresCredential(t *testing.T) {
	t.Parallel()

	c := NewParadex(testTracer, "PRIVATE_SN_PARACLEAR_MAINNET")
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.FetchHistoricalDaily(context.Background(), "BTC-USD-PERP", start, start.Add(24*time.Hour), nil); err != ErrAuthRequired {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestParadexFetchLatest24hWithoutCredential(t *testing.T) {
	t.Parallel()

	c := NewParadex(testTracer, "PRIVATE_SN_PARACLEAR_MAINNET")
	info := c.FetchLatest24h(context.Background(), nil)
	if info.Err == "" {
		t.Fatal("expected error annotation without credentials")
	}
	if info.Volume24hUSD != 0 {
		t.Fatalf("expected zero volume, got %f", info.Volume24hUSD)
	}
}
