package connector

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"volumedeck/internal/domain"
)

func TestBybitFetchHistoricalDaily(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	c := NewBybit(testTracer)
	c.baseURL = "http://example"
	c.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/v5/market/kline" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			q := req.URL.Query()
			if q.Get("category") != "linear" || q.Get("interval") != "D" {
				t.Fatalf("unexpected query: %v", q)
			}
			// Newest-first, as the live endpoint returns them.
			return jsonResponse(t, http.StatusOK, map[string]interface{}{
				"retCode": 0,
				"retMsg":  "OK",
				"result": map[string]interface{}{
					"list": [][]string{
						{strconv.FormatInt(day2.UnixMilli(), 10), "61000", "62000", "60500", "61500", "10", "615000"},
						{strconv.FormatInt(day1.UnixMilli(), 10), "60000", "61000", "59000", "61000", "12", "720000"},
					},
				},
			}), nil
		}),
	}

	records, err := c.FetchHistoricalDaily(context.Background(), "BTCUSDT", day1, day2.Add(time.Hour), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if !records[0].Day.Equal(day1) || !records[1].Day.Equal(day2) {
		t.Fatalf("records must be day-sorted: %+v", records)
	}
	if records[0].VolumeUSD != 720000 {
		t.Fatalf("volume must come from turnover, got %f", records[0].VolumeUSD)
	}
	if records[0].QuoteAsset != "USDT" {
		t.Fatalf("unexpected quote asset %q", records[0].QuoteAsset)
	}
}

func TestBybitFetchHistoricalDailyAPIError(t *testing.T) {
	t.Parallel()

	c := NewBybit(testTracer)
	c.baseURL = "http://example"
	c.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(t, http.StatusOK, map[string]interface{}{
				"retCode": 10001,
				"retMsg":  "params error",
			}), nil
		}),
	}

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.FetchHistoricalDaily(context.Background(), "NOPEUSDT", start, start.Add(24*time.Hour), nil)
	if err == nil {
		t.Fatal("expected error for non-zero retCode")
	}
}

func TestBybitFetchLatest24h(t *testing.T) {
	t.Parallel()

	c := NewBybit(testTracer)
	c.baseURL = "http://example"
	c.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/v5/market/tickers" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			return jsonResponse(t, http.StatusOK, map[string]interface{}{
				"retCode": 0,
				"result": map[string]interface{}{
					"list": []map[string]string{
						{"symbol": "BTCUSDT", "turnover24h": "1000"},
						{"symbol": "ETHUSDC", "turnover24h": "500"},
						{"symbol": "BTCUSD", "turnover24h": "9999"},
					},
				},
			}), nil
		}),
	}

	info := c.FetchLatest24h(context.Background(), nil)
	if info.Err != "" {
		t.Fatalf("unexpected error: %s", info.Err)
	}
	if info.Volume24hUSD != 1500 {
		t.Fatalf("expected stable-quoted turnover sum 1500, got %f", info.Volume24hUSD)
	}
	if info.Platform != domain.PlatformBybit {
		t.Fatalf("unexpected platform %q", info.Platform)
	}
}

func TestBybitFetchLatest24hHTTPError(t *testing.T) {
	t.Parallel()

	c := NewBybit(testTracer)
	c.baseURL = "http://example"
	c.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(t, http.StatusBadGateway, map[string]string{"error": "bad gateway"}), nil
		}),
	}

	info := c.FetchLatest24h(context.Background(), nil)
	if info.Err == "" {
		t.Fatal("expected populated error field")
	}
	if info.Volume24hUSD != 0 {
		t.Fatalf("failed fetch must report zero volume, got %f", info.Volume24hUSD)
	}
}
