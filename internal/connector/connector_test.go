package connector

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"volumedeck/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(t *testing.T, status int, payload interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func TestBucketFillsDaily(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fills := []Fill{
		{ID: "1", Price: 60000, Size: 0.01, Time: day1.Add(2 * time.Hour)},
		{ID: "2", Price: 61000, Size: 0.02, Time: day1.Add(5 * time.Hour)},
	}

	records := bucketFillsDaily(domain.PlatformWooX, "PERP_BTC_USDT", "USDT", fills, day1, day1.Add(24*time.Hour))
	if len(records) != 1 {
		t.Fatalf("expected 1 daily record, got %d", len(records))
	}

	rec := records[0]
	if rec.Open != 60000 || rec.Close != 61000 || rec.High != 61000 || rec.Low != 60000 {
		t.Fatalf("unexpected OHLC: %+v", rec)
	}
	if rec.VolumeUSD != 1820 {
		t.Fatalf("expected volume 1820, got %f", rec.VolumeUSD)
	}
	if !rec.Day.Equal(day1) {
		t.Fatalf("unexpected day: %v", rec.Day)
	}
	if rec.QuoteAsset != "USDT" {
		t.Fatalf("unexpected quote asset: %q", rec.QuoteAsset)
	}
}

func TestBucketFillsDailyDiscardsOutOfRange(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fills := []Fill{
		{ID: "1", Price: 100, Size: 1, Time: day1.Add(-time.Hour)},
		{ID: "2", Price: 200, Size: 1, Time: day1.Add(time.Hour)},
		{ID: "3", Price: 300, Size: 1, Time: day1.Add(48 * time.Hour)},
	}

	records := bucketFillsDaily(domain.PlatformParadex, "BTC-USD-PERP", "USD", fills, day1, day1.Add(24*time.Hour))
	if len(records) != 1 {
		t.Fatalf("expected only in-range fills, got %d records", len(records))
	}
	if records[0].VolumeUSD != 200 {
		t.Fatalf("expected volume 200, got %f", records[0].VolumeUSD)
	}
}

func TestBucketFillsDailyOrdersUnsortedFills(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	// Later fill first: open/close must follow trade time, not input order.
	fills := []Fill{
		{ID: "2", Price: 61000, Size: 0.02, Time: day1.Add(5 * time.Hour)},
		{ID: "1", Price: 60000, Size: 0.01, Time: day1.Add(2 * time.Hour)},
	}

	records := bucketFillsDaily(domain.PlatformWooX, "PERP_BTC_USDT", "USDT", fills, day1, day1.Add(24*time.Hour))
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Open != 60000 || records[0].Close != 61000 {
		t.Fatalf("open/close must follow trade time: %+v", records[0])
	}
}

func TestQuoteFromSymbol(t *testing.T) {
	t.Parallel()

	if got := quoteFromSymbol("PERP_BTC_USDT"); got != "USDT" {
		t.Fatalf("expected USDT, got %q", got)
	}
	if got := quoteFromSymbol("SPOT_ETH_USDC"); got != "USDC" {
		t.Fatalf("expected USDC, got %q", got)
	}
	if got := quoteFromSymbol("BTC"); got != "BTC" {
		t.Fatalf("expected passthrough for unstructured symbol, got %q", got)
	}
}
