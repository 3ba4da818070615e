package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"volumedeck/internal/cache"
	"volumedeck/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type fakeConnector struct {
	platform domain.PlatformID
	latest   domain.ExchangeVolumeInfo
	records  []domain.DailyVolumeRecord
	histErr  error

	mu          sync.Mutex
	latestCalls int
	histCalls   int
}

func (f *fakeConnector) PlatformName() domain.PlatformID { return f.platform }

func (f *fakeConnector) FetchLatest24h(_ context.Context, _ *domain.Credential) domain.ExchangeVolumeInfo {
	f.mu.Lock()
	f.latestCalls++
	f.mu.Unlock()
	return f.latest
}

func (f *fakeConnector) FetchHistoricalDaily(_ context.Context, symbol string, _, _ time.Time, _ *domain.Credential) ([]domain.DailyVolumeRecord, error) {
	f.mu.Lock()
	f.histCalls++
	f.mu.Unlock()
	var out []domain.DailyVolumeRecord
	for _, r := range f.records {
		if r.Symbol == symbol {
			out = append(out, r)
		}
	}
	return out, f.histErr
}

// fakeVolumeStore enforces the (platform, symbol, day) uniqueness the real
// table provides, so repeated backfills exercise the insert-or-ignore path.
type fakeVolumeStore struct {
	mu   sync.Mutex
	rows map[string]domain.DailyVolumeRecord
	err  error
}

func newFakeVolumeStore() *fakeVolumeStore {
	return &fakeVolumeStore{rows: make(map[string]domain.DailyVolumeRecord)}
}

func rowKey(r domain.DailyVolumeRecord) string {
	return fmt.Sprintf("%s|%s|%s", r.Platform, r.Symbol, r.Day.UTC().Format("2006-01-02"))
}

func (f *fakeVolumeStore) InsertOrIgnore(_ context.Context, records []domain.DailyVolumeRecord) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	inserted := 0
	for _, r := range records {
		key := rowKey(r)
		if _, exists := f.rows[key]; exists {
			continue
		}
		f.rows[key] = r
		inserted++
	}
	return inserted, nil
}

func (f *fakeVolumeStore) QueryRange(_ context.Context, start, end time.Time) ([]domain.DailyVolumeRecord, error) {
	return f.query("", start, end)
}

func (f *fakeVolumeStore) QueryPlatformRange(_ context.Context, platform domain.PlatformID, start, end time.Time) ([]domain.DailyVolumeRecord, error) {
	return f.query(platform, start, end)
}

func (f *fakeVolumeStore) query(platform domain.PlatformID, start, end time.Time) ([]domain.DailyVolumeRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DailyVolumeRecord
	for _, r := range f.rows {
		if platform != "" && r.Platform != platform {
			continue
		}
		if !r.Day.Before(start) && !r.Day.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeCredentials struct {
	creds map[domain.PlatformID]*domain.Credential
	err   error
}

func (f *fakeCredentials) GetCredential(_ context.Context, platform domain.PlatformID) (*domain.Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.creds[platform], nil
}

type fakePricer struct {
	prices map[string]float64
	calls  int
}

func (f *fakePricer) USDPrice(_ context.Context, symbol string) (float64, error) {
	f.calls++
	price, ok := f.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}

func newTestService(connectors []Connector, store *fakeVolumeStore, pricer *fakePricer) *AggregationService {
	if store == nil {
		store = newFakeVolumeStore()
	}
	if pricer == nil {
		pricer = &fakePricer{}
	}
	return NewAggregationService(
		testTracer,
		connectors,
		store,
		&fakeCredentials{},
		cache.NewMemoryBackend(),
		pricer,
		5*time.Minute,
		time.Hour,
	)
}

func TestCurrentAggregateSumsHealthyPlatforms(t *testing.T) {
	t.Parallel()

	bybit := &fakeConnector{platform: domain.PlatformBybit, latest: domain.ExchangeVolumeInfo{
		Platform: domain.PlatformBybit, Volume24hUSD: 100,
	}}
	hyper := &fakeConnector{platform: domain.PlatformHyperliquid, latest: domain.ExchangeVolumeInfo{
		Platform: domain.PlatformHyperliquid, Volume24hUSD: 200,
	}}
	woox := &fakeConnector{platform: domain.PlatformWooX, latest: domain.ExchangeVolumeInfo{
		Platform: domain.PlatformWooX, Err: "upstream status 503",
	}}

	svc := newTestService([]Connector{bybit, hyper, woox}, nil, nil)

	agg, err := svc.CurrentAggregate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg.TotalVolume24hUSD != 300 {
		t.Fatalf("expected total 300, got %v", agg.TotalVolume24hUSD)
	}
	if len(agg.Platforms) != 3 {
		t.Fatalf("expected 3 platform entries, got %d", len(agg.Platforms))
	}
	if agg.Platforms[2].Err == "" {
		t.Fatal("failed platform must keep its error in the response")
	}
	if agg.Platforms[0].Platform != domain.PlatformBybit || agg.Platforms[2].Platform != domain.PlatformWooX {
		t.Fatalf("platform ordering not preserved: %+v", agg.Platforms)
	}
}

func TestCurrentAggregateServesFromCache(t *testing.T) {
	t.Parallel()

	conn := &fakeConnector{platform: domain.PlatformBybit, latest: domain.ExchangeVolumeInfo{
		Platform: domain.PlatformBybit, Volume24hUSD: 42,
	}}
	svc := newTestService([]Connector{conn}, nil, nil)

	ctx := context.Background()
	if _, err := svc.CurrentAggregate(ctx); err != nil {
		t.Fatalf("first call: %v", err)
	}
	agg, err := svc.CurrentAggregate(ctx)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if conn.latestCalls != 1 {
		t.Fatalf("expected one upstream call, got %d", conn.latestCalls)
	}
	if agg.TotalVolume24hUSD != 42 {
		t.Fatalf("cached total mismatch: %v", agg.TotalVolume24hUSD)
	}
}

func TestCurrentAggregateCredentialOutageIsFatal(t *testing.T) {
	t.Parallel()

	conn := &fakeConnector{platform: domain.PlatformBybit}
	svc := newTestService([]Connector{conn}, nil, nil)
	svc.creds = &fakeCredentials{err: errors.New("db unreachable")}

	if _, err := svc.CurrentAggregate(context.Background()); err == nil {
		t.Fatal("expected credential provider error to propagate")
	}
	if conn.latestCalls != 0 {
		t.Fatal("connectors must not run when credentials cannot be resolved")
	}
}

func TestHistoricalAggregateGroupsByDay(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	store := newFakeVolumeStore()
	seed := []domain.DailyVolumeRecord{
		{Platform: domain.PlatformBybit, Symbol: "BTCUSDT", Day: day1, VolumeUSD: 100},
		{Platform: domain.PlatformHyperliquid, Symbol: "BTC", Day: day1, VolumeUSD: 50},
		{Platform: domain.PlatformBybit, Symbol: "ETHUSDT", Day: day2, VolumeUSD: 70},
	}
	if _, err := store.InsertOrIgnore(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := newTestService(nil, store, nil)
	points, err := svc.HistoricalAggregate(context.Background(), "", day1, day2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 daily points, got %d", len(points))
	}
	if !points[0].Day.Equal(day1) || points[0].TotalVolumeUSD != 150 {
		t.Fatalf("day1 point wrong: %+v", points[0])
	}
	if !points[1].Day.Equal(day2) || points[1].TotalVolumeUSD != 70 {
		t.Fatalf("day2 point wrong: %+v", points[1])
	}

	// Platform filter leaves only bybit's contribution.
	points, err = svc.HistoricalAggregate(context.Background(), domain.PlatformBybit, day1, day2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 || points[0].TotalVolumeUSD != 100 || points[1].TotalVolumeUSD != 70 {
		t.Fatalf("platform-filtered points wrong: %+v", points)
	}
}

func TestBackfillIsIdempotent(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	conn := &fakeConnector{platform: domain.PlatformBybit, records: []domain.DailyVolumeRecord{
		{Platform: domain.PlatformBybit, Symbol: "BTCUSDT", Day: day, VolumeUSD: 100, QuoteAsset: "USDT"},
		{Platform: domain.PlatformBybit, Symbol: "ETHUSDT", Day: day, VolumeUSD: 60, QuoteAsset: "USDT"},
	}}
	store := newFakeVolumeStore()
	svc := newTestService([]Connector{conn}, store, nil)

	ctx := context.Background()
	first, err := svc.FetchAndStoreHistorical(ctx, domain.PlatformBybit, day, day)
	if err != nil {
		t.Fatalf("first backfill: %v", err)
	}
	if first[0].Status != domain.BackfillSuccess || first[0].Stored != 2 {
		t.Fatalf("first run should store 2 records: %+v", first[0])
	}

	second, err := svc.FetchAndStoreHistorical(ctx, domain.PlatformBybit, day, day)
	if err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if second[0].Stored != 0 {
		t.Fatalf("second run must not re-insert, stored %d", second[0].Stored)
	}
	if second[0].Status != domain.BackfillSuccess {
		t.Fatalf("duplicate rows are not an error: %+v", second[0])
	}
	if len(store.rows) != 2 {
		t.Fatalf("expected 2 rows after two runs, got %d", len(store.rows))
	}
}

func TestBackfillReportsPartialSuccess(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	conn := &fakeConnector{
		platform: domain.PlatformParadex,
		records: []domain.DailyVolumeRecord{
			{Platform: domain.PlatformParadex, Symbol: "BTC-USD-PERP", Day: day, VolumeUSD: 80, QuoteAsset: "USD"},
		},
		histErr: errors.New("page 3: status 500"),
	}
	svc := newTestService([]Connector{conn}, nil, nil)

	results, err := svc.FetchAndStoreHistorical(context.Background(), domain.PlatformParadex, day, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := results[0]
	if res.Status != domain.BackfillPartialSuccess {
		t.Fatalf("expected partial_success, got %s", res.Status)
	}
	if res.Stored != 1 {
		t.Fatalf("partial records must still be stored, got %d", res.Stored)
	}
	if len(res.Errors) == 0 || !strings.Contains(res.Errors[0], "status 500") {
		t.Fatalf("expected fetch error to be reported: %v", res.Errors)
	}
}

func TestBackfillAllPlatformsConcurrently(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bybit := &fakeConnector{platform: domain.PlatformBybit, records: []domain.DailyVolumeRecord{
		{Platform: domain.PlatformBybit, Symbol: "BTCUSDT", Day: day, VolumeUSD: 10, QuoteAsset: "USDT"},
	}}
	hyper := &fakeConnector{platform: domain.PlatformHyperliquid, histErr: errors.New("timeout")}

	svc := newTestService([]Connector{bybit, hyper}, nil, nil)
	results, err := svc.FetchAndStoreHistorical(context.Background(), "", day, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected a result per platform, got %d", len(results))
	}
	if results[0].Platform != domain.PlatformBybit || results[0].Status != domain.BackfillSuccess {
		t.Fatalf("bybit result wrong: %+v", results[0])
	}
	if results[1].Platform != domain.PlatformHyperliquid || results[1].Status != domain.BackfillError {
		t.Fatalf("hyperliquid result wrong: %+v", results[1])
	}
}

func TestBackfillRejectsUnknownPlatform(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, nil, nil)
	if _, err := svc.FetchAndStoreHistorical(context.Background(), "binance", time.Now(), time.Now()); err == nil {
		t.Fatal("expected error for unregistered platform")
	}
}

func TestBackfillNormalizesNonStableQuote(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	conn := &fakeConnector{platform: domain.PlatformHyperliquid, records: []domain.DailyVolumeRecord{
		{Platform: domain.PlatformHyperliquid, Symbol: "BTC", Day: day, VolumeUSD: 100, QuoteAsset: "HYPE"},
	}}
	store := newFakeVolumeStore()
	pricer := &fakePricer{prices: map[string]float64{"HYPE": 2.5}}
	svc := newTestService([]Connector{conn}, store, pricer)

	results, err := svc.FetchAndStoreHistorical(context.Background(), domain.PlatformHyperliquid, day, day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Status != domain.BackfillSuccess {
		t.Fatalf("expected success, got %+v", results[0])
	}
	stored, err := store.QueryRange(context.Background(), day, day)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(stored) != 1 || stored[0].VolumeUSD != 250 {
		t.Fatalf("expected normalized volume 250, got %+v", stored)
	}
	if pricer.calls == 0 {
		t.Fatal("pricer was never consulted")
	}
}
