package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"volumedeck/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const currentAggregateKey = "volume:aggregate:current"

// Connector is one exchange's volume fetcher.
type Connector interface {
	PlatformName() domain.PlatformID
	FetchHistoricalDaily(ctx context.Context, symbol string, start, end time.Time, cred *domain.Credential) ([]domain.DailyVolumeRecord, error)
	FetchLatest24h(ctx context.Context, cred *domain.Credential) domain.ExchangeVolumeInfo
}

// VolumeRepository persists and reads daily records.
type VolumeRepository interface {
	InsertOrIgnore(ctx context.Context, records []domain.DailyVolumeRecord) (int, error)
	QueryRange(ctx context.Context, start, end time.Time) ([]domain.DailyVolumeRecord, error)
	QueryPlatformRange(ctx context.Context, platform domain.PlatformID, start, end time.Time) ([]domain.DailyVolumeRecord, error)
}

// CredentialProvider resolves key material; (nil, nil) means absent.
type CredentialProvider interface {
	GetCredential(ctx context.Context, platform domain.PlatformID) (*domain.Credential, error)
}

// Cache memoizes aggregate responses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// PriceSource converts quote assets to USD.
type PriceSource interface {
	USDPrice(ctx context.Context, symbol string) (float64, error)
}

// AggregationService fans out across the registered connectors and sums
// their volumes. Per-platform failures are carried as data in the results;
// only credential-provider and cache outages surface as errors.
type AggregationService struct {
	tracer     trace.Tracer
	connectors map[domain.PlatformID]Connector
	order      []domain.PlatformID
	repo       VolumeRepository
	creds      CredentialProvider
	cache      Cache
	prices     PriceSource

	aggregateTTL  time.Duration
	historicalTTL time.Duration
	now           func() time.Time
}

func NewAggregationService(
	tracer trace.Tracer,
	connectors []Connector,
	repo VolumeRepository,
	creds CredentialProvider,
	cacheSvc Cache,
	prices PriceSource,
	aggregateTTL, historicalTTL time.Duration,
) *AggregationService {
	byPlatform := make(map[domain.PlatformID]Connector, len(connectors))
	order := make([]domain.PlatformID, 0, len(connectors))
	for _, c := range connectors {
		byPlatform[c.PlatformName()] = c
		order = append(order, c.PlatformName())
	}
	return &AggregationService{
		tracer:        tracer,
		connectors:    byPlatform,
		order:         order,
		repo:          repo,
		creds:         creds,
		cache:         cacheSvc,
		prices:        prices,
		aggregateTTL:  aggregateTTL,
		historicalTTL: historicalTTL,
		now:           time.Now,
	}
}

// CurrentAggregate returns the cached cross-platform 24h total, or fans out
// to every connector on a miss. A failing platform contributes zero and
// stays listed with its error; siblings are never cancelled.
func (s *AggregationService) CurrentAggregate(ctx context.Context) (*domain.AggregatedVolume, error) {
	ctx, span := s.tracer.Start(ctx, "aggregation.current")
	defer span.End()

	if data, ok, err := s.cache.Get(ctx, currentAggregateKey); err != nil {
		return nil, fmt.Errorf("aggregate cache read: %w", err)
	} else if ok {
		var cached domain.AggregatedVolume
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		log.Printf("aggregation: discarding undecodable cached aggregate")
	}

	// Credentials are resolved up front so a provider outage fails fast
	// instead of surfacing as four platform errors.
	creds := make(map[domain.PlatformID]*domain.Credential, len(s.order))
	for _, platform := range s.order {
		cred, err := s.creds.GetCredential(ctx, platform)
		if err != nil {
			return nil, fmt.Errorf("credential provider: %w", err)
		}
		creds[platform] = cred
	}

	results := make([]domain.ExchangeVolumeInfo, len(s.order))
	var wg sync.WaitGroup
	for i, platform := range s.order {
		wg.Add(1)
		go func(slot int, platform domain.PlatformID) {
			defer wg.Done()
			results[slot] = s.connectors[platform].FetchLatest24h(ctx, creds[platform])
		}(i, platform)
	}
	wg.Wait()

	agg := &domain.AggregatedVolume{
		LastUpdated: s.now().UTC(),
		Platforms:   results,
	}
	for _, info := range results {
		if info.Err == "" {
			agg.TotalVolume24hUSD += info.Volume24hUSD
		}
	}

	if data, err := json.Marshal(agg); err == nil {
		if err := s.cache.Set(ctx, currentAggregateKey, data, s.aggregateTTL); err != nil {
			log.Printf("aggregation: cache write failed: %v", err)
		}
	}
	return agg, nil
}

func historicalKey(platform domain.PlatformID, start, end time.Time) string {
	scope := "all"
	if platform != "" {
		scope = string(platform)
	}
	return fmt.Sprintf("volume:aggregate:historical:%s:%s:%s",
		scope, start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02"))
}

// HistoricalAggregate sums persisted records grouped by day, across all
// platforms or restricted to one when platform is non-empty.
func (s *AggregationService) HistoricalAggregate(ctx context.Context, platform domain.PlatformID, start, end time.Time) ([]domain.AggregatedHistoricalPoint, error) {
	ctx, span := s.tracer.Start(ctx, "aggregation.historical")
	defer span.End()

	key := historicalKey(platform, start, end)
	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		return nil, fmt.Errorf("historical cache read: %w", err)
	} else if ok {
		var cached []domain.AggregatedHistoricalPoint
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	var records []domain.DailyVolumeRecord
	var err error
	if platform != "" {
		records, err = s.repo.QueryPlatformRange(ctx, platform, start, end)
	} else {
		records, err = s.repo.QueryRange(ctx, start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("query historical range: %w", err)
	}

	byDay := make(map[time.Time]float64)
	for _, rec := range records {
		byDay[rec.Day.UTC()] += rec.VolumeUSD
	}

	points := make([]domain.AggregatedHistoricalPoint, 0, len(byDay))
	for day, total := range byDay {
		points = append(points, domain.AggregatedHistoricalPoint{Day: day, TotalVolumeUSD: total})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day.Before(points[j].Day) })

	if data, err := json.Marshal(points); err == nil {
		if err := s.cache.Set(ctx, key, data, s.historicalTTL); err != nil {
			log.Printf("aggregation: cache write failed: %v", err)
		}
	}
	return points, nil
}

// FetchAndStoreHistorical backfills daily records for one platform, or all
// of them concurrently when platform is empty. Volumes quoted in non-stable
// assets are normalized to USD before persisting.
func (s *AggregationService) FetchAndStoreHistorical(ctx context.Context, platform domain.PlatformID, start, end time.Time) ([]domain.BackfillResult, error) {
	ctx, span := s.tracer.Start(ctx, "aggregation.backfill")
	defer span.End()

	var platforms []domain.PlatformID
	if platform != "" {
		if _, ok := s.connectors[platform]; !ok {
			return nil, fmt.Errorf("unknown platform %q", platform)
		}
		platforms = []domain.PlatformID{platform}
	} else {
		platforms = s.order
	}

	results := make([]domain.BackfillResult, len(platforms))
	var wg sync.WaitGroup
	for i, p := range platforms {
		wg.Add(1)
		go func(slot int, platform domain.PlatformID) {
			defer wg.Done()
			results[slot] = s.backfillPlatform(ctx, platform, start, end)
		}(i, p)
	}
	wg.Wait()

	return results, nil
}

func (s *AggregationService) backfillPlatform(ctx context.Context, platform domain.PlatformID, start, end time.Time) domain.BackfillResult {
	result := domain.BackfillResult{Platform: platform}

	cred, err := s.creds.GetCredential(ctx, platform)
	if err != nil {
		result.Status = domain.BackfillError
		result.Errors = append(result.Errors, fmt.Sprintf("credential provider: %v", err))
		return result
	}

	conn := s.connectors[platform]
	for _, symbol := range domain.PlatformSymbols[platform] {
		records, err := conn.FetchHistoricalDaily(ctx, symbol, start, end, cred)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", symbol, err))
		}
		if len(records) == 0 {
			continue
		}
		result.Fetched += len(records)

		if err := s.normalizeRecords(ctx, records); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", symbol, err))
			continue
		}
		stored, err := s.repo.InsertOrIgnore(ctx, records)
		result.Stored += stored
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: store: %v", symbol, err))
		}
	}

	switch {
	case len(result.Errors) == 0:
		result.Status = domain.BackfillSuccess
	case result.Stored > 0 || result.Fetched > 0:
		result.Status = domain.BackfillPartialSuccess
	default:
		result.Status = domain.BackfillError
	}
	return result
}

// normalizeRecords converts non-stable quote volumes to USD in place.
func (s *AggregationService) normalizeRecords(ctx context.Context, records []domain.DailyVolumeRecord) error {
	for i := range records {
		quote := records[i].QuoteAsset
		if quote == "" || domain.IsStablecoin(quote) {
			continue
		}
		price, err := s.prices.USDPrice(ctx, quote)
		if err != nil {
			return fmt.Errorf("normalize %s volume: %w", quote, err)
		}
		records[i].VolumeUSD *= price
	}
	return nil
}
