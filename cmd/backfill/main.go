// Command backfill runs a one-shot historical volume backfill against the
// configured database, outside the server's daily schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"volumedeck/internal/cache"
	"volumedeck/internal/config"
	"volumedeck/internal/connector"
	"volumedeck/internal/credentials"
	"volumedeck/internal/db"
	"volumedeck/internal/domain"
	"volumedeck/internal/pricing"
	"volumedeck/internal/repository"
	"volumedeck/internal/service"
	"volumedeck/pkg/tracing"

	"github.com/joho/godotenv"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initTracerFunc   = tracing.InitTracer
	exitFunc         = os.Exit
)

func main() {
	loadEnvFunc()

	platformFlag := flag.String("platform", "", "platform to backfill (default: all)")
	startFlag := flag.String("start", "", "range start, YYYY-MM-DD (default: end minus days)")
	endFlag := flag.String("end", "", "range end, YYYY-MM-DD (default: today)")
	daysFlag := flag.Int("days", 0, "trailing window in days when -start is not given")
	flag.Parse()

	cfg := loadConfigFunc()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required for backfill")
	}

	ctx := context.Background()
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	initPostgresFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	platform := domain.PlatformID(*platformFlag)
	if platform != "" && !platform.IsValid() {
		log.Fatalf("unsupported platform %q, supported: %v", *platformFlag, domain.SupportedPlatforms)
	}

	start, end, err := resolveRange(*startFlag, *endFlag, *daysFlag, cfg.BackfillWindowDays)
	if err != nil {
		log.Fatal(err)
	}

	volumeRepo := repository.NewVolumeRepository(db.Pool, tracer)
	if err := volumeRepo.RunMigrations(ctx); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	credRepo := repository.NewCredentialRepository(db.Pool, tracer)
	if err := credRepo.RunMigrations(ctx); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	var sealer *credentials.Sealer
	if cfg.CredentialKeyHex != "" {
		sealer, err = credentials.NewSealer(cfg.CredentialKeyHex)
		if err != nil {
			log.Fatalf("invalid CREDENTIAL_KEY: %v", err)
		}
	}
	var credStore credentials.Store
	if sealer != nil {
		credStore = credRepo
	}
	credProvider := credentials.NewProvider(credStore, sealer, tracer)

	cacheSvc := cache.NewService(cache.NewMemoryBackend(), tracer)
	priceService := pricing.NewService(cacheSvc, tracer,
		time.Duration(cfg.PriceCacheSecs)*time.Second, cfg.PriceFallback.Value())

	aggService := service.NewAggregationService(
		tracer,
		[]service.Connector{
			connector.NewBybit(tracer),
			connector.NewHyperliquid(tracer),
			connector.NewWooX(tracer),
			connector.NewParadex(tracer, cfg.ParadexChainID),
		},
		volumeRepo,
		credProvider,
		cacheSvc,
		priceService,
		time.Duration(cfg.AggregateCacheSecs)*time.Second,
		time.Duration(cfg.HistoricalCacheSecs)*time.Second,
	)

	log.Printf("backfilling %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	results, err := aggService.FetchAndStoreHistorical(ctx, platform, start, end)
	if err != nil {
		log.Fatalf("backfill failed: %v", err)
	}

	failed := false
	for _, res := range results {
		log.Printf("%s: status=%s fetched=%d stored=%d", res.Platform, res.Status, res.Fetched, res.Stored)
		for _, e := range res.Errors {
			log.Printf("  %s", e)
		}
		if res.Status == domain.BackfillError {
			failed = true
		}
	}
	if failed {
		exitFunc(1)
	}
}

func resolveRange(startStr, endStr string, days, defaultDays int) (time.Time, time.Time, error) {
	end := domain.DayOf(time.Now())
	if endStr != "" {
		parsed, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -end date %q", endStr)
		}
		end = parsed
	}

	window := defaultDays
	if days > 0 {
		window = days
	}
	start := end.AddDate(0, 0, -window)
	if startStr != "" {
		parsed, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -start date %q", startStr)
		}
		start = parsed
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is after end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end, nil
}
