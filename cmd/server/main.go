package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"volumedeck/internal/bot"
	"volumedeck/internal/cache"
	"volumedeck/internal/config"
	"volumedeck/internal/connector"
	"volumedeck/internal/credentials"
	"volumedeck/internal/db"
	"volumedeck/internal/handler"
	"volumedeck/internal/job"
	"volumedeck/internal/pricing"
	"volumedeck/internal/repository"
	"volumedeck/internal/service"
	"volumedeck/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "volumedeck/docs"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	newConnectorsFunc = func(tracer trace.Tracer, chainID string) []service.Connector {
		return []service.Connector{
			connector.NewBybit(tracer),
			connector.NewHyperliquid(tracer),
			connector.NewWooX(tracer),
			connector.NewParadex(tracer, chainID),
		}
	}
	startPollerFunc        = func(p *job.VolumePoller, ctx context.Context) { go p.Start(ctx) }
	startTelegramBotFunc   = func(volumes bot.VolumeReader) { bot.StartTelegramBot(volumes) }
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Volumedeck API
// @version         1.0
// @description     Aggregated trading volume across Bybit, Hyperliquid, WooX and Paradex.

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis. Both are optional; without Postgres the
	// historical endpoints run against an empty store, without Redis the
	// cache is in-process.
	if cfg.DatabaseURL != "" {
		os.Setenv("DATABASE_URL", cfg.DatabaseURL)
		initPostgresFunc(ctx)
	}
	if cfg.RedisURL != "" {
		os.Setenv("REDIS_URL", cfg.RedisURL)
		initRedisFunc(ctx)
	}

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repositories and run migrations
	var volumeRepo service.VolumeRepository
	var credRepo *repository.CredentialRepository
	if db.Pool != nil {
		vr := repository.NewVolumeRepository(db.Pool, tracer)
		if err := vr.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		volumeRepo = vr

		credRepo = repository.NewCredentialRepository(db.Pool, tracer)
		if err := credRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	} else {
		volumeRepo = repository.NewNullVolumeStore()
	}

	// Cache: Redis when configured, in-process otherwise
	var backend cache.Backend
	if cache.Client != nil {
		backend = cache.NewRedisBackend(cache.Client)
	} else {
		backend = cache.NewMemoryBackend()
	}
	cacheSvc := cache.NewService(backend, tracer)

	// Credential sealing and lookup
	var sealer *credentials.Sealer
	if cfg.CredentialKeyHex != "" {
		sealer, err = credentials.NewSealer(cfg.CredentialKeyHex)
		if err != nil {
			log.Fatalf("invalid CREDENTIAL_KEY: %v", err)
		}
	}
	var credStore credentials.Store
	var credAdmin handler.CredentialAdmin
	if credRepo != nil && sealer != nil {
		credStore = credRepo
		credAdmin = credentials.NewManager(credRepo, sealer, tracer)
	}
	credProvider := credentials.NewProvider(credStore, sealer, tracer)

	// Pricing and aggregation services
	priceService := pricing.NewService(cacheSvc, tracer,
		time.Duration(cfg.PriceCacheSecs)*time.Second, cfg.PriceFallback.Value())

	connectors := newConnectorsFunc(tracer, cfg.ParadexChainID)
	aggService := service.NewAggregationService(
		tracer,
		connectors,
		volumeRepo,
		credProvider,
		cacheSvc,
		priceService,
		time.Duration(cfg.AggregateCacheSecs)*time.Second,
		time.Duration(cfg.HistoricalCacheSecs)*time.Second,
	)

	// Start volume poller (background goroutines, stopped by ctx cancel)
	poller := job.NewVolumePoller(tracer, aggService, cfg.AggregatePollSecs, cfg.BackfillWindowDays)
	startPollerFunc(poller, ctx)

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(aggService)

	// Create handlers and routes
	h := handler.New(tracer, aggService, credAdmin, cfg.AdminAPIKey)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("volumedeck"))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
