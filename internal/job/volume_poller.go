package job

import (
	"context"
	"log"
	"time"

	"volumedeck/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// VolumeRefresher is the slice of the aggregation service the poller drives.
type VolumeRefresher interface {
	CurrentAggregate(ctx context.Context) (*domain.AggregatedVolume, error)
	FetchAndStoreHistorical(ctx context.Context, platform domain.PlatformID, start, end time.Time) ([]domain.BackfillResult, error)
}

// VolumePoller keeps the 24h aggregate cache warm and tops up the historical
// table once a day.
type VolumePoller struct {
	tracer       trace.Tracer
	service      VolumeRefresher
	pollInterval time.Duration
	backfillDays int
	now          func() time.Time
}

func NewVolumePoller(tracer trace.Tracer, service VolumeRefresher, pollIntervalSecs, backfillDays int) *VolumePoller {
	return &VolumePoller{
		tracer:       tracer,
		service:      service,
		pollInterval: time.Duration(pollIntervalSecs) * time.Second,
		backfillDays: backfillDays,
		now:          time.Now,
	}
}

// Start launches the polling goroutines. Blocks until ctx is cancelled.
func (p *VolumePoller) Start(ctx context.Context) {
	log.Println("Volume poller starting...")

	go p.pollLoop(ctx, "aggregate-refresh", p.pollInterval, p.refreshAggregate)
	go p.pollBackfill(ctx)

	<-ctx.Done()
	log.Println("Volume poller stopped")
}

func (p *VolumePoller) pollLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	// Run immediately on start
	if err := fn(ctx); err != nil {
		log.Printf("poller %s initial run error: %v", name, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				log.Printf("poller %s error: %v", name, err)
			}
		}
	}
}

func (p *VolumePoller) refreshAggregate(ctx context.Context) error {
	_, err := p.service.CurrentAggregate(ctx)
	return err
}

func (p *VolumePoller) pollBackfill(ctx context.Context) {
	// Stagger behind the first aggregate refresh
	select {
	case <-ctx.Done():
		return
	case <-time.After(30 * time.Second):
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	p.runBackfill(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runBackfill(ctx)
		}
	}
}

// runBackfill tops up the trailing window for every platform. Inserts are
// idempotent so overlap with previous runs is harmless.
func (p *VolumePoller) runBackfill(ctx context.Context) {
	end := domain.DayOf(p.now())
	start := end.AddDate(0, 0, -p.backfillDays)

	results, err := p.service.FetchAndStoreHistorical(ctx, "", start, end)
	if err != nil {
		log.Printf("scheduled backfill error: %v", err)
		return
	}
	for _, res := range results {
		if res.Status == domain.BackfillSuccess && res.Stored == 0 {
			continue
		}
		log.Printf("scheduled backfill %s: status=%s fetched=%d stored=%d errors=%d",
			res.Platform, res.Status, res.Fetched, res.Stored, len(res.Errors))
	}
}
