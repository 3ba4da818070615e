package repository

import (
	"context"
	"time"

	"volumedeck/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createHistoricalVolumesTable = `
CREATE TABLE IF NOT EXISTS historical_volumes (
    platform    TEXT        NOT NULL,
    symbol      TEXT        NOT NULL,
    day         TIMESTAMPTZ NOT NULL,
    open        NUMERIC     NOT NULL,
    high        NUMERIC     NOT NULL,
    low         NUMERIC     NOT NULL,
    close       NUMERIC     NOT NULL,
    volume_usd  NUMERIC     NOT NULL,
    quote_asset TEXT        NOT NULL DEFAULT 'USD',
    PRIMARY KEY (platform, symbol, day)
);

CREATE INDEX IF NOT EXISTS idx_historical_volumes_day
    ON historical_volumes (day);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// VolumeRepository persists daily volume records. The (platform, symbol,
// day) primary key enforces the uniqueness invariant server-side, so
// repeated backfills are idempotent.
type VolumeRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewVolumeRepository(pool PgxPool, tracer trace.Tracer) *VolumeRepository {
	return &VolumeRepository{pool: pool, tracer: tracer}
}

func (r *VolumeRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "volume-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createHistoricalVolumesTable)
	return err
}

// InsertOrIgnore stores records, silently skipping days already present.
// Returns the number of newly inserted rows.
func (r *VolumeRepository) InsertOrIgnore(ctx context.Context, records []domain.DailyVolumeRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	_, span := r.tracer.Start(ctx, "volume-repo.insert-or-ignore")
	defer span.End()

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO historical_volumes (platform, symbol, day, open, high, low, close, volume_usd, quote_asset)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (platform, symbol, day) DO NOTHING`,
			string(rec.Platform), rec.Symbol, rec.Day, rec.Open, rec.High, rec.Low, rec.Close, rec.VolumeUSD, rec.QuoteAsset,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range records {
		tag, err := br.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// QueryRange returns all records across platforms and symbols whose day
// falls in [start, end], oldest first.
func (r *VolumeRepository) QueryRange(ctx context.Context, start, end time.Time) ([]domain.DailyVolumeRecord, error) {
	_, span := r.tracer.Start(ctx, "volume-repo.query-range")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT platform, symbol, day, open, high, low, close, volume_usd, quote_asset
		 FROM historical_volumes
		 WHERE day >= $1 AND day <= $2
		 ORDER BY day, platform, symbol`,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// QueryPlatformRange is QueryRange restricted to one platform.
func (r *VolumeRepository) QueryPlatformRange(ctx context.Context, platform domain.PlatformID, start, end time.Time) ([]domain.DailyVolumeRecord, error) {
	_, span := r.tracer.Start(ctx, "volume-repo.query-platform-range")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT platform, symbol, day, open, high, low, close, volume_usd, quote_asset
		 FROM historical_volumes
		 WHERE platform = $1 AND day >= $2 AND day <= $3
		 ORDER BY day, symbol`,
		string(platform), start, end,
	)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]domain.DailyVolumeRecord, error) {
	defer rows.Close()

	var records []domain.DailyVolumeRecord
	for rows.Next() {
		var rec domain.DailyVolumeRecord
		var platform string
		var day time.Time
		if err := rows.Scan(&platform, &rec.Symbol, &day, &rec.Open, &rec.High, &rec.Low, &rec.Close, &rec.VolumeUSD, &rec.QuoteAsset); err != nil {
			return nil, err
		}
		rec.Platform = domain.PlatformID(platform)
		rec.Day = day.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}
