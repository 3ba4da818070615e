package repository

import (
	"context"
	"errors"
	"time"

	"volumedeck/internal/domain"
)

// ErrPersistenceDisabled is returned by writes when no database is
// configured.
var ErrPersistenceDisabled = errors.New("historical persistence is disabled (DATABASE_URL not set)")

// NullVolumeStore stands in for the volume repository when the service runs
// without Postgres. Reads see an empty history, writes fail loudly.
type NullVolumeStore struct{}

func NewNullVolumeStore() *NullVolumeStore { return &NullVolumeStore{} }

func (*NullVolumeStore) InsertOrIgnore(_ context.Context, _ []domain.DailyVolumeRecord) (int, error) {
	return 0, ErrPersistenceDisabled
}

func (*NullVolumeStore) QueryRange(_ context.Context, _, _ time.Time) ([]domain.DailyVolumeRecord, error) {
	return nil, nil
}

func (*NullVolumeStore) QueryPlatformRange(_ context.Context, _ domain.PlatformID, _, _ time.Time) ([]domain.DailyVolumeRecord, error) {
	return nil, nil
}
