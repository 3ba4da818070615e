package handler

import (
	"context"
	"time"

	"volumedeck/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// VolumeService is the aggregation surface the HTTP layer exposes.
type VolumeService interface {
	CurrentAggregate(ctx context.Context) (*domain.AggregatedVolume, error)
	HistoricalAggregate(ctx context.Context, platform domain.PlatformID, start, end time.Time) ([]domain.AggregatedHistoricalPoint, error)
	FetchAndStoreHistorical(ctx context.Context, platform domain.PlatformID, start, end time.Time) ([]domain.BackfillResult, error)
}

// CredentialAdmin manages stored exchange credentials. Plaintext goes in,
// only platform names come back out.
type CredentialAdmin interface {
	Put(ctx context.Context, cred domain.Credential) error
	List(ctx context.Context) ([]domain.PlatformID, error)
	Delete(ctx context.Context, platform domain.PlatformID) error
}

type Handler struct {
	tracer   trace.Tracer
	volumes  VolumeService
	creds    CredentialAdmin
	adminKey string
}

func New(tracer trace.Tracer, volumes VolumeService, creds CredentialAdmin, adminKey string) *Handler {
	return &Handler{
		tracer:   tracer,
		volumes:  volumes,
		creds:    creds,
		adminKey: adminKey,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/volume/current", h.GetCurrentVolume)
	r.GET("/api/volume/historical", h.GetHistoricalVolume)

	admin := r.Group("/api", APIKeyAuth(h.adminKey))
	admin.POST("/volume/backfill", h.Backfill)
	admin.POST("/keys", h.PutCredential)
	admin.GET("/keys", h.ListCredentials)
	admin.DELETE("/keys/:platform", h.DeleteCredential)
}
