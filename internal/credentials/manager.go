package credentials

import (
	"context"
	"fmt"

	"volumedeck/internal/domain"
	"volumedeck/internal/repository"

	"go.opentelemetry.io/otel/trace"
)

// AdminStore is the write side of the credential repository.
type AdminStore interface {
	Upsert(ctx context.Context, cred repository.EncryptedCredential) error
	List(ctx context.Context) ([]domain.PlatformID, error)
	Delete(ctx context.Context, platform domain.PlatformID) error
}

// Manager seals incoming plaintext credentials and hands them to the store.
// It is the only path by which key material enters the database.
type Manager struct {
	store  AdminStore
	sealer *Sealer
	tracer trace.Tracer
}

func NewManager(store AdminStore, sealer *Sealer, tracer trace.Tracer) *Manager {
	return &Manager{store: store, sealer: sealer, tracer: tracer}
}

func (m *Manager) Put(ctx context.Context, cred domain.Credential) error {
	_, span := m.tracer.Start(ctx, "credentials.put")
	defer span.End()

	apiKey, err := m.sealer.Seal(cred.APIKey)
	if err != nil {
		return fmt.Errorf("seal api key: %w", err)
	}
	apiSecret, err := m.sealer.Seal(cred.APISecret)
	if err != nil {
		return fmt.Errorf("seal api secret: %w", err)
	}
	starkAccount, err := m.sealer.Seal(cred.StarkAccount)
	if err != nil {
		return fmt.Errorf("seal stark account: %w", err)
	}
	starkKey, err := m.sealer.Seal(cred.StarkPrivateKey)
	if err != nil {
		return fmt.Errorf("seal stark private key: %w", err)
	}

	return m.store.Upsert(ctx, repository.EncryptedCredential{
		Platform:        cred.Platform,
		APIKey:          apiKey,
		APISecret:       apiSecret,
		StarkAccount:    starkAccount,
		StarkPrivateKey: starkKey,
	})
}

func (m *Manager) List(ctx context.Context) ([]domain.PlatformID, error) {
	_, span := m.tracer.Start(ctx, "credentials.list")
	defer span.End()

	return m.store.List(ctx)
}

func (m *Manager) Delete(ctx context.Context, platform domain.PlatformID) error {
	_, span := m.tracer.Start(ctx, "credentials.delete")
	defer span.End()

	return m.store.Delete(ctx, platform)
}
