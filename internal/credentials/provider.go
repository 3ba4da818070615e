package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"volumedeck/internal/domain"
	"volumedeck/internal/repository"

	"go.opentelemetry.io/otel/trace"
)

// Store is the subset of the credential repository the provider reads from.
type Store interface {
	Get(ctx context.Context, platform domain.PlatformID) (*repository.EncryptedCredential, error)
}

// Provider resolves credentials for connectors: stored sealed credentials
// first, environment variables as a fallback. A missing credential is
// (nil, nil), not an error; infrastructure failures do propagate.
type Provider struct {
	store  Store
	sealer *Sealer
	tracer trace.Tracer
}

// NewProvider accepts a nil store or sealer; either disables the database
// path and leaves only the environment fallback.
func NewProvider(store Store, sealer *Sealer, tracer trace.Tracer) *Provider {
	return &Provider{store: store, sealer: sealer, tracer: tracer}
}

func (p *Provider) GetCredential(ctx context.Context, platform domain.PlatformID) (*domain.Credential, error) {
	_, span := p.tracer.Start(ctx, "credentials.get")
	defer span.End()

	if p.store != nil && p.sealer != nil {
		stored, err := p.store.Get(ctx, platform)
		if err != nil {
			return nil, fmt.Errorf("load credential for %s: %w", platform, err)
		}
		if stored != nil {
			cred, err := p.unseal(stored)
			if err != nil {
				return nil, fmt.Errorf("unseal credential for %s: %w", platform, err)
			}
			return cred, nil
		}
	}

	return envCredential(platform), nil
}

func (p *Provider) unseal(stored *repository.EncryptedCredential) (*domain.Credential, error) {
	apiKey, err := p.sealer.Open(stored.APIKey)
	if err != nil {
		return nil, err
	}
	apiSecret, err := p.sealer.Open(stored.APISecret)
	if err != nil {
		return nil, err
	}
	starkAccount, err := p.sealer.Open(stored.StarkAccount)
	if err != nil {
		return nil, err
	}
	starkKey, err := p.sealer.Open(stored.StarkPrivateKey)
	if err != nil {
		return nil, err
	}
	return &domain.Credential{
		Platform:        stored.Platform,
		APIKey:          apiKey,
		APISecret:       apiSecret,
		StarkAccount:    starkAccount,
		StarkPrivateKey: starkKey,
	}, nil
}

// envCredential reads <PLATFORM>_API_KEY / <PLATFORM>_API_SECRET, plus the
// Starknet wallet variables for Paradex. Returns nil when nothing is set.
func envCredential(platform domain.PlatformID) *domain.Credential {
	prefix := strings.ToUpper(string(platform))
	cred := &domain.Credential{
		Platform:  platform,
		APIKey:    os.Getenv(prefix + "_API_KEY"),
		APISecret: os.Getenv(prefix + "_API_SECRET"),
	}
	if platform == domain.PlatformParadex {
		cred.StarkAccount = os.Getenv("PARADEX_L2_ADDRESS")
		cred.StarkPrivateKey = os.Getenv("PARADEX_L2_PRIVATE_KEY")
	}
	if cred.APIKey == "" && cred.APISecret == "" && cred.StarkAccount == "" && cred.StarkPrivateKey == "" {
		return nil
	}
	return cred
}
