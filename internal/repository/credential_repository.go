package repository

import (
	"context"
	"time"

	"volumedeck/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const createExchangeCredentialsTable = `
CREATE TABLE IF NOT EXISTS exchange_credentials (
    platform          TEXT        PRIMARY KEY,
    api_key           BYTEA,
    api_secret        BYTEA,
    stark_account     BYTEA,
    stark_private_key BYTEA,
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EncryptedCredential is a stored credential row. All key material is sealed
// before it reaches this layer; the repository never sees plaintext.
type EncryptedCredential struct {
	Platform        domain.PlatformID
	APIKey          []byte
	APISecret       []byte
	StarkAccount    []byte
	StarkPrivateKey []byte
	UpdatedAt       time.Time
}

type CredentialRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewCredentialRepository(pool PgxPool, tracer trace.Tracer) *CredentialRepository {
	return &CredentialRepository{pool: pool, tracer: tracer}
}

func (r *CredentialRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "credential-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createExchangeCredentialsTable)
	return err
}

func (r *CredentialRepository) Upsert(ctx context.Context, cred EncryptedCredential) error {
	_, span := r.tracer.Start(ctx, "credential-repo.upsert")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO exchange_credentials (platform, api_key, api_secret, stark_account, stark_private_key, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (platform) DO UPDATE SET
		     api_key = EXCLUDED.api_key,
		     api_secret = EXCLUDED.api_secret,
		     stark_account = EXCLUDED.stark_account,
		     stark_private_key = EXCLUDED.stark_private_key,
		     updated_at = now()`,
		string(cred.Platform), cred.APIKey, cred.APISecret, cred.StarkAccount, cred.StarkPrivateKey,
	)
	return err
}

// Get returns the stored credential for platform, or nil when absent.
func (r *CredentialRepository) Get(ctx context.Context, platform domain.PlatformID) (*EncryptedCredential, error) {
	_, span := r.tracer.Start(ctx, "credential-repo.get")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT platform, api_key, api_secret, stark_account, stark_private_key, updated_at
		 FROM exchange_credentials
		 WHERE platform = $1`,
		string(platform),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil && err != pgx.ErrNoRows {
			return nil, err
		}
		return nil, nil
	}

	var cred EncryptedCredential
	var p string
	if err := rows.Scan(&p, &cred.APIKey, &cred.APISecret, &cred.StarkAccount, &cred.StarkPrivateKey, &cred.UpdatedAt); err != nil {
		return nil, err
	}
	cred.Platform = domain.PlatformID(p)
	return &cred, nil
}

// List returns the platforms with stored credentials, never the material
// itself.
func (r *CredentialRepository) List(ctx context.Context) ([]domain.PlatformID, error) {
	_, span := r.tracer.Start(ctx, "credential-repo.list")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT platform FROM exchange_credentials ORDER BY platform`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var platforms []domain.PlatformID
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		platforms = append(platforms, domain.PlatformID(p))
	}
	return platforms, rows.Err()
}

func (r *CredentialRepository) Delete(ctx context.Context, platform domain.PlatformID) error {
	_, span := r.tracer.Start(ctx, "credential-repo.delete")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`DELETE FROM exchange_credentials WHERE platform = $1`, string(platform))
	return err
}
