package branding

import (
	"context"
	"database/sql"
)

// PostgresStore persists branding configs in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed branding store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the branding_configs table. Used by tests and dev
// bootstrap; production deployments run the goose migrations instead.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS branding_configs (
			partner_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			logo_url TEXT NOT NULL DEFAULT '',
			primary_color TEXT NOT NULL DEFAULT '',
			secondary_color TEXT NOT NULL DEFAULT '',
			support_email TEXT NOT NULL DEFAULT '',
			custom_domain TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, partnerID string) (*Config, error) {
	cfg := &Config{}
	err := p.db.QueryRowContext(ctx, `
		SELECT partner_id, display_name, logo_url, primary_color, secondary_color,
			support_email, custom_domain, updated_at
		FROM branding_configs WHERE partner_id = $1`, partnerID).
		Scan(&cfg.PartnerID, &cfg.DisplayName, &cfg.LogoURL, &cfg.PrimaryColor,
			&cfg.SecondaryColor, &cfg.SupportEmail, &cfg.CustomDomain, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *PostgresStore) Upsert(ctx context.Context, cfg *Config) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO branding_configs (partner_id, display_name, logo_url, primary_color,
			secondary_color, support_email, custom_domain, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (partner_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			logo_url = EXCLUDED.logo_url,
			primary_color = EXCLUDED.primary_color,
			secondary_color = EXCLUDED.secondary_color,
			support_email = EXCLUDED.support_email,
			custom_domain = EXCLUDED.custom_domain,
			updated_at = EXCLUDED.updated_at`,
		cfg.PartnerID, cfg.DisplayName, cfg.LogoURL, cfg.PrimaryColor,
		cfg.SecondaryColor, cfg.SupportEmail, cfg.CustomDomain, cfg.UpdatedAt,
	)
	return err
}

var _ Store = (*PostgresStore)(nil)
