package auth

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists API keys in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed key store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the api_keys table. Used by tests and dev bootstrap;
// production deployments run the goose migrations instead.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			hash TEXT NOT NULL UNIQUE,
			partner_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			last_used TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			revoked BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_api_keys_partner ON api_keys(partner_id);
	`)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, key *APIKey) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, hash, partner_id, name, created_at, last_used, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.Hash, key.PartnerID, key.Name, key.CreatedAt,
		nullableTime(key.LastUsed), key.ExpiresAt, key.Revoked,
	)
	return err
}

func (p *PostgresStore) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	return p.scanKey(p.db.QueryRowContext(ctx, `
		SELECT id, hash, partner_id, name, created_at, last_used, expires_at, revoked
		FROM api_keys WHERE hash = $1`, hash))
}

func (p *PostgresStore) GetByPartner(ctx context.Context, partnerID string) ([]*APIKey, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, hash, partner_id, name, created_at, last_used, expires_at, revoked
		FROM api_keys WHERE partner_id = $1 ORDER BY created_at`, partnerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []*APIKey
	for rows.Next() {
		k := &APIKey{}
		var lastUsed, expires sql.NullTime
		if err := rows.Scan(&k.ID, &k.Hash, &k.PartnerID, &k.Name, &k.CreatedAt,
			&lastUsed, &expires, &k.Revoked); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			k.LastUsed = lastUsed.Time
		}
		if expires.Valid {
			t := expires.Time
			k.ExpiresAt = &t
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (p *PostgresStore) Update(ctx context.Context, key *APIKey) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used = $1, expires_at = $2, revoked = $3
		WHERE id = $4`,
		nullableTime(key.LastUsed), key.ExpiresAt, key.Revoked, key.ID,
	)
	return err
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	return err
}

func (p *PostgresStore) scanKey(row *sql.Row) (*APIKey, error) {
	k := &APIKey{}
	var lastUsed, expires sql.NullTime
	err := row.Scan(&k.ID, &k.Hash, &k.PartnerID, &k.Name, &k.CreatedAt,
		&lastUsed, &expires, &k.Revoked)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		k.LastUsed = lastUsed.Time
	}
	if expires.Valid {
		t := expires.Time
		k.ExpiresAt = &t
	}
	return k, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ Store = (*PostgresStore)(nil)
