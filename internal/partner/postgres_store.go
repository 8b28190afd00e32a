package partner

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/partnerhq/partnerhub/internal/tier"
)

// PostgresStore persists partners in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed partner store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreatePartner(ctx context.Context, pt *Partner) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO partners (id, name, email, tier, rate_override_bps, status, reporting_timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pt.ID, pt.Name, strings.ToLower(pt.Email), string(pt.Tier), overrideVal(pt.RateOverrideBPS),
		string(pt.Status), pt.ReportingTimezone, pt.CreatedAt, pt.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetPartner(ctx context.Context, id string) (*Partner, error) {
	return p.scanPartner(p.db.QueryRowContext(ctx, `
		SELECT id, name, email, tier, rate_override_bps, status, reporting_timezone, created_at, updated_at
		FROM partners WHERE id = $1`, id))
}

func (p *PostgresStore) GetPartnerByEmail(ctx context.Context, email string) (*Partner, error) {
	return p.scanPartner(p.db.QueryRowContext(ctx, `
		SELECT id, name, email, tier, rate_override_bps, status, reporting_timezone, created_at, updated_at
		FROM partners WHERE email = $1`, strings.ToLower(email)))
}

func (p *PostgresStore) UpdatePartner(ctx context.Context, pt *Partner) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE partners SET name = $1, tier = $2, rate_override_bps = $3, status = $4,
			reporting_timezone = $5, updated_at = $6
		WHERE id = $7`,
		pt.Name, string(pt.Tier), overrideVal(pt.RateOverrideBPS), string(pt.Status),
		pt.ReportingTimezone, pt.UpdatedAt, pt.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPartnerNotFound
	}
	return nil
}

func (p *PostgresStore) ListPartners(ctx context.Context, limit, offset int) ([]*Partner, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, email, tier, rate_override_bps, status, reporting_timezone, created_at, updated_at
		FROM partners ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Partner
	for rows.Next() {
		pt, err := p.scanPartnerRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// CreateCustomer claims a customer slot inside one transaction. The
// partner row is locked first so concurrent onboardings serialize on the
// count: at READ COMMITTED two unserialized inserts would each snapshot
// before the other's row and both land in the last slot.
func (p *PostgresStore) CreateCustomer(ctx context.Context, c *Customer, maxCustomers int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var partnerID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM partners WHERE id = $1 FOR UPDATE`, c.PartnerID).Scan(&partnerID)
	if err == sql.ErrNoRows {
		return ErrPartnerNotFound
	}
	if err != nil {
		return err
	}

	if maxCustomers != tier.Unlimited {
		var count int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM customers
			WHERE partner_id = $1 AND status != 'churned'`, c.PartnerID).Scan(&count); err != nil {
			return err
		}
		if count >= maxCustomers {
			return ErrLimitExceeded
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO customers (id, partner_id, name, status, mrr_cents, satisfaction_score, churned_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.PartnerID, c.Name, string(c.Status), c.MRRCents,
		scoreVal(c.SatisfactionScore), c.ChurnedAt, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	return p.scanCustomer(p.db.QueryRowContext(ctx, `
		SELECT id, partner_id, name, status, mrr_cents, satisfaction_score, churned_at, created_at, updated_at
		FROM customers WHERE id = $1`, id))
}

func (p *PostgresStore) UpdateCustomer(ctx context.Context, c *Customer) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE customers SET name = $1, status = $2, mrr_cents = $3, satisfaction_score = $4,
			churned_at = $5, updated_at = $6
		WHERE id = $7`,
		c.Name, string(c.Status), c.MRRCents, scoreVal(c.SatisfactionScore),
		c.ChurnedAt, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func (p *PostgresStore) ListCustomers(ctx context.Context, partnerID string) ([]*Customer, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, partner_id, name, status, mrr_cents, satisfaction_score, churned_at, created_at, updated_at
		FROM customers WHERE partner_id = $1 ORDER BY created_at, id`, partnerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Customer
	for rows.Next() {
		c, err := p.scanCustomerRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CountCustomers(ctx context.Context, partnerID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM customers
		WHERE partner_id = $1 AND status != 'churned'`, partnerID).Scan(&count)
	return count, err
}

func (p *PostgresStore) RecordTierChange(ctx context.Context, tc *TierChange) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO tier_changes (id, partner_id, from_tier, to_tier, actor, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tc.ID, tc.PartnerID, string(tc.FromTier), string(tc.ToTier), tc.Actor, tc.Reason, tc.ChangedAt,
	)
	return err
}

func (p *PostgresStore) ListTierChanges(ctx context.Context, partnerID string) ([]*TierChange, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, partner_id, from_tier, to_tier, actor, reason, changed_at
		FROM tier_changes WHERE partner_id = $1 ORDER BY changed_at, id`, partnerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*TierChange
	for rows.Next() {
		tc := &TierChange{}
		var from, to string
		if err := rows.Scan(&tc.ID, &tc.PartnerID, &from, &to, &tc.Actor, &tc.Reason, &tc.ChangedAt); err != nil {
			return nil, err
		}
		tc.FromTier = tier.ID(from)
		tc.ToTier = tier.ID(to)
		out = append(out, tc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanPartner(row *sql.Row) (*Partner, error) {
	pt, err := p.scanPartnerRows(row)
	if err == sql.ErrNoRows {
		return nil, ErrPartnerNotFound
	}
	return pt, err
}

func (p *PostgresStore) scanPartnerRows(row rowScanner) (*Partner, error) {
	pt := &Partner{}
	var (
		tierID, status string
		override       sql.NullInt64
	)
	err := row.Scan(&pt.ID, &pt.Name, &pt.Email, &tierID, &override, &status,
		&pt.ReportingTimezone, &pt.CreatedAt, &pt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	pt.Tier = tier.ID(tierID)
	pt.Status = Status(status)
	if override.Valid {
		v := int(override.Int64)
		pt.RateOverrideBPS = &v
	}
	return pt, nil
}

func (p *PostgresStore) scanCustomer(row *sql.Row) (*Customer, error) {
	c, err := p.scanCustomerRows(row)
	if err == sql.ErrNoRows {
		return nil, ErrCustomerNotFound
	}
	return c, err
}

func (p *PostgresStore) scanCustomerRows(row rowScanner) (*Customer, error) {
	c := &Customer{}
	var (
		status  string
		score   sql.NullFloat64
		churned sql.NullTime
	)
	err := row.Scan(&c.ID, &c.PartnerID, &c.Name, &status, &c.MRRCents, &score,
		&churned, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = CustomerStatus(status)
	if score.Valid {
		v := score.Float64
		c.SatisfactionScore = &v
	}
	if churned.Valid {
		t := churned.Time
		c.ChurnedAt = &t
	}
	return c, nil
}

func overrideVal(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func scoreVal(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// Migrate creates the partner tables (used in dev/test; prod uses
// migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS partners (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			email              TEXT NOT NULL UNIQUE,
			tier               TEXT NOT NULL DEFAULT 'bronze',
			rate_override_bps  INTEGER,
			status             TEXT NOT NULL DEFAULT 'active',
			reporting_timezone TEXT NOT NULL DEFAULT 'UTC',
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS customers (
			id                 TEXT PRIMARY KEY,
			partner_id         TEXT NOT NULL REFERENCES partners(id),
			name               TEXT NOT NULL,
			status             TEXT NOT NULL DEFAULT 'trial',
			mrr_cents          BIGINT NOT NULL DEFAULT 0,
			satisfaction_score DOUBLE PRECISION,
			churned_at         TIMESTAMPTZ,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS tier_changes (
			id         TEXT PRIMARY KEY,
			partner_id TEXT NOT NULL REFERENCES partners(id),
			from_tier  TEXT NOT NULL,
			to_tier    TEXT NOT NULL,
			actor      TEXT NOT NULL,
			reason     TEXT,
			changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_customers_partner ON customers(partner_id, status);
		CREATE INDEX IF NOT EXISTS idx_tier_changes_partner ON tier_changes(partner_id, changed_at);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
