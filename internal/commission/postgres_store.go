package commission

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists commission records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed commission store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `id, partner_id, customer_id, revenue_amount_cents, rate_bps,
	commission_amount_cents, status, idempotency_key, source, external_ref,
	payment_date, dispute_reason, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, r *Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO commission_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, r.PartnerID, r.CustomerID, r.RevenueAmountCents, r.RateBPS,
		r.CommissionAmountCents, string(r.Status), r.IdempotencyKey, r.Source, r.ExternalRef,
		r.PaymentDate, r.DisputeReason, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		// Unique index on (partner_id, idempotency_key).
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	return p.scanRecord(p.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM commission_records WHERE id = $1`, id))
}

func (p *PostgresStore) GetByIdempotencyKey(ctx context.Context, partnerID, key string) (*Record, error) {
	return p.scanRecord(p.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM commission_records
		WHERE partner_id = $1 AND idempotency_key = $2`, partnerID, key))
}

// UpdateStatus is a conditional update: the WHERE clause pins the expected
// status, so a concurrent transition leaves zero rows affected and we
// report the conflict instead of overwriting it.
func (p *PostgresStore) UpdateStatus(ctx context.Context, r *Record, expected Status) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE commission_records
		SET status = $1, payment_date = $2, dispute_reason = $3, updated_at = $4
		WHERE id = $5 AND status = $6`,
		string(r.Status), r.PaymentDate, r.DisputeReason, r.UpdatedAt,
		r.ID, string(expected),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing record from a lost race.
		if _, getErr := p.Get(ctx, r.ID); getErr == ErrRecordNotFound {
			return ErrRecordNotFound
		}
		return ErrConcurrentModification
	}
	return nil
}

func (p *PostgresStore) ListByPartner(ctx context.Context, partnerID string, from, to time.Time) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM commission_records WHERE partner_id = $1`
	args := []any{partnerID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}
	query += ` ORDER BY created_at, id`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Record
	for rows.Next() {
		r, err := p.scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanRecord(row *sql.Row) (*Record, error) {
	r, err := p.scanRecordRows(row)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	return r, err
}

func (p *PostgresStore) scanRecordRows(row rowScanner) (*Record, error) {
	r := &Record{}
	var (
		status      string
		source, ref sql.NullString
		payment     sql.NullTime
		reason      sql.NullString
	)
	err := row.Scan(&r.ID, &r.PartnerID, &r.CustomerID, &r.RevenueAmountCents, &r.RateBPS,
		&r.CommissionAmountCents, &status, &r.IdempotencyKey, &source, &ref,
		&payment, &reason, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = Status(status)
	if source.Valid {
		r.Source = source.String
	}
	if ref.Valid {
		r.ExternalRef = ref.String
	}
	if payment.Valid {
		t := payment.Time
		r.PaymentDate = &t
	}
	if reason.Valid {
		r.DisputeReason = reason.String
	}
	return r, nil
}

// Migrate creates the commission_records table (used in dev/test; prod
// uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS commission_records (
			id                      TEXT PRIMARY KEY,
			partner_id              TEXT NOT NULL,
			customer_id             TEXT NOT NULL,
			revenue_amount_cents    BIGINT NOT NULL,
			rate_bps                INTEGER NOT NULL,
			commission_amount_cents BIGINT NOT NULL,
			status                  TEXT NOT NULL DEFAULT 'pending',
			idempotency_key         TEXT NOT NULL,
			source                  TEXT,
			external_ref            TEXT,
			payment_date            TIMESTAMPTZ,
			dispute_reason          TEXT,
			created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (partner_id, idempotency_key)
		);
		CREATE INDEX IF NOT EXISTS idx_commissions_partner_created ON commission_records(partner_id, created_at, id);
		CREATE INDEX IF NOT EXISTS idx_commissions_status ON commission_records(status);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
