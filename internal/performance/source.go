package performance

import (
	"context"
	"database/sql"
	"time"

	"github.com/partnerhq/partnerhub/internal/commission"
	"github.com/partnerhq/partnerhub/internal/partner"
	"github.com/partnerhq/partnerhub/internal/tier"
)

// Source collects snapshot inputs. Implementations decide how to make the
// collection consistent at a single point in time.
type Source interface {
	Collect(ctx context.Context, partnerID string) (Inputs, error)
}

// StoreSource reads through the domain stores. Used with the in-memory
// stores, where each read is internally consistent and writes between the
// two reads are tolerable for a dev/demo deployment.
type StoreSource struct {
	Partners    partner.Store
	Commissions commission.Store
}

func (s StoreSource) Collect(ctx context.Context, partnerID string) (Inputs, error) {
	p, err := s.Partners.GetPartner(ctx, partnerID)
	if err != nil {
		return Inputs{}, err
	}
	customers, err := s.Partners.ListCustomers(ctx, partnerID)
	if err != nil {
		return Inputs{}, err
	}
	records, err := s.Commissions.ListByPartner(ctx, partnerID, time.Time{}, time.Time{})
	if err != nil {
		return Inputs{}, err
	}
	return Inputs{Partner: p, Customers: customers, Records: records, At: time.Now()}, nil
}

// PostgresSource collects all rows inside one REPEATABLE READ read-only
// transaction, so the customer portfolio and the ledger come from the same
// database snapshot.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource creates a snapshot source over a PostgreSQL database.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Collect(ctx context.Context, partnerID string) (Inputs, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return Inputs{}, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanPartnerTx(tx, ctx, partnerID)
	if err != nil {
		return Inputs{}, err
	}

	customers, err := scanCustomersTx(tx, ctx, partnerID)
	if err != nil {
		return Inputs{}, err
	}

	records, err := scanRecordsTx(tx, ctx, partnerID)
	if err != nil {
		return Inputs{}, err
	}

	if err := tx.Commit(); err != nil {
		return Inputs{}, err
	}
	return Inputs{Partner: p, Customers: customers, Records: records, At: time.Now()}, nil
}

func scanPartnerTx(tx *sql.Tx, ctx context.Context, partnerID string) (*partner.Partner, error) {
	p := &partner.Partner{}
	var (
		tierID, status string
		override       sql.NullInt64
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, email, tier, rate_override_bps, status, reporting_timezone, created_at, updated_at
		FROM partners WHERE id = $1`, partnerID).
		Scan(&p.ID, &p.Name, &p.Email, &tierID, &override, &status,
			&p.ReportingTimezone, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, partner.ErrPartnerNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Tier = tier.ID(tierID)
	p.Status = partner.Status(status)
	if override.Valid {
		v := int(override.Int64)
		p.RateOverrideBPS = &v
	}
	return p, nil
}

func scanCustomersTx(tx *sql.Tx, ctx context.Context, partnerID string) ([]*partner.Customer, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, partner_id, name, status, mrr_cents, satisfaction_score, churned_at, created_at, updated_at
		FROM customers WHERE partner_id = $1 ORDER BY created_at, id`, partnerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*partner.Customer
	for rows.Next() {
		c := &partner.Customer{}
		var (
			status  string
			score   sql.NullFloat64
			churned sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.PartnerID, &c.Name, &status, &c.MRRCents,
			&score, &churned, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Status = partner.CustomerStatus(status)
		if score.Valid {
			v := score.Float64
			c.SatisfactionScore = &v
		}
		if churned.Valid {
			t := churned.Time
			c.ChurnedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanRecordsTx(tx *sql.Tx, ctx context.Context, partnerID string) ([]*commission.Record, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, partner_id, customer_id, revenue_amount_cents, rate_bps,
			commission_amount_cents, status, idempotency_key, source, external_ref,
			payment_date, dispute_reason, created_at, updated_at
		FROM commission_records WHERE partner_id = $1 ORDER BY created_at, id`, partnerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*commission.Record
	for rows.Next() {
		r := &commission.Record{}
		var (
			status      string
			source, ref sql.NullString
			payment     sql.NullTime
			reason      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.PartnerID, &r.CustomerID, &r.RevenueAmountCents,
			&r.RateBPS, &r.CommissionAmountCents, &status, &r.IdempotencyKey,
			&source, &ref, &payment, &reason, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Status = commission.Status(status)
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
		out = append(out, r)
	}
	return out, rows.Err()
}

var (
	_ Source = StoreSource{}
	_ Source = (*PostgresSource)(nil)
)
