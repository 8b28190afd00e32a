package webhooks

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PostgresStore persists webhook subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed subscription store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the webhook_subscriptions table. Used by tests and
// development; production schemas go through the migrate command.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS webhook_subscriptions (
			id                   VARCHAR(64) PRIMARY KEY,
			partner_id           VARCHAR(64) NOT NULL,
			url                  TEXT NOT NULL,
			secret               VARCHAR(64) NOT NULL,
			events               JSONB NOT NULL,
			active               BOOLEAN DEFAULT TRUE,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			last_success         TIMESTAMPTZ,
			last_error           TEXT,
			created_at           TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_webhook_subs_partner ON webhook_subscriptions(partner_id);
		CREATE INDEX IF NOT EXISTS idx_webhook_subs_active ON webhook_subscriptions(active) WHERE active = TRUE;
	`)
	return err
}

func (p *PostgresStore) Create(ctx context.Context, sub *Subscription) error {
	eventsJSON, err := json.Marshal(sub.Events)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO webhook_subscriptions (id, partner_id, url, secret, events, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.PartnerID, sub.URL, sub.Secret, eventsJSON, sub.Active, sub.CreatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Subscription, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, partner_id, url, secret, events, active, consecutive_failures, last_success, last_error, created_at
		FROM webhook_subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
	}
	return sub, err
}

func (p *PostgresStore) ListByPartner(ctx context.Context, partnerID string) ([]*Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, partner_id, url, secret, events, active, consecutive_failures, last_success, last_error, created_at
		FROM webhook_subscriptions WHERE partner_id = $1 ORDER BY created_at, id`, partnerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanSubscriptions(rows)
}

func (p *PostgresStore) ListByEvent(ctx context.Context, eventType string) ([]*Subscription, error) {
	eventsJSON, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, partner_id, url, secret, events, active, consecutive_failures, last_success, last_error, created_at
		FROM webhook_subscriptions
		WHERE events @> $1::jsonb ORDER BY created_at, id`, string(eventsJSON))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanSubscriptions(rows)
}

func (p *PostgresStore) Update(ctx context.Context, sub *Subscription) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE webhook_subscriptions SET
			active = $1,
			consecutive_failures = $2,
			last_success = $3,
			last_error = $4
		WHERE id = $5`,
		sub.Active, sub.ConsecutiveFailures, sub.LastSuccess, sub.LastError, sub.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrSubscriptionNotFound
	}
	return err
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrSubscriptionNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	sub := &Subscription{}
	var eventsJSON []byte
	var lastSuccess sql.NullTime
	var lastError sql.NullString

	err := row.Scan(
		&sub.ID, &sub.PartnerID, &sub.URL, &sub.Secret, &eventsJSON,
		&sub.Active, &sub.ConsecutiveFailures, &lastSuccess, &lastError, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(eventsJSON, &sub.Events); err != nil {
		return nil, err
	}
	if lastSuccess.Valid {
		sub.LastSuccess = &lastSuccess.Time
	}
	sub.LastError = lastError.String
	return sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]*Subscription, error) {
	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
