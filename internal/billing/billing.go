// Package billing ingests Stripe webhook events and turns paid invoices
// into commission ledger entries.
//
// The Stripe event ID doubles as the idempotency key, so Stripe's
// at-least-once delivery collapses to exactly one ledger record per
// invoice payment.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/partnerhq/partnerhub/internal/commission"
	"github.com/partnerhq/partnerhub/internal/logging"
	"github.com/partnerhq/partnerhub/internal/partner"
	"github.com/partnerhq/partnerhub/internal/retry"
	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

var (
	ErrBadSignature    = errors.New("billing: webhook signature verification failed")
	ErrMissingMetadata = errors.New("billing: invoice metadata missing partner_id or customer_id")
)

// Metadata keys Stripe invoices must carry so revenue can be attributed.
const (
	metaPartnerID  = "partner_id"
	metaCustomerID = "customer_id"
)

const (
	ledgerAttempts  = 3
	ledgerBaseDelay = 100 * time.Millisecond
)

// Ledger is the slice of the commission service billing needs.
type Ledger interface {
	RecordRevenue(ctx context.Context, ev commission.RevenueEvent) (*commission.Record, bool, error)
}

// Result is the outcome of processing one webhook delivery.
type Result struct {
	EventType string             `json:"eventType"`
	Ignored   bool               `json:"ignored"`
	Created   bool               `json:"created"`
	Record    *commission.Record `json:"record,omitempty"`
}

// Service verifies and processes inbound Stripe webhooks.
type Service struct {
	ledger    Ledger
	secret    string
	tolerance time.Duration
}

// NewService creates a new billing service. tolerance bounds how stale a
// signed payload may be; zero falls back to five minutes.
func NewService(ledger Ledger, secret string, tolerance time.Duration) *Service {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &Service{ledger: ledger, secret: secret, tolerance: tolerance}
}

// ProcessWebhook verifies the Stripe signature and dispatches the event.
// Event types other than invoice.paid are acknowledged and skipped.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, sigHeader string) (*Result, error) {
	event, err := webhook.ConstructEventWithTolerance(payload, sigHeader, s.secret, s.tolerance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	if event.Type != "invoice.paid" {
		logging.L(ctx).Debug("stripe event skipped", "event_id", event.ID, "type", event.Type)
		return &Result{EventType: string(event.Type), Ignored: true}, nil
	}

	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, fmt.Errorf("billing: decoding invoice from event %s: %w", event.ID, err)
	}

	partnerID := inv.Metadata[metaPartnerID]
	customerID := inv.Metadata[metaCustomerID]
	if partnerID == "" || customerID == "" {
		return nil, fmt.Errorf("%w: event %s", ErrMissingMetadata, event.ID)
	}

	ev := commission.RevenueEvent{
		PartnerID:      partnerID,
		CustomerID:     customerID,
		AmountCents:    inv.AmountPaid,
		IdempotencyKey: event.ID,
		Source:         "stripe",
		ExternalRef:    inv.ID,
	}

	var rec *commission.Record
	var created bool
	err = retry.Do(ctx, ledgerAttempts, ledgerBaseDelay, func() error {
		var lerr error
		rec, created, lerr = s.ledger.RecordRevenue(ctx, ev)
		if lerr == nil {
			return nil
		}
		// Validation failures won't heal on retry; transient store errors
		// might.
		if errors.Is(lerr, commission.ErrInvalidAmount) ||
			errors.Is(lerr, partner.ErrPartnerNotFound) ||
			errors.Is(lerr, partner.ErrCustomerNotFound) ||
			errors.Is(lerr, partner.ErrNotOwned) {
			return retry.Permanent(lerr)
		}
		return lerr
	})
	if err != nil {
		return nil, err
	}

	logging.P(ctx, partnerID).Info("stripe invoice ingested",
		"event_id", event.ID,
		"invoice_id", inv.ID,
		"amount_cents", inv.AmountPaid,
		"created", created,
	)
	return &Result{EventType: string(event.Type), Created: created, Record: rec}, nil
}
