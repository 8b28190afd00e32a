package commission

import (
	"context"
	"errors"
	"time"

	"github.com/partnerhq/partnerhub/internal/idgen"
	"github.com/partnerhq/partnerhub/internal/logging"
	"github.com/partnerhq/partnerhub/internal/metrics"
	"github.com/partnerhq/partnerhub/internal/money"
	"github.com/partnerhq/partnerhub/internal/partner"
	"github.com/partnerhq/partnerhub/internal/traces"
)

// PartnerDirectory resolves partners and customers. Satisfied by
// partner.Store; kept as an interface so commission doesn't depend on a
// concrete store.
type PartnerDirectory interface {
	GetPartner(ctx context.Context, id string) (*partner.Partner, error)
	GetCustomer(ctx context.Context, id string) (*partner.Customer, error)
}

// EventSink receives commission lifecycle events for fan-out.
type EventSink interface {
	Emit(ctx context.Context, event string, payload any)
}

// RevenueEvent is an incoming revenue notification.
type RevenueEvent struct {
	PartnerID      string `json:"partnerId"`
	CustomerID     string `json:"customerId"`
	AmountCents    int64  `json:"amountCents"`
	IdempotencyKey string `json:"idempotencyKey"`
	Source         string `json:"source,omitempty"`
	ExternalRef    string `json:"externalRef,omitempty"`
}

// Service provides commission ledger business logic.
type Service struct {
	store    Store
	partners PartnerDirectory
	events   EventSink
}

// NewService creates a new commission service. events may be nil.
func NewService(store Store, partners PartnerDirectory, events EventSink) *Service {
	return &Service{store: store, partners: partners, events: events}
}

func (s *Service) emit(ctx context.Context, event string, payload any) {
	if s.events != nil {
		s.events.Emit(ctx, event, payload)
	}
}

// RecordRevenue writes a pending commission record for a revenue event.
// The partner's effective rate is resolved once, here, and frozen into the
// record. Replaying the same idempotency key returns the original record
// and created=false.
func (s *Service) RecordRevenue(ctx context.Context, ev RevenueEvent) (rec *Record, created bool, err error) {
	ctx, span := traces.StartSpan(ctx, "commission.RecordRevenue",
		traces.PartnerID(ev.PartnerID),
		traces.CustomerID(ev.CustomerID),
		traces.IdempotencyKey(ev.IdempotencyKey),
	)
	defer span.End()

	if ev.AmountCents <= 0 || ev.AmountCents > money.MaxCents {
		metrics.RevenueEventsTotal.WithLabelValues("rejected").Inc()
		return nil, false, ErrInvalidAmount
	}
	if ev.IdempotencyKey == "" {
		metrics.RevenueEventsTotal.WithLabelValues("rejected").Inc()
		return nil, false, errors.New("commission: idempotency key required")
	}

	p, err := s.partners.GetPartner(ctx, ev.PartnerID)
	if err != nil {
		metrics.RevenueEventsTotal.WithLabelValues("rejected").Inc()
		return nil, false, err
	}
	c, err := s.partners.GetCustomer(ctx, ev.CustomerID)
	if err != nil {
		metrics.RevenueEventsTotal.WithLabelValues("rejected").Inc()
		return nil, false, err
	}
	if c.PartnerID != p.ID {
		metrics.RevenueEventsTotal.WithLabelValues("rejected").Inc()
		return nil, false, partner.ErrNotOwned
	}

	rate := p.EffectiveRateBPS()
	now := time.Now()
	rec = &Record{
		ID:                    idgen.WithPrefix("cmr_"),
		PartnerID:             p.ID,
		CustomerID:            c.ID,
		RevenueAmountCents:    ev.AmountCents,
		RateBPS:               rate,
		CommissionAmountCents: money.Commission(ev.AmountCents, rate),
		Status:                StatusPending,
		IdempotencyKey:        ev.IdempotencyKey,
		Source:                ev.Source,
		ExternalRef:           ev.ExternalRef,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrIdempotencyConflict) {
			existing, getErr := s.store.GetByIdempotencyKey(ctx, p.ID, ev.IdempotencyKey)
			if getErr != nil {
				return nil, false, getErr
			}
			metrics.RevenueEventsTotal.WithLabelValues("duplicate").Inc()
			logging.P(ctx, p.ID).Info("revenue event replayed",
				"idempotency_key", ev.IdempotencyKey, "record_id", existing.ID)
			return existing, false, nil
		}
		metrics.RevenueEventsTotal.WithLabelValues("error").Inc()
		return nil, false, err
	}

	metrics.RevenueEventsTotal.WithLabelValues("recorded").Inc()
	logging.P(ctx, p.ID).Info("commission recorded",
		"record_id", rec.ID,
		"customer_id", c.ID,
		"revenue_cents", ev.AmountCents,
		"rate_bps", rate,
		"commission_cents", rec.CommissionAmountCents,
	)
	s.emit(ctx, "commission.recorded", rec)
	return rec, true, nil
}

// Get returns a commission record by ID.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.store.Get(ctx, id)
}

// ListByPartner returns a partner's records in a time window.
func (s *Service) ListByPartner(ctx context.Context, partnerID string, from, to time.Time) ([]*Record, error) {
	if _, err := s.partners.GetPartner(ctx, partnerID); err != nil {
		return nil, err
	}
	return s.store.ListByPartner(ctx, partnerID, from, to)
}

// Approve moves a pending record to approved.
func (s *Service) Approve(ctx context.Context, id string) (*Record, error) {
	return s.transition(ctx, id, StatusApproved, nil, "")
}

// MarkPaid moves an approved record to paid. The payment date is required;
// it anchors the record in payout reports.
func (s *Service) MarkPaid(ctx context.Context, id string, paymentDate *time.Time) (*Record, error) {
	if paymentDate == nil {
		metrics.CommissionTransitionsTotal.WithLabelValues(string(StatusPaid), "rejected").Inc()
		return nil, ErrPaymentDateRequired
	}
	return s.transition(ctx, id, StatusPaid, paymentDate, "")
}

// Dispute freezes a pending or approved record.
func (s *Service) Dispute(ctx context.Context, id, reason string) (*Record, error) {
	return s.transition(ctx, id, StatusDisputed, nil, reason)
}

// Transition applies a caller-named target status via the normal lifecycle
// rules.
func (s *Service) Transition(ctx context.Context, id string, target Status, paymentDate *time.Time, reason string) (*Record, error) {
	switch target {
	case StatusApproved:
		return s.Approve(ctx, id)
	case StatusPaid:
		return s.MarkPaid(ctx, id, paymentDate)
	case StatusDisputed:
		return s.Dispute(ctx, id, reason)
	default:
		return nil, ErrInvalidTransition
	}
}

// Reopen puts a disputed record back to pending. This is the only way out
// of disputed, and it is an explicit resolution action, never part of the
// normal lifecycle.
func (s *Service) Reopen(ctx context.Context, id, resolution string) (*Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusDisputed {
		metrics.CommissionTransitionsTotal.WithLabelValues(string(StatusPending), "rejected").Inc()
		return nil, ErrInvalidTransition
	}

	rec.Status = StatusPending
	rec.DisputeReason = ""
	rec.UpdatedAt = time.Now()
	if err := s.store.UpdateStatus(ctx, rec, StatusDisputed); err != nil {
		metrics.CommissionTransitionsTotal.WithLabelValues(string(StatusPending), "conflict").Inc()
		return nil, err
	}

	metrics.CommissionTransitionsTotal.WithLabelValues(string(StatusPending), "ok").Inc()
	logging.P(ctx, rec.PartnerID).Info("dispute reopened",
		"record_id", rec.ID, "resolution", resolution)
	s.emit(ctx, "commission.reopened", rec)
	return rec, nil
}

func (s *Service) transition(ctx context.Context, id string, target Status, paymentDate *time.Time, reason string) (*Record, error) {
	ctx, span := traces.StartSpan(ctx, "commission.Transition",
		traces.RecordID(id), traces.Status(string(target)))
	defer span.End()

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	from := rec.Status
	if !CanTransition(from, target) {
		metrics.CommissionTransitionsTotal.WithLabelValues(string(target), "rejected").Inc()
		return nil, ErrInvalidTransition
	}

	rec.Status = target
	rec.UpdatedAt = time.Now()
	if target == StatusPaid {
		rec.PaymentDate = paymentDate
	}
	if target == StatusDisputed {
		rec.DisputeReason = reason
	}

	if err := s.store.UpdateStatus(ctx, rec, from); err != nil {
		metrics.CommissionTransitionsTotal.WithLabelValues(string(target), "conflict").Inc()
		return nil, err
	}

	metrics.CommissionTransitionsTotal.WithLabelValues(string(target), "ok").Inc()
	logging.P(ctx, rec.PartnerID).Info("commission transitioned",
		"record_id", rec.ID, "from", from, "to", target)
	s.emit(ctx, "commission."+string(target), rec)
	return rec, nil
}
