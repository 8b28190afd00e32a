package partner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/partnerhq/partnerhub/internal/idgen"
	"github.com/partnerhq/partnerhub/internal/logging"
	"github.com/partnerhq/partnerhub/internal/metrics"
	"github.com/partnerhq/partnerhub/internal/tier"
)

// EventSink receives domain events for fan-out (outbound webhooks, live
// dashboard feeds). Emit must not block the caller.
type EventSink interface {
	Emit(ctx context.Context, event string, payload any)
}

// Service provides partner and customer business logic.
type Service struct {
	store  Store
	events EventSink
}

// NewService creates a new partner service. events may be nil.
func NewService(store Store, events EventSink) *Service {
	return &Service{store: store, events: events}
}

func (s *Service) emit(ctx context.Context, event string, payload any) {
	if s.events != nil {
		s.events.Emit(ctx, event, payload)
	}
}

// CreatePartner registers a new partner on the given tier.
func (s *Service) CreatePartner(ctx context.Context, name, email string, tierID tier.ID, tz string) (*Partner, error) {
	if tierID == "" {
		tierID = tier.Bronze
	}
	if !tier.Valid(tierID) {
		return nil, ErrInvalidTier
	}
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, ErrInvalidTimezone
	}

	now := time.Now()
	p := &Partner{
		ID:                idgen.WithPrefix("ptn_"),
		Name:              name,
		Email:             strings.ToLower(email),
		Tier:              tierID,
		Status:            StatusActive,
		ReportingTimezone: tz,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreatePartner(ctx, p); err != nil {
		return nil, err
	}

	logging.P(ctx, p.ID).Info("partner created", "tier", p.Tier)
	return p, nil
}

// Get returns a partner by ID.
func (s *Service) Get(ctx context.Context, id string) (*Partner, error) {
	return s.store.GetPartner(ctx, id)
}

// List returns partners ordered by creation time.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Partner, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListPartners(ctx, limit, offset)
}

// SetStatus suspends or reactivates a partner.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (*Partner, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("partner: invalid status %q", status)
	}
	p, err := s.store.GetPartner(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	if err := s.store.UpdatePartner(ctx, p); err != nil {
		return nil, err
	}
	logging.P(ctx, p.ID).Info("partner status changed", "status", status)
	return p, nil
}

// SetReportingTimezone changes the timezone monthly report buckets use.
func (s *Service) SetReportingTimezone(ctx context.Context, id, tz string) (*Partner, error) {
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, ErrInvalidTimezone
	}
	p, err := s.store.GetPartner(ctx, id)
	if err != nil {
		return nil, err
	}
	p.ReportingTimezone = tz
	p.UpdatedAt = time.Now()
	if err := s.store.UpdatePartner(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetRateOverride sets or clears a partner-specific commission rate.
// Only future commission records are affected; written records keep the
// rate they were computed with.
func (s *Service) SetRateOverride(ctx context.Context, id string, bps *int) (*Partner, error) {
	if bps != nil && (*bps < 0 || *bps > 10_000) {
		return nil, fmt.Errorf("partner: rate override %d out of range [0, 10000]", *bps)
	}
	p, err := s.store.GetPartner(ctx, id)
	if err != nil {
		return nil, err
	}
	p.RateOverrideBPS = bps
	p.UpdatedAt = time.Now()
	if err := s.store.UpdatePartner(ctx, p); err != nil {
		return nil, err
	}
	logging.P(ctx, p.ID).Info("rate override changed", "effective_bps", p.EffectiveRateBPS())
	return p, nil
}

// ChangeTier moves a partner to a new tier and records the change in the
// audit trail. The new tier's rate applies to revenue recorded after the
// change; it never rewrites existing commission records. Downgrades out of
// a white-label tier leave the stored branding in place, the branding
// service stops serving it.
func (s *Service) ChangeTier(ctx context.Context, id string, to tier.ID, actor, reason string) (*Partner, error) {
	if !tier.Valid(to) {
		return nil, ErrInvalidTier
	}
	p, err := s.store.GetPartner(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Tier == to {
		return p, nil
	}

	from := p.Tier
	p.Tier = to
	p.UpdatedAt = time.Now()
	if err := s.store.UpdatePartner(ctx, p); err != nil {
		return nil, err
	}

	tc := &TierChange{
		ID:        idgen.WithPrefix("tch_"),
		PartnerID: p.ID,
		FromTier:  from,
		ToTier:    to,
		Actor:     actor,
		Reason:    reason,
		ChangedAt: p.UpdatedAt,
	}
	if err := s.store.RecordTierChange(ctx, tc); err != nil {
		logging.P(ctx, p.ID).Error("tier change audit write failed", "error", err)
	}

	logging.P(ctx, p.ID).Info("tier changed", "from", from, "to", to, "actor", actor)
	s.emit(ctx, "partner.tier_changed", tc)
	return p, nil
}

// TierHistory returns the partner's tier change audit trail.
func (s *Service) TierHistory(ctx context.Context, id string) ([]*TierChange, error) {
	if _, err := s.store.GetPartner(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListTierChanges(ctx, id)
}

// OnboardCustomer creates a customer under a partner, enforcing the tier's
// customer cap atomically in the store.
func (s *Service) OnboardCustomer(ctx context.Context, partnerID, name string, mrrCents int64, status CustomerStatus) (*Customer, error) {
	p, err := s.store.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	def, ok := tier.Get(p.Tier)
	if !ok {
		return nil, ErrInvalidTier
	}
	if status == "" {
		status = CustomerTrial
	}
	if !ValidCustomerStatus(status) || status == CustomerChurned {
		return nil, fmt.Errorf("partner: invalid onboarding status %q", status)
	}
	if mrrCents < 0 {
		return nil, fmt.Errorf("partner: negative MRR")
	}

	now := time.Now()
	c := &Customer{
		ID:        idgen.WithPrefix("cus_"),
		PartnerID: partnerID,
		Name:      name,
		Status:    status,
		MRRCents:  mrrCents,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateCustomer(ctx, c, def.Limits.MaxCustomers); err != nil {
		if err == ErrLimitExceeded {
			metrics.LimitDenialsTotal.WithLabelValues(string(tier.ResourceCustomers)).Inc()
		}
		return nil, err
	}

	logging.P(ctx, partnerID).Info("customer onboarded", "customer_id", c.ID, "status", c.Status)
	s.emit(ctx, "customer.onboarded", c)
	return c, nil
}

// GetCustomer returns a customer by ID.
func (s *Service) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

// ListCustomers returns all customers for a partner.
func (s *Service) ListCustomers(ctx context.Context, partnerID string) ([]*Customer, error) {
	if _, err := s.store.GetPartner(ctx, partnerID); err != nil {
		return nil, err
	}
	return s.store.ListCustomers(ctx, partnerID)
}

// SetCustomerStatus moves a customer through its lifecycle. Churning stamps
// ChurnedAt; a churned customer frees its tier slot.
func (s *Service) SetCustomerStatus(ctx context.Context, id string, status CustomerStatus) (*Customer, error) {
	if !ValidCustomerStatus(status) {
		return nil, fmt.Errorf("partner: invalid customer status %q", status)
	}
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if status == CustomerChurned && c.Status != CustomerChurned {
		c.ChurnedAt = &now
	}
	if status != CustomerChurned {
		c.ChurnedAt = nil
	}
	c.Status = status
	c.UpdatedAt = now

	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}

	logging.P(ctx, c.PartnerID).Info("customer status changed", "customer_id", c.ID, "status", status)
	if status == CustomerChurned {
		s.emit(ctx, "customer.churned", c)
	}
	return c, nil
}

// SetCustomerMRR updates a customer's monthly recurring revenue.
func (s *Service) SetCustomerMRR(ctx context.Context, id string, mrrCents int64) (*Customer, error) {
	if mrrCents < 0 {
		return nil, fmt.Errorf("partner: negative MRR")
	}
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	c.MRRCents = mrrCents
	c.UpdatedAt = time.Now()
	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RecordSatisfaction stores a 0-5 feedback score for a customer.
func (s *Service) RecordSatisfaction(ctx context.Context, customerID string, score float64) (*Customer, error) {
	if score < 0 || score > 5 {
		return nil, ErrInvalidScore
	}
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	c.SatisfactionScore = &score
	c.UpdatedAt = time.Now()
	if err := s.store.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CheckLimit answers a pre-flight limit question for a partner. Customer
// usage comes from the store; other resources are metered by the platform
// services that own them, so the caller supplies current usage.
//
// A positive answer is advisory. Creation paths re-check atomically.
func (s *Service) CheckLimit(ctx context.Context, partnerID string, res tier.Resource, current, delta int) (tier.Decision, error) {
	p, err := s.store.GetPartner(ctx, partnerID)
	if err != nil {
		return tier.Decision{}, err
	}
	def, ok := tier.Get(p.Tier)
	if !ok {
		return tier.Decision{}, ErrInvalidTier
	}

	if res == tier.ResourceCustomers {
		current, err = s.store.CountCustomers(ctx, partnerID)
		if err != nil {
			return tier.Decision{}, err
		}
	}
	if delta <= 0 {
		delta = 1
	}

	d := tier.CheckLimit(def, res, current, delta)
	if !d.Allowed {
		metrics.LimitDenialsTotal.WithLabelValues(string(res)).Inc()
		logging.P(ctx, partnerID).Info("limit denied", "resource", res, "limit", d.Limit, "current", d.Current)
	}
	return d, nil
}
