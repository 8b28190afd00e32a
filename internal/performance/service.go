package performance

import (
	"context"

	"github.com/partnerhq/partnerhub/internal/logging"
	"github.com/partnerhq/partnerhub/internal/metrics"
	"github.com/partnerhq/partnerhub/internal/tier"
	"github.com/partnerhq/partnerhub/internal/traces"
)

// EventSink receives eligibility events for fan-out.
type EventSink interface {
	Emit(ctx context.Context, event string, payload any)
}

// Service computes performance snapshots and tier eligibility.
type Service struct {
	source Source
	events EventSink
}

// NewService creates a new performance service. events may be nil.
func NewService(source Source, events EventSink) *Service {
	return &Service{source: source, events: events}
}

// Snapshot produces a point-in-time performance snapshot for a partner.
func (s *Service) Snapshot(ctx context.Context, partnerID string) (*Snapshot, error) {
	ctx, span := traces.StartSpan(ctx, "performance.Snapshot", traces.PartnerID(partnerID))
	defer span.End()

	in, err := s.source.Collect(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	return Compute(in), nil
}

// Eligibility evaluates whether a partner qualifies for the next tier
// based on a fresh snapshot. Becoming eligible emits an event; the tier
// itself only moves through the admin tier-change operation.
func (s *Service) Eligibility(ctx context.Context, partnerID string) (*Snapshot, tier.Evaluation, error) {
	snap, err := s.Snapshot(ctx, partnerID)
	if err != nil {
		return nil, tier.Evaluation{}, err
	}

	ev := tier.Evaluate(snap.Tier, snap.Metrics())

	outcome := "not_eligible"
	switch {
	case ev.AtTop:
		outcome = "at_top"
	case ev.Eligible:
		outcome = "eligible"
	}
	metrics.EligibilityChecksTotal.WithLabelValues(outcome).Inc()

	if ev.Eligible {
		logging.P(ctx, partnerID).Info("partner eligible for upgrade",
			"current_tier", ev.CurrentTier, "next_tier", ev.NextTier)
		if s.events != nil {
			s.events.Emit(ctx, "tier.eligible", map[string]any{
				"partnerId":   partnerID,
				"currentTier": ev.CurrentTier,
				"nextTier":    ev.NextTier,
			})
		}
	}
	return snap, ev, nil
}
