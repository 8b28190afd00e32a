package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/partnerhq/partnerhub/internal/idgen"
	"github.com/partnerhq/partnerhub/internal/logging"
)

// Emitter adapts the dispatcher to the engine's event sink shape.
// Emission is fire-and-forget: errors are logged, never returned, so a
// dead endpoint can't fail a commission write.
type Emitter struct {
	d *Dispatcher
}

// NewEmitter creates a new webhook emitter.
func NewEmitter(d *Dispatcher) *Emitter {
	return &Emitter{d: d}
}

// Emit packages the payload into an event envelope and dispatches it to
// the owning partner's subscriptions. The partner is read from the
// payload's partnerId field; payloads without one go to every subscriber
// of the event type.
func (e *Emitter) Emit(ctx context.Context, event string, payload any) {
	if e == nil || e.d == nil {
		return
	}

	ev := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      event,
		Timestamp: time.Now(),
		Data:      payload,
	}

	var err error
	if partnerID := extractPartnerID(payload); partnerID != "" {
		err = e.d.DispatchToPartner(ctx, partnerID, ev)
	} else {
		err = e.d.Dispatch(ctx, ev)
	}
	if err != nil {
		logging.L(ctx).Warn("webhook dispatch failed", "event", event, "error", err)
	}
}

func extractPartnerID(payload any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	var probe struct {
		PartnerID string `json:"partnerId"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.PartnerID
}
