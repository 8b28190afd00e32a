// Package webhooks delivers engine events to partner-registered HTTP
// endpoints.
//
// Partners subscribe a URL to event types and receive signed JSON
// payloads for:
// - Commission lifecycle changes
// - Customer onboarding and churn
// - Tier changes and upgrade eligibility
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/partnerhq/partnerhub/internal/logging"
	"github.com/partnerhq/partnerhub/internal/metrics"
	"github.com/partnerhq/partnerhub/internal/retry"
)

var ErrSubscriptionNotFound = errors.New("webhooks: subscription not found")

// Event names partners can subscribe to.
const (
	EventCommissionRecorded  = "commission.recorded"
	EventCommissionApproved  = "commission.approved"
	EventCommissionPaid      = "commission.paid"
	EventCommissionDisputed  = "commission.disputed"
	EventCommissionReopened  = "commission.reopened"
	EventCustomerOnboarded   = "customer.onboarded"
	EventCustomerChurned     = "customer.churned"
	EventPartnerTierChanged  = "partner.tier_changed"
	EventTierUpgradeEligible = "tier.eligible"
)

// KnownEvent reports whether name is an event partners can subscribe to.
func KnownEvent(name string) bool {
	switch name {
	case EventCommissionRecorded, EventCommissionApproved, EventCommissionPaid,
		EventCommissionDisputed, EventCommissionReopened,
		EventCustomerOnboarded, EventCustomerChurned,
		EventPartnerTierChanged, EventTierUpgradeEligible:
		return true
	}
	return false
}

// Event is one delivery envelope.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Subscription is a partner's registered webhook endpoint.
type Subscription struct {
	ID        string   `json:"id"`
	PartnerID string   `json:"partnerId"`
	URL       string   `json:"url"`
	Secret    string   `json:"-"` // HMAC signing key, shown once at creation
	Events    []string `json:"events"`
	Active    bool     `json:"active"`

	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastSuccess         *time.Time `json:"lastSuccess,omitempty"`
	LastError           string     `json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Subscribed reports whether the subscription covers eventType.
func (s *Subscription) Subscribed(eventType string) bool {
	for _, e := range s.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Store persists webhook subscriptions.
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	ListByPartner(ctx context.Context, partnerID string) ([]*Subscription, error)
	ListByEvent(ctx context.Context, eventType string) ([]*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error
}

// An endpoint that fails this many deliveries in a row is disabled until
// the partner re-enables it.
const maxConsecutiveFailures = 10

const (
	deliveryAttempts  = 3
	deliveryBaseDelay = 500 * time.Millisecond
	deliveryTimeout   = 10 * time.Second
)

// Dispatcher sends events to subscribed endpoints.
type Dispatcher struct {
	store  Store
	client *http.Client
}

// NewDispatcher creates a new webhook dispatcher.
func NewDispatcher(store Store) *Dispatcher {
	return &Dispatcher{
		store:  store,
		client: &http.Client{Timeout: deliveryTimeout},
	}
}

// DispatchToPartner sends an event to the partner's matching
// subscriptions. Delivery runs asynchronously; the caller never blocks on
// a slow endpoint.
func (d *Dispatcher) DispatchToPartner(ctx context.Context, partnerID string, event *Event) error {
	subs, err := d.store.ListByPartner(ctx, partnerID)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}
	for _, sub := range subs {
		if sub.Active && sub.Subscribed(event.Type) {
			go d.deliver(sub, event)
		}
	}
	return nil
}

// Dispatch sends an event to every active subscription covering it,
// regardless of partner. Used for events with no partner attribution.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	subs, err := d.store.ListByEvent(ctx, event.Type)
	if err != nil {
		return fmt.Errorf("listing subscriptions: %w", err)
	}
	for _, sub := range subs {
		if sub.Active {
			go d.deliver(sub, event)
		}
	}
	return nil
}

func (d *Dispatcher) deliver(sub *Subscription, event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payload, err := json.Marshal(event)
	if err != nil {
		d.recordFailure(ctx, sub, fmt.Sprintf("marshal: %v", err))
		return
	}

	err = retry.Do(ctx, deliveryAttempts, deliveryBaseDelay, func() error {
		return d.post(ctx, sub, event, payload)
	})
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		d.recordFailure(ctx, sub, err.Error())
		return
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues("ok").Inc()
	d.recordSuccess(ctx, sub)
}

func (d *Dispatcher) post(ctx context.Context, sub *Subscription, event *Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PartnerHub-Event", event.Type)
	req.Header.Set("X-PartnerHub-Timestamp", fmt.Sprintf("%d", event.Timestamp.Unix()))
	if sub.Secret != "" {
		req.Header.Set("X-PartnerHub-Signature", Sign(payload, sub.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err = fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	// 4xx means the endpoint understood and refused; retrying won't help.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.Permanent(err)
	}
	return err
}

// Sign computes the hex HMAC-SHA256 signature receivers verify with.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func (d *Dispatcher) recordSuccess(ctx context.Context, sub *Subscription) {
	now := time.Now()
	sub.LastSuccess = &now
	sub.LastError = ""
	sub.ConsecutiveFailures = 0
	if err := d.store.Update(ctx, sub); err != nil {
		logging.L(ctx).Warn("webhook status update failed", "subscription_id", sub.ID, "error", err)
	}
}

func (d *Dispatcher) recordFailure(ctx context.Context, sub *Subscription, msg string) {
	sub.LastError = msg
	sub.ConsecutiveFailures++
	if sub.ConsecutiveFailures >= maxConsecutiveFailures {
		sub.Active = false
		logging.P(ctx, sub.PartnerID).Warn("webhook endpoint disabled after repeated failures",
			"subscription_id", sub.ID, "url", sub.URL)
	}
	if err := d.store.Update(ctx, sub); err != nil {
		logging.L(ctx).Warn("webhook status update failed", "subscription_id", sub.ID, "error", err)
	}
}
