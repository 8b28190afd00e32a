// Package partner manages revenue-sharing partners and the customers they
// bring onto the platform.
package partner

import (
	"errors"
	"time"

	"github.com/partnerhq/partnerhub/internal/tier"
)

// Errors
var (
	ErrPartnerNotFound  = errors.New("partner: not found")
	ErrCustomerNotFound = errors.New("partner: customer not found")
	ErrEmailTaken       = errors.New("partner: email already registered")
	ErrInvalidTier      = errors.New("partner: unknown tier")
	ErrInvalidTimezone  = errors.New("partner: invalid reporting timezone")
	ErrInvalidScore     = errors.New("partner: satisfaction score must be between 0 and 5")
	ErrLimitExceeded    = errors.New("partner: tier limit exceeded")
	ErrNotOwned         = errors.New("partner: customer belongs to another partner")
)

// Status represents a partner's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// ValidStatus reports whether s is a known partner status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended:
		return true
	}
	return false
}

// CustomerStatus represents a referred customer's lifecycle state.
type CustomerStatus string

const (
	CustomerTrial     CustomerStatus = "trial"
	CustomerActive    CustomerStatus = "active"
	CustomerSuspended CustomerStatus = "suspended"
	CustomerChurned   CustomerStatus = "churned"
)

// ValidCustomerStatus reports whether s is a known customer status.
func ValidCustomerStatus(s CustomerStatus) bool {
	switch s {
	case CustomerTrial, CustomerActive, CustomerSuspended, CustomerChurned:
		return true
	}
	return false
}

// Partner is an organisation that resells the platform and earns commission
// on the revenue its customers generate.
type Partner struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Tier  tier.ID `json:"tier"`
	// RateOverrideBPS, when set, replaces the tier's commission rate for
	// this partner. Nil means "use the tier rate".
	RateOverrideBPS   *int      `json:"rateOverrideBps,omitempty"`
	Status            Status    `json:"status"`
	ReportingTimezone string    `json:"reportingTimezone"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// EffectiveRateBPS resolves the commission rate that applies to new revenue
// for this partner right now: the override if present, else the tier rate.
func (p *Partner) EffectiveRateBPS() int {
	if p.RateOverrideBPS != nil {
		return *p.RateOverrideBPS
	}
	def, ok := tier.Get(p.Tier)
	if !ok {
		return 0
	}
	return def.CommissionRateBPS
}

// Customer is an end customer referred by a partner.
type Customer struct {
	ID        string         `json:"id"`
	PartnerID string         `json:"partnerId"`
	Name      string         `json:"name"`
	Status    CustomerStatus `json:"status"`
	MRRCents  int64          `json:"mrrCents"`
	// SatisfactionScore is the latest 0-5 feedback score, if any.
	SatisfactionScore *float64   `json:"satisfactionScore,omitempty"`
	ChurnedAt         *time.Time `json:"churnedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// TierChange is an audit entry for a partner tier transition.
type TierChange struct {
	ID        string    `json:"id"`
	PartnerID string    `json:"partnerId"`
	FromTier  tier.ID   `json:"fromTier"`
	ToTier    tier.ID   `json:"toTier"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}
