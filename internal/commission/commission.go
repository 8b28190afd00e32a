// Package commission maintains the commission ledger: one record per
// revenue event, carrying the rate it was computed with and a lifecycle
// status.
//
// Flow:
//  1. Revenue event arrives → record written as pending at the partner's
//     current effective rate
//  2. Finance approves → pending → approved
//  3. Payout executes → approved → paid (payment date stamped)
//  4. Either side disputes before payout → pending|approved → disputed
//  5. Dispute resolves → an explicit reopen puts the record back to pending
//
// Records are append-only in amount and rate: tier changes and rate
// overrides never rewrite what an existing record earned.
package commission

import (
	"errors"
	"time"
)

var (
	ErrRecordNotFound         = errors.New("commission: record not found")
	ErrInvalidAmount          = errors.New("commission: revenue amount must be positive")
	ErrInvalidTransition      = errors.New("commission: transition not allowed from current status")
	ErrConcurrentModification = errors.New("commission: record changed concurrently, retry")
	ErrPaymentDateRequired    = errors.New("commission: payment date required to mark paid")
	ErrIdempotencyConflict    = errors.New("commission: idempotency key already used")
)

// Status represents the state of a commission record.
type Status string

const (
	StatusPending  Status = "pending"  // written, awaiting finance approval
	StatusApproved Status = "approved" // approved for the next payout run
	StatusPaid     Status = "paid"     // paid out, terminal
	StatusDisputed Status = "disputed" // frozen pending dispute resolution
)

// ValidStatus reports whether s is a known commission status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusPaid, StatusDisputed:
		return true
	}
	return false
}

// CanTransition reports whether the normal lifecycle permits from → to.
// Reopening a dispute (disputed → pending) is deliberately excluded; that
// path goes through Service.Reopen so it leaves an audit trail.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusDisputed
	case StatusApproved:
		return to == StatusPaid || to == StatusDisputed
	}
	return false
}

// Record is a single commission ledger entry.
type Record struct {
	ID         string `json:"id"`
	PartnerID  string `json:"partnerId"`
	CustomerID string `json:"customerId"`

	RevenueAmountCents    int64 `json:"revenueAmountCents"`
	RateBPS               int   `json:"rateBps"` // rate at recording time, frozen
	CommissionAmountCents int64 `json:"commissionAmountCents"`

	Status Status `json:"status"`

	// IdempotencyKey dedupes revenue events; one key, one record.
	IdempotencyKey string `json:"idempotencyKey"`
	// Source is where the revenue event came from ("api", "stripe").
	Source string `json:"source,omitempty"`
	// ExternalRef points at the upstream document (e.g. a Stripe invoice).
	ExternalRef string `json:"externalRef,omitempty"`

	PaymentDate   *time.Time `json:"paymentDate,omitempty"`
	DisputeReason string     `json:"disputeReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsTerminal returns true once the record has been paid out.
func (r *Record) IsTerminal() bool {
	return r.Status == StatusPaid
}
