package commission

import (
	"context"
	"time"
)

// Store persists commission records.
type Store interface {
	// Create inserts a record. A reused idempotency key for the same
	// partner returns ErrIdempotencyConflict.
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	GetByIdempotencyKey(ctx context.Context, partnerID, key string) (*Record, error)

	// UpdateStatus applies the record's current fields only if the stored
	// status still equals expected (compare-and-set). A lost race returns
	// ErrConcurrentModification.
	UpdateStatus(ctx context.Context, r *Record, expected Status) error

	// ListByPartner returns records with CreatedAt in [from, to), ordered
	// by creation time ascending, ID ascending on ties. Zero times mean
	// unbounded.
	ListByPartner(ctx context.Context, partnerID string, from, to time.Time) ([]*Record, error)
}
