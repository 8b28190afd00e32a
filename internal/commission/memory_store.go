package commission

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory commission store for demo/development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record // by ID
	idemKey map[string]string  // partnerID+"\x00"+key → record ID
}

// NewMemoryStore creates a new in-memory commission store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		idemKey: make(map[string]string),
	}
}

func idemMapKey(partnerID, key string) string {
	return partnerID + "\x00" + key
}

func (m *MemoryStore) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.idemKey[idemMapKey(r.PartnerID, r.IdempotencyKey)]; exists {
		return ErrIdempotencyConflict
	}

	cp := *r
	m.records[r.ID] = &cp
	m.idemKey[idemMapKey(r.PartnerID, r.IdempotencyKey)] = r.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) GetByIdempotencyKey(_ context.Context, partnerID, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.idemKey[idemMapKey(partnerID, key)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *m.records[id]
	return &cp, nil
}

// UpdateStatus holds the write lock across the status comparison and the
// swap, which makes the check-and-set atomic.
func (m *MemoryStore) UpdateStatus(_ context.Context, r *Record, expected Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[r.ID]
	if !ok {
		return ErrRecordNotFound
	}
	if stored.Status != expected {
		return ErrConcurrentModification
	}

	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *MemoryStore) ListByPartner(_ context.Context, partnerID string, from, to time.Time) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Record
	for _, r := range m.records {
		if r.PartnerID != partnerID {
			continue
		}
		if !from.IsZero() && r.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !r.CreatedAt.Before(to) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
