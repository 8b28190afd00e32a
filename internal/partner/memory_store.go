package partner

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/partnerhq/partnerhub/internal/tier"
)

// MemoryStore is an in-memory partner store for demo/development.
type MemoryStore struct {
	mu        sync.RWMutex
	partners  map[string]*Partner  // by ID
	emails    map[string]string    // email → ID
	customers map[string]*Customer // by ID
	changes   map[string][]*TierChange
}

// NewMemoryStore creates a new in-memory partner store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partners:  make(map[string]*Partner),
		emails:    make(map[string]string),
		customers: make(map[string]*Customer),
		changes:   make(map[string][]*TierChange),
	}
}

func (m *MemoryStore) CreatePartner(_ context.Context, p *Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(p.Email)
	if _, exists := m.emails[email]; exists {
		return ErrEmailTaken
	}

	cp := *p
	m.partners[p.ID] = &cp
	m.emails[email] = p.ID
	return nil
}

func (m *MemoryStore) GetPartner(_ context.Context, id string) (*Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.partners[id]
	if !ok {
		return nil, ErrPartnerNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetPartnerByEmail(_ context.Context, email string) (*Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrPartnerNotFound
	}
	cp := *m.partners[id]
	return &cp, nil
}

func (m *MemoryStore) UpdatePartner(_ context.Context, p *Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.partners[p.ID]; !ok {
		return ErrPartnerNotFound
	}
	cp := *p
	m.partners[p.ID] = &cp
	return nil
}

func (m *MemoryStore) ListPartners(_ context.Context, limit, offset int) ([]*Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*Partner, 0, len(m.partners))
	for _, p := range m.partners {
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// CreateCustomer holds the write lock across the count and the insert, so
// the limit check and the slot claim are a single atomic step.
func (m *MemoryStore) CreateCustomer(_ context.Context, c *Customer, maxCustomers int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.partners[c.PartnerID]; !ok {
		return ErrPartnerNotFound
	}

	if maxCustomers != tier.Unlimited {
		count := 0
		for _, existing := range m.customers {
			if existing.PartnerID == c.PartnerID && existing.Status != CustomerChurned {
				count++
			}
		}
		if count >= maxCustomers {
			return ErrLimitExceeded
		}
	}

	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

func (m *MemoryStore) GetCustomer(_ context.Context, id string) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) UpdateCustomer(_ context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[c.ID]; !ok {
		return ErrCustomerNotFound
	}
	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

func (m *MemoryStore) ListCustomers(_ context.Context, partnerID string) ([]*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Customer
	for _, c := range m.customers {
		if c.PartnerID == partnerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) CountCustomers(_ context.Context, partnerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, c := range m.customers {
		if c.PartnerID == partnerID && c.Status != CustomerChurned {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) RecordTierChange(_ context.Context, tc *TierChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *tc
	m.changes[tc.PartnerID] = append(m.changes[tc.PartnerID], &cp)
	return nil
}

func (m *MemoryStore) ListTierChanges(_ context.Context, partnerID string) ([]*TierChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*TierChange, 0, len(m.changes[partnerID]))
	for _, tc := range m.changes[partnerID] {
		cp := *tc
		out = append(out, &cp)
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
