package webhooks

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory subscription store for demo/development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]*Subscription // by ID
}

// NewMemoryStore creates a new in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]*Subscription)}
}

func (m *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *MemoryStore) ListByPartner(_ context.Context, partnerID string) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Subscription
	for _, sub := range m.subs {
		if sub.PartnerID == partnerID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sortSubs(out)
	return out, nil
}

func (m *MemoryStore) ListByEvent(_ context.Context, eventType string) ([]*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Subscription
	for _, sub := range m.subs {
		if sub.Subscribed(eventType) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sortSubs(out)
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[id]; !ok {
		return ErrSubscriptionNotFound
	}
	delete(m.subs, id)
	return nil
}

func sortSubs(subs []*Subscription) {
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].ID < subs[j].ID
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
}

var _ Store = (*MemoryStore)(nil)
