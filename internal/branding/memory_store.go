package branding

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory branding store for demo/development.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]*Config // by partner ID
}

// NewMemoryStore creates a new in-memory branding store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[string]*Config)}
}

func (m *MemoryStore) Get(_ context.Context, partnerID string) (*Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[partnerID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (m *MemoryStore) Upsert(_ context.Context, cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *cfg
	m.configs[cfg.PartnerID] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)
