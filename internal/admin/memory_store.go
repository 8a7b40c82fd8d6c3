package admin

import (
	"context"
	"sort"
	"sync"
)

// MemorySellerStore is an in-memory seller store for demo/development mode.
type MemorySellerStore struct {
	sellers map[string]*Seller
	mu      sync.RWMutex
}

// NewMemorySellerStore creates a new in-memory seller store.
func NewMemorySellerStore() *MemorySellerStore {
	return &MemorySellerStore{sellers: make(map[string]*Seller)}
}

func (m *MemorySellerStore) Upsert(_ context.Context, s *Seller) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sellers[s.ID] = &cp
	return nil
}

func (m *MemorySellerStore) Get(_ context.Context, id string) (*Seller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sellers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemorySellerStore) List(_ context.Context, status SellerStatus, limit int) ([]*Seller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Seller
	for _, s := range m.sellers {
		if status != "" && s.Status != status {
			continue
		}
		cp := *s
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
