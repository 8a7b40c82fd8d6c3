package disputes

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory dispute store for demo/development mode.
type MemoryStore struct {
	disputes map[string]*Dispute
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory dispute store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{disputes: make(map[string]*Dispute)}
}

func (m *MemoryStore) Create(_ context.Context, d *Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.disputes[d.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Dispute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.disputes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) TransitionStatus(_ context.Context, id string, from, to Status, resolution string, at time.Time) (*Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if d.Status != from {
		return nil, ErrConflict
	}
	d.Status = to
	d.UpdatedAt = at
	if resolution != "" {
		d.Resolution = resolution
	}
	if to == StatusResolved || to == StatusClosed {
		d.ResolvedAt = &at
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) ListByStatus(_ context.Context, status Status, limit int) ([]*Dispute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Dispute
	for _, d := range m.disputes {
		if d.Status == status {
			cp := *d
			result = append(result, &cp)
		}
	}
	sortQueue(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListByTransaction(_ context.Context, transactionID string) ([]*Dispute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Dispute
	for _, d := range m.disputes {
		if d.TransactionID == transactionID {
			cp := *d
			result = append(result, &cp)
		}
	}
	sortQueue(result)
	return result, nil
}

func (m *MemoryStore) ListByReporter(_ context.Context, reporterID string, limit int) ([]*Dispute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Dispute
	for _, d := range m.disputes {
		if d.ReporterID == reporterID {
			cp := *d
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// priorityRank orders the moderation queue, most urgent first.
var priorityRank = map[Priority]int{
	PriorityUrgent: 0,
	PriorityHigh:   1,
	PriorityMedium: 2,
	PriorityLow:    3,
}

// sortQueue orders by priority, then oldest first within a priority.
func sortQueue(disputes []*Dispute) {
	sort.Slice(disputes, func(i, j int) bool {
		ri, rj := priorityRank[disputes[i].Priority], priorityRank[disputes[j].Priority]
		if ri != rj {
			return ri < rj
		}
		return disputes[i].CreatedAt.Before(disputes[j].CreatedAt)
	})
}
