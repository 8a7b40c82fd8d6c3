package audit

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryRecorder stores audit records in memory for demo/testing.
type MemoryRecorder struct {
	actions []*Action
	nextID  int64
	mu      sync.RWMutex
}

// NewMemoryRecorder creates an in-memory audit recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(_ context.Context, action *Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	cp := *action
	cp.ID = m.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.actions = append(m.actions, &cp)
	return nil
}

func (m *MemoryRecorder) Find(_ context.Context, q Query) ([]*Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var cursorID int64
	if q.Cursor != nil {
		cursorID, _ = strconv.ParseInt(q.Cursor.ID, 10, 64)
	}

	var result []*Action
	// Iterate in reverse for descending order.
	for i := len(m.actions) - 1; i >= 0 && len(result) < limit; i-- {
		a := m.actions[i]
		if q.Cursor != nil {
			// Keyset position: only records strictly older than the cursor.
			if a.CreatedAt.After(q.Cursor.CreatedAt) {
				continue
			}
			if a.CreatedAt.Equal(q.Cursor.CreatedAt) && a.ID >= cursorID {
				continue
			}
		}
		if q.ActorID != "" && a.ActorID != q.ActorID {
			continue
		}
		if q.TargetID != "" && a.TargetID != q.TargetID {
			continue
		}
		if q.Action != "" && a.Action != q.Action {
			continue
		}
		if !q.From.IsZero() && a.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && a.CreatedAt.After(q.To) {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	return result, nil
}

// Actions returns all stored audit records (for testing).
func (m *MemoryRecorder) Actions() []*Action {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Action, len(m.actions))
	copy(result, m.actions)
	return result
}
