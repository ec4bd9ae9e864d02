package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
)

// MemoryStore keeps a collection in a mutex-guarded map. It applies the same
// guard semantics as the postgres store and backs the STORE=memory mode and
// tests.
type MemoryStore[R syncwire.Row] struct {
	mu         sync.RWMutex
	rows       map[string]R
	clone      func(R) R
	newDeleted func(id string, deletedAt time.Time) R
}

func NewMemoryStore[R syncwire.Row](clone func(R) R, newDeleted func(string, time.Time) R) *MemoryStore[R] {
	return &MemoryStore[R]{
		rows:       make(map[string]R),
		clone:      clone,
		newDeleted: newDeleted,
	}
}

func (s *MemoryStore[R]) Upsert(_ context.Context, row R, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !force {
		if current, ok := s.rows[row.RowID()]; ok && current.RowUpdatedAt().After(row.RowUpdatedAt()) {
			return common.ErrLWWConflict
		}
	}
	s.rows[row.RowID()] = s.clone(row)
	return nil
}

func (s *MemoryStore[R]) SoftDelete(_ context.Context, id string, deletedAt time.Time, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deletedAt = deletedAt.UTC()
	if !force {
		if current, ok := s.rows[id]; ok && current.RowUpdatedAt().After(deletedAt) {
			return common.ErrLWWConflict
		}
	}
	s.rows[id] = s.newDeleted(id, deletedAt)
	return nil
}

func (s *MemoryStore[R]) Get(_ context.Context, id string) (R, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		var zero R
		return zero, common.ErrNotFound
	}
	return s.clone(row), nil
}

func (s *MemoryStore[R]) SelectUpdatedSince(_ context.Context, since time.Time) ([]R, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []R
	for _, row := range s.rows {
		if row.RowUpdatedAt().After(since) {
			result = append(result, s.clone(row))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].RowUpdatedAt().Equal(result[j].RowUpdatedAt()) {
			return result[i].RowUpdatedAt().Before(result[j].RowUpdatedAt())
		}
		return result[i].RowID() < result[j].RowID()
	})
	return result, nil
}
