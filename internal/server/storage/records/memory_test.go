package records

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntryMemStore() *MemoryStore[*syncwire.EntryRow] {
	return NewMemoryStore(
		func(r *syncwire.EntryRow) *syncwire.EntryRow {
			c := *r
			return &c
		},
		func(id string, at time.Time) *syncwire.EntryRow {
			return &syncwire.EntryRow{ID: id, UpdatedAt: at, DeletedAt: &at}
		},
	)
}

func entryRow(id, content string, at time.Time) *syncwire.EntryRow {
	return &syncwire.EntryRow{ID: id, Content: &content, UpdatedAt: at}
}

func TestMemory_UpsertGuard(t *testing.T) {
	s := newEntryMemStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.Upsert(ctx, entryRow("e1", "old", base), false))

	// newer wins
	require.NoError(t, s.Upsert(ctx, entryRow("e1", "newer", base.Add(time.Minute)), false))
	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "newer", *got.Content)

	// older is rejected
	err = s.Upsert(ctx, entryRow("e1", "stale", base.Add(-time.Minute)), false)
	assert.ErrorIs(t, err, common.ErrLWWConflict)
	got, err = s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "newer", *got.Content)
}

func TestMemory_EqualTimestampOverwrites(t *testing.T) {
	s := newEntryMemStore()
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.Upsert(ctx, entryRow("e1", "first", at), false))
	require.NoError(t, s.Upsert(ctx, entryRow("e1", "re-push", at), false))

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "re-push", *got.Content)
}

func TestMemory_ForceBypassesGuard(t *testing.T) {
	s := newEntryMemStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.Upsert(ctx, entryRow("e1", "newer", base.Add(time.Hour)), false))
	require.NoError(t, s.Upsert(ctx, entryRow("e1", "forced old", base), true))

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "forced old", *got.Content)
}

func TestMemory_SoftDelete(t *testing.T) {
	s := newEntryMemStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.Upsert(ctx, entryRow("e1", "alive", base), false))
	require.NoError(t, s.SoftDelete(ctx, "e1", base.Add(time.Minute), false))

	got, err := s.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, got.Content)
	require.NotNil(t, got.DeletedAt)

	// a deletion older than the stored edit is rejected
	require.NoError(t, s.Upsert(ctx, entryRow("e2", "kept editing", base.Add(time.Hour)), false))
	err = s.SoftDelete(ctx, "e2", base, false)
	assert.ErrorIs(t, err, common.ErrLWWConflict)

	// deleting a record this store never saw just records the tombstone
	require.NoError(t, s.SoftDelete(ctx, "e3", base, false))
	got, err = s.Get(ctx, "e3")
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)
}

func TestMemory_GetMissing(t *testing.T) {
	s := newEntryMemStore()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemory_SelectUpdatedSince(t *testing.T) {
	s := newEntryMemStore()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.Upsert(ctx, entryRow("old", "before cursor", base.Add(-time.Hour)), false))
	require.NoError(t, s.Upsert(ctx, entryRow("b", "second", base.Add(2*time.Minute)), false))
	require.NoError(t, s.Upsert(ctx, entryRow("a", "first", base.Add(time.Minute)), false))
	require.NoError(t, s.SoftDelete(ctx, "gone", base.Add(3*time.Minute), false))

	rows, err := s.SelectUpdatedSince(ctx, base)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// ordered by updated_at; tombstones are included
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "b", rows[1].ID)
	assert.Equal(t, "gone", rows[2].ID)
	assert.NotNil(t, rows[2].DeletedAt)
}

func TestMemory_ConcurrentPushesConverge(t *testing.T) {
	s := newEntryMemStore()
	ctx := context.Background()
	base := time.Now().UTC()

	// many devices race on the same record; the newest write must win and
	// every loser must see a conflict, never a lost update
	const n = 32
	var wg sync.WaitGroup
	conflicts := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conflicts[i] = s.Upsert(ctx, entryRow("shared", "v", base.Add(time.Duration(i)*time.Second)), false)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(base.Add((n-1)*time.Second)))

	for _, err := range conflicts {
		if err != nil {
			assert.ErrorIs(t, err, common.ErrLWWConflict)
		}
	}
}
