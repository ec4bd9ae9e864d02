// Package tracker implements the local change tracker: dirty flags, the
// tombstone log, and the acknowledgment rules that keep in-flight pushes from
// clearing newer local edits.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/storage"
	"github.com/dmitrijs2005/daybook/internal/logging"
)

// Tracker mediates all sync-status bookkeeping over the local store.
type Tracker struct {
	store  *storage.Store
	logger logging.Logger
}

func New(store *storage.Store, logger logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Tracker{store: store, logger: logger}
}

// MarkDirty flags a record for the next sync cycle. Normal mutations go
// through models.Touch + Table.Save and arrive dirty already; this is the
// explicit path for callers that bypass it.
func (t *Tracker) MarkDirty(ctx context.Context, collection, id string) error {
	ops, err := t.store.Collection(collection)
	if err != nil {
		return err
	}
	return ops.MarkDirty(ctx, id)
}

// MarkSynced acknowledges the exact versions that were pushed: for every id
// the flag is cleared only if the record still carries the pushed updated_at.
// A record edited again while the push was in flight stays dirty, so the
// acknowledgment of an older push can never swallow a newer local write.
func (t *Tracker) MarkSynced(ctx context.Context, collection string, pushed map[string]time.Time) error {
	ops, err := t.store.Collection(collection)
	if err != nil {
		return err
	}
	for id, at := range pushed {
		cleared, err := ops.MarkSynced(ctx, id, at)
		if err != nil {
			return err
		}
		if !cleared {
			t.logger.Debug(ctx, "record re-edited during push, staying dirty",
				"collection", collection, "id", id)
		}
	}
	return nil
}

// RecordTombstone logs a local deletion and removes the record from its
// collection, atomically. The tombstone stays until the server confirms the
// deletion.
func (t *Tracker) RecordTombstone(ctx context.Context, collection, id string, deletedAt time.Time) error {
	if _, err := t.store.Collection(collection); err != nil {
		return err
	}

	tomb := models.NewTombstone(collection, id, deletedAt)
	return t.store.WithTx(ctx, func(ctx context.Context, txStore *storage.Store) error {
		if err := txStore.Tombstones.Add(ctx, tomb); err != nil {
			return err
		}
		ops, err := txStore.Collection(collection)
		if err != nil {
			return err
		}
		if err := ops.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to remove deleted record: %w", err)
		}
		return nil
	})
}

// ListTombstones returns every pending deletion.
func (t *Tracker) ListTombstones(ctx context.Context) ([]*models.Tombstone, error) {
	return t.store.Tombstones.List(ctx)
}

// ClearTombstone drops a confirmed (or resolved) deletion from the log.
func (t *Tracker) ClearTombstone(ctx context.Context, collection, id string) error {
	return t.store.Tombstones.Delete(ctx, collection, id)
}
