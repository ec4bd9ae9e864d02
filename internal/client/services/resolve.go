package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/storage"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
)

// Resolve settles one pending conflict. With keepLocal the local version is
// re-pushed with the force flag so the server accepts it regardless of
// timestamps; otherwise the remote version is applied locally. Either way the
// record leaves the pending set and its dirty flag and tombstone are cleared.
func (s *SyncService) Resolve(ctx context.Context, collection, id string, keepLocal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, pc := range s.pending {
		if pc.Store == collection && pc.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: no pending conflict for %s %q", common.ErrNotFound, collection, id)
	}
	pc := s.pending[idx]

	var err error
	if keepLocal {
		err = s.forcePush(ctx, pc)
	} else {
		err = s.acceptRemote(ctx, pc)
	}
	if err != nil {
		return err
	}

	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	if len(s.pending) == 0 && s.state == StateConflictsPending {
		s.state = StateIdle
	}
	return nil
}

// forcePush re-sends the current local version with the force flag. The
// response delta is deliberately not applied and the cursor not advanced;
// the next regular cycle picks both up.
func (s *SyncService) forcePush(ctx context.Context, pc PendingConflict) error {
	force := &syncwire.ChangeSet{}
	var pushedAt time.Time

	if pc.Deletion {
		tomb, err := s.store.Tombstones.Get(ctx, pc.Store, pc.ID)
		if err != nil {
			return err
		}
		if tomb == nil {
			return fmt.Errorf("%w: tombstone for %s %q is gone", common.ErrNotFound, pc.Store, pc.ID)
		}
		force.Deletes = []syncwire.Tombstone{{ID: tomb.ID, Store: tomb.Store, Key: tomb.Key, DeletedAt: tomb.DeletedAt}}
	} else {
		switch pc.Store {
		case common.CollectionEntries:
			rec, err := s.store.Entries.Get(ctx, pc.ID)
			if err != nil {
				return err
			}
			row, err := s.ser.EntryToWire(rec)
			if err != nil {
				return err
			}
			force.Entries = []*syncwire.EntryRow{row}
			pushedAt = rec.UpdatedAt
		case common.CollectionPeople:
			rec, err := s.store.People.Get(ctx, pc.ID)
			if err != nil {
				return err
			}
			row, err := s.ser.PersonToWire(rec)
			if err != nil {
				return err
			}
			force.People = []*syncwire.PersonRow{row}
			pushedAt = rec.UpdatedAt
		case common.CollectionSessions:
			rec, err := s.store.Sessions.Get(ctx, pc.ID)
			if err != nil {
				return err
			}
			row, err := s.ser.SessionToWire(rec)
			if err != nil {
				return err
			}
			force.Sessions = []*syncwire.SessionRow{row}
			pushedAt = rec.UpdatedAt
		default:
			return fmt.Errorf("unknown collection %q", pc.Store)
		}
	}

	lastSync, err := s.store.Meta.LastSync(ctx)
	if err != nil {
		return err
	}
	if _, err := s.api.Sync(ctx, &syncwire.SyncRequest{LastSync: lastSync, Force: force}); err != nil {
		return err
	}

	if pc.Deletion {
		return s.tracker.ClearTombstone(ctx, pc.Store, pc.ID)
	}
	return s.tracker.MarkSynced(ctx, pc.Store, map[string]time.Time{pc.ID: pushedAt})
}

// acceptRemote replaces the local version with the server's. A remote
// tombstone removes the record; either way the local tombstone, if any,
// is dropped so it cannot be re-pushed.
func (s *SyncService) acceptRemote(ctx context.Context, pc PendingConflict) error {
	switch remote := pc.Remote.(type) {
	case *syncwire.EntryRow:
		if err := applyResolved(ctx, s.store.Entries, remote, s.ser.EntryFromWire); err != nil {
			return err
		}
	case *syncwire.PersonRow:
		if err := applyResolved(ctx, s.store.People, remote, s.ser.PersonFromWire); err != nil {
			return err
		}
	case *syncwire.SessionRow:
		if err := applyResolved(ctx, s.store.Sessions, remote, s.ser.SessionFromWire); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unexpected remote row type %T", pc.Remote)
	}
	return s.tracker.ClearTombstone(ctx, pc.Store, pc.ID)
}

// applyResolved installs the remote side unconditionally: the human chose it,
// so it wins even over a newer local version.
func applyResolved[W syncwire.Row, R models.Record](ctx context.Context, t *storage.Table[R], row W, fromWire func(W) (R, error)) error {
	if row.RowDeletedAt() != nil {
		return t.Delete(ctx, row.RowID())
	}
	rec, err := fromWire(row)
	if err != nil {
		return err
	}
	return t.Overwrite(ctx, rec)
}
