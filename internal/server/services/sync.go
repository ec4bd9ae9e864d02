// Package services implements the merge engine behind POST /sync.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/cryptox"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/server/storage"
	"github.com/dmitrijs2005/daybook/internal/server/storage/records"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
)

// Service merges pushed change sets into the authoritative stores and
// computes the delta the device is missing.
//
// Rows are encrypted before they reach a store and decrypted on the way out,
// so everything at rest is ciphertext. Rows already encrypted by the client
// pass through unchanged.
type Service struct {
	stores *storage.Stores
	codec  *cryptox.Codec
	logger logging.Logger
	now    func() time.Time
}

func NewService(stores *storage.Stores, codec *cryptox.Codec, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Service{stores: stores, codec: codec, logger: logger, now: time.Now}
}

// Merge processes one sync request: guarded last-write-wins application of
// Updates, unguarded application of Force, then the delta of everything that
// changed after the client's cursor. ServerTime is taken before any write so
// a record committed while the response is in flight is never skipped by the
// next cycle.
func (s *Service) Merge(ctx context.Context, req *syncwire.SyncRequest) (*syncwire.SyncResponse, error) {
	resp := syncwire.NewSyncResponse()
	resp.ServerTime = s.now().UTC()

	for _, cs := range []struct {
		set   *syncwire.ChangeSet
		force bool
	}{
		{req.Updates, false},
		{req.Force, true},
	} {
		if cs.set.Empty() {
			continue
		}
		if err := applyRows(ctx, s, s.stores.Entries, cs.set.Entries, cs.force, &resp.Conflicts.Entries); err != nil {
			return nil, err
		}
		if err := applyRows(ctx, s, s.stores.People, cs.set.People, cs.force, &resp.Conflicts.People); err != nil {
			return nil, err
		}
		if err := applyRows(ctx, s, s.stores.Sessions, cs.set.Sessions, cs.force, &resp.Conflicts.Sessions); err != nil {
			return nil, err
		}
		if err := s.applyDeletes(ctx, cs.set.Deletes, cs.force, resp); err != nil {
			return nil, err
		}
	}

	since := time.Time{}
	if req.LastSync != nil {
		since = *req.LastSync
	}

	var err error
	if resp.Updates.Entries, err = delta(ctx, s, s.stores.Entries, since); err != nil {
		return nil, err
	}
	if resp.Updates.People, err = delta(ctx, s, s.stores.People, since); err != nil {
		return nil, err
	}
	if resp.Updates.Sessions, err = delta(ctx, s, s.stores.Sessions, since); err != nil {
		return nil, err
	}

	return resp, nil
}

// applyRows pushes rows into a store, turning every guard rejection into a
// conflict that carries the decrypted authoritative row.
func applyRows[R syncwire.Row](ctx context.Context, s *Service, store records.Store[R], rows []R, force bool, conflicts *[]syncwire.Conflict[R]) error {
	for _, row := range rows {
		if err := row.EncryptFields(s.codec); err != nil {
			return fmt.Errorf("encrypt error: %w", err)
		}

		err := store.Upsert(ctx, row, force)
		if err == nil {
			continue
		}
		if !errors.Is(err, common.ErrLWWConflict) {
			return err
		}

		remote, err := store.Get(ctx, row.RowID())
		if err != nil {
			return err
		}
		if err := remote.DecryptFields(s.codec); err != nil {
			return fmt.Errorf("decrypt error: %w", err)
		}
		*conflicts = append(*conflicts, syncwire.Conflict[R]{ID: row.RowID(), Remote: remote})
	}
	return nil
}

// applyDeletes turns tombstones into soft deletes, collection by collection.
// A tombstone losing to a newer remote edit surfaces as a conflict in its
// target collection.
func (s *Service) applyDeletes(ctx context.Context, deletes []syncwire.Tombstone, force bool, resp *syncwire.SyncResponse) error {
	for _, t := range deletes {
		switch t.Store {
		case common.CollectionEntries:
			if err := applyDelete(ctx, s, s.stores.Entries, t, force, &resp.Conflicts.Entries); err != nil {
				return err
			}
		case common.CollectionPeople:
			if err := applyDelete(ctx, s, s.stores.People, t, force, &resp.Conflicts.People); err != nil {
				return err
			}
		case common.CollectionSessions:
			if err := applyDelete(ctx, s, s.stores.Sessions, t, force, &resp.Conflicts.Sessions); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown collection %q", t.Store)
		}
	}
	return nil
}

func applyDelete[R syncwire.Row](ctx context.Context, s *Service, store records.Store[R], t syncwire.Tombstone, force bool, conflicts *[]syncwire.Conflict[R]) error {
	err := store.SoftDelete(ctx, t.Key, t.DeletedAt, force)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrLWWConflict) {
		return err
	}

	remote, err := store.Get(ctx, t.Key)
	if err != nil {
		return err
	}
	if err := remote.DecryptFields(s.codec); err != nil {
		return fmt.Errorf("decrypt error: %w", err)
	}
	*conflicts = append(*conflicts, syncwire.Conflict[R]{ID: t.Key, Remote: remote})
	return nil
}

// delta returns the decrypted rows changed after since, tombstones included.
func delta[R syncwire.Row](ctx context.Context, s *Service, store records.Store[R], since time.Time) ([]R, error) {
	rows, err := store.SelectUpdatedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := row.DecryptFields(s.codec); err != nil {
			return nil, fmt.Errorf("decrypt error: %w", err)
		}
	}
	if rows == nil {
		rows = []R{}
	}
	return rows, nil
}
