// Package services orchestrates the client side of the sync protocol: the
// cycle state machine and the conflict resolution workflow.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/serialize"
	"github.com/dmitrijs2005/daybook/internal/client/storage"
	"github.com/dmitrijs2005/daybook/internal/client/tracker"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
)

// State is the coordinator's phase within a cycle.
type State string

const (
	StateIdle             State = "idle"
	StateCollecting       State = "collecting"
	StatePushing          State = "pushing"
	StateReconciling      State = "reconciling"
	StateConflictsPending State = "conflicts_pending"
)

// API is the transport surface the coordinator needs.
type API interface {
	Sync(ctx context.Context, req *syncwire.SyncRequest) (*syncwire.SyncResponse, error)
}

// PendingConflict is an unresolved record pair retained for the resolution
// workflow. Local is the record (or tombstone, when Deletion is set) as it
// was when the conflict surfaced; Remote is the decrypted authoritative row.
type PendingConflict struct {
	Store    string
	ID       string
	Local    any
	Remote   syncwire.Row
	Deletion bool
}

// CycleSummary reports what a sync cycle did.
type CycleSummary struct {
	Pushed     int
	Deleted    int
	Applied    int
	Failed     int
	Conflicts  int
	ServerTime time.Time
}

// SyncService runs sync cycles against the remote service. One cycle runs to
// completion before another may start; local mutations during a cycle are
// safe because they re-dirty their records and ride the next cycle.
type SyncService struct {
	store   *storage.Store
	tracker *tracker.Tracker
	ser     *serialize.Serializer
	api     API
	logger  logging.Logger

	mu      sync.Mutex
	state   State
	pending []PendingConflict
}

func NewSyncService(store *storage.Store, tr *tracker.Tracker, ser *serialize.Serializer, api API, logger logging.Logger) *SyncService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &SyncService{
		store:   store,
		tracker: tr,
		ser:     ser,
		api:     api,
		logger:  logger,
		state:   StateIdle,
	}
}

// State returns the coordinator's current phase.
func (s *SyncService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conflicts returns a copy of the unresolved conflicts.
func (s *SyncService) Conflicts() []PendingConflict {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PendingConflict(nil), s.pending...)
}

// RunCycle executes one full sync cycle: collect dirty state, push, apply the
// remote delta, clear acknowledged flags, and retain conflicts. On transport
// failure the cycle aborts before the cursor advances or any flag is cleared,
// so it is safe to retry in full.
func (s *SyncService) RunCycle(ctx context.Context) (*CycleSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateCollecting

	entries, entrySnap, err := collect(ctx, s.store.Entries, s.ser.EntryToWire)
	if err != nil {
		return s.abort(err)
	}
	people, peopleSnap, err := collect(ctx, s.store.People, s.ser.PersonToWire)
	if err != nil {
		return s.abort(err)
	}
	sessions, sessionSnap, err := collect(ctx, s.store.Sessions, s.ser.SessionToWire)
	if err != nil {
		return s.abort(err)
	}

	tombs, err := s.tracker.ListTombstones(ctx)
	if err != nil {
		return s.abort(err)
	}
	deletes := make([]syncwire.Tombstone, 0, len(tombs))
	for _, t := range tombs {
		deletes = append(deletes, syncwire.Tombstone{
			ID: t.ID, Store: t.Store, Key: t.Key, DeletedAt: t.DeletedAt,
		})
	}

	lastSync, err := s.store.Meta.LastSync(ctx)
	if err != nil {
		return s.abort(err)
	}

	req := &syncwire.SyncRequest{LastSync: lastSync}
	cs := &syncwire.ChangeSet{Entries: entries, People: people, Sessions: sessions, Deletes: deletes}
	if !cs.Empty() {
		req.Updates = cs
	}

	s.state = StatePushing
	resp, err := s.api.Sync(ctx, req)
	if err != nil {
		s.logger.Warn(ctx, "sync cycle aborted", "error", err)
		return s.abort(err)
	}

	s.state = StateReconciling

	conflictIDs := map[string]map[string]bool{
		common.CollectionEntries:  conflictKeys(resp.Conflicts.Entries),
		common.CollectionPeople:   conflictKeys(resp.Conflicts.People),
		common.CollectionSessions: conflictKeys(resp.Conflicts.Sessions),
	}

	summary := &CycleSummary{
		Pushed:     len(entries) + len(people) + len(sessions),
		Deleted:    len(deletes),
		ServerTime: resp.ServerTime,
	}

	// Remote-applied writes go through ApplyRemote and never re-dirty
	// records; failures are isolated per record and logged.
	applyDelta(ctx, s, s.store.Entries, resp.Updates.Entries,
		conflictIDs[common.CollectionEntries], s.ser.EntryFromWire, summary)
	applyDelta(ctx, s, s.store.People, resp.Updates.People,
		conflictIDs[common.CollectionPeople], s.ser.PersonFromWire, summary)
	applyDelta(ctx, s, s.store.Sessions, resp.Updates.Sessions,
		conflictIDs[common.CollectionSessions], s.ser.SessionFromWire, summary)

	if err := s.store.Meta.SetLastSync(ctx, resp.ServerTime); err != nil {
		return s.abort(err)
	}

	if err := s.clearAcknowledged(ctx, common.CollectionEntries, entrySnap, conflictIDs); err != nil {
		return s.abort(err)
	}
	if err := s.clearAcknowledged(ctx, common.CollectionPeople, peopleSnap, conflictIDs); err != nil {
		return s.abort(err)
	}
	if err := s.clearAcknowledged(ctx, common.CollectionSessions, sessionSnap, conflictIDs); err != nil {
		return s.abort(err)
	}

	for _, t := range tombs {
		if conflictIDs[t.Store][t.Key] {
			continue
		}
		if err := s.tracker.ClearTombstone(ctx, t.Store, t.Key); err != nil {
			return s.abort(err)
		}
	}

	s.pending = s.collectConflicts(ctx, resp)
	summary.Conflicts = len(s.pending)

	if len(s.pending) > 0 {
		s.state = StateConflictsPending
	} else {
		s.state = StateIdle
	}

	s.logger.Info(ctx, "sync cycle finished",
		"pushed", summary.Pushed, "deleted", summary.Deleted,
		"applied", summary.Applied, "failed", summary.Failed,
		"conflicts", summary.Conflicts)
	return summary, nil
}

func (s *SyncService) abort(err error) (*CycleSummary, error) {
	if len(s.pending) > 0 {
		s.state = StateConflictsPending
	} else {
		s.state = StateIdle
	}
	return nil, err
}

// collect gathers a collection's dirty records, serialized for the wire,
// along with the updated_at snapshot used for acknowledgment.
func collect[R models.Record, W syncwire.Row](ctx context.Context, t *storage.Table[R], toWire func(R) (W, error)) ([]W, map[string]time.Time, error) {
	dirty, err := t.ListDirty(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]W, 0, len(dirty))
	snap := make(map[string]time.Time, len(dirty))
	for _, r := range dirty {
		w, err := toWire(r)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to serialize %s %q: %w", t.Name(), r.GetID(), err)
		}
		rows = append(rows, w)
		snap[r.GetID()] = r.GetUpdatedAt()
	}
	return rows, snap, nil
}

// applyDelta upserts (or deletes) non-conflicting remote rows locally. Both
// write paths are guarded by updated_at: the delta echoes rows this cycle's
// push just wrote, and a copy edited while the push was on the wire must not
// be rolled back to the echoed version.
func applyDelta[W syncwire.Row, R models.Record](ctx context.Context, s *SyncService, t *storage.Table[R], rows []W, conflicted map[string]bool, fromWire func(W) (R, error), summary *CycleSummary) {
	for _, row := range rows {
		if conflicted[row.RowID()] {
			continue
		}

		if row.RowDeletedAt() != nil {
			if err := t.ApplyRemoteDelete(ctx, row.RowID(), row.RowUpdatedAt()); err != nil {
				summary.Failed++
				s.logger.Error(ctx, "failed to apply remote deletion",
					"collection", t.Name(), "id", row.RowID(), "error", err)
				continue
			}
			summary.Applied++
			continue
		}

		rec, err := fromWire(row)
		if err != nil {
			summary.Failed++
			s.logger.Error(ctx, "failed to decode remote row",
				"collection", t.Name(), "id", row.RowID(), "error", err)
			continue
		}
		if err := t.ApplyRemote(ctx, rec); err != nil {
			summary.Failed++
			s.logger.Error(ctx, "failed to apply remote row",
				"collection", t.Name(), "id", row.RowID(), "error", err)
			continue
		}
		summary.Applied++
	}
}

func (s *SyncService) clearAcknowledged(ctx context.Context, collection string, snap map[string]time.Time, conflictIDs map[string]map[string]bool) error {
	acked := make(map[string]time.Time, len(snap))
	for id, at := range snap {
		if conflictIDs[collection][id] {
			continue
		}
		acked[id] = at
	}
	return s.tracker.MarkSynced(ctx, collection, acked)
}

func (s *SyncService) collectConflicts(ctx context.Context, resp *syncwire.SyncResponse) []PendingConflict {
	var pending []PendingConflict
	for _, c := range resp.Conflicts.Entries {
		pending = append(pending, s.pendingConflict(ctx, common.CollectionEntries, c.ID, c.Remote))
	}
	for _, c := range resp.Conflicts.People {
		pending = append(pending, s.pendingConflict(ctx, common.CollectionPeople, c.ID, c.Remote))
	}
	for _, c := range resp.Conflicts.Sessions {
		pending = append(pending, s.pendingConflict(ctx, common.CollectionSessions, c.ID, c.Remote))
	}
	return pending
}

// pendingConflict snapshots the local side of a rejected push. When the local
// record is gone the conflict came from a tombstone push.
func (s *SyncService) pendingConflict(ctx context.Context, collection, id string, remote syncwire.Row) PendingConflict {
	pc := PendingConflict{Store: collection, ID: id, Remote: remote}

	local, err := s.localRecord(ctx, collection, id)
	if err == nil {
		pc.Local = local
		return pc
	}
	if !errors.Is(err, common.ErrNotFound) {
		s.logger.Error(ctx, "failed to snapshot conflict", "collection", collection, "id", id, "error", err)
	}

	if tomb, terr := s.store.Tombstones.Get(ctx, collection, id); terr == nil && tomb != nil {
		pc.Local = tomb
		pc.Deletion = true
	}
	return pc
}

func (s *SyncService) localRecord(ctx context.Context, collection, id string) (any, error) {
	switch collection {
	case common.CollectionEntries:
		return s.store.Entries.Get(ctx, id)
	case common.CollectionPeople:
		return s.store.People.Get(ctx, id)
	case common.CollectionSessions:
		return s.store.Sessions.Get(ctx, id)
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
}

func conflictKeys[R any](conflicts []syncwire.Conflict[R]) map[string]bool {
	keys := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		keys[c.ID] = true
	}
	return keys
}
