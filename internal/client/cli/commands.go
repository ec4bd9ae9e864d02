package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
)

func (a *App) cmdSync(ctx context.Context) error {
	summary, err := a.sync.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Fprintf(a.out, "pushed %d, deleted %d, applied %d, failed %d, conflicts %d\n",
		summary.Pushed, summary.Deleted, summary.Applied, summary.Failed, summary.Conflicts)
	if summary.Conflicts > 0 {
		fmt.Fprintln(a.out, `run "daybook conflicts" to review them`)
	}
	return nil
}

func (a *App) cmdProbe(ctx context.Context) error {
	serverTime, err := a.api.Probe(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "service is up, server time %s\n", serverTime.Format(time.RFC3339))
	return nil
}

func (a *App) cmdStatus(ctx context.Context) error {
	entries, err := a.store.Entries.ListDirty(ctx)
	if err != nil {
		return err
	}
	people, err := a.store.People.ListDirty(ctx)
	if err != nil {
		return err
	}
	sessions, err := a.store.Sessions.ListDirty(ctx)
	if err != nil {
		return err
	}
	tombs, err := a.tracker.ListTombstones(ctx)
	if err != nil {
		return err
	}
	lastSync, err := a.store.Meta.LastSync(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "dirty: %d entries, %d people, %d sessions\n",
		len(entries), len(people), len(sessions))
	fmt.Fprintf(a.out, "pending deletions: %d\n", len(tombs))
	if lastSync == nil {
		fmt.Fprintln(a.out, "never synced")
	} else {
		fmt.Fprintf(a.out, "last sync: %s\n", lastSync.Format(time.RFC3339))
	}
	return nil
}

func (a *App) cmdList(ctx context.Context) error {
	entries, err := a.store.Entries.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "no entries")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(a.out, "%s  %s  [%s]  %s\n",
			e.ID, e.UpdatedAt.Format("2006-01-02 15:04"), e.SyncStatus, firstLine(e.Content))
	}
	return nil
}

func (a *App) cmdAddEntry(ctx context.Context, args []string) error {
	content := strings.Join(args, " ")
	if content == "" {
		return fmt.Errorf("add-entry requires content")
	}

	entry := models.NewEntry(content)
	if err := a.store.Entries.Save(ctx, entry); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created entry %s\n", entry.ID)
	return nil
}

func (a *App) cmdDeleteEntry(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("delete-entry requires an id")
	}
	id := args[0]

	if _, err := a.store.Entries.Get(ctx, id); err != nil {
		return err
	}
	if err := a.tracker.RecordTombstone(ctx, common.CollectionEntries, id, time.Now().UTC()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted entry %s\n", id)
	return nil
}

// refreshConflicts re-derives the pending set. Conflicts live in process
// memory, but the dirty flags and tombstones that produced them persist, so a
// fresh cycle surfaces the same set in a new process.
func (a *App) refreshConflicts(ctx context.Context) error {
	if len(a.sync.Conflicts()) > 0 {
		return nil
	}
	_, err := a.sync.RunCycle(ctx)
	return err
}

func (a *App) cmdConflicts(ctx context.Context) error {
	if err := a.refreshConflicts(ctx); err != nil {
		return err
	}
	pending := a.sync.Conflicts()
	if len(pending) == 0 {
		fmt.Fprintln(a.out, "no pending conflicts")
		return nil
	}
	for _, pc := range pending {
		kind := "edit"
		if pc.Deletion {
			kind = "deletion"
		}
		fmt.Fprintf(a.out, "%s %s (local %s, remote updated %s)\n",
			pc.Store, pc.ID, kind, pc.Remote.RowUpdatedAt().Format(time.RFC3339))
	}
	return nil
}

func (a *App) cmdResolve(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("resolve requires <store> <id> <local|remote>")
	}
	store, id, side := args[0], args[1], args[2]
	if !common.KnownCollection(store) {
		return fmt.Errorf("unknown store %q", store)
	}

	var keepLocal bool
	switch side {
	case "local":
		keepLocal = true
	case "remote":
	default:
		return fmt.Errorf("side must be %q or %q", "local", "remote")
	}

	if err := a.refreshConflicts(ctx); err != nil {
		return err
	}
	if err := a.sync.Resolve(ctx, store, id, keepLocal); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "resolved %s %s keeping %s\n", store, id, side)
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 72 {
		s = s[:72] + "…"
	}
	return s
}
