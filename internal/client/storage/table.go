// Package storage implements the client's embedded sqlite store: one table
// per syncable collection, a tombstone log, and a small metadata table for
// the sync cursor.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/dbx"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// tableSpec wires a record type to its table: payload column names, the
// values that go into them, and how to rebuild the record from a full row.
type tableSpec[R models.Record] struct {
	name        string
	payloadCols []string
	values      func(R) ([]any, error)
	scan        func(s rowScanner) (R, error)
}

// Table is a generic sqlite repository for one syncable collection. Every row
// carries id, the payload columns, updated_at, deleted_at, and sync_status.
type Table[R models.Record] struct {
	db   dbx.DBTX
	spec tableSpec[R]

	selectCols string
	upsertSQL  string
	applySQL   string
}

func newTable[R models.Record](db dbx.DBTX, spec tableSpec[R]) *Table[R] {
	cols := append([]string{"id"}, spec.payloadCols...)
	cols = append(cols, "updated_at", "deleted_at", "sync_status")

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	var sets []string
	for _, c := range cols[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}

	upsertSQL := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s`,
		spec.name, strings.Join(cols, ", "), placeholders, strings.Join(sets, ", "),
	)

	return &Table[R]{
		db:         db,
		spec:       spec,
		selectCols: strings.Join(cols, ", "),
		upsertSQL:  upsertSQL,
		applySQL: upsertSQL + fmt.Sprintf(
			" WHERE %s.updated_at <= excluded.updated_at", spec.name),
	}
}

// Name returns the collection name.
func (t *Table[R]) Name() string { return t.spec.name }

func (t *Table[R]) upsert(ctx context.Context, query string, r R, status models.SyncStatus) error {
	payload, err := t.spec.values(r)
	if err != nil {
		return fmt.Errorf("failed to serialize %s row: %w", t.spec.name, err)
	}

	args := append([]any{r.GetID()}, payload...)
	args = append(args, formatTime(r.GetUpdatedAt()), formatNullableTime(r.GetDeletedAt()), string(status))

	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert %s row: %w", t.spec.name, err)
	}
	return nil
}

// Save upserts a locally mutated record. The caller is expected to have
// called Touch, so the record arrives dirty with a bumped updated_at.
func (t *Table[R]) Save(ctx context.Context, r R) error {
	return t.upsert(ctx, t.upsertSQL, r, r.GetStatus())
}

// ApplyRemote upserts a record delivered by the sync service. It is the
// separate write path for remote-applied rows: it always lands as synced and
// never marks anything dirty. A local copy with a newer updated_at is left
// alone: the delta echoes what a push just wrote, and a record edited while
// that push was on the wire must keep the edit.
func (t *Table[R]) ApplyRemote(ctx context.Context, r R) error {
	return t.upsert(ctx, t.applySQL, r, models.StatusSynced)
}

// Overwrite replaces the record with a resolved remote version, ignoring the
// updated_at guard. This is the write path for a human decision: the chosen
// side wins even when it is older.
func (t *Table[R]) Overwrite(ctx context.Context, r R) error {
	return t.upsert(ctx, t.upsertSQL, r, models.StatusSynced)
}

// ApplyRemoteDelete removes a record for a remote tombstone, unless the local
// copy is newer than the deletion.
func (t *Table[R]) ApplyRemoteDelete(ctx context.Context, id string, deletedAt time.Time) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND updated_at <= ?`, t.spec.name)
	if _, err := t.db.ExecContext(ctx, query, id, formatTime(deletedAt)); err != nil {
		return fmt.Errorf("failed to delete %s row: %w", t.spec.name, err)
	}
	return nil
}

// Get returns a record by id, or common.ErrNotFound.
func (t *Table[R]) Get(ctx context.Context, id string) (R, error) {
	var zero R
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, t.selectCols, t.spec.name)
	r, err := t.spec.scan(t.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, fmt.Errorf("%s %q: %w", t.spec.name, id, common.ErrNotFound)
	}
	if err != nil {
		return zero, fmt.Errorf("failed to select %s row: %w", t.spec.name, err)
	}
	return r, nil
}

// List returns every record in the collection.
func (t *Table[R]) List(ctx context.Context) ([]R, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s`, t.selectCols, t.spec.name)
	return t.selectMany(ctx, query)
}

// ListDirty returns the records whose content has not been acknowledged by
// the sync service.
func (t *Table[R]) ListDirty(ctx context.Context) ([]R, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE sync_status = ?`, t.selectCols, t.spec.name)
	return t.selectMany(ctx, query, string(models.StatusDirty))
}

func (t *Table[R]) selectMany(ctx context.Context, query string, args ...any) ([]R, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s rows: %w", t.spec.name, err)
	}
	defer rows.Close()

	var result []R
	for rows.Next() {
		r, err := t.spec.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkSynced clears the dirty flag, but only if the record still carries the
// updated_at that was pushed. A record edited again while the push was in
// flight keeps its dirty flag: the acknowledgment of the older version must
// not clear the newer one. Returns whether the flag was cleared.
func (t *Table[R]) MarkSynced(ctx context.Context, id string, pushedAt time.Time) (bool, error) {
	query := fmt.Sprintf(
		`UPDATE %s SET sync_status = ? WHERE id = ? AND updated_at = ?`, t.spec.name)
	res, err := t.db.ExecContext(ctx, query, string(models.StatusSynced), id, formatTime(pushedAt))
	if err != nil {
		return false, fmt.Errorf("failed to mark %s row synced: %w", t.spec.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkDirty flags a record for the next sync cycle.
func (t *Table[R]) MarkDirty(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET sync_status = ? WHERE id = ?`, t.spec.name)
	if _, err := t.db.ExecContext(ctx, query, string(models.StatusDirty), id); err != nil {
		return fmt.Errorf("failed to mark %s row dirty: %w", t.spec.name, err)
	}
	return nil
}

// Delete removes a record. Deleting an absent record is not an error: remote
// tombstones may target rows this device never had.
func (t *Table[R]) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, t.spec.name)
	if _, err := t.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete %s row: %w", t.spec.name, err)
	}
	return nil
}

// CollectionOps is the untyped view of a Table used by the change tracker,
// which works across collections by name.
type CollectionOps interface {
	Name() string
	MarkDirty(ctx context.Context, id string) error
	MarkSynced(ctx context.Context, id string, pushedAt time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

// timeLayout pads the fraction to nine digits so the stored strings compare
// in timestamp order, which the guarded upsert and delete rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
