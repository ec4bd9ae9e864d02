package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/dbx"
)

// TombstoneRepo persists the deletion log. A tombstone lives from the local
// delete until the server confirms it (or a conflict naming it is resolved).
type TombstoneRepo struct {
	db dbx.DBTX
}

func NewTombstoneRepo(db dbx.DBTX) *TombstoneRepo {
	return &TombstoneRepo{db: db}
}

// Add records a deletion. Deleting the same record twice keeps the newest
// deletion time.
func (r *TombstoneRepo) Add(ctx context.Context, t *models.Tombstone) error {
	query := `
		INSERT INTO tombstones (id, store, key, deleted_at, sync_status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(store, key) DO UPDATE SET
			deleted_at = excluded.deleted_at,
			sync_status = excluded.sync_status
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Store, t.Key, formatTime(t.DeletedAt), string(t.SyncStatus))
	if err != nil {
		return fmt.Errorf("failed to record tombstone: %w", err)
	}
	return nil
}

// List returns every pending tombstone.
func (r *TombstoneRepo) List(ctx context.Context) ([]*models.Tombstone, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, store, key, deleted_at, sync_status FROM tombstones`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tombstones: %w", err)
	}
	defer rows.Close()

	var result []*models.Tombstone
	for rows.Next() {
		var t models.Tombstone
		var deletedAt, status string
		if err := rows.Scan(&t.ID, &t.Store, &t.Key, &deletedAt, &status); err != nil {
			return nil, err
		}
		if t.DeletedAt, err = parseTime(deletedAt); err != nil {
			return nil, err
		}
		t.SyncStatus = models.SyncStatus(status)
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns the tombstone for a record, or nil if none is pending.
func (r *TombstoneRepo) Get(ctx context.Context, store, key string) (*models.Tombstone, error) {
	var t models.Tombstone
	var deletedAt, status string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, store, key, deleted_at, sync_status FROM tombstones WHERE store = ? AND key = ?`,
		store, key).Scan(&t.ID, &t.Store, &t.Key, &deletedAt, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tombstone: %w", err)
	}
	if t.DeletedAt, err = parseTime(deletedAt); err != nil {
		return nil, err
	}
	t.SyncStatus = models.SyncStatus(status)
	return &t, nil
}

// Delete drops a tombstone once the deletion is confirmed remotely or its
// conflict has been resolved.
func (r *TombstoneRepo) Delete(ctx context.Context, store, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tombstones WHERE store = ? AND key = ?`, store, key)
	if err != nil {
		return fmt.Errorf("failed to delete tombstone: %w", err)
	}
	return nil
}
