package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/dbx"
)

// Metadata keys.
const (
	metaLastSync = "last_sync"
	metaDeviceID = "device_id"
)

// MetadataRepo stores scalar client preferences and the sync cursor in a
// key/value table.
type MetadataRepo struct {
	db dbx.DBTX
}

func NewMetadataRepo(db dbx.DBTX) *MetadataRepo {
	return &MetadataRepo{db: db}
}

func (r *MetadataRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, true, nil
}

func (r *MetadataRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

// LastSync returns the sync cursor, or nil before the first successful cycle.
func (r *MetadataRepo) LastSync(ctx context.Context) (*time.Time, error) {
	raw, ok, err := r.Get(ctx, metaLastSync)
	if err != nil || !ok {
		return nil, err
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt sync cursor: %w", err)
	}
	return &t, nil
}

// SetLastSync advances the sync cursor to the server-reported time.
func (r *MetadataRepo) SetLastSync(ctx context.Context, t time.Time) error {
	return r.Set(ctx, metaLastSync, formatTime(t))
}

// DeviceID returns the stored device identity, or "" if none exists yet.
func (r *MetadataRepo) DeviceID(ctx context.Context) (string, error) {
	v, _, err := r.Get(ctx, metaDeviceID)
	return v, err
}

// SetDeviceID stores the device identity.
func (r *MetadataRepo) SetDeviceID(ctx context.Context, id string) error {
	return r.Set(ctx, metaDeviceID, id)
}
