package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoresWithMock(t *testing.T) (*Stores, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresStores(db), mock, db
}

func strp(s string) *string { return &s }

const (
	guardedUpsertQ = `INSERT INTO entries .* ON CONFLICT \(id\) DO UPDATE SET .* WHERE entries\.updated_at <= EXCLUDED\.updated_at`
	forcedUpsertQ  = `INSERT INTO entries .* ON CONFLICT \(id\) DO UPDATE SET .*deleted_at = EXCLUDED\.deleted_at$`
	guardedDeleteQ = `INSERT INTO entries \(id, updated_at, deleted_at\) .* ON CONFLICT \(id\) DO UPDATE SET .* WHERE entries\.updated_at <= EXCLUDED\.updated_at`
)

func TestPostgresUpsert_GuardedWrite(t *testing.T) {
	stores, mock, db := newStoresWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(guardedUpsertQ).
		WithArgs("e1", "hello", nil, nil, nil, nil, at, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := stores.Entries.Upsert(context.Background(),
		&syncwire.EntryRow{ID: "e1", Content: strp("hello"), UpdatedAt: at}, false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsert_RowsAffected0IsConflict(t *testing.T) {
	stores, mock, db := newStoresWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(guardedUpsertQ).
		WithArgs("e1", "stale", nil, nil, nil, nil, at, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := stores.Entries.Upsert(context.Background(),
		&syncwire.EntryRow{ID: "e1", Content: strp("stale"), UpdatedAt: at}, false)
	assert.ErrorIs(t, err, common.ErrLWWConflict)
}

func TestPostgresUpsert_ForceSkipsGuard(t *testing.T) {
	stores, mock, db := newStoresWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(forcedUpsertQ).
		WithArgs("e1", "forced", nil, nil, nil, nil, at, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := stores.Entries.Upsert(context.Background(),
		&syncwire.EntryRow{ID: "e1", Content: strp("forced"), UpdatedAt: at}, true)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsert_ExecError(t *testing.T) {
	stores, mock, db := newStoresWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(guardedUpsertQ).
		WithArgs("e1", "x", nil, nil, nil, nil, at, nil).
		WillReturnError(errors.New("db is down"))

	err := stores.Entries.Upsert(context.Background(),
		&syncwire.EntryRow{ID: "e1", Content: strp("x"), UpdatedAt: at}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db is down")
}

func TestPostgresSoftDelete(t *testing.T) {
	stores, mock, db := newStoresWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(guardedDeleteQ).
		WithArgs("e1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, stores.Entries.SoftDelete(context.Background(), "e1", at, false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSoftDelete_Conflict(t *testing.T) {
	stores, mock, db := newStoresWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(guardedDeleteQ).
		WithArgs("e1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := stores.Entries.SoftDelete(context.Background(), "e1", at, false)
	assert.ErrorIs(t, err, common.ErrLWWConflict)
}

func TestPostgresGet(t *testing.T) {
	stores, mock, db := newStoresWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	cols := []string{"id", "content", "mood", "location", "tags", "attachments", "updated_at", "deleted_at"}
	mock.ExpectQuery(`SELECT .* FROM entries WHERE id = \$1`).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("e1", "hello", "7.5", nil, nil, nil, at, nil))

	row, err := stores.Entries.Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", row.ID)
	require.NotNil(t, row.Content)
	assert.Equal(t, "hello", *row.Content)
	require.NotNil(t, row.Mood)
	assert.Equal(t, "7.5", *row.Mood)
	assert.Nil(t, row.Tags)
	assert.Nil(t, row.DeletedAt)
	assert.True(t, at.Equal(row.UpdatedAt))
}

func TestPostgresGet_Missing(t *testing.T) {
	stores, mock, db := newStoresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM entries WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := stores.Entries.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPostgresSelectUpdatedSince(t *testing.T) {
	stores, mock, db := newStoresWithMock(t)
	defer db.Close()

	since := time.Now().UTC().Add(-time.Hour)
	at1 := since.Add(time.Minute)
	at2 := since.Add(2 * time.Minute)

	cols := []string{"id", "content", "mood", "location", "tags", "attachments", "updated_at", "deleted_at"}
	mock.ExpectQuery(`SELECT .* FROM entries WHERE updated_at > \$1 ORDER BY updated_at, id`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("a", "first", nil, nil, nil, nil, at1, nil).
			AddRow("gone", nil, nil, nil, nil, nil, at2, at2))

	got, err := stores.Entries.SelectUpdatedSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Nil(t, got[1].Content)
	require.NotNil(t, got[1].DeletedAt)
	assert.True(t, at2.Equal(*got[1].DeletedAt))
}
