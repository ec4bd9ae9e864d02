// Package storage assembles the authoritative stores for every collection,
// backed either by postgres or by memory.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/server/migrations"
	"github.com/dmitrijs2005/daybook/internal/server/storage/records"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Stores bundles the per-collection record stores.
type Stores struct {
	Entries  records.Store[*syncwire.EntryRow]
	People   records.Store[*syncwire.PersonRow]
	Sessions records.Store[*syncwire.SessionRow]

	db *sql.DB
}

// NewPostgres opens the database, runs the embedded migrations, and builds
// postgres-backed stores.
func NewPostgres(ctx context.Context, dsn string) (*Stores, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	s := NewPostgresStores(db)
	s.db = db
	return s, nil
}

// NewPostgresStores builds stores over an already-migrated handle. Used
// directly by tests.
func NewPostgresStores(db *sql.DB) *Stores {
	return &Stores{
		Entries:  records.NewPostgresStore(db, entrySpec()),
		People:   records.NewPostgresStore(db, personSpec()),
		Sessions: records.NewPostgresStore(db, sessionSpec()),
	}
}

// NewMemory builds map-backed stores for STORE=memory mode and tests.
func NewMemory() *Stores {
	return &Stores{
		Entries: records.NewMemoryStore(cloneEntry, func(id string, at time.Time) *syncwire.EntryRow {
			return &syncwire.EntryRow{ID: id, UpdatedAt: at, DeletedAt: &at}
		}),
		People: records.NewMemoryStore(clonePerson, func(id string, at time.Time) *syncwire.PersonRow {
			return &syncwire.PersonRow{ID: id, UpdatedAt: at, DeletedAt: &at}
		}),
		Sessions: records.NewMemoryStore(cloneSession, func(id string, at time.Time) *syncwire.SessionRow {
			return &syncwire.SessionRow{ID: id, UpdatedAt: at, DeletedAt: &at}
		}),
	}
}

func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}
