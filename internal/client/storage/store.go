package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/client/migrations"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/dbx"
	"github.com/pressly/goose/v3"
)

// Store bundles every repository backed by the client's sqlite database.
type Store struct {
	DB         *sql.DB
	Entries    *Table[*models.Entry]
	People     *Table[*models.Person]
	Sessions   *Table[*models.Session]
	Tombstones *TombstoneRepo
	Meta       *MetadataRepo
}

// Open opens (creating if needed) the sqlite database at dsn and runs the
// embedded migrations. The caller must have imported a "sqlite" driver, e.g.
// modernc.org/sqlite.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	// one connection: sqlite serializes writers anyway, and a pool would give
	// every connection its own database when dsn is ":memory:"
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return NewStore(db), nil
}

// NewStore builds a Store over an already-migrated database handle. Used
// directly by tests.
func NewStore(db *sql.DB) *Store {
	s := newStore(db)
	s.DB = db
	return s
}

func newStore(db dbx.DBTX) *Store {
	return &Store{
		Entries:    entriesTable(db),
		People:     peopleTable(db),
		Sessions:   sessionsTable(db),
		Tombstones: NewTombstoneRepo(db),
		Meta:       NewMetadataRepo(db),
	}
}

// WithTx runs fn against a transaction-scoped view of the store, committing
// on success and rolling back on error.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore *Store) error) error {
	return dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, newStore(tx))
	})
}

// Collection returns the untyped view of a table by its wire name.
func (s *Store) Collection(name string) (CollectionOps, error) {
	switch name {
	case s.Entries.Name():
		return s.Entries, nil
	case s.People.Name():
		return s.People, nil
	case s.Sessions.Name():
		return s.Sessions, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", name)
	}
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}
