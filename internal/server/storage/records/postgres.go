package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
)

// RowScanner is satisfied by both *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// TableSpec describes how one collection maps onto its postgres table.
// PayloadCols excludes id, updated_at and deleted_at; Values returns the
// payload column values in the same order; Scan rebuilds a row from the full
// column list (id, payload..., updated_at, deleted_at).
type TableSpec[R syncwire.Row] struct {
	Table       string
	PayloadCols []string
	Values      func(R) []any
	Scan        func(RowScanner) (R, error)
}

// PostgresStore keeps a collection in a postgres table. The LWW guard lives
// in the upsert statement itself, so concurrent pushes for the same record
// cannot interleave between check and write.
type PostgresStore[R syncwire.Row] struct {
	db   *sql.DB
	spec TableSpec[R]

	selectCols string
	upsertSQL  string
	deleteSQL  string
}

func NewPostgresStore[R syncwire.Row](db *sql.DB, spec TableSpec[R]) *PostgresStore[R] {
	s := &PostgresStore[R]{db: db, spec: spec}
	s.selectCols = strings.Join(append(append([]string{"id"}, spec.PayloadCols...), "updated_at", "deleted_at"), ", ")
	s.upsertSQL = buildUpsertSQL(spec.Table, spec.PayloadCols)
	s.deleteSQL = buildDeleteSQL(spec.Table, spec.PayloadCols)
	return s
}

// buildUpsertSQL renders the guarded upsert. The trailing WHERE clause is
// appended by the caller when the write is not forced.
func buildUpsertSQL(table string, payloadCols []string) string {
	cols := append(append([]string{"id"}, payloadCols...), "updated_at", "deleted_at")

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	sets := make([]string, 0, len(payloadCols)+2)
	for _, c := range append(payloadCols, "updated_at", "deleted_at") {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(sets, ", "))
}

// buildDeleteSQL renders the tombstone upsert: payload columns are nulled and
// both timestamps take the deletion time.
func buildDeleteSQL(table string, payloadCols []string) string {
	sets := make([]string, 0, len(payloadCols)+2)
	for _, c := range payloadCols {
		sets = append(sets, fmt.Sprintf("%s = NULL", c))
	}
	sets = append(sets, "updated_at = EXCLUDED.updated_at", "deleted_at = EXCLUDED.deleted_at")

	return fmt.Sprintf(
		"INSERT INTO %s (id, updated_at, deleted_at) VALUES ($1, $2, $2) ON CONFLICT (id) DO UPDATE SET %s",
		table, strings.Join(sets, ", "))
}

func (s *PostgresStore[R]) guard() string {
	return fmt.Sprintf(" WHERE %s.updated_at <= EXCLUDED.updated_at", s.spec.Table)
}

func (s *PostgresStore[R]) Upsert(ctx context.Context, row R, force bool) error {
	query := s.upsertSQL
	if !force {
		query += s.guard()
	}

	args := append([]any{row.RowID()}, s.spec.Values(row)...)
	args = append(args, row.RowUpdatedAt(), nullableTime(row.RowDeletedAt()))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return checkAffected(res, force)
}

func (s *PostgresStore[R]) SoftDelete(ctx context.Context, id string, deletedAt time.Time, force bool) error {
	query := s.deleteSQL
	if !force {
		query += s.guard()
	}

	res, err := s.db.ExecContext(ctx, query, id, deletedAt.UTC())
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return checkAffected(res, force)
}

func (s *PostgresStore[R]) Get(ctx context.Context, id string) (R, error) {
	var zero R

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", s.selectCols, s.spec.Table)
	row, err := s.spec.Scan(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, common.ErrNotFound
		}
		return zero, fmt.Errorf("error performing sql request: %w", err)
	}
	return row, nil
}

// SelectUpdatedSince returns every row, tombstones included, whose updated_at
// is strictly after since.
func (s *PostgresStore[R]) SelectUpdatedSince(ctx context.Context, since time.Time) ([]R, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE updated_at > $1 ORDER BY updated_at, id", s.selectCols, s.spec.Table)

	rows, err := s.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var result []R
	for rows.Next() {
		row, err := s.spec.Scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func checkAffected(res sql.Result, force bool) error {
	if force {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrLWWConflict
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
