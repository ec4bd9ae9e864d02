// Package records defines the authoritative record store: last-write-wins
// upserts, tombstone writes, and delta reads over a single collection.
package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/daybook/internal/syncwire"
)

// Store holds one collection's authoritative rows.
//
// Upsert and SoftDelete apply the last-write-wins rule atomically: the write
// lands only if the stored row's updated_at is not newer than the incoming
// one, otherwise common.ErrLWWConflict is returned. With force set the guard
// is skipped and the write always lands.
type Store[R syncwire.Row] interface {
	Upsert(ctx context.Context, row R, force bool) error
	SoftDelete(ctx context.Context, id string, deletedAt time.Time, force bool) error
	Get(ctx context.Context, id string) (R, error)
	SelectUpdatedSince(ctx context.Context, since time.Time) ([]R, error)
}
