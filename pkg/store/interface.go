// Package store defines where matchnote keeps records.
//
// Two stores exist. The [Local] store lives on the device and is the
// authoritative working copy: every user action writes to it first and its
// errors are surfaced to the caller. The [Remote] store is a document mirror,
// one collection per record kind, keyed by owner and record id. Remote writes
// are best effort; whatever the remote misses is caught up by reconciliation.
//
// # Implementations
//
//   - [github.com/matchnote/matchnote/pkg/store/local.Store]: gorm over SQLite, with schema
//     versioning, cascading soft delete and per-record write locks
//   - [github.com/matchnote/matchnote/pkg/store/surrealdb.Store]: SurrealDB documents addressed by record id
//   - [github.com/matchnote/matchnote/pkg/store/postgres.Store]: a JSON document table on PostgreSQL
//   - [github.com/matchnote/matchnote/pkg/store/storetest.MemoryRemote]: in-memory remote with failure injection for tests
//
// [Gated] wraps any Remote and refuses to talk to it while the device is
// offline or no account is signed in.
package store

import (
	"context"
	"errors"

	"github.com/matchnote/matchnote/pkg/models"
)

// ErrUnknownField is returned when a list filter names a field the kind does not have.
var ErrUnknownField = errors.New("unknown field")

// SortKey selects the ordering of List.
type SortKey int

const (
	// SortDefault sorts orderable kinds by order and the rest by created_at.
	SortDefault SortKey = iota
	SortByOrder
	SortByCreatedAt
)

// ListOptions filter and order a scan of one kind.
type ListOptions struct {
	// IncludeDeleted keeps soft-deleted records in the result.
	IncludeDeleted bool
	// Match restricts the scan to records whose columns equal the given values,
	// for example {"group_id": id}.
	Match map[string]any
	Sort  SortKey
}

// Local is the on-device store.
type Local interface {
	// Upsert inserts or replaces r by id.
	Upsert(ctx context.Context, r models.Record) error

	// Merge writes r only when no record with its id exists or r is strictly
	// newer than the stored one. It reports whether r was written.
	Merge(ctx context.Context, r models.Record) (bool, error)

	// Get returns the record regardless of its delete flag, or nil if absent.
	Get(ctx context.Context, kind models.Kind, id string) (models.Record, error)

	List(ctx context.Context, kind models.Kind, opts ListOptions) ([]models.Record, error)
	Count(ctx context.Context, kind models.Kind, opts ListOptions) (int64, error)

	// SoftDelete flags the record and every descendant deleted in a single
	// transaction and returns all records it modified. A missing id is a no-op.
	SoftDelete(ctx context.Context, kind models.Kind, id string) ([]models.Record, error)

	// RewriteOwner assigns owner to every record of every kind.
	RewriteOwner(ctx context.Context, owner string) (int64, error)

	Close() error
}

// Remote is the document mirror.
type Remote interface {
	// Save and Update are both idempotent upserts of the document
	// models.DocumentID(r) in the collection of r's kind.
	Save(ctx context.Context, r models.Record) error
	Update(ctx context.Context, r models.Record) error

	// GetAll returns every document of kind owned by owner.
	GetAll(ctx context.Context, kind models.Kind, owner string) ([]models.Record, error)

	Close() error
}
