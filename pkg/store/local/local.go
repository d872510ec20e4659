// Package local implements [github.com/matchnote/matchnote/pkg/store.Local] with gorm over SQLite.
//
// The store is the device's authoritative copy of every record. It is opened
// once per process and injected wherever records are read or written.
//
// # Transactions and locking
//
// Every write runs in its own transaction, and the SQLite pool is limited to a
// single connection, so transactions never interleave. On top of that, writes
// to one record take a per-record lock for the duration of the
// read-compare-write sequence of [Store.Merge], which keeps a reconciliation
// pass from overwriting a user edit that landed between its read and its write.
//
// # Schema versioning
//
// The schema version is kept in the schema_meta table. [Store.Migrate] applies
// pending migrations in order. A database written by a newer binary cannot be
// interpreted and is wiped and recreated empty; records that were synced can
// be pulled again from the remote.
package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/store"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store is the SQLite-backed local store.
type Store struct {
	db    *gorm.DB
	locks *recordLocks
	log   zerolog.Logger
}

var _ store.Local = (*Store)(nil)

// Open opens or creates the database at path. Call Migrate before use.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// One connection: SQLite has a single writer, and an in-memory database
	// exists only on the connection that created it.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := applyPragmas(db, path); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Store{
		db:    db,
		locks: newRecordLocks(),
		log:   log.With().Str("component", "local_store").Logger(),
	}, nil
}

func applyPragmas(db *gorm.DB, path string) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	if path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// DB returns the underlying gorm handle. Settings share it; tests use it to
// inject failures.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Upsert(ctx context.Context, r models.Record) error {
	if err := models.Validate(r); err != nil {
		return err
	}
	unlock := s.locks.lock(r.Kind(), r.RecordID())
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsert(tx, r)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", r.Kind(), r.RecordID(), err)
	}
	return nil
}

func (s *Store) Merge(ctx context.Context, r models.Record) (bool, error) {
	if err := models.Validate(r); err != nil {
		return false, err
	}
	b, err := bindingFor(r.Kind())
	if err != nil {
		return false, err
	}
	unlock := s.locks.lock(r.Kind(), r.RecordID())
	defer unlock()

	written := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := b.first(tx, r.RecordID())
		if err != nil {
			return err
		}
		if current != nil && !models.Newer(r, current) {
			return nil
		}
		written = true
		return upsert(tx, r)
	})
	if err != nil {
		return false, fmt.Errorf("failed to merge %s %s: %w", r.Kind(), r.RecordID(), err)
	}
	return written, nil
}

func (s *Store) Get(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	b, err := bindingFor(kind)
	if err != nil {
		return nil, err
	}
	r, err := b.first(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", kind, id, err)
	}
	return r, nil
}

func (s *Store) List(ctx context.Context, kind models.Kind, opts store.ListOptions) ([]models.Record, error) {
	b, err := bindingFor(kind)
	if err != nil {
		return nil, err
	}
	q, err := s.scope(s.db.WithContext(ctx), b, opts)
	if err != nil {
		return nil, err
	}
	q = q.Order(orderClause(kind, opts.Sort))

	records, err := b.find(q)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context, kind models.Kind, opts store.ListOptions) (int64, error) {
	b, err := bindingFor(kind)
	if err != nil {
		return 0, err
	}
	q, err := s.scope(s.db.WithContext(ctx), b, opts)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}

// scope applies the delete filter and column matches of opts.
func (s *Store) scope(db *gorm.DB, b binding, opts store.ListOptions) (*gorm.DB, error) {
	q := db.Model(b.model())
	if !opts.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if len(opts.Match) == 0 {
		return q, nil
	}

	stmt := &gorm.Statement{DB: s.db}
	if err := stmt.Parse(b.model()); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	for column := range opts.Match {
		if _, ok := stmt.Schema.FieldsByDBName[column]; !ok {
			return nil, fmt.Errorf("%w: %s", store.ErrUnknownField, column)
		}
	}
	return q.Where(map[string]any(opts.Match)), nil
}

func orderClause(kind models.Kind, sort store.SortKey) string {
	ordered := models.MustDescribe(kind).Ordered
	switch {
	case sort == store.SortByOrder && ordered, sort == store.SortDefault && ordered:
		return "sort_order, created_at, id"
	default:
		return "created_at, id"
	}
}

func upsert(tx *gorm.DB, r models.Record) error {
	return tx.Clauses(onConflictUpdateAll).Create(r).Error
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
