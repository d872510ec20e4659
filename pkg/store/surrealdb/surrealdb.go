// Package surrealdb implements [github.com/matchnote/matchnote/pkg/store.Remote] on SurrealDB.
//
// Each record kind lives in its own table, named after the kind's collection
// ("groups", "tasks", ...). A record is stored under the SurrealDB record id
// table:⟨owner_recordid⟩, so the same record id under two owners yields two
// documents. Document fields are the record's JSON fields; the SurrealDB id
// field is omitted when reading back.
//
// The connection uses the surrealcbor codec so that time.Time round-trips as
// a SurrealDB datetime.
package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/store"
)

// Config locates and authenticates the SurrealDB instance.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	// DialTimeout bounds the retries of the initial connection.
	DialTimeout time.Duration
}

// Store is a SurrealDB-backed remote store.
type Store struct {
	db  *surrealdb.DB
	log zerolog.Logger
}

var _ store.Remote = (*Store)(nil)

// New connects to SurrealDB, retrying with exponential backoff until
// cfg.DialTimeout elapses. Configuration and authentication errors are not retried.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Store, error) {
	log = log.With().Str("component", "surrealdb").Logger()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.Multiplier = 2
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = cfg.DialTimeout
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 30 * time.Second
	}

	var db *surrealdb.DB
	err := backoff.RetryNotify(func() error {
		var err error
		db, err = connect(ctx, cfg)
		return err
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("surrealdb connection failed")
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("url", cfg.URL).Str("namespace", cfg.Namespace).Str("database", cfg.Database).Msg("connected")
	return &Store{db: db, log: log}, nil
}

func connect(ctx context.Context, cfg Config) (*surrealdb.DB, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to parse URL: %w", err))
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			db.Close(ctx)
			return nil, backoff.Permanent(fmt.Errorf("failed to authenticate: %w", err))
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, backoff.Permanent(fmt.Errorf("failed to use namespace/database: %w", err))
	}
	return db, nil
}

// Migrate defines an owner index on every collection. Tables themselves are
// created on first write.
func (s *Store) Migrate(ctx context.Context) error {
	for _, kind := range models.Kinds() {
		table := models.MustDescribe(kind).Collection
		query := fmt.Sprintf("DEFINE INDEX IF NOT EXISTS idx_%s_owner ON TABLE %s FIELDS owner_id", table, table)
		if _, err := surrealdb.Query[any](ctx, s.db, query, nil); err != nil {
			return fmt.Errorf("failed to index %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

func recordID(r models.Record) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(models.MustDescribe(r.Kind()).Collection, models.DocumentID(r))
}

func (s *Store) Save(ctx context.Context, r models.Record) error {
	return s.upsert(ctx, r)
}

func (s *Store) Update(ctx context.Context, r models.Record) error {
	return s.upsert(ctx, r)
}

func (s *Store) upsert(ctx context.Context, r models.Record) error {
	if err := models.Validate(r); err != nil {
		return err
	}
	_, err := surrealdb.Query[any](ctx, s.db, "UPSERT $rid CONTENT $doc RETURN NONE", map[string]any{
		"rid": recordID(r),
		"doc": r,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", r.Kind(), r.RecordID(), err)
	}
	return nil
}

func (s *Store) GetAll(ctx context.Context, kind models.Kind, owner string) ([]models.Record, error) {
	sel, ok := selectors[kind]
	if !ok {
		_, err := models.Describe(kind)
		return nil, err
	}
	records, err := sel(ctx, s.db, "SELECT * OMIT id FROM type::table($tb) WHERE owner_id = $owner", map[string]any{
		"tb":    models.MustDescribe(kind).Collection,
		"owner": owner,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", kind, err)
	}
	return records, nil
}

type selector func(ctx context.Context, db *surrealdb.DB, query string, vars map[string]any) ([]models.Record, error)

type recordPtr[T any] interface {
	*T
	models.Record
}

func selectAll[T any, P recordPtr[T]](ctx context.Context, db *surrealdb.DB, query string, vars map[string]any) ([]models.Record, error) {
	res, err := surrealdb.Query[[]T](ctx, db, query, vars)
	if err != nil {
		return nil, err
	}
	if res == nil || len(*res) == 0 {
		return nil, errors.New("no result for query")
	}
	rows := (*res)[0].Result
	out := make([]models.Record, len(rows))
	for i := range rows {
		out[i] = P(&rows[i])
	}
	return out, nil
}

var selectors = map[models.Kind]selector{
	models.KindGroup:          selectAll[models.Group],
	models.KindTask:           selectAll[models.Task],
	models.KindCountermeasure: selectAll[models.Countermeasure],
	models.KindMemo:           selectAll[models.Memo],
	models.KindTarget:         selectAll[models.Target],
	models.KindNote:           selectAll[models.Note],
}
