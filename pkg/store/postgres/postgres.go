// Package postgres implements [github.com/matchnote/matchnote/pkg/store.Remote] as a document
// table on PostgreSQL, for deployments that already run Postgres and no SurrealDB.
//
// Every document is one row of remote_documents keyed by (collection, doc_id),
// where doc_id is owner_recordid. The record's JSON fields are kept in a JSONB
// body; owner_id and updated_at are copied into columns for scoping and
// inspection. Writes are upserts on the primary key.
//
// Only standard SQL and gorm's dialect-neutral clauses are used, so the store
// also runs on any other gorm dialector, which the tests rely on.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/store"
)

type document struct {
	Collection string         `gorm:"primaryKey"`
	DocID      string         `gorm:"primaryKey"`
	OwnerID    string         `gorm:"index;not null"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime:false;not null"`
	Body       datatypes.JSON `gorm:"not null"`
}

func (document) TableName() string { return "remote_documents" }

// Store is a document store on a SQL database.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

var _ store.Remote = (*Store)(nil)

// New connects to PostgreSQL.
func New(dsn string, log zerolog.Logger) (*Store, error) {
	return NewWithDialector(postgres.Open(dsn), log)
}

// NewWithDialector opens the store on any gorm dialector.
func NewWithDialector(dialector gorm.Dialector, log zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{
		db:  db,
		log: log.With().Str("component", "postgres_remote").Logger(),
	}, nil
}

// DB returns the gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&document{})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
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
	d, err := models.Describe(r.Kind())
	if err != nil {
		return err
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", r.Kind(), r.RecordID(), err)
	}

	doc := document{
		Collection: d.Collection,
		DocID:      models.DocumentID(r),
		OwnerID:    r.Owner(),
		UpdatedAt:  r.Modified(),
		Body:       datatypes.JSON(body),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"owner_id", "updated_at", "body"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", r.Kind(), r.RecordID(), err)
	}
	return nil
}

func (s *Store) GetAll(ctx context.Context, kind models.Kind, owner string) ([]models.Record, error) {
	d, err := models.Describe(kind)
	if err != nil {
		return nil, err
	}

	var docs []document
	err = s.db.WithContext(ctx).
		Where("collection = ? AND owner_id = ?", d.Collection, owner).
		Order("doc_id").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", kind, err)
	}

	out := make([]models.Record, 0, len(docs))
	for _, doc := range docs {
		r := d.New()
		if err := json.Unmarshal(doc.Body, r); err != nil {
			s.log.Warn().Err(err).Str("doc_id", doc.DocID).Msg("skipping undecodable document")
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
