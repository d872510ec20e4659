package local

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Schema version history:
// 1 - record tables for the six kinds
// 2 - composite (owner_id, updated_at) indexes used by sync scans
const currentSchemaVersion = 2

type schemaMeta struct {
	ID        int `gorm:"primaryKey"`
	Version   int `gorm:"not null"`
	UpdatedAt time.Time
}

func (schemaMeta) TableName() string { return "schema_meta" }

type migration struct {
	version int
	name    string
	up      func(tx *gorm.DB) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "create record tables",
		up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(allModels()...)
		},
	},
	{
		version: 2,
		name:    "index owner and updated_at",
		up: func(tx *gorm.DB) error {
			for _, m := range allModels() {
				stmt := &gorm.Statement{DB: tx}
				if err := stmt.Parse(m); err != nil {
					return err
				}
				table := stmt.Schema.Table
				sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (owner_id, updated_at)",
					stmt.Quote("idx_"+table+"_owner_updated"), stmt.Quote(table))
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// Migrate brings the database to the current schema version.
//
// Pending migrations run in order, each in its own transaction together with
// the version bump. A database whose version is newer than this binary knows
// is reset: every table is dropped and recreated empty.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&schemaMeta{}); err != nil {
		return fmt.Errorf("failed to create schema_meta: %w", err)
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if version > currentSchemaVersion {
		s.log.Warn().
			Int("found", version).
			Int("supported", currentSchemaVersion).
			Msg("local schema is newer than this build; wiping local database")
		if err := s.reset(db); err != nil {
			return err
		}
		version = 0
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.up(tx); err != nil {
				return err
			}
			return setVersion(tx, m.version)
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		s.log.Info().Int("version", m.version).Str("migration", m.name).Msg("applied local migration")
	}
	return nil
}

// SchemaVersion returns the version recorded in the database, 0 if none.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var meta schemaMeta
	err := s.db.WithContext(ctx).Where("id = ?", 1).Take(&meta).Error
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return meta.Version, nil
}

func (s *Store) reset(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Migrator().DropTable(allModels()...); err != nil {
			return fmt.Errorf("failed to drop record tables: %w", err)
		}
		return setVersion(tx, 0)
	})
}

func setVersion(tx *gorm.DB, version int) error {
	meta := schemaMeta{ID: 1, Version: version, UpdatedAt: time.Now().UTC()}
	return tx.Save(&meta).Error
}
