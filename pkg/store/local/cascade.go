package local

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/matchnote/matchnote/pkg/models"
)

func (s *Store) SoftDelete(ctx context.Context, kind models.Kind, id string) ([]models.Record, error) {
	b, err := bindingFor(kind)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(kind, id)
	defer unlock()

	now := models.Now()
	var changed []models.Record
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed = changed[:0]
		root, err := b.first(tx, id)
		if err != nil || root == nil {
			return err
		}
		return cascade(tx, root, now, map[string]bool{}, &changed)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}

	if len(changed) > 0 {
		s.log.Debug().
			Str("kind", kind.String()).
			Str("id", id).
			Int("records", len(changed)).
			Msg("soft deleted")
	}
	return changed, nil
}

// cascade flags r and then every record that references it.
func cascade(tx *gorm.DB, r models.Record, now time.Time, seen map[string]bool, changed *[]models.Record) error {
	key := string(r.Kind()) + "/" + r.RecordID()
	if seen[key] {
		return nil
	}
	seen[key] = true

	r.MarkDeleted(now)
	err := tx.Model(r).Updates(map[string]any{
		"is_deleted": true,
		"updated_at": r.Modified(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to flag %s %s: %w", r.Kind(), r.RecordID(), err)
	}
	*changed = append(*changed, r)

	for _, child := range models.MustDescribe(r.Kind()).Children {
		rows, err := bindings[child.Kind].find(tx.Where(clause.Eq{
			Column: clause.Column{Name: child.Column},
			Value:  r.RecordID(),
		}).Order("id"))
		if err != nil {
			return fmt.Errorf("failed to load %s children of %s %s: %w", child.Kind, r.Kind(), r.RecordID(), err)
		}
		for _, row := range rows {
			if err := cascade(tx, row, now, seen, changed); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) RewriteOwner(ctx context.Context, owner string) (int64, error) {
	if owner == "" {
		return 0, fmt.Errorf("%w: empty owner", models.ErrInvalidRecord)
	}

	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total = 0
		for _, kind := range models.Kinds() {
			res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
				Model(bindings[kind].model()).
				UpdateColumn("owner_id", owner)
			if res.Error != nil {
				return fmt.Errorf("failed to rewrite %s owners: %w", kind, res.Error)
			}
			total += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info().Str("owner", owner).Int64("records", total).Msg("owner rewritten")
	return total, nil
}
