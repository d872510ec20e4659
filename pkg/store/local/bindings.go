package local

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/matchnote/matchnote/pkg/models"
)

var onConflictUpdateAll = clause.OnConflict{
	Columns:   []clause.Column{{Name: "id"}},
	UpdateAll: true,
}

// binding is the typed access to one kind's table.
type binding struct {
	model func() models.Record
	find  func(q *gorm.DB) ([]models.Record, error)
	first func(q *gorm.DB, id string) (models.Record, error)
}

type recordPtr[T any] interface {
	*T
	models.Record
}

func bind[T any, P recordPtr[T]]() binding {
	return binding{
		model: func() models.Record { return P(new(T)) },
		find: func(q *gorm.DB) ([]models.Record, error) {
			var rows []T
			if err := q.Find(&rows).Error; err != nil {
				return nil, err
			}
			out := make([]models.Record, len(rows))
			for i := range rows {
				out[i] = P(&rows[i])
			}
			return out, nil
		},
		first: func(q *gorm.DB, id string) (models.Record, error) {
			var row T
			if err := q.Where("id = ?", id).Take(&row).Error; err != nil {
				if isNotFound(err) {
					return nil, nil
				}
				return nil, err
			}
			return P(&row), nil
		},
	}
}

var bindings = map[models.Kind]binding{
	models.KindGroup:          bind[models.Group](),
	models.KindTask:           bind[models.Task](),
	models.KindCountermeasure: bind[models.Countermeasure](),
	models.KindMemo:           bind[models.Memo](),
	models.KindTarget:         bind[models.Target](),
	models.KindNote:           bind[models.Note](),
}

func bindingFor(kind models.Kind) (binding, error) {
	b, ok := bindings[kind]
	if !ok {
		_, err := models.Describe(kind)
		return binding{}, err
	}
	return b, nil
}

func allModels() []any {
	out := make([]any, 0, len(bindings))
	for _, kind := range models.Kinds() {
		out = append(out, bindings[kind].model())
	}
	return out
}
