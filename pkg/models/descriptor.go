package models

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned for a kind or collection name matchnote does not know.
var ErrUnknownKind = errors.New("unknown record kind")

// Child is a kind whose records reference a parent through Column.
type Child struct {
	Kind   Kind
	Column string
}

// Descriptor holds the per-kind facts the stores and the reconciler need.
type Descriptor struct {
	Kind Kind
	// Collection is the remote collection and the local table name.
	Collection string
	// Ordered kinds are listed by their order field, others by created_at.
	Ordered bool
	// Children are soft-deleted together with their parent.
	Children []Child
	// New returns an empty record of this kind.
	New func() Record
}

var descriptors = map[Kind]Descriptor{
	KindGroup: {
		Kind:       KindGroup,
		Collection: "groups",
		Ordered:    true,
		Children:   []Child{{Kind: KindTask, Column: "group_id"}},
		New:        func() Record { return new(Group) },
	},
	KindTask: {
		Kind:       KindTask,
		Collection: "tasks",
		Ordered:    true,
		Children:   []Child{{Kind: KindCountermeasure, Column: "task_id"}},
		New:        func() Record { return new(Task) },
	},
	KindCountermeasure: {
		Kind:       KindCountermeasure,
		Collection: "countermeasures",
		Ordered:    true,
		Children:   []Child{{Kind: KindMemo, Column: "countermeasure_id"}},
		New:        func() Record { return new(Countermeasure) },
	},
	KindMemo: {
		Kind:       KindMemo,
		Collection: "memos",
		New:        func() Record { return new(Memo) },
	},
	KindTarget: {
		Kind:       KindTarget,
		Collection: "targets",
		New:        func() Record { return new(Target) },
	},
	KindNote: {
		Kind:       KindNote,
		Collection: "notes",
		Children:   []Child{{Kind: KindMemo, Column: "note_id"}},
		New:        func() Record { return new(Note) },
	},
}

// Describe returns the descriptor of kind.
func Describe(kind Kind) (Descriptor, error) {
	d, ok := descriptors[kind]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}
	return d, nil
}

// MustDescribe is like Describe but panics on an unknown kind.
func MustDescribe(kind Kind) Descriptor {
	d, err := Describe(kind)
	if err != nil {
		panic(err)
	}
	return d
}

// KindFromCollection maps a collection name such as "tasks" back to its kind.
func KindFromCollection(collection string) (Kind, bool) {
	for _, d := range descriptors {
		if d.Collection == collection {
			return d.Kind, true
		}
	}
	return "", false
}

// New returns an empty record of kind.
func New(kind Kind) (Record, error) {
	d, err := Describe(kind)
	if err != nil {
		return nil, err
	}
	return d.New(), nil
}

// TableName implementations keep gorm's table names equal to the collection names.
func (Group) TableName() string          { return "groups" }
func (Task) TableName() string           { return "tasks" }
func (Countermeasure) TableName() string { return "countermeasures" }
func (Memo) TableName() string           { return "memos" }
func (Target) TableName() string         { return "targets" }
func (Note) TableName() string           { return "notes" }
