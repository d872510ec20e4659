package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTouch_setsCreatedOnce(t *testing.T) {
	g := &Group{ID: NewID(), Title: "serve"}
	first := time.Date(2024, 5, 1, 9, 0, 0, 123456789, time.FixedZone("JST", 9*3600))
	g.Touch(first)

	assert.Equal(t, time.UTC, g.CreatedAt.Location())
	assert.True(t, g.CreatedAt.Equal(first.Truncate(time.Millisecond)))
	assert.True(t, g.UpdatedAt.Equal(g.CreatedAt))

	second := first.Add(time.Hour)
	g.Touch(second)
	assert.True(t, g.CreatedAt.Equal(first.Truncate(time.Millisecond)))
	assert.True(t, g.UpdatedAt.Equal(second.Truncate(time.Millisecond)))
}

func TestMarkDeleted(t *testing.T) {
	n := &Note{ID: NewID()}
	now := time.Now()
	n.MarkDeleted(now)

	assert.True(t, n.Deleted())
	assert.True(t, n.Modified().Equal(Truncate(now)))
}

func TestDocumentID(t *testing.T) {
	task := &Task{ID: "t1", Base: Base{OwnerID: "owner"}}
	assert.Equal(t, "owner_t1", DocumentID(task))
}

func TestNewer_isStrict(t *testing.T) {
	at := Now()
	a := &Task{ID: "t1", Base: Base{UpdatedAt: at}}
	b := &Task{ID: "t1", Base: Base{UpdatedAt: at}}
	assert.False(t, Newer(a, b))
	assert.False(t, Newer(b, a))

	b.UpdatedAt = at.Add(time.Millisecond)
	assert.True(t, Newer(b, a))
	assert.False(t, Newer(a, b))
}

func TestValidate(t *testing.T) {
	m := &Memo{}
	require.ErrorIs(t, Validate(m), ErrInvalidRecord)

	m.ID = NewID()
	require.ErrorIs(t, Validate(m), ErrInvalidRecord)

	m.OwnerID = "owner"
	require.ErrorIs(t, Validate(m), ErrInvalidRecord)

	m.Touch(time.Now())
	require.NoError(t, Validate(m))
}

func TestDescribe_everyKind(t *testing.T) {
	seen := map[string]bool{}
	for _, kind := range Kinds() {
		d, err := Describe(kind)
		require.NoError(t, err)
		assert.Equal(t, kind, d.Kind)
		assert.Equal(t, kind, d.New().Kind())
		assert.False(t, seen[d.Collection], "duplicate collection %s", d.Collection)
		seen[d.Collection] = true

		back, ok := KindFromCollection(d.Collection)
		require.True(t, ok)
		assert.Equal(t, kind, back)
	}

	_, err := Describe("badge")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestDescribe_cascadeGraph(t *testing.T) {
	children := func(k Kind) []Kind {
		var out []Kind
		for _, c := range MustDescribe(k).Children {
			out = append(out, c.Kind)
		}
		return out
	}

	assert.Equal(t, []Kind{KindTask}, children(KindGroup))
	assert.Equal(t, []Kind{KindCountermeasure}, children(KindTask))
	assert.Equal(t, []Kind{KindMemo}, children(KindCountermeasure))
	assert.Equal(t, []Kind{KindMemo}, children(KindNote))
	assert.Empty(t, children(KindMemo))
	assert.Empty(t, children(KindTarget))
}
