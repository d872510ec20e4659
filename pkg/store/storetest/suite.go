package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/store"
)

// RunRemote exercises the behaviour every store.Remote must share.
// makeRemote must return a clean, isolated store.
func RunRemote(t *testing.T, makeRemote func(t *testing.T) store.Remote) {
	t.Helper()
	ctx := context.Background()

	t.Run("save then get all", func(t *testing.T) {
		r := makeRemote(t)
		owner := "u-" + uuid.NewString()
		task := Stamp(&models.Task{GroupID: models.NewID(), Title: "footwork", Cause: "late start", Order: 2}, owner, At(100))
		require.NoError(t, r.Save(ctx, task))

		got, err := r.GetAll(ctx, models.KindTask, owner)
		require.NoError(t, err)
		require.Len(t, got, 1)
		RequireSameRecord(t, task, got[0])
	})

	t.Run("save is idempotent", func(t *testing.T) {
		r := makeRemote(t)
		owner := "u-" + uuid.NewString()
		g := Stamp(&models.Group{Title: "receive"}, owner, At(100))
		require.NoError(t, r.Save(ctx, g))
		require.NoError(t, r.Save(ctx, g))

		got, err := r.GetAll(ctx, models.KindGroup, owner)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("update replaces the document", func(t *testing.T) {
		r := makeRemote(t)
		owner := "u-" + uuid.NewString()
		n := Stamp(&models.Note{Type: models.NoteTournament, Title: "regional", Date: At(0)}, owner, At(100))
		require.NoError(t, r.Save(ctx, n))

		n.Result = "won 2-1"
		n.MarkDeleted(At(200))
		require.NoError(t, r.Update(ctx, n))

		got, err := r.GetAll(ctx, models.KindNote, owner)
		require.NoError(t, err)
		require.Len(t, got, 1)
		RequireSameRecord(t, n, got[0])
		assert.True(t, got[0].Deleted())
	})

	t.Run("scoped by owner", func(t *testing.T) {
		r := makeRemote(t)
		alice := "u-" + uuid.NewString()
		bob := "u-" + uuid.NewString()
		id := models.NewID()
		mine := Stamp(&models.Target{ID: id, Title: "make nationals", Year: 2024}, alice, At(100))
		theirs := Stamp(&models.Target{ID: id, Title: "first serve 70%", Year: 2024}, bob, At(100))
		require.NoError(t, r.Save(ctx, mine))
		require.NoError(t, r.Save(ctx, theirs))

		got, err := r.GetAll(ctx, models.KindTarget, alice)
		require.NoError(t, err)
		require.Len(t, got, 1)
		RequireSameRecord(t, mine, got[0])

		got, err = r.GetAll(ctx, models.KindTarget, bob)
		require.NoError(t, err)
		require.Len(t, got, 1)
		RequireSameRecord(t, theirs, got[0])
	})

	t.Run("scoped by kind", func(t *testing.T) {
		r := makeRemote(t)
		owner := "u-" + uuid.NewString()
		require.NoError(t, r.Save(ctx, Stamp(&models.Memo{CountermeasureID: "c", NoteID: "n"}, owner, At(100))))

		got, err := r.GetAll(ctx, models.KindCountermeasure, owner)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("empty collection", func(t *testing.T) {
		r := makeRemote(t)
		got, err := r.GetAll(ctx, models.KindGroup, "u-"+uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
