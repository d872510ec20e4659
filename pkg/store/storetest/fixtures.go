package storetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/store"
)

// At returns a fixed instant offset by ms milliseconds, handy for writing
// timestamps like "updatedAt=100".
func At(ms int64) time.Time {
	return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(ms) * time.Millisecond)
}

// Stamp gives r an id (if it has none), owner and timestamps at t.
func Stamp[R models.Record](r R, owner string, t time.Time) R {
	if r.RecordID() == "" {
		r.SetRecordID(models.NewID())
	}
	r.SetOwner(owner)
	r.Touch(t)
	return r
}

// RequireSameRecord fails unless want and got encode to the same document.
func RequireSameRecord(t testing.TB, want, got models.Record) {
	t.Helper()
	require.NotNil(t, got, "missing %s %s", want.Kind(), want.RecordID())
	require.Equal(t, want.Kind(), got.Kind())
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, string(wantJSON), string(gotJSON))
}

// Tree is a seeded group with its descendants.
type Tree struct {
	Group           *models.Group
	Tasks           []*models.Task
	Countermeasures []*models.Countermeasure
	Memos           []*models.Memo
	Note            *models.Note
}

// Size returns the number of records in the group's subtree.
func (tr Tree) Size() int {
	return 1 + len(tr.Tasks) + len(tr.Countermeasures) + len(tr.Memos)
}

// SeedTree writes a group with n tasks, m countermeasures per task and k memos
// per countermeasure. All memos hang off a single note, which is not part of
// the group's subtree. Every record is stamped At(0).
func SeedTree(t testing.TB, l store.Local, owner string, n, m, k int) Tree {
	t.Helper()
	ctx := context.Background()
	now := At(0)
	put := func(r models.Record) {
		require.NoError(t, l.Upsert(ctx, r))
	}

	var tr Tree
	tr.Note = Stamp(&models.Note{Type: models.NotePractice, Title: "practice", Date: now}, owner, now)
	put(tr.Note)
	tr.Group = Stamp(&models.Group{Title: "serve", Color: models.ColorBlue}, owner, now)
	put(tr.Group)
	for i := 0; i < n; i++ {
		task := Stamp(&models.Task{GroupID: tr.Group.ID, Title: "toss", Order: i}, owner, now)
		put(task)
		tr.Tasks = append(tr.Tasks, task)
		for j := 0; j < m; j++ {
			cm := Stamp(&models.Countermeasure{TaskID: task.ID, Title: "watch the ball", Order: j}, owner, now)
			put(cm)
			tr.Countermeasures = append(tr.Countermeasures, cm)
			for x := 0; x < k; x++ {
				memo := Stamp(&models.Memo{CountermeasureID: cm.ID, NoteID: tr.Note.ID, Detail: "better"}, owner, now)
				put(memo)
				tr.Memos = append(tr.Memos, memo)
			}
		}
	}
	return tr
}
