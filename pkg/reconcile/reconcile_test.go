package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/store"
	"github.com/matchnote/matchnote/pkg/store/local"
	"github.com/matchnote/matchnote/pkg/store/storetest"
)

const owner = "account-1"

type fixture struct {
	local  *local.Store
	remote *storetest.MemoryRemote
	rec    *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, err := local.Open(local.MemoryPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	require.NoError(t, l.Migrate(context.Background()))

	remote := storetest.NewMemoryRemote()
	return &fixture{
		local:  l,
		remote: remote,
		rec:    New(l, remote, StaticOwner(owner), zerolog.Nop()),
	}
}

func (f *fixture) putLocal(t *testing.T, r models.Record) {
	t.Helper()
	require.NoError(t, f.local.Upsert(context.Background(), r))
}

func (f *fixture) putRemote(t *testing.T, r models.Record) {
	t.Helper()
	require.NoError(t, f.remote.Save(context.Background(), r))
}

func (f *fixture) requireConverged(t *testing.T, kind models.Kind) {
	t.Helper()
	ctx := context.Background()
	locals, err := f.local.List(ctx, kind, store.ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	remotes, err := f.remote.GetAll(ctx, kind, owner)
	require.NoError(t, err)
	require.Len(t, remotes, len(locals))
	for _, l := range locals {
		storetest.RequireSameRecord(t, l, f.remote.Get(kind, owner, l.RecordID()))
	}
}

func TestReconcile_exampleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t1Local := storetest.Stamp(&models.Task{ID: "T1", GroupID: "G", Title: "old"}, owner, storetest.At(100))
	t1Remote := storetest.Stamp(&models.Task{ID: "T1", GroupID: "G", Title: "from another device"}, owner, storetest.At(200))
	t2 := storetest.Stamp(&models.Task{ID: "T2", GroupID: "G", Title: "new on remote"}, owner, storetest.At(150))
	f.putLocal(t, t1Local)
	f.putRemote(t, t1Remote)
	f.putRemote(t, t2)
	writes := f.remote.Writes()

	res, err := f.rec.Reconcile(ctx, models.KindTask)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pulled)
	assert.Equal(t, 1, res.PulledUpdates)
	assert.Zero(t, res.Pushed+res.PushedUpdates)
	assert.Equal(t, writes, f.remote.Writes(), "remote is unaffected")

	got, err := f.local.Get(ctx, models.KindTask, "T1")
	require.NoError(t, err)
	storetest.RequireSameRecord(t, t1Remote, got)
	got, err = f.local.Get(ctx, models.KindTask, "T2")
	require.NoError(t, err)
	storetest.RequireSameRecord(t, t2, got)
}

func TestReconcile_pushesLocalOnlyRecordsUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := storetest.Stamp(&models.Group{Title: "serve", Color: models.ColorGreen, Order: 1}, owner, storetest.At(100))
	f.putLocal(t, g)

	res, err := f.rec.Reconcile(ctx, models.KindGroup)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)

	storetest.RequireSameRecord(t, g, f.remote.Get(models.KindGroup, owner, g.ID))
	got, err := f.local.Get(ctx, models.KindGroup, g.ID)
	require.NoError(t, err)
	storetest.RequireSameRecord(t, g, got)
}

func TestReconcile_localNewerUpdatesRemote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putRemote(t, storetest.Stamp(&models.Target{ID: "y", Title: "top 8", Year: 2024}, owner, storetest.At(100)))
	mine := storetest.Stamp(&models.Target{ID: "y", Title: "top 4", Year: 2024}, owner, storetest.At(300))
	f.putLocal(t, mine)

	res, err := f.rec.Reconcile(ctx, models.KindTarget)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PushedUpdates)
	storetest.RequireSameRecord(t, mine, f.remote.Get(models.KindTarget, owner, "y"))
}

func TestReconcile_equalTimestampsAreLeftAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mine := storetest.Stamp(&models.Note{ID: "n", Title: "mine", Date: storetest.At(0)}, owner, storetest.At(100))
	theirs := storetest.Stamp(&models.Note{ID: "n", Title: "theirs", Date: storetest.At(0)}, owner, storetest.At(100))
	f.putLocal(t, mine)
	f.putRemote(t, theirs)
	writes := f.remote.Writes()

	res, err := f.rec.Reconcile(ctx, models.KindNote)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged)
	assert.Zero(t, res.Changed())
	assert.Equal(t, writes, f.remote.Writes())

	got, err := f.local.Get(ctx, models.KindNote, "n")
	require.NoError(t, err)
	storetest.RequireSameRecord(t, mine, got)
	storetest.RequireSameRecord(t, theirs, f.remote.Get(models.KindNote, owner, "n"))
}

func TestReconcile_propagatesTombstones(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tr := storetest.SeedTree(t, f.local, owner, 1, 1, 1)
	_, err := f.rec.ReconcileAll(ctx)
	require.NoError(t, err)

	_, err = f.local.SoftDelete(ctx, models.KindGroup, tr.Group.ID)
	require.NoError(t, err)
	report, err := f.rec.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, tr.Size(), report.Changed())

	for _, r := range []models.Record{tr.Group, tr.Tasks[0], tr.Countermeasures[0], tr.Memos[0]} {
		assert.True(t, f.remote.Get(r.Kind(), owner, r.RecordID()).Deleted(), "%s", r.Kind())
	}
	assert.False(t, f.remote.Get(models.KindNote, owner, tr.Note.ID).Deleted())
}

func TestReconcileAll_convergesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	storetest.SeedTree(t, f.local, owner, 2, 2, 2)
	for i, title := range []string{"a", "b", "c"} {
		f.putRemote(t, storetest.Stamp(&models.Group{Title: title, Order: i}, owner, storetest.At(int64(i))))
	}
	shared := storetest.Stamp(&models.Memo{ID: "m", CountermeasureID: "c", NoteID: "n", Detail: "local"}, owner, storetest.At(10))
	f.putLocal(t, shared)
	newer := *shared
	newer.Detail = "remote"
	newer.UpdatedAt = storetest.At(20)
	f.putRemote(t, &newer)
	f.putRemote(t, storetest.Stamp(&models.Group{Title: "someone else's"}, "account-2", storetest.At(1)))

	first, err := f.rec.ReconcileAll(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Err())
	assert.NotZero(t, first.Changed())

	for _, kind := range models.Kinds() {
		f.requireConverged(t, kind)
	}
	got, err := f.local.Get(ctx, models.KindMemo, "m")
	require.NoError(t, err)
	storetest.RequireSameRecord(t, &newer, got)

	writes := f.remote.Writes()
	second, err := f.rec.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Changed())
	assert.Equal(t, writes, f.remote.Writes())
	for _, kind := range models.Kinds() {
		f.requireConverged(t, kind)
	}
}

func TestReconcileAll_isolatesFailingKinds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	g := storetest.Stamp(&models.Group{Title: "g"}, owner, storetest.At(1))
	n := storetest.Stamp(&models.Note{Title: "n"}, owner, storetest.At(1))
	f.putLocal(t, g)
	f.putLocal(t, n)

	boom := errors.New("quota exceeded")
	f.remote.FailFetch(models.KindNote, boom)
	before := testutil.ToFloat64(syncFailuresTotal.WithLabelValues(models.KindNote.String()))

	report, err := f.rec.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, report.Results, len(models.Kinds()))
	require.ErrorIs(t, report.Err(), boom)

	noteRes, ok := report.Result(models.KindNote)
	require.True(t, ok)
	require.ErrorIs(t, noteRes.Err, boom)
	groupRes, ok := report.Result(models.KindGroup)
	require.True(t, ok)
	assert.NoError(t, groupRes.Err)
	assert.Equal(t, 1, groupRes.Pushed)
	assert.NotNil(t, f.remote.Get(models.KindGroup, owner, g.ID))
	assert.Equal(t, before+1, testutil.ToFloat64(syncFailuresTotal.WithLabelValues(models.KindNote.String())))
}

func TestReconcile_remoteWriteFailuresAreRetriedNextPass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := storetest.Stamp(&models.Countermeasure{TaskID: "t", Title: "shadow swing"}, owner, storetest.At(1))
	f.putLocal(t, c)

	f.remote.FailWrites(models.KindCountermeasure, errors.New("network unreachable"))
	res, err := f.rec.Reconcile(ctx, models.KindCountermeasure)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Pushed)

	f.remote.FailWrites(models.KindCountermeasure, nil)
	res, err = f.rec.Reconcile(ctx, models.KindCountermeasure)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)
	storetest.RequireSameRecord(t, c, f.remote.Get(models.KindCountermeasure, owner, c.ID))
}

// recordingRemote logs the order of remote writes.
type recordingRemote struct {
	*storetest.MemoryRemote
	mu  sync.Mutex
	ops []string
}

func (r *recordingRemote) Save(ctx context.Context, rec models.Record) error {
	r.mu.Lock()
	r.ops = append(r.ops, "save "+rec.RecordID())
	r.mu.Unlock()
	return r.MemoryRemote.Save(ctx, rec)
}

func (r *recordingRemote) Update(ctx context.Context, rec models.Record) error {
	r.mu.Lock()
	r.ops = append(r.ops, "update "+rec.RecordID())
	r.mu.Unlock()
	return r.MemoryRemote.Update(ctx, rec)
}

func TestReconcile_deterministicOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rr := &recordingRemote{MemoryRemote: f.remote}
	rec := New(f.local, rr, StaticOwner(owner), zerolog.Nop())

	f.putRemote(t, storetest.Stamp(&models.Task{ID: "a", GroupID: "g"}, owner, storetest.At(1)))
	f.putLocal(t, storetest.Stamp(&models.Task{ID: "a", GroupID: "g"}, owner, storetest.At(2)))
	f.putLocal(t, storetest.Stamp(&models.Task{ID: "c", GroupID: "g"}, owner, storetest.At(1)))
	f.putLocal(t, storetest.Stamp(&models.Task{ID: "b", GroupID: "g"}, owner, storetest.At(1)))

	_, err := rec.Reconcile(ctx, models.KindTask)
	require.NoError(t, err)
	assert.Equal(t, []string{"save b", "save c", "update a"}, rr.ops)
}

// cancellingRemote cancels the pass while fetching cancelOn.
type cancellingRemote struct {
	*storetest.MemoryRemote
	cancelOn models.Kind
	cancel   context.CancelFunc
}

func (r *cancellingRemote) GetAll(ctx context.Context, kind models.Kind, owner string) ([]models.Record, error) {
	if kind == r.cancelOn {
		r.cancel()
	}
	return r.MemoryRemote.GetAll(context.Background(), kind, owner)
}

func TestReconcileAll_stopsBetweenKindsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	cr := &cancellingRemote{MemoryRemote: f.remote, cancelOn: models.KindTask, cancel: cancel}
	rec := New(f.local, cr, StaticOwner(owner), zerolog.Nop())

	report, err := rec.ReconcileAll(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, report.Results, 2)
	assert.Equal(t, models.KindGroup, report.Results[0].Kind)
	assert.Equal(t, models.KindTask, report.Results[1].Kind)
}

func TestReconcile_ignoresOtherOwnersLocalRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putLocal(t, storetest.Stamp(&models.Group{Title: "stale"}, "anonymous", storetest.At(1)))

	res, err := f.rec.Reconcile(ctx, models.KindGroup)
	require.NoError(t, err)
	assert.Zero(t, res.Changed())
	assert.Zero(t, f.remote.Len(models.KindGroup))
}
