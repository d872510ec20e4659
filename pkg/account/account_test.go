package account

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/notebook"
	"github.com/matchnote/matchnote/pkg/reconcile"
	"github.com/matchnote/matchnote/pkg/session"
	"github.com/matchnote/matchnote/pkg/settings"
	"github.com/matchnote/matchnote/pkg/store"
	"github.com/matchnote/matchnote/pkg/store/local"
	"github.com/matchnote/matchnote/pkg/store/storetest"
)

type prober bool

func (p prober) Online(context.Context) bool { return bool(p) }

type fixture struct {
	local   *local.Store
	remote  *storetest.MemoryRemote
	session *session.Session
	svc     *Service
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	ctx := context.Background()
	l, err := local.Open(local.MemoryPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	require.NoError(t, l.Migrate(ctx))

	kv, err := settings.NewDBStore(l.DB())
	require.NoError(t, err)
	sess := session.New(kv)
	gate := session.NewGate(sess, prober(online))
	remote := storetest.NewMemoryRemote()
	rec := reconcile.New(l, remote, sess, zerolog.Nop())
	nb := notebook.New(l, remote, gate, sess, rec, zerolog.Nop())

	return &fixture{
		local:   l,
		remote:  remote,
		session: sess,
		svc:     New(l, sess, nb, zerolog.Nop()),
	}
}

func (f *fixture) requireOwnedBy(t *testing.T, owner string) {
	t.Helper()
	for _, kind := range models.Kinds() {
		records, err := f.local.List(context.Background(), kind, store.ListOptions{IncludeDeleted: true})
		require.NoError(t, err)
		for _, r := range records {
			require.Equal(t, owner, r.Owner(), "%s %s", kind, r.RecordID())
		}
	}
}

func TestRegister_bindsAnonymousRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	anon, err := f.session.OwnerID(ctx)
	require.NoError(t, err)
	tr := storetest.SeedTree(t, f.local, anon, 2, 2, 1)

	n, err := f.svc.Register(ctx, "account-7")
	require.NoError(t, err)
	assert.EqualValues(t, tr.Size()+1, n)
	assert.True(t, f.session.SignedIn(ctx))
	owner, err := f.session.OwnerID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "account-7", owner)
	f.requireOwnedBy(t, "account-7")
	assert.Zero(t, f.remote.Writes(), "register does not sync")
}

func TestLogin_syncsWhenOnline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	anon, err := f.session.OwnerID(ctx)
	require.NoError(t, err)
	tr := storetest.SeedTree(t, f.local, anon, 1, 1, 1)
	fromCloud := storetest.Stamp(&models.Target{Title: "from another phone", Year: 2024}, "account-7", storetest.At(5))
	require.NoError(t, f.remote.Save(ctx, fromCloud))

	_, err = f.svc.Login(ctx, "account-7")
	require.NoError(t, err)

	assert.NotNil(t, f.remote.Get(models.KindGroup, "account-7", tr.Group.ID))
	got, err := f.local.Get(ctx, models.KindTarget, fromCloud.ID)
	require.NoError(t, err)
	storetest.RequireSameRecord(t, fromCloud, got)
}

func TestLogin_offlineStillSignsIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.svc.Login(ctx, "account-7")
	require.NoError(t, err)
	assert.True(t, f.session.SignedIn(ctx))
	assert.Zero(t, f.remote.Writes())
}

func TestBind_rejectsEmptyAccount(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.Register(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyAccount)
}

func TestLogout_keepsRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_, err := f.svc.Register(ctx, "account-7")
	require.NoError(t, err)
	storetest.SeedTree(t, f.local, "account-7", 1, 0, 0)

	require.NoError(t, f.svc.Logout(ctx))
	assert.False(t, f.session.SignedIn(ctx))
	count, err := f.local.Count(ctx, models.KindGroup, store.ListOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

type failingRewriter struct{}

func (failingRewriter) RewriteOwner(context.Context, string) (int64, error) {
	return 0, errors.New("disk full")
}

// refusingSignIn stores everything except the signed-in flag turning on.
type refusingSignIn struct {
	settings.Store
}

func (s refusingSignIn) Set(ctx context.Context, key, value string) error {
	if key == "is_login" && value == "true" {
		return errors.New("read-only settings")
	}
	return s.Store.Set(ctx, key, value)
}

func TestRegister_rewriteFailureRestoresSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	anon, err := f.session.OwnerID(ctx)
	require.NoError(t, err)
	storetest.SeedTree(t, f.local, anon, 1, 1, 0)
	svc := New(failingRewriter{}, f.session, nil, zerolog.Nop())

	_, err = svc.Register(ctx, "account-7")
	require.Error(t, err)

	assert.False(t, f.session.SignedIn(ctx))
	owner, err := f.session.OwnerID(ctx)
	require.NoError(t, err)
	assert.Equal(t, anon, owner)
	f.requireOwnedBy(t, anon)
}

func TestLogin_rewriteFailureKeepsPreviousAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_, err := f.svc.Register(ctx, "account-7")
	require.NoError(t, err)
	svc := New(failingRewriter{}, f.session, nil, zerolog.Nop())

	_, err = svc.Login(ctx, "account-8")
	require.Error(t, err)

	assert.True(t, f.session.SignedIn(ctx))
	owner, err := f.session.OwnerID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "account-7", owner)
}

func TestRegister_signInFailureRestoresOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	kv, err := settings.NewDBStore(f.local.DB())
	require.NoError(t, err)
	sess := session.New(refusingSignIn{kv})
	anon, err := sess.OwnerID(ctx)
	require.NoError(t, err)
	storetest.SeedTree(t, f.local, anon, 1, 0, 0)
	svc := New(f.local, sess, nil, zerolog.Nop())

	_, err = svc.Register(ctx, "account-7")
	require.Error(t, err)

	assert.False(t, sess.SignedIn(ctx))
	owner, err := sess.OwnerID(ctx)
	require.NoError(t, err)
	assert.Equal(t, anon, owner)
	f.requireOwnedBy(t, anon)
}
