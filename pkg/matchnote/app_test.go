package matchnote

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchnote/matchnote/pkg/backup"
	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/notebook"
	"github.com/matchnote/matchnote/pkg/settings"
	"github.com/matchnote/matchnote/pkg/store"
	"github.com/matchnote/matchnote/pkg/store/local"
	"github.com/matchnote/matchnote/pkg/store/storetest"
)

type prober bool

func (p prober) Online(context.Context) bool { return bool(p) }

type testApp struct {
	*App
	remote  *storetest.MemoryRemote
	objects *backup.MemoryStore
}

func newTestApp(t *testing.T, online bool) testApp {
	t.Helper()
	return newDevice(t, online, storetest.NewMemoryRemote())
}

// newDevice opens an app on its own local database against a shared remote.
func newDevice(t *testing.T, online bool, remote *storetest.MemoryRemote) testApp {
	t.Helper()
	l, err := local.Open(local.MemoryPath, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, l.Migrate(context.Background()))
	kv, err := settings.NewDBStore(l.DB())
	require.NoError(t, err)

	objects := backup.NewMemoryStore()
	a, err := assemble(&Config{LocalPath: local.MemoryPath, HTTPPort: 8080}, deps{
		local:    l,
		remote:   remote,
		settings: kv,
		prober:   prober(online),
		objects:  objects,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return testApp{App: a, remote: remote, objects: objects}
}

func TestExecute_accountFlow(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, true)
	require.NoError(t, a.notebook.Save(ctx, &models.Group{Title: "before sign-in"}))

	require.ErrorIs(t, a.Execute(ctx, &SyncCommand{}), notebook.ErrNotReady)

	require.NoError(t, a.Execute(ctx, &RegisterCommand{AccountID: "account-1"}))
	assert.Zero(t, a.remote.Len(models.KindGroup))

	require.NoError(t, a.Execute(ctx, &SyncCommand{}))
	assert.Equal(t, 1, a.remote.Len(models.KindGroup))

	require.NoError(t, a.Execute(ctx, &LogoutCommand{}))
	assert.False(t, a.session.SignedIn(ctx))

	require.NoError(t, a.Execute(ctx, &LoginCommand{AccountID: "account-1"}))
	assert.True(t, a.session.SignedIn(ctx))
}

func TestExecute_syncReportsKindErrors(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, true)
	require.NoError(t, a.session.SignIn(ctx, "account-1"))
	a.remote.FailFetch(models.KindMemo, assert.AnError)

	err := a.Execute(ctx, &SyncCommand{})
	require.ErrorIs(t, err, assert.AnError)
}

func TestExecute_migrate(t *testing.T) {
	a := newTestApp(t, false)
	require.NoError(t, a.Execute(context.Background(), &MigrateCommand{}))
}

func TestExecute_unknownCommand(t *testing.T) {
	a := newTestApp(t, false)
	require.Error(t, a.Execute(context.Background(), nil))
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, false)
	owner, err := a.session.OwnerID(ctx)
	require.NoError(t, err)
	tr := storetest.SeedTree(t, a.local, owner, 1, 1, 1)

	key, err := a.Backup(ctx)
	require.NoError(t, err)
	keys, err := a.objects.List(ctx, owner+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	_, err = a.local.SoftDelete(ctx, models.KindGroup, tr.Group.ID)
	require.NoError(t, err)

	// Restoring never rolls back the newer tombstones.
	n, err := a.Restore(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
	live, err := a.local.Count(ctx, models.KindTask, store.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, live)
}

func TestBackup_disabled(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, false)
	a.backup = nil

	_, err := a.Backup(ctx)
	require.ErrorIs(t, err, ErrBackupDisabled)
	_, err = a.Restore(ctx, "")
	require.ErrorIs(t, err, ErrBackupDisabled)
	require.ErrorIs(t, a.Execute(ctx, &BackupCommand{}), ErrBackupDisabled)
}

func TestRestore_noSnapshotYet(t *testing.T) {
	a := newTestApp(t, false)
	_, err := a.Restore(context.Background(), "")
	require.ErrorIs(t, err, backup.ErrNoSuchSnapshot)
}

func TestOfflineRemote(t *testing.T) {
	ctx := context.Background()
	var r store.Remote = offline{}
	require.ErrorIs(t, r.Save(ctx, &models.Memo{}), store.ErrRemoteUnavailable)
	require.ErrorIs(t, r.Update(ctx, &models.Memo{}), store.ErrRemoteUnavailable)
	_, err := r.GetAll(ctx, models.KindMemo, "x")
	require.ErrorIs(t, err, store.ErrRemoteUnavailable)
	require.NoError(t, r.Close())
}
