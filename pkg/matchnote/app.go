package matchnote

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/matchnote/matchnote/pkg/account"
	"github.com/matchnote/matchnote/pkg/backup"
	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/netcheck"
	"github.com/matchnote/matchnote/pkg/notebook"
	"github.com/matchnote/matchnote/pkg/reconcile"
	"github.com/matchnote/matchnote/pkg/session"
	"github.com/matchnote/matchnote/pkg/settings"
	"github.com/matchnote/matchnote/pkg/store"
	"github.com/matchnote/matchnote/pkg/store/local"
	"github.com/matchnote/matchnote/pkg/store/postgres"
	"github.com/matchnote/matchnote/pkg/store/surrealdb"
)

// ErrBackupDisabled is returned by backup commands when no object store is configured.
var ErrBackupDisabled = errors.New("backups are not configured")

// App wires the stores, gates and services behind the CLI and the HTTP API.
type App struct {
	config *Config
	log    zerolog.Logger

	local    *local.Store
	remote   store.Remote
	settings settings.Store
	session  *session.Session
	gate     *session.Gate

	reconciler *reconcile.Reconciler
	notebook   *notebook.Service
	account    *account.Service
	backup     *backup.Service
}

// deps are the pieces New opens from the configuration.
type deps struct {
	local    *local.Store
	remote   store.Remote
	settings settings.Store
	prober   session.Prober
	objects  backup.ObjectStore
}

// New opens everything config points at. A remote that cannot be reached
// does not fail startup: the app runs offline until the next start.
func New(ctx context.Context, config *Config, log zerolog.Logger) (*App, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	l, err := local.Open(config.LocalPath, log)
	if err != nil {
		return nil, err
	}
	if err := l.Migrate(ctx); err != nil {
		l.Close()
		return nil, err
	}

	kv, err := openSettings(ctx, config, l)
	if err != nil {
		l.Close()
		return nil, err
	}

	remote, err := openRemote(ctx, config, log)
	if err != nil {
		log.Warn().Err(err).Str("driver", config.RemoteDriver).Msg("remote store unreachable; running offline")
		remote = offline{}
	}

	var objects backup.ObjectStore
	if config.BackupEnabled() {
		objects, err = backup.NewMinioStore(ctx, backup.MinioConfig{
			Endpoint:  config.BackupEndpoint,
			AccessKey: config.BackupAccessKey,
			SecretKey: config.BackupSecretKey,
			Bucket:    config.BackupBucket,
			UseSSL:    config.BackupSSL,
		})
		if err != nil {
			log.Warn().Err(err).Msg("object storage unreachable; backups disabled")
			objects = nil
		}
	}

	return assemble(config, deps{
		local:    l,
		remote:   remote,
		settings: kv,
		prober:   netcheck.New(config.ProbeAddr, config.ProbeTimeout, log),
		objects:  objects,
	}, log)
}

func assemble(config *Config, d deps, log zerolog.Logger) (*App, error) {
	sess := session.New(d.settings)
	gate := session.NewGate(sess, d.prober)
	rec := reconcile.New(d.local, d.remote, sess, log)
	nb := notebook.New(d.local, d.remote, gate, sess, rec, log)

	a := &App{
		config:     config,
		log:        log,
		local:      d.local,
		remote:     d.remote,
		settings:   d.settings,
		session:    sess,
		gate:       gate,
		reconciler: rec,
		notebook:   nb,
		account:    account.New(d.local, sess, nb, log),
	}
	if d.objects != nil {
		svc, err := backup.New(d.local, d.objects, log)
		if err != nil {
			return nil, err
		}
		a.backup = svc
	}
	return a, nil
}

func openSettings(ctx context.Context, config *Config, l *local.Store) (settings.Store, error) {
	switch config.SettingsDriver {
	case SettingsRedis:
		return settings.NewRedisStore(ctx, config.RedisURL, "matchnote:")
	default:
		return settings.NewDBStore(l.DB())
	}
}

func openRemote(ctx context.Context, config *Config, log zerolog.Logger) (store.Remote, error) {
	switch config.RemoteDriver {
	case RemotePostgres:
		return postgres.New(config.PostgresDSN, log)
	default:
		return surrealdb.New(ctx, surrealdb.Config{
			URL:         config.SurrealURL,
			Namespace:   config.SurrealNS,
			Database:    config.SurrealDB,
			Username:    config.SurrealUser,
			Password:    config.SurrealPass,
			DialTimeout: config.DialTimeout,
		}, log)
	}
}

// Close releases the stores in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	if a.remote != nil {
		errs = append(errs, a.remote.Close())
	}
	if a.settings != nil {
		errs = append(errs, a.settings.Close())
	}
	if a.local != nil {
		errs = append(errs, a.local.Close())
	}
	return errors.Join(errs...)
}

// Migrate brings the local schema and, when reachable, the remote schema up to date.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.local.Migrate(ctx); err != nil {
		return err
	}
	m, ok := a.remote.(interface{ Migrate(context.Context) error })
	if !ok {
		return nil
	}
	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate remote: %w", err)
	}
	return nil
}

// Sync runs one reconciliation pass and logs a line per kind.
func (a *App) Sync(ctx context.Context) (reconcile.Report, error) {
	report, err := a.notebook.Sync(ctx)
	if err != nil {
		return report, err
	}
	for _, res := range report.Results {
		ev := a.log.Info()
		if res.Err != nil {
			ev = a.log.Warn().Err(res.Err)
		}
		ev.Str("kind", res.Kind.String()).
			Int("pushed", res.Pushed+res.PushedUpdates).
			Int("pulled", res.Pulled+res.PulledUpdates).
			Int("failed", res.Failed).
			Msg("synced")
	}
	return report, nil
}

// Backup snapshots the current owner's records.
func (a *App) Backup(ctx context.Context) (string, error) {
	if a.backup == nil {
		return "", ErrBackupDisabled
	}
	owner, err := a.session.OwnerID(ctx)
	if err != nil {
		return "", err
	}
	return a.backup.Export(ctx, owner)
}

// Restore merges a snapshot back. An empty key restores the owner's latest one.
func (a *App) Restore(ctx context.Context, key string) (int, error) {
	if a.backup == nil {
		return 0, ErrBackupDisabled
	}
	if key == "" {
		owner, err := a.session.OwnerID(ctx)
		if err != nil {
			return 0, err
		}
		key, err = a.backup.Latest(ctx, owner)
		if err != nil {
			return 0, err
		}
		if key == "" {
			return 0, fmt.Errorf("%w: none for %s", backup.ErrNoSuchSnapshot, owner)
		}
	}
	return a.backup.Restore(ctx, key)
}

// offline stands in for a remote that could not be reached at startup.
type offline struct{}

func (offline) Save(context.Context, models.Record) error   { return store.ErrRemoteUnavailable }
func (offline) Update(context.Context, models.Record) error { return store.ErrRemoteUnavailable }
func (offline) GetAll(context.Context, models.Kind, string) ([]models.Record, error) {
	return nil, store.ErrRemoteUnavailable
}
func (offline) Close() error { return nil }
