package matchnote

import (
	"context"
	"fmt"
	"os"

	"github.com/matchnote/matchnote/pkg/logger"
)

// Main parses args, opens the app and runs the command.
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	log, err := logger.New("matchnote").
		Level(config.LogLevel).
		FromPath(config.LogFile).
		Pretty(config.LogPretty).
		Make()
	if err != nil {
		return err
	}
	defer log.Close()

	app, err := New(ctx, config, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	return app.Execute(ctx, cmd)
}

// Execute runs a parsed command against the app.
func (a *App) Execute(ctx context.Context, cmd Command) error {
	switch c := cmd.(type) {
	case *ServeCommand:
		if err := a.Serve(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case *SyncCommand:
		report, err := a.Sync(ctx)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		if err := report.Err(); err != nil {
			return fmt.Errorf("sync finished with errors: %w", err)
		}
	case *MigrateCommand:
		if err := a.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case *RegisterCommand:
		if _, err := a.account.Register(ctx, c.AccountID); err != nil {
			return fmt.Errorf("register failed: %w", err)
		}
	case *LoginCommand:
		if _, err := a.account.Login(ctx, c.AccountID); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	case *LogoutCommand:
		if err := a.account.Logout(ctx); err != nil {
			return fmt.Errorf("logout failed: %w", err)
		}
	case *BackupCommand:
		key, err := a.Backup(ctx)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		a.log.Info().Str("key", key).Msg("backup written")
	case *RestoreCommand:
		n, err := a.Restore(ctx, c.Key)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		a.log.Info().Int("records", n).Msg("backup restored")
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}
	return nil
}
