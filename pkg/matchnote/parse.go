package matchnote

import (
	"errors"
	"io"

	"github.com/spf13/cobra"
)

// ErrNoCommand is returned when the arguments name no subcommand, for
// example after --help.
var ErrNoCommand = errors.New("subcommand required")

// Parse reads the environment and args into a command and its configuration.
// Flags override the environment.
func Parse(args []string, out io.Writer) (Command, *Config, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	var cmd Command
	set := func(c Command) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, args []string) error {
			switch c := c.(type) {
			case *RegisterCommand:
				c.AccountID = args[0]
			case *LoginCommand:
				c.AccountID = args[0]
			case *RestoreCommand:
				if len(args) > 0 {
					c.Key = args[0]
				}
			}
			cmd = c
			return nil
		}
	}

	root := &cobra.Command{
		Use:           "matchnote",
		Short:         "Local-first training notebook with cloud sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)

	flags := root.PersistentFlags()
	flags.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level (trace, debug, info, warn, error)")
	flags.BoolVar(&config.LogPretty, "pretty", config.LogPretty, "human readable log output")
	flags.StringVar(&config.LogFile, "log-file", config.LogFile, "append logs to this file instead of stderr")
	flags.StringVar(&config.LocalPath, "db", config.LocalPath, "path of the local database")
	flags.StringVar(&config.RemoteDriver, "remote", config.RemoteDriver, "remote store: surrealdb or postgres")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and sync in the background",
		Args:  cobra.NoArgs,
		RunE:  set(&ServeCommand{}),
	}
	serve.Flags().IntVar(&config.HTTPPort, "port", config.HTTPPort, "HTTP port")
	serve.Flags().DurationVar(&config.SyncInterval, "sync-interval", config.SyncInterval, "background sync interval, 0 disables it")

	root.AddCommand(
		serve,
		&cobra.Command{
			Use:   "sync",
			Short: "Reconcile local and remote records once",
			Args:  cobra.NoArgs,
			RunE:  set(&SyncCommand{}),
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Migrate the local and remote schemas",
			Args:  cobra.NoArgs,
			RunE:  set(&MigrateCommand{}),
		},
		&cobra.Command{
			Use:   "register <account-id>",
			Short: "Bind this device's records to a new account",
			Args:  cobra.ExactArgs(1),
			RunE:  set(&RegisterCommand{}),
		},
		&cobra.Command{
			Use:   "login <account-id>",
			Short: "Bind this device's records to an account and sync",
			Args:  cobra.ExactArgs(1),
			RunE:  set(&LoginCommand{}),
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Sign out, keeping local records",
			Args:  cobra.NoArgs,
			RunE:  set(&LogoutCommand{}),
		},
		&cobra.Command{
			Use:   "backup",
			Short: "Write a snapshot of local records to object storage",
			Args:  cobra.NoArgs,
			RunE:  set(&BackupCommand{}),
		},
		&cobra.Command{
			Use:   "restore [key]",
			Short: "Merge a snapshot back, the latest one by default",
			Args:  cobra.MaximumNArgs(1),
			RunE:  set(&RestoreCommand{}),
		},
	)

	if err := root.Execute(); err != nil {
		return nil, nil, err
	}
	if cmd == nil {
		return nil, nil, ErrNoCommand
	}
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	return cmd, config, nil
}
