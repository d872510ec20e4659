package matchnote

// Command is a parsed subcommand.
type Command interface {
	Name() string
}

// ServeCommand starts the HTTP API and the background sync loop.
type ServeCommand struct{}

func (c *ServeCommand) Name() string { return "serve" }

// SyncCommand runs a single reconciliation pass.
type SyncCommand struct{}

func (c *SyncCommand) Name() string { return "sync" }

// MigrateCommand brings the local and remote schemas up to date.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }

// RegisterCommand binds the device's records to a new account.
type RegisterCommand struct {
	AccountID string
}

func (c *RegisterCommand) Name() string { return "register" }

// LoginCommand binds the device's records to an existing account and syncs.
type LoginCommand struct {
	AccountID string
}

func (c *LoginCommand) Name() string { return "login" }

type LogoutCommand struct{}

func (c *LogoutCommand) Name() string { return "logout" }

// BackupCommand writes a snapshot of the current owner's records.
type BackupCommand struct{}

func (c *BackupCommand) Name() string { return "backup" }

// RestoreCommand merges a snapshot back. Key defaults to the latest snapshot.
type RestoreCommand struct {
	Key string
}

func (c *RestoreCommand) Name() string { return "restore" }
