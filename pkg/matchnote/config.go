package matchnote

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment variable Config reads.
const EnvPrefix = "MATCHNOTE"

const (
	RemoteSurrealDB = "surrealdb"
	RemotePostgres  = "postgres"

	SettingsLocal = "local"
	SettingsRedis = "redis"
)

// Config is read from MATCHNOTE_* environment variables, then adjusted by
// command line flags.
type Config struct {
	LocalPath string `envconfig:"LOCAL_PATH" default:"matchnote.db"`

	RemoteDriver string        `envconfig:"REMOTE_DRIVER" default:"surrealdb"`
	SurrealURL   string        `envconfig:"SURREAL_URL" default:"ws://localhost:8000/rpc"`
	SurrealNS    string        `envconfig:"SURREAL_NS" default:"matchnote"`
	SurrealDB    string        `envconfig:"SURREAL_DB" default:"matchnote"`
	SurrealUser  string        `envconfig:"SURREAL_USER" default:"root"`
	SurrealPass  string        `envconfig:"SURREAL_PASS" default:"root"`
	PostgresDSN  string        `envconfig:"POSTGRES_DSN" default:""`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"10s"`

	SettingsDriver string `envconfig:"SETTINGS_DRIVER" default:"local"`
	RedisURL       string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	ProbeAddr    string        `envconfig:"PROBE_ADDR" default:"8.8.8.8:53"`
	ProbeTimeout time.Duration `envconfig:"PROBE_TIMEOUT" default:"1500ms"`

	HTTPPort     int           `envconfig:"HTTP_PORT" default:"8080"`
	SyncInterval time.Duration `envconfig:"SYNC_INTERVAL" default:"5m"`

	// Backups are disabled while BackupEndpoint is empty.
	BackupEndpoint  string `envconfig:"BACKUP_ENDPOINT" default:""`
	BackupAccessKey string `envconfig:"BACKUP_ACCESS_KEY" default:""`
	BackupSecretKey string `envconfig:"BACKUP_SECRET_KEY" default:""`
	BackupBucket    string `envconfig:"BACKUP_BUCKET" default:"matchnote-backups"`
	BackupSSL       bool   `envconfig:"BACKUP_SSL" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	// LogFile appends logs to a file; empty logs to stderr.
	LogFile string `envconfig:"LOG_FILE" default:""`
}

// LoadConfig reads the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	return &cfg, nil
}

// Validate rejects unknown drivers and incomplete driver settings.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return fmt.Errorf("%s_LOCAL_PATH must not be empty", EnvPrefix)
	}
	switch c.RemoteDriver {
	case RemoteSurrealDB:
		if c.SurrealURL == "" {
			return fmt.Errorf("%s_SURREAL_URL is required for the surrealdb remote", EnvPrefix)
		}
	case RemotePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%s_POSTGRES_DSN is required for the postgres remote", EnvPrefix)
		}
	default:
		return fmt.Errorf("unsupported %s_REMOTE_DRIVER: %q", EnvPrefix, c.RemoteDriver)
	}
	switch c.SettingsDriver {
	case SettingsLocal:
	case SettingsRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%s_REDIS_URL is required for redis settings", EnvPrefix)
		}
	default:
		return fmt.Errorf("unsupported %s_SETTINGS_DRIVER: %q", EnvPrefix, c.SettingsDriver)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid %s_HTTP_PORT: %d", EnvPrefix, c.HTTPPort)
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("%s_SYNC_INTERVAL must not be negative", EnvPrefix)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid %s_LOG_LEVEL: %w", EnvPrefix, err)
	}
	return nil
}

// BackupEnabled reports whether an object store is configured.
func (c *Config) BackupEnabled() bool {
	return c.BackupEndpoint != ""
}
