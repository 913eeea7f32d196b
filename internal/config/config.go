package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	RemoteGDrive   = "gdrive"
	RemoteS3       = "s3"
	RemoteLocal    = "local"
	RemoteDisabled = "disabled"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Database DatabaseConfig `mapstructure:"database"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type AppConfig struct {
	Name            string `mapstructure:"name"`
	LogLevel        string `mapstructure:"log_level"`
	LogFile         string `mapstructure:"log_file"`
	MetricsAddr     string `mapstructure:"metrics_addr"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

type BackupConfig struct {
	SourceDir       string   `mapstructure:"source_dir"`
	Files           []string `mapstructure:"files"`
	SnapshotDir     string   `mapstructure:"snapshot_dir"`
	Prefix          string   `mapstructure:"prefix"`
	Container       string   `mapstructure:"container"`
	Kind            string   `mapstructure:"kind"`
	RetentionDays   int      `mapstructure:"retention_days"`
	Schedule        string   `mapstructure:"schedule"`
	WorkDir         string   `mapstructure:"work_dir"`
	StrictContainer bool     `mapstructure:"strict_container"`
}

type RemoteConfig struct {
	Type string `mapstructure:"type"`

	// Google Drive
	CredentialsFile  string `mapstructure:"credentials_file"`
	ClientSecretFile string `mapstructure:"client_secret_file"`
	TokenFile        string `mapstructure:"token_file"`
	ChunkSizeMB      int    `mapstructure:"chunk_size_mb"`

	// AWS S3 and compatible
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`

	// Local directory
	Path string `mapstructure:"path"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type NotifyConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BotToken      string `mapstructure:"bot_token"`
	ChatID        string `mapstructure:"chat_id"`
	OnFailureOnly bool   `mapstructure:"on_failure_only"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stashd")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("backup.source_dir", "/mnt/time-management-data/data")
	v.SetDefault("backup.files", []string{"tasks.json", "events.json", "shopping.json"})
	v.SetDefault("backup.snapshot_dir", "snapshots")
	v.SetDefault("backup.prefix", "time-management-backup")
	v.SetDefault("backup.container", "time-management-backups")
	v.SetDefault("backup.kind", "deployment")
	v.SetDefault("backup.retention_days", 30)
	v.SetDefault("backup.schedule", "0 0 2 * * *")

	v.SetDefault("remote.type", RemoteGDrive)
	v.SetDefault("remote.chunk_size_mb", 8)
	v.SetDefault("remote.region", "us-east-1")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_interval", 30*time.Second)
	v.SetDefault("retry.max_interval", 5*time.Minute)

	v.SetDefault("database.name", "app")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "require")
}

// Load reads the YAML file at path. An empty path yields the defaults, still
// subject to STASHD_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("stashd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Backup.SourceDir == "" {
		return fmt.Errorf("backup.source_dir is required")
	}
	if len(c.Backup.Files) == 0 {
		return fmt.Errorf("backup.files must name at least one file")
	}

	seen := make(map[string]bool, len(c.Backup.Files))
	for i, name := range c.Backup.Files {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("backup.files[%d]: %q is not a plain file name", i, name)
		}
		if seen[name] {
			return fmt.Errorf("backup.files[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
	}

	if c.Backup.SnapshotDir == "" || strings.ContainsAny(c.Backup.SnapshotDir, `/\`) {
		return fmt.Errorf("backup.snapshot_dir must be a plain directory name")
	}
	if seen[c.Backup.SnapshotDir] {
		return fmt.Errorf("backup.snapshot_dir %q collides with a data file", c.Backup.SnapshotDir)
	}
	if c.Backup.Prefix == "" {
		return fmt.Errorf("backup.prefix is required")
	}
	if c.Backup.Container == "" {
		return fmt.Errorf("backup.container is required")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days must not be negative")
	}

	switch c.Remote.Type {
	case RemoteGDrive:
		if c.Remote.ChunkSizeMB < 0 {
			return fmt.Errorf("remote.chunk_size_mb must not be negative")
		}
	case RemoteS3:
		if c.Remote.Bucket == "" {
			return fmt.Errorf("remote.bucket is required for s3")
		}
	case RemoteLocal:
		if c.Remote.Path == "" {
			return fmt.Errorf("remote.path is required for local")
		}
	case RemoteDisabled:
	default:
		return fmt.Errorf("unknown remote.type %q", c.Remote.Type)
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required when enabled")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required when enabled")
		}
	}

	if c.Notify.Enabled && (c.Notify.BotToken == "" || c.Notify.ChatID == "") {
		return fmt.Errorf("notify.bot_token and notify.chat_id are required when enabled")
	}

	return nil
}

// HasGDriveCredentials reports whether either a service account key or an
// OAuth client/token pair is configured.
func (r RemoteConfig) HasGDriveCredentials() bool {
	return r.CredentialsFile != "" || (r.ClientSecretFile != "" && r.TokenFile != "")
}
