package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vertextoedge/himawari-fetch/internal/catalog"
)

// DefaultPath is the config file used when none is given
const DefaultPath = "himawari-fetch.yaml"

// EnvPrefix prefixes environment overrides, e.g. HIMAWARI_SERVER_PASSWORD
const EnvPrefix = "HIMAWARI"

// Config represents the entire application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Remote      RemoteConfig      `mapstructure:"remote"`
	Download    DownloadConfig    `mapstructure:"download"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig contains SFTP server settings
type ServerConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
	KnownHostsPath string `mapstructure:"known_hosts_path"`
	DialTimeout    string `mapstructure:"dial_timeout"`
	MaxPacket      int    `mapstructure:"max_packet"`
}

// RemoteConfig describes where and what to look for on the server
type RemoteConfig struct {
	RootDir   string `mapstructure:"root_dir"`
	Satellite string `mapstructure:"satellite"`
	Area      string `mapstructure:"area"`
	Bands     string `mapstructure:"bands"` // preset or comma separated list
}

// DownloadConfig contains download settings
type DownloadConfig struct {
	Workers               int    `mapstructure:"workers"`
	BaseDir               string `mapstructure:"base_dir"`
	OrganizeByTime        bool   `mapstructure:"organize_by_time"`
	KeepOriginalStructure bool   `mapstructure:"keep_original_structure"`
	TempSuffix            string `mapstructure:"temp_suffix"`
	MaxRetries            int    `mapstructure:"max_retries"`
	RetryDelay            string `mapstructure:"retry_delay"`
	AttemptTimeout        string `mapstructure:"attempt_timeout"`
	BufferSizeKB          int    `mapstructure:"buffer_size_kb"`
	ProgressInterval      string `mapstructure:"progress_interval"`
	Scheduling            string `mapstructure:"scheduling"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DatabaseConfig contains run journal settings
type DatabaseConfig struct {
	Path      string `mapstructure:"path"`
	Retention string `mapstructure:"retention"`
}

// MetricsConfig contains the status endpoint settings; an empty address disables it
type MetricsConfig struct {
	BindAddr string `mapstructure:"bind_addr"`
}

// MaintenanceConfig contains cleanup settings
type MaintenanceConfig struct {
	TempMaxAge string `mapstructure:"temp_max_age"`
}

// FlagBinding maps a config key to a command line flag.
// The flag wins over the file and the environment only when it was set.
type FlagBinding struct {
	Key  string
	Flag *pflag.Flag
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 22)
	v.SetDefault("server.username", "")
	v.SetDefault("server.password", "")
	v.SetDefault("server.private_key_path", "")
	v.SetDefault("server.known_hosts_path", "")
	v.SetDefault("server.dial_timeout", "30s")
	v.SetDefault("server.max_packet", 0)
	v.SetDefault("remote.root_dir", catalog.DefaultRemoteRoot)
	v.SetDefault("remote.satellite", "")
	v.SetDefault("remote.area", catalog.DefaultArea)
	v.SetDefault("remote.bands", catalog.PresetVisible)
	v.SetDefault("download.workers", 4)
	v.SetDefault("download.base_dir", "./himawari_data")
	v.SetDefault("download.organize_by_time", true)
	v.SetDefault("download.keep_original_structure", false)
	v.SetDefault("download.temp_suffix", ".downloading")
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.retry_delay", "2s")
	v.SetDefault("download.attempt_timeout", "0s")
	v.SetDefault("download.buffer_size_kb", 256)
	v.SetDefault("download.progress_interval", "5s")
	v.SetDefault("download.scheduling", "static")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("database.path", "")
	v.SetDefault("database.retention", "720h")
	v.SetDefault("metrics.bind_addr", "")
	v.SetDefault("maintenance.temp_max_age", "72h")
}

// Load loads configuration from the specified file path, applies HIMAWARI_*
// environment overrides and the given flags, and validates the result
func Load(configPath string, flags ...FlagBinding) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range flags {
		if b.Flag == nil {
			continue
		}
		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", b.Flag.Name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// WriteDefault writes a config file with default values and placeholder
// credentials. An existing file is never overwritten.
func WriteDefault(path string) error {
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.Set("server.host", "your_server.com")
	v.Set("server.username", "your_username")
	v.Set("server.password", "your_password")

	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.Username == "" {
		return fmt.Errorf("server.username is required")
	}
	if c.Server.Password == "" && c.Server.PrivateKeyPath == "" {
		return fmt.Errorf("server.password or server.private_key_path is required")
	}

	if c.Download.Workers < 1 {
		return fmt.Errorf("download.workers must be at least 1")
	}
	if c.Download.BaseDir == "" {
		return fmt.Errorf("download.base_dir is required")
	}
	if c.Download.MaxRetries < 0 {
		return fmt.Errorf("download.max_retries must not be negative")
	}
	switch c.Download.Scheduling {
	case "static", "queue":
	default:
		return fmt.Errorf("invalid download.scheduling: %s", c.Download.Scheduling)
	}

	if _, err := catalog.ParseBands(c.Remote.Bands); err != nil {
		return fmt.Errorf("invalid remote.bands: %w", err)
	}

	durations := map[string]string{
		"server.dial_timeout":        c.Server.DialTimeout,
		"download.retry_delay":       c.Download.RetryDelay,
		"download.attempt_timeout":   c.Download.AttemptTimeout,
		"download.progress_interval": c.Download.ProgressInterval,
		"database.retention":         c.Database.Retention,
		"maintenance.temp_max_age":   c.Maintenance.TempMaxAge,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetDialTimeout returns the SSH dial timeout
func (c *ServerConfig) GetDialTimeout() time.Duration {
	d, _ := time.ParseDuration(c.DialTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetBands returns the selected bands
func (c *RemoteConfig) GetBands() []string {
	bands, err := catalog.ParseBands(c.Bands)
	if err != nil {
		return catalog.VisibleBands()
	}
	return bands
}

// GetRetryDelay returns the delay between attempts of a task
func (c *DownloadConfig) GetRetryDelay() time.Duration {
	d, _ := time.ParseDuration(c.RetryDelay)
	return d
}

// GetAttemptTimeout returns the per-attempt bound; zero means none
func (c *DownloadConfig) GetAttemptTimeout() time.Duration {
	d, _ := time.ParseDuration(c.AttemptTimeout)
	return d
}

// GetBufferSize returns the sink buffer size in bytes
func (c *DownloadConfig) GetBufferSize() int {
	if c.BufferSizeKB <= 0 {
		return 256 * 1024
	}
	return c.BufferSizeKB * 1024
}

// GetProgressInterval returns how often progress is logged
func (c *DownloadConfig) GetProgressInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProgressInterval)
	return d
}

// GetRetention returns how long runs stay in the journal
func (c *DatabaseConfig) GetRetention() time.Duration {
	d, _ := time.ParseDuration(c.Retention)
	if d == 0 {
		return 30 * 24 * time.Hour
	}
	return d
}

// GetTempMaxAge returns the age after which a temp file counts as stale
func (c *MaintenanceConfig) GetTempMaxAge() time.Duration {
	d, _ := time.ParseDuration(c.TempMaxAge)
	if d == 0 {
		return 72 * time.Hour
	}
	return d
}

// DatabasePath returns the journal location, defaulting to a file in the
// download directory
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Download.BaseDir, "journal.db")
}
