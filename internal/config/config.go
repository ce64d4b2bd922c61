// Package config loads fablekeep settings from an optional YAML file with
// FABLEKEEP_* environment variables layered on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config path is given and it exists.
const DefaultFile = "fablekeep.yaml"

// Backend names.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendGCS    = "gcs"
)

var (
	validRoles     = []string{"student", "teacher"}
	validBackends  = []string{BackendNone, BackendMemory, BackendGCS}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Config is the complete fablekeep configuration.
type Config struct {
	// DB is the sqlite file holding local state; ":memory:" keeps nothing.
	DB         string `yaml:"db" env:"FABLEKEEP_DB"`
	QuotaBytes int64  `yaml:"quota_bytes" env:"FABLEKEEP_QUOTA_BYTES"`
	ScenesDir  string `yaml:"scenes_dir" env:"FABLEKEEP_SCENES_DIR"`
	Role       string `yaml:"role" env:"FABLEKEEP_ROLE"`
	LogLevel   string `yaml:"log_level" env:"FABLEKEEP_LOG_LEVEL"`

	Backup Backup `yaml:"backup" envPrefix:"FABLEKEEP_BACKUP_"`
}

// Backup configures the remote backup store.
type Backup struct {
	Backend         string        `yaml:"backend" env:"BACKEND"`
	AppID           string        `yaml:"app_id" env:"APP_ID"`
	Bucket          string        `yaml:"bucket" env:"BUCKET"`
	Prefix          string        `yaml:"prefix" env:"PREFIX"`
	Endpoint        string        `yaml:"endpoint" env:"ENDPOINT"`
	CredentialsFile string        `yaml:"credentials_file" env:"CREDENTIALS_FILE"`
	Debounce        time.Duration `yaml:"debounce" env:"DEBOUNCE"`

	// Token is an externally issued access token. It is only read from the
	// environment so it never lands in a config file.
	Token string `yaml:"-" env:"TOKEN"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DB:         "fablekeep.db",
		QuotaBytes: 5 << 20,
		ScenesDir:  "scenes",
		Role:       "student",
		LogLevel:   "info",
		Backup: Backup{
			Backend:  BackendNone,
			AppID:    "fablekeep",
			Debounce: 2 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path,
// then the environment. An empty path reads DefaultFile when it exists.
// The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeYAML(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML decodes strictly: unknown fields are errors. An empty
// document leaves cfg unchanged.
func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// ParseEnv overlays FABLEKEEP_* environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(validRoles, c.Role) {
		errs = append(errs, fmt.Errorf("role %q: must be one of %v", c.Role, validRoles))
	}
	if c.QuotaBytes <= 0 {
		errs = append(errs, fmt.Errorf("quota_bytes must be positive, got %d", c.QuotaBytes))
	}
	if c.DB == "" {
		errs = append(errs, errors.New("db is required"))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level %q: must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validBackends, c.Backup.Backend) {
		errs = append(errs, fmt.Errorf("backup.backend %q: must be one of %v", c.Backup.Backend, validBackends))
	}
	if c.Backup.Backend == BackendGCS && c.Backup.Bucket == "" {
		errs = append(errs, errors.New("backup.bucket is required for the gcs backend"))
	}
	if c.Backup.Debounce < 0 {
		errs = append(errs, fmt.Errorf("backup.debounce must not be negative, got %s", c.Backup.Debounce))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
