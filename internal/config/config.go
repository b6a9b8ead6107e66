package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the TOML configuration for the mauflow runtime.
type Config struct {
	Database      DatabaseConfig      `toml:"database"`
	Logging       LoggingConfig       `toml:"logging"`
	Identity      IdentityConfig      `toml:"identity"`
	Notifications NotificationsConfig `toml:"notifications"`
	Retry         RetryConfig         `toml:"retry"`
	Backoff       BackoffConfig       `toml:"backoff"`
	Presence      PresenceConfig      `toml:"presence"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// IdentityConfig names the acting user when --as is not given.
type IdentityConfig struct {
	CurrentUser string `toml:"current_user"`
}

type NotificationsConfig struct {
	RetentionDays      int     `toml:"retention_days"`
	CleanupInterval    string  `toml:"cleanup_interval"`
	ConnectDelay       string  `toml:"connect_delay"`
	SettleDelay        string  `toml:"settle_delay"`
	SimulationInterval string  `toml:"simulation_interval"`
	DeliveryJitter     float64 `toml:"delivery_jitter"`
}

// RetryConfig drives the optimistic mutation coordinator.
type RetryConfig struct {
	MaxRetries           int    `toml:"max_retries"`
	RetryDelay           string `toml:"retry_delay"`
	PendingTTL           string `toml:"pending_ttl"`
	PendingSweepInterval string `toml:"pending_sweep_interval"`
}

// BackoffConfig drives exponential backoff for delegation writes.
type BackoffConfig struct {
	BaseDelay   string  `toml:"base_delay"`
	Multiplier  float64 `toml:"multiplier"`
	MaxDelay    string  `toml:"max_delay"`
	MaxAttempts int     `toml:"max_attempts"`
	JitterRatio float64 `toml:"jitter_ratio"`
}

type PresenceConfig struct {
	Interval string `toml:"interval"`
}

// Default returns the configuration used when no file exists.
func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".mauflow/log",
			},
		},
		Notifications: NotificationsConfig{
			RetentionDays:      30,
			CleanupInterval:    "1h",
			ConnectDelay:       "1s",
			SettleDelay:        "150ms",
			SimulationInterval: "30s",
			DeliveryJitter:     0.2,
		},
		Retry: RetryConfig{
			MaxRetries:           3,
			RetryDelay:           "1s",
			PendingTTL:           "60s",
			PendingSweepInterval: "30s",
		},
		Backoff: BackoffConfig{
			BaseDelay:   "1s",
			Multiplier:  2,
			MaxDelay:    "30s",
			MaxAttempts: 3,
			JitterRatio: 0.1,
		},
		Presence: PresenceConfig{
			Interval: "30s",
		},
	}
}

// Load reads path over defaults. A missing or empty file yields the defaults unchanged.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every field that the runtime parses.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when dev_file is enabled")
	}

	if c.Notifications.RetentionDays < 1 {
		return fmt.Errorf("notifications.retention_days must be >= 1, got %d", c.Notifications.RetentionDays)
	}
	if c.Notifications.DeliveryJitter < 0 || c.Notifications.DeliveryJitter > 1 {
		return fmt.Errorf("notifications.delivery_jitter must be within [0,1], got %v", c.Notifications.DeliveryJitter)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries)
	}
	if c.Backoff.MaxAttempts < 1 {
		return fmt.Errorf("backoff.max_attempts must be >= 1, got %d", c.Backoff.MaxAttempts)
	}
	if c.Backoff.Multiplier < 1 {
		return fmt.Errorf("backoff.multiplier must be >= 1, got %v", c.Backoff.Multiplier)
	}
	if c.Backoff.JitterRatio < 0 || c.Backoff.JitterRatio > 1 {
		return fmt.Errorf("backoff.jitter_ratio must be within [0,1], got %v", c.Backoff.JitterRatio)
	}

	for _, d := range c.durations() {
		if _, err := parseDuration(d.field, d.value, d.allowZero); err != nil {
			return err
		}
	}
	return nil
}

type durationField struct {
	field     string
	value     string
	allowZero bool
}

func (c Config) durations() []durationField {
	return []durationField{
		{"notifications.cleanup_interval", c.Notifications.CleanupInterval, true},
		{"notifications.connect_delay", c.Notifications.ConnectDelay, true},
		{"notifications.settle_delay", c.Notifications.SettleDelay, false},
		{"notifications.simulation_interval", c.Notifications.SimulationInterval, false},
		{"retry.retry_delay", c.Retry.RetryDelay, false},
		{"retry.pending_ttl", c.Retry.PendingTTL, false},
		{"retry.pending_sweep_interval", c.Retry.PendingSweepInterval, false},
		{"backoff.base_delay", c.Backoff.BaseDelay, false},
		{"backoff.max_delay", c.Backoff.MaxDelay, false},
		{"presence.interval", c.Presence.Interval, false},
	}
}

// parseDuration parses a TOML duration string. Blank means zero, which only some fields accept.
func parseDuration(field, raw string, allowZero bool) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if allowZero {
			return 0, nil
		}
		return 0, fmt.Errorf("%s is required", field)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("%s must be positive, got %s", field, raw)
	}
	return d, nil
}

// Duration returns the parsed value of a validated duration string, or zero when malformed.
func Duration(raw string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	raw, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode toml: %w", err)
	}
	return raw, nil
}

// Save writes cfg to path. An existing file is kept unless overwrite is set.
func Save(path string, cfg Config, overwrite bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("config path is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists", path)
		}
	}
	raw, err := Encode(cfg)
	if err != nil {
		return err
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
