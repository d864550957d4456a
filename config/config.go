// Package config loads pedometer settings from a YAML file, PEDOMETER_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PEDOMETER_SENSOR_SOURCE.
const EnvPrefix = "PEDOMETER"

// Config holds the complete application configuration
type Config struct {
	Sensor        SensorConfig        `mapstructure:"sensor"`
	Simulator     SimulatorConfig     `mapstructure:"simulator"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Background    BackgroundConfig    `mapstructure:"background"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

// SensorConfig selects the sample source
type SensorConfig struct {
	Source         string        `mapstructure:"source"` // simulator or ring
	UpdateInterval time.Duration `mapstructure:"update_interval"`
	RingName       string        `mapstructure:"ring_name"`
}

type SimulatorConfig struct {
	Cadence time.Duration `mapstructure:"cadence"`
}

// NotificationsConfig defines how the step count is presented
type NotificationsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Backend   string `mapstructure:"backend"` // terminal or desktop
	Sound     bool   `mapstructure:"sound"`
	QueueSize int    `mapstructure:"queue_size"`
	// DesktopInterval is the minimum gap between desktop banners.
	DesktopInterval time.Duration `mapstructure:"desktop_interval"`
}

// BackgroundConfig defines the persisted background task
type BackgroundConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	DBPath      string        `mapstructure:"db_path"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
	File   string `mapstructure:"file"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Loader wraps a viper instance so the file can be re-read on change.
type Loader struct {
	v *viper.Viper
}

// NewLoader reads path. An empty path searches ./pedometer.yaml and
// ~/.pedometer/config.yaml. A missing file falls back to defaults and the
// environment.
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pedometer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pedometer"))
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}
	return &Loader{v: v}, nil
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	l, err := NewLoader(path)
	if err != nil {
		return nil, err
	}
	return l.Config()
}

// Config decodes and validates the current settings.
func (l *Loader) Config() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// File returns the config file in use, or "" when running on defaults.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Settings returns every resolved key, for display.
func (l *Loader) Settings() map[string]any {
	return l.v.AllSettings()
}

// Watch calls fn with the re-read configuration whenever the file changes.
// It reports false when there is no file to watch.
func (l *Loader) Watch(fn func(*Config, error)) bool {
	if l.File() == "" {
		return false
	}
	if _, err := os.Stat(l.File()); err != nil {
		return false
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		fn(l.Config())
	})
	l.v.WatchConfig()
	return true
}

func setDefaults(v *viper.Viper) {
	// Sensor defaults
	v.SetDefault("sensor.source", "simulator")
	v.SetDefault("sensor.update_interval", "100ms")
	v.SetDefault("sensor.ring_name", "pedometer_accel_shm")
	v.SetDefault("simulator.cadence", "550ms")

	// Notification defaults
	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.backend", "terminal")
	v.SetDefault("notifications.sound", false)
	v.SetDefault("notifications.queue_size", 16)
	v.SetDefault("notifications.desktop_interval", "5s")

	// Background defaults
	v.SetDefault("background.enabled", true)
	v.SetDefault("background.db_path", "~/.pedometer/tasks.db")
	v.SetDefault("background.min_interval", "60s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9464")
}

func validate(cfg *Config) error {
	switch cfg.Sensor.Source {
	case "simulator", "ring":
	default:
		return fmt.Errorf("unknown sensor source: %q", cfg.Sensor.Source)
	}
	if cfg.Sensor.UpdateInterval <= 0 {
		return fmt.Errorf("invalid sensor update interval: %s", cfg.Sensor.UpdateInterval)
	}
	if cfg.Simulator.Cadence <= 0 {
		return fmt.Errorf("invalid simulator cadence: %s", cfg.Simulator.Cadence)
	}

	switch cfg.Notifications.Backend {
	case "terminal", "desktop":
	default:
		return fmt.Errorf("unknown notification backend: %q", cfg.Notifications.Backend)
	}
	if cfg.Notifications.QueueSize <= 0 {
		return fmt.Errorf("invalid notification queue size: %d", cfg.Notifications.QueueSize)
	}
	if cfg.Notifications.DesktopInterval <= 0 {
		return fmt.Errorf("invalid desktop notification interval: %s", cfg.Notifications.DesktopInterval)
	}

	if cfg.Background.Enabled && cfg.Background.DBPath == "" {
		return fmt.Errorf("background db path is required")
	}
	path, err := ExpandHome(cfg.Background.DBPath)
	if err != nil {
		return err
	}
	cfg.Background.DBPath = path

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Address == "" {
		return fmt.Errorf("metrics address is required")
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
