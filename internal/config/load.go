package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "SHELF"

// Loader reads configuration through a single viper instance so the same
// source can later be watched for changes.
type Loader struct {
	v        *viper.Viper
	validate *validator.Validate
}

// NewLoader creates a Loader with defaults, environment binding and the
// optional config file search path configured.
func NewLoader() *Loader {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.path", "shelf.db")
	v.SetDefault("queue.dir", "queue")
	v.SetDefault("queue.batch_threshold", 10)
	v.SetDefault("queue.batch_insert_threshold", 10)
	v.SetDefault("queue.batch_flush_timeout", "2s")
	v.SetDefault("queue.schedule_timeout", "1s")
	v.SetDefault("library.skip_update_window", "0s")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	return &Loader{v: v, validate: validator.New()}
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return NewLoader().Load()
}

// SetConfigFile points the loader at an explicit config file, which then
// must exist.
func (l *Loader) SetConfigFile(path string) {
	l.v.SetConfigFile(path)
}

// Load reads, unmarshals and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// Watch keeps s in sync with the config file. It reports false when no
// config file is in use, in which case nothing is watched.
func (l *Loader) Watch(s *Settings, logger *slog.Logger) bool {
	if l.v.ConfigFileUsed() == "" {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		window := l.v.GetDuration("library.skip_update_window")
		if window < 0 {
			logger.Warn("ignoring negative skip update window",
				"file", e.Name,
				"skip_update_window", window)
			return
		}
		s.SetLibraryUpdateSkipWindow(window)
		logger.Info("library settings reloaded",
			"file", e.Name,
			"skip_update_window", window)
	})
	l.v.WatchConfig()
	return true
}
