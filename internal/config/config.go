package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Library  LibraryConfig  `mapstructure:"library"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the embedded store settings.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	Path string `mapstructure:"path" validate:"required"`
}

// QueueConfig configures the write queue and its on-disk records.
type QueueConfig struct {
	// Dir holds the persisted queue records.
	Dir string `mapstructure:"dir" validate:"required"`

	// BatchThreshold is the number of queued same-category tasks that are
	// executed together in one transaction.
	BatchThreshold int `mapstructure:"batch_threshold" validate:"gte=2"`

	// BatchInsertThreshold is the number of accumulated payloads that forces
	// a batch record to be written.
	BatchInsertThreshold int `mapstructure:"batch_insert_threshold" validate:"gte=1"`

	// BatchFlushTimeout is the inactivity period after which accumulated
	// payloads are written even below BatchInsertThreshold.
	BatchFlushTimeout time.Duration `mapstructure:"batch_flush_timeout" validate:"gt=0"`

	// ScheduleTimeout is how long the queue waits for a nearly full batch
	// before draining it in arrival order.
	ScheduleTimeout time.Duration `mapstructure:"schedule_timeout" validate:"gt=0"`
}

// LibraryConfig contains user-facing library refresh settings.
type LibraryConfig struct {
	// SkipUpdateWindow is the minimum age of a novel's last update before a
	// refresh is applied again. Zero disables the window.
	SkipUpdateWindow time.Duration `mapstructure:"skip_update_window" validate:"gte=0"`
}
