// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/cinema.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultDatabaseMigrationsPath    = "file://./migrations"
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultDatabaseEnableWAL         = true
	defaultPlaybackTickInterval      = 50 * time.Millisecond
	defaultPlaybackWarmupTicks       = 5
	defaultPlaybackPeriodTicks       = 1
	defaultPlaybackDispatchQueueSize = 256
	defaultPlaybackFailureBuffer     = 64
	defaultPlaybackFailureThreshold  = 40
	defaultPlaybackFailureReset      = 10 * time.Second
	defaultRecordingsDir             = "./recordings"
	defaultRecordingsPollInterval    = 2 * time.Second
	envPrefix                        = "CINEMA"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Logging    LoggingConfig
	Playback   PlaybackConfig
	Recordings RecordingsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
	MigrationsPath    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// PlaybackConfig holds tick scheduling configuration for timeline playback
type PlaybackConfig struct {
	// TickInterval is the wall-clock length of one simulation tick
	TickInterval time.Duration
	// WarmupTicks is the delay before the first step of a started playback
	WarmupTicks int
	// PeriodTicks is the number of ticks between two steps
	PeriodTicks int
	// DispatchQueueSize bounds pending main-thread actions
	DispatchQueueSize int
	// FailureBuffer bounds undelivered step failures kept by the scheduler
	FailureBuffer int
	// FailureThreshold stops a playback after that many failed steps; 0 disables
	FailureThreshold int
	// FailureReset is the quiet gap that restarts a playback's failure count
	FailureReset time.Duration
}

// RecordingsConfig holds the recording file directory settings
type RecordingsConfig struct {
	// Dir is watched for recording files; empty disables loading from disk
	Dir          string
	PollInterval time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cinema")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)
	v.SetDefault("database.migrationspath", defaultDatabaseMigrationsPath)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	// Playback defaults
	v.SetDefault("playback.tickinterval", defaultPlaybackTickInterval)
	v.SetDefault("playback.warmupticks", defaultPlaybackWarmupTicks)
	v.SetDefault("playback.periodticks", defaultPlaybackPeriodTicks)
	v.SetDefault("playback.dispatchqueuesize", defaultPlaybackDispatchQueueSize)
	v.SetDefault("playback.failurebuffer", defaultPlaybackFailureBuffer)
	v.SetDefault("playback.failurethreshold", defaultPlaybackFailureThreshold)
	v.SetDefault("playback.failurereset", defaultPlaybackFailureReset)

	// Recordings defaults
	v.SetDefault("recordings.dir", defaultRecordingsDir)
	v.SetDefault("recordings.pollinterval", defaultRecordingsPollInterval)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Playback.TickInterval <= 0 {
		return fmt.Errorf("invalid tick interval: %v (must be > 0)", c.Playback.TickInterval)
	}
	if c.Playback.WarmupTicks < 1 {
		return fmt.Errorf("invalid warmup ticks: %d (must be >= 1)", c.Playback.WarmupTicks)
	}
	if c.Playback.PeriodTicks < 1 {
		return fmt.Errorf("invalid period ticks: %d (must be >= 1)", c.Playback.PeriodTicks)
	}
	if c.Playback.DispatchQueueSize < 1 {
		return fmt.Errorf("invalid dispatch queue size: %d (must be >= 1)", c.Playback.DispatchQueueSize)
	}
	if c.Playback.FailureBuffer < 0 {
		return fmt.Errorf("invalid failure buffer: %d (must be >= 0)", c.Playback.FailureBuffer)
	}
	if c.Playback.FailureThreshold < 0 {
		return fmt.Errorf("invalid failure threshold: %d (must be >= 0)", c.Playback.FailureThreshold)
	}
	if c.Playback.FailureReset < 0 {
		return fmt.Errorf("invalid failure reset: %v (must be >= 0)", c.Playback.FailureReset)
	}
	if c.Recordings.Dir != "" && c.Recordings.PollInterval <= 0 {
		return fmt.Errorf("invalid recordings poll interval: %v (must be > 0)", c.Recordings.PollInterval)
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
