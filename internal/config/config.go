// Package config loads service configuration from a YAML file, P5_*
// environment variables and defaults, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Evaluation  EvaluationConfig `mapstructure:"evaluation"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// StorageConfig selects and configures the report store backend.
type StorageConfig struct {
	Backend    string         `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig configures the shared report database.
type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// EvaluationConfig configures batch evaluation.
type EvaluationConfig struct {
	Workers   int `mapstructure:"workers"`
	CacheSize int `mapstructure:"cache_size"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Manager loads and validates configuration using Viper.
type Manager struct {
	v      *viper.Viper
	config *Config
}

// NewManager loads configuration from config.yaml (searched in ., ./config
// and /etc/p5/), P5_* environment variables and defaults.
func NewManager() (*Manager, error) {
	m := &Manager{v: viper.New()}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	m.v.SetConfigName("config")
	m.v.SetConfigType("yaml")
	m.v.AddConfigPath(".")
	m.v.AddConfigPath("./config")
	m.v.AddConfigPath("/etc/p5/")

	m.v.SetEnvPrefix("P5")
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	m.setDefaults()

	// The config file is optional; defaults and env vars suffice.
	if err := m.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := m.v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	m.v.SetDefault("environment", "development")

	m.v.SetDefault("server.host", "0.0.0.0")
	m.v.SetDefault("server.port", 8080)
	m.v.SetDefault("server.read_timeout", "30s")
	m.v.SetDefault("server.write_timeout", "30s")
	m.v.SetDefault("server.idle_timeout", "120s")
	m.v.SetDefault("server.rate_limit_rps", 50.0)
	m.v.SetDefault("server.rate_limit_burst", 100)

	m.v.SetDefault("storage.backend", "sqlite")
	m.v.SetDefault("storage.sqlite_path", "data/reports.db")
	m.v.SetDefault("storage.postgres.host", "localhost")
	m.v.SetDefault("storage.postgres.port", 5432)
	m.v.SetDefault("storage.postgres.database", "p5")
	m.v.SetDefault("storage.postgres.username", "postgres")
	m.v.SetDefault("storage.postgres.password", "")
	m.v.SetDefault("storage.postgres.ssl_mode", "disable")
	m.v.SetDefault("storage.postgres.max_conns", 25)
	m.v.SetDefault("storage.postgres.min_conns", 5)
	m.v.SetDefault("storage.postgres.conn_max_lifetime", "5m")
	m.v.SetDefault("storage.postgres.conn_max_idle_time", "5m")
	m.v.SetDefault("storage.postgres.migrations_path", "migrations")

	m.v.SetDefault("evaluation.workers", 4)
	m.v.SetDefault("evaluation.cache_size", 256)

	m.v.SetDefault("logging.level", "info")
	m.v.SetDefault("logging.format", "json")
	m.v.SetDefault("logging.output", "stdout")
}

// GetConfig returns the loaded configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Validate checks the loaded configuration for usable values.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Storage.Backend {
	case "sqlite":
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "postgres":
		pg := config.Storage.Postgres
		if pg.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if pg.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
		if pg.Username == "" {
			return fmt.Errorf("postgres username is required")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", config.Storage.Backend)
	}

	if config.Evaluation.Workers < 1 {
		return fmt.Errorf("evaluation workers must be at least 1")
	}
	if config.Evaluation.CacheSize < 1 {
		return fmt.Errorf("evaluation cache size must be at least 1")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// PostgresDSN returns the keyword/value connection string for the report
// database.
func (m *Manager) PostgresDSN() string {
	pg := m.config.Storage.Postgres
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pg.Host, pg.Port, pg.Username, pg.Password, pg.Database, pg.SSLMode)
}

// PostgresURL returns the URL-form connection string used by the
// migration runner.
func (m *Manager) PostgresURL() string {
	pg := m.config.Storage.Postgres
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pg.Username, pg.Password, pg.Host, pg.Port, pg.Database, pg.SSLMode)
}

// IsProduction returns true when running in production mode.
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}
