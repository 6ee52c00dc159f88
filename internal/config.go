package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Database  DatabaseConfig    `yaml:"database"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Postgres  PostgresConfig    `yaml:"postgres"`
	Import    ImportConfig      `yaml:"import"`
	LinkTitle LinkTitleConfig   `yaml:"link_title"`
	Events    EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if err := c.SQLite.Validate(); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
	case DriverPostgres:
		if err := c.Postgres.Validate(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return c.LinkTitle.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" env:"TALLY_LOG_LEVEL"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port       int    `yaml:"port" env:"TALLY_HTTP_PORT"`
	CORSOrigin string `yaml:"cors_origin" env:"TALLY_CORS_ORIGIN"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"TALLY_DB_DRIVER"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"TALLY_SQLITE_PATH"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn" env:"TALLY_POSTGRES_DSN"`
	MaxConns int32  `yaml:"max_conns" env:"TALLY_POSTGRES_MAX_CONNS"`
}

// Validate validates the PostgreSQL configuration.
func (c *PostgresConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxConns, validation.Min(int32(0))),
	)
}

// ImportConfig controls the YAML card importer. An empty Dir disables it.
type ImportConfig struct {
	Dir   string `yaml:"dir" env:"TALLY_IMPORT_DIR"`
	Watch bool   `yaml:"watch" env:"TALLY_IMPORT_WATCH"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	if c.Watch && c.Dir == "" {
		return fmt.Errorf("watch is enabled but dir is empty")
	}
	return nil
}

// LinkTitleConfig controls evidence link title fetching.
type LinkTitleConfig struct {
	Timeout   time.Duration `yaml:"timeout" env:"TALLY_LINK_TITLE_TIMEOUT"`
	UserAgent string        `yaml:"user_agent" env:"TALLY_LINK_TITLE_USER_AGENT"`
}

// Validate validates the link title configuration.
func (c *LinkTitleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// EventsConfig controls the live event stream.
type EventsConfig struct {
	// Throttle is the minimum interval between stats.updated events.
	Throttle time.Duration `yaml:"throttle" env:"TALLY_EVENTS_THROTTLE"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:       8080,
				CORSOrigin: "*",
			},
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
		},
		SQLite: SQLiteConfig{
			Path: "./tally.db",
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
		},
		LinkTitle: LinkTitleConfig{
			Timeout:   5 * time.Second,
			UserAgent: "Mozilla/5.0 (compatible; TallyBot/1.0)",
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
	}
}
