// Package config provides centralized configuration for the application.
// Settings come from environment variables with defaults applied on load,
// and the result is validated up front so a misconfigured process fails
// fast instead of at the first import.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request body
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum wait for graceful shutdown
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the connection pool ceiling (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the number of connections kept open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// ImportConfig holds the jurisdiction policy the import pipeline applies.
// Default tax rates are fiscal policy, not pipeline logic; they live here
// so a jurisdiction change never touches the parser.
type ImportConfig struct {
	// PTPrimaryRate is the default withholding rate for PT receipts, in
	// percent, applied when the rate cell is blank (default: 11.5)
	PTPrimaryRate float64 `env:"IMPORT_PT_PRIMARY_RATE" default:"11.5"`

	// PTSecondaryRate is the default VAT rate for PT receipts (default: 23)
	PTSecondaryRate float64 `env:"IMPORT_PT_SECONDARY_RATE" default:"23"`

	// PTSecondaryAdditive controls whether the secondary tax is charged on
	// top of the net amount (PT VAT) or withheld from it (default: true)
	PTSecondaryAdditive bool `env:"IMPORT_PT_SECONDARY_ADDITIVE" default:"true"`

	// BRPrimaryRate is the default primary rate for BR records (default: 11.5)
	BRPrimaryRate float64 `env:"IMPORT_BR_PRIMARY_RATE" default:"11.5"`

	// BRSecondaryRate is the default secondary rate for BR records (default: 23)
	BRSecondaryRate float64 `env:"IMPORT_BR_SECONDARY_RATE" default:"23"`

	// BRSecondaryAdditive: BR treats the secondary tax as withheld
	// (default: false)
	BRSecondaryAdditive bool `env:"IMPORT_BR_SECONDARY_ADDITIVE" default:"false"`

	// SkipExisting is the default for the duplicate-skip toggle on new
	// import sessions (default: true)
	SkipExisting bool `env:"IMPORT_SKIP_EXISTING" default:"true"`

	// MaxFileSize is the upload size limit in bytes (default: 20MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrentParses caps how many uploads parse at once (default: 4)
	MaxConcurrentParses int `env:"IMPORT_MAX_CONCURRENT_PARSES" default:"4"`

	// ParseSlotWait is how long an upload waits for a parse slot before
	// being told to retry (default: 10s)
	ParseSlotWait time.Duration `env:"IMPORT_PARSE_SLOT_WAIT" default:"10s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log output format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Validate checks that the configuration is coherent. Returns an error
// describing all failures at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, fmt.Sprintf("DB_MIN_CONNS (%d) must be 0..DB_MAX_CONNS (%d)",
			c.Database.MinConns, c.Database.MaxConns))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	if c.Import.PTPrimaryRate < 0 || c.Import.PTSecondaryRate < 0 ||
		c.Import.BRPrimaryRate < 0 || c.Import.BRSecondaryRate < 0 {
		errs = append(errs, "import tax rates must be non-negative")
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, "IMPORT_MAX_FILE_SIZE must be positive")
	}
	if c.Import.MaxConcurrentParses <= 0 {
		errs = append(errs, "IMPORT_MAX_CONCURRENT_PARSES must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a loggable representation with the database URL masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Host: %q, Port: %d}, Database: {URL: [MASKED], MaxConns: %d}, Import: {PT: %.1f/%.1f, BR: %.1f/%.1f, SkipExisting: %v}, Logging: {Level: %q, Format: %q}}",
		c.Server.Host, c.Server.Port, c.Database.MaxConns,
		c.Import.PTPrimaryRate, c.Import.PTSecondaryRate,
		c.Import.BRPrimaryRate, c.Import.BRSecondaryRate,
		c.Import.SkipExisting, c.Logging.Level, c.Logging.Format)
}
