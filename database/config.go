package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DriverSQLite is the short name of the bundled SQLite driver.
const DriverSQLite = "sqlite"

// Config holds database connection configuration.
type Config struct {
	// Driver names the database driver.
	Driver string `mapstructure:"driver"`

	// DSN is the connection string or JDBC URL.
	DSN string `mapstructure:"dsn" validate:"required"`

	// User and Password are added to the connection when the driver supports it.
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	// MaxRetries is the number of connection attempts before giving up.
	MaxRetries int `mapstructure:"max_retries"`

	// SlowQueryThreshold is the duration above which queries are logged as slow (e.g. "200ms").
	SlowQueryThreshold string `mapstructure:"slow_query_threshold"`

	// LogLevel is the GORM log level: silent, error, warn or info.
	LogLevel string `mapstructure:"log_level"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.SlowQueryThreshold == "" {
		c.SlowQueryThreshold = "200ms"
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate checks that required fields are present and parseable.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if _, err := c.Dialector(); err != nil {
		return err
	}
	if _, err := time.ParseDuration(c.SlowQueryThreshold); err != nil {
		return fmt.Errorf("invalid slow_query_threshold %q: %w", c.SlowQueryThreshold, err)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be > 0")
	}
	return nil
}

// Dialector returns the GORM dialector for the configured driver.
func (c *Config) Dialector() (gorm.Dialector, error) {
	driver := strings.ToLower(c.Driver)
	switch {
	case driver == "", strings.Contains(driver, DriverSQLite):
		return sqlite.Open(sqliteDSN(c.DSN)), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
}

func sqliteDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "jdbc:")
	dsn = strings.TrimPrefix(dsn, "sqlite3:")
	return strings.TrimPrefix(dsn, "sqlite:")
}
