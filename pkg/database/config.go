package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultPath is a shared in-memory database: the match log lives only as
// long as the process unless an operator points it at a file.
const DefaultPath = "file:strangers?mode=memory&cache=shared"

// Config holds database configuration
type Config struct {
	DatabasePath    string        `json:"database_path"`
	MaxConnections  int           `json:"max_connections"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	WriteBuffer     int           `json:"write_buffer"`
	RetryDelay      time.Duration `json:"retry_delay"`
	WriteTimeout    time.Duration `json:"write_timeout"`
}

// DefaultConfig returns the database configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    DefaultPath,
		MaxConnections:  10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 10,
		WriteBuffer:     256,
		RetryDelay:      5 * time.Second,
		WriteTimeout:    30 * time.Second,
	}
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("database path cannot be empty")
	}
	if c.MaxConnections <= 0 {
		return errors.New("max connections must be greater than 0")
	}
	if c.ConnMaxLifetime <= 0 {
		return errors.New("connection max lifetime must be greater than 0")
	}
	if c.ConnMaxIdleTime <= 0 {
		return errors.New("connection max idle time must be greater than 0")
	}
	if c.WriteBuffer <= 0 {
		return errors.New("write buffer must be greater than 0")
	}
	if c.RetryDelay < 0 {
		return errors.New("retry delay cannot be negative")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be greater than 0")
	}
	return nil
}

// IsMemory reports whether the path names an in-memory database
func (c *Config) IsMemory() bool {
	return c.DatabasePath == ":memory:" || strings.Contains(c.DatabasePath, "mode=memory")
}

// DSN returns the go-sqlite3 connection string with busy timeout and
// foreign keys enabled. Paths that already carry query options are extended.
func (c *Config) DSN() string {
	const opts = "_busy_timeout=5000&_foreign_keys=on"
	if strings.Contains(c.DatabasePath, "?") {
		return c.DatabasePath + "&" + opts
	}
	return c.DatabasePath + "?" + opts
}

// SQLite pragmas applied once per pool. WAL is skipped for memory databases.
const sqliteOptimizations = `
	PRAGMA synchronous = NORMAL;
	PRAGMA cache_size = -16000;
	PRAGMA temp_store = MEMORY;
	PRAGMA foreign_keys = ON;
	PRAGMA busy_timeout = 5000;
`

// ApplyOptimizations runs the pragmas on db, enabling WAL for file databases
func ApplyOptimizations(db *sql.DB, cfg *Config) error {
	if !cfg.IsMemory() {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			return fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	if _, err := db.Exec(sqliteOptimizations); err != nil {
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return nil
}
