package database

import (
	"database/sql"
	"errors"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Config holds SQLite store configuration
type Config struct {
	DatabasePath    string        `json:"database_path"`
	MaxConnections  int           `json:"max_connections"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

// FUNCTIONAL DISCOVERY: Live-class traffic writes one row per ended session,
// so a small pool covers the history reads
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    "./data/liveclass.db",
		MaxConnections:  10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	var errs []error
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path cannot be empty"))
	}
	if c.MaxConnections <= 0 {
		errs = append(errs, errors.New("max connections must be greater than 0"))
	}
	if c.ConnMaxLifetime <= 0 {
		errs = append(errs, errors.New("connection max lifetime must be greater than 0"))
	}
	if c.ConnMaxIdleTime <= 0 {
		errs = append(errs, errors.New("connection max idle time must be greater than 0"))
	}
	return errors.Join(errs...)
}

// DSN is the go-sqlite3 connection string for DatabasePath
func (c *Config) DSN() string {
	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_journal_mode", "WAL")
	params.Set("_foreign_keys", "on")
	return "file:" + c.DatabasePath + "?" + params.Encode()
}

// Open opens and tunes a pool for the configured file
func (c *Config) Open() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", c.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(c.MaxConnections)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.ConnMaxIdleTime)

	if err := ApplySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ARCHITECTURAL DISCOVERY: WAL mode keeps history reads from blocking the
// single writer goroutine in the SQLite manager
var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA cache_size = -16000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// ApplySQLiteOptimizations applies the connection pragmas
func ApplySQLiteOptimizations(db *sql.DB) error {
	for _, pragma := range sqlitePragmas {
		if _, err := db.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}
