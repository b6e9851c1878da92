// Package db provides database connection management and migration support
// for the generation audit trail.
//
// Supports SQLite (local use) and PostgreSQL (shared deployments) via sqlx.
// Migrations are embedded SQL files applied by a checksumming runner.
package db

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Audit writes are one row per model call; a small pool is plenty.
const (
	maxOpenConns    = 8
	maxIdleConns    = 2
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute

	sqliteBusyTimeoutMs = 5000
)

// DefaultURL returns the SQLite URL used when no database URL is configured.
func DefaultURL(dataDir string) string {
	path := filepath.Join(dataDir, "rulesmith.db")
	if filepath.IsAbs(path) {
		return "sqlite://" + path
	}
	return "sqlite://./" + filepath.ToSlash(path)
}

// Open establishes a database connection from a URL and configures connection pooling.
// Supported URL schemes: sqlite://, postgres://, postgresql://
// SQLite URLs: sqlite://path/to/file.db or sqlite:///absolute/path. The
// parent directory of a SQLite file is created if missing.
func Open(dbURL string) (*sqlx.DB, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}

	var driverName string
	var dataSource string

	switch u.Scheme {
	case "sqlite":
		driverName = "sqlite3"
		// sqlite://file.db uses host+path (relative),
		// sqlite:///absolute/path uses path-only (absolute with empty host)
		path := u.Path
		if u.Host != "" {
			path = u.Host + u.Path
		}
		if path == "" {
			return nil, fmt.Errorf("sqlite URL has no file path: %s", dbURL)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dataSource = fmt.Sprintf("file:%s?_busy_timeout=%d", path, sqliteBusyTimeoutMs)
	case "postgres", "postgresql":
		driverName = "postgres"
		dataSource = dbURL
	default:
		return nil, fmt.Errorf("unsupported database scheme: %s (expected sqlite or postgres)", u.Scheme)
	}

	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
