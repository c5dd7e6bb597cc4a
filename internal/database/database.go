// Package database bootstraps the raw *sql.DB the gateway's connection
// pool is built on top of: opening the SQLite file, creating its parent
// directory, and setting the PRAGMAs the pool's concurrency model depends
// on. Schema migrations are the job of internal/db's Migrator, not this
// package.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open creates (or attaches to) the SQLite database at dbPath, creating
// its parent directory if needed, and returns the raw *sql.DB ready to be
// wrapped in a db.ConnectionPool.
//
// WAL mode lets the pool's multiple pooled connections read concurrently
// with the one connection doing a write, which is what makes running more
// than a single *sql.DB connection against SQLite viable at all.
func Open(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return sqlDB, nil
}
