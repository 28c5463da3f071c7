// Package db holds the in-memory DuckDB instance used by the activity feed.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	Threads     int    // worker threads, 0 keeps the DuckDB default
	MemoryLimit string // e.g. "512MB", empty keeps the DuckDB default
}

// Open opens a new in-memory DuckDB database. Nothing is written to disk;
// the caller owns the returned handle.
func Open(cfg Config) (*sql.DB, error) {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	if cfg.Threads > 0 {
		if _, err := conn.Exec(fmt.Sprintf("SET threads = %d", cfg.Threads)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting threads: %w", err)
		}
	}
	if cfg.MemoryLimit != "" {
		limit := strings.ReplaceAll(cfg.MemoryLimit, "'", "''")
		if _, err := conn.Exec(fmt.Sprintf("SET memory_limit = '%s'", limit)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting memory_limit: %w", err)
		}
	}
	return conn, nil
}
