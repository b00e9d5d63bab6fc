// Package crawshawpool pools connections to a durable crawshaw.io/sqlite
// database.
//
// Applications that query the database from several goroutines should
// share a single pool to avoid SQLITE_BUSY errors from competing writers.
package crawshawpool

import (
	"context"
	"fmt"
	"log/slog"

	"crawshaw.io/sqlite"

	"github.com/caasmo/crawshaw-pool/crawshaw"
)

// NewCrawshawPool creates a pool with the DefaultConfig for the database
// file at dbPath, creating the file if needed. WAL mode is enabled.
func NewCrawshawPool(dbPath string) (*crawshaw.Pool, error) {
	return Open(context.Background(), DefaultConfig(dbPath), nil)
}

// Open validates cfg and builds a pool over the database at cfg.Path.
// In-memory databases are rejected with crawshaw.ErrInMemoryDatabase.
// A nil logger means slog.Default().
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*crawshaw.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// flags=0 defaults to:
	// SQLITE_OPEN_READWRITE | SQLITE_OPEN_CREATE | SQLITE_OPEN_WAL |
	// SQLITE_OPEN_URI | SQLITE_OPEN_NOMUTEX
	database, err := crawshaw.OpenDatabase(cfg.Path, sqlite.OpenFlags(0))
	if err != nil {
		return nil, err
	}

	pc := cfg.poolConfig()
	pc.Logger = logger
	p, err := crawshaw.NewPool(ctx, database, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool at %s: %w", cfg.Path, err)
	}
	return p, nil
}
