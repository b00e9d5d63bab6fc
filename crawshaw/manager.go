package crawshaw

import (
	"context"
	"errors"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"

	"github.com/caasmo/crawshaw-pool/pool"
)

var (
	ErrNilDatabase      = errors.New("crawshaw: database cannot be nil")
	ErrInMemoryDatabase = errors.New("crawshaw: in-memory databases cannot be pooled")
)

// probeQuery is the cheapest statement that still round-trips through the engine.
const probeQuery = "SELECT 1;"

// ConnectionManager tells a generic pool how to create and check SQLite
// connections. It only reads the shared *Database, so copies of a manager
// and concurrent calls need no locking.
type ConnectionManager struct {
	db *Database
}

var _ pool.Manager[*sqlite.Conn] = (*ConnectionManager)(nil)

// NewConnectionManager returns a manager for db. In-memory databases are
// rejected: every connection to one would see a different database.
func NewConnectionManager(db *Database) (*ConnectionManager, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	if db.InMemory() {
		return nil, ErrInMemoryDatabase
	}
	return &ConnectionManager{db: db}, nil
}

// Database returns the handle connections are opened from.
func (m *ConnectionManager) Database() *Database { return m.db }

// Connect opens a new connection to the shared database.
func (m *ConnectionManager) Connect(ctx context.Context) (*sqlite.Conn, error) {
	return m.db.Connect(ctx)
}

// IsValid runs a trivial query on conn. It is interrupted through the done
// channel installed on conn with SetInterrupt, not through ctx.
func (m *ConnectionManager) IsValid(ctx context.Context, conn *sqlite.Conn) error {
	return sqlitex.Exec(conn, probeQuery, nil)
}

// HasBroken always reports false. A crawshaw connection is either open and
// usable or closed, and Close is only ever called by the pool when it evicts
// the connection. Engine faults surface through IsValid or the caller's own
// queries.
//
// TODO: revisit if the binding ever exposes an open-but-unusable state.
func (m *ConnectionManager) HasBroken(conn *sqlite.Conn) bool {
	return false
}
