package crawshaw

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"crawshaw.io/sqlite"
)

// defaultFlags mirrors what sqlite.OpenConn uses when called with flags=0.
const defaultFlags = sqlite.SQLITE_OPEN_READWRITE |
	sqlite.SQLITE_OPEN_CREATE |
	sqlite.SQLITE_OPEN_WAL |
	sqlite.SQLITE_OPEN_URI |
	sqlite.SQLITE_OPEN_NOMUTEX

// Database is a handle to one SQLite database from which any number of
// connections can be opened. It is safe for concurrent use.
type Database struct {
	path      string
	flags     sqlite.OpenFlags
	connFlags sqlite.OpenFlags
	memory    bool
	closed    atomic.Bool
}

// OpenDatabase prepares a handle for the database at path. flags=0 selects
// the crawshaw defaults.
//
// A durable database file is created here if missing, unless flags ask for
// a read-only database, which must already exist. Connections opened later
// through Connect do not carry SQLITE_OPEN_CREATE, so a file removed behind
// our back makes Connect fail instead of yielding an empty database.
func OpenDatabase(path string, flags sqlite.OpenFlags) (*Database, error) {
	if flags == 0 {
		flags = defaultFlags
	}

	d := &Database{
		path:      path,
		flags:     flags,
		connFlags: flags,
		memory:    isInMemory(path, flags),
	}
	if d.memory {
		return d, nil
	}

	connFlags := flags &^ sqlite.SQLITE_OPEN_CREATE
	bootFlags := connFlags
	// The engine rejects CREATE without READWRITE.
	if flags&sqlite.SQLITE_OPEN_READWRITE != 0 {
		bootFlags |= sqlite.SQLITE_OPEN_CREATE
	}

	conn, err := sqlite.OpenConn(path, bootFlags)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}
	if err := conn.Close(); err != nil {
		return nil, fmt.Errorf("failed to close bootstrap connection for %s: %w", path, err)
	}

	d.connFlags = connFlags
	return d, nil
}

// Connect opens a new connection. Errors come straight from the engine.
func (d *Database) Connect(ctx context.Context) (*sqlite.Conn, error) {
	if d.closed.Load() {
		return nil, sqlite.Error{
			Code: sqlite.SQLITE_MISUSE,
			Loc:  "Database.Connect",
			Msg:  "database is closed",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := sqlite.OpenConn(d.path, d.connFlags)
	if err != nil {
		return nil, err
	}

	// The caller gave up while the file was being opened.
	if err := ctx.Err(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Close invalidates the handle. Connections already opened stay usable and
// must be closed by whoever owns them.
func (d *Database) Close() error {
	d.closed.Store(true)
	return nil
}

// Path returns the path or URI the database was opened with.
func (d *Database) Path() string { return d.path }

func (d *Database) Flags() sqlite.OpenFlags { return d.flags }

// InMemory reports whether the database lives only inside the connection
// that opened it.
func (d *Database) InMemory() bool { return d.memory }

func isInMemory(path string, flags sqlite.OpenFlags) bool {
	if flags&sqlite.SQLITE_OPEN_MEMORY != 0 {
		return true
	}
	// "" is a private temporary database, gone with its connection.
	if path == "" || path == ":memory:" {
		return true
	}
	if !strings.HasPrefix(path, "file:") {
		return false
	}

	name, rawQuery, _ := strings.Cut(strings.TrimPrefix(path, "file:"), "?")
	if name == "" || name == ":memory:" {
		return true
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return false
	}
	return query.Get("mode") == "memory" || query.Get("vfs") == "memdb"
}
