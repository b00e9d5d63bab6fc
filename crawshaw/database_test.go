package crawshaw

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenDatabase(path, 0)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDatabaseCreatesFile(t *testing.T) {
	db := newTestDatabase(t)

	if _, err := os.Stat(db.Path()); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if db.InMemory() {
		t.Error("file database reported as in-memory")
	}
	if db.Flags() != defaultFlags {
		t.Errorf("Flags() = %#x, want defaults %#x", db.Flags(), defaultFlags)
	}
}

func TestDatabaseConnect(t *testing.T) {
	db := newTestDatabase(t)

	conn, err := db.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	var mode string
	err = sqlitex.Exec(conn, "PRAGMA journal_mode;", func(stmt *sqlite.Stmt) error {
		mode = stmt.ColumnText(0)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to read journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestDatabaseConnectAfterFileRemoved(t *testing.T) {
	db := newTestDatabase(t)

	for _, suffix := range []string{"", "-wal", "-shm"} {
		os.Remove(db.Path() + suffix)
	}

	conn, err := db.Connect(context.Background())
	if err == nil {
		conn.Close()
		t.Fatal("expected Connect to fail on a removed database file")
	}
	if conn != nil {
		t.Error("expected nil connection on failure")
	}
	if _, statErr := os.Stat(db.Path()); !os.IsNotExist(statErr) {
		t.Error("Connect recreated the removed database file")
	}
}

func TestDatabaseConnectAfterClose(t *testing.T) {
	db := newTestDatabase(t)

	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Idempotent.
	if err := db.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	conn, err := db.Connect(context.Background())
	if err == nil {
		conn.Close()
		t.Fatal("expected Connect to fail on a closed database")
	}
	if code := sqlite.ErrCode(err); code != sqlite.SQLITE_MISUSE {
		t.Errorf("ErrCode = %v, want SQLITE_MISUSE", code)
	}
}

func TestDatabaseConnectCanceled(t *testing.T) {
	db := newTestDatabase(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, err := db.Connect(ctx)
	if err != context.Canceled {
		if conn != nil {
			conn.Close()
		}
		t.Fatalf("Connect() error = %v, want context.Canceled", err)
	}
}

func TestIsInMemory(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		flags sqlite.OpenFlags
		want  bool
	}{
		{name: "plain memory", path: ":memory:", want: true},
		{name: "temporary", path: "", want: true},
		{name: "uri memory", path: "file::memory:", want: true},
		{name: "uri memory shared", path: "file::memory:?cache=shared", want: true},
		{name: "named memory", path: "file:testdb?mode=memory&cache=shared", want: true},
		{name: "memdb vfs", path: "file:/db?vfs=memdb", want: true},
		{name: "memory flag", path: "app.db", flags: sqlite.SQLITE_OPEN_MEMORY, want: true},
		{name: "relative file", path: "app.db", want: false},
		{name: "absolute file", path: "/var/lib/app/app.db", want: false},
		{name: "uri file", path: "file:/var/lib/app/app.db?cache=private", want: false},
		{name: "uri read write", path: "file:app.db?mode=rw", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isInMemory(tt.path, tt.flags); got != tt.want {
				t.Errorf("isInMemory(%q, %#x) = %v, want %v", tt.path, tt.flags, got, tt.want)
			}
		})
	}
}

func TestOpenDatabaseInMemory(t *testing.T) {
	db, err := OpenDatabase("file::memory:", 0)
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	if !db.InMemory() {
		t.Error("expected in-memory database")
	}
}

func TestOpenDatabaseReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.db")
	rw, err := OpenDatabase(path, sqlite.SQLITE_OPEN_READWRITE|sqlite.SQLITE_OPEN_CREATE|sqlite.SQLITE_OPEN_URI|sqlite.SQLITE_OPEN_NOMUTEX)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	conn, err := rw.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := sqlitex.ExecScript(conn, "CREATE TABLE t (v INTEGER); INSERT INTO t VALUES (7);"); err != nil {
		t.Fatalf("failed to seed database: %v", err)
	}
	conn.Close()

	const roFlags = sqlite.SQLITE_OPEN_READONLY | sqlite.SQLITE_OPEN_URI | sqlite.SQLITE_OPEN_NOMUTEX
	ro, err := OpenDatabase(path, roFlags)
	if err != nil {
		t.Fatalf("OpenDatabase read-only failed: %v", err)
	}
	mgr, err := NewConnectionManager(ro)
	if err != nil {
		t.Fatalf("NewConnectionManager failed: %v", err)
	}
	conn, err = mgr.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect read-only failed: %v", err)
	}
	defer conn.Close()

	if err := mgr.IsValid(context.Background(), conn); err != nil {
		t.Errorf("IsValid on read-only connection: %v", err)
	}
	var v int64
	err = sqlitex.Exec(conn, "SELECT v FROM t;", func(stmt *sqlite.Stmt) error {
		v = stmt.ColumnInt64(0)
		return nil
	})
	if err != nil || v != 7 {
		t.Errorf("read = %d, %v; want 7", v, err)
	}
	if err := sqlitex.Exec(conn, "INSERT INTO t VALUES (8);", nil); err == nil {
		t.Error("write on read-only connection succeeded")
	}

	missing := filepath.Join(t.TempDir(), "missing.db")
	if _, err := OpenDatabase(missing, roFlags); err == nil {
		t.Error("expected error opening a missing database read-only")
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Errorf("read-only open created %s", missing)
	}
}
