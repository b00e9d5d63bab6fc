package crawshaw

import (
	"context"
	"fmt"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

type Db struct {
	pool *Pool
}

// New creates a new Db instance using an existing pool provided by the user.
// Note: The lifecycle of the provided pool is managed externally.
// This Db type does not close the pool.
func New(pool *Pool) (*Db, error) {
	if pool == nil {
		return nil, fmt.Errorf("provided pool cannot be nil")
	}
	return &Db{pool: pool}, nil
}

// withConn runs fn on a pooled connection. The connection is interrupted
// if ctx is done while fn runs.
func (d *Db) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	c, err := d.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer d.pool.Put(c)

	return fn(c.Value())
}

// Exec runs query with args, calling resultFn for every row.
func (d *Db) Exec(ctx context.Context, query string, resultFn func(stmt *sqlite.Stmt) error, args ...any) error {
	return d.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Exec(conn, query, resultFn, args...)
	})
}

// ExecScript runs a multi-statement script inside a savepoint.
func (d *Db) ExecScript(ctx context.Context, script string) error {
	return d.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.ExecScript(conn, script)
	})
}

// Transaction runs fn inside a savepoint. The savepoint is rolled back if
// fn returns an error or panics.
func (d *Db) Transaction(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return d.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		defer sqlitex.Save(conn)(&err)
		return fn(conn)
	})
}
