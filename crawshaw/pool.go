package crawshaw

import (
	"context"

	"crawshaw.io/sqlite"

	"github.com/caasmo/crawshaw-pool/pool"
)

// Pool is a pool of connections to one durable SQLite database.
type Pool = pool.Pool[*sqlite.Conn]

// NewPool creates a pool over db. The Close, OnCheckout and OnCheckin hooks
// of cfg are replaced: a lent connection is interrupted when the context
// passed to Get is done, as with sqlitex.Pool.
func NewPool(ctx context.Context, db *Database, cfg pool.Config[*sqlite.Conn]) (*Pool, error) {
	mgr, err := NewConnectionManager(db)
	if err != nil {
		return nil, err
	}

	cfg.Close = closeConn
	cfg.OnCheckout = func(ctx context.Context, conn *sqlite.Conn) {
		conn.SetInterrupt(ctx.Done())
	}
	cfg.OnCheckin = func(conn *sqlite.Conn) {
		conn.SetInterrupt(nil)
	}

	return pool.New[*sqlite.Conn](ctx, mgr, cfg)
}

func closeConn(conn *sqlite.Conn) {
	// Nothing to report to: the pool is evicting conn.
	_ = conn.Close()
}
