package pool

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"
)

// Manager creates and checks the connections held by a Pool. The pool never
// calls a Manager concurrently for the same connection, but Connect may run
// concurrently any number of times.
type Manager[C any] interface {
	// Connect opens a new connection.
	Connect(ctx context.Context) (C, error)
	// IsValid runs a cheap liveness probe on conn.
	IsValid(ctx context.Context, conn C) error
	// HasBroken reports, without I/O, whether conn must not be reused.
	HasBroken(conn C) bool
}

// Config tunes a Pool. Only Close is required.
type Config[C any] struct {
	// MaxSize is the maximum number of open connections. Zero means runtime.NumCPU().
	MaxSize int32
	// MinIdle connections are opened by New and kept by the health loop.
	MinIdle int32

	MaxIdleTime       time.Duration
	MaxLifetime       time.Duration
	HealthCheckPeriod time.Duration

	// AcquireTimeout bounds Get when the caller's context has no deadline.
	AcquireTimeout time.Duration

	TestOnCheckout bool
	TestOnCheckin  bool

	RetryConnect      bool
	MaxConnectRetries uint64

	// Close destroys a connection evicted from the pool. Required.
	Close func(conn C)
	// OnCheckout runs with the caller's context right before a connection
	// is lent, after any checkout probe.
	OnCheckout func(ctx context.Context, conn C)
	// OnCheckin runs as soon as a connection is given back.
	OnCheckin func(conn C)

	Logger *slog.Logger
}

const (
	defaultAcquireTimeout    = 1 * time.Second
	defaultMaxConnectRetries = 3
)

var (
	ErrNilManager = errors.New("pool: manager cannot be nil")
	ErrNoCloser   = errors.New("pool: Close function is required")
	ErrMinIdle    = errors.New("pool: MinIdle cannot exceed MaxSize")
)

func (c *Config[C]) setDefaults() {
	if c.MaxSize <= 0 {
		c.MaxSize = int32(runtime.NumCPU())
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = defaultAcquireTimeout
	}
	if c.RetryConnect && c.MaxConnectRetries == 0 {
		c.MaxConnectRetries = defaultMaxConnectRetries
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c *Config[C]) validate() error {
	if c.Close == nil {
		return ErrNoCloser
	}
	if c.MinIdle < 0 || c.MinIdle > c.MaxSize {
		return ErrMinIdle
	}
	return nil
}
