// Package pool lends connections produced by a Manager. Queueing, sizing and
// checkout bookkeeping are delegated to puddle; this package only decides
// when the Manager hooks run.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/puddle/v2"
	"golang.org/x/sync/errgroup"
)

const retryInitialInterval = 100 * time.Millisecond

type Pool[C any] struct {
	id     string
	mgr    Manager[C]
	cfg    Config[C]
	res    *puddle.Pool[C]
	logger *slog.Logger

	validationFailures atomic.Int64
	brokenDiscards     atomic.Int64
	expiredDiscards    atomic.Int64
	connectRetries     atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Conn is a connection lent by a Pool. It must be given back with Put.
type Conn[C any] struct {
	res      *puddle.Resource[C]
	returned bool
}

// Value returns the underlying connection.
func (c *Conn[C]) Value() C { return c.res.Value() }

// New builds a pool around mgr and opens cfg.MinIdle connections before
// returning. If any of them cannot be opened the pool is closed and the
// engine error is returned.
func New[C any](ctx context.Context, mgr Manager[C], cfg Config[C]) (*Pool[C], error) {
	if mgr == nil {
		return nil, ErrNilManager
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &Pool[C]{
		id:  uuid.NewString(),
		mgr: mgr,
		cfg: cfg,
	}
	p.logger = cfg.Logger.With("pool", p.id)
	p.ctx, p.cancel = context.WithCancel(context.Background())

	res, err := puddle.NewPool(&puddle.Config[C]{
		Constructor: p.connect,
		Destructor:  cfg.Close,
		MaxSize:     cfg.MaxSize,
	})
	if err != nil {
		p.cancel()
		return nil, err
	}
	p.res = res

	if err := p.fillMinIdle(ctx); err != nil {
		p.cancel()
		p.res.Close()
		return nil, err
	}

	if cfg.HealthCheckPeriod > 0 {
		p.wg.Add(1)
		go p.healthLoop()
	}

	p.logger.Debug("pool ready", "max_size", cfg.MaxSize, "min_idle", cfg.MinIdle)
	return p, nil
}

// ID identifies the pool in log records.
func (p *Pool[C]) ID() string { return p.id }

// Get lends a connection. When the context has no deadline the wait is
// bounded by AcquireTimeout.
//
// With TestOnCheckout, connections failing the probe are destroyed and
// replaced. After MaxSize+1 consecutive failures the last probe error is
// returned as is. The probe runs before OnCheckout, so a caller context
// done in between cannot fail a healthy connection.
//
// Connections created while this call waits are lent even when already past
// MaxLifetime; Put retires them.
func (p *Pool[C]) Get(ctx context.Context) (*Conn[C], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	acquireCtx, cancel := acquireContext(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	start := time.Now()
	var failures int32
	for {
		res, err := p.res.Acquire(acquireCtx)
		if err != nil {
			return nil, err
		}

		if res.CreationTime().Before(start) && p.expired(res) {
			p.expiredDiscards.Add(1)
			res.Destroy()
			continue
		}

		conn := res.Value()
		if p.cfg.TestOnCheckout {
			if err := p.mgr.IsValid(acquireCtx, conn); err != nil {
				p.validationFailures.Add(1)
				p.logger.Warn("discarding connection that failed validation", "error", err)
				res.Destroy()

				failures++
				if failures > p.cfg.MaxSize {
					return nil, err
				}
				continue
			}
		}

		if p.cfg.OnCheckout != nil {
			p.cfg.OnCheckout(ctx, conn)
		}
		return &Conn[C]{res: res}, nil
	}
}

// Put gives c back. Broken, invalid or expired connections are destroyed
// instead of returning to the idle set. Put ignores nil and already
// returned connections.
func (p *Pool[C]) Put(c *Conn[C]) {
	if c == nil || c.returned {
		return
	}
	c.returned = true

	conn := c.res.Value()
	if p.cfg.OnCheckin != nil {
		p.cfg.OnCheckin(conn)
	}

	if p.mgr.HasBroken(conn) {
		p.brokenDiscards.Add(1)
		p.logger.Info("discarding broken connection")
		c.res.Destroy()
		return
	}

	if p.cfg.TestOnCheckin {
		ctx, cancel := acquireContext(p.ctx, p.cfg.AcquireTimeout)
		err := p.mgr.IsValid(ctx, conn)
		cancel()
		if err != nil {
			p.validationFailures.Add(1)
			p.logger.Warn("discarding connection that failed validation on checkin", "error", err)
			c.res.Destroy()
			return
		}
	}

	if p.tooOld(c.res) {
		p.expiredDiscards.Add(1)
		c.res.Destroy()
		return
	}

	c.res.Release()
}

// Close stops the health loop and destroys every connection. It blocks
// until all lent connections have been returned.
func (p *Pool[C]) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.res.Close()
		p.logger.Debug("pool closed")
	})
}

func (p *Pool[C]) connect(ctx context.Context) (C, error) {
	if !p.cfg.RetryConnect {
		return p.mgr.Connect(ctx)
	}

	eb := backoff.NewExponentialBackOff(backoff.WithInitialInterval(retryInitialInterval))
	b := backoff.WithContext(backoff.WithMaxRetries(eb, p.cfg.MaxConnectRetries), ctx)

	return backoff.RetryNotifyWithData(func() (C, error) {
		return p.mgr.Connect(ctx)
	}, b, func(err error, next time.Duration) {
		p.connectRetries.Add(1)
		p.logger.Warn("connect failed, retrying", "error", err, "backoff", next)
	})
}

// expired is only meaningful for idle resources: IdleDuration keeps growing
// while a resource is lent.
func (p *Pool[C]) expired(res *puddle.Resource[C]) bool {
	if p.tooOld(res) {
		return true
	}
	return p.cfg.MaxIdleTime > 0 && res.IdleDuration() > p.cfg.MaxIdleTime
}

func (p *Pool[C]) tooOld(res *puddle.Resource[C]) bool {
	return p.cfg.MaxLifetime > 0 && time.Since(res.CreationTime()) > p.cfg.MaxLifetime
}

// fillMinIdle opens the connections missing to reach MinIdle, concurrently.
func (p *Pool[C]) fillMinIdle(ctx context.Context) error {
	missing := p.cfg.MinIdle - p.res.Stat().TotalResources()
	if missing <= 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for range missing {
		g.Go(func() error {
			err := p.res.CreateResource(ctx)
			if errors.Is(err, puddle.ErrNotAvailable) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
