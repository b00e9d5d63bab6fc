package pool

import (
	"errors"
	"time"

	"github.com/jackc/puddle/v2"
)

func (p *Pool[C]) healthLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.HealthCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.checkIdle()
			err := p.fillMinIdle(p.ctx)
			if err != nil && p.ctx.Err() == nil && !errors.Is(err, puddle.ErrClosedPool) {
				p.logger.Warn("failed to restore idle connections", "error", err)
			}
		}
	}
}

// checkIdle destroys idle connections past MaxIdleTime or MaxLifetime.
// Connections are not probed here; that is left to TestOnCheckout.
func (p *Pool[C]) checkIdle() {
	for _, res := range p.res.AcquireAllIdle() {
		if p.expired(res) {
			p.expiredDiscards.Add(1)
			res.Destroy()
			continue
		}
		res.ReleaseUnused()
	}
}
