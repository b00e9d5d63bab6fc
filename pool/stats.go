package pool

import "time"

// Stats is a point-in-time snapshot of a Pool.
type Stats struct {
	Total        int32
	Idle         int32
	Acquired     int32
	Constructing int32
	Max          int32

	AcquireCount         int64
	CanceledAcquireCount int64
	AcquireDuration      time.Duration

	// Connections destroyed by the pool, by reason.
	ValidationFailures int64
	BrokenDiscards     int64
	ExpiredDiscards    int64

	ConnectRetries int64
}

func (p *Pool[C]) Stat() Stats {
	s := p.res.Stat()
	return Stats{
		Total:                s.TotalResources(),
		Idle:                 s.IdleResources(),
		Acquired:             s.AcquiredResources(),
		Constructing:         s.ConstructingResources(),
		Max:                  s.MaxResources(),
		AcquireCount:         s.AcquireCount(),
		CanceledAcquireCount: s.CanceledAcquireCount(),
		AcquireDuration:      s.AcquireDuration(),
		ValidationFailures:   p.validationFailures.Load(),
		BrokenDiscards:       p.brokenDiscards.Load(),
		ExpiredDiscards:      p.expiredDiscards.Load(),
		ConnectRetries:       p.connectRetries.Load(),
	}
}
