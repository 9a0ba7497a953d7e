package flood

import (
	"time"

	"golang.org/x/time/rate"
)

// Mode selects how the scheduler paces emission.
type Mode string

const (
	// ModeBurst writes as fast as the transport accepts.
	ModeBurst Mode = "burst"
	// ModeSteady emits one event per delay, in batches.
	ModeSteady Mode = "steady"
)

// Pacer reserves emission slots. The zero value and a nil Pacer never delay.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer for mode. Steady mode allows one event per delay
// with bursts of up to batch events.
func NewPacer(mode Mode, delay time.Duration, batch int) *Pacer {
	if mode != ModeSteady || delay <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(delay), max(batch, 1))}
}

// Burst returns the largest reservation the pacer accepts, 0 meaning unlimited.
func (p *Pacer) Burst() int {
	if p == nil || p.limiter == nil {
		return 0
	}
	return p.limiter.Burst()
}

// Reserve claims n slots and returns how long the caller must wait before using them.
func (p *Pacer) Reserve(n int) time.Duration {
	if p == nil || p.limiter == nil {
		return 0
	}
	r := p.limiter.ReserveN(time.Now(), min(n, p.limiter.Burst()))
	if !r.OK() {
		return 0
	}
	return r.Delay()
}
