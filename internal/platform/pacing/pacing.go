package pacing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Pacer sleeps for a randomized duration inside fixed bounds. Login
// steps against the remote service must not fire on a detectable
// cadence, but every delay stays bounded so a run can never stall.
type Pacer struct {
	min time.Duration
	max time.Duration
}

func NewPacer(min, max time.Duration) (*Pacer, error) {
	if min <= 0 {
		return nil, fmt.Errorf("pacing lower bound must be > 0")
	}
	if max < min {
		return nil, fmt.Errorf("pacing upper bound must be >= lower bound")
	}
	return &Pacer{min: min, max: max}, nil
}

// Next picks a duration in [min, max].
func (p *Pacer) Next() time.Duration {
	if p.max == p.min {
		return p.min
	}
	return p.min + rand.N(p.max-p.min+1)
}

// Wait blocks for a randomized delay or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	timer := time.NewTimer(p.Next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
