package pacing

import (
	"context"
	"time"
)

// DefaultRecordDelay is the pause observed between consecutive record
// submissions against the external site.
const DefaultRecordDelay = 2 * time.Second

// Pacer spaces out consecutive record submissions.
type Pacer interface {
	Wait(ctx context.Context) error
}

// FixedDelay pauses a constant duration on every Wait, honoring context
// cancellation.
type FixedDelay struct {
	delay time.Duration
}

func NewFixedDelay(delay time.Duration) *FixedDelay {
	if delay <= 0 {
		delay = DefaultRecordDelay
	}
	return &FixedDelay{delay: delay}
}

func (p *FixedDelay) Wait(ctx context.Context) error {
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// None never pauses. Used by tests.
type None struct{}

func (None) Wait(context.Context) error { return nil }
