package transport

import (
	"context"
	"time"
)

// Connect retry defaults: three attempts one second apart.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// RetryPolicy bounds connect attempts. MaxRetries counts total attempts.
// Multiplier scales Delay after each failed attempt; the default of 1 keeps
// the delay fixed.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
	Multiplier float64
}

// DefaultRetryPolicy returns the fixed-delay policy used when none is set.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		Delay:      DefaultRetryDelay,
		Multiplier: 1,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	d := float64(p.Delay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
