package payment

import (
	"context"
	"errors"
	"time"
)

// Default polling bounds.
const (
	DefaultPollMaxWait  = 5 * time.Minute
	DefaultPollInterval = 15 * time.Second
)

// ErrRetryExhausted is returned by RetryPolicy.Run when MaxWait elapses.
var ErrRetryExhausted = errors.New("retry window exhausted")

// RetryPolicy bounds a repeated check by total duration and spacing.
type RetryPolicy struct {
	MaxWait  time.Duration
	Interval time.Duration
}

// DefaultRetryPolicy returns the five minute / fifteen second policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxWait: DefaultPollMaxWait, Interval: DefaultPollInterval}
}

// Run calls fn immediately and then every Interval until fn reports done,
// fn returns an error, MaxWait elapses, or ctx is canceled.
func (p RetryPolicy) Run(ctx context.Context, fn func(ctx context.Context) (bool, error)) error {
	if p.MaxWait <= 0 {
		p.MaxWait = DefaultPollMaxWait
	}
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, p.MaxWait)
	defer cancel()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrRetryExhausted
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
