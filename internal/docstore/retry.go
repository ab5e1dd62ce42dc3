package docstore

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Pacing of transaction re-executions after a conflict.
const (
	maxTxAttempts       = 10
	txInitialBackoff    = 5 * time.Millisecond
	txMaxBackoff        = 250 * time.Millisecond
	txBackoffMultiplier = 2.0
	txBackoffJitter     = 0.5
)

// newTxBackOff returns the jittered exponential schedule used between attempts.
func newTxBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     txInitialBackoff,
		RandomizationFactor: txBackoffJitter,
		Multiplier:          txBackoffMultiplier,
		MaxInterval:         txMaxBackoff,
	}
	b.Reset()
	return b
}

// retryConflicts calls attempt until it reports no conflict, waiting a
// jittered, growing interval between calls. It gives up with ErrTxConflict
// after maxTxAttempts and returns ctx's error as soon as ctx is done.
func retryConflicts(ctx context.Context, attempt func() (conflict bool, err error)) error {
	b := newTxBackOff()
	for i := 0; i < maxTxAttempts; i++ {
		if i > 0 {
			if err := sleep(ctx, b.NextBackOff()); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		conflict, err := attempt()
		if !conflict {
			return err
		}
	}
	return ErrTxConflict
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
