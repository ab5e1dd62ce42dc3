package docstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryConflictsBacksOff(t *testing.T) {
	var calls []time.Time
	err := retryConflicts(context.Background(), func() (bool, error) {
		calls = append(calls, time.Now())
		return len(calls) < 3, nil
	})
	if err != nil {
		t.Fatalf("retryConflicts failed: %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("attempts = %d, want 3", len(calls))
	}
	// The first wait is at least InitialInterval scaled down by the jitter.
	shrink := 1 - txBackoffJitter
	minWait := time.Duration(float64(txInitialBackoff) * shrink)
	if gap := calls[1].Sub(calls[0]); gap < minWait {
		t.Errorf("first retry after %v, want at least %v", gap, minWait)
	}
}

func TestRetryConflictsStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := retryConflicts(context.Background(), func() (bool, error) {
		calls++
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1", calls)
	}
}

func TestRetryConflictsHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryConflicts(ctx, func() (bool, error) {
		calls++
		cancel()
		return true, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1", calls)
	}
}

func TestBackOffIsBounded(t *testing.T) {
	b := newTxBackOff()
	spread := 1 + txBackoffJitter
	limit := time.Duration(float64(txMaxBackoff)*spread) + time.Millisecond
	for i := 0; i < 2*maxTxAttempts; i++ {
		if d := b.NextBackOff(); d <= 0 || d > limit {
			t.Fatalf("interval %d = %v, want within (0, %v]", i, d, limit)
		}
	}
}
