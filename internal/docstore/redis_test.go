package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisSetGetMerge(t *testing.T) {
	ctx := context.Background()
	store := newTestRedis(t)

	snap, err := store.Get(ctx, "things/a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snap.Exists() {
		t.Fatalf("expected missing document")
	}

	if err := store.Set(ctx, "things/a", Fields{"x": 1, "y": "keep"}, SetOptions{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "things/a", Fields{"x": 2, "at": ServerTimestamp}, SetOptions{Merge: true}); err != nil {
		t.Fatalf("merge Set failed: %v", err)
	}
	snap, err = store.Get(ctx, "things/a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	data := snap.Data()
	if data.Int("x") != 2 || data.String("y") != "keep" {
		t.Errorf("unexpected fields after merge: %v", data)
	}
	if data.Time("at").IsZero() {
		t.Errorf("server timestamp was not resolved")
	}
}

func TestRedisTransactionRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestRedis(t)
	if err := store.Set(ctx, "counters/c", Fields{"n": 1}, SetOptions{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	attempts := 0
	err := store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		attempts++
		snap, err := tx.Get(ctx, "counters/c")
		if err != nil {
			return err
		}
		n := snap.Data().Int("n")
		if attempts == 1 {
			if err := store.Set(ctx, "counters/c", Fields{"n": 10}, SetOptions{}); err != nil {
				return err
			}
		}
		tx.Set("counters/c", Fields{"n": n + 1}, SetOptions{})
		return nil
	})
	if err != nil {
		t.Fatalf("RunTransaction failed: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	snap, _ := store.Get(ctx, "counters/c")
	if got := snap.Data().Int("n"); got != 11 {
		t.Errorf("n = %d, want 11", got)
	}
}

func TestRedisSubscribe(t *testing.T) {
	ctx := context.Background()
	store := newTestRedis(t)

	var mu sync.Mutex
	var sizes []int
	unsub, err := store.Subscribe(ctx, "things", func(docs []DocumentSnapshot) {
		mu.Lock()
		sizes = append(sizes, len(docs))
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer unsub()

	if _, err := store.Add(ctx, "things", Fields{"x": 1}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(sizes)
		last := 0
		if n > 0 {
			last = sizes[n-1]
		}
		mu.Unlock()
		if n >= 2 && last == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for change snapshot; deliveries=%v", sizes)
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if sizes[0] != 0 {
		t.Errorf("initial snapshot had %d documents, want 0", sizes[0])
	}
}
