package docstore

import (
	"context"
	"fmt"
	"time"
)

// List reads the current contents of collection through a short-lived
// subscription.
func List(ctx context.Context, s Store, collection string) ([]DocumentSnapshot, error) {
	type result struct {
		docs []DocumentSnapshot
		err  error
	}
	ch := make(chan result, 1)
	send := func(r result) {
		select {
		case ch <- r:
		default:
		}
	}

	unsub, err := s.Subscribe(ctx, collection,
		func(docs []DocumentSnapshot) { send(result{docs: docs}) },
		func(err error) { send(result{err: err}) },
	)
	if err != nil {
		return nil, err
	}
	defer unsub()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", collection, r.err)
		}
		return r.docs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StoredTime reads the timestamp field of the document at docPath as the store
// resolved it, which for a ServerTimestamp is the commit time. It falls back
// to the local clock when the document or field cannot be read.
func StoredTime(ctx context.Context, s Store, docPath, field string) time.Time {
	snap, err := s.Get(ctx, docPath)
	if err == nil && snap.Exists() {
		if t := snap.Data().Time(field); !t.IsZero() {
			return t
		}
	}
	return time.Now().UTC()
}
