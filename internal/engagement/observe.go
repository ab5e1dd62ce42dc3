package engagement

import (
	"context"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	errordefs "github.com/RegistryAccord/registryaccord-reels-go/internal/errors"
)

// Subscription keys.
const (
	subStats    = "stats"
	subComments = "comments"
	subLikes    = "likes"
)

// ObserveStats follows the counters of every video.
func (l *Ledger) ObserveStats(ctx context.Context) error {
	return l.subscribe(ctx, subStats, "videoStats", l.cfg.Paths.VideoStats(), func(docs []docstore.DocumentSnapshot) {
		stats := DecodeStats(docs)
		l.mu.Lock()
		defer l.mu.Unlock()
		if !l.closed {
			l.stats = stats
		}
	})
}

// ObserveComments follows the comments of every video through one
// subscription. Calling it again while that subscription runs is a no-op.
func (l *Ledger) ObserveComments(ctx context.Context) error {
	l.mu.RLock()
	_, running := l.subs[subComments]
	l.mu.RUnlock()
	if running {
		return nil
	}
	return l.subscribe(ctx, subComments, "videoComments", l.cfg.Paths.Comments(), func(docs []docstore.DocumentSnapshot) {
		byVideo := GroupComments(docs)
		l.mu.Lock()
		defer l.mu.Unlock()
		if !l.closed {
			l.comments = byVideo
		}
	})
}

// ObserveMyLikes follows the like state of the user signed in now, replacing
// any previous likes subscription. Call it again whenever the user changes.
func (l *Ledger) ObserveMyLikes(ctx context.Context) error {
	userID, ok := l.cfg.Identity.CurrentUserID()

	l.mu.Lock()
	l.likesUser = userID
	l.liked = make(map[string]bool)
	l.mu.Unlock()

	if !ok {
		l.unsubscribe(subLikes)
		return nil
	}
	return l.subscribe(ctx, subLikes, "likes", l.cfg.Paths.UserLikes(userID), func(docs []docstore.DocumentSnapshot) {
		liked := make(map[string]bool, len(docs))
		for _, d := range docs {
			if isActive(d) {
				liked[d.ID()] = true
			}
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		if !l.closed && l.likesUser == userID {
			l.liked = liked
		}
	})
}

// subscribe replaces the subscription stored under key. Snapshot errors are
// logged and leave the other subscriptions running.
func (l *Ledger) subscribe(ctx context.Context, key, label, collection string, apply func([]docstore.DocumentSnapshot)) error {
	if l.cfg.Store == nil {
		return nil
	}
	l.unsubscribe(key)

	unsub, err := l.cfg.Store.Subscribe(ctx, collection, func(docs []docstore.DocumentSnapshot) {
		l.cfg.Metrics.SnapshotDeliveriesTotal.WithLabelValues(label).Inc()
		apply(docs)
	}, func(err error) {
		l.cfg.Logger.Warn("snapshot listener error", "collection", label, "error", err)
	})
	if err != nil {
		return errordefs.Wrap(errordefs.FEED_STORE_UNAVAILABLE, "failed to subscribe to "+label, err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		unsub()
		return nil
	}
	prev := l.subs[key]
	l.subs[key] = unsub
	l.mu.Unlock()

	if prev != nil {
		prev()
	}
	return nil
}

func (l *Ledger) unsubscribe(key string) {
	l.mu.Lock()
	unsub := l.subs[key]
	delete(l.subs, key)
	l.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
