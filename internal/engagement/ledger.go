// Package engagement keeps like and comment counters consistent with the
// per-user like state. Every mutation runs as one document store transaction;
// local caches change only after the store confirms the write and are
// otherwise driven by collection snapshots.
package engagement

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	errordefs "github.com/RegistryAccord/registryaccord-reels-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/event"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/identity"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/telemetry"
)

// Config wires a Ledger or Room to its collaborators.
type Config struct {
	// Store may be nil, in which case every mutation fails with
	// FEED_STORE_UNAVAILABLE and observers are no-ops.
	Store     docstore.Store
	Identity  identity.Provider
	Paths     docstore.Paths
	Publisher event.Publisher  // Defaults to the no-op publisher
	Metrics   *metrics.Metrics // Defaults to the process-wide metrics
	Logger    *slog.Logger     // Defaults to slog.Default()
}

func (c Config) withDefaults() Config {
	if c.Publisher == nil {
		c.Publisher = event.NewNoop()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewMetrics()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Ledger owns the cached engagement state for one client.
type Ledger struct {
	cfg    Config
	tracer trace.Tracer

	mu        sync.RWMutex
	stats     map[string]model.EngagementStats
	liked     map[string]bool
	likesUser string // user whose likes populate liked
	comments  map[string][]model.Comment
	inFlight  map[string]bool
	subs      map[string]docstore.Unsubscribe
	closed    bool
}

// New returns a Ledger with empty caches. Call the Observe methods to start
// following the store.
func New(cfg Config) *Ledger {
	return &Ledger{
		cfg:      cfg.withDefaults(),
		tracer:   telemetry.Tracer("engagement"),
		stats:    make(map[string]model.EngagementStats),
		liked:    make(map[string]bool),
		comments: make(map[string][]model.Comment),
		inFlight: make(map[string]bool),
		subs:     make(map[string]docstore.Unsubscribe),
	}
}

// ToggleLike flips userID's like of videoID and adjusts the video's like count
// in the same transaction. Unliking never takes the count below zero. A second
// call for the same video while one is outstanding fails with FEED_BUSY. An
// empty userID fails with FEED_AUTHN.
func (l *Ledger) ToggleLike(ctx context.Context, userID, videoID string) (model.LikeResult, error) {
	if l.cfg.Store == nil {
		return model.LikeResult{}, errordefs.ErrStoreUnavailable
	}
	if userID == "" {
		return model.LikeResult{}, errordefs.ErrNotAuthenticated
	}
	if videoID == "" {
		return model.LikeResult{}, errordefs.New(errordefs.FEED_VALIDATION, "videoId is required", "")
	}

	if err := l.acquire(videoID); err != nil {
		return model.LikeResult{}, err
	}
	defer l.release(videoID)

	ctx, span := l.tracer.Start(ctx, "engagement.ToggleLike", trace.WithAttributes(
		attribute.String("video.id", videoID),
	))
	defer span.End()
	start := time.Now()

	statPath := l.cfg.Paths.VideoStat(videoID)
	likePath := l.cfg.Paths.UserLike(userID, videoID)

	var result model.LikeResult
	err := l.cfg.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		stat, err := tx.Get(ctx, statPath)
		if err != nil {
			return err
		}
		like, err := tx.Get(ctx, likePath)
		if err != nil {
			return err
		}

		count := 0
		if stat.Exists() {
			count = stat.Data().Int(fieldLikeCount)
		}
		liked := !isActive(like)
		if liked {
			count++
		} else {
			count = max(0, count-1)
		}

		tx.Set(likePath, docstore.Fields{
			fieldActive:    liked,
			fieldUpdatedAt: docstore.ServerTimestamp,
		}, docstore.SetOptions{Merge: true})
		tx.Set(statPath, docstore.Fields{fieldLikeCount: count}, docstore.SetOptions{Merge: true})

		result = model.LikeResult{VideoID: videoID, Liked: liked, LikeCount: count}
		return nil
	})
	l.record("toggle_like", err, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
		l.cfg.Logger.Warn("like toggle failed", "videoId", videoID, "userId", userID, "error", err)
		return model.LikeResult{}, errordefs.Wrap(errordefs.FEED_TX_FAILED, "failed to update like", err)
	}

	l.mu.Lock()
	if !l.closed {
		s := l.stats[videoID]
		s.LikeCount = result.LikeCount
		l.stats[videoID] = s
		// Like state of any other user is left to its own snapshots.
		if l.likesUser == userID {
			l.liked[videoID] = result.Liked
		}
	}
	l.mu.Unlock()

	span.SetAttributes(attribute.Bool("like.active", result.Liked), attribute.Int("like.count", result.LikeCount))
	l.publish(event.SubjectLikeToggled, l.cfg.Publisher.PublishLikeToggled(ctx, userID, result))
	return result, nil
}

// AddComment creates a comment on videoID by authorID and bumps the video's
// comment count in the same transaction.
func (l *Ledger) AddComment(ctx context.Context, videoID, authorID, text string) (model.Comment, error) {
	if l.cfg.Store == nil {
		return model.Comment{}, errordefs.ErrStoreUnavailable
	}
	if authorID == "" {
		return model.Comment{}, errordefs.ErrNotAuthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Comment{}, errordefs.ErrEmptyInput
	}
	if videoID == "" {
		return model.Comment{}, errordefs.New(errordefs.FEED_VALIDATION, "videoId is required", "")
	}

	ctx, span := l.tracer.Start(ctx, "engagement.AddComment", trace.WithAttributes(
		attribute.String("video.id", videoID),
	))
	defer span.End()
	start := time.Now()

	statPath := l.cfg.Paths.VideoStat(videoID)

	var (
		comment     model.Comment
		commentPath string
		count       int
	)
	err := l.cfg.Store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		stat, err := tx.Get(ctx, statPath)
		if err != nil {
			return err
		}
		count = 1
		if stat.Exists() {
			count = stat.Data().Int(fieldCommentCount) + 1
		}

		commentPath = tx.NewDocPath(l.cfg.Paths.Comments())
		_, id, err := docstore.Split(commentPath)
		if err != nil {
			return err
		}
		tx.Set(commentPath, docstore.Fields{
			fieldVideoID:   videoID,
			fieldAuthorID:  authorID,
			fieldText:      text,
			fieldCreatedAt: docstore.ServerTimestamp,
		}, docstore.SetOptions{})
		tx.Set(statPath, docstore.Fields{fieldCommentCount: count}, docstore.SetOptions{Merge: true})

		comment = model.Comment{ID: id, VideoID: videoID, AuthorID: authorID, Text: text}
		return nil
	})
	l.record("add_comment", err, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction failed")
		l.cfg.Logger.Warn("comment failed", "videoId", videoID, "userId", authorID, "error", err)
		return model.Comment{}, errordefs.Wrap(errordefs.FEED_TX_FAILED, "failed to add comment", err)
	}
	comment.CreatedAt = docstore.StoredTime(ctx, l.cfg.Store, commentPath, fieldCreatedAt)

	l.mu.Lock()
	if !l.closed {
		s := l.stats[videoID]
		s.CommentCount = count
		l.stats[videoID] = s
	}
	l.mu.Unlock()

	l.publish(event.SubjectCommentAdded, l.cfg.Publisher.PublishCommentAdded(ctx, comment))
	return comment, nil
}

// Stats returns the cached counters for videoID.
func (l *Ledger) Stats(videoID string) model.EngagementStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats[videoID]
}

// Liked reports whether the signed-in user likes videoID.
func (l *Ledger) Liked(videoID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.liked[videoID]
}

// Comments returns the cached comments of videoID, oldest first.
func (l *Ledger) Comments(videoID string) []model.Comment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Comment(nil), l.comments[videoID]...)
}

// Close stops every subscription. Results of calls still in flight are
// discarded when they complete.
func (l *Ledger) Close() {
	l.mu.Lock()
	l.closed = true
	subs := l.subs
	l.subs = make(map[string]docstore.Unsubscribe)
	l.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
}

func (l *Ledger) acquire(videoID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errordefs.New(errordefs.FEED_STORE_UNAVAILABLE, "ledger closed", "")
	}
	if l.inFlight[videoID] {
		return errordefs.ErrBusy
	}
	l.inFlight[videoID] = true
	return nil
}

func (l *Ledger) release(videoID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, videoID)
}

func (l *Ledger) record(operation string, err error, start time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	l.cfg.Metrics.EngagementTxTotal.WithLabelValues(operation, status).Inc()
	l.cfg.Metrics.EngagementTxDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// publish records the outcome of an event publish. Failures never fail the
// mutation that produced the event.
func (l *Ledger) publish(subject string, err error) {
	recordPublish(l.cfg, subject, err)
}

func recordPublish(cfg Config, subject string, err error) {
	status := "success"
	if err != nil {
		status = "error"
		cfg.Logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
	cfg.Metrics.EventPublishTotal.WithLabelValues(subject, status).Inc()
}
