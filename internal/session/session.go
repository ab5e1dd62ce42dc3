// Package session assembles a feed core for one viewer: navigation, engagement,
// chat and gesture recognition, all fed by document store subscriptions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/engagement"
	errordefs "github.com/RegistryAccord/registryaccord-reels-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/event"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/feed"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/gesture"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/identity"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
)

// Options configures new sessions.
type Options struct {
	// Store is the shared document store. A nil Store opens sessions in demo
	// mode over Fallback, with every mutation failing fast.
	Store          docstore.Store
	Paths          docstore.Paths
	Publisher      event.Publisher
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	SwipeThreshold float64
	Fallback       []model.Video // Defaults to catalog.Fallback()
}

// Gesture phases accepted by Swipe.
const (
	PhaseStart  = "start"
	PhaseMove   = "move"
	PhaseEnd    = "end"
	PhaseCancel = "cancel"
)

// Session is one viewer's feed core.
type Session struct {
	ID       string
	Identity *identity.Session
	Feed     *feed.Navigator
	Ledger   *engagement.Ledger
	Chat     *engagement.Room

	gesture *gesture.Recognizer
	metrics *metrics.Metrics
	logger  *slog.Logger
	demo    bool

	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	unsubs   []func()
	lastSeen time.Time
	closed   bool
}

// Open builds a session and starts its subscriptions.
func Open(ctx context.Context, id string, opts Options) (*Session, error) {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("sessionId", id)

	ident := identity.NewSession()
	cfg := engagement.Config{
		Store:     opts.Store,
		Identity:  ident,
		Paths:     opts.Paths,
		Publisher: opts.Publisher,
		Metrics:   opts.Metrics,
		Logger:    logger,
	}

	// Subscriptions outlive the request that opened the session.
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		ID:       id,
		Identity: ident,
		Feed:     feed.NewNavigator(),
		Ledger:   engagement.New(cfg),
		Chat:     engagement.NewRoom(cfg),
		gesture:  gesture.NewRecognizer(opts.SwipeThreshold),
		metrics:  opts.Metrics,
		logger:   logger,
		demo:     opts.Store == nil,
		ctx:      sctx,
		cancel:   cancel,
		lastSeen: time.Now(),
	}

	if s.demo {
		fallback := opts.Fallback
		if fallback == nil {
			fallback = catalog.Fallback()
		}
		videos := append([]model.Video(nil), fallback...)
		catalog.Sort(videos)
		s.Feed.SetVideos(videos)
		logger.Info("session opened in demo mode")
		return s, nil
	}

	unsub, err := opts.Store.Subscribe(sctx, opts.Paths.Videos(), func(docs []docstore.DocumentSnapshot) {
		s.metrics.SnapshotDeliveriesTotal.WithLabelValues("videos").Inc()
		s.Feed.SetVideos(catalog.Decode(docs))
	}, func(err error) {
		logger.Warn("snapshot listener error", "collection", "videos", "error", err)
	})
	if err != nil {
		s.Close()
		return nil, errordefs.Wrap(errordefs.FEED_STORE_UNAVAILABLE, "failed to subscribe to videos", err)
	}
	s.unsubs = append(s.unsubs, unsub)

	if err := s.Ledger.ObserveStats(sctx); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Chat.Observe(sctx); err != nil {
		s.Close()
		return nil, err
	}
	s.unsubs = append(s.unsubs, ident.OnAuthStateChange(func(userID string) {
		if err := s.Ledger.ObserveMyLikes(s.ctx); err != nil {
			logger.Warn("failed to follow likes", "userId", userID, "error", err)
		}
	}))

	logger.Debug("session opened")
	return s, nil
}

// Demo reports whether the session runs without a document store.
func (s *Session) Demo() bool { return s.demo }

// View returns what the viewer currently sees.
func (s *Session) View() model.FeedView {
	s.touch()
	view := s.Feed.View()
	if view.Video != nil {
		view.Stats = s.Ledger.Stats(view.Video.ID)
		view.Liked = s.Ledger.Liked(view.Video.ID)
	}
	return view
}

// Swipe feeds one pointer event to the gesture recognizer and applies any
// navigation command it emits.
func (s *Session) Swipe(phase string, x, y float64) (gesture.Command, bool, error) {
	s.touch()
	switch phase {
	case PhaseStart:
		s.gesture.Start(x, y)
	case PhaseMove:
		s.gesture.Move(x, y)
	case PhaseCancel:
		s.gesture.Cancel()
	case PhaseEnd:
		cmd, ok := s.gesture.End(x, y)
		if ok {
			s.Feed.Advance(int(cmd))
			s.metrics.GestureCommandsTotal.WithLabelValues(cmd.String()).Inc()
		}
		return cmd, ok, nil
	default:
		return 0, false, errordefs.New(errordefs.FEED_VALIDATION, fmt.Sprintf("unknown gesture phase %q", phase), "")
	}
	return 0, false, nil
}

// WatchComments starts following comments if the session does not yet.
func (s *Session) WatchComments() error {
	s.touch()
	return s.Ledger.ObserveComments(s.ctx)
}

// Context is the session's background context.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close stops every subscription. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	s.Ledger.Close()
	s.Chat.Close()
	s.cancel()
}
