package engagement

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	errordefs "github.com/RegistryAccord/registryaccord-reels-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/event"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
)

// Room is the global chat shared by every viewer.
type Room struct {
	cfg Config

	mu       sync.RWMutex
	messages []model.ChatMessage
	unsub    docstore.Unsubscribe
	closed   bool
}

// NewRoom returns a Room; call Observe to start following messages.
func NewRoom(cfg Config) *Room {
	return &Room{cfg: cfg.withDefaults()}
}

// Post appends a message by authorID.
func (r *Room) Post(ctx context.Context, authorID, text string) (model.ChatMessage, error) {
	if r.cfg.Store == nil {
		return model.ChatMessage{}, errordefs.ErrStoreUnavailable
	}
	if authorID == "" {
		return model.ChatMessage{}, errordefs.ErrNotAuthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ChatMessage{}, errordefs.ErrEmptyInput
	}

	start := time.Now()
	id, err := r.cfg.Store.Add(ctx, r.cfg.Paths.Chat(), docstore.Fields{
		fieldAuthorID:  authorID,
		fieldText:      text,
		fieldCreatedAt: docstore.ServerTimestamp,
	})
	status := "success"
	if err != nil {
		status = "error"
	}
	r.cfg.Metrics.EngagementTxTotal.WithLabelValues("chat_post", status).Inc()
	r.cfg.Metrics.EngagementTxDuration.WithLabelValues("chat_post", status).Observe(time.Since(start).Seconds())
	if err != nil {
		r.cfg.Logger.Warn("chat post failed", "userId", authorID, "error", err)
		return model.ChatMessage{}, errordefs.Wrap(errordefs.FEED_TX_FAILED, "failed to send message", err)
	}

	createdAt := docstore.StoredTime(ctx, r.cfg.Store, docstore.Join(r.cfg.Paths.Chat(), id), fieldCreatedAt)
	msg := model.ChatMessage{ID: id, AuthorID: authorID, Text: text, CreatedAt: createdAt}
	recordPublish(r.cfg, event.SubjectChatPosted, r.cfg.Publisher.PublishChatPosted(ctx, msg))
	return msg, nil
}

// Observe follows the chat collection.
func (r *Room) Observe(ctx context.Context) error {
	if r.cfg.Store == nil {
		return nil
	}
	unsub, err := r.cfg.Store.Subscribe(ctx, r.cfg.Paths.Chat(), func(docs []docstore.DocumentSnapshot) {
		r.cfg.Metrics.SnapshotDeliveriesTotal.WithLabelValues("chat").Inc()
		msgs := make([]model.ChatMessage, 0, len(docs))
		for _, d := range docs {
			msgs = append(msgs, decodeChat(d))
		}
		sortChat(msgs)

		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.closed {
			r.messages = msgs
		}
	}, func(err error) {
		r.cfg.Logger.Warn("snapshot listener error", "collection", "chat", "error", err)
	})
	if err != nil {
		return errordefs.Wrap(errordefs.FEED_STORE_UNAVAILABLE, "failed to subscribe to chat", err)
	}

	r.mu.Lock()
	prev := r.unsub
	r.unsub = unsub
	closed := r.closed
	r.mu.Unlock()

	if prev != nil {
		prev()
	}
	if closed {
		unsub()
	}
	return nil
}

// Messages returns the cached messages, oldest first.
func (r *Room) Messages() []model.ChatMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.ChatMessage(nil), r.messages...)
}

// Close stops following the chat.
func (r *Room) Close() {
	r.mu.Lock()
	r.closed = true
	unsub := r.unsub
	r.unsub = nil
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
