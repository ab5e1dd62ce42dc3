// internal/event/nats.go
// Package event publishes engagement events to NATS JetStream so downstream
// consumers (notifications, analytics) can follow likes, comments and chat.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Subjects published by the engagement ledger.
const (
	SubjectLikeToggled  = "reels.engagement.like_toggled"
	SubjectCommentAdded = "reels.engagement.comment_added"
	SubjectChatPosted   = "reels.engagement.chat_posted"
)

// Publisher interface defines the event publishing operations used after a
// committed engagement mutation.
type Publisher interface {
	PublishLikeToggled(ctx context.Context, userID string, result model.LikeResult) error
	PublishCommentAdded(ctx context.Context, comment model.Comment) error
	PublishChatPosted(ctx context.Context, msg model.ChatMessage) error

	// Close closes the publisher connection
	Close() error
}

// noop is used when NATS is not configured or unreachable.
type noop struct{}

// NewNoop returns a Publisher that drops every event.
func NewNoop() Publisher { return noop{} }

func (noop) Close() error { return nil }

func (noop) PublishLikeToggled(ctx context.Context, userID string, result model.LikeResult) error {
	return nil
}

func (noop) PublishCommentAdded(ctx context.Context, comment model.Comment) error { return nil }

func (noop) PublishChatPosted(ctx context.Context, msg model.ChatMessage) error { return nil }

// natsPub is the NATS JetStream implementation of Publisher.
type natsPub struct {
	nc *nats.Conn            // NATS connection
	js nats.JetStreamContext // JetStream context for stream operations
}

// NewPublisher connects to the NATS server at url. An empty url, or any
// connection or stream setup failure, yields the no-op publisher.
func NewPublisher(url string) Publisher {
	if url == "" {
		return noop{}
	}

	nc, err := nats.Connect(url, nats.Name("reelsd"))
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return noop{}
	}

	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return noop{}
	}

	if err := initStreams(js); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return noop{}
	}

	return &natsPub{nc: nc, js: js}
}

// initStreams creates the RA_ENGAGEMENT stream. The duplicate window lets
// JetStream drop redelivered events that carry the same message id.
func initStreams(js nats.JetStreamContext) error {
	cfg := &nats.StreamConfig{
		Name:       "RA_ENGAGEMENT",
		Subjects:   []string{"reels.engagement.*"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     24 * time.Hour,
		Discard:    nats.DiscardOld,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	}
	if _, err := js.StreamInfo(cfg.Name); err == nil {
		if _, err := js.UpdateStream(cfg); err != nil {
			return fmt.Errorf("failed to update RA_ENGAGEMENT stream: %w", err)
		}
		return nil
	}
	if _, err := js.AddStream(cfg); err != nil {
		return fmt.Errorf("failed to create RA_ENGAGEMENT stream: %w", err)
	}
	return nil
}

// EventEnvelope represents the standard event envelope structure.
type EventEnvelope struct {
	Type          string      `json:"type"`          // Event type identifier
	Version       string      `json:"version"`       // Event schema version
	OccurredAt    time.Time   `json:"occurredAt"`    // When the event occurred
	CorrelationID string      `json:"correlationId"` // Correlation ID for tracing
	Payload       interface{} `json:"payload"`       // Event-specific data
}

// LikeToggledPayload is the payload of a like_toggled event.
type LikeToggledPayload struct {
	UserID    string `json:"userId"`
	VideoID   string `json:"videoId"`
	Liked     bool   `json:"liked"`
	LikeCount int    `json:"likeCount"`
}

// Envelope builds the envelope for subject.
func Envelope(subject string, payload interface{}) EventEnvelope {
	return EventEnvelope{
		Type:          subject,
		Version:       "1.0.0",
		OccurredAt:    time.Now().UTC(),
		CorrelationID: uuid.New().String(),
		Payload:       payload,
	}
}

func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// publish sends payload on subject. msgID is used by JetStream for dedup.
func (p *natsPub) publish(ctx context.Context, subject, msgID string, payload interface{}) error {
	b, err := json.Marshal(Envelope(subject, payload))
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, b, nats.Context(ctx), nats.MsgId(msgID))
	return err
}

func (p *natsPub) PublishLikeToggled(ctx context.Context, userID string, result model.LikeResult) error {
	// A toggle has no id of its own; the resulting count identifies it per user.
	msgID := fmt.Sprintf("like:%s:%s:%t:%d", userID, result.VideoID, result.Liked, result.LikeCount)
	return p.publish(ctx, SubjectLikeToggled, msgID, LikeToggledPayload{
		UserID:    userID,
		VideoID:   result.VideoID,
		Liked:     result.Liked,
		LikeCount: result.LikeCount,
	})
}

func (p *natsPub) PublishCommentAdded(ctx context.Context, comment model.Comment) error {
	return p.publish(ctx, SubjectCommentAdded, "comment:"+comment.ID, comment)
}

func (p *natsPub) PublishChatPosted(ctx context.Context, msg model.ChatMessage) error {
	return p.publish(ctx, SubjectChatPosted, "chat:"+msg.ID, msg)
}
