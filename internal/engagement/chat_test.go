package engagement

import (
	"context"
	"errors"
	"testing"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	errordefs "github.com/RegistryAccord/registryaccord-reels-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/identity"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
)

func TestRoomPostAndObserve(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	session := identity.NewSession()
	pub := &recordingPublisher{}
	room := NewRoom(Config{Store: store, Identity: session, Paths: testPaths, Publisher: pub})
	defer room.Close()

	if err := room.Observe(ctx); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	if _, err := room.Post(ctx, "", "hi"); !errors.Is(err, errordefs.ErrNotAuthenticated) {
		t.Errorf("anonymous Post error = %v", err)
	}

	if _, err := room.Post(ctx, "u1", " \t"); !errors.Is(err, errordefs.ErrEmptyInput) {
		t.Errorf("blank Post error = %v", err)
	}
	var posted []model.ChatMessage
	for _, text := range []string{"first", "second"} {
		msg, err := room.Post(ctx, "u1", text)
		if err != nil {
			t.Fatalf("Post failed: %v", err)
		}
		posted = append(posted, msg)
	}

	msgs := room.Messages()
	if len(msgs) != 2 || msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[0].AuthorID != "u1" {
		t.Errorf("AuthorID = %q", msgs[0].AuthorID)
	}
	for i, msg := range posted {
		if !msg.CreatedAt.Equal(msgs[i].CreatedAt) {
			t.Errorf("message %d returned CreatedAt %v, stored %v", i, msg.CreatedAt, msgs[i].CreatedAt)
		}
	}
	if len(pub.chats) != 2 {
		t.Errorf("published %d chat events, want 2", len(pub.chats))
	}
}

func TestRoomPostFailure(t *testing.T) {
	session := identity.NewSession()
	session.SignIn("u1")
	room := NewRoom(Config{
		Store:    failingStore{Store: docstore.NewMemory(), err: errors.New("offline")},
		Identity: session,
		Paths:    testPaths,
	})

	if _, err := room.Post(context.Background(), "u1", "hi"); !errors.Is(err, errordefs.ErrTransactionFailed) {
		t.Errorf("Post error = %v, want transaction failed", err)
	}
}
