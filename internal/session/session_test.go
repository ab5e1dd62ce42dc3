package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	errordefs "github.com/RegistryAccord/registryaccord-reels-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/gesture"
)

var testPaths = docstore.Paths{AppID: "test"}

func seededStore(t *testing.T) docstore.Store {
	t.Helper()
	store := docstore.NewMemory()
	if _, err := catalog.Seed(context.Background(), store, testPaths, catalog.Fallback()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	return store
}

func currentID(s *Session) string {
	if v := s.View().Video; v != nil {
		return v.ID
	}
	return ""
}

func TestDemoMode(t *testing.T) {
	s, err := Open(context.Background(), "demo", Options{Paths: testPaths})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if !s.Demo() {
		t.Errorf("expected demo mode")
	}
	if got := currentID(s); got != "v1" {
		t.Errorf("current = %q, want v1", got)
	}
	s.Feed.Advance(1)
	if got := currentID(s); got != "v2" {
		t.Errorf("current after advance = %q, want v2", got)
	}

	if _, err := s.Ledger.ToggleLike(context.Background(), "u1", "v2"); !errors.Is(err, errordefs.ErrStoreUnavailable) {
		t.Errorf("ToggleLike error = %v, want store unavailable", err)
	}
}

func TestSwipeDrivesFeed(t *testing.T) {
	s, err := Open(context.Background(), "s1", Options{Store: seededStore(t), Paths: testPaths})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if got := currentID(s); got != "v1" {
		t.Fatalf("current = %q, want v1", got)
	}

	s.Swipe(PhaseStart, 100, 400)
	s.Swipe(PhaseMove, 100, 300)
	cmd, ok, err := s.Swipe(PhaseEnd, 100, 300)
	if err != nil || !ok || cmd != gesture.Next {
		t.Fatalf("swipe up = (%v, %v, %v)", cmd, ok, err)
	}
	if got := currentID(s); got != "v2" {
		t.Errorf("current after swipe up = %q, want v2", got)
	}

	s.Swipe(PhaseStart, 100, 300)
	if _, ok, _ := s.Swipe(PhaseEnd, 100, 340); ok {
		t.Errorf("short swipe emitted a command")
	}

	s.Swipe(PhaseStart, 100, 100)
	s.Swipe(PhaseEnd, 100, 400)
	if got := currentID(s); got != "v1" {
		t.Errorf("current after swipe down = %q, want v1", got)
	}

	if _, _, err := s.Swipe("fling", 0, 0); !errors.Is(err, errordefs.New(errordefs.FEED_VALIDATION, "", "")) {
		t.Errorf("unknown phase error = %v", err)
	}
}

func TestNewVideosReachTheFeed(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	s, err := Open(ctx, "s1", Options{Store: store, Paths: testPaths})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	fresh := catalog.Fields(catalog.Fallback()[0])
	fresh["title"] = "Fresh upload"
	fresh["createdAt"] = time.Now().UTC()
	if err := store.Set(ctx, testPaths.Video("v9"), fresh, docstore.SetOptions{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if n := len(s.Feed.Filtered()); n != 4 {
		t.Fatalf("feed has %d videos, want 4", n)
	}
	if first := s.Feed.Filtered()[0]; first.ID != "v9" {
		t.Errorf("newest video = %q, want v9", first.ID)
	}
}

func TestLikesFollowSignIn(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	store.Set(ctx, testPaths.UserLike("u1", "v1"), docstore.Fields{"active": true}, docstore.SetOptions{})

	s, err := Open(ctx, "s1", Options{Store: store, Paths: testPaths})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if s.View().Liked {
		t.Errorf("signed-out view reports liked")
	}
	s.Identity.SignIn("u1")
	if !s.View().Liked {
		t.Errorf("view does not reflect u1's like after sign-in")
	}

	res, err := s.Ledger.ToggleLike(ctx, "u1", "v1")
	if err != nil {
		t.Fatalf("ToggleLike failed: %v", err)
	}
	if res.Liked {
		t.Errorf("toggle of a liked video should unlike it")
	}
	view := s.View()
	if view.Liked || view.Stats.LikeCount != 0 {
		t.Errorf("view = liked:%v count:%d", view.Liked, view.Stats.LikeCount)
	}

	s.Identity.SignOut()
	if s.View().Liked {
		t.Errorf("view reports liked after sign-out")
	}
}

func TestManagerSweep(t *testing.T) {
	m := NewManager(Options{Paths: testPaths})
	defer m.Close()

	a, err := m.Get(context.Background(), "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if a.ID == "" {
		t.Fatalf("Get did not assign an id")
	}
	again, _ := m.Get(context.Background(), a.ID)
	if again != a {
		t.Errorf("Get returned a different session for the same id")
	}

	if n := m.Sweep(time.Hour); n != 0 {
		t.Errorf("Sweep closed %d fresh sessions", n)
	}
	if n := m.Sweep(-time.Second); n != 1 {
		t.Errorf("Sweep closed %d sessions, want 1", n)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after sweep", m.Len())
	}
}
