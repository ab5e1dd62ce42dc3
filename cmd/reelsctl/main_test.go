package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/config"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
)

// sharedStore keeps one memory store open across commands.
type sharedStore struct{ docstore.Store }

func (sharedStore) Close() error { return nil }

func useMemoryStore(t *testing.T) docstore.Store {
	t.Helper()
	t.Setenv("REELS_STORE", "")
	t.Setenv("REELS_CATALOG_PATH", "")
	store := docstore.NewMemory()
	t.Cleanup(func() { store.Close() })

	prev := openStore
	openStore = func(ctx context.Context, cfg config.Config) (docstore.Store, error) {
		return sharedStore{store}, nil
	}
	t.Cleanup(func() { openStore = prev })
	return store
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--app-id", "test"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedAndList(t *testing.T) {
	useMemoryStore(t)

	out, err := run(t, "seed")
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if !strings.Contains(out, "seeded 3 videos") {
		t.Errorf("seed output = %q", out)
	}

	out, err = run(t, "seed")
	if err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	if !strings.Contains(out, "nothing seeded") {
		t.Errorf("second seed output = %q", out)
	}

	out, err = run(t, "videos")
	if err != nil {
		t.Fatalf("videos failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[1], "v1") || !strings.HasPrefix(lines[3], "v3") {
		t.Errorf("videos output = %q", out)
	}
}

func TestStatsAndComments(t *testing.T) {
	store := useMemoryStore(t)
	ctx := context.Background()
	paths := docstore.Paths{AppID: "test"}

	store.Set(ctx, paths.VideoStat("v2"), docstore.Fields{"likeCount": 4, "commentCount": 1}, docstore.SetOptions{})
	store.Set(ctx, paths.VideoStat("v1"), docstore.Fields{"likeCount": 2}, docstore.SetOptions{})
	store.Add(ctx, paths.Comments(), docstore.Fields{"videoId": "v2", "authorId": "u1", "text": "great", "createdAt": docstore.ServerTimestamp})

	out, err := run(t, "stats")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("stats output = %q", out)
	}
	if f := strings.Fields(lines[1]); len(f) != 3 || f[0] != "v1" || f[1] != "2" || f[2] != "0" {
		t.Errorf("v1 row = %q", lines[1])
	}
	if f := strings.Fields(lines[2]); len(f) != 3 || f[0] != "v2" || f[1] != "4" || f[2] != "1" {
		t.Errorf("v2 row = %q", lines[2])
	}

	out, err = run(t, "comments", "v2")
	if err != nil {
		t.Fatalf("comments failed: %v", err)
	}
	if !strings.Contains(out, "u1: great") {
		t.Errorf("comments output = %q", out)
	}

	out, _ = run(t, "comments", "v1")
	if !strings.Contains(out, "no comments on v1") {
		t.Errorf("comments output = %q", out)
	}

	if _, err := run(t, "comments"); err == nil {
		t.Errorf("comments without a video id succeeded")
	}
}

func TestBadStoreFlag(t *testing.T) {
	t.Setenv("REELS_STORE", "")
	openStore = defaultOpenStore

	if _, err := run(t, "--store", "cassandra", "videos"); err == nil || !strings.Contains(err.Error(), "cassandra") {
		t.Errorf("err = %v, want unknown backend", err)
	}
}
