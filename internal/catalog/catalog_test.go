package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
)

func TestFallbackOrder(t *testing.T) {
	videos := Fallback()
	Sort(videos)
	for i, want := range []string{"v1", "v2", "v3"} {
		if videos[i].ID != want {
			t.Errorf("video %d = %s, want %s", i, videos[i].ID, want)
		}
	}
}

func TestSortNewestFirst(t *testing.T) {
	now := time.Now()
	videos := []model.Video{
		{ID: "old", CreatedAt: now.Add(-time.Hour)},
		{ID: "b", CreatedAt: now},
		{ID: "a", CreatedAt: now},
	}
	Sort(videos)
	if videos[0].ID != "a" || videos[1].ID != "b" || videos[2].ID != "old" {
		t.Errorf("order = %s,%s,%s", videos[0].ID, videos[1].ID, videos[2].ID)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `videos:
  - id: intro
    title: Intro
    description: Welcome
    mediaRef: https://example.com/intro.mp4
    category: news
  - id: later
    title: Later
    mediaRef: s3://media/later.mp4
    createdAt: 2023-06-01T10:00:00Z
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	videos, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(videos))
	}
	if videos[0].Category != "news" || videos[0].CreatedAt.IsZero() {
		t.Errorf("unexpected first video %+v", videos[0])
	}
	if want := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC); !videos[1].CreatedAt.Equal(want) {
		t.Errorf("createdAt = %v, want %v", videos[1].CreatedAt, want)
	}
}

func TestLoadFileRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := "videos:\n  - {id: a, mediaRef: x}\n  - {id: a, mediaRef: y}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Errorf("expected duplicate id error")
	}
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	paths := docstore.Paths{AppID: "test"}

	n, err := Seed(ctx, store, paths, Fallback())
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if n != 3 {
		t.Errorf("seeded %d videos, want 3", n)
	}

	n, err = Seed(ctx, store, paths, []model.Video{{ID: "extra", MediaRef: "x"}})
	if err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}
	if n != 0 {
		t.Errorf("second Seed wrote %d videos", n)
	}

	docs, err := docstore.List(ctx, store, paths.Videos())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	videos := Decode(docs)
	if len(videos) != 3 || videos[0].ID != "v1" || videos[0].Title != "ASA Global Initiative" {
		t.Errorf("decoded videos = %+v", videos)
	}
}
