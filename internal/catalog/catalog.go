// Package catalog provides the feed's video catalog: the built-in fallback
// videos, YAML catalog files, seeding an empty store and feed ordering.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
)

// Document field names of a video.
const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldMediaRef    = "mediaRef"
	fieldCategory    = "category"
	fieldCreatedAt   = "createdAt"
)

// fallbackEpoch dates the built-in videos; later entries are older.
var fallbackEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var fallback = []model.Video{
	{
		ID:          "v1",
		Title:       "ASA Global Initiative",
		Description: "Connecting the world",
		MediaRef:    "https://www.w3schools.com/html/mov_bbb.mp4",
	},
	{
		ID:          "v2",
		Title:       "Future of Digital Learning",
		Description: "Exploring emerging technologies",
		MediaRef:    "https://www.w3schools.com/html/movie.mp4",
	},
	{
		ID:          "v3",
		Title:       "Volunteer Spotlight Series",
		Description: "Making a difference in communities",
		MediaRef:    "https://sample-videos.com/video123/mp4/720/big_buck_bunny_720p_1mb.mp4",
	},
}

// Fallback returns the built-in videos, newest first.
func Fallback() []model.Video {
	out := make([]model.Video, len(fallback))
	for i, v := range fallback {
		v.CreatedAt = fallbackEpoch.Add(-time.Duration(i) * time.Minute)
		out[i] = v
	}
	return out
}

// file is the YAML catalog layout.
type file struct {
	Videos []struct {
		ID          string    `yaml:"id"`
		Title       string    `yaml:"title"`
		Description string    `yaml:"description"`
		MediaRef    string    `yaml:"mediaRef"`
		Category    string    `yaml:"category"`
		CreatedAt   time.Time `yaml:"createdAt"`
	} `yaml:"videos"`
}

// LoadFile reads a YAML catalog. Entries without createdAt are dated in file
// order, newest first.
func LoadFile(path string) ([]model.Video, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if len(f.Videos) == 0 {
		return nil, fmt.Errorf("catalog %s has no videos", path)
	}

	seen := make(map[string]bool, len(f.Videos))
	out := make([]model.Video, 0, len(f.Videos))
	for i, e := range f.Videos {
		if e.ID == "" || e.MediaRef == "" {
			return nil, fmt.Errorf("catalog entry %d needs id and mediaRef", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("catalog has duplicate id %q", e.ID)
		}
		seen[e.ID] = true

		created := e.CreatedAt
		if created.IsZero() {
			created = fallbackEpoch.Add(-time.Duration(i) * time.Minute)
		}
		out = append(out, model.Video{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			MediaRef:    e.MediaRef,
			Category:    e.Category,
			CreatedAt:   created,
		})
	}
	return out, nil
}

// Sort orders videos newest first; equal timestamps keep id order.
func Sort(videos []model.Video) {
	slices.SortStableFunc(videos, func(a, b model.Video) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Decode converts video documents into feed order.
func Decode(docs []docstore.DocumentSnapshot) []model.Video {
	videos := make([]model.Video, 0, len(docs))
	for _, d := range docs {
		f := d.Data()
		videos = append(videos, model.Video{
			ID:          d.ID(),
			Title:       f.String(fieldTitle),
			Description: f.String(fieldDescription),
			MediaRef:    f.String(fieldMediaRef),
			Category:    f.String(fieldCategory),
			CreatedAt:   f.Time(fieldCreatedAt),
		})
	}
	Sort(videos)
	return videos
}

// Fields returns the document form of v. A zero CreatedAt becomes the
// store's commit time.
func Fields(v model.Video) docstore.Fields {
	f := docstore.Fields{
		fieldTitle:       v.Title,
		fieldDescription: v.Description,
		fieldMediaRef:    v.MediaRef,
		fieldCreatedAt:   docstore.ServerTimestamp,
	}
	if v.Category != "" {
		f[fieldCategory] = v.Category
	}
	if !v.CreatedAt.IsZero() {
		f[fieldCreatedAt] = v.CreatedAt.UTC()
	}
	return f
}

// CreatedAt returns the creation time the store recorded for the video id.
func CreatedAt(ctx context.Context, store docstore.Store, paths docstore.Paths, id string) time.Time {
	return docstore.StoredTime(ctx, store, paths.Video(id), fieldCreatedAt)
}

// Seed writes videos when the videos collection is empty and reports how many
// were written. Videos that appear concurrently are left untouched.
func Seed(ctx context.Context, store docstore.Store, paths docstore.Paths, videos []model.Video) (int, error) {
	existing, err := docstore.List(ctx, store, paths.Videos())
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	written := 0
	err = store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		written = 0
		for _, v := range videos {
			snap, err := tx.Get(ctx, paths.Video(v.ID))
			if err != nil {
				return err
			}
			if snap.Exists() {
				continue
			}
			tx.Set(paths.Video(v.ID), Fields(v), docstore.SetOptions{})
			written++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to seed catalog: %w", err)
	}
	slog.Info("seeded video catalog", "videos", written)
	return written, nil
}
