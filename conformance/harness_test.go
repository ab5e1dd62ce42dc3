package conformance

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
)

func TestMemoryConformance(t *testing.T) {
	NewHarness(func(t *testing.T) docstore.Store {
		store := docstore.NewMemory()
		t.Cleanup(func() { store.Close() })
		return store
	}).Run(t)
}

func TestRedisConformance(t *testing.T) {
	NewHarness(func(t *testing.T) docstore.Store {
		mr, err := miniredis.Run()
		if err != nil {
			t.Fatalf("failed to start miniredis: %v", err)
		}
		t.Cleanup(mr.Close)
		store := docstore.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "reels")
		t.Cleanup(func() { store.Close() })
		return store
	}).Run(t)
}

func TestPostgresConformance(t *testing.T) {
	dsn := os.Getenv("REELS_TEST_DB_DSN")
	if dsn == "" {
		t.Skip("REELS_TEST_DB_DSN not set")
	}
	NewHarness(func(t *testing.T) docstore.Store {
		store, err := docstore.NewPostgres(context.Background(), dsn)
		if err != nil {
			t.Fatalf("failed to connect: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	}).Run(t)
}
