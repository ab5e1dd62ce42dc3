// Package conformance checks that a document store backend upholds the
// engagement invariants the feed core relies on: like counters equal the
// number of active likes, comment counters equal the number of comments, and
// neither ever goes negative.
package conformance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/engagement"
	errordefs "github.com/RegistryAccord/registryaccord-reels-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/identity"
)

// Backend returns an open store for one test. Each test writes under its own
// app namespace, so a backend may hand out the same store more than once.
type Backend func(t *testing.T) docstore.Store

// Harness runs the suite against one backend.
type Harness struct {
	newStore Backend
}

// NewHarness returns a Harness over newStore.
func NewHarness(newStore Backend) *Harness {
	return &Harness{newStore: newStore}
}

// Run executes every conformance test as a subtest of t.
func (h *Harness) Run(t *testing.T) {
	t.Run("LikeCountsFollowActiveLikes", h.testLikeCounts)
	t.Run("UnlikeNeverGoesNegative", h.testUnlikeClamp)
	t.Run("UnlikeKeepsSoftState", h.testSoftState)
	t.Run("CommentCountsFollowComments", h.testCommentCounts)
	t.Run("ConcurrentLikesStayConsistent", h.testConcurrentLikes)
	t.Run("ConcurrentCommentsStayConsistent", h.testConcurrentComments)
	t.Run("SeedOnlyWhenEmpty", h.testSeed)
}

// fixture is one isolated namespace in a backend.
type fixture struct {
	t     *testing.T
	ctx   context.Context
	store docstore.Store
	paths docstore.Paths
}

func (h *Harness) fixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: h.newStore(t),
		paths: docstore.Paths{AppID: "conf-" + docstore.NewID()},
	}
}

// ledger returns a ledger acting as userID.
func (f *fixture) ledger(userID string) *engagement.Ledger {
	ident := identity.NewSession()
	ident.SignIn(userID)
	l := engagement.New(engagement.Config{Store: f.store, Identity: ident, Paths: f.paths})
	f.t.Cleanup(l.Close)
	return l
}

func (f *fixture) stat(videoID string) docstore.Fields {
	f.t.Helper()
	snap, err := f.store.Get(f.ctx, f.paths.VideoStat(videoID))
	if err != nil {
		f.t.Fatalf("Get stats failed: %v", err)
	}
	return snap.Data()
}

func (f *fixture) activeLikes(videoID string, users ...string) int {
	f.t.Helper()
	n := 0
	for _, u := range users {
		snap, err := f.store.Get(f.ctx, f.paths.UserLike(u, videoID))
		if err != nil {
			f.t.Fatalf("Get like failed: %v", err)
		}
		if active, ok := snap.Data().Bool("active"); snap.Exists() && (!ok || active) {
			n++
		}
	}
	return n
}

func (h *Harness) testLikeCounts(t *testing.T) {
	f := h.fixture(t)
	users := []string{"u1", "u2", "u3"}
	ledgers := make(map[string]*engagement.Ledger)
	for _, u := range users {
		ledgers[u] = f.ledger(u)
	}

	toggles := []string{"u1", "u2", "u1", "u3", "u2", "u1", "u3", "u3"}
	for i, u := range toggles {
		if _, err := ledgers[u].ToggleLike(f.ctx, u, "v1"); err != nil {
			t.Fatalf("toggle %d by %s failed: %v", i, u, err)
		}
		got := f.stat("v1").Int("likeCount")
		if want := f.activeLikes("v1", users...); got != want {
			t.Fatalf("after toggle %d: likeCount = %d, active likes = %d", i, got, want)
		}
	}
}

func (h *Harness) testUnlikeClamp(t *testing.T) {
	f := h.fixture(t)
	// An active like whose counter was reset out of band.
	if err := f.store.Set(f.ctx, f.paths.UserLike("u1", "v1"), docstore.Fields{"active": true}, docstore.SetOptions{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := f.store.Set(f.ctx, f.paths.VideoStat("v1"), docstore.Fields{"likeCount": 0}, docstore.SetOptions{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	res, err := f.ledger("u1").ToggleLike(f.ctx, "u1", "v1")
	if err != nil {
		t.Fatalf("ToggleLike failed: %v", err)
	}
	if res.Liked || res.LikeCount != 0 {
		t.Errorf("result = %+v, want unliked at 0", res)
	}
	if n := f.stat("v1").Int("likeCount"); n != 0 {
		t.Errorf("stored likeCount = %d, want 0", n)
	}
}

func (h *Harness) testSoftState(t *testing.T) {
	f := h.fixture(t)
	l := f.ledger("u1")
	for i := 0; i < 2; i++ {
		if _, err := l.ToggleLike(f.ctx, "u1", "v1"); err != nil {
			t.Fatalf("toggle %d failed: %v", i, err)
		}
	}

	snap, err := f.store.Get(f.ctx, f.paths.UserLike("u1", "v1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !snap.Exists() {
		t.Fatalf("unlike removed the like document")
	}
	if active, ok := snap.Data().Bool("active"); !ok || active {
		t.Errorf("active = %v (present %v), want false", active, ok)
	}
	if snap.Data().Time("updatedAt").IsZero() {
		t.Errorf("updatedAt was not set")
	}
}

func (h *Harness) testCommentCounts(t *testing.T) {
	f := h.fixture(t)
	l := f.ledger("u1")

	for _, text := range []string{"first", "second", "third"} {
		if _, err := l.AddComment(f.ctx, "v1", "u1", text); err != nil {
			t.Fatalf("AddComment failed: %v", err)
		}
	}
	if _, err := l.AddComment(f.ctx, "v2", "u1", "elsewhere"); err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	if _, err := l.AddComment(f.ctx, "v1", "u1", "  "); !errors.Is(err, errordefs.ErrEmptyInput) {
		t.Errorf("blank comment error = %v, want empty input", err)
	}

	docs, err := docstore.List(f.ctx, f.store, f.paths.Comments())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	comments := engagement.DecodeComments(docs, "v1")
	if len(comments) != 3 || f.stat("v1").Int("commentCount") != 3 {
		t.Errorf("v1 has %d comments and commentCount %d, want 3 and 3", len(comments), f.stat("v1").Int("commentCount"))
	}
	for i, want := range []string{"first", "second", "third"} {
		if i < len(comments) && comments[i].Text != want {
			t.Errorf("comment %d = %q, want %q", i, comments[i].Text, want)
		}
	}
	if n := f.stat("v2").Int("commentCount"); n != 1 {
		t.Errorf("v2 commentCount = %d, want 1", n)
	}
}

// concurrency is the number of simultaneous writers in the concurrent tests.
const concurrency = 20

// outcomes counts how concurrent mutations ended.
type outcomes struct {
	mu       sync.Mutex
	ok       int
	conflict int
	other    []error
}

func (o *outcomes) add(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case err == nil:
		o.ok++
	case errors.Is(err, errordefs.ErrTransactionFailed):
		o.conflict++
	default:
		o.other = append(o.other, err)
	}
}

func (o *outcomes) check(t *testing.T) {
	t.Helper()
	for _, err := range o.other {
		t.Errorf("unexpected error: %v", err)
	}
	if o.ok+o.conflict != concurrency {
		t.Errorf("ok %d + failed %d != %d writers", o.ok, o.conflict, concurrency)
	}
	if o.ok == 0 {
		t.Errorf("no concurrent mutation succeeded")
	}
}

func (h *Harness) testConcurrentLikes(t *testing.T) {
	f := h.fixture(t)
	users := make([]string, concurrency)
	ledgers := make([]*engagement.Ledger, concurrency)
	for i := range users {
		users[i] = fmt.Sprintf("u%d", i)
		ledgers[i] = f.ledger(users[i])
	}

	var (
		wg  sync.WaitGroup
		res outcomes
	)
	for i := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledgers[i].ToggleLike(f.ctx, users[i], "v1")
			res.add(err)
		}()
	}
	wg.Wait()
	res.check(t)

	got := f.stat("v1").Int("likeCount")
	if want := f.activeLikes("v1", users...); got != want {
		t.Errorf("likeCount = %d, active likes = %d", got, want)
	}
	if got != res.ok {
		t.Errorf("likeCount = %d, successful likes = %d", got, res.ok)
	}
}

func (h *Harness) testConcurrentComments(t *testing.T) {
	f := h.fixture(t)

	var (
		wg  sync.WaitGroup
		res outcomes
	)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			author := fmt.Sprintf("u%d", i)
			_, err := f.ledger(author).AddComment(f.ctx, "v1", author, fmt.Sprintf("comment %d", i))
			res.add(err)
		}()
	}
	wg.Wait()
	res.check(t)

	docs, err := docstore.List(f.ctx, f.store, f.paths.Comments())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	comments := engagement.DecodeComments(docs, "v1")
	got := f.stat("v1").Int("commentCount")
	if got != len(comments) {
		t.Errorf("commentCount = %d, comments = %d", got, len(comments))
	}
	if got != res.ok {
		t.Errorf("commentCount = %d, successful comments = %d", got, res.ok)
	}
}

func (h *Harness) testSeed(t *testing.T) {
	f := h.fixture(t)
	videos := catalog.Fallback()

	n, err := catalog.Seed(f.ctx, f.store, f.paths, videos)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if n != len(videos) {
		t.Errorf("seeded %d videos, want %d", n, len(videos))
	}
	if n, err := catalog.Seed(f.ctx, f.store, f.paths, videos); err != nil || n != 0 {
		t.Errorf("second Seed = %d, %v; want 0, nil", n, err)
	}

	docs, err := docstore.List(f.ctx, f.store, f.paths.Videos())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	got := catalog.Decode(docs)
	if len(got) != len(videos) || got[0].ID != "v1" {
		t.Errorf("decoded catalog = %+v", got)
	}
}
