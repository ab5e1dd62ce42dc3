// internal/docstore/docstore.go
// Package docstore defines the document store collaborator used by the feed core
// and provides in-memory, PostgreSQL and Redis implementations of it.
//
// A store holds JSON-like documents addressed by slash-separated paths. The last
// path segment is the document id and the rest is its collection. Stores offer
// atomic read-then-write transactions and collection subscriptions that deliver a
// full snapshot on every committed change.
package docstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Standard errors returned by the storage layer
var (
	ErrTxConflict  = errors.New("transaction conflict: too many attempts") // Retries exhausted
	ErrClosed      = errors.New("store closed")                             // Store has been closed
	ErrInvalidPath = errors.New("invalid document path")                    // Malformed path
)

// Fields is the content of a document.
type Fields map[string]any

// SetOptions controls how Set combines new fields with an existing document.
type SetOptions struct {
	Merge bool // Overlay fields onto the existing document instead of replacing it
}

type serverTimestamp struct{}

// ServerTimestamp may be used as a field value; the store replaces it with its
// commit time.
var ServerTimestamp any = serverTimestamp{}

// DocumentSnapshot is a point-in-time read of one document.
type DocumentSnapshot interface {
	ID() string
	Path() string
	Exists() bool
	Data() Fields
}

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// Tx is the view of the store available inside a transaction body.
// Reads observe committed state; writes are buffered and applied at commit.
type Tx interface {
	Get(ctx context.Context, path string) (DocumentSnapshot, error)
	Set(path string, fields Fields, opts SetOptions)
	NewDocPath(collection string) string
}

// Store interface defines the storage operations required by the feed core.
type Store interface {
	// Get reads a document. A missing document is reported through Exists, not an error.
	Get(ctx context.Context, path string) (DocumentSnapshot, error)

	// Set writes a document, replacing or merging per opts.
	Set(ctx context.Context, path string, fields Fields, opts SetOptions) error

	// Add creates a document with a store-generated id and returns the id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)

	// RunTransaction executes fn atomically. fn is re-executed when a document it
	// read changed before commit. An error returned by fn aborts the transaction.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Subscribe delivers the current contents of collection, then a fresh
	// snapshot after every committed change. onError may be nil.
	Subscribe(ctx context.Context, collection string, onSnapshot func([]DocumentSnapshot), onError func(error)) (Unsubscribe, error)

	// Close releases the store's resources.
	Close() error
}

// snapshot is the DocumentSnapshot implementation shared by all backends.
type snapshot struct {
	path   string
	fields Fields
	exists bool
}

// NewSnapshot builds a snapshot of an existing document.
func NewSnapshot(docPath string, fields Fields) DocumentSnapshot {
	return &snapshot{path: docPath, fields: fields, exists: true}
}

// MissingSnapshot builds a snapshot of a document that does not exist.
func MissingSnapshot(docPath string) DocumentSnapshot {
	return &snapshot{path: docPath}
}

func (s *snapshot) ID() string   { return path.Base(s.path) }
func (s *snapshot) Path() string { return s.path }
func (s *snapshot) Exists() bool { return s.exists }

// Data returns a copy of the document fields, or nil when the document is missing.
func (s *snapshot) Data() Fields {
	if !s.exists {
		return nil
	}
	return s.fields.clone()
}

// Split separates a document path into its collection path and id.
func Split(docPath string) (collection, id string, err error) {
	if err := validatePath(docPath); err != nil {
		return "", "", err
	}
	i := strings.LastIndex(docPath, "/")
	if i <= 0 {
		return "", "", fmt.Errorf("%w: %q has no collection", ErrInvalidPath, docPath)
	}
	return docPath[:i], docPath[i+1:], nil
}

// Join builds a document path from a collection and id.
func Join(collection, id string) string {
	return collection + "/" + id
}

func validatePath(p string) error {
	if p == "" || strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") || strings.Contains(p, "//") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return nil
}

var (
	idMu    sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a lexicographically increasing document id.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// pendingWrite is a buffered Set awaiting commit.
type pendingWrite struct {
	path       string
	collection string
	id         string
	fields     Fields
	merge      bool
}

func newPendingWrite(docPath string, fields Fields, opts SetOptions) (pendingWrite, error) {
	collection, id, err := Split(docPath)
	if err != nil {
		return pendingWrite{}, err
	}
	return pendingWrite{path: docPath, collection: collection, id: id, fields: fields.clone(), merge: opts.Merge}, nil
}

// apply computes the stored fields for w given the current document (nil if absent).
func (w pendingWrite) apply(existing Fields, now time.Time) Fields {
	resolved := w.fields.resolve(now)
	if !w.merge || existing == nil {
		return resolved
	}
	merged := existing.clone()
	for k, v := range resolved {
		merged[k] = v
	}
	return merged
}

// writeBuffer collects a transaction's writes. Invalid paths are remembered and
// reported at commit, since Tx.Set has no error return.
type writeBuffer struct {
	writes []pendingWrite
	err    error
}

func (b *writeBuffer) set(docPath string, fields Fields, opts SetOptions) {
	w, err := newPendingWrite(docPath, fields, opts)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return
	}
	b.writes = append(b.writes, w)
}

func (b *writeBuffer) collections() []string {
	seen := make(map[string]bool, len(b.writes))
	var out []string
	for _, w := range b.writes {
		if !seen[w.collection] {
			seen[w.collection] = true
			out = append(out, w.collection)
		}
	}
	return out
}
