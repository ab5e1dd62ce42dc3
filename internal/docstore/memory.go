// internal/docstore/memory.go
package docstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// errStaleRead signals that a transaction read a document that changed before commit.
var errStaleRead = errors.New("stale read")

type memDoc struct {
	fields Fields
	rev    uint64 // store revision of the last write
}

// memory implements the Store interface using in-memory storage.
// It's intended for development, demo mode and testing.
type memory struct {
	mu          sync.RWMutex                   // Protects concurrent access to maps
	docs        map[string]*memDoc             // Map of path to document
	collections map[string]map[string]struct{} // Map of collection to document ids
	rev         uint64                         // Monotonic commit counter
	closed      bool
	now         func() time.Time
	hub         *hub
}

// NewMemory creates a new in-memory storage implementation.
func NewMemory() Store {
	return newMemory(func() time.Time { return time.Now().UTC() })
}

func newMemory(now func() time.Time) *memory {
	return &memory{
		docs:        make(map[string]*memDoc),
		collections: make(map[string]map[string]struct{}),
		now:         now,
		hub:         newHub(),
	}
}

func (m *memory) Get(ctx context.Context, docPath string) (DocumentSnapshot, error) {
	if err := validatePath(docPath); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	doc, exists := m.docs[docPath]
	if !exists {
		return MissingSnapshot(docPath), nil
	}
	return NewSnapshot(docPath, doc.fields.clone()), nil
}

func (m *memory) Set(ctx context.Context, docPath string, fields Fields, opts SetOptions) error {
	var buf writeBuffer
	buf.set(docPath, fields, opts)
	if buf.err != nil {
		return buf.err
	}
	return m.commit(ctx, nil, &buf)
}

func (m *memory) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := NewID()
	if err := m.Set(ctx, Join(collection, id), fields, SetOptions{}); err != nil {
		return "", err
	}
	return id, nil
}

// memTx records the revision of every document it reads.
type memTx struct {
	m     *memory
	reads map[string]uint64
	buf   writeBuffer
}

func (t *memTx) Get(ctx context.Context, docPath string) (DocumentSnapshot, error) {
	if err := validatePath(docPath); err != nil {
		return nil, err
	}
	t.m.mu.RLock()
	defer t.m.mu.RUnlock()

	if t.m.closed {
		return nil, ErrClosed
	}
	doc, exists := t.m.docs[docPath]
	if !exists {
		if _, seen := t.reads[docPath]; !seen {
			t.reads[docPath] = 0
		}
		return MissingSnapshot(docPath), nil
	}
	if _, seen := t.reads[docPath]; !seen {
		t.reads[docPath] = doc.rev
	}
	return NewSnapshot(docPath, doc.fields.clone()), nil
}

func (t *memTx) Set(docPath string, fields Fields, opts SetOptions) {
	t.buf.set(docPath, fields, opts)
}

func (t *memTx) NewDocPath(collection string) string {
	return Join(collection, NewID())
}

func (m *memory) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return retryConflicts(ctx, func() (bool, error) {
		tx := &memTx{m: m, reads: make(map[string]uint64)}
		if err := fn(ctx, tx); err != nil {
			return false, err
		}
		if tx.buf.err != nil {
			return false, tx.buf.err
		}
		err := m.commit(ctx, tx.reads, &tx.buf)
		if errors.Is(err, errStaleRead) {
			return true, nil
		}
		return false, err
	})
}

// commit validates the read set and applies buffered writes as one revision.
func (m *memory) commit(ctx context.Context, reads map[string]uint64, buf *writeBuffer) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	for p, rev := range reads {
		current := uint64(0)
		if doc, ok := m.docs[p]; ok {
			current = doc.rev
		}
		if current != rev {
			m.mu.Unlock()
			return errStaleRead
		}
	}
	if len(buf.writes) == 0 {
		m.mu.Unlock()
		return nil
	}

	m.rev++
	now := m.now()
	for _, w := range buf.writes {
		var existing Fields
		if doc, ok := m.docs[w.path]; ok {
			existing = doc.fields
		}
		m.docs[w.path] = &memDoc{fields: w.apply(existing, now), rev: m.rev}
		if m.collections[w.collection] == nil {
			m.collections[w.collection] = make(map[string]struct{})
		}
		m.collections[w.collection][w.id] = struct{}{}
	}
	m.mu.Unlock()

	m.hub.notify(ctx, m.load, buf.collections()...)
	return nil
}

// load returns the collection's documents ordered by id.
func (m *memory) load(ctx context.Context, collection string) ([]DocumentSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	ids := make([]string, 0, len(m.collections[collection]))
	for id := range m.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]DocumentSnapshot, 0, len(ids))
	for _, id := range ids {
		p := Join(collection, id)
		docs = append(docs, NewSnapshot(p, m.docs[p].fields.clone()))
	}
	return docs, nil
}

func (m *memory) Subscribe(ctx context.Context, collection string, onSnapshot func([]DocumentSnapshot), onError func(error)) (Unsubscribe, error) {
	if err := validatePath(collection); err != nil {
		return nil, err
	}
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	s := m.hub.add(collection, onSnapshot, onError)
	s.deliver(ctx, m.load)
	return m.hub.unsubscribe(s), nil
}

func (m *memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
