package docstore

import (
	"context"
	"sync"
	"sync/atomic"
)

// loadFunc reads the full contents of a collection.
type loadFunc func(ctx context.Context, collection string) ([]DocumentSnapshot, error)

// hub tracks collection subscriptions for a backend.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[uint64]*subscription
	next uint64
}

type subscription struct {
	id         uint64
	collection string
	onSnapshot func([]DocumentSnapshot)
	onError    func(error)
	active     atomic.Bool

	// deliver holds mu across load and callback so deliveries never go backwards.
	mu sync.Mutex
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[uint64]*subscription)}
}

func (h *hub) add(collection string, onSnapshot func([]DocumentSnapshot), onError func(error)) *subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	s := &subscription{
		id:         h.next,
		collection: collection,
		onSnapshot: onSnapshot,
		onError:    onError,
	}
	s.active.Store(true)
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[uint64]*subscription)
	}
	h.subs[collection][s.id] = s
	return s
}

func (h *hub) remove(s *subscription) {
	s.active.Store(false)

	h.mu.Lock()
	defer h.mu.Unlock()
	if byID, ok := h.subs[s.collection]; ok {
		delete(byID, s.id)
		if len(byID) == 0 {
			delete(h.subs, s.collection)
		}
	}
}

func (h *hub) forCollection(collection string) []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*subscription, 0, len(h.subs[collection]))
	for _, s := range h.subs[collection] {
		out = append(out, s)
	}
	return out
}

func (h *hub) all() []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*subscription
	for _, byID := range h.subs {
		for _, s := range byID {
			out = append(out, s)
		}
	}
	return out
}

// notify redelivers every changed collection to its subscribers.
func (h *hub) notify(ctx context.Context, load loadFunc, collections ...string) {
	for _, c := range collections {
		for _, s := range h.forCollection(c) {
			s.deliver(ctx, load)
		}
	}
}

// fail reports err to every subscriber without removing them.
func (h *hub) fail(err error) {
	for _, s := range h.all() {
		s.fail(err)
	}
}

func (h *hub) unsubscribe(s *subscription) Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() { h.remove(s) })
	}
}

func (s *subscription) deliver(ctx context.Context, load loadFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active.Load() {
		return
	}
	docs, err := load(ctx, s.collection)
	if err != nil {
		if s.onError != nil {
			s.onError(err)
		}
		return
	}
	if s.active.Load() {
		s.onSnapshot(docs)
	}
}

func (s *subscription) fail(err error) {
	if s.active.Load() && s.onError != nil {
		s.onError(err)
	}
}
