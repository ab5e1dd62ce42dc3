package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/metrics"
)

// Manager keys sessions by id and creates them on first use.
type Manager struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a Manager opening sessions with opts.
func NewManager(opts Options) *Manager {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics()
	}
	return &Manager{opts: opts, sessions: make(map[string]*Session)}
}

// Get returns the session for id, opening it when it does not exist. An empty
// id opens a session under a fresh id.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s, err := Open(ctx, id, m.opts)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s
	m.opts.Metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return s, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than maxIdle and returns how many it closed.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.opts.Metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.opts.Metrics.ActiveSessions.Set(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
