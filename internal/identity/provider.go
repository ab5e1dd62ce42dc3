// Package identity supplies the signed-in user to the feed core and resolves
// users against the RegistryAccord identity service.
package identity

import "sync"

// Provider reports the current user and notifies listeners when it changes.
// An empty user id means nobody is signed in.
type Provider interface {
	CurrentUserID() (string, bool)
	OnAuthStateChange(fn func(userID string)) (unsubscribe func())
}

// Session is an in-process Provider whose user is set explicitly.
type Session struct {
	mu        sync.Mutex
	userID    string
	listeners map[int]func(string)
	next      int
}

// NewSession returns a signed-out session.
func NewSession() *Session {
	return &Session{listeners: make(map[int]func(string))}
}

func (s *Session) CurrentUserID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userID != ""
}

// OnAuthStateChange registers fn. It is not called for the current state.
func (s *Session) OnAuthStateChange(fn func(userID string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// SignIn makes userID the current user. An empty id signs out.
func (s *Session) SignIn(userID string) {
	s.mu.Lock()
	if s.userID == userID {
		s.mu.Unlock()
		return
	}
	s.userID = userID
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	// Listeners run outside the lock so they may query the session.
	for _, fn := range fns {
		fn(userID)
	}
}

// SignOut clears the current user.
func (s *Session) SignOut() { s.SignIn("") }
