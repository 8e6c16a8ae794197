// Package session tracks signed-in survey owners. A Session is acquired at
// sign-in and invalidated at sign-out; owner-scoped code receives it
// explicitly through the request context.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNoSession = errors.New("no active session")

type Session struct {
	UserID     string
	Username   string
	AcquiredAt time.Time

	mu     sync.Mutex
	values map[string]any
	closed bool
}

// Value returns the per-session state stored under key, creating it with
// init on first use. State is dropped when the session is invalidated.
func (s *Session) Value(key string, init func() any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key]; ok {
		return v
	}
	v := init()
	if !s.closed {
		if s.values == nil {
			s.values = map[string]any{}
		}
		s.values[key] = v
	}
	return v
}

func (s *Session) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.values = nil
	s.mu.Unlock()
}

// Registry holds one session per user.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}, now: time.Now}
}

// Acquire returns the user's live session, starting one if needed.
func (r *Registry) Acquire(userID, username string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		return s
	}
	s := &Session{UserID: userID, Username: username, AcquiredAt: r.now()}
	r.sessions[userID] = s
	return s
}

func (r *Registry) Lookup(userID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

func (r *Registry) Invalidate(userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		s.close()
	}
}

type contextKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	if !ok || s == nil || !s.Valid() {
		return nil, ErrNoSession
	}
	return s, nil
}
