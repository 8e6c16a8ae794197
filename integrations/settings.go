// Package integrations holds the owner's MailerLite credential while it is
// being edited, tested and saved.
package integrations

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mbolis/quick-survey/mailerlite"
)

var (
	ErrTokenRequired = errors.New("api token is required")
	ErrNotVerified   = errors.New("test the connection before saving")
)

type Store interface {
	Token(ctx context.Context, userID string) (string, error)
	Upsert(ctx context.Context, userID, token string) error
}

type GroupLister interface {
	Groups(ctx context.Context, token string) ([]mailerlite.Group, error)
}

// Settings is the integration form of one owner. A token can only be saved
// after a successful connection test with that exact value.
type Settings struct {
	mu       sync.Mutex
	token    string
	verified bool
	groups   []mailerlite.Group
}

type View struct {
	Configured bool               `json:"configured"`
	Verified   bool               `json:"verified"`
	Groups     []mailerlite.Group `json:"groups,omitempty"`
}

// Load reads the stored token. A stored token counts as tested.
func (s *Settings) Load(ctx context.Context, store Store, userID string) error {
	token, err := store.Token(ctx, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.verified = token != ""
	s.groups = nil
	return nil
}

func (s *Settings) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.token {
		s.token = token
		s.verified = false
		s.groups = nil
	}
}

// Test lists the groups with the current token.
func (s *Settings) Test(ctx context.Context, lister GroupLister) ([]mailerlite.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := strings.TrimSpace(s.token)
	if token == "" {
		return nil, ErrTokenRequired
	}
	groups, err := lister.Groups(ctx, token)
	if err != nil {
		s.verified = false
		return nil, err
	}
	s.verified = true
	s.groups = groups
	return groups, nil
}

func (s *Settings) Save(ctx context.Context, store Store, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := strings.TrimSpace(s.token)
	if token == "" {
		return ErrTokenRequired
	}
	if !s.verified {
		return ErrNotVerified
	}
	return store.Upsert(ctx, userID, token)
}

func (s *Settings) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		Configured: strings.TrimSpace(s.token) != "",
		Verified:   s.verified,
		Groups:     s.groups,
	}
}
