package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mbolis/quick-survey/mailerlite"
)

// ErrIntegrationNotConfigured means the owner has no stored MailerLite
// token, so there is nothing to pick a group from.
var ErrIntegrationNotConfigured = errors.New("mailerlite integration not configured")

type TokenSource interface {
	Token(ctx context.Context, userID string) (string, error)
}

type GroupLister interface {
	Groups(ctx context.Context, token string) ([]mailerlite.Group, error)
}

// GroupCatalog fetches the owner's MailerLite groups once per editing
// session. Failures are not remembered.
type GroupCatalog struct {
	tokens TokenSource
	lister GroupLister
	userID string

	mu     sync.Mutex
	loaded bool
	groups []mailerlite.Group
}

func NewGroupCatalog(tokens TokenSource, lister GroupLister, userID string) *GroupCatalog {
	return &GroupCatalog{tokens: tokens, lister: lister, userID: userID}
}

func (c *GroupCatalog) Groups(ctx context.Context) ([]mailerlite.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.groups, nil
	}

	token, err := c.tokens.Token(ctx, c.userID)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrIntegrationNotConfigured
	}

	groups, err := c.lister.Groups(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	c.groups, c.loaded = groups, true
	return groups, nil
}

// Groups of the draft's owner, or ErrIntegrationNotConfigured.
func (d *Draft) Groups(ctx context.Context) ([]mailerlite.Group, error) {
	if d.catalog == nil {
		return nil, ErrIntegrationNotConfigured
	}
	return d.catalog.Groups(ctx)
}
