package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lifecycle(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Lookup("u1")
	assert.ErrorIs(t, err, ErrNoSession)

	s := reg.Acquire("u1", "ola")
	assert.Same(t, s, reg.Acquire("u1", "ola"))

	got, err := reg.Lookup("u1")
	require.NoError(t, err)
	assert.Same(t, s, got)

	reg.Invalidate("u1")
	_, err = reg.Lookup("u1")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, s.Valid())

	ctx := NewContext(context.Background(), s)
	_, err = FromContext(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSession_ValueDroppedOnInvalidate(t *testing.T) {
	reg := NewRegistry()
	s := reg.Acquire("u1", "ola")

	calls := 0
	init := func() any { calls++; return &calls }

	first := s.Value("k", init)
	second := s.Value("k", init)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	reg.Invalidate("u1")
	fresh := reg.Acquire("u1", "ola")
	fresh.Value("k", init)
	assert.Equal(t, 2, calls)
}

func TestFromContext_Missing(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}
