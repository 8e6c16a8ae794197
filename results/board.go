// Package results backs the owner dashboard and the responses viewer.
package results

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mbolis/quick-survey/model"
	"github.com/mbolis/quick-survey/session"
)

var (
	ErrSurveyNotFound     = errors.New("survey not on the dashboard")
	ErrDeleteNotConfirmed = errors.New("delete not confirmed")
	ErrToggleFailed       = errors.New("could not change survey status")
)

type Store interface {
	ListOwned(ctx context.Context, userID string) ([]model.Survey, error)
	GetOwned(ctx context.Context, userID, id string) (model.Survey, error)
	Update(ctx context.Context, userID, id string, patch model.SurveyPatch) (model.Survey, error)
	Delete(ctx context.Context, userID, id string) error
}

type Counts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// Board is the dashboard listing of one owner, newest first.
type Board struct {
	store  Store
	userID string

	mu      sync.Mutex
	surveys []model.Survey
}

func NewBoard(store Store, sess *session.Session) *Board {
	return &Board{store: store, userID: sess.UserID}
}

func (b *Board) Reload(ctx context.Context) error {
	surveys, err := b.store.ListOwned(ctx, b.userID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.surveys = surveys
	b.mu.Unlock()
	return nil
}

func (b *Board) Surveys() []model.Survey {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Survey{}, b.surveys...)
}

func (b *Board) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := Counts{Total: len(b.surveys)}
	for _, s := range b.surveys {
		if s.IsActive {
			c.Active++
		}
	}
	return c
}

func (b *Board) indexOf(id string) int {
	for i, s := range b.surveys {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Toggle flips the active flag locally, persists it and settles on what the
// store reports. When the write fails the row is read back; only if that
// fails too is the local flip reverted.
func (b *Board) Toggle(ctx context.Context, id string) (model.Survey, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(id)
	if i < 0 {
		return model.Survey{}, ErrSurveyNotFound
	}
	want := !b.surveys[i].IsActive
	b.surveys[i].IsActive = want

	updated, err := b.store.Update(ctx, b.userID, id, model.SurveyPatch{IsActive: &want})
	if err == nil {
		b.surveys[i] = updated
		return updated, nil
	}

	if fresh, gerr := b.store.GetOwned(ctx, b.userID, id); gerr == nil {
		b.surveys[i] = fresh
	} else {
		b.surveys[i].IsActive = !want
	}
	return b.surveys[i], fmt.Errorf("%w: %w", ErrToggleFailed, err)
}

// Delete removes a survey and its responses for good, once confirm agrees.
func (b *Board) Delete(ctx context.Context, id string, confirm func(model.Survey) bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(id)
	if i < 0 {
		return ErrSurveyNotFound
	}
	if confirm == nil || !confirm(b.surveys[i]) {
		return ErrDeleteNotConfirmed
	}
	if err := b.store.Delete(ctx, b.userID, id); err != nil {
		return err
	}
	b.surveys = append(b.surveys[:i:i], b.surveys[i+1:]...)
	return nil
}
