package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-survey/mailerlite"
	"github.com/mbolis/quick-survey/model"
	"github.com/mbolis/quick-survey/session"
)

type storeMock struct {
	mock.Mock
}

func (m *storeMock) Create(ctx context.Context, s *model.Survey) error {
	args := m.Called(ctx, s)
	if args.Error(0) == nil {
		s.ID = "s1"
	}
	return args.Error(0)
}

func (m *storeMock) GetOwned(ctx context.Context, userID, id string) (model.Survey, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(model.Survey), args.Error(1)
}

func (m *storeMock) Update(ctx context.Context, userID, id string, patch model.SurveyPatch) (model.Survey, error) {
	args := m.Called(ctx, userID, id, patch)
	return args.Get(0).(model.Survey), args.Error(1)
}

func owner() *session.Session {
	return session.NewRegistry().Acquire("u1", "ola")
}

func fixedClock(d *Draft) {
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	d.clock = func() time.Time { return at }
}

func TestAddQuestion_Defaults(t *testing.T) {
	d := New(nil)
	fixedClock(d)

	q1 := d.AddQuestion()
	q2 := d.AddQuestion()

	assert.Equal(t, model.TypeText, q1.Type)
	assert.False(t, q1.Required)
	assert.Empty(t, q1.Title)
	assert.Nil(t, q1.Options)
	assert.NotEqual(t, q1.ID, q2.ID)
	assert.Len(t, d.View().Questions, 2)
}

func TestUpdateQuestion_TypeChangeResetsOptions(t *testing.T) {
	d := New(nil)
	q := d.AddQuestion()

	radio := model.TypeRadio
	got, err := d.UpdateQuestion(q.ID, QuestionPatch{Type: &radio})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, got.Options)

	opts := []string{"A", "B"}
	got, err = d.UpdateQuestion(q.ID, QuestionPatch{Options: &opts})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, got.Options)

	email := model.TypeEmail
	got, err = d.UpdateQuestion(q.ID, QuestionPatch{Type: &email})
	require.NoError(t, err)
	assert.Nil(t, got.Options)

	_, err = d.UpdateQuestion(q.ID, QuestionPatch{Options: &opts})
	assert.ErrorIs(t, err, ErrNotOptionType)

	bogus := model.QuestionType("slider")
	_, err = d.UpdateQuestion(q.ID, QuestionPatch{Type: &bogus})
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = d.UpdateQuestion("missing", QuestionPatch{})
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestOptions(t *testing.T) {
	d := New(nil)
	q := d.AddQuestion()
	checkbox := model.TypeCheckbox
	_, err := d.UpdateQuestion(q.ID, QuestionPatch{Type: &checkbox})
	require.NoError(t, err)

	_, err = d.UpdateOption(q.ID, 0, "Red")
	require.NoError(t, err)
	_, err = d.AddOption(q.ID)
	require.NoError(t, err)
	got, err := d.UpdateOption(q.ID, 1, "Blue")
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Blue"}, got.Options)

	_, err = d.UpdateOption(q.ID, 2, "Green")
	assert.ErrorIs(t, err, ErrOptionIndex)

	got, err = d.RemoveOption(q.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Blue"}, got.Options)

	_, err = d.RemoveOption(q.ID, -1)
	assert.ErrorIs(t, err, ErrOptionIndex)
}

func TestRemoveQuestion(t *testing.T) {
	d := New(nil)
	q1 := d.AddQuestion()
	q2 := d.AddQuestion()

	require.NoError(t, d.RemoveQuestion(q1.ID))
	qs := d.View().Questions
	require.Len(t, qs, 1)
	assert.Equal(t, q2.ID, qs[0].ID)

	assert.ErrorIs(t, d.RemoveQuestion(q1.ID), ErrQuestionNotFound)
}

func TestValidate_Order(t *testing.T) {
	d := New(nil)
	assert.ErrorIs(t, d.Validate(), ErrTitleRequired)

	title := "  "
	d.SetMeta(Meta{Title: &title})
	assert.ErrorIs(t, d.Validate(), ErrTitleRequired)

	title = "Feedback"
	d.SetMeta(Meta{Title: &title})
	assert.ErrorIs(t, d.Validate(), ErrNoQuestions)

	q1 := d.AddQuestion()
	d.AddQuestion()
	qt := "Name"
	_, err := d.UpdateQuestion(q1.ID, QuestionPatch{Title: &qt})
	require.NoError(t, err)

	err = d.Validate()
	require.ErrorIs(t, err, ErrQuestionTitleRequired)
	var qerr *QuestionError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, 1, qerr.Index)
}

func newValidDraft(t *testing.T) *Draft {
	d := New(nil)
	title, desc := "  Feedback ", " About us "
	d.SetMeta(Meta{Title: &title, Description: &desc})
	q := d.AddQuestion()
	qt := "Name"
	_, err := d.UpdateQuestion(q.ID, QuestionPatch{Title: &qt})
	require.NoError(t, err)
	return d
}

func TestSave_CreatesThenUpdates(t *testing.T) {
	store := &storeMock{}
	d := newValidDraft(t)
	ctx := context.Background()

	store.On("Create", ctx, mock.MatchedBy(func(s *model.Survey) bool {
		return s.UserID == "u1" && s.Title == "Feedback" && s.Description == "About us" && s.IsActive
	})).Return(nil).Once()

	s, err := d.Save(ctx, store, owner())
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "s1", d.View().SurveyID)

	store.On("Update", ctx, "u1", "s1", mock.MatchedBy(func(p model.SurveyPatch) bool {
		return p.Title != nil && *p.Title == "Feedback" && p.Questions != nil && len(*p.Questions) == 1
	})).Return(model.Survey{ID: "s1", Title: "Feedback"}, nil).Once()

	_, err = d.Save(ctx, store, owner())
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestSave_InvalidDoesNotWrite(t *testing.T) {
	store := &storeMock{}
	d := New(nil)

	_, err := d.Save(context.Background(), store, owner())
	assert.ErrorIs(t, err, ErrTitleRequired)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSave_FailureKeepsDraft(t *testing.T) {
	store := &storeMock{}
	d := newValidDraft(t)
	before := d.View()

	boom := errors.New("disk full")
	store.On("Create", mock.Anything, mock.Anything).Return(boom)

	_, err := d.Save(context.Background(), store, owner())
	assert.ErrorIs(t, err, ErrSaveFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, d.View())
}

func TestLoad(t *testing.T) {
	store := &storeMock{}
	ctx := context.Background()
	store.On("GetOwned", ctx, "u1", "s1").Return(model.Survey{
		ID:    "s1",
		Title: "Feedback",
		Questions: []model.Question{
			{ID: "1", Type: model.TypeRadio, Title: "Pick", Options: []string{"A"}},
		},
		MailerLiteGroupID: "g1",
	}, nil)

	d, err := Load(ctx, store, owner(), "s1", nil)
	require.NoError(t, err)

	v := d.View()
	assert.Equal(t, "s1", v.SurveyID)
	assert.Equal(t, "g1", v.MailerLiteGroupID)
	require.Len(t, v.Questions, 1)

	q := d.AddQuestion()
	assert.NotEqual(t, model.QuestionID("1"), q.ID)
}

type tokensStub map[string]string

func (ts tokensStub) Token(_ context.Context, userID string) (string, error) {
	return ts[userID], nil
}

type listerStub struct {
	calls  int
	err    error
	groups []mailerlite.Group
}

func (l *listerStub) Groups(_ context.Context, token string) ([]mailerlite.Group, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.groups, nil
}

func TestGroups_NotConfigured(t *testing.T) {
	lister := &listerStub{}
	d := New(NewGroupCatalog(tokensStub{}, lister, "u1"))

	_, err := d.Groups(context.Background())
	assert.ErrorIs(t, err, ErrIntegrationNotConfigured)
	assert.Zero(t, lister.calls)

	_, err = New(nil).Groups(context.Background())
	assert.ErrorIs(t, err, ErrIntegrationNotConfigured)
}

func TestGroups_CachedAfterSuccess(t *testing.T) {
	lister := &listerStub{err: errors.New("timeout")}
	c := NewGroupCatalog(tokensStub{"u1": "tok"}, lister, "u1")
	ctx := context.Background()

	_, err := c.Groups(ctx)
	assert.Error(t, err)

	lister.err = nil
	lister.groups = []mailerlite.Group{{ID: "g1", Name: "Newsletter"}}
	gs, err := c.Groups(ctx)
	require.NoError(t, err)
	assert.Len(t, gs, 1)

	_, err = c.Groups(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls)
}

func TestDrafts(t *testing.T) {
	ds := NewDrafts()
	d := New(nil)
	id := ds.Add(d)

	got, err := ds.Get(id)
	require.NoError(t, err)
	assert.Same(t, d, got)

	ds.Remove(id)
	_, err = ds.Get(id)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}
