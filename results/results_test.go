package results

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-survey/model"
	"github.com/mbolis/quick-survey/session"
)

type storeMock struct {
	mock.Mock
}

func (m *storeMock) ListOwned(ctx context.Context, userID string) ([]model.Survey, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.Survey), args.Error(1)
}

func (m *storeMock) GetOwned(ctx context.Context, userID, id string) (model.Survey, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(model.Survey), args.Error(1)
}

func (m *storeMock) Update(ctx context.Context, userID, id string, patch model.SurveyPatch) (model.Survey, error) {
	args := m.Called(ctx, userID, id, patch)
	return args.Get(0).(model.Survey), args.Error(1)
}

func (m *storeMock) Delete(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

func loadedBoard(t *testing.T, store *storeMock) *Board {
	sess := session.NewRegistry().Acquire("u1", "ola")
	store.On("ListOwned", mock.Anything, "u1").Return([]model.Survey{
		{ID: "s2", Title: "Newer", IsActive: true},
		{ID: "s1", Title: "Older", IsActive: false},
	}, nil).Once()

	b := NewBoard(store, sess)
	require.NoError(t, b.Reload(context.Background()))
	return b
}

func TestBoard_Counts(t *testing.T) {
	b := loadedBoard(t, &storeMock{})
	assert.Equal(t, Counts{Total: 2, Active: 1}, b.Counts())
	assert.Equal(t, "s2", b.Surveys()[0].ID)
}

func isActivePatch(v bool) any {
	return mock.MatchedBy(func(p model.SurveyPatch) bool {
		return p.IsActive != nil && *p.IsActive == v && p.Title == nil
	})
}

func TestBoard_ToggleSettlesOnServerValue(t *testing.T) {
	store := &storeMock{}
	b := loadedBoard(t, store)

	store.On("Update", mock.Anything, "u1", "s1", isActivePatch(true)).
		Return(model.Survey{ID: "s1", Title: "Older", IsActive: true}, nil)

	s, err := b.Toggle(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, s.IsActive)
	assert.Equal(t, 2, b.Counts().Active)
}

func TestBoard_ToggleFailureRereads(t *testing.T) {
	store := &storeMock{}
	b := loadedBoard(t, store)

	store.On("Update", mock.Anything, "u1", "s2", isActivePatch(false)).
		Return(model.Survey{}, errors.New("timeout"))
	store.On("GetOwned", mock.Anything, "u1", "s2").
		Return(model.Survey{ID: "s2", Title: "Newer", IsActive: false}, nil)

	s, err := b.Toggle(context.Background(), "s2")
	assert.ErrorIs(t, err, ErrToggleFailed)
	assert.False(t, s.IsActive)
}

func TestBoard_ToggleFailureReverts(t *testing.T) {
	store := &storeMock{}
	b := loadedBoard(t, store)

	store.On("Update", mock.Anything, "u1", "s2", isActivePatch(false)).
		Return(model.Survey{}, errors.New("timeout"))
	store.On("GetOwned", mock.Anything, "u1", "s2").
		Return(model.Survey{}, errors.New("timeout"))

	s, err := b.Toggle(context.Background(), "s2")
	assert.ErrorIs(t, err, ErrToggleFailed)
	assert.True(t, s.IsActive)
	assert.Equal(t, 1, b.Counts().Active)
}

func TestBoard_Delete(t *testing.T) {
	store := &storeMock{}
	b := loadedBoard(t, store)
	ctx := context.Background()

	err := b.Delete(ctx, "s1", func(model.Survey) bool { return false })
	assert.ErrorIs(t, err, ErrDeleteNotConfirmed)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)

	store.On("Delete", mock.Anything, "u1", "s1").Return(nil)
	var asked string
	err = b.Delete(ctx, "s1", func(s model.Survey) bool { asked = s.Title; return true })
	require.NoError(t, err)
	assert.Equal(t, "Older", asked)
	assert.Equal(t, Counts{Total: 1, Active: 1}, b.Counts())

	assert.ErrorIs(t, b.Delete(ctx, "s1", nil), ErrSurveyNotFound)
}

func exportFixture() (model.Survey, []model.SurveyResponse) {
	s := model.Survey{
		Title: "Feedback",
		Questions: []model.Question{
			{ID: "q1", Type: model.TypeText, Title: "Name"},
			{ID: "q2", Type: model.TypeCheckbox, Title: "Topics", Options: []string{"A", "B"}},
			{ID: "q3", Type: model.TypeTextarea, Title: "Notes"},
		},
	}
	email := "ola@example.com"
	responses := []model.SurveyResponse{
		{
			Email:     &email,
			CreatedAt: time.Date(2026, 10, 15, 12, 30, 5, 0, time.UTC),
			Responses: model.Responses{
				"q1": model.Text(`Ola "Q"`),
				"q2": model.Choices("A", "B"),
			},
		},
		{
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Responses: model.Responses{"q3": model.Text("line")},
		},
	}
	return s, responses
}

func TestBuildTable(t *testing.T) {
	s, responses := exportFixture()
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)

	tbl := BuildTable(s, responses, warsaw)
	assert.Equal(t, []string{"Data wypełnienia", "Email", "Name", "Topics", "Notes"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	for _, row := range tbl.Rows {
		assert.Len(t, row, 2+len(s.Questions))
	}
	assert.Equal(t, []string{"15.10.2026, 14:30:05", "ola@example.com", `Ola "Q"`, "A, B", ""}, tbl.Rows[0])
	assert.Equal(t, []string{"02.01.2026, 04:04:05", "", "", "", "line"}, tbl.Rows[1])
}

func TestWriteCSV(t *testing.T) {
	s, responses := exportFixture()
	tbl := BuildTable(s, responses[:1], time.UTC)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))
	assert.Equal(t,
		`"Data wypełnienia","Email","Name","Topics","Notes"`+"\n"+
			`"15.10.2026, 12:30:05","ola@example.com","Ola ""Q""","A, B",""`,
		buf.String())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Feedback_odpowiedzi.csv", FileName(model.Survey{Title: "Feedback"}))
}
