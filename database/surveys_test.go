package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mbolis/quick-survey/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var surveyRowColumns = []string{
	"id", "user_id", "title", "description", "questions", "settings",
	"mailerlite_group_id", "is_active", "created_at", "updated_at",
}

func fixedNow(t *testing.T) time.Time {
	t.Helper()
	ts := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	prev := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = prev })
	return ts
}

func TestSurveys_GetActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSurveys(db)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		rows := sqlmock.NewRows(surveyRowColumns).
			AddRow("s1", "u1", "Feedback", "", `[{"id":"q1","type":"text","title":"Name","required":true}]`, `{}`,
				"g1", true, "2026-10-15 10:00:00.000000000", "2026-10-15 10:00:00.000000000")
		mock.ExpectQuery(`SELECT .+ FROM surveys WHERE id = \? AND is_active = 1`).
			WithArgs("s1").
			WillReturnRows(rows)

		s, err := repo.GetActive(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "Feedback", s.Title)
		assert.Equal(t, "g1", s.MailerLiteGroupID)
		require.Len(t, s.Questions, 1)
		assert.Equal(t, model.TypeText, s.Questions[0].Type)
		assert.True(t, s.Questions[0].Required)
		assert.Equal(t, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC), s.CreatedAt)
	})

	t.Run("InactiveIsNotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM surveys WHERE id = \? AND is_active = 1`).
			WithArgs("s2").
			WillReturnRows(sqlmock.NewRows(surveyRowColumns))

		_, err := repo.GetActive(ctx, "s2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveys_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := fixedNow(t)
	repo := NewSurveys(db)

	s := model.Survey{
		UserID:    "u1",
		Title:     "Feedback",
		Questions: []model.Question{{ID: "q1", Type: model.TypeText, Title: "Name"}},
		IsActive:  true,
	}
	mock.ExpectExec(`INSERT INTO surveys`).
		WithArgs(sqlmock.AnyArg(), "u1", "Feedback", "",
			`[{"id":"q1","type":"text","title":"Name","required":false}]`, `{}`,
			"", true, "2026-10-15 12:00:00.000000000", "2026-10-15 12:00:00.000000000").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), &s))
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, ts, s.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveys_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fixedNow(t)
	repo := NewSurveys(db)
	ctx := context.Background()

	t.Run("SingleStatementWithReturning", func(t *testing.T) {
		active := false
		rows := sqlmock.NewRows(surveyRowColumns).
			AddRow("s1", "u1", "Feedback", "", `[]`, `{}`, "", false,
				"2026-10-15 10:00:00.000000000", "2026-10-15 12:00:00.000000000")
		mock.ExpectQuery(`UPDATE surveys SET is_active = \?, updated_at = \? WHERE id = \? AND user_id = \? RETURNING .+`).
			WithArgs(false, "2026-10-15 12:00:00.000000000", "s1", "u1").
			WillReturnRows(rows)

		s, err := repo.Update(ctx, "u1", "s1", model.SurveyPatch{IsActive: &active})
		require.NoError(t, err)
		assert.False(t, s.IsActive)
	})

	t.Run("OtherOwnerIsNotFound", func(t *testing.T) {
		title := "x"
		mock.ExpectQuery(`UPDATE surveys SET title = \?, updated_at = \?`).
			WithArgs("x", sqlmock.AnyArg(), "s1", "intruder").
			WillReturnRows(sqlmock.NewRows(surveyRowColumns))

		_, err := repo.Update(ctx, "intruder", "s1", model.SurveyPatch{Title: &title})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DriverErrorIsWrapped", func(t *testing.T) {
		title := "x"
		boom := errors.New("disk I/O error")
		mock.ExpectQuery(`UPDATE surveys`).WillReturnError(boom)

		_, err := repo.Update(ctx, "u1", "s1", model.SurveyPatch{Title: &title})
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "surveys.update")
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveys_ListOwnedNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows(surveyRowColumns).
		AddRow("s2", "u1", "Second", "", `[]`, `{}`, "", true, "2026-10-15 11:00:00.000000000", "2026-10-15 11:00:00.000000000").
		AddRow("s1", "u1", "First", "", `[]`, `{}`, "", false, "2026-10-15 10:00:00.000000000", "2026-10-15 10:00:00.000000000")
	mock.ExpectQuery(`SELECT .+ FROM surveys WHERE user_id = \? ORDER BY created_at DESC`).
		WithArgs("u1").
		WillReturnRows(rows)

	surveys, err := NewSurveys(db).ListOwned(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, surveys, 2)
	assert.Equal(t, "s2", surveys[0].ID)
	assert.Equal(t, "s1", surveys[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSurveys_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSurveys(db)

	mock.ExpectExec(`DELETE FROM surveys WHERE id = \? AND user_id = \?`).
		WithArgs("s1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM surveys`).
		WithArgs("s1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), "u1", "s1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "u2", "s1"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
