package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/mbolis/quick-survey/model"
	"github.com/pkg/errors"
)

const surveyColumns = `id, user_id, title, description, questions, settings,
	mailerlite_group_id, is_active, created_at, updated_at`

// Surveys stores survey documents. Owner-scoped methods take the owner's
// user id explicitly.
type Surveys struct {
	db *sql.DB
}

func NewSurveys(db *sql.DB) *Surveys {
	return &Surveys{db}
}

func scanSurvey(row rowScanner) (s model.Survey, err error) {
	var questions, settings string
	var created, updated sqlTime
	err = row.Scan(
		&s.ID, &s.UserID, &s.Title, &s.Description, &questions, &settings,
		&s.MailerLiteGroupID, &s.IsActive, &created, &updated,
	)
	if err != nil {
		return
	}
	s.CreatedAt, s.UpdatedAt = created.Time, updated.Time

	if err = json.Unmarshal([]byte(questions), &s.Questions); err != nil {
		err = errors.Wrap(err, "surveys.parse_questions")
		return
	}
	if settings != "" {
		if err = json.Unmarshal([]byte(settings), &s.Settings); err != nil {
			err = errors.Wrap(err, "surveys.parse_settings")
		}
	}
	return
}

func (r *Surveys) Create(ctx context.Context, s *model.Survey) error {
	questions, err := json.Marshal(s.Questions)
	if err != nil {
		return errors.Wrap(err, "surveys.create.questions")
	}
	settings, err := json.Marshal(s.Settings)
	if err != nil {
		return errors.Wrap(err, "surveys.create.settings")
	}

	s.ID = newID()
	s.CreatedAt = now().UTC()
	s.UpdatedAt = s.CreatedAt
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO surveys (`+surveyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Title, s.Description, string(questions), string(settings),
		s.MailerLiteGroupID, s.IsActive, formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	return errors.Wrap(err, "surveys.create")
}

func (r *Surveys) GetOwned(ctx context.Context, userID, id string) (model.Survey, error) {
	s, err := scanSurvey(r.db.QueryRowContext(ctx, `
		SELECT `+surveyColumns+`
		FROM surveys
		WHERE id = ? AND user_id = ?`,
		id, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, errors.Wrap(err, "surveys.get_owned")
}

// GetActive reads a survey for respondents: no owner filter, active only.
func (r *Surveys) GetActive(ctx context.Context, id string) (model.Survey, error) {
	s, err := scanSurvey(r.db.QueryRowContext(ctx, `
		SELECT `+surveyColumns+`
		FROM surveys
		WHERE id = ? AND is_active = 1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, errors.Wrap(err, "surveys.get_active")
}

// ListOwned returns the owner's surveys, newest first.
func (r *Surveys) ListOwned(ctx context.Context, userID string) ([]model.Survey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+surveyColumns+`
		FROM surveys
		WHERE user_id = ?
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "surveys.list")
	}
	defer rows.Close()

	surveys := []model.Survey{}
	for rows.Next() {
		s, err := scanSurvey(rows)
		if err != nil {
			return nil, errors.Wrap(err, "surveys.list.scan")
		}
		surveys = append(surveys, s)
	}
	return surveys, errors.Wrap(rows.Err(), "surveys.list.rows")
}

// Update applies patch in a single statement and returns the stored row.
func (r *Surveys) Update(ctx context.Context, userID, id string, patch model.SurveyPatch) (model.Survey, error) {
	if patch.Empty() {
		return r.GetOwned(ctx, userID, id)
	}

	var sets []string
	var args []any
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Questions != nil {
		questions, err := json.Marshal(*patch.Questions)
		if err != nil {
			return model.Survey{}, errors.Wrap(err, "surveys.update.questions")
		}
		sets = append(sets, "questions = ?")
		args = append(args, string(questions))
	}
	if patch.Settings != nil {
		settings, err := json.Marshal(*patch.Settings)
		if err != nil {
			return model.Survey{}, errors.Wrap(err, "surveys.update.settings")
		}
		sets = append(sets, "settings = ?")
		args = append(args, string(settings))
	}
	if patch.MailerLiteGroupID != nil {
		sets = append(sets, "mailerlite_group_id = ?")
		args = append(args, *patch.MailerLiteGroupID)
	}
	if patch.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *patch.IsActive)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(now()), id, userID)

	s, err := scanSurvey(r.db.QueryRowContext(ctx, `
		UPDATE surveys
		SET `+strings.Join(sets, ", ")+`
		WHERE id = ? AND user_id = ?
		RETURNING `+surveyColumns,
		args...,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, errors.Wrap(err, "surveys.update")
}

func (r *Surveys) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM surveys
		WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return errors.Wrap(err, "surveys.delete")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "surveys.delete.verify")
	}
	if n < 1 {
		return ErrNotFound
	}
	return nil
}
