package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mbolis/quick-survey/model"
	"github.com/pkg/errors"
)

const responseColumns = `id, survey_id, responses, email, name,
	mailerlite_synced, created_at, updated_at`

type Responses struct {
	db *sql.DB
}

func NewResponses(db *sql.DB) *Responses {
	return &Responses{db}
}

func scanResponse(row rowScanner) (r model.SurveyResponse, err error) {
	var answers string
	var email, name sql.NullString
	var created, updated sqlTime
	err = row.Scan(
		&r.ID, &r.SurveyID, &answers, &email, &name,
		&r.MailerLiteSynced, &created, &updated,
	)
	if err != nil {
		return
	}
	r.CreatedAt, r.UpdatedAt = created.Time, updated.Time
	if email.Valid {
		r.Email = &email.String
	}
	if name.Valid {
		r.Name = &name.String
	}

	r.Responses = model.Responses{}
	if err = json.Unmarshal([]byte(answers), &r.Responses); err != nil {
		err = errors.Wrap(err, "responses.parse_answers")
	}
	return
}

// Insert records one submission against an active survey. The row always
// starts out unsynced.
func (r *Responses) Insert(ctx context.Context, resp *model.SurveyResponse) error {
	answers, err := json.Marshal(resp.Responses)
	if err != nil {
		return errors.Wrap(err, "responses.insert.answers")
	}

	var email sql.NullString
	if resp.Email != nil {
		email = sql.NullString{String: *resp.Email, Valid: true}
	}

	id := newID()
	created := now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO survey_responses (id, survey_id, responses, email, mailerlite_synced, created_at, updated_at)
		SELECT ?, s.id, ?, ?, 0, ?, ?
		FROM surveys s
		WHERE s.id = ? AND s.is_active = 1`,
		id, string(answers), email, formatTime(created), formatTime(created), resp.SurveyID,
	)
	if err != nil {
		return errors.Wrap(err, "responses.insert")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "responses.insert.verify")
	}
	if n < 1 {
		return ErrNotFound
	}

	resp.ID = id
	resp.MailerLiteSynced = false
	resp.CreatedAt, resp.UpdatedAt = created, created
	return nil
}

func (r *Responses) Get(ctx context.Context, id string) (model.SurveyResponse, error) {
	resp, err := scanResponse(r.db.QueryRowContext(ctx, `
		SELECT `+responseColumns+`
		FROM survey_responses
		WHERE id = ?`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return resp, ErrNotFound
	}
	return resp, errors.Wrap(err, "responses.get")
}

// ListForSurvey returns the responses of a survey owned by userID, newest first.
func (r *Responses) ListForSurvey(ctx context.Context, userID, surveyID string) ([]model.SurveyResponse, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.survey_id, r.responses, r.email, r.name,
			r.mailerlite_synced, r.created_at, r.updated_at
		FROM survey_responses r
		INNER JOIN surveys s ON (s.id = r.survey_id)
		WHERE r.survey_id = ? AND s.user_id = ?
		ORDER BY r.created_at DESC`,
		surveyID, userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "responses.list")
	}
	defer rows.Close()

	responses := []model.SurveyResponse{}
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, errors.Wrap(err, "responses.list.scan")
		}
		responses = append(responses, resp)
	}
	return responses, errors.Wrap(rows.Err(), "responses.list.rows")
}

func (r *Responses) Summary(ctx context.Context, userID, surveyID string) (sum model.ResponseSummary, err error) {
	var latest sql.NullString
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(r.id), COUNT(NULLIF(r.email, '')), MAX(r.created_at)
		FROM survey_responses r
		INNER JOIN surveys s ON (s.id = r.survey_id)
		WHERE r.survey_id = ? AND s.user_id = ?`,
		surveyID, userID,
	).Scan(&sum.Total, &sum.WithEmail, &latest)
	if err != nil {
		err = errors.Wrap(err, "responses.summary")
		return
	}
	if latest.Valid {
		var t sqlTime
		if err = t.Scan(latest.String); err != nil {
			err = errors.Wrap(err, "responses.summary.latest")
			return
		}
		sum.Latest = &t.Time
	}
	return
}

// AttachContact stores the contact name and email once. When the row
// already carries contact info it is returned untouched, so repeating the
// call is harmless.
func (r *Responses) AttachContact(ctx context.Context, id, name, email string) (model.SurveyResponse, error) {
	resp, err := scanResponse(r.db.QueryRowContext(ctx, `
		UPDATE survey_responses
		SET name = ?, email = ?, updated_at = ?
		WHERE id = ? AND name IS NULL
		RETURNING `+responseColumns,
		name, email, formatTime(now()), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return r.Get(ctx, id)
	}
	return resp, errors.Wrap(err, "responses.attach_contact")
}

func (r *Responses) MarkSynced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE survey_responses
		SET mailerlite_synced = 1, updated_at = ?
		WHERE id = ?`,
		formatTime(now()), id,
	)
	if err != nil {
		return errors.Wrap(err, "responses.mark_synced")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "responses.mark_synced.verify")
	}
	if n < 1 {
		return ErrNotFound
	}
	return nil
}
