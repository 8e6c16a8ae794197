package database

import (
	"context"
	"database/sql"

	"github.com/mbolis/quick-survey/model"
	"github.com/pkg/errors"
)

// Integrations keeps one MailerLite credential per user.
type Integrations struct {
	db *sql.DB
}

func NewIntegrations(db *sql.DB) *Integrations {
	return &Integrations{db}
}

func (r *Integrations) Get(ctx context.Context, userID string) (model.UserIntegration, error) {
	in := model.UserIntegration{UserID: userID}
	var updated sqlTime
	err := r.db.QueryRowContext(ctx, `
		SELECT mailerlite_token, updated_at
		FROM user_integrations
		WHERE user_id = ?`,
		userID,
	).Scan(&in.MailerLiteToken, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return in, ErrNotFound
	}
	in.UpdatedAt = updated.Time
	return in, errors.Wrap(err, "integrations.get")
}

// Token returns the stored credential, or "" when none was saved.
func (r *Integrations) Token(ctx context.Context, userID string) (string, error) {
	in, err := r.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return in.MailerLiteToken, err
}

func (r *Integrations) Upsert(ctx context.Context, userID, token string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_integrations (user_id, mailerlite_token, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			mailerlite_token = excluded.mailerlite_token,
			updated_at = excluded.updated_at`,
		userID, token, formatTime(now()),
	)
	return errors.Wrap(err, "integrations.upsert")
}
