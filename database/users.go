package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/mbolis/quick-survey/model"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenRejected      = errors.New("could not refresh")
)

// Users holds survey owners and their issued OAuth token ids.
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db}
}

func (r *Users) Create(ctx context.Context, username, password string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, errors.Wrap(err, "users.create.hash")
	}

	u := model.User{ID: newID(), Username: username}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, hash, formatTime(now()),
	)
	return u, errors.Wrap(err, "users.create")
}

func (r *Users) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	u := model.User{Username: username}
	var hash []byte
	err := r.db.
		QueryRowContext(ctx, "SELECT id, password_hash FROM users WHERE username = ?", username).
		Scan(&u.ID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrInvalidCredentials
	}
	if err != nil {
		return u, errors.Wrap(err, "users.authenticate")
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return u, ErrInvalidCredentials
	}
	return u, nil
}

func (r *Users) FindByUsername(ctx context.Context, username string) (model.User, error) {
	u := model.User{Username: username}
	err := r.db.
		QueryRowContext(ctx, "SELECT id FROM users WHERE username = ?", username).
		Scan(&u.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, errors.Wrap(err, "users.find")
}

func (r *Users) StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tokens (username, token_id, refresh_token_id, expiration)
		VALUES (?, ?, ?, ?)`,
		username, tokenID, refreshTokenID, formatTime(expiration),
	)
	return errors.Wrap(err, "users.store_token")
}

// ConsumeToken deletes a refresh pair and fails unless it existed and has
// not expired. Each refresh token can therefore be used once.
func (r *Users) ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string) error {
	var expiration sqlTime
	err := r.db.
		QueryRowContext(ctx, `
			DELETE FROM tokens
			WHERE username = ?
				AND token_id = ?
				AND refresh_token_id = ?
			RETURNING expiration`,
			username, tokenID, refreshTokenID,
		).
		Scan(&expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTokenRejected
	}
	if err != nil {
		return errors.Wrap(err, "users.consume_token")
	}

	if expiration.Before(now()) {
		return ErrTokenRejected
	}
	return nil
}

func (r *Users) RevokeTokens(ctx context.Context, username string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tokens WHERE username = ?", username)
	return errors.Wrap(err, "users.revoke_tokens")
}
