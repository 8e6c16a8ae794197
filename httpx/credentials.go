package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/oauth"

	"github.com/mbolis/quick-survey/config"
	"github.com/mbolis/quick-survey/database"
	"github.com/mbolis/quick-survey/log"
	"github.com/mbolis/quick-survey/session"
)

const (
	ClaimUserID   = "user_id"
	ClaimUsername = "username"
	ClaimRoles    = "roles"

	RoleOwner = "owner"

	refreshTTL = 8760 * time.Hour
)

type credentialsVerifier struct {
	users    *database.Users
	sessions *session.Registry
}

func CredentialsVerifier(users *database.Users, sessions *session.Registry) oauth.CredentialsVerifier {
	return &credentialsVerifier{users, sessions}
}

// NewBearerServer issues owner tokens through the password and refresh
// grants.
func NewBearerServer(users *database.Users, sessions *session.Registry, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, CredentialsVerifier(users, sessions), nil)
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	_, err := cs.users.Authenticate(r.Context(), username, password)
	if errors.Is(err, database.ErrInvalidCredentials) {
		log.Debugf("login: rejected %q", username)
	}
	return err
}
func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return cs.users.StoreToken(context.Background(), credential, tokenID, refreshTokenID, time.Now().Add(refreshTTL))
}
func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return cs.users.ConsumeToken(context.Background(), credential, tokenID, refreshTokenID)
}

// AddClaims runs for both grants, so a refresh after a restart brings the
// owner session back.
func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	u, err := cs.users.FindByUsername(r.Context(), credential)
	if err != nil {
		return nil, err
	}
	cs.sessions.Acquire(u.ID, u.Username)

	return map[string]string{
		ClaimUserID:   u.ID,
		ClaimUsername: u.Username,
		ClaimRoles:    RoleOwner,
	}, nil
}
func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}
func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}
