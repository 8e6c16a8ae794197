package routes

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mbolis/quick-survey/app"
	"github.com/mbolis/quick-survey/editor"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/integrations"
	"github.com/mbolis/quick-survey/results"
	"github.com/mbolis/quick-survey/session"
)

// Keys of the state kept in an owner session.
const (
	keyBoard    = "results.board"
	keyDrafts   = "editor.drafts"
	keySettings = "integrations.settings"
)

func ownerSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := session.FromContext(r.Context())
	if err != nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, false
	}
	return sess, true
}

func boardOf(app app.App, sess *session.Session) *results.Board {
	return sess.Value(keyBoard, func() any {
		return results.NewBoard(app.Surveys, sess)
	}).(*results.Board)
}

func draftsOf(sess *session.Session) *editor.Drafts {
	return sess.Value(keyDrafts, func() any {
		return editor.NewDrafts()
	}).(*editor.Drafts)
}

func settingsOf(sess *session.Session) *integrations.Settings {
	return sess.Value(keySettings, func() any {
		return &integrations.Settings{}
	}).(*integrations.Settings)
}

func catalogOf(app app.App, sess *session.Session) *editor.GroupCatalog {
	return editor.NewGroupCatalog(app.Integrations, app.MailerLite, sess.UserID)
}

// decode reads a request body and answers 422 itself when it is
// not acceptable.
func decode(w http.ResponseWriter, r *http.Request, code string, v any) bool {
	err := httpx.DecodeValid(r, v)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, httpx.ErrBadBody):
		httpx.LogValidation(w, r, code+".parse_body", err)
	case errors.As(err, &verrs):
		httpx.LogValidation(w, r, code+".validate", err)
	default:
		httpx.LogInternalError(w, code+".decode", err)
	}
	return false
}
