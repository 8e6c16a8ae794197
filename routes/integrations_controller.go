package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-survey/app"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/integrations"
	"github.com/mbolis/quick-survey/log"
)

func GetIntegrations(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		settings := settingsOf(sess)
		if err := settings.Load(r.Context(), app.Integrations, sess.UserID); err != nil {
			httpx.LogInternalError(w, "db.get_integration", err)
			return
		}
		render.JSON(w, r, settings.View())
	}
}

type tokenBody struct {
	Token string `json:"token" validate:"max=2048"`
}

func SetIntegrationToken(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		var body tokenBody
		if !decode(w, r, "integration.token", &body) {
			return
		}

		settings := settingsOf(sess)
		settings.SetToken(body.Token)
		render.JSON(w, r, settings.View())
	}
}

func TestIntegration(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		settings := settingsOf(sess)
		_, err := settings.Test(r.Context(), app.MailerLite)
		switch {
		case errors.Is(err, integrations.ErrTokenRequired):
			httpx.LogValidation(w, r, "integration.token_required", err)
		case err != nil:
			httpx.LogStatusMsg(w, http.StatusBadGateway, log.InfoLevel, "mailerlite.test",
				"connection test failed: %s", err)
		default:
			render.JSON(w, r, settings.View())
		}
	}
}

func SaveIntegration(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		err := settingsOf(sess).Save(r.Context(), app.Integrations, sess.UserID)
		switch {
		case errors.Is(err, integrations.ErrTokenRequired):
			httpx.LogValidation(w, r, "integration.token_required", err)
		case errors.Is(err, integrations.ErrNotVerified):
			httpx.LogValidation(w, r, "integration.not_verified", err)
		case err != nil:
			httpx.LogInternalError(w, "db.save_integration", err)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}
