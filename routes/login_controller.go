package routes

import (
	"net/http"
	"net/url"
	"regexp"

	"github.com/mbolis/quick-survey/app"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/log"
	"github.com/mbolis/quick-survey/routes/middlewares"
)

var reRefresh = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

// Login exchanges basic auth credentials for a token pair, and starts the
// owner session.
func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
			return
		}

		grant(w, r, app, url.Values{
			"grant_type": {"password"},
			"username":   {user},
			"password":   {pass},
		})
	}
}

func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match := reRefresh.FindStringSubmatch(r.Header.Get("authorization"))
		if len(match) == 0 {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}

		grant(w, r, app, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {match[1]},
		})
	}
}

// grant runs the bearer server and, on success, mirrors the tokens into
// cookies for the private pages.
func grant(w http.ResponseWriter, r *http.Request, app app.App, form url.Values) {
	resp, err := httpx.CallForm(r.Context(), app.UserCredentials, form)
	if err != nil {
		httpx.LogInternalError(w, "grant.new_request", err)
		return
	}

	if resp.Status() == http.StatusOK {
		var tokens httpx.TokenResponse
		if err := resp.Decode(&tokens); err != nil {
			httpx.LogInternalError(w, "grant.decode", err)
			return
		}
		middlewares.SetTokenCookies(w, tokens)
	}
	resp.Flush(w)
}

// Logout ends the owner session: drafts and settings kept for it are
// dropped and every refresh token is revoked.
func Logout(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middlewares.Claims(r)

		err := app.Users.RevokeTokens(r.Context(), claims[httpx.ClaimUsername])
		if err != nil {
			httpx.LogInternalError(w, "db.revoke_tokens", err)
			return
		}
		app.Sessions.Invalidate(claims[httpx.ClaimUserID])
		middlewares.ClearTokenCookies(w)

		w.WriteHeader(http.StatusNoContent)
	}
}
