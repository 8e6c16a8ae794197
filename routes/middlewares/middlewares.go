package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/oauth"

	"github.com/mbolis/quick-survey/form"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/log"
	"github.com/mbolis/quick-survey/session"
)

// FormClaim names the form session a respondent token is bound to.
const FormClaim = "fs"

// Owner checks for a valid bearer token carrying the 'owner' role.
func Owner(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), owner).Handler(next)
	}
}

func claimsOf(r *http.Request) map[string]string {
	claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)
	return claims
}

func owner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsOf(r)

		isOwner := false
		if rolesClaim, ok := claims[httpx.ClaimRoles]; ok {
			roles := strings.Split(rolesClaim, ",")
			for _, role := range roles {
				if role == httpx.RoleOwner {
					isOwner = true
					break
				}
			}
		}

		if !isOwner {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Session puts the owner session named by the token into the request
// context. Tokens outliving their session are refused.
func Session(sessions *session.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Lookup(claimsOf(r)[httpx.ClaimUserID])
			if err != nil {
				httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "session.lookup")
				return
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
		})
	}
}

// Claims returns the verified owner token claims.
func Claims(r *http.Request) map[string]string {
	return claimsOf(r)
}

type formKey struct{}

// FormSession verifies the respondent token and loads the form it is bound
// to, which must be the one named in the path.
func FormSession(auth *jwtauth.JWTAuth, forms *form.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(jwtauth.Verifier(auth), jwtauth.Authenticator, formSession(forms)).Handler(next)
	}
}

func formSession(forms *form.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := chi.URLParam(r, "sid")
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || claims[FormClaim] != sid {
				httpx.LogStatus(w, http.StatusForbidden, log.DebugLevel, "form.token_mismatch")
				return
			}

			e, err := forms.Get(sid)
			if err != nil {
				httpx.LogNotFound(w, "form.get", sid)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), formKey{}, e)))
		})
	}
}

func Form(r *http.Request) *form.Engine {
	e, _ := r.Context().Value(formKey{}).(*form.Engine)
	return e
}

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
	refreshMaxAge = 60 * 60 * 24 * 365
)

// CookieAuth lets browsers reach the private pages with tokens kept in
// cookies, refreshing an expired access token on the way.
func CookieAuth(bearerServer *oauth.BearerServer) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				h.ServeHTTP(w, r)
				return
			}

			token, err := r.Cookie(accessCookie)
			if err != nil && !errors.Is(err, http.ErrNoCookie) {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if err == nil {
				r.Header.Set("authorization", "Bearer "+token.Value)
				buf := httpx.NewResponseBuffer()
				h.ServeHTTP(buf, r)
				if buf.Status() != http.StatusUnauthorized {
					buf.Flush(w)
					return
				}
			}

			loginLocation := "/login?goto=" + url.QueryEscape(r.RequestURI)

			refreshToken, err := r.Cookie(refreshCookie)
			if err != nil {
				if !errors.Is(err, http.ErrNoCookie) {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				http.Redirect(w, r, loginLocation, http.StatusTemporaryRedirect)
				return
			}

			resp, err := httpx.CallForm(r.Context(), bearerServer.UserCredentials, url.Values{
				"grant_type":    {"refresh_token"},
				"refresh_token": {refreshToken.Value},
			})
			if err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if resp.Status() == http.StatusUnauthorized {
				http.SetCookie(w, &http.Cookie{
					Path:     "/",
					Name:     refreshCookie,
					Value:    "",
					MaxAge:   -1,
					SameSite: http.SameSiteNoneMode,
				})
				http.Redirect(w, r, loginLocation, http.StatusTemporaryRedirect)
				return
			}
			if resp.Status() != http.StatusOK {
				http.Error(w, http.StatusText(resp.Status()), resp.Status())
				return
			}

			var grant httpx.TokenResponse
			if err := resp.Decode(&grant); err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			SetTokenCookies(w, grant)

			r.Header.Set("authorization", "Bearer "+grant.AccessToken)
			h.ServeHTTP(w, r)
		})
	}
}

func SetTokenCookies(w http.ResponseWriter, grant httpx.TokenResponse) {
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     accessCookie,
		Value:    grant.AccessToken,
		MaxAge:   int(grant.ExpiresIn),
		SameSite: http.SameSiteNoneMode,
	})
	http.SetCookie(w, &http.Cookie{
		Path:     "/",
		Name:     refreshCookie,
		Value:    grant.RefreshToken,
		MaxAge:   refreshMaxAge,
		SameSite: http.SameSiteNoneMode,
	})
}

func ClearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Path:     "/",
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			SameSite: http.SameSiteNoneMode,
		})
	}
}
