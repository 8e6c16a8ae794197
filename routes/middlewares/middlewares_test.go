package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-survey/form"
	"github.com/mbolis/quick-survey/model"
	"github.com/mbolis/quick-survey/session"
)

func withClaims(r *http.Request, claims map[string]string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), oauth.ClaimsContext, claims))
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestOwner_RequiresOwnerRole(t *testing.T) {
	h := owner(ok)

	for roles, want := range map[string]int{
		"":             http.StatusForbidden,
		"admin":        http.StatusForbidden,
		"owner":        http.StatusOK,
		"viewer,owner": http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		req := withClaims(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"roles": roles})
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "roles %q", roles)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSession_ResolvesOwner(t *testing.T) {
	sessions := session.NewRegistry()
	sessions.Acquire("u1", "ola")

	var got *session.Session
	h := Session(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = session.FromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withClaims(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"user_id": "u1"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "ola", got.Username)

	sessions.Invalidate("u1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withClaims(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"user_id": "u1"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type surveysStub struct{}

func (surveysStub) GetActive(_ context.Context, id string) (model.Survey, error) {
	return model.Survey{
		ID:        id,
		Title:     "Feedback",
		Questions: []model.Question{{ID: "q1", Type: model.TypeText, Title: "Name"}},
		IsActive:  true,
	}, nil
}

func TestFormSession(t *testing.T) {
	auth := jwtauth.New("HS256", []byte("secret"), nil)
	forms := form.NewRegistry(time.Minute)

	e, err := form.Open(context.Background(), form.Deps{Surveys: surveysStub{}}, "s1")
	require.NoError(t, err)
	sid := forms.Add(e)

	r := chi.NewRouter()
	r.Route("/forms/{sid}", func(r chi.Router) {
		r.Use(FormSession(auth, forms))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(Form(r).SurveyID()))
		})
	})

	call := func(path string, claims map[string]interface{}) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if claims != nil {
			_, token, err := auth.Encode(claims)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, call("/forms/"+sid+"/", nil).Code)
	assert.Equal(t, http.StatusForbidden, call("/forms/"+sid+"/", map[string]interface{}{FormClaim: "other"}).Code)

	rec := call("/forms/"+sid+"/", map[string]interface{}{FormClaim: sid})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", rec.Body.String())

	require.NoError(t, forms.Close(sid))
	assert.Equal(t, http.StatusNotFound, call("/forms/"+sid+"/", map[string]interface{}{FormClaim: sid}).Code)
}

func TestCookieAuth_RedirectsToLogin(t *testing.T) {
	h := CookieAuth(nil)(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/surveys", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/login?goto=%2Fadmin%2Fsurveys", rec.Header().Get("location"))
}

func TestCookieAuth_UsesAccessCookie(t *testing.T) {
	var auth string
	h := CookieAuth(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("authorization")
		w.Write([]byte("page"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "abc"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bearer abc", auth)
	assert.Equal(t, "page", rec.Body.String())
}
