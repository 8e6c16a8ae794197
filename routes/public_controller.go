package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"

	"github.com/mbolis/quick-survey/app"
	"github.com/mbolis/quick-survey/database"
	"github.com/mbolis/quick-survey/form"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/log"
	"github.com/mbolis/quick-survey/model"
	"github.com/mbolis/quick-survey/routes/middlewares"
)

const formTokenTTL = 24 * time.Hour

func PublicGetSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s, err := app.Surveys.GetActive(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "public.get_survey", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_survey", err)
			return
		}

		s.UserID = ""
		render.JSON(w, r, s)
	}
}

type openFormResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	View      form.View `json:"view"`
}

// OpenForm starts a respondent session. The returned token must accompany
// every call on that session.
func OpenForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var opts []form.Option
		if r.URL.Query().Get("embed") == "1" {
			opts = append(opts, form.Embedded())
		}

		e, err := form.Open(r.Context(), app.FormDeps(), id, opts...)
		if errors.Is(err, form.ErrSurveyNotFound) {
			httpx.LogNotFound(w, "form.open", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.form_open", err)
			return
		}
		sid := app.Forms.Add(e)

		claims := map[string]interface{}{middlewares.FormClaim: sid}
		jwtauth.SetIssuedNow(claims)
		jwtauth.SetExpiryIn(claims, formTokenTTL)
		_, token, err := app.FormAuth.Encode(claims)
		if err != nil {
			app.Forms.Close(sid)
			httpx.LogInternalError(w, "form.token", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, openFormResponse{sid, token, e.View()})
	}
}

// formError answers with the status matching a form engine error.
func formError(w http.ResponseWriter, r *http.Request, code string, err error) {
	var rerr *form.RequiredError
	switch {
	case errors.Is(err, form.ErrIncomplete) && errors.As(err, &rerr):
		httpx.LogValidation(w, r, code+".incomplete", err, map[string]any{"index": rerr.Index})
	case errors.As(err, &rerr):
		httpx.LogValidation(w, r, code+".required", err, map[string]any{"index": rerr.Index})
	case errors.Is(err, form.ErrQuestionNotFound):
		httpx.LogNotFound(w, code, chi.URLParam(r, "qid"))
	case errors.Is(err, form.ErrAnswerType),
		errors.Is(err, form.ErrUnknownOption),
		errors.Is(err, form.ErrJumpForward),
		errors.Is(err, form.ErrNotLastQuestion),
		errors.Is(err, form.ErrContactName),
		errors.Is(err, form.ErrContactEmail):
		httpx.LogValidation(w, r, code, err)
	case errors.Is(err, form.ErrInvalidState):
		httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, code, "%s", err)
	default:
		httpx.LogInternalError(w, code, err)
	}
}

// formAction runs op on the form of the request and answers with its view.
func formAction(code string, op func(r *http.Request, e *form.Engine) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e := middlewares.Form(r)
		if err := op(r, e); err != nil {
			formError(w, r, code, err)
			return
		}
		render.JSON(w, r, e.View())
	}
}

func GetForm(app app.App) http.HandlerFunc {
	return formAction("form.view", func(*http.Request, *form.Engine) error { return nil })
}

func CloseForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := chi.URLParam(r, "sid")
		if err := app.Forms.Close(sid); err != nil {
			httpx.LogNotFound(w, "form.close", sid)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type answerBody struct {
	Answer model.Answer `json:"answer"`
}

func SetAnswer(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body answerBody
		if !decode(w, r, "form.answer", &body) {
			return
		}
		formAction("form.answer", func(r *http.Request, e *form.Engine) error {
			return e.SetAnswer(model.QuestionID(chi.URLParam(r, "qid")), body.Answer)
		})(w, r)
	}
}

type toggleBody struct {
	Option string `json:"option" validate:"required"`
}

func ToggleAnswer(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body toggleBody
		if !decode(w, r, "form.toggle", &body) {
			return
		}
		formAction("form.toggle", func(r *http.Request, e *form.Engine) error {
			return e.Toggle(model.QuestionID(chi.URLParam(r, "qid")), body.Option)
		})(w, r)
	}
}

func NextQuestion(app app.App) http.HandlerFunc {
	return formAction("form.next", func(r *http.Request, e *form.Engine) error {
		return e.Next(r.Context())
	})
}

func PreviousQuestion(app app.App) http.HandlerFunc {
	return formAction("form.previous", func(_ *http.Request, e *form.Engine) error {
		return e.Previous()
	})
}

type jumpBody struct {
	Index *int `json:"index" validate:"required,min=0"`
}

func JumpToQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body jumpBody
		if !decode(w, r, "form.jump", &body) {
			return
		}
		formAction("form.jump", func(_ *http.Request, e *form.Engine) error {
			return e.Jump(*body.Index)
		})(w, r)
	}
}

func SubmitForm(app app.App) http.HandlerFunc {
	return formAction("form.submit", func(r *http.Request, e *form.Engine) error {
		return e.Submit(r.Context())
	})
}

type contactBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func CompleteContact(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body contactBody
		if !decode(w, r, "form.contact", &body) {
			return
		}

		e := middlewares.Form(r)
		res, err := e.CompleteContact(r.Context(), body.Name, body.Email)
		if err != nil {
			formError(w, r, "form.contact", err)
			return
		}
		render.JSON(w, r, map[string]any{
			"synced": res.Synced,
			"view":   e.View(),
		})
	}
}

func SkipContact(app app.App) http.HandlerFunc {
	return formAction("form.contact_skip", func(_ *http.Request, e *form.Engine) error {
		return e.SkipContact()
	})
}
