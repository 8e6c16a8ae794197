package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mbolis/quick-survey/app"
	"github.com/mbolis/quick-survey/database"
	"github.com/mbolis/quick-survey/editor"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/log"
	"github.com/mbolis/quick-survey/model"
	"github.com/mbolis/quick-survey/session"
)

const configureURL = "/admin/integrations"

type draftResponse struct {
	DraftID string      `json:"draft_id"`
	Draft   editor.View `json:"draft"`
}

func NewDraft(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		d := editor.New(catalogOf(app, sess))
		id := draftsOf(sess).Add(d)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, draftResponse{id, d.View()})
	}
}

// EditSurvey opens a draft over a stored survey.
func EditSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		surveyID := chi.URLParam(r, "id")
		d, err := editor.Load(r.Context(), app.Surveys, sess, surveyID, catalogOf(app, sess))
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "edit_survey", surveyID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.edit_survey", err)
			return
		}
		id := draftsOf(sess).Add(d)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, draftResponse{id, d.View()})
	}
}

// withDraft resolves the draft named in the path for the current owner.
func withDraft(h func(w http.ResponseWriter, r *http.Request, sess *session.Session, id string, d *editor.Draft)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "did")
		d, err := draftsOf(sess).Get(id)
		if err != nil {
			httpx.LogNotFound(w, "draft.get", id)
			return
		}
		h(w, r, sess, id, d)
	}
}

func draftError(w http.ResponseWriter, r *http.Request, code string, err error) {
	switch {
	case errors.Is(err, editor.ErrQuestionNotFound):
		httpx.LogNotFound(w, code, chi.URLParam(r, "qid"))
	case errors.Is(err, editor.ErrOptionIndex),
		errors.Is(err, editor.ErrNotOptionType),
		errors.Is(err, editor.ErrInvalidType):
		httpx.LogValidation(w, r, code, err)
	default:
		httpx.LogInternalError(w, code, err)
	}
}

func GetDraft(app app.App) http.HandlerFunc {
	return withDraft(func(w http.ResponseWriter, r *http.Request, _ *session.Session, id string, d *editor.Draft) {
		render.JSON(w, r, draftResponse{id, d.View()})
	})
}

func PatchDraft(app app.App) http.HandlerFunc {
	return withDraft(func(w http.ResponseWriter, r *http.Request, _ *session.Session, id string, d *editor.Draft) {
		var meta editor.Meta
		if !decode(w, r, "draft.meta", &meta) {
			return
		}
		d.SetMeta(meta)
		render.JSON(w, r, draftResponse{id, d.View()})
	})
}

func DiscardDraft(app app.App) http.HandlerFunc {
	return withDraft(func(w http.ResponseWriter, r *http.Request, sess *session.Session, id string, _ *editor.Draft) {
		draftsOf(sess).Remove(id)
		w.WriteHeader(http.StatusNoContent)
	})
}

func AddQuestion(app app.App) http.HandlerFunc {
	return withDraft(func(w http.ResponseWriter, r *http.Request, _ *session.Session, _ string, d *editor.Draft) {
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, d.AddQuestion())
	})
}

func UpdateQuestion(app app.App) http.HandlerFunc {
	return withDraft(func(w http.ResponseWriter, r *http.Request, _ *session.Session, _ string, d *editor.Draft) {
		var patch editor.QuestionPatch
		if !decode(w, r, "draft.question", &patch) {
			return
		}

		q, err := d.UpdateQuestion(model.QuestionID(chi.URLParam(r, "qid")), patch)
		if err != nil {
			draftError(w, r, "draft.question", err)
			return
		}
		render.JSON(w, r, q)
	})
}

func RemoveQuestion(app app.App) http.HandlerFunc {
	return withDraft(func(w http.ResponseWriter, r *http.Request, _ *session.Session, _ string, d *editor.Draft) {
		if err := d.RemoveQuestion(model.QuestionID(chi.URLParam(r, "qid"))); err != nil {
			draftError(w, r, "draft.remove_question", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func AddOption(app app.App) http.HandlerFunc {
	return withDraft(func(w http.ResponseWriter, r *http.Request, _ *session.Session, _ string, d *editor.Draft) {
		q, err := d.AddOption(model.QuestionID(chi.URLParam(r, "qid")))
		if err != nil {
			draftError(w, r, "draft.add_option", err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, q)
	})
}

func optionIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.idx")
		return 0, false
	}
	return idx, true
}

type optionBody struct {
	Value string `json:"value"`
}

func UpdateOption(app app.App) http.HandlerFunc {
	return withDraft(func(w http.ResponseWriter, r *http.Request, _ *session.Session, _ string, d *editor.Draft) {
		idx, ok := optionIndex(w, r)
		if !ok {
			return
		}
		var body optionBody
		if !decode(w, r, "draft.option", &body) {
			return
		}

		q, err := d.UpdateOption(model.QuestionID(chi.URLParam(r, "qid")), idx, body.Value)
		if err != nil {
			draftError(w, r, "draft.option", err)
			return
		}
		render.JSON(w, r, q)
	})
}

func RemoveOption(app app.App) http.HandlerFunc {
	return withDraft(func(w http.ResponseWriter, r *http.Request, _ *session.Session, _ string, d *editor.Draft) {
		idx, ok := optionIndex(w, r)
		if !ok {
			return
		}

		q, err := d.RemoveOption(model.QuestionID(chi.URLParam(r, "qid")), idx)
		if err != nil {
			draftError(w, r, "draft.remove_option", err)
			return
		}
		render.JSON(w, r, q)
	})
}

// DraftGroups lists the MailerLite groups a survey can feed. Without a
// stored token it points the owner at the integration settings instead.
func DraftGroups(app app.App) http.HandlerFunc {
	return withDraft(func(w http.ResponseWriter, r *http.Request, _ *session.Session, _ string, d *editor.Draft) {
		groups, err := d.Groups(r.Context())
		switch {
		case errors.Is(err, editor.ErrIntegrationNotConfigured):
			render.JSON(w, r, map[string]any{
				"configured":    false,
				"configure_url": configureURL,
			})
		case err != nil:
			httpx.LogStatusMsg(w, http.StatusBadGateway, log.WarnLevel, "mailerlite.groups",
				"could not load MailerLite groups: %s", err)
		default:
			render.JSON(w, r, map[string]any{
				"configured": true,
				"groups":     groups,
			})
		}
	})
}

func SaveDraft(app app.App) http.HandlerFunc {
	return withDraft(func(w http.ResponseWriter, r *http.Request, sess *session.Session, id string, d *editor.Draft) {
		s, err := d.Save(r.Context(), app.Surveys, sess)
		if err != nil {
			saveError(w, r, err, d.View().SurveyID)
			return
		}
		render.JSON(w, r, map[string]any{
			"draft_id": id,
			"survey":   s,
		})
	})
}
