package routes

import (
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/mbolis/quick-survey/app"
	"github.com/mbolis/quick-survey/database"
	"github.com/mbolis/quick-survey/editor"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/log"
	"github.com/mbolis/quick-survey/model"
	"github.com/mbolis/quick-survey/results"
)

func ListSurveys(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		board := boardOf(app, sess)
		if err := board.Reload(r.Context()); err != nil {
			httpx.LogInternalError(w, "db.list_surveys", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"surveys": board.Surveys(),
			"counts":  board.Counts(),
		})
	}
}

type surveyDocument struct {
	Title             string               `json:"title"`
	Description       string               `json:"description"`
	Questions         []questionDocument   `json:"questions" validate:"dive"`
	Settings          model.SurveySettings `json:"settings"`
	MailerLiteGroupID string               `json:"mailerlite_group_id"`
}

type questionDocument struct {
	ID          model.QuestionID   `json:"id"`
	Type        model.QuestionType `json:"type" validate:"oneof=text email textarea select radio checkbox"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Required    bool               `json:"required"`
	Options     []string           `json:"options"`
}

func (doc surveyDocument) survey(id string) model.Survey {
	s := model.Survey{
		ID:                id,
		Title:             doc.Title,
		Description:       doc.Description,
		Settings:          doc.Settings,
		MailerLiteGroupID: doc.MailerLiteGroupID,
		Questions:         make([]model.Question, len(doc.Questions)),
	}
	for i, q := range doc.Questions {
		s.Questions[i] = model.Question{
			ID:          q.ID,
			Type:        q.Type,
			Title:       q.Title,
			Description: q.Description,
			Required:    q.Required,
		}
		if q.Type.HasOptions() {
			s.Questions[i].Options = q.Options
		}
	}
	return s
}

// saveDocument stores a whole survey through the same checks as the editor.
func saveDocument(app app.App, created bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		var doc surveyDocument
		if !decode(w, r, "save_survey", &doc) {
			return
		}
		id := ""
		if !created {
			id = chi.URLParam(r, "id")
		}

		saved, err := editor.FromSurvey(doc.survey(id), nil).Save(r.Context(), app.Surveys, sess)
		if err != nil {
			saveError(w, r, err, id)
			return
		}

		if created {
			render.Status(r, http.StatusCreated)
		}
		render.JSON(w, r, saved)
	}
}

func CreateSurvey(app app.App) http.HandlerFunc {
	return saveDocument(app, true)
}

func UpdateSurvey(app app.App) http.HandlerFunc {
	return saveDocument(app, false)
}

func saveError(w http.ResponseWriter, r *http.Request, err error, id string) {
	var qerr *editor.QuestionError
	switch {
	case errors.As(err, &qerr):
		httpx.LogValidation(w, r, "editor.question_title", err, map[string]any{"index": qerr.Index, "question_id": qerr.ID})
	case errors.Is(err, editor.ErrTitleRequired):
		httpx.LogValidation(w, r, "editor.title", err)
	case errors.Is(err, editor.ErrNoQuestions):
		httpx.LogValidation(w, r, "editor.no_questions", err)
	case errors.Is(err, database.ErrNotFound):
		httpx.LogNotFound(w, "save_survey", id)
	default:
		httpx.LogInternalError(w, "db.save_survey", err)
	}
}

func GetSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		s, err := app.Surveys.GetOwned(r.Context(), sess.UserID, id)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "get_survey", id)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_survey", err)
			return
		}

		render.JSON(w, r, s)
	}
}

func ToggleSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		board := boardOf(app, sess)
		s, err := board.Toggle(r.Context(), id)
		if errors.Is(err, results.ErrSurveyNotFound) {
			if err = board.Reload(r.Context()); err != nil {
				httpx.LogInternalError(w, "db.list_surveys", err)
				return
			}
			s, err = board.Toggle(r.Context(), id)
		}
		switch {
		case errors.Is(err, results.ErrSurveyNotFound):
			httpx.LogNotFound(w, "toggle_survey", id)
		case err != nil:
			log.WithError(err).WithField("survey", id).Error("db.toggle_survey")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]any{
				"error":  "could not change survey status",
				"survey": s,
			})
		default:
			render.JSON(w, r, s)
		}
	}
}

func DeleteSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := ownerSession(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		confirmed := r.URL.Query().Get("confirm") == "true"
		confirm := func(model.Survey) bool { return confirmed }

		board := boardOf(app, sess)
		err := board.Delete(r.Context(), id, confirm)
		if errors.Is(err, results.ErrSurveyNotFound) {
			if err = board.Reload(r.Context()); err != nil {
				httpx.LogInternalError(w, "db.list_surveys", err)
				return
			}
			err = board.Delete(r.Context(), id, confirm)
		}
		switch {
		case errors.Is(err, results.ErrSurveyNotFound), errors.Is(err, database.ErrNotFound):
			httpx.LogNotFound(w, "delete_survey", id)
		case errors.Is(err, results.ErrDeleteNotConfirmed):
			httpx.LogStatusMsg(w, http.StatusPreconditionFailed, log.DebugLevel, "delete_survey.confirm",
				"deleting a survey also deletes all its responses; repeat with confirm=true")
		case err != nil:
			httpx.LogInternalError(w, "db.delete_survey", err)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func loadResults(w http.ResponseWriter, r *http.Request, app app.App) (model.Survey, []model.SurveyResponse, bool) {
	sess, ok := ownerSession(w, r)
	if !ok {
		return model.Survey{}, nil, false
	}

	id := chi.URLParam(r, "id")
	s, err := app.Surveys.GetOwned(r.Context(), sess.UserID, id)
	if errors.Is(err, database.ErrNotFound) {
		httpx.LogNotFound(w, "get_responses", id)
		return s, nil, false
	}
	if err != nil {
		httpx.LogInternalError(w, "db.get_survey", err)
		return s, nil, false
	}

	responses, err := app.Responses.ListForSurvey(r.Context(), sess.UserID, id)
	if err != nil {
		httpx.LogInternalError(w, "db.get_responses", err)
		return s, nil, false
	}
	return s, responses, true
}

func ListResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, responses, ok := loadResults(w, r, app)
		if !ok {
			return
		}

		summary, err := app.Responses.Summary(r.Context(), s.UserID, s.ID)
		if err != nil {
			httpx.LogInternalError(w, "db.get_responses.summary", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"survey":    s,
			"responses": responses,
			"summary":   summary,
			"table":     results.BuildTable(s, responses, app.ExportLocation),
		})
	}
}

func ExportResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, responses, ok := loadResults(w, r, app)
		if !ok {
			return
		}

		table := results.BuildTable(s, responses, app.ExportLocation)
		w.Header().Set("content-type", "text/csv; charset=utf-8")
		w.Header().Set("content-disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": results.FileName(s),
		}))
		if err := results.WriteCSV(w, table); err != nil {
			log.WithError(err).WithField("survey", s.ID).Warn("export.write_csv")
		}
	}
}
