package routes

import (
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbolis/quick-survey/app"
	"github.com/mbolis/quick-survey/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer, app.Metrics.Middleware)

	root.Get("/healthz", Health(app))
	root.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.Gatherer, promhttp.HandlerOpts{}))

	root.Mount("/api", apiRouter(app))

	root.
		With(middlewares.CookieAuth(app.BearerServer), middlewares.Owner(app.TokenSecret)).
		Mount("/admin", servePrivateFiles("/admin"))
	root.Mount("/", servePublicFiles())

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Get("/surveys/{id}", PublicGetSurvey(app))
	api.Post("/surveys/{id}/sessions", OpenForm(app))

	api.Route("/forms/{sid}", func(r chi.Router) {
		r.Use(middlewares.FormSession(app.FormAuth, app.Forms))

		r.Get("/", GetForm(app))
		r.Delete("/", CloseForm(app))
		r.Put("/answers/{qid}", SetAnswer(app))
		r.Post("/answers/{qid}/toggle", ToggleAnswer(app))
		r.Post("/next", NextQuestion(app))
		r.Post("/previous", PreviousQuestion(app))
		r.Post("/jump", JumpToQuestion(app))
		r.Post("/submit", SubmitForm(app))
		r.Post("/contact", CompleteContact(app))
		r.Post("/contact/skip", SkipContact(app))
	})

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Owner(app.TokenSecret), middlewares.Session(app.Sessions))

		// dashboard and results
		r.Get("/surveys", ListSurveys(app))
		r.Post("/surveys", CreateSurvey(app))
		r.Get("/surveys/{id}", GetSurvey(app))
		r.Put("/surveys/{id}", UpdateSurvey(app))
		r.Patch("/surveys/{id}/active", ToggleSurvey(app))
		r.Delete("/surveys/{id}", DeleteSurvey(app))
		r.Get("/surveys/{id}/responses", ListResponses(app))
		r.Get("/surveys/{id}/responses.csv", ExportResponses(app))

		// editor
		r.Post("/drafts", NewDraft(app))
		r.Post("/surveys/{id}/draft", EditSurvey(app))
		r.Route("/drafts/{did}", func(r chi.Router) {
			r.Get("/", GetDraft(app))
			r.Patch("/", PatchDraft(app))
			r.Delete("/", DiscardDraft(app))
			r.Post("/questions", AddQuestion(app))
			r.Patch("/questions/{qid}", UpdateQuestion(app))
			r.Delete("/questions/{qid}", RemoveQuestion(app))
			r.Post("/questions/{qid}/options", AddOption(app))
			r.Put("/questions/{qid}/options/{idx}", UpdateOption(app))
			r.Delete("/questions/{qid}/options/{idx}", RemoveOption(app))
			r.Get("/groups", DraftGroups(app))
			r.Post("/save", SaveDraft(app))
		})

		// integrations
		r.Get("/integrations", GetIntegrations(app))
		r.Put("/integrations/token", SetIntegrationToken(app))
		r.Post("/integrations/test", TestIntegration(app))
		r.Post("/integrations/save", SaveIntegration(app))
	})

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))
	api.With(middlewares.Owner(app.TokenSecret)).Post("/logout", Logout(app))

	return api
}

func Health(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := app.PingContext(r.Context()); err != nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func servePublicFiles() http.Handler {
	return http.FileServer(http.Dir("public"))
}

func servePrivateFiles(path string) http.Handler {
	return http.StripPrefix(path, http.FileServer(http.Dir("private")))
}
