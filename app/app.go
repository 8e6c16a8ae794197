package app

import (
	"database/sql"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/oauth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mbolis/quick-survey/config"
	"github.com/mbolis/quick-survey/database"
	"github.com/mbolis/quick-survey/form"
	"github.com/mbolis/quick-survey/httpx"
	"github.com/mbolis/quick-survey/mailerlite"
	"github.com/mbolis/quick-survey/metrics"
	"github.com/mbolis/quick-survey/session"
)

type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config

	Users        *database.Users
	Surveys      *database.Surveys
	Responses    *database.Responses
	Integrations *database.Integrations

	MailerLite *mailerlite.Client
	Sessions   *session.Registry
	Forms      *form.Registry
	FormAuth   *jwtauth.JWTAuth

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func New(db *sql.DB, cfg config.Config) App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewDBStatsCollector(db, "sqlite"),
	)

	users := database.NewUsers(db)
	sessions := session.NewRegistry()

	return App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(users, sessions, cfg),
		Config:       cfg,

		Users:        users,
		Surveys:      database.NewSurveys(db),
		Responses:    database.NewResponses(db),
		Integrations: database.NewIntegrations(db),

		MailerLite: mailerlite.New(cfg.MailerLiteURL, cfg.MailerLiteTimeout),
		Sessions:   sessions,
		Forms:      form.NewRegistry(cfg.FormTTL),
		FormAuth:   jwtauth.New("HS256", []byte(cfg.TokenSecret), nil),

		Metrics:  metrics.New(reg),
		Gatherer: reg,
	}
}

// FormDeps wires a respondent form to storage and MailerLite.
func (app App) FormDeps() form.Deps {
	return form.Deps{
		Surveys:      app.Surveys,
		Responses:    app.Responses,
		Tokens:       app.Integrations,
		Subscribers:  app.MailerLite,
		Metrics:      app.Metrics,
		ContactDelay: app.ContactDelay,
	}
}
