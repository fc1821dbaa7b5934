package app

import (
	"github.com/go-chi/oauth"
	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/builder"
	"github.com/mbolis/survey-builder/captcha"
	"github.com/mbolis/survey-builder/config"
	"github.com/mbolis/survey-builder/events"
	"github.com/mbolis/survey-builder/export"
	"github.com/mbolis/survey-builder/forms"
	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/masterdata"
	"github.com/mbolis/survey-builder/responses"
	"github.com/mbolis/survey-builder/unlock"
)

type App struct {
	*sqlx.DB
	*oauth.BearerServer
	config.Config

	Forms      *forms.Store
	MasterData *masterdata.Store
	Builder    *builder.Builder
	Recorder   *responses.Recorder
	Responses  *responses.Store
	Exporter   *export.Exporter
	Unlock     *unlock.Issuer
	Events     events.Publisher
}

// Options overrides the collaborators that talk to the outside world.
type Options struct {
	Captcha captcha.Verifier
	Events  events.Publisher
}

func New(db *sqlx.DB, cfg config.Config, opts Options) App {
	if opts.Captcha == nil {
		opts.Captcha = captcha.New(cfg.CaptchaVerifyURL, cfg.CaptchaSecret)
	}
	if opts.Events == nil {
		opts.Events = events.New(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	formStore := forms.NewStore(db, cfg.SiteURL)
	return App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,

		Forms:      formStore,
		MasterData: masterdata.NewStore(db),
		Builder:    builder.New(opts.Captcha),
		Recorder:   responses.NewRecorder(db, opts.Events),
		Responses:  responses.NewStore(db),
		Exporter:   export.New(db, formStore),
		Unlock:     unlock.NewIssuer(cfg.TokenSecret, cfg.UnlockTTL),
		Events:     opts.Events,
	}
}
