package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbolis/survey-builder/app"
	"github.com/mbolis/survey-builder/metrics"
	"github.com/mbolis/survey-builder/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	if app.TrustProxy {
		root.Use(middleware.RealIP)
	}
	root.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer)

	root.Handle("/metrics", metrics.Handler())
	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()
	limited := middlewares.RateLimit(app.SubmitRate, app.SubmitBurst)

	api.Route("/surveys/{slug}", func(r chi.Router) {
		r.Get("/", PublicGetSurvey(app))
		r.Get("/qr.png", PublicSurveyQRCode(app))
		r.With(limited).Post("/unlock", PublicUnlockSurvey(app))
		r.With(limited, middlewares.OptionalAuth(app.TokenSecret)).Post("/responses", PublicSubmitSurvey(app))
		r.Get(`/identity/{attachmentID:^\d+$}/filters`, PublicIdentityFilter(app))
		r.Get(`/identity/{attachmentID:^\d+$}/records`, PublicIdentityRecords(app))
	})

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))
	api.With(middlewares.OptionalAuth(app.TokenSecret)).Post("/logout", Logout(app))

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.CookieAuth(app.BearerServer, app.TokenSecret), middlewares.Staff(app.TokenSecret))

		r.Post("/forms", CreateForm(app))
		r.Get("/forms", ListForms(app))
		r.Route(`/forms/{formID:^\d+$}`, func(r chi.Router) {
			r.Get("/", GetForm(app))
			r.Put("/", UpdateForm(app))
			r.Delete("/", DeleteForm(app))
			r.Post("/publish", PublishForm(app))
			r.Post("/unpublish", UnpublishForm(app))
			r.Put("/status", SetFormStatus(app))
			r.Put("/protection", UpdateFormProtection(app))
			r.Post("/qr", RegenerateFormQR(app))
			r.Post("/duplicate", DuplicateForm(app))

			r.Get("/collaborators", ListCollaborators(app))
			r.Post("/collaborators", AddCollaborator(app))
			r.Delete(`/collaborators/{accountID:^\d+$}`, RemoveCollaborator(app))

			r.Get("/sections", ListSections(app))
			r.Post("/sections", CreateSection(app))
			r.Put(`/sections/{sectionID:^\d+$}`, UpdateSection(app))
			r.Delete(`/sections/{sectionID:^\d+$}`, DeleteSection(app))
			r.Post(`/sections/{sectionID:^\d+$}/move`, MoveSection(app))

			r.Get("/questions", ListQuestions(app))
			r.Post("/questions", CreateQuestion(app))
			r.Get(`/questions/{questionID:^\d+$}`, GetQuestion(app))
			r.Put(`/questions/{questionID:^\d+$}`, UpdateQuestion(app))
			r.Delete(`/questions/{questionID:^\d+$}`, DeleteQuestion(app))
			r.Post(`/questions/{questionID:^\d+$}/move`, MoveQuestion(app))

			r.Get("/attachments", ListAttachments(app))
			r.Post("/attachments", AttachDataset(app))
			r.Put(`/attachments/{attachmentID:^\d+$}`, ConfigureAttachment(app))
			r.Delete(`/attachments/{attachmentID:^\d+$}`, DetachDataset(app))

			r.Get("/responses", ListResponses(app))
			r.Get("/responses/stats", ResponseStatistics(app))
			r.Get("/responses/export", ExportResponses(app))
			r.Delete(`/responses/{responseID:^\d+$}`, DeleteResponse(app))
		})

		r.Post("/datasets", CreateDataset(app))
		r.Get("/datasets", ListDatasets(app))
		r.Route(`/datasets/{datasetID:^\d+$}`, func(r chi.Router) {
			r.Get("/", GetDataset(app))
			r.Put("/", UpdateDataset(app))
			r.Delete("/", DeleteDataset(app))

			r.Get("/shares", ListShares(app))
			r.Post("/shares", ShareDataset(app))
			r.Delete(`/shares/{accountID:^\d+$}`, UnshareDataset(app))

			r.Get("/columns", ListColumns(app))
			r.Post("/columns", AddColumn(app))
			r.Delete(`/columns/{columnID:^\d+$}`, DeleteColumn(app))

			r.Get("/records", ListRecords(app))
			r.Post("/records", CreateRecord(app))
			r.Get("/records/export", ExportRecords(app))
			r.Post("/records/preview", PreviewImport(app))
			r.Post("/records/import", ImportRecords(app))
			r.Get(`/records/{recordID:^\d+$}`, GetRecord(app))
			r.Put(`/records/{recordID:^\d+$}`, UpdateRecord(app))
			r.Delete(`/records/{recordID:^\d+$}`, DeleteRecord(app))
		})
	})

	return api
}
