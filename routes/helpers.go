package routes

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/survey-builder/app"
	"github.com/mbolis/survey-builder/forms"
	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/log"
	"github.com/mbolis/survey-builder/masterdata"
	"github.com/mbolis/survey-builder/model"
	"github.com/mbolis/survey-builder/routes/middlewares"
)

func actor(r *http.Request) model.Actor {
	a, _ := middlewares.Actor(r.Context())
	return a
}

// formParam reads {formID} and checks the caller may act on the form with
// the wanted access. On failure the response has been written.
func formParam(app app.App, w http.ResponseWriter, r *http.Request, want forms.Access) (int64, bool) {
	formID, ok := httpx.ID(r, "formID")
	if !ok {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.form_id")
		return 0, false
	}
	if err := app.Forms.Require(r.Context(), formID, actor(r), want); err != nil {
		httpx.Fail(w, r, "forms.require", err)
		return 0, false
	}
	return formID, true
}

func datasetParam(app app.App, w http.ResponseWriter, r *http.Request, want masterdata.Access) (int64, bool) {
	datasetID, ok := httpx.ID(r, "datasetID")
	if !ok {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.dataset_id")
		return 0, false
	}
	if err := app.MasterData.Require(r.Context(), datasetID, actor(r), want); err != nil {
		httpx.Fail(w, r, "datasets.require", err)
		return 0, false
	}
	return datasetID, true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, ok := httpx.ID(r, name)
	if !ok {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.get_url_param."+name)
	}
	return id, ok
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
		return false
	}
	return true
}

func created(w http.ResponseWriter, r *http.Request, v any) {
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, v)
}
