package routes

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/survey-builder/app"
	"github.com/mbolis/survey-builder/forms"
	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/masterdata"
)

func ListAttachments(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		list, err := app.Forms.Attachments(r.Context(), formID)
		if err != nil {
			httpx.LogInternalError(w, "db.list_attachments", err)
			return
		}
		render.JSON(w, r, list)
	}
}

func AttachDataset(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		var body struct {
			DatasetID int64 `json:"dataset_id"`
		}
		if !decode(w, r, &body) {
			return
		}
		if err := app.MasterData.Require(r.Context(), body.DatasetID, actor(r), masterdata.ViewAccess); err != nil {
			httpx.Fail(w, r, "datasets.require", err)
			return
		}
		att, err := app.Forms.Attach(r.Context(), formID, body.DatasetID)
		if err != nil {
			httpx.Fail(w, r, "db.attach_dataset", err)
			return
		}
		created(w, r, att)
	}
}

func ConfigureAttachment(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		attachmentID, ok := idParam(w, r, "attachmentID")
		if !ok {
			return
		}
		var cfg forms.AttachmentConfig
		if !decode(w, r, &cfg) {
			return
		}
		att, err := app.Forms.Configure(r.Context(), formID, attachmentID, cfg)
		if err != nil {
			httpx.Fail(w, r, "db.configure_attachment", err)
			return
		}
		render.JSON(w, r, att)
	}
}

func DetachDataset(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		attachmentID, ok := idParam(w, r, "attachmentID")
		if !ok {
			return
		}
		if err := app.Forms.Detach(r.Context(), formID, attachmentID); err != nil {
			httpx.Fail(w, r, "db.detach_dataset", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
