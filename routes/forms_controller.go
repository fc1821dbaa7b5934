package routes

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/survey-builder/app"
	"github.com/mbolis/survey-builder/forms"
	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/model"
)

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in forms.FormInput
		if !decode(w, r, &in) {
			return
		}
		form, err := app.Forms.Create(r.Context(), actor(r), in)
		if err != nil {
			httpx.Fail(w, r, "db.insert_form", err)
			return
		}
		created(w, r, form)
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := app.Forms.List(r.Context(), actor(r))
		if err != nil {
			httpx.LogInternalError(w, "db.list_forms", err)
			return
		}
		render.JSON(w, r, list)
	}
}

type formDetail struct {
	*model.Form
	PublicURL   string             `json:"public_url"`
	Sections    []model.Section    `json:"sections"`
	Questions   []model.Question   `json:"questions"`
	Attachments []model.Attachment `json:"attachments"`
}

func GetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		form, err := app.Forms.Get(r.Context(), formID)
		if err != nil {
			httpx.Fail(w, r, "db.get_form", err)
			return
		}
		def, err := app.Forms.Definition(r.Context(), *form)
		if err != nil {
			httpx.LogInternalError(w, "db.get_definition", err)
			return
		}
		render.JSON(w, r, formDetail{
			Form:        form,
			PublicURL:   app.Forms.PublicURL(form.Slug),
			Sections:    def.Sections,
			Questions:   def.Questions,
			Attachments: def.Attachments,
		})
	}
}

func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		var in forms.FormInput
		if !decode(w, r, &in) {
			return
		}
		if err := app.Forms.Update(r.Context(), formID, in); err != nil {
			httpx.Fail(w, r, "db.update_form", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.OwnerAccess)
		if !ok {
			return
		}
		if err := app.Forms.Delete(r.Context(), formID); err != nil {
			httpx.Fail(w, r, "db.delete_form", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func PublishForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		var p forms.Protection
		if !decode(w, r, &p) {
			return
		}
		form, err := app.Forms.Publish(r.Context(), formID, p)
		if err != nil {
			httpx.Fail(w, r, "db.publish_form", err)
			return
		}
		render.JSON(w, r, form)
	}
}

func UnpublishForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		if err := app.Forms.Unpublish(r.Context(), formID); err != nil {
			httpx.Fail(w, r, "db.unpublish_form", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func SetFormStatus(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		var body struct {
			Status model.FormStatus `json:"status"`
		}
		if !decode(w, r, &body) {
			return
		}
		if err := app.Forms.Transition(r.Context(), formID, body.Status); err != nil {
			httpx.Fail(w, r, "db.form_status", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func UpdateFormProtection(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		var p forms.Protection
		if !decode(w, r, &p) {
			return
		}
		if err := app.Forms.UpdateProtection(r.Context(), formID, p); err != nil {
			httpx.Fail(w, r, "db.form_protection", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func RegenerateFormQR(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		if err := app.Forms.RegenerateQR(r.Context(), formID); err != nil {
			httpx.Fail(w, r, "qr.regenerate", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func DuplicateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		var body struct {
			Title string `json:"title"`
		}
		if r.ContentLength != 0 && !decode(w, r, &body) {
			return
		}
		form, err := app.Forms.Duplicate(r.Context(), formID, actor(r), body.Title)
		if err != nil {
			httpx.Fail(w, r, "db.duplicate_form", err)
			return
		}
		created(w, r, form)
	}
}

func ListCollaborators(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		list, err := app.Forms.Collaborators(r.Context(), formID)
		if err != nil {
			httpx.LogInternalError(w, "db.list_collaborators", err)
			return
		}
		render.JSON(w, r, list)
	}
}

func AddCollaborator(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.OwnerAccess)
		if !ok {
			return
		}
		var body struct {
			Username string `json:"username"`
		}
		if !decode(w, r, &body) {
			return
		}
		account, err := app.Forms.AddCollaborator(r.Context(), formID, body.Username)
		if err != nil {
			httpx.Fail(w, r, "db.add_collaborator", err)
			return
		}
		created(w, r, account)
	}
}

func RemoveCollaborator(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.OwnerAccess)
		if !ok {
			return
		}
		accountID, ok := idParam(w, r, "accountID")
		if !ok {
			return
		}
		if err := app.Forms.RemoveCollaborator(r.Context(), formID, accountID); err != nil {
			httpx.Fail(w, r, "db.remove_collaborator", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
