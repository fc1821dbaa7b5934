package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/survey-builder/app"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/forms"
	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/metrics"
	"github.com/mbolis/survey-builder/model"
)

func ListSections(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		list, err := app.Forms.Sections(r.Context(), formID)
		if err != nil {
			httpx.LogInternalError(w, "db.list_sections", err)
			return
		}
		render.JSON(w, r, list)
	}
}

func CreateSection(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		var in forms.SectionInput
		if !decode(w, r, &in) {
			return
		}
		sec, err := app.Forms.CreateSection(r.Context(), formID, in)
		if err != nil {
			httpx.Fail(w, r, "db.insert_section", err)
			return
		}
		created(w, r, sec)
	}
}

func UpdateSection(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		sectionID, ok := idParam(w, r, "sectionID")
		if !ok {
			return
		}
		var in forms.SectionInput
		if !decode(w, r, &in) {
			return
		}
		if err := app.Forms.UpdateSection(r.Context(), formID, sectionID, in); err != nil {
			httpx.Fail(w, r, "db.update_section", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteSection(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		sectionID, ok := idParam(w, r, "sectionID")
		if !ok {
			return
		}
		if err := app.Forms.DeleteSection(r.Context(), formID, sectionID); err != nil {
			httpx.Fail(w, r, "db.delete_section", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListQuestions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		list, err := app.Forms.Questions(r.Context(), formID)
		if err != nil {
			httpx.LogInternalError(w, "db.list_questions", err)
			return
		}
		render.JSON(w, r, list)
	}
}

func CreateQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		var q model.Question
		if !decode(w, r, &q) {
			return
		}
		saved, err := app.Forms.CreateQuestion(r.Context(), formID, q)
		if err != nil {
			httpx.Fail(w, r, "db.insert_question", err)
			return
		}
		created(w, r, saved)
	}
}

func GetQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		questionID, ok := idParam(w, r, "questionID")
		if !ok {
			return
		}
		q, err := app.Forms.Question(r.Context(), formID, questionID)
		if err != nil {
			httpx.Fail(w, r, "db.get_question", err)
			return
		}
		render.JSON(w, r, q)
	}
}

func UpdateQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		questionID, ok := idParam(w, r, "questionID")
		if !ok {
			return
		}
		var q model.Question
		if !decode(w, r, &q) {
			return
		}
		saved, err := app.Forms.UpdateQuestion(r.Context(), formID, questionID, q)
		if err != nil {
			httpx.Fail(w, r, "db.update_question", err)
			return
		}
		render.JSON(w, r, saved)
	}
}

func DeleteQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		questionID, ok := idParam(w, r, "questionID")
		if !ok {
			return
		}
		if err := app.Forms.DeleteQuestion(r.Context(), formID, questionID); err != nil {
			httpx.Fail(w, r, "db.delete_question", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type moveRequest struct {
	Direction forms.Direction `json:"direction"`
}

func moveResult(err error) string {
	switch {
	case err == nil:
		return "moved"
	case errors.Is(err, fault.ErrBoundary):
		return "boundary"
	}
	return "error"
}

func MoveQuestion(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		questionID, ok := idParam(w, r, "questionID")
		if !ok {
			return
		}
		var body moveRequest
		if !decode(w, r, &body) {
			return
		}
		err := app.Forms.MoveQuestion(r.Context(), formID, questionID, body.Direction)
		metrics.Reorders.WithLabelValues("question", moveResult(err)).Inc()
		if err != nil {
			httpx.Fail(w, r, "db.move_question", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func MoveSection(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		sectionID, ok := idParam(w, r, "sectionID")
		if !ok {
			return
		}
		var body moveRequest
		if !decode(w, r, &body) {
			return
		}
		err := app.Forms.MoveSection(r.Context(), formID, sectionID, body.Direction)
		metrics.Reorders.WithLabelValues("section", moveResult(err)).Inc()
		if err != nil {
			httpx.Fail(w, r, "db.move_section", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
