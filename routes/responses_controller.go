package routes

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"github.com/mbolis/survey-builder/app"
	"github.com/mbolis/survey-builder/export"
	"github.com/mbolis/survey-builder/forms"
	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/log"
	"github.com/mbolis/survey-builder/metrics"
	"github.com/mbolis/survey-builder/model"
	"github.com/mbolis/survey-builder/responses"
)

type responsePage struct {
	Summary   *responses.Summary `json:"summary"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	Responses []model.Response   `json:"responses"`
}

func ListResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		limit, offset := httpx.Page(r, 50)

		summary, err := app.Responses.Summary(r.Context(), formID)
		if err != nil {
			httpx.LogInternalError(w, "db.summarize_responses", err)
			return
		}
		list, err := app.Responses.List(r.Context(), formID, limit, offset)
		if err != nil {
			httpx.LogInternalError(w, "db.list_responses", err)
			return
		}
		render.JSON(w, r, responsePage{summary, limit, offset, list})
	}
}

func DeleteResponse(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		responseID, ok := idParam(w, r, "responseID")
		if !ok {
			return
		}
		if err := app.Responses.Delete(r.Context(), formID, responseID); err != nil {
			httpx.Fail(w, r, "db.delete_response", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ResponseStatistics(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		atts, err := app.Forms.Attachments(r.Context(), formID)
		if err != nil {
			httpx.LogInternalError(w, "db.list_attachments", err)
			return
		}
		stats, err := app.Responses.FilterStatistics(r.Context(), formID, atts)
		if err != nil {
			httpx.LogInternalError(w, "db.filter_statistics", err)
			return
		}
		render.JSON(w, r, stats)
	}
}

// ExportResponses streams every response of a form as CSV or XLSX. Once the
// first byte is out errors can only be logged, so the expected row count is
// announced up front in a header.
func ExportResponses(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, ok := formParam(app, w, r, forms.EditAccess)
		if !ok {
			return
		}
		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			httpx.BadRequest(w, r, err.Error())
			return
		}

		form, err := app.Forms.Get(r.Context(), formID)
		if err != nil {
			httpx.Fail(w, r, "db.get_form", err)
			return
		}
		plan, err := app.Exporter.Plan(r.Context(), formID)
		if err != nil {
			httpx.LogInternalError(w, "export.plan", err)
			return
		}
		total, err := app.Exporter.Count(r.Context(), formID)
		if err != nil {
			httpx.LogInternalError(w, "export.count", err)
			return
		}

		out, err := export.NewWriter(format, w)
		if err != nil {
			httpx.LogInternalError(w, "export.writer", err)
			return
		}

		h := w.Header()
		h.Set("Content-Type", format.ContentType())
		h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(form.Slug, format, time.Now())))
		h.Set(export.TotalHeader, strconv.Itoa(total))

		started := time.Now()
		n, err := app.Exporter.Write(r.Context(), formID, plan, out)
		metrics.ExportedRows.WithLabelValues(string(format)).Add(float64(n))
		metrics.ExportDuration.WithLabelValues(string(format)).Observe(time.Since(started).Seconds())
		if err != nil {
			log.Errorf("export.write: form %d, %d of %d rows: %s", formID, n, total, err)
			return
		}
		log.Infof("export.write: form %d, %d rows as %s", formID, n, format)
	}
}
