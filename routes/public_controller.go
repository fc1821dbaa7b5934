package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/mbolis/survey-builder/app"
	"github.com/mbolis/survey-builder/builder"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/log"
	"github.com/mbolis/survey-builder/metrics"
	"github.com/mbolis/survey-builder/model"
	"github.com/mbolis/survey-builder/responses"
	"github.com/mbolis/survey-builder/routes/middlewares"
	"github.com/mbolis/survey-builder/unlock"
)

// UnlockHeader carries the token returned by the unlock endpoint.
const UnlockHeader = "X-Unlock-Token"

// publishedForm loads the form named by {slug}, and whether the caller has
// unlocked it.
func publishedForm(app app.App, w http.ResponseWriter, r *http.Request) (*model.Form, bool, bool) {
	slug := chi.URLParam(r, "slug")
	form, err := app.Forms.Published(r.Context(), slug)
	if err != nil {
		httpx.Fail(w, r, "public.get_form", err)
		return nil, false, false
	}
	unlocked := app.Unlock.Verify(*form, r.Header.Get(UnlockHeader)) == nil
	return form, unlocked, true
}

func schemaFor(app app.App, w http.ResponseWriter, r *http.Request) (*model.Form, *builder.Schema, bool) {
	form, unlocked, ok := publishedForm(app, w, r)
	if !ok {
		return nil, nil, false
	}
	def, err := app.Forms.Definition(r.Context(), *form)
	if err != nil {
		httpx.LogInternalError(w, "db.get_definition", err)
		return nil, nil, false
	}
	return form, app.Builder.Build(def, unlocked), true
}

func PublicGetSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, schema, ok := schemaFor(app, w, r)
		if !ok {
			return
		}
		render.JSON(w, r, schema)
	}
}

func PublicUnlockSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, _, ok := publishedForm(app, w, r)
		if !ok {
			return
		}

		var body struct {
			Password string `json:"password"`
		}
		if !decode(w, r, &body) {
			return
		}

		token, expires, err := app.Unlock.Unlock(*form, body.Password)
		switch {
		case errors.Is(err, unlock.ErrWrongPassword):
			httpx.Invalid(w, r, map[string][]string{builder.PasswordField: {"Wrong password."}})
			return
		case err != nil:
			httpx.BadRequest(w, r, "This form is not password protected")
			return
		}

		render.JSON(w, r, map[string]any{
			"unlock_token": token,
			"expires_at":   expires.UTC().Format(time.RFC3339),
		})
	}
}

func PublicSubmitSurvey(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, schema, ok := schemaFor(app, w, r)
		if !ok {
			return
		}

		values, err := submissionValues(r)
		if err != nil {
			log.Debugf("public.submit.parse_body: %v", err)
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		ip := httpx.ClientIP(r)
		sub, errs := app.Builder.Validate(r.Context(), schema, builder.Request{Values: values, RemoteIP: ip})
		if len(errs) > 0 {
			metrics.Submissions.WithLabelValues(metrics.Invalid).Inc()
			httpx.Invalid(w, r, errs)
			return
		}

		meta := responses.Meta{IP: ip, UserAgent: r.UserAgent()}
		if c, err := r.Cookie("session_key"); err == nil {
			meta.SessionKey = c.Value
		}
		if a, ok := middlewares.Actor(r.Context()); ok {
			meta.AccountID = &a.ID
		}

		resp, err := app.Recorder.Record(r.Context(), *form, sub, meta)
		if err != nil {
			if fault.IsClientError(err) {
				metrics.Submissions.WithLabelValues(metrics.Rejected).Inc()
			} else {
				metrics.Submissions.WithLabelValues(metrics.Failed).Inc()
			}
			httpx.Fail(w, r, "db.record_response", err)
			return
		}

		metrics.Submissions.WithLabelValues(metrics.Recorded).Inc()
		created(w, r, map[string]any{
			"id":           resp.ID,
			"submitted_at": resp.SubmittedAt,
			"answers":      len(resp.Answers),
		})
	}
}

// submissionValues accepts a form-encoded body or a flat JSON object whose
// values are scalars or lists of scalars.
func submissionValues(r *http.Request) (url.Values, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	values := url.Values{}
	for key, v := range body {
		switch v := v.(type) {
		case nil:
		case []any:
			for _, item := range v {
				values.Add(key, model.Stringify(item))
			}
		case map[string]any:
			return nil, fmt.Errorf("field %s: objects are not accepted", key)
		default:
			values.Add(key, model.Stringify(v))
		}
	}
	return values, nil
}

func PublicSurveyQRCode(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := app.Forms.QRCode(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			httpx.Fail(w, r, "public.qr_code", err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(png)
	}
}

// identityAttachment resolves {attachmentID} within an unlocked published form.
func identityAttachment(app app.App, w http.ResponseWriter, r *http.Request) (*model.Attachment, bool) {
	form, unlocked, ok := publishedForm(app, w, r)
	if !ok {
		return nil, false
	}
	if form.HasPassword() && !unlocked {
		httpx.Fail(w, r, "public.identity", fault.NewClientError("This form is password protected", fault.ErrForbidden))
		return nil, false
	}
	if !form.Settings.IdentityEnabled() {
		httpx.LogNotFound(w, "public.identity", form.ID)
		return nil, false
	}
	attachmentID, ok := idParam(w, r, "attachmentID")
	if !ok {
		return nil, false
	}
	att, err := app.Forms.Attachment(r.Context(), form.ID, attachmentID)
	if err != nil {
		httpx.Fail(w, r, "public.identity.attachment", err)
		return nil, false
	}
	return att, true
}

// PublicIdentityFilter lists the values of the next cascading filter column,
// given the values already chosen for the previous ones.
func PublicIdentityFilter(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		att, ok := identityAttachment(app, w, r)
		if !ok {
			return
		}
		column, values, err := app.MasterData.FilterValues(r.Context(), *att, r.URL.Query()["chosen"])
		if err != nil {
			httpx.Fail(w, r, "public.identity.filter", err)
			return
		}
		render.JSON(w, r, map[string]any{"column": column, "values": values})
	}
}

func PublicIdentityRecords(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		att, ok := identityAttachment(app, w, r)
		if !ok {
			return
		}
		choices, err := app.MasterData.FilteredRecords(r.Context(), *att, r.URL.Query()["chosen"])
		if err != nil {
			httpx.Fail(w, r, "public.identity.records", err)
			return
		}
		render.JSON(w, r, choices)
	}
}
