package builder

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mbolis/survey-builder/captcha"
	"github.com/mbolis/survey-builder/log"
	"github.com/mbolis/survey-builder/model"
)

const dateLayout = "2006-01-02"

// FieldErrors maps field names to the messages to show next to them.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string, args ...any) {
	fe[field] = append(fe[field], fmt.Sprintf(msg, args...))
}

func (fe FieldErrors) Fields() []string {
	names := make([]string, 0, len(fe))
	for name := range fe {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Request struct {
	Values   url.Values
	RemoteIP string
}

type AnswerValue struct {
	QuestionID int64
	Value      any
}

type NewIdentity struct {
	DatasetID int64
	Data      model.Data
}

// Submission is a validated payload, ready for recording. At most one of
// RecordID and NewIdentity is set.
type Submission struct {
	FormID      int64
	Answers     []AnswerValue
	RecordID    *int64
	NewIdentity *NewIdentity
}

// Validate checks req against the schema. It never fails: any problem is
// reported in the returned FieldErrors, in which case the submission is nil.
func (b *Builder) Validate(ctx context.Context, schema *Schema, req Request) (*Submission, FieldErrors) {
	errs := FieldErrors{}
	if schema.Locked {
		errs.Add(PasswordField, "This form is password protected.")
		return nil, errs
	}

	sub := &Submission{FormID: schema.formID}
	env := map[string]any{}
	parsed := map[int64]any{}

	for _, f := range schema.Fields {
		if f.question == nil {
			continue
		}
		value, ok := parseField(f, req.Values[f.Name], errs)
		if ok {
			parsed[f.question.ID] = value
			env[model.VarName(f.question.ID)] = value
		}
	}

	for _, f := range schema.Fields {
		if f.question == nil {
			continue
		}
		if !f.question.Logic.Visible(env) {
			delete(parsed, f.question.ID)
			delete(env, model.VarName(f.question.ID))
			delete(errs, f.Name)
			continue
		}
		value, ok := parsed[f.question.ID]
		if !ok {
			if f.Required && len(errs[f.Name]) == 0 {
				errs.Add(f.Name, "This field is required.")
			}
			continue
		}
		sub.Answers = append(sub.Answers, AnswerValue{QuestionID: f.question.ID, Value: value})
	}

	b.resolveIdentity(schema, req.Values, sub, errs)

	if len(errs) == 0 {
		for _, f := range schema.Fields {
			if f.Kind == KindCaptcha {
				b.checkCaptcha(ctx, req, errs)
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return sub, nil
}

func (b *Builder) checkCaptcha(ctx context.Context, req Request, errs FieldErrors) {
	err := b.captcha.Verify(ctx, req.Values.Get(CaptchaField), req.RemoteIP)
	switch {
	case err == nil:
	case errors.Is(err, captcha.ErrInvalid):
		errs.Add(CaptchaField, "Invalid verification answer.")
	default:
		log.Warnf("captcha verification: %v", err)
		errs.Add(CaptchaField, "Verification is unavailable, please try again.")
	}
}

// parseField converts the raw values of a question field. ok is false when
// the field was left blank or is invalid, in which case errs says which.
func parseField(f Field, raw []string, errs FieldErrors) (value any, ok bool) {
	if f.Kind == KindMultiChoice {
		selected := []string{}
		seen := map[string]bool{}
		for _, v := range raw {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			if !hasChoice(f, v) {
				errs.Add(f.Name, "Select a valid choice. %s is not one of the available choices.", v)
				return nil, false
			}
			seen[v] = true
			selected = append(selected, v)
		}
		if len(selected) == 0 {
			return nil, false
		}
		return selected, true
	}

	var v string
	if len(raw) > 0 {
		v = strings.TrimSpace(raw[0])
	}
	if v == "" {
		return nil, false
	}

	switch f.Kind {
	case KindInteger:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs.Add(f.Name, "Enter a whole number.")
			return nil, false
		}
		return n, true
	case KindDate:
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			errs.Add(f.Name, "Enter a valid date.")
			return nil, false
		}
		return d.Format(dateLayout), true
	case KindChoice:
		if !hasChoice(f, v) {
			errs.Add(f.Name, "Select a valid choice. %s is not one of the available choices.", v)
			return nil, false
		}
		return v, true
	}
	return v, true
}

func hasChoice(f Field, value string) bool {
	for _, c := range f.Choices {
		if c.Value == value {
			return true
		}
	}
	return false
}

// resolveIdentity reads the identity step: the first selected record and the
// first non-empty new-identity payload. Both are kept, the recorder links the
// record when it resolves and falls back to the payload otherwise. A record id
// that does not parse counts as no selection.
func (b *Builder) resolveIdentity(schema *Schema, values url.Values, sub *Submission, errs FieldErrors) {
	for _, step := range schema.Identity {
		raw := strings.TrimSpace(values.Get(step.RecordField))
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		sub.RecordID = &id
		break
	}

	for _, step := range schema.Identity {
		data := model.Data{}
		for _, f := range step.NewIdentity {
			if v := strings.TrimSpace(values.Get(f.Name)); v != "" {
				data[f.Label] = v
			}
		}
		if len(data) == 0 {
			continue
		}

		for _, f := range step.NewIdentity {
			if _, ok := data[f.Label]; f.Required && !ok {
				errs.Add(f.Name, "This field is required.")
			}
		}
		sub.NewIdentity = &NewIdentity{DatasetID: step.DatasetID, Data: data}
		return
	}
}
