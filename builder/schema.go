// Package builder turns a form definition into the input schema shown to
// respondents, and validates submissions against it.
package builder

import (
	"fmt"

	"github.com/mbolis/survey-builder/captcha"
	"github.com/mbolis/survey-builder/forms"
	"github.com/mbolis/survey-builder/model"
)

type FieldKind string

const (
	KindText        FieldKind = "text"
	KindInteger     FieldKind = "integer"
	KindDate        FieldKind = "date"
	KindChoice      FieldKind = "choice"
	KindMultiChoice FieldKind = "multi_choice"
	KindPassword    FieldKind = "password"
	KindCaptcha     FieldKind = "captcha"
)

const (
	PasswordField = "password"
	CaptchaField  = "captcha"
)

type Choice struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	ImageURL string `json:"image_url,omitempty"`
}

type Field struct {
	Name      string    `json:"name"`
	Kind      FieldKind `json:"kind"`
	Label     string    `json:"label"`
	Required  bool      `json:"required"`
	Choices   []Choice  `json:"choices,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	SectionID *int64    `json:"section_id,omitempty"`
	ShowIf    string    `json:"show_if,omitempty"`

	question *model.Question
}

// IdentityStep lets a respondent pick an existing record of an attached
// dataset, or declare a new identity by filling its visible columns.
type IdentityStep struct {
	AttachmentID  int64    `json:"attachment_id"`
	DatasetID     int64    `json:"dataset_id"`
	DatasetName   string   `json:"dataset_name"`
	RecordField   string   `json:"record_field"`
	FilterColumns []string `json:"filter_columns"`
	NewIdentity   []Field  `json:"new_identity"`

	attachment model.Attachment
}

type FormInfo struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

type Schema struct {
	Form     FormInfo        `json:"form"`
	Locked   bool            `json:"locked"`
	Sections []model.Section `json:"sections,omitempty"`
	Identity []IdentityStep  `json:"identity,omitempty"`
	Fields   []Field         `json:"fields"`

	formID int64
}

func QuestionField(questionID int64) string {
	return fmt.Sprintf("question_%d", questionID)
}

func RecordField(datasetID int64) string {
	return fmt.Sprintf("dataset_%d", datasetID)
}

func NewIdentityField(datasetID int64, column string) string {
	return fmt.Sprintf("new_%d_%s", datasetID, column)
}

type Builder struct {
	captcha captcha.Verifier
}

func New(verifier captcha.Verifier) *Builder {
	return &Builder{captcha: verifier}
}

// Build returns the schema for def. When the form has a password and the
// caller has not unlocked it, the schema only holds the password prompt.
func (b *Builder) Build(def *forms.Definition, unlocked bool) *Schema {
	form := def.Form
	schema := &Schema{
		Form: FormInfo{
			Slug:        form.Slug,
			Title:       form.Title,
			Description: form.Description,
			ImageURL:    form.ImageURL,
		},
		formID: form.ID,
	}

	if form.HasPassword() && !unlocked {
		schema.Locked = true
		schema.Fields = []Field{{
			Name:     PasswordField,
			Kind:     KindPassword,
			Label:    "Password",
			Required: true,
		}}
		return schema
	}

	schema.Sections = def.Sections
	if form.Settings.IdentityEnabled() {
		for _, att := range def.Attachments {
			schema.Identity = append(schema.Identity, identityStep(att))
		}
	}

	schema.Fields = make([]Field, 0, len(def.Questions)+1)
	for i := range def.Questions {
		schema.Fields = append(schema.Fields, questionField(&def.Questions[i]))
	}
	if form.RequireCaptcha {
		schema.Fields = append(schema.Fields, Field{
			Name:     CaptchaField,
			Kind:     KindCaptcha,
			Label:    "Verification",
			Required: true,
		})
	}
	return schema
}

func questionField(q *model.Question) Field {
	f := Field{
		Name:      QuestionField(q.ID),
		Label:     q.Text,
		Required:  q.IsRequired,
		ImageURL:  q.ImageURL,
		SectionID: q.SectionID,
		ShowIf:    q.Logic.ShowIf,
		question:  q,
	}

	switch q.Type {
	case model.NumericInput:
		f.Kind = KindInteger
	case model.DateInput:
		f.Kind = KindDate
	case model.SingleSelect, model.ImageSelect:
		f.Kind = KindChoice
	case model.MultiSelect:
		f.Kind = KindMultiChoice
	default:
		f.Kind = KindText
	}

	for _, o := range q.Options {
		f.Choices = append(f.Choices, Choice{Value: o.Value, Label: o.Text, ImageURL: o.ImageURL})
	}
	return f
}

func identityStep(att model.Attachment) IdentityStep {
	step := IdentityStep{
		AttachmentID:  att.ID,
		DatasetID:     att.DatasetID,
		DatasetName:   att.DatasetName,
		RecordField:   RecordField(att.DatasetID),
		FilterColumns: att.FilterColumns,
		attachment:    att,
	}
	if step.FilterColumns == nil {
		step.FilterColumns = []string{}
	}
	for _, c := range att.VisibleColumns() {
		step.NewIdentity = append(step.NewIdentity, Field{
			Name:     NewIdentityField(att.DatasetID, c.Name),
			Kind:     KindText,
			Label:    c.Name,
			Required: c.IsRequired,
		})
	}
	return step
}
