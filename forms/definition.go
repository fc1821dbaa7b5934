package forms

import (
	"context"

	"github.com/mbolis/survey-builder/model"
)

// Definition is everything needed to render or validate a form.
type Definition struct {
	Form        model.Form
	Sections    []model.Section
	Questions   []model.Question
	Attachments []model.Attachment
}

func (s *Store) Definition(ctx context.Context, form model.Form) (*Definition, error) {
	secs, err := sections(ctx, s.db, form.ID)
	if err != nil {
		return nil, err
	}
	qs, err := questions(ctx, s.db, form.ID)
	if err != nil {
		return nil, err
	}
	atts, err := attachments(ctx, s.db, `a.form_id = ?`, form.ID)
	if err != nil {
		return nil, err
	}
	return &Definition{Form: form, Sections: secs, Questions: qs, Attachments: atts}, nil
}
