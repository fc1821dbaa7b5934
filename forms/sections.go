package forms

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/model"
)

type SectionInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

func (in *SectionInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fault.Client("section title is required")
	}
	return nil
}

// CreateSection appends a section at the end of the form.
func (s *Store) CreateSection(ctx context.Context, formID int64, in SectionInput) (*model.Section, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	sec := model.Section{FormID: formID, Title: in.Title, Description: in.Description, ImageURL: in.ImageURL}
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &sec.Position, tx.Rebind(`
			SELECT COALESCE(MAX(position), 0) + 1 FROM form_section WHERE form_id = ?`),
			formID,
		)
		if err != nil {
			return err
		}
		return insertSection(ctx, tx, &sec)
	})
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

func insertSection(ctx context.Context, tx *sqlx.Tx, sec *model.Section) error {
	err := tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO form_section (form_id, title, description, position, image_url)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`),
		sec.FormID, sec.Title, sec.Description, sec.Position, sec.ImageURL,
	).Scan(&sec.ID)
	return database.Translate(err)
}

func (s *Store) UpdateSection(ctx context.Context, formID, sectionID int64, in SectionInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE form_section SET title = ?, description = ?, image_url = ?
		WHERE id = ? AND form_id = ?`),
		in.Title, in.Description, in.ImageURL, sectionID, formID,
	)
	return affected(res, err)
}

// DeleteSection removes a section together with its questions.
func (s *Store) DeleteSection(ctx context.Context, formID, sectionID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM form_section WHERE id = ? AND form_id = ?`),
		sectionID, formID,
	)
	return affected(res, err)
}

func (s *Store) Sections(ctx context.Context, formID int64) ([]model.Section, error) {
	return sections(ctx, s.db, formID)
}

func sections(ctx context.Context, q queryer, formID int64) ([]model.Section, error) {
	secs := []model.Section{}
	err := sqlx.SelectContext(ctx, q, &secs, q.Rebind(`
		SELECT id, form_id, title, description, position, image_url
		FROM form_section
		WHERE form_id = ?
		ORDER BY position, id`),
		formID,
	)
	return secs, err
}

type queryer interface {
	sqlx.QueryerContext
	Rebind(string) string
}
