package forms

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/model"
)

// Duplicate copies a form into a new draft owned by owner: attachments,
// sections, questions with their options, and collaborators. Responses and
// the QR artifact are not copied.
func (s *Store) Duplicate(ctx context.Context, formID int64, owner model.Actor, title string) (*model.Form, error) {
	src, err := s.Get(ctx, formID)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = "Copy of " + src.Title
	}

	now := s.now().UTC()
	dup := *src
	dup.ID = 0
	dup.Title = title
	dup.Slug = NewSlug(title)
	dup.OwnerID = owner.ID
	dup.Status = model.StatusDraft
	dup.PublishedAt = nil
	dup.QRCode = nil
	dup.CreatedAt, dup.UpdatedAt = now, now

	err = database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := insertForm(ctx, tx, &dup); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO form_attachment (form_id, dataset_id, position, hidden_columns, display_column, filter_columns)
			SELECT ?, dataset_id, position, hidden_columns, display_column, filter_columns
			FROM form_attachment WHERE form_id = ?`),
			dup.ID, formID,
		)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO form_collaborator (form_id, account_id, invited_at)
			SELECT ?, account_id, ? FROM form_collaborator WHERE form_id = ? AND account_id != ?`),
			dup.ID, now, formID, owner.ID,
		)
		if err != nil {
			return err
		}

		secs, err := sections(ctx, tx, formID)
		if err != nil {
			return err
		}
		sectionIDs := make(map[int64]int64, len(secs))
		for _, sec := range secs {
			old := sec.ID
			sec.FormID = dup.ID
			if err := insertSection(ctx, tx, &sec); err != nil {
				return err
			}
			sectionIDs[old] = sec.ID
		}

		qs, err := questions(ctx, tx, formID)
		if err != nil {
			return err
		}
		for _, q := range qs {
			q.FormID = dup.ID
			if q.SectionID != nil {
				id := sectionIDs[*q.SectionID]
				q.SectionID = &id
			}
			if err := insertQuestion(ctx, tx, &q); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dup, nil
}
