package forms

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/model"
)

const questionColumns = `
	q.id, q.form_id, q.section_id, q.text, q.question_type, q.position,
	q.is_required, q.logic, q.image_url`

// CreateQuestion appends a question to its sibling list: the section when one
// is given, else the questions of the form outside any section.
func (s *Store) CreateQuestion(ctx context.Context, formID int64, q model.Question) (*model.Question, error) {
	if err := q.Normalize(); err != nil {
		return nil, fault.NewClientError(err.Error(), err)
	}
	q.FormID = formID

	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := checkSection(ctx, tx, formID, q.SectionID); err != nil {
			return err
		}
		pos, err := nextQuestionPosition(ctx, tx, formID, q.SectionID)
		if err != nil {
			return err
		}
		q.Position = pos
		return insertQuestion(ctx, tx, &q)
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// UpdateQuestion replaces a question's definition and option list. Moving it to
// another section puts it last there.
func (s *Store) UpdateQuestion(ctx context.Context, formID, questionID int64, q model.Question) (*model.Question, error) {
	if err := q.Normalize(); err != nil {
		return nil, fault.NewClientError(err.Error(), err)
	}

	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := question(ctx, tx, formID, questionID)
		if err != nil {
			return err
		}
		if err = checkSection(ctx, tx, formID, q.SectionID); err != nil {
			return err
		}

		q.ID, q.FormID, q.Position = questionID, formID, current.Position
		if !sameSection(current.SectionID, q.SectionID) {
			if q.Position, err = nextQuestionPosition(ctx, tx, formID, q.SectionID); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE form_question
			SET section_id = ?, text = ?, question_type = ?, position = ?, is_required = ?, logic = ?, image_url = ?
			WHERE id = ?`),
			q.SectionID, q.Text, q.Type, q.Position, q.IsRequired, q.Logic, q.ImageURL, questionID,
		)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM question_option WHERE question_id = ?`), questionID)
		if err != nil {
			return err
		}
		return insertOptions(ctx, tx, questionID, q.Options)
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Store) DeleteQuestion(ctx context.Context, formID, questionID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM form_question WHERE id = ? AND form_id = ?`),
		questionID, formID,
	)
	return affected(res, err)
}

func (s *Store) Question(ctx context.Context, formID, questionID int64) (*model.Question, error) {
	q, err := question(ctx, s.db, formID, questionID)
	if err != nil {
		return nil, err
	}
	q.Options, err = options(ctx, s.db, `o.question_id = ?`, questionID)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Questions returns the questions of a form in display order: questions
// outside sections first, then each section's questions in section order.
func (s *Store) Questions(ctx context.Context, formID int64) ([]model.Question, error) {
	return questions(ctx, s.db, formID)
}

func questions(ctx context.Context, q queryer, formID int64) ([]model.Question, error) {
	qs := []model.Question{}
	err := sqlx.SelectContext(ctx, q, &qs, q.Rebind(`
		SELECT `+questionColumns+`
		FROM form_question q
		LEFT OUTER JOIN form_section s ON (s.id = q.section_id)
		WHERE q.form_id = ?
		ORDER BY
			CASE WHEN q.section_id IS NULL THEN 0 ELSE 1 END,
			s.position, s.id, q.position, q.id`),
		formID,
	)
	if err != nil {
		return nil, err
	}

	opts, err := options(ctx, q, `o.question_id IN (SELECT id FROM form_question WHERE form_id = ?)`, formID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[int64][]model.Option, len(qs))
	for _, o := range opts {
		byQuestion[o.QuestionID] = append(byQuestion[o.QuestionID], o)
	}
	for i := range qs {
		qs[i].Options = byQuestion[qs[i].ID]
		if qs[i].Options == nil {
			qs[i].Options = []model.Option{}
		}
	}
	return qs, nil
}

func question(ctx context.Context, q queryer, formID, questionID int64) (*model.Question, error) {
	qu := model.Question{}
	err := sqlx.GetContext(ctx, q, &qu, q.Rebind(`
		SELECT `+questionColumns+`
		FROM form_question q
		WHERE q.id = ? AND q.form_id = ?`),
		questionID, formID,
	)
	if err != nil {
		return nil, database.Translate(err)
	}
	return &qu, nil
}

func options(ctx context.Context, q queryer, where string, args ...any) ([]model.Option, error) {
	opts := []model.Option{}
	err := sqlx.SelectContext(ctx, q, &opts, q.Rebind(`
		SELECT o.id, o.question_id, o.text, o.value, o.image_url, o.position
		FROM question_option o
		WHERE `+where+`
		ORDER BY o.question_id, o.position, o.id`),
		args...,
	)
	return opts, err
}

func insertQuestion(ctx context.Context, tx *sqlx.Tx, q *model.Question) error {
	err := tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO form_question (form_id, section_id, text, question_type, position, is_required, logic, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		q.FormID, q.SectionID, q.Text, q.Type, q.Position, q.IsRequired, q.Logic, q.ImageURL,
	).Scan(&q.ID)
	if err != nil {
		return database.Translate(err)
	}
	return insertOptions(ctx, tx, q.ID, q.Options)
}

func insertOptions(ctx context.Context, tx *sqlx.Tx, questionID int64, opts []model.Option) error {
	if len(opts) == 0 {
		return nil
	}
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
		INSERT INTO question_option (question_id, text, value, image_url, position)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range opts {
		opts[i].QuestionID = questionID
		err = stmt.QueryRowxContext(ctx, questionID, opts[i].Text, opts[i].Value, opts[i].ImageURL, opts[i].Position).
			Scan(&opts[i].ID)
		if err != nil {
			return database.Translate(err)
		}
	}
	return nil
}

func checkSection(ctx context.Context, tx *sqlx.Tx, formID int64, sectionID *int64) error {
	if sectionID == nil {
		return nil
	}
	var found int64
	err := tx.GetContext(ctx, &found, tx.Rebind(`
		SELECT id FROM form_section WHERE id = ? AND form_id = ?`),
		*sectionID, formID,
	)
	if errors.Is(database.Translate(err), fault.ErrNotFound) {
		return fault.NewClientError("section does not belong to this form", fault.ErrNotFound)
	}
	return err
}

func nextQuestionPosition(ctx context.Context, tx *sqlx.Tx, formID int64, sectionID *int64) (pos int, err error) {
	if sectionID == nil {
		err = tx.GetContext(ctx, &pos, tx.Rebind(`
			SELECT COALESCE(MAX(position), 0) + 1 FROM form_question
			WHERE form_id = ? AND section_id IS NULL`),
			formID,
		)
	} else {
		err = tx.GetContext(ctx, &pos, tx.Rebind(`
			SELECT COALESCE(MAX(position), 0) + 1 FROM form_question
			WHERE form_id = ? AND section_id = ?`),
			formID, *sectionID,
		)
	}
	return
}

func sameSection(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
