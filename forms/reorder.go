package forms

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/fault"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func (d Direction) Valid() bool {
	return d == Up || d == Down
}

type sibling struct {
	ID       int64 `db:"id"`
	Position int   `db:"position"`
}

// MoveQuestion swaps a question with its neighbour among the questions of the
// same section, or of the same form outside any section.
func (s *Store) MoveQuestion(ctx context.Context, formID, questionID int64, dir Direction) error {
	if !dir.Valid() {
		return fault.Client("direction must be up or down")
	}

	return database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		q, err := question(ctx, tx, formID, questionID)
		if err != nil {
			return err
		}

		scope, args := "section_id IS NULL", []any{formID}
		if q.SectionID != nil {
			scope, args = "section_id = ?", []any{formID, *q.SectionID}
		}

		var siblings []sibling
		err = tx.SelectContext(ctx, &siblings, tx.Rebind(`
			SELECT id, position FROM form_question
			WHERE form_id = ? AND `+scope+`
			ORDER BY position, id`),
			args...,
		)
		if err != nil {
			return err
		}
		return swap(ctx, tx, "form_question", siblings, questionID, dir)
	})
}

// MoveSection swaps a section with its neighbour within the form.
func (s *Store) MoveSection(ctx context.Context, formID, sectionID int64, dir Direction) error {
	if !dir.Valid() {
		return fault.Client("direction must be up or down")
	}

	return database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var siblings []sibling
		err := tx.SelectContext(ctx, &siblings, tx.Rebind(`
			SELECT id, position FROM form_section
			WHERE form_id = ?
			ORDER BY position, id`),
			formID,
		)
		if err != nil {
			return err
		}
		return swap(ctx, tx, "form_section", siblings, sectionID, dir)
	})
}

// swap exchanges the positions of the item and its neighbour. Siblings that
// share a position are renumbered first, so the swap always changes the order.
// Positions go through a negative placeholder because section positions are
// unique per form.
func swap(ctx context.Context, tx *sqlx.Tx, table string, siblings []sibling, id int64, dir Direction) error {
	idx := -1
	for i, sib := range siblings {
		if sib.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fault.ErrNotFound
	}

	target := idx - 1
	if dir == Down {
		target = idx + 1
	}
	if target < 0 || target >= len(siblings) {
		return fault.NewClientError("Cannot move in that direction", fault.ErrBoundary)
	}

	if hasDuplicatePositions(siblings) {
		if err := renumber(ctx, tx, table, siblings); err != nil {
			return err
		}
	}

	a, b := siblings[idx], siblings[target]
	update := tx.Rebind(fmt.Sprintf(`UPDATE %s SET position = ? WHERE id = ?`, table))
	for _, step := range []sibling{{a.ID, -a.Position - 1}, {b.ID, a.Position}, {a.ID, b.Position}} {
		if _, err := tx.ExecContext(ctx, update, step.Position, step.ID); err != nil {
			return err
		}
	}
	return nil
}

func hasDuplicatePositions(siblings []sibling) bool {
	for i := 1; i < len(siblings); i++ {
		if siblings[i].Position == siblings[i-1].Position {
			return true
		}
	}
	return false
}

// renumber assigns positions 1..n in the current order, updating siblings in place.
func renumber(ctx context.Context, tx *sqlx.Tx, table string, siblings []sibling) error {
	update := tx.Rebind(fmt.Sprintf(`UPDATE %s SET position = ? WHERE id = ?`, table))
	for i := range siblings {
		if _, err := tx.ExecContext(ctx, update, -i-1, siblings[i].ID); err != nil {
			return err
		}
	}
	for i := range siblings {
		siblings[i].Position = i + 1
		if _, err := tx.ExecContext(ctx, update, siblings[i].Position, siblings[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// Renumbering is one change made by FixOrdering.
type Renumbering struct {
	FormID     int64 `json:"form_id"`
	QuestionID int64 `json:"question_id"`
	From       int   `json:"from"`
	To         int   `json:"to"`
}

// FixOrdering renumbers the questions of a form 1..n by id, or of every form
// when formID is zero. With dryRun nothing is written.
func (s *Store) FixOrdering(ctx context.Context, formID int64, dryRun bool) ([]Renumbering, error) {
	var changes []Renumbering
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var rows []struct {
			ID       int64 `db:"id"`
			FormID   int64 `db:"form_id"`
			Position int   `db:"position"`
		}
		err := tx.SelectContext(ctx, &rows, tx.Rebind(`
			SELECT id, form_id, position FROM form_question
			WHERE form_id = ? OR ? = 0
			ORDER BY form_id, id`),
			formID, formID,
		)
		if err != nil {
			return err
		}

		next := 0
		for i, r := range rows {
			if i == 0 || rows[i-1].FormID != r.FormID {
				next = 1
			}
			if r.Position != next {
				changes = append(changes, Renumbering{FormID: r.FormID, QuestionID: r.ID, From: r.Position, To: next})
			}
			next++
		}
		if dryRun {
			return nil
		}

		for _, c := range changes {
			_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE form_question SET position = ? WHERE id = ?`), c.To, c.QuestionID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return changes, err
}
