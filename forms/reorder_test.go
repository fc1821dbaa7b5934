package forms

import (
	"testing"

	"github.com/mbolis/survey-builder/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (fx *fixture) positions(t *testing.T, table string, ids ...int64) []int {
	var out []int
	for _, id := range ids {
		var pos int
		require.NoError(t, fx.db.Get(&pos, `SELECT position FROM `+table+` WHERE id = ?`, id))
		out = append(out, pos)
	}
	return out
}

func TestMoveQuestionRoundTrip(t *testing.T) {
	fx := setup(t)
	f := fx.form(t, "Reorder")
	q1 := fx.question(t, f.ID, nil, "one")
	q2 := fx.question(t, f.ID, nil, "two")
	q3 := fx.question(t, f.ID, nil, "three")

	require.NoError(t, fx.store.MoveQuestion(fx.ctx, f.ID, q2.ID, Up))
	assert.Equal(t, []int{2, 1, 3}, fx.positions(t, "form_question", q1.ID, q2.ID, q3.ID))

	require.NoError(t, fx.store.MoveQuestion(fx.ctx, f.ID, q2.ID, Down))
	assert.Equal(t, []int{1, 2, 3}, fx.positions(t, "form_question", q1.ID, q2.ID, q3.ID))

	require.NoError(t, fx.store.MoveQuestion(fx.ctx, f.ID, q2.ID, Down))
	require.NoError(t, fx.store.MoveQuestion(fx.ctx, f.ID, q2.ID, Up))
	assert.Equal(t, []int{1, 2, 3}, fx.positions(t, "form_question", q1.ID, q2.ID, q3.ID))
}

func TestMoveQuestionAtBoundary(t *testing.T) {
	fx := setup(t)
	f := fx.form(t, "Reorder")
	q1 := fx.question(t, f.ID, nil, "one")
	q2 := fx.question(t, f.ID, nil, "two")

	err := fx.store.MoveQuestion(fx.ctx, f.ID, q1.ID, Up)
	assert.ErrorIs(t, err, fault.ErrBoundary)
	assert.Equal(t, "Cannot move in that direction", fault.Message(err, ""))

	assert.ErrorIs(t, fx.store.MoveQuestion(fx.ctx, f.ID, q2.ID, Down), fault.ErrBoundary)
	assert.Equal(t, []int{1, 2}, fx.positions(t, "form_question", q1.ID, q2.ID))

	assert.True(t, fault.IsClientError(fx.store.MoveQuestion(fx.ctx, f.ID, q1.ID, "sideways")))
	assert.ErrorIs(t, fx.store.MoveQuestion(fx.ctx, f.ID, 9999, Up), fault.ErrNotFound)
}

func TestMoveQuestionStaysInSection(t *testing.T) {
	fx := setup(t)
	f := fx.form(t, "Reorder")
	sec, err := fx.store.CreateSection(fx.ctx, f.ID, SectionInput{Title: "S"})
	require.NoError(t, err)

	loose := fx.question(t, f.ID, nil, "loose")
	inside := fx.question(t, f.ID, &sec.ID, "inside")

	// both sit at position 1, but in different sibling lists
	assert.ErrorIs(t, fx.store.MoveQuestion(fx.ctx, f.ID, inside.ID, Up), fault.ErrBoundary)
	assert.ErrorIs(t, fx.store.MoveQuestion(fx.ctx, f.ID, loose.ID, Down), fault.ErrBoundary)
}

func TestMoveQuestionWithDuplicatePositions(t *testing.T) {
	fx := setup(t)
	f := fx.form(t, "Reorder")
	q1 := fx.question(t, f.ID, nil, "one")
	q2 := fx.question(t, f.ID, nil, "two")
	q3 := fx.question(t, f.ID, nil, "three")
	_, err := fx.db.Exec(`UPDATE form_question SET position = 0`)
	require.NoError(t, err)

	require.NoError(t, fx.store.MoveQuestion(fx.ctx, f.ID, q3.ID, Up))
	got := fx.positions(t, "form_question", q1.ID, q2.ID, q3.ID)
	assert.Equal(t, []int{1, 3, 2}, got)
}

func TestMoveSection(t *testing.T) {
	fx := setup(t)
	f := fx.form(t, "Sections")
	s1, err := fx.store.CreateSection(fx.ctx, f.ID, SectionInput{Title: "A"})
	require.NoError(t, err)
	s2, err := fx.store.CreateSection(fx.ctx, f.ID, SectionInput{Title: "B"})
	require.NoError(t, err)

	require.NoError(t, fx.store.MoveSection(fx.ctx, f.ID, s2.ID, Up))
	assert.Equal(t, []int{2, 1}, fx.positions(t, "form_section", s1.ID, s2.ID))

	assert.ErrorIs(t, fx.store.MoveSection(fx.ctx, f.ID, s2.ID, Up), fault.ErrBoundary)

	require.NoError(t, fx.store.MoveSection(fx.ctx, f.ID, s2.ID, Down))
	assert.Equal(t, []int{1, 2}, fx.positions(t, "form_section", s1.ID, s2.ID))

	secs, err := fx.store.Sections(fx.ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", secs[0].Title)
}

func TestFixOrdering(t *testing.T) {
	fx := setup(t)
	f := fx.form(t, "Broken")
	q1 := fx.question(t, f.ID, nil, "one")
	q2 := fx.question(t, f.ID, nil, "two")
	g := fx.form(t, "Fine")
	fx.question(t, g.ID, nil, "ok")
	_, err := fx.db.Exec(`UPDATE form_question SET position = 7 WHERE id = ?`, q1.ID)
	require.NoError(t, err)

	changes, err := fx.store.FixOrdering(fx.ctx, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []Renumbering{{FormID: f.ID, QuestionID: q1.ID, From: 7, To: 1}}, changes)
	assert.Equal(t, []int{7, 2}, fx.positions(t, "form_question", q1.ID, q2.ID))

	changes, err = fx.store.FixOrdering(fx.ctx, f.ID, false)
	require.NoError(t, err)
	assert.Len(t, changes, 1)
	assert.Equal(t, []int{1, 2}, fx.positions(t, "form_question", q1.ID, q2.ID))
}
