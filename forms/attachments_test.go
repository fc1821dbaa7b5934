package forms

import (
	"testing"

	"github.com/mbolis/survey-builder/database/dbtest"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (fx *fixture) dataset(t *testing.T, name string, columns ...string) int64 {
	var id int64
	require.NoError(t, fx.db.QueryRowx(`
		INSERT INTO dataset (name, owner_id, created_at, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP) RETURNING id`,
		name, fx.owner.ID).Scan(&id))
	for i, c := range columns {
		_, err := fx.db.Exec(`INSERT INTO dataset_column (dataset_id, name, position) VALUES (?, ?, ?)`, id, c, i+1)
		require.NoError(t, err)
	}
	return id
}

func TestAttachments(t *testing.T) {
	fx := setup(t)
	f := fx.form(t, "Attached")
	people := fx.dataset(t, "People", "Name", "Region", "InternalNotes")
	places := fx.dataset(t, "Places", "City")

	a1, err := fx.store.Attach(fx.ctx, f.ID, people)
	require.NoError(t, err)
	assert.Equal(t, "People", a1.DatasetName)
	assert.Equal(t, 0, a1.Position)
	assert.Len(t, a1.Columns, 3)

	_, err = fx.store.Attach(fx.ctx, f.ID, people)
	assert.ErrorIs(t, err, fault.ErrUniqueViolation)

	a2, err := fx.store.Attach(fx.ctx, f.ID, places)
	require.NoError(t, err)
	assert.Equal(t, 1, a2.Position)

	_, err = fx.store.Configure(fx.ctx, f.ID, a1.ID, AttachmentConfig{DisplayColumn: "City"})
	assert.True(t, fault.IsClientError(err))

	_, err = fx.store.Configure(fx.ctx, f.ID, a1.ID, AttachmentConfig{
		HiddenColumns: []string{"InternalNotes"},
		DisplayColumn: "InternalNotes",
	})
	assert.True(t, fault.IsClientError(err), "a hidden column cannot be displayed")

	cfg, err := fx.store.Configure(fx.ctx, f.ID, a1.ID, AttachmentConfig{
		HiddenColumns: []string{"InternalNotes"},
		DisplayColumn: "Name",
		FilterColumns: []string{"Region", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StringList{"Region"}, cfg.FilterColumns)

	atts, err := fx.store.Attachments(fx.ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, atts, 2)
	assert.Equal(t, model.StringList{"InternalNotes"}, atts[0].HiddenColumns)
	assert.Equal(t, "Name", atts[0].DisplayColumn)
	assert.Len(t, atts[0].VisibleColumns(), 2)

	require.NoError(t, fx.store.Detach(fx.ctx, f.ID, a2.ID))
	assert.ErrorIs(t, fx.store.Detach(fx.ctx, f.ID, a2.ID), fault.ErrNotFound)
	_, err = fx.store.Attachment(fx.ctx, f.ID, a2.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestDuplicateForm(t *testing.T) {
	fx := setup(t)
	f := fx.form(t, "Original")
	people := fx.dataset(t, "People", "Name")
	_, err := fx.store.Attach(fx.ctx, f.ID, people)
	require.NoError(t, err)
	dbtest.Account(t, fx.db, "ed", "editor")
	_, err = fx.store.AddCollaborator(fx.ctx, f.ID, "ed")
	require.NoError(t, err)

	sec, err := fx.store.CreateSection(fx.ctx, f.ID, SectionInput{Title: "S"})
	require.NoError(t, err)
	fx.question(t, f.ID, nil, "Loose")
	_, err = fx.store.CreateQuestion(fx.ctx, f.ID, model.Question{
		Text: "Pick", Type: model.SingleSelect, SectionID: &sec.ID,
		Options: []model.Option{{Text: "a"}, {Text: "b"}},
	})
	require.NoError(t, err)
	_, err = fx.store.Publish(fx.ctx, f.ID, Protection{})
	require.NoError(t, err)

	dup, err := fx.store.Duplicate(fx.ctx, f.ID, fx.owner, "")
	require.NoError(t, err)
	assert.Equal(t, "Copy of Original", dup.Title)
	assert.Equal(t, model.StatusDraft, dup.Status)
	assert.NotEqual(t, f.Slug, dup.Slug)
	assert.Nil(t, dup.PublishedAt)

	qs, err := fx.store.Questions(fx.ctx, dup.ID)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	require.NotNil(t, qs[1].SectionID)
	assert.NotEqual(t, sec.ID, *qs[1].SectionID)
	assert.Len(t, qs[1].Options, 2)

	atts, err := fx.store.Attachments(fx.ctx, dup.ID)
	require.NoError(t, err)
	assert.Len(t, atts, 1)

	collaborators, err := fx.store.Collaborators(fx.ctx, dup.ID)
	require.NoError(t, err)
	assert.Len(t, collaborators, 1)

	named, err := fx.store.Duplicate(fx.ctx, f.ID, fx.owner, "Second wave")
	require.NoError(t, err)
	assert.Equal(t, "Second wave", named.Title)
}
