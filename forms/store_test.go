package forms

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/database/dbtest"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	db    *sqlx.DB
	store *Store
	owner model.Actor
	ctx   context.Context
}

func setup(t *testing.T) *fixture {
	db := dbtest.Open(t)
	return &fixture{
		db:    db,
		store: NewStore(db, "https://forms.example.org"),
		owner: model.Actor{ID: dbtest.Account(t, db, "owner", "form_creator"), Role: model.RoleFormCreator},
		ctx:   context.Background(),
	}
}

func (fx *fixture) form(t *testing.T, title string) *model.Form {
	f, err := fx.store.Create(fx.ctx, fx.owner, FormInput{Title: title})
	require.NoError(t, err)
	return f
}

func (fx *fixture) question(t *testing.T, formID int64, sectionID *int64, text string) *model.Question {
	q, err := fx.store.CreateQuestion(fx.ctx, formID, model.Question{Text: text, Type: model.TextInput, SectionID: sectionID})
	require.NoError(t, err)
	return q
}

func TestCreateAndGetForm(t *testing.T) {
	fx := setup(t)

	f := fx.form(t, "Health Survey")
	assert.Equal(t, model.StatusDraft, f.Status)
	assert.True(t, f.RequireCaptcha)
	assert.Regexp(t, `^health-survey-[0-9a-f]{8}$`, f.Slug)

	got, err := fx.store.Get(fx.ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Slug, got.Slug)
	assert.True(t, got.Settings.IdentityEnabled())

	_, err = fx.store.Create(fx.ctx, fx.owner, FormInput{Title: "  "})
	assert.True(t, fault.IsClientError(err))

	require.NoError(t, fx.store.Update(fx.ctx, f.ID, FormInput{Title: "Renamed", Settings: model.Settings{UniqueEntries: true}}))
	got, _ = fx.store.Get(fx.ctx, f.ID)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.Settings.UniqueEntries)
	assert.Equal(t, f.Slug, got.Slug)

	require.NoError(t, fx.store.Delete(fx.ctx, f.ID))
	_, err = fx.store.Get(fx.ctx, f.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestAccessAndCollaborators(t *testing.T) {
	fx := setup(t)
	f := fx.form(t, "Team form")
	editor := model.Actor{ID: dbtest.Account(t, fx.db, "ed", "editor"), Role: model.RoleEditor}
	dbtest.Account(t, fx.db, "resp", "respondent")

	assert.ErrorIs(t, fx.store.Require(fx.ctx, f.ID, editor, EditAccess), fault.ErrForbidden)
	list, err := fx.store.List(fx.ctx, editor)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = fx.store.AddCollaborator(fx.ctx, f.ID, "ed")
	require.NoError(t, err)
	_, err = fx.store.AddCollaborator(fx.ctx, f.ID, "ed")
	assert.ErrorIs(t, err, fault.ErrUniqueViolation)
	_, err = fx.store.AddCollaborator(fx.ctx, f.ID, "resp")
	assert.True(t, fault.IsClientError(err))

	require.NoError(t, fx.store.Require(fx.ctx, f.ID, editor, EditAccess))
	assert.ErrorIs(t, fx.store.Require(fx.ctx, f.ID, editor, OwnerAccess), fault.ErrForbidden)
	list, _ = fx.store.List(fx.ctx, editor)
	assert.Len(t, list, 1)

	collaborators, err := fx.store.Collaborators(fx.ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, collaborators, 1)
	assert.Equal(t, "ed", collaborators[0].Username)

	require.NoError(t, fx.store.RemoveCollaborator(fx.ctx, f.ID, editor.ID))
	assert.ErrorIs(t, fx.store.Require(fx.ctx, f.ID, editor, EditAccess), fault.ErrForbidden)
}

func TestPublishLifecycle(t *testing.T) {
	fx := setup(t)
	f := fx.form(t, "Lifecycle")

	_, err := fx.store.Publish(fx.ctx, f.ID, Protection{RequireCaptcha: true})
	assert.ErrorIs(t, err, fault.ErrConflict)
	assert.ErrorContains(t, err, "without questions")

	assert.ErrorIs(t, fx.store.RegenerateQR(fx.ctx, f.ID), fault.ErrConflict)
	assert.ErrorIs(t, fx.store.UpdateProtection(fx.ctx, f.ID, Protection{}), fault.ErrConflict)

	fx.question(t, f.ID, nil, "Name?")
	pub, err := fx.store.Publish(fx.ctx, f.ID, Protection{Password: " s3cret ", RequireCaptcha: false})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, pub.Status)
	assert.NotNil(t, pub.PublishedAt)
	assert.False(t, pub.RequireCaptcha)
	require.True(t, pub.HasPassword())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(pub.PasswordHash), []byte("s3cret")))

	var qrLen int
	require.NoError(t, fx.db.Get(&qrLen, `SELECT LENGTH(qr_code) FROM form WHERE id = ?`, f.ID))
	assert.Positive(t, qrLen)

	png, err := fx.store.QRCode(fx.ctx, pub.Slug)
	require.NoError(t, err)
	assert.Equal(t, qrLen, len(png))
	assert.Equal(t, "https://forms.example.org/s/"+pub.Slug+"/", fx.store.PublicURL(pub.Slug))

	require.NoError(t, fx.store.UpdateProtection(fx.ctx, f.ID, Protection{RequireCaptcha: true}))
	got, _ := fx.store.Published(fx.ctx, pub.Slug)
	assert.False(t, got.HasPassword())
	assert.True(t, got.RequireCaptcha)
	require.NoError(t, fx.store.RegenerateQR(fx.ctx, f.ID))

	require.NoError(t, fx.store.Transition(fx.ctx, f.ID, model.StatusArchived))
	_, err = fx.store.Published(fx.ctx, pub.Slug)
	assert.ErrorIs(t, err, fault.ErrNotFound)
	_, err = fx.store.QRCode(fx.ctx, pub.Slug)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	assert.ErrorIs(t, fx.store.Transition(fx.ctx, f.ID, model.StatusReview), fault.ErrConflict)
	require.NoError(t, fx.store.Transition(fx.ctx, f.ID, model.StatusDraft))
	assert.True(t, fault.IsClientError(fx.store.Transition(fx.ctx, f.ID, model.StatusPublished)))
	assert.True(t, fault.IsClientError(fx.store.Transition(fx.ctx, f.ID, "gone")))

	_, err = fx.store.Publish(fx.ctx, f.ID, Protection{})
	require.NoError(t, err)
	require.NoError(t, fx.store.Unpublish(fx.ctx, f.ID))
	got, _ = fx.store.Get(fx.ctx, f.ID)
	assert.Equal(t, model.StatusDraft, got.Status)
}

func TestQuestionsAndSections(t *testing.T) {
	fx := setup(t)
	f := fx.form(t, "Structure")
	other := fx.form(t, "Other")

	sec1, err := fx.store.CreateSection(fx.ctx, f.ID, SectionInput{Title: "About you"})
	require.NoError(t, err)
	sec2, err := fx.store.CreateSection(fx.ctx, f.ID, SectionInput{Title: "Habits"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, []int{sec1.Position, sec2.Position})

	foreign, err := fx.store.CreateSection(fx.ctx, other.ID, SectionInput{Title: "Elsewhere"})
	require.NoError(t, err)

	loose := fx.question(t, f.ID, nil, "Loose")
	a := fx.question(t, f.ID, &sec2.ID, "Habit A")
	b := fx.question(t, f.ID, &sec1.ID, "About B")
	c := fx.question(t, f.ID, &sec1.ID, "About C")
	assert.Equal(t, 1, loose.Position)
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, c.Position)

	_, err = fx.store.CreateQuestion(fx.ctx, f.ID, model.Question{Text: "x", Type: model.TextInput, SectionID: &foreign.ID})
	assert.ErrorIs(t, err, fault.ErrNotFound)

	_, err = fx.store.CreateQuestion(fx.ctx, f.ID, model.Question{Text: "Colour", Type: model.SingleSelect})
	assert.True(t, fault.IsClientError(err))

	sel, err := fx.store.CreateQuestion(fx.ctx, f.ID, model.Question{
		Text: "Colour", Type: model.SingleSelect, IsRequired: true,
		Options: []model.Option{{Text: "Red"}, {Text: "Blue", Value: "blue"}},
		Logic:   model.Logic{ShowIf: model.VarName(loose.ID) + ` != ""`},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sel.Position)

	qs, err := fx.store.Questions(fx.ctx, f.ID)
	require.NoError(t, err)
	var texts []string
	for _, q := range qs {
		texts = append(texts, q.Text)
	}
	assert.Equal(t, []string{"Loose", "Colour", "About B", "About C", "Habit A"}, texts)
	assert.Equal(t, []string{"Red", "blue"}, []string{qs[1].Options[0].Value, qs[1].Options[1].Value})
	assert.Equal(t, `q`+itoa(loose.ID)+` != ""`, qs[1].Logic.ShowIf)

	moved, err := fx.store.UpdateQuestion(fx.ctx, f.ID, sel.ID, model.Question{
		Text: "Colour", Type: model.MultiSelect, SectionID: &sec2.ID,
		Options: []model.Option{{Text: "Green"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, moved.Position)
	got, err := fx.store.Question(fx.ctx, f.ID, sel.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MultiSelect, got.Type)
	require.Len(t, got.Options, 1)
	assert.Equal(t, "Green", got.Options[0].Value)

	require.NoError(t, fx.store.UpdateSection(fx.ctx, f.ID, sec1.ID, SectionInput{Title: "You"}))
	require.NoError(t, fx.store.DeleteSection(fx.ctx, f.ID, sec1.ID))
	qs, _ = fx.store.Questions(fx.ctx, f.ID)
	assert.Len(t, qs, 3)
	_, err = fx.store.Question(fx.ctx, f.ID, b.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	require.NoError(t, fx.store.DeleteQuestion(fx.ctx, f.ID, a.ID))
	assert.ErrorIs(t, fx.store.DeleteQuestion(fx.ctx, other.ID, loose.ID), fault.ErrNotFound)
}

func itoa(id int64) string {
	return model.VarName(id)[1:]
}
