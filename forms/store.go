// Package forms stores form definitions: forms, their sections, questions and
// option lists, and the master-data datasets attached to them.
package forms

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/model"
)

type Store struct {
	db      *sqlx.DB
	siteURL string
	now     func() time.Time
}

func NewStore(db *sqlx.DB, siteURL string) *Store {
	return &Store{db: db, siteURL: siteURL, now: time.Now}
}

type Access int

const (
	NoAccess Access = iota
	EditAccess
	OwnerAccess
)

const formColumns = `
	id, title, description, slug, owner_id, status, password_hash, require_captcha,
	settings, image_url, created_at, updated_at, published_at`

func (s *Store) AccessOf(ctx context.Context, formID int64, actor model.Actor) (Access, error) {
	var row struct {
		OwnerID      int64  `db:"owner_id"`
		Collaborator *int64 `db:"account_id"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT f.owner_id, c.account_id
		FROM form f
		LEFT OUTER JOIN form_collaborator c ON (c.form_id = f.id AND c.account_id = ?)
		WHERE f.id = ?`),
		actor.ID, formID,
	)
	if err != nil {
		return NoAccess, database.Translate(err)
	}

	switch {
	case row.OwnerID == actor.ID || actor.Admin():
		return OwnerAccess, nil
	case row.Collaborator != nil:
		return EditAccess, nil
	}
	return NoAccess, nil
}

func (s *Store) Require(ctx context.Context, formID int64, actor model.Actor, want Access) error {
	got, err := s.AccessOf(ctx, formID, actor)
	if err != nil {
		return err
	}
	if got < want {
		return fault.ErrForbidden
	}
	return nil
}

type FormInput struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	RequireCaptcha *bool          `json:"require_captcha"`
	Settings       model.Settings `json:"settings"`
	ImageURL       string         `json:"image_url"`
}

func (s *Store) Create(ctx context.Context, owner model.Actor, in FormInput) (*model.Form, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fault.Client("form title is required")
	}

	now := s.now().UTC()
	f := model.Form{
		Title:          title,
		Description:    in.Description,
		Slug:           NewSlug(title),
		OwnerID:        owner.ID,
		Status:         model.StatusDraft,
		RequireCaptcha: in.RequireCaptcha == nil || *in.RequireCaptcha,
		Settings:       in.Settings,
		ImageURL:       in.ImageURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return insertForm(ctx, tx, &f)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func insertForm(ctx context.Context, tx *sqlx.Tx, f *model.Form) error {
	err := tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO form (title, description, slug, owner_id, status, password_hash,
			require_captcha, settings, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		f.Title, f.Description, f.Slug, f.OwnerID, f.Status, f.PasswordHash,
		f.RequireCaptcha, f.Settings, f.ImageURL, f.CreatedAt, f.UpdatedAt,
	).Scan(&f.ID)
	return database.Translate(err)
}

// List returns the forms actor owns or collaborates on, newest first.
func (s *Store) List(ctx context.Context, actor model.Actor) ([]model.Form, error) {
	forms := []model.Form{}
	err := s.db.SelectContext(ctx, &forms, s.db.Rebind(`
		SELECT `+formColumns+`
		FROM form
		WHERE owner_id = ?
			OR id IN (SELECT form_id FROM form_collaborator WHERE account_id = ?)
			OR ?
		ORDER BY created_at DESC, id DESC`),
		actor.ID, actor.ID, actor.Admin(),
	)
	return forms, err
}

func (s *Store) Get(ctx context.Context, id int64) (*model.Form, error) {
	f := model.Form{}
	err := s.db.GetContext(ctx, &f, s.db.Rebind(`SELECT `+formColumns+` FROM form WHERE id = ?`), id)
	if err != nil {
		return nil, database.Translate(err)
	}
	return &f, nil
}

// Published returns the published form with the given slug.
func (s *Store) Published(ctx context.Context, slug string) (*model.Form, error) {
	f := model.Form{}
	err := s.db.GetContext(ctx, &f, s.db.Rebind(`
		SELECT `+formColumns+` FROM form WHERE slug = ? AND status = ?`),
		slug, model.StatusPublished,
	)
	if err != nil {
		return nil, database.Translate(err)
	}
	return &f, nil
}

func (s *Store) Update(ctx context.Context, id int64, in FormInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fault.Client("form title is required")
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE form
		SET title = ?, description = ?, settings = ?, image_url = ?, updated_at = ?
		WHERE id = ?`),
		title, in.Description, in.Settings, in.ImageURL, s.now().UTC(), id,
	)
	return affected(res, err)
}

// Delete removes a form with everything it owns, responses included.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM form WHERE id = ?`), id)
	return affected(res, err)
}

func (s *Store) AddCollaborator(ctx context.Context, formID int64, username string) (*model.Account, error) {
	acc := model.Account{}
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &acc, tx.Rebind(`
			SELECT id, username, email, role, created_at FROM account WHERE username = ?`),
			username,
		)
		if err != nil {
			return database.Translate(err)
		}
		if !acc.Role.Staff() {
			return fault.Client("%s cannot edit forms", username)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO form_collaborator (form_id, account_id, invited_at) VALUES (?, ?, ?)`),
			formID, acc.ID, s.now().UTC(),
		)
		if database.IsUniqueViolation(err) {
			return fault.NewClientError(username+" is already a collaborator", fault.ErrUniqueViolation)
		}
		return database.Translate(err)
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *Store) RemoveCollaborator(ctx context.Context, formID, accountID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM form_collaborator WHERE form_id = ? AND account_id = ?`),
		formID, accountID,
	)
	return affected(res, err)
}

func (s *Store) Collaborators(ctx context.Context, formID int64) ([]model.Account, error) {
	accounts := []model.Account{}
	err := s.db.SelectContext(ctx, &accounts, s.db.Rebind(`
		SELECT a.id, a.username, a.email, a.role, a.created_at
		FROM form_collaborator c
		INNER JOIN account a ON (a.id = c.account_id)
		WHERE c.form_id = ?
		ORDER BY a.username`),
		formID,
	)
	return accounts, err
}

func affected(res interface{ RowsAffected() (int64, error) }, err error) error {
	if err != nil {
		return database.Translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n < 1 {
		return fault.ErrNotFound
	}
	return nil
}
