package forms

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/model"
	"github.com/mbolis/survey-builder/qr"
	"golang.org/x/crypto/bcrypt"
)

// Protection is the access gate of a published form. A blank password
// removes the password.
type Protection struct {
	Password       string `json:"password"`
	RequireCaptcha bool   `json:"require_captcha"`
}

func (p Protection) hash() (string, error) {
	pw := strings.TrimSpace(p.Password)
	if pw == "" {
		return "", nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(h), err
}

var ErrNotPublished = fault.NewClientError("the form is not published", fault.ErrConflict)

// Publish opens the form for responses. It needs at least one question, and
// renders the QR artifact when the form has none yet.
func (s *Store) Publish(ctx context.Context, formID int64, p Protection) (*model.Form, error) {
	hash, err := p.hash()
	if err != nil {
		return nil, err
	}

	err = database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		f, err := formState(ctx, tx, formID)
		if err != nil {
			return err
		}
		if !f.Status.CanBecome(model.StatusPublished) {
			return fault.NewClientError("a "+string(f.Status)+" form cannot be published", fault.ErrConflict)
		}

		var questions int
		err = tx.GetContext(ctx, &questions, tx.Rebind(`SELECT COUNT(*) FROM form_question WHERE form_id = ?`), formID)
		if err != nil {
			return err
		}
		if questions == 0 {
			return fault.NewClientError("cannot publish a form without questions", fault.ErrConflict)
		}

		now := s.now().UTC()
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE form
			SET status = ?, published_at = ?, password_hash = ?, require_captcha = ?, updated_at = ?
			WHERE id = ?`),
			model.StatusPublished, now, hash, p.RequireCaptcha, now, formID,
		)
		if err != nil {
			return err
		}

		if !f.hasQR {
			return s.storeQR(ctx, tx, formID, f.Slug)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, formID)
}

// Unpublish sends a published form back to draft.
func (s *Store) Unpublish(ctx context.Context, formID int64) error {
	return s.Transition(ctx, formID, model.StatusDraft)
}

// Transition moves a form along its lifecycle. Publishing goes through Publish.
func (s *Store) Transition(ctx context.Context, formID int64, to model.FormStatus) error {
	if !to.Valid() {
		return fault.Client("unknown status %q", to)
	}
	if to == model.StatusPublished {
		return fault.Client("use publish to publish a form")
	}

	return database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		f, err := formState(ctx, tx, formID)
		if err != nil {
			return err
		}
		if !f.Status.CanBecome(to) {
			return fault.NewClientError("cannot move a "+string(f.Status)+" form to "+string(to), fault.ErrConflict)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE form SET status = ?, updated_at = ? WHERE id = ?`),
			to, s.now().UTC(), formID,
		)
		return err
	})
}

// UpdateProtection changes password and captcha of a published form.
func (s *Store) UpdateProtection(ctx context.Context, formID int64, p Protection) error {
	hash, err := p.hash()
	if err != nil {
		return err
	}

	return database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		f, err := formState(ctx, tx, formID)
		if err != nil {
			return err
		}
		if f.Status != model.StatusPublished {
			return ErrNotPublished
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE form SET password_hash = ?, require_captcha = ?, updated_at = ? WHERE id = ?`),
			hash, p.RequireCaptcha, s.now().UTC(), formID,
		)
		return err
	})
}

// RegenerateQR replaces the QR artifact of a published form.
func (s *Store) RegenerateQR(ctx context.Context, formID int64) error {
	return database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		f, err := formState(ctx, tx, formID)
		if err != nil {
			return err
		}
		if f.Status != model.StatusPublished {
			return ErrNotPublished
		}
		return s.storeQR(ctx, tx, formID, f.Slug)
	})
}

// QRCode returns the PNG QR artifact of a published form, rendering it on
// first use.
func (s *Store) QRCode(ctx context.Context, slug string) ([]byte, error) {
	var png []byte
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var row struct {
			ID     int64  `db:"id"`
			QRCode []byte `db:"qr_code"`
		}
		err := tx.GetContext(ctx, &row, tx.Rebind(`
			SELECT id, qr_code FROM form WHERE slug = ? AND status = ?`),
			slug, model.StatusPublished,
		)
		if err != nil {
			return database.Translate(err)
		}
		if len(row.QRCode) > 0 {
			png = row.QRCode
			return nil
		}

		png, err = qr.Encode(qr.PublicURL(s.siteURL, slug))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE form SET qr_code = ? WHERE id = ?`), png, row.ID)
		return err
	})
	return png, err
}

// PublicURL is where respondents answer the form.
func (s *Store) PublicURL(slug string) string {
	return qr.PublicURL(s.siteURL, slug)
}

func (s *Store) storeQR(ctx context.Context, tx *sqlx.Tx, formID int64, slug string) error {
	png, err := qr.Encode(qr.PublicURL(s.siteURL, slug))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE form SET qr_code = ? WHERE id = ?`), png, formID)
	return err
}

type lockedForm struct {
	Status model.FormStatus
	Slug   string
	hasQR  bool
}

// formState reads the lifecycle fields of a form inside tx.
func formState(ctx context.Context, tx *sqlx.Tx, formID int64) (*lockedForm, error) {
	var row struct {
		Status model.FormStatus `db:"status"`
		Slug   string           `db:"slug"`
		HasQR  bool             `db:"has_qr"`
	}
	err := tx.GetContext(ctx, &row, tx.Rebind(`
		SELECT status, slug, qr_code IS NOT NULL AS has_qr FROM form WHERE id = ?`),
		formID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lockedForm{Status: row.Status, Slug: row.Slug, hasQR: row.HasQR}, nil
}
