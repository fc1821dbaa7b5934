package forms

import (
	"context"
	"slices"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/model"
)

type AttachmentConfig struct {
	HiddenColumns []string `json:"hidden_columns"`
	DisplayColumn string   `json:"display_column"`
	FilterColumns []string `json:"filter_columns"`
}

const attachmentColumns = `
	a.id, a.form_id, a.dataset_id, d.name AS dataset_name, a.position,
	a.hidden_columns, a.display_column, a.filter_columns`

// Attach links a dataset to the form, after the already attached ones.
func (s *Store) Attach(ctx context.Context, formID, datasetID int64) (*model.Attachment, error) {
	var id int64
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var n int
		err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM form_attachment WHERE form_id = ?`), formID)
		if err != nil {
			return err
		}

		err = tx.QueryRowxContext(ctx, tx.Rebind(`
			INSERT INTO form_attachment (form_id, dataset_id, position)
			VALUES (?, ?, ?)
			RETURNING id`),
			formID, datasetID, n,
		).Scan(&id)
		if database.IsUniqueViolation(err) {
			return fault.NewClientError("dataset is already attached to this form", fault.ErrUniqueViolation)
		}
		return database.Translate(err)
	})
	if err != nil {
		return nil, err
	}
	return s.Attachment(ctx, formID, id)
}

// Configure sets which columns are hidden, displayed and used as cascading
// filters. Every name must be a column of the dataset.
func (s *Store) Configure(ctx context.Context, formID, attachmentID int64, cfg AttachmentConfig) (*model.Attachment, error) {
	att, err := s.Attachment(ctx, formID, attachmentID)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(att.Columns))
	for _, c := range att.Columns {
		known[c.Name] = true
	}
	check := func(names ...string) error {
		for _, n := range names {
			if n != "" && !known[n] {
				return fault.Client("%q is not a column of %s", n, att.DatasetName)
			}
		}
		return nil
	}
	if err = check(cfg.HiddenColumns...); err != nil {
		return nil, err
	}
	if err = check(cfg.FilterColumns...); err != nil {
		return nil, err
	}
	if err = check(cfg.DisplayColumn); err != nil {
		return nil, err
	}
	if cfg.DisplayColumn != "" && slices.Contains(cfg.HiddenColumns, cfg.DisplayColumn) {
		return nil, fault.Client("the display column %q cannot be hidden", cfg.DisplayColumn)
	}

	filters := model.StringList{}
	for _, f := range cfg.FilterColumns {
		if f != "" {
			filters = append(filters, f)
		}
	}
	hidden := model.StringList(cfg.HiddenColumns)
	if hidden == nil {
		hidden = model.StringList{}
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE form_attachment
		SET hidden_columns = ?, display_column = ?, filter_columns = ?
		WHERE id = ?`),
		hidden, cfg.DisplayColumn, filters, attachmentID,
	)
	if err != nil {
		return nil, err
	}

	att.HiddenColumns, att.DisplayColumn, att.FilterColumns = hidden, cfg.DisplayColumn, filters
	return att, nil
}

func (s *Store) Detach(ctx context.Context, formID, attachmentID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM form_attachment WHERE id = ? AND form_id = ?`),
		attachmentID, formID,
	)
	return affected(res, err)
}

func (s *Store) Attachment(ctx context.Context, formID, attachmentID int64) (*model.Attachment, error) {
	atts, err := attachments(ctx, s.db, `a.form_id = ? AND a.id = ?`, formID, attachmentID)
	if err != nil {
		return nil, err
	}
	if len(atts) == 0 {
		return nil, fault.ErrNotFound
	}
	return &atts[0], nil
}

// Attachments returns the form's attachments in order, each with the columns
// of its dataset.
func (s *Store) Attachments(ctx context.Context, formID int64) ([]model.Attachment, error) {
	return attachments(ctx, s.db, `a.form_id = ?`, formID)
}

func attachments(ctx context.Context, q queryer, where string, args ...any) ([]model.Attachment, error) {
	atts := []model.Attachment{}
	err := sqlx.SelectContext(ctx, q, &atts, q.Rebind(`
		SELECT `+attachmentColumns+`
		FROM form_attachment a
		INNER JOIN dataset d ON (d.id = a.dataset_id)
		WHERE `+where+`
		ORDER BY a.position, a.id`),
		args...,
	)
	if err != nil {
		return nil, err
	}

	for i := range atts {
		atts[i].Columns = []model.Column{}
		err = sqlx.SelectContext(ctx, q, &atts[i].Columns, q.Rebind(`
			SELECT id, dataset_id, name, data_type, position, is_required
			FROM dataset_column
			WHERE dataset_id = ?
			ORDER BY position, id`),
			atts[i].DatasetID,
		)
		if err != nil {
			return nil, err
		}
	}
	return atts, nil
}
