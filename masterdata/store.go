// Package masterdata keeps the shared identity registry: datasets of typed
// columns whose records are open key→value maps.
package masterdata

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
	db  *sqlx.DB
	now func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

type Access int

const (
	NoAccess Access = iota
	ViewAccess
	EditAccess
)

// AccessOf returns what actor may do with the dataset.
func (s *Store) AccessOf(ctx context.Context, datasetID int64, actor model.Actor) (Access, error) {
	var row struct {
		OwnerID int64 `db:"owner_id"`
		Shared  *bool `db:"can_edit"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT d.owner_id, sh.can_edit
		FROM dataset d
		LEFT OUTER JOIN dataset_share sh ON (sh.dataset_id = d.id AND sh.account_id = ?)
		WHERE d.id = ?`),
		actor.ID, datasetID,
	)
	if err != nil {
		return NoAccess, database.Translate(err)
	}

	switch {
	case row.OwnerID == actor.ID || actor.Admin():
		return EditAccess, nil
	case row.Shared != nil && *row.Shared:
		return EditAccess, nil
	case row.Shared != nil:
		return ViewAccess, nil
	}
	return NoAccess, nil
}

// Require fails with fault.ErrForbidden unless actor has at least the wanted access.
func (s *Store) Require(ctx context.Context, datasetID int64, actor model.Actor, want Access) error {
	got, err := s.AccessOf(ctx, datasetID, actor)
	if err != nil {
		return err
	}
	if got < want {
		return fault.ErrForbidden
	}
	return nil
}

// List returns the datasets actor owns or that were shared with them.
func (s *Store) List(ctx context.Context, actor model.Actor) ([]model.Dataset, error) {
	datasets := []model.Dataset{}
	err := s.db.SelectContext(ctx, &datasets, s.db.Rebind(`
		SELECT DISTINCT d.id, d.name, d.description, d.owner_id, d.created_at, d.updated_at
		FROM dataset d
		LEFT OUTER JOIN dataset_share sh ON (sh.dataset_id = d.id AND sh.account_id = ?)
		WHERE d.owner_id = ? OR sh.account_id IS NOT NULL OR ?
		ORDER BY d.name, d.id`),
		actor.ID, actor.ID, actor.Admin(),
	)
	return datasets, err
}

func (s *Store) Get(ctx context.Context, id int64) (*model.Dataset, error) {
	ds := model.Dataset{}
	err := s.db.GetContext(ctx, &ds, s.db.Rebind(`
		SELECT id, name, description, owner_id, created_at, updated_at
		FROM dataset WHERE id = ?`),
		id,
	)
	if err != nil {
		return nil, database.Translate(err)
	}

	ds.Columns, err = s.Columns(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (s *Store) Create(ctx context.Context, owner model.Actor, ds model.Dataset) (*model.Dataset, error) {
	ds.Name = strings.TrimSpace(ds.Name)
	if ds.Name == "" {
		return nil, fault.Client("dataset name is required")
	}
	for i := range ds.Columns {
		if err := normalizeColumn(&ds.Columns[i]); err != nil {
			return nil, err
		}
		ds.Columns[i].Position = i + 1
	}

	now := s.now().UTC()
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, tx.Rebind(`
			INSERT INTO dataset (name, description, owner_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id`),
			ds.Name, ds.Description, owner.ID, now, now,
		).Scan(&ds.ID)
		if err != nil {
			return database.Translate(err)
		}

		for i := range ds.Columns {
			ds.Columns[i].DatasetID = ds.ID
			if err := insertColumn(ctx, tx, &ds.Columns[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ds.OwnerID = owner.ID
	ds.CreatedAt, ds.UpdatedAt = now, now
	return &ds, nil
}

func (s *Store) Update(ctx context.Context, id int64, name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fault.Client("dataset name is required")
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE dataset SET name = ?, description = ?, updated_at = ?
		WHERE id = ?`),
		name, description, s.now().UTC(), id,
	)
	return affected(res, err)
}

// Delete removes the dataset with its columns and records. Responses linked
// to its records survive with the link cleared.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM dataset WHERE id = ?`), id)
	return affected(res, err)
}

// Share grants an account access to a dataset, or updates the existing grant.
func (s *Store) Share(ctx context.Context, datasetID int64, username string, canEdit bool) (*model.Share, error) {
	share := model.Share{DatasetID: datasetID, Username: username, CanEdit: canEdit, SharedAt: s.now().UTC()}
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &share.AccountID, tx.Rebind(`SELECT id FROM account WHERE username = ?`), username)
		if err != nil {
			return database.Translate(err)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO dataset_share (dataset_id, account_id, can_edit, shared_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (dataset_id, account_id) DO UPDATE SET can_edit = excluded.can_edit`),
			datasetID, share.AccountID, canEdit, share.SharedAt,
		)
		return database.Translate(err)
	})
	if err != nil {
		return nil, err
	}
	return &share, nil
}

func (s *Store) Unshare(ctx context.Context, datasetID, accountID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM dataset_share WHERE dataset_id = ? AND account_id = ?`),
		datasetID, accountID,
	)
	return affected(res, err)
}

func (s *Store) Shares(ctx context.Context, datasetID int64) ([]model.Share, error) {
	shares := []model.Share{}
	err := s.db.SelectContext(ctx, &shares, s.db.Rebind(`
		SELECT sh.dataset_id, sh.account_id, a.username, sh.can_edit, sh.shared_at
		FROM dataset_share sh
		INNER JOIN account a ON (a.id = sh.account_id)
		WHERE sh.dataset_id = ?
		ORDER BY a.username`),
		datasetID,
	)
	return shares, err
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
