package masterdata

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/model"
)

func normalizeColumn(c *model.Column) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fault.Client("column name is required")
	}
	if c.DataType == "" {
		c.DataType = model.ColumnText
	}
	if !c.DataType.Valid() {
		return fault.Client("unknown column type %q", c.DataType)
	}
	return nil
}

func insertColumn(ctx context.Context, tx *sqlx.Tx, c *model.Column) error {
	err := tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO dataset_column (dataset_id, name, data_type, position, is_required)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`),
		c.DatasetID, c.Name, c.DataType, c.Position, c.IsRequired,
	).Scan(&c.ID)
	if database.IsUniqueViolation(err) {
		return fault.NewClientError("a column named "+c.Name+" already exists", fault.ErrUniqueViolation)
	}
	return database.Translate(err)
}

type queryer interface {
	sqlx.QueryerContext
	Rebind(string) string
}

func columns(ctx context.Context, q queryer, datasetID int64) ([]model.Column, error) {
	cols := []model.Column{}
	err := sqlx.SelectContext(ctx, q, &cols, q.Rebind(`
		SELECT id, dataset_id, name, data_type, position, is_required
		FROM dataset_column
		WHERE dataset_id = ?
		ORDER BY position, id`),
		datasetID,
	)
	return cols, err
}

func (s *Store) Columns(ctx context.Context, datasetID int64) ([]model.Column, error) {
	return columns(ctx, s.db, datasetID)
}

// AddColumn appends a column; names are unique within a dataset.
func (s *Store) AddColumn(ctx context.Context, datasetID int64, c model.Column) (*model.Column, error) {
	if err := normalizeColumn(&c); err != nil {
		return nil, err
	}
	c.DatasetID = datasetID

	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &c.Position, tx.Rebind(`
			SELECT COALESCE(MAX(position), 0) + 1 FROM dataset_column WHERE dataset_id = ?`),
			datasetID,
		)
		if err != nil {
			return err
		}
		return insertColumn(ctx, tx, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) DeleteColumn(ctx context.Context, datasetID, columnID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM dataset_column WHERE id = ? AND dataset_id = ?`),
		columnID, datasetID,
	)
	return affected(res, err)
}

// cleanData keeps only known columns, stores every value as text and enforces
// required columns.
func cleanData(cols []model.Column, in map[string]any) (model.Data, error) {
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c.Name] = true
	}

	data := model.Data{}
	for k, v := range in {
		if !known[k] {
			return nil, fault.Client("unknown column %q", k)
		}
		if text := strings.TrimSpace(model.Stringify(v)); text != "" {
			data[k] = text
		}
	}

	for _, c := range cols {
		if c.IsRequired && data[c.Name] == nil {
			return nil, fault.Client("column %q is required", c.Name)
		}
	}
	return data, nil
}

func (s *Store) CreateRecord(ctx context.Context, datasetID int64, in map[string]any) (*model.Record, error) {
	cols, err := s.Columns(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	data, err := cleanData(cols, in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := model.Record{DatasetID: datasetID, Data: data, CreatedAt: now, UpdatedAt: now}
	err = s.db.QueryRowxContext(ctx, s.db.Rebind(`
		INSERT INTO dataset_record (dataset_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`),
		datasetID, data, now, now,
	).Scan(&rec.ID)
	if err != nil {
		return nil, database.Translate(err)
	}
	return &rec, nil
}

func (s *Store) UpdateRecord(ctx context.Context, datasetID, recordID int64, in map[string]any) error {
	cols, err := s.Columns(ctx, datasetID)
	if err != nil {
		return err
	}
	data, err := cleanData(cols, in)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE dataset_record SET data = ?, updated_at = ?
		WHERE id = ? AND dataset_id = ?`),
		data, s.now().UTC(), recordID, datasetID,
	)
	return affected(res, err)
}

func (s *Store) DeleteRecord(ctx context.Context, datasetID, recordID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM dataset_record WHERE id = ? AND dataset_id = ?`),
		recordID, datasetID,
	)
	return affected(res, err)
}

func (s *Store) Record(ctx context.Context, datasetID, recordID int64) (*model.Record, error) {
	rec := model.Record{}
	err := s.db.GetContext(ctx, &rec, s.db.Rebind(`
		SELECT id, dataset_id, data, created_at, updated_at
		FROM dataset_record
		WHERE id = ? AND dataset_id = ?`),
		recordID, datasetID,
	)
	if err != nil {
		return nil, database.Translate(err)
	}
	return &rec, nil
}

// Records returns one page of a dataset's records plus the total count.
func (s *Store) Records(ctx context.Context, datasetID int64, limit, offset int) ([]model.Record, int, error) {
	var total int
	err := s.db.GetContext(ctx, &total, s.db.Rebind(`
		SELECT COUNT(*) FROM dataset_record WHERE dataset_id = ?`),
		datasetID,
	)
	if err != nil {
		return nil, 0, err
	}

	records := []model.Record{}
	err = s.db.SelectContext(ctx, &records, s.db.Rebind(`
		SELECT id, dataset_id, data, created_at, updated_at
		FROM dataset_record
		WHERE dataset_id = ?
		ORDER BY id
		LIMIT ? OFFSET ?`),
		datasetID, limit, offset,
	)
	return records, total, err
}

// EachRecord streams every record of a dataset in id order. Records whose
// data cannot be decoded are passed with an empty map.
func (s *Store) EachRecord(ctx context.Context, datasetID int64, fn func(model.Record) error) error {
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(`
		SELECT id, dataset_id, data, created_at, updated_at
		FROM dataset_record
		WHERE dataset_id = ?
		ORDER BY id`),
		datasetID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec model.Record
			raw model.RawJSON
		)
		err = rows.Scan(&rec.ID, &rec.DatasetID, &raw, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return err
		}
		if rec.Data.Scan([]byte(raw)) != nil {
			rec.Data = model.Data{}
		}
		if err = fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}
