package responses

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/model"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const responseColumns = `
	r.id, r.form_id, r.record_id, r.account_id, r.session_key, r.is_complete, r.submitted_at,
	r.updated_at, r.ip_address, r.user_agent, r.is_new_identity, r.new_identity_data,
	r.new_identity_dataset_id`

type Summary struct {
	Total    int             `json:"total"`
	Complete int             `json:"complete"`
	Latest   *model.Response `json:"latest,omitempty"`
}

func (s *Store) Count(ctx context.Context, formID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM response WHERE form_id = ?`), formID)
	return n, err
}

func (s *Store) Summary(ctx context.Context, formID int64) (*Summary, error) {
	var counts struct {
		Total    int `db:"total"`
		Complete int `db:"complete"`
	}
	err := s.db.GetContext(ctx, &counts, s.db.Rebind(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_complete THEN 1 ELSE 0 END), 0) AS complete
		FROM response
		WHERE form_id = ?`),
		formID,
	)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Total: counts.Total, Complete: counts.Complete}
	if sum.Total == 0 {
		return sum, nil
	}

	latest := model.Response{}
	err = s.db.GetContext(ctx, &latest, s.db.Rebind(`
		SELECT `+responseColumns+`
		FROM response r
		WHERE r.form_id = ?
		ORDER BY r.submitted_at DESC, r.id DESC
		LIMIT 1`),
		formID,
	)
	if err != nil {
		return nil, database.Translate(err)
	}
	sum.Latest = &latest
	return sum, nil
}

// List returns one page of responses, newest first, with their answers.
func (s *Store) List(ctx context.Context, formID int64, limit, offset int) ([]model.Response, error) {
	resps := []model.Response{}
	err := s.db.SelectContext(ctx, &resps, s.db.Rebind(`
		SELECT `+responseColumns+`
		FROM response r
		WHERE r.form_id = ?
		ORDER BY r.submitted_at DESC, r.id DESC
		LIMIT ? OFFSET ?`),
		formID, limit, offset,
	)
	if err != nil || len(resps) == 0 {
		return resps, err
	}

	ids := make([]int64, len(resps))
	byID := make(map[int64]*model.Response, len(resps))
	for i := range resps {
		ids[i] = resps[i].ID
		byID[resps[i].ID] = &resps[i]
		resps[i].Answers = []model.Answer{}
	}

	query, args, err := sqlx.In(`
		SELECT a.id, a.response_id, a.question_id, a.value, a.created_at
		FROM response_answer a
		WHERE a.response_id IN (?)
		ORDER BY a.response_id, a.id`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	answers := []model.Answer{}
	if err = s.db.SelectContext(ctx, &answers, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, a := range answers {
		r := byID[a.ResponseID]
		r.Answers = append(r.Answers, a)
	}
	return resps, nil
}

func (s *Store) Delete(ctx context.Context, formID, responseID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM response WHERE id = ? AND form_id = ?`), responseID, formID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return database.Translate(sql.ErrNoRows)
	}
	return err
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type ColumnStats struct {
	Column string       `json:"column"`
	Values []ValueCount `json:"values"`
}

type AttachmentStats struct {
	AttachmentID int64         `json:"attachment_id"`
	DatasetName  string        `json:"dataset_name"`
	Columns      []ColumnStats `json:"columns"`
}

type identityRow struct {
	RecordDatasetID      *int64        `db:"record_dataset_id"`
	RecordData           model.RawJSON `db:"record_data"`
	IsNewIdentity        bool          `db:"is_new_identity"`
	NewIdentityDatasetID *int64        `db:"new_identity_dataset_id"`
	NewIdentityData      model.RawJSON `db:"new_identity_data"`
}

// source returns the identity data of the row that belongs to datasetID.
// Malformed data reads as empty.
func (row identityRow) source(datasetID int64) model.Data {
	var raw model.RawJSON
	switch {
	case row.RecordDatasetID != nil && *row.RecordDatasetID == datasetID:
		raw = row.RecordData
	case row.IsNewIdentity && row.NewIdentityDatasetID != nil && *row.NewIdentityDatasetID == datasetID:
		raw = row.NewIdentityData
	default:
		return nil
	}
	data := model.Data{}
	if len(raw) > 0 && json.Unmarshal(raw, &data) != nil {
		return model.Data{}
	}
	return data
}

// FilterStatistics counts, for every filter column of every attachment, how
// many responses carry each value. Values are sorted by count, then by value.
func (s *Store) FilterStatistics(ctx context.Context, formID int64, atts []model.Attachment) ([]AttachmentStats, error) {
	counters := make([][]map[string]int, len(atts))
	for i, att := range atts {
		counters[i] = make([]map[string]int, len(att.FilterColumns))
		for j := range att.FilterColumns {
			counters[i][j] = map[string]int{}
		}
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(`
		SELECT
			d.dataset_id AS record_dataset_id, d.data AS record_data,
			r.is_new_identity, r.new_identity_dataset_id, r.new_identity_data
		FROM response r
		LEFT OUTER JOIN dataset_record d ON (d.id = r.record_id)
		WHERE r.form_id = ?`),
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		row := identityRow{}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		for i, att := range atts {
			data := row.source(att.DatasetID)
			if data == nil {
				continue
			}
			for j, column := range att.FilterColumns {
				if v := filterValue(data[column]); v != "" {
					counters[i][j][v]++
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats := []AttachmentStats{}
	for i, att := range atts {
		as := AttachmentStats{AttachmentID: att.ID, DatasetName: att.DatasetName}
		for j, column := range att.FilterColumns {
			if len(counters[i][j]) == 0 {
				continue
			}
			cs := ColumnStats{Column: column}
			for v, n := range counters[i][j] {
				cs.Values = append(cs.Values, ValueCount{Value: v, Count: n})
			}
			sort.Slice(cs.Values, func(a, b int) bool {
				va, vb := cs.Values[a], cs.Values[b]
				if va.Count != vb.Count {
					return va.Count > vb.Count
				}
				return va.Value < vb.Value
			})
			as.Columns = append(as.Columns, cs)
		}
		if len(as.Columns) > 0 {
			stats = append(stats, as)
		}
	}
	return stats, nil
}

func filterValue(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if item != nil {
				parts = append(parts, model.Stringify(item))
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return strings.TrimSpace(model.Stringify(raw))
}
