// Package export streams the responses of a form as a flat table, joined
// with the master-data columns of the datasets attached to the form.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/forms"
	"github.com/mbolis/survey-builder/log"
	"github.com/mbolis/survey-builder/model"
)

const timeLayout = "2006-01-02 15:04:05"

const (
	Anonymous       = "Anonymous"
	PendingApproval = "Yes (Pending Approval)"
	Approved        = "Yes (Approved)"
)

var metadataHeaders = []string{"submitted_at", "is_complete", "record_display", "is_new_identity"}

// RowWriter receives the header and then one row per response.
type RowWriter interface {
	WriteRow(cells []string) error
	Close() error
}

type dataColumn struct {
	attachment *model.Attachment
	name       string
}

// Plan fixes the columns of an export.
type Plan struct {
	Headers     []string
	attachments []model.Attachment
	columns     []dataColumn
	questions   []model.Question
}

type Exporter struct {
	db    *sqlx.DB
	forms *forms.Store
}

func New(db *sqlx.DB, forms *forms.Store) *Exporter {
	return &Exporter{db: db, forms: forms}
}

func (e *Exporter) Plan(ctx context.Context, formID int64) (*Plan, error) {
	atts, err := e.forms.Attachments(ctx, formID)
	if err != nil {
		return nil, err
	}
	qs, err := e.forms.Questions(ctx, formID)
	if err != nil {
		return nil, err
	}
	return newPlan(atts, qs), nil
}

func newPlan(atts []model.Attachment, qs []model.Question) *Plan {
	p := &Plan{attachments: atts, questions: qs}
	p.Headers = append(p.Headers, metadataHeaders...)
	for i := range p.attachments {
		att := &p.attachments[i]
		for _, c := range att.VisibleColumns() {
			p.columns = append(p.columns, dataColumn{attachment: att, name: c.Name})
			p.Headers = append(p.Headers, att.DatasetName+" - "+c.Name)
		}
	}
	for _, q := range qs {
		p.Headers = append(p.Headers, q.Text)
	}
	return p
}

// Count is the number of rows an export of the form will produce.
func (e *Exporter) Count(ctx context.Context, formID int64) (int, error) {
	var n int
	err := e.db.GetContext(ctx, &n, e.db.Rebind(`SELECT COUNT(*) FROM response WHERE form_id = ?`), formID)
	return n, err
}

type responseRow struct {
	ID                   int64         `db:"id"`
	SubmittedAt          time.Time     `db:"submitted_at"`
	IsComplete           bool          `db:"is_complete"`
	RecordID             *int64        `db:"record_id"`
	RecordDatasetID      *int64        `db:"record_dataset_id"`
	RecordData           model.RawJSON `db:"record_data"`
	Username             *string       `db:"username"`
	IsNewIdentity        bool          `db:"is_new_identity"`
	NewIdentityDatasetID *int64        `db:"new_identity_dataset_id"`
	NewIdentityData      model.RawJSON `db:"new_identity_data"`
}

type answerRow struct {
	ResponseID int64         `db:"response_id"`
	QuestionID int64         `db:"question_id"`
	Value      model.RawJSON `db:"value"`
}

// Write streams every response of formID to w, in submission order, and
// returns the number of rows written after the header. Responses and answers
// are read through two cursors sorted by response id and merged, so memory
// use does not grow with the number of responses.
func (e *Exporter) Write(ctx context.Context, formID int64, plan *Plan, w RowWriter) (int, error) {
	if err := w.WriteRow(plan.Headers); err != nil {
		return 0, err
	}

	resps, err := e.db.QueryxContext(ctx, e.db.Rebind(`
		SELECT
			r.id, r.submitted_at, r.is_complete, r.record_id,
			d.dataset_id AS record_dataset_id, d.data AS record_data,
			u.username,
			r.is_new_identity, r.new_identity_dataset_id, r.new_identity_data
		FROM response r
		LEFT OUTER JOIN dataset_record d ON (d.id = r.record_id)
		LEFT OUTER JOIN account u ON (u.id = r.account_id)
		WHERE r.form_id = ?
		ORDER BY r.id`),
		formID,
	)
	if err != nil {
		return 0, err
	}
	defer resps.Close()

	answers, err := e.db.QueryxContext(ctx, e.db.Rebind(`
		SELECT a.response_id, a.question_id, a.value
		FROM response_answer a
		INNER JOIN response r ON (r.id = a.response_id)
		WHERE r.form_id = ?
		ORDER BY a.response_id, a.id`),
		formID,
	)
	if err != nil {
		return 0, err
	}
	defer answers.Close()

	next := answerCursor{rows: answers}
	n := 0
	for resps.Next() {
		row := responseRow{}
		if err := resps.StructScan(&row); err != nil {
			return n, err
		}
		byQuestion, err := next.collect(row.ID)
		if err != nil {
			return n, err
		}
		if err := w.WriteRow(plan.row(row, byQuestion)); err != nil {
			return n, err
		}
		n++
	}
	if err := resps.Err(); err != nil {
		return n, err
	}
	return n, w.Close()
}

// answerCursor walks the answer rows in step with the responses.
type answerCursor struct {
	rows    *sqlx.Rows
	pending *answerRow
	done    bool
}

func (c *answerCursor) collect(responseID int64) (map[int64]model.RawJSON, error) {
	out := map[int64]model.RawJSON{}
	for {
		if c.pending == nil {
			if c.done {
				return out, nil
			}
			if !c.rows.Next() {
				c.done = true
				return out, c.rows.Err()
			}
			a := answerRow{}
			if err := c.rows.StructScan(&a); err != nil {
				return nil, err
			}
			c.pending = &a
		}

		switch {
		case c.pending.ResponseID < responseID:
			// answer to a response the response cursor did not see
			c.pending = nil
		case c.pending.ResponseID == responseID:
			out[c.pending.QuestionID] = c.pending.Value
			c.pending = nil
		default:
			return out, nil
		}
	}
}

func (p *Plan) row(r responseRow, answers map[int64]model.RawJSON) []string {
	cells := make([]string, 0, len(p.Headers))

	cells = append(cells, r.SubmittedAt.Format(timeLayout))
	cells = append(cells, yesNo(r.IsComplete))

	recordData := decodeData(r.ID, "record", r.RecordData)
	var newData model.Data
	if r.IsNewIdentity {
		newData = decodeData(r.ID, "new identity", r.NewIdentityData)
	}
	cells = append(cells, p.identityLabel(r, recordData, newData))

	switch {
	case r.IsNewIdentity && r.RecordID != nil:
		cells = append(cells, Approved)
	case r.IsNewIdentity:
		cells = append(cells, PendingApproval)
	default:
		cells = append(cells, "No")
	}

	for _, col := range p.columns {
		var src model.Data
		switch {
		case r.RecordDatasetID != nil && *r.RecordDatasetID == col.attachment.DatasetID:
			src = recordData
		case r.IsNewIdentity && r.NewIdentityDatasetID != nil && *r.NewIdentityDatasetID == col.attachment.DatasetID:
			src = newData
		}
		v, _ := src.Text(col.name)
		cells = append(cells, v)
	}

	for _, q := range p.questions {
		cells = append(cells, answerText(r.ID, q.ID, answers[q.ID]))
	}
	return cells
}

func (p *Plan) identityLabel(r responseRow, recordData, newData model.Data) string {
	if r.Username != nil && *r.Username != "" {
		return *r.Username
	}
	if r.RecordDatasetID != nil {
		for _, att := range p.attachments {
			if att.DatasetID != *r.RecordDatasetID {
				continue
			}
			if v, ok := att.DisplayValue(recordData); ok && v != "" {
				return v
			}
		}
	}
	if r.IsNewIdentity && r.NewIdentityDatasetID != nil {
		for _, att := range p.attachments {
			if att.DatasetID != *r.NewIdentityDatasetID {
				continue
			}
			if v, ok := att.DisplayValue(newData); ok && v != "" {
				return v
			}
		}
	}
	if r.RecordID != nil {
		return fmt.Sprintf("Record #%d", *r.RecordID)
	}
	return Anonymous
}

func decodeData(responseID int64, what string, raw model.RawJSON) model.Data {
	if len(raw) == 0 {
		return nil
	}
	data := model.Data{}
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Warnf("export: response %d has malformed %s data: %v", responseID, what, err)
		return nil
	}
	return data
}

func answerText(responseID, questionID int64, raw model.RawJSON) string {
	if len(raw) == 0 {
		return ""
	}
	v, err := raw.Decode()
	if err != nil {
		log.Warnf("export: response %d has a malformed answer to question %d: %v", responseID, questionID, err)
		return ""
	}
	return model.Stringify(v)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename names the download of a form export made on day.
func Filename(slug string, f Format, day time.Time) string {
	return slug + "-responses-" + day.Format("2006-01-02") + "." + string(f)
}

// TotalHeader carries the row count so clients can check the download is complete.
const TotalHeader = "X-Total-Responses"
