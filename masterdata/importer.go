package masterdata

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/model"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// FormatOf guesses the upload format from a file name.
func FormatOf(filename string) (Format, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return CSV, nil
	case strings.HasSuffix(lower, ".xlsx"):
		return XLSX, nil
	}
	return "", fault.Client("only .csv and .xlsx files can be imported")
}

// Table is an uploaded sheet: the first row as headers, the rest as data.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func ReadTable(r io.Reader, format Format) (*Table, error) {
	var rows [][]string
	switch format {
	case CSV:
		br := bufio.NewReader(r)
		if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
			br.Discard(len(utf8BOM))
		}
		cr := csv.NewReader(br)
		cr.FieldsPerRecord = -1
		var err error
		rows, err = cr.ReadAll()
		if err != nil {
			return nil, fault.NewClientError("could not read CSV file", err)
		}

	case XLSX:
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fault.NewClientError("could not read Excel file", err)
		}
		defer f.Close()

		rows, err = f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fault.NewClientError("could not read Excel sheet", err)
		}

	default:
		return nil, fault.Client("unsupported format %q", format)
	}

	if len(rows) == 0 {
		return nil, fault.Client("the file is empty")
	}

	t := &Table{Headers: make([]string, len(rows[0]))}
	for i, h := range rows[0] {
		t.Headers[i] = strings.TrimSpace(h)
	}
	t.Rows = rows[1:]
	return t, nil
}

// Preview returns the table trimmed to its first n data rows.
func (t *Table) Preview(n int) *Table {
	rows := t.Rows
	if len(rows) > n {
		rows = rows[:n]
	}
	return &Table{Headers: t.Headers, Rows: rows}
}

type ImportResult struct {
	Imported       int      `json:"imported"`
	Skipped        int      `json:"skipped"`
	CreatedColumns []string `json:"created_columns"`
}

// Import inserts the rows of t as records. mapping sends a source header to a
// dataset column name; headers missing from mapping are ignored, and a nil
// mapping maps every header onto the column of the same name. Target columns
// that do not exist yet are created as text columns.
func (s *Store) Import(ctx context.Context, datasetID int64, t *Table, mapping map[string]string) (*ImportResult, error) {
	if mapping == nil {
		mapping = make(map[string]string, len(t.Headers))
		for _, h := range t.Headers {
			if h != "" {
				mapping[h] = h
			}
		}
	}

	targets := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		targets[i] = strings.TrimSpace(mapping[h])
	}

	result := &ImportResult{CreatedColumns: []string{}}
	now := s.now().UTC()

	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		cols, err := columns(ctx, tx, datasetID)
		if err != nil {
			return err
		}
		existing := make(map[string]bool, len(cols))
		next := 1
		for _, c := range cols {
			existing[c.Name] = true
			if c.Position >= next {
				next = c.Position + 1
			}
		}

		for _, target := range targets {
			if target == "" || existing[target] {
				continue
			}
			c := model.Column{DatasetID: datasetID, Name: target, DataType: model.ColumnText, Position: next}
			if err := insertColumn(ctx, tx, &c); err != nil {
				return err
			}
			existing[target] = true
			next++
			result.CreatedColumns = append(result.CreatedColumns, target)
		}

		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO dataset_record (dataset_id, data, created_at, updated_at)
			VALUES (?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, row := range t.Rows {
			data := model.Data{}
			for i, cell := range row {
				if i >= len(targets) || targets[i] == "" {
					continue
				}
				if v := strings.TrimSpace(cell); v != "" {
					data[targets[i]] = v
				}
			}
			if len(data) == 0 {
				result.Skipped++
				continue
			}

			if _, err := stmt.ExecContext(ctx, datasetID, data, now, now); err != nil {
				return database.Translate(err)
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
