package masterdata

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/mbolis/survey-builder/model"
)

// WriteCSV streams a dataset as CSV, one column per dataset column in order.
func (s *Store) WriteCSV(ctx context.Context, datasetID int64, w io.Writer) error {
	cols, err := s.Columns(ctx, datasetID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err = cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(cols))
	err = s.EachRecord(ctx, datasetID, func(rec model.Record) error {
		for i, c := range cols {
			row[i], _ = rec.Data.Text(c.Name)
		}
		return cw.Write(row)
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}
