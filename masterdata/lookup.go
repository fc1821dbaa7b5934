package masterdata

import (
	"context"
	"fmt"
	"sort"

	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/model"
)

// Choice is a record offered to a respondent looking up their identity.
type Choice struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

func matches(att model.Attachment, data model.Data, filters []string) bool {
	for i, value := range filters {
		if i >= len(att.FilterColumns) {
			break
		}
		if value == "" {
			continue
		}
		if v, _ := data.Text(att.FilterColumns[i]); v != value {
			return false
		}
	}
	return true
}

// FilterValues returns the sorted distinct values of the next cascading
// filter column, among the records matching the values already chosen.
func (s *Store) FilterValues(ctx context.Context, att model.Attachment, chosen []string) (string, []string, error) {
	if len(chosen) >= len(att.FilterColumns) {
		return "", nil, fault.Client("no filter left after %d values", len(chosen))
	}
	column := att.FilterColumns[len(chosen)]

	seen := map[string]bool{}
	err := s.EachRecord(ctx, att.DatasetID, func(rec model.Record) error {
		if !matches(att, rec.Data, chosen) {
			return nil
		}
		if v, _ := rec.Data.Text(column); v != "" {
			seen[v] = true
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return column, values, nil
}

// FilteredRecords lists the records matching the chosen filter values, labelled
// by the attachment's display column.
func (s *Store) FilteredRecords(ctx context.Context, att model.Attachment, chosen []string) ([]Choice, error) {
	choices := []Choice{}
	err := s.EachRecord(ctx, att.DatasetID, func(rec model.Record) error {
		if !matches(att, rec.Data, chosen) {
			return nil
		}
		label, ok := att.DisplayValue(rec.Data)
		if !ok {
			label = fmt.Sprintf("Record #%d", rec.ID)
		}
		choices = append(choices, Choice{ID: rec.ID, Label: label})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(choices, func(i, j int) bool { return choices[i].Label < choices[j].Label })
	return choices, nil
}
