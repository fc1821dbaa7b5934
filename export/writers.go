package export

import (
	"encoding/csv"
	"io"

	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\xef\xbb\xbf"

type csvWriter struct {
	out   io.Writer
	w     *csv.Writer
	begun bool
}

// NewCSV writes UTF-8 CSV preceded by a byte-order mark, which spreadsheet
// programs need to detect the encoding.
func NewCSV(w io.Writer) RowWriter {
	return &csvWriter{out: w, w: csv.NewWriter(w)}
}

func (c *csvWriter) WriteRow(cells []string) error {
	if !c.begun {
		c.begun = true
		if _, err := io.WriteString(c.out, utf8BOM); err != nil {
			return err
		}
	}
	return c.w.Write(cells)
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

const sheetName = "Responses"

type xlsxWriter struct {
	out  io.Writer
	file *excelize.File
	sw   *excelize.StreamWriter
	row  int
}

// NewXLSX writes a single-sheet workbook. Rows are streamed to a temporary
// file by excelize and the workbook is written to w on Close.
func NewXLSX(w io.Writer) (RowWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, err
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &xlsxWriter{out: w, file: f, sw: sw}, nil
}

func (x *xlsxWriter) WriteRow(cells []string) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return x.sw.SetRow(cell, values)
}

func (x *xlsxWriter) Close() error {
	defer x.file.Close()
	if err := x.sw.Flush(); err != nil {
		return err
	}
	_, err := x.file.WriteTo(x.out)
	return err
}

// NewWriter returns the row writer for format f.
func NewWriter(f Format, w io.Writer) (RowWriter, error) {
	if f == XLSX {
		return NewXLSX(w)
	}
	return NewCSV(w), nil
}
