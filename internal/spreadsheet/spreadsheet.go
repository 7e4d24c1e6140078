// Package spreadsheet reads uploaded CSV/XLSX files into header-keyed rows
// and writes rows back out for export. Column interpretation happens at the
// importer boundary, never here.
package spreadsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrEmptyFile is returned for files with no content at all.
	ErrEmptyFile = errors.New("spreadsheet is empty")
	// ErrNoRows is returned for files with a header but no data rows.
	ErrNoRows = errors.New("spreadsheet has no data rows")
	// ErrUnsupportedFormat is returned for file types we cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
)

// Row is one spreadsheet row keyed by column header.
type Row map[string]string

// Read parses an uploaded file into rows, dispatching on the file extension
// (.csv or .xlsx). The first row is treated as the header.
func Read(filename string, r io.Reader) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return readCSV(r)
	case ".xlsx":
		return readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

func readCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows happen in bank exports

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	return toRows(records)
}

func readXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	return toRows(records)
}

func toRows(records [][]string) ([]Row, error) {
	header := records[0]
	if len(records) == 1 {
		return nil, ErrNoRows
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(header))
		empty := true
		for i, col := range header {
			col = strings.TrimSpace(col)
			if col == "" || i >= len(record) {
				continue
			}
			value := strings.TrimSpace(record[i])
			row[col] = value
			if value != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

// WriteCSV serializes rows in header order.
func WriteCSV(w io.Writer, headers []string, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for i, h := range headers {
			record[i] = row[h]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX serializes rows into a single-sheet workbook.
func WriteXLSX(w io.Writer, sheet string, headers []string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, 1)
	if err != nil {
		return err
	}
	headerRow := make([]any, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, cell, &headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]any, len(headers))
		for j, h := range headers {
			values[j] = row[h]
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
