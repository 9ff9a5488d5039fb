// Package ingest loads investor rows from data files for batch generation.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/warp/report-engine/report"
)

// ErrUnsupportedFormat is returned for data files that are not CSV.
var ErrUnsupportedFormat = errors.New("unsupported data file format")

// LoadFile reads the investor rows of a CSV file.
func LoadFile(path string) ([]report.Data, error) {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV reads investor rows from CSV. The first record names the fields.
// Cells are kept as text for the validator to coerce, except that empty
// cells become nil and the id column is parsed as an integer. Blank lines
// are skipped.
func LoadCSV(r io.Reader) ([]report.Data, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("data file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []report.Data
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if blank(record) {
			continue
		}
		if len(record) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("csv line %d has %d fields, header has %d", line, len(record), len(header))
		}

		row := make(report.Data, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			var cell string
			if i < len(record) {
				cell = strings.TrimSpace(record[i])
			}
			row[name] = cellValue(name, cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cellValue(field, cell string) any {
	if cell == "" {
		return nil
	}
	if field == report.FieldID {
		if id, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return id
		}
	}
	return cell
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
