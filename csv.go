package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadTable parses a delimited-text export. Every cell stays a string so a
// stray value can never poison a whole column; targeted date conversion
// happens later, per filter step. The only fatal input is an empty or
// unreadable file.
func ReadTable(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("csv is empty")
	}

	// Exports often end with blank lines; rows with no content at all are
	// noise, not data.
	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if !allBlank(rec) {
			rows = append(rows, rec)
		}
	}
	if len(rows) == 0 {
		return Table{}, fmt.Errorf("csv has a header but no data rows")
	}
	return NewTable(records[0], rows), nil
}

func allBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func ReadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteTable renders a table back to CSV, used for the filtered-table and
// search-result downloads.
func WriteTable(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range t.Rows {
		// Ragged rows are padded so the output stays rectangular.
		out := row
		if len(row) < len(t.Headers) {
			out = make([]string, len(t.Headers))
			copy(out, row)
		}
		if err := cw.Write(out); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// TableCSVString is a convenience for handlers that size the response body.
func TableCSVString(t Table) (string, error) {
	var b strings.Builder
	if err := WriteTable(&b, t); err != nil {
		return "", err
	}
	return b.String(), nil
}
