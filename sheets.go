package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// sheetFetchRange covers every populated cell of the first worksheet; the
// API trims it to the actual extent.
const sheetFetchRange = "A1:ZZ"

var sheetIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`),
	regexp.MustCompile(`key=([a-zA-Z0-9-_]+)`),
}

// ExtractSheetID pulls the spreadsheet ID out of a share URL. Bare IDs
// pass through unchanged.
func ExtractSheetID(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	for _, re := range sheetIDPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
	}
	if len(rawURL) > 20 && !strings.Contains(rawURL, "/") {
		return rawURL, nil
	}
	return "", fmt.Errorf("could not extract sheet ID from %q", rawURL)
}

// loadSheetFn is the seam between the ingest paths and the Sheets API.
// Swapped out in tests.
var loadSheetFn = LoadSheet

// LoadSheet reads the first worksheet of a spreadsheet into a Table. Cells
// arrive as formatted values and are kept as text, same as a CSV upload.
func LoadSheet(ctx context.Context, cfg Config, sheetURL string) (Table, error) {
	sheetID, err := ExtractSheetID(sheetURL)
	if err != nil {
		return Table{}, err
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(cfg.SheetsServiceAccountJSON)),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope))
	if err != nil {
		return Table{}, fmt.Errorf("creating sheets client: %w", err)
	}

	resp, err := svc.Spreadsheets.Values.Get(sheetID, sheetFetchRange).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 403 {
			if email := serviceAccountEmail(cfg); email != "" {
				return Table{}, fmt.Errorf("access to sheet %s denied: share it with %s", sheetID, email)
			}
		}
		return Table{}, fmt.Errorf("reading sheet %s: %w", sheetID, err)
	}

	table, err := tableFromValues(resp.Values)
	if err != nil {
		return Table{}, fmt.Errorf("sheet %s: %w", sheetID, err)
	}
	log.Printf("sheet loaded id=%s rows=%d cols=%d", sheetID, len(table.Rows), len(table.Headers))
	return table, nil
}

// tableFromValues converts the API value grid to a Table: first row is the
// header, all-blank rows are dropped, every cell becomes text.
func tableFromValues(values [][]interface{}) (Table, error) {
	if len(values) == 0 {
		return Table{}, fmt.Errorf("no data found")
	}

	headers := make([]string, len(values[0]))
	for i, v := range values[0] {
		headers[i] = fmt.Sprint(v)
	}

	rows := make([][]string, 0, len(values)-1)
	for _, rec := range values[1:] {
		row := make([]string, len(rec))
		blank := true
		for i, v := range rec {
			row[i] = fmt.Sprint(v)
			if strings.TrimSpace(row[i]) != "" {
				blank = false
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return Table{}, fmt.Errorf("header row only, no data rows")
	}
	return NewTable(headers, rows), nil
}

// serviceAccountEmail is surfaced in permission errors so the operator
// knows which account the sheet must be shared with.
func serviceAccountEmail(cfg Config) string {
	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal([]byte(cfg.SheetsServiceAccountJSON), &creds); err != nil {
		return ""
	}
	return creds.ClientEmail
}
