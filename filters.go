package main

import (
	"fmt"
	"strings"
	"time"
)

const defaultRecencyDays = 30
const defaultURLColumn = "Ticket URL"

// ApplyDefaultFilters runs the fixed chain: recency window, product match,
// client allowlist, escalation scope. Pure: the input table is never
// mutated. The chain always returns exactly one log entry per step, whether
// the step ran, was skipped, or degraded; counts are non-increasing. A step
// that cannot run passes its input through unchanged, so a bad export still
// renders.
func ApplyDefaultFilters(t Table, p FilterParams) (Table, []FilterEntry) {
	entries := make([]FilterEntry, 0, 4)

	t, entry := filterRecent(t, p)
	entries = append(entries, entry)

	t, entry = filterProduct(t, p)
	entries = append(entries, entry)

	t, entry = filterClients(t, p)
	entries = append(entries, entry)

	t, entry = filterEscalated(t, p)
	entries = append(entries, entry)

	return t, entries
}

// ApplyInsightsFilters runs the history-wide variant of the chain: product
// match and client allowlist only, no recency window and no escalation
// scope, then tracker URL derivation. Search and the month-scoped analyses
// work over this table so they see every month in the export.
func ApplyInsightsFilters(t Table, p FilterParams) (Table, []FilterEntry) {
	entries := make([]FilterEntry, 0, 2)

	t, entry := filterProduct(t, p)
	entries = append(entries, entry)

	t, entry = filterClients(t, p)
	entries = append(entries, entry)

	if col, ok := ResolveColumn(t, p.TrackerColumns); ok {
		t = DeriveTrackerURLs(t, col, p.TrackerBaseURL, p.URLColumn)
	}
	return t, entries
}

// filterRecent keeps rows whose creation date falls in the trailing window
// ending at the latest date present in the data. The cutoff is inclusive.
// Cells that fail to parse carry the missing sentinel and never satisfy the
// predicate. If no cell parses at all, the step degrades: the input table
// passes through with an error entry.
func filterRecent(t Table, p FilterParams) (Table, FilterEntry) {
	days := p.RecencyDays
	if days <= 0 {
		days = defaultRecencyDays
	}

	col, ok := ResolveColumn(t, p.DateColumns)
	if !ok {
		return t, FilterEntry{Description: "No date column found - showing all data", Rows: len(t.Rows)}
	}
	idx := t.ColumnIndex(col)

	parsed := make([]time.Time, len(t.Rows))
	var maxDate time.Time
	anyParsed := false
	for i := range t.Rows {
		ts, ok := parseDate(t.Cell(i, idx))
		if !ok {
			continue
		}
		parsed[i] = ts
		anyParsed = true
		if ts.After(maxDate) {
			maxDate = ts
		}
	}
	if !anyParsed {
		return t, FilterEntry{
			Description: fmt.Sprintf("Date filter error: no parseable dates in %s", col),
			Rows:        len(t.Rows),
		}
	}

	cutoff := maxDate.AddDate(0, 0, -days)
	var kept [][]string
	for i := range t.Rows {
		if parsed[i].IsZero() || parsed[i].Before(cutoff) {
			continue
		}
		kept = append(kept, t.Rows[i])
	}

	desc := fmt.Sprintf("%d-day filter (using %s): %s to %s",
		days, col, cutoff.Format("2006-01-02"), maxDate.Format("2006-01-02"))
	return Table{Headers: t.Headers, Rows: kept}, FilterEntry{Description: desc, Rows: len(kept)}
}

// filterProduct keeps rows whose product cell matches one of the configured
// spelling variants, case-insensitively.
func filterProduct(t Table, p FilterParams) (Table, FilterEntry) {
	if len(p.ProductVariants) == 0 {
		return t, FilterEntry{Description: "No product variants configured", Rows: len(t.Rows)}
	}
	col, ok := ResolveColumn(t, p.ProductColumns)
	if !ok {
		return t, FilterEntry{Description: fmt.Sprintf("No %s column found", primaryName(p.ProductColumns, "product")), Rows: len(t.Rows)}
	}
	idx := t.ColumnIndex(col)

	variants := make(map[string]bool, len(p.ProductVariants))
	for _, v := range p.ProductVariants {
		variants[strings.ToLower(strings.TrimSpace(v))] = true
	}

	var kept [][]string
	for i := range t.Rows {
		if variants[strings.ToLower(t.Cell(i, idx))] {
			kept = append(kept, t.Rows[i])
		}
	}

	desc := fmt.Sprintf("%s filter", p.ProductVariants[0])
	return Table{Headers: t.Headers, Rows: kept}, FilterEntry{Description: desc, Rows: len(kept)}
}

// filterClients keeps rows whose account cell is an exact, case-sensitive
// member of the allowlist. "au bank" is not "AU Bank".
func filterClients(t Table, p FilterParams) (Table, FilterEntry) {
	if len(p.AllowedClients) == 0 {
		return t, FilterEntry{Description: "No client allowlist configured", Rows: len(t.Rows)}
	}
	col, ok := ResolveColumn(t, p.AccountColumns)
	if !ok {
		return t, FilterEntry{Description: fmt.Sprintf("No %s column found", primaryName(p.AccountColumns, "account")), Rows: len(t.Rows)}
	}
	idx := t.ColumnIndex(col)

	allowed := make(map[string]bool, len(p.AllowedClients))
	for _, c := range p.AllowedClients {
		allowed[c] = true
	}

	var kept [][]string
	for i := range t.Rows {
		if allowed[t.Cell(i, idx)] {
			kept = append(kept, t.Rows[i])
		}
	}
	return Table{Headers: t.Headers, Rows: kept}, FilterEntry{Description: "Client filter", Rows: len(kept)}
}

// filterEscalated derives browse URLs for tracker IDs and scopes the table
// to escalated rows. Escalated means the tracker-ID cell is non-empty after
// trimming; a present-but-blank column does not count.
func filterEscalated(t Table, p FilterParams) (Table, FilterEntry) {
	col, ok := ResolveColumn(t, p.TrackerColumns)
	if !ok {
		return t, FilterEntry{Description: "No ticket ID column found", Rows: len(t.Rows)}
	}

	t = DeriveTrackerURLs(t, col, p.TrackerBaseURL, p.URLColumn)

	idx := t.ColumnIndex(col)
	var kept [][]string
	for i := range t.Rows {
		if t.Cell(i, idx) != "" {
			kept = append(kept, t.Rows[i])
		}
	}

	desc := fmt.Sprintf("Escalation filter (using %s)", col)
	return Table{Headers: t.Headers, Rows: kept}, FilterEntry{Description: desc, Rows: len(kept)}
}

// DeriveTrackerURLs returns a copy of the table with a URL column whose
// cells concatenate the base URL and the row's tracker ID. Rows without an
// ID get an empty string, never an error, and no row is dropped. Re-running
// over a table that already has the column overwrites it with the same
// values.
func DeriveTrackerURLs(t Table, idCol, baseURL, urlCol string) Table {
	if urlCol == "" {
		urlCol = defaultURLColumn
	}
	idIdx := t.ColumnIndex(idCol)
	if idIdx < 0 {
		return t
	}

	headers := t.Headers
	urlIdx := t.ColumnIndex(urlCol)
	if urlIdx < 0 {
		headers = append(append([]string{}, t.Headers...), urlCol)
		urlIdx = len(headers) - 1
	}

	rows := make([][]string, len(t.Rows))
	for i := range t.Rows {
		row := make([]string, len(headers))
		copy(row, t.Rows[i])
		if id := t.Cell(i, idIdx); id != "" && baseURL != "" {
			row[urlIdx] = baseURL + id
		} else {
			row[urlIdx] = ""
		}
		rows[i] = row
	}
	return Table{Headers: headers, Rows: rows}
}

// primaryName labels log messages with the field's first candidate so the
// text matches what operators see in their exports.
func primaryName(candidates []string, fallback string) string {
	if len(candidates) > 0 {
		return candidates[0]
	}
	return fallback
}
