package main

import (
	"fmt"
	"strings"
	"testing"
)

func testParams() FilterParams {
	p := DefaultFilterParams()
	p.TrackerBaseURL = "https://tracker.example.com/browse/"
	return p
}

func tableCSV(t *testing.T, tab Table) string {
	t.Helper()
	s, err := TableCSVString(tab)
	if err != nil {
		t.Fatalf("render table: %v", err)
	}
	return s
}

func TestFilterRecentBoundaryInclusive(t *testing.T) {
	tab := NewTable(
		[]string{"Date", "Summary"},
		[][]string{
			{"2026-02-19", "forty days old"},
			{"2026-03-01", "exactly on the cutoff"},
			{"2026-03-30", "yesterday"},
			{"2026-03-31", "latest"},
		},
	)

	got, entry := filterRecent(tab, testParams())

	if len(got.Rows) != 3 {
		t.Fatalf("expected 3 rows kept, got %d:\n%s", len(got.Rows), tableCSV(t, got))
	}
	for _, row := range got.Rows {
		if row[0] == "2026-02-19" {
			t.Fatalf("row 40 days before the max date should be excluded:\n%s", tableCSV(t, got))
		}
	}
	if entry.Rows != 3 {
		t.Errorf("log entry rows = %d, want 3", entry.Rows)
	}
	want := "30-day filter (using Date): 2026-03-01 to 2026-03-31"
	if entry.Description != want {
		t.Errorf("entry description = %q, want %q", entry.Description, want)
	}
}

func TestFilterRecentUnparseableCellsFailThePredicate(t *testing.T) {
	tab := NewTable(
		[]string{"Date"},
		[][]string{
			{"2026-03-31"},
			{"not a date"},
			{""},
		},
	)

	got, _ := filterRecent(tab, testParams())
	if len(got.Rows) != 1 || got.Rows[0][0] != "2026-03-31" {
		t.Fatalf("only the parseable row should survive:\n%s", tableCSV(t, got))
	}
}

func TestFilterRecentDegradesWhenNothingParses(t *testing.T) {
	tab := NewTable(
		[]string{"Date"},
		[][]string{{"garbage"}, {"also garbage"}},
	)

	got, entry := filterRecent(tab, testParams())
	if len(got.Rows) != 2 {
		t.Fatalf("degraded step must pass the table through, got %d rows", len(got.Rows))
	}
	if !strings.HasPrefix(entry.Description, "Date filter error:") {
		t.Errorf("expected error entry, got %q", entry.Description)
	}
	if entry.Rows != 2 {
		t.Errorf("error entry rows = %d, want 2", entry.Rows)
	}
}

func TestFilterRecentSkipsWithoutDateColumn(t *testing.T) {
	tab := NewTable([]string{"Summary"}, [][]string{{"a"}, {"b"}})

	got, entry := filterRecent(tab, testParams())
	if len(got.Rows) != 2 {
		t.Fatalf("skipped step must pass the table through, got %d rows", len(got.Rows))
	}
	if entry.Description != "No date column found - showing all data" {
		t.Errorf("unexpected skip description: %q", entry.Description)
	}
}

func TestFilterProductCaseInsensitiveVariants(t *testing.T) {
	tab := NewTable(
		[]string{"Product name"},
		[][]string{
			{"LoyaltyPro"},
			{"LOYALTYPRO"},
			{"loyalty pro"},
			{"Loyalty_Pro"},
			{"RewardsMax"},
		},
	)

	got, entry := filterProduct(tab, testParams())
	if len(got.Rows) != 4 {
		t.Fatalf("expected 4 variant matches, got %d:\n%s", len(got.Rows), tableCSV(t, got))
	}
	if entry.Description != "LoyaltyPro filter" {
		t.Errorf("entry description = %q, want %q", entry.Description, "LoyaltyPro filter")
	}
}

func TestFilterProductIdempotent(t *testing.T) {
	tab := NewTable(
		[]string{"Product name", "Summary"},
		[][]string{
			{"LoyaltyPro", "one"},
			{"Other", "two"},
			{"loyaltypro", "three"},
		},
	)

	once, _ := filterProduct(tab, testParams())
	twice, _ := filterProduct(once, testParams())

	if tableCSV(t, once) != tableCSV(t, twice) {
		t.Fatalf("filtering an already-filtered table must be a no-op:\nonce:\n%s\ntwice:\n%s",
			tableCSV(t, once), tableCSV(t, twice))
	}
}

func TestFilterClientsExactCaseSensitive(t *testing.T) {
	tab := NewTable(
		[]string{"Account name"},
		[][]string{
			{"AU Bank"},
			{"au bank"},
			{"HDFC Bank"},
			{"HDFC Bank Ltd"},
		},
	)

	got, entry := filterClients(tab, testParams())
	if len(got.Rows) != 2 {
		t.Fatalf("expected 2 allowlisted rows, got %d:\n%s", len(got.Rows), tableCSV(t, got))
	}
	for _, row := range got.Rows {
		if row[0] == "au bank" {
			t.Fatal("lowercase variant must not pass a case-sensitive allowlist")
		}
	}
	if entry.Rows != 2 {
		t.Errorf("log entry rows = %d, want 2", entry.Rows)
	}
}

func TestFilterEscalatedKeepsOnlyRowsWithTrackerID(t *testing.T) {
	p := testParams()
	tab := NewTable(
		[]string{"Summary", "Jira ticket number if escalated to PSE"},
		[][]string{
			{"escalated", "ABC-123"},
			{"not escalated", ""},
			{"blank id", "   "},
		},
	)

	got, entry := filterEscalated(tab, p)
	if len(got.Rows) != 1 {
		t.Fatalf("expected 1 escalated row, got %d:\n%s", len(got.Rows), tableCSV(t, got))
	}
	urlIdx := got.ColumnIndex(p.URLColumn)
	if urlIdx < 0 {
		t.Fatalf("expected %q column to be added, headers: %v", p.URLColumn, got.Headers)
	}
	wantURL := "https://tracker.example.com/browse/ABC-123"
	if got.Cell(0, urlIdx) != wantURL {
		t.Errorf("derived URL = %q, want %q", got.Cell(0, urlIdx), wantURL)
	}
	if entry.Rows != 1 {
		t.Errorf("log entry rows = %d, want 1", entry.Rows)
	}
}

func TestDeriveTrackerURLsKeepsAllRows(t *testing.T) {
	tab := NewTable(
		[]string{"Ticket ID"},
		[][]string{{"ABC-9"}, {""}},
	)

	got := DeriveTrackerURLs(tab, "Ticket ID", "https://tracker.example.com/browse/", "Ticket URL")
	if len(got.Rows) != 2 {
		t.Fatalf("derivation must not drop rows, got %d", len(got.Rows))
	}
	urlIdx := got.ColumnIndex("Ticket URL")
	if got.Cell(0, urlIdx) != "https://tracker.example.com/browse/ABC-9" {
		t.Errorf("row with ID: URL = %q", got.Cell(0, urlIdx))
	}
	if got.Cell(1, urlIdx) != "" {
		t.Errorf("row without ID must get an empty string, got %q", got.Cell(1, urlIdx))
	}

	again := DeriveTrackerURLs(got, "Ticket ID", "https://tracker.example.com/browse/", "Ticket URL")
	if len(again.Headers) != len(got.Headers) {
		t.Errorf("re-deriving must not add a second URL column: %v", again.Headers)
	}
}

func TestApplyDefaultFiltersEndToEnd(t *testing.T) {
	var rows [][]string
	for i := 0; i < 100; i++ {
		product := "RewardsMax"
		if i < 10 {
			product = "LoyaltyPro"
		}
		account := "Some Other Org"
		if i < 5 {
			account = "HDFC Bank"
		}
		ticket := ""
		if i < 3 {
			ticket = fmt.Sprintf("PSE-%d", 100+i)
		}
		rows = append(rows, []string{"2026-03-10", product, account, ticket})
	}
	tab := NewTable(
		[]string{"Date", "Product name", "Account name", "Jira ticket number if escalated to PSE"},
		rows,
	)

	got, entries := ApplyDefaultFilters(tab, testParams())

	if len(got.Rows) != 3 {
		t.Fatalf("expected 3 rows after the full chain, got %d:\n%s", len(got.Rows), tableCSV(t, got))
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 log entries, got %d: %+v", len(entries), entries)
	}
	wantCounts := []int{100, 10, 5, 3}
	for i, entry := range entries {
		if entry.Rows != wantCounts[i] {
			t.Errorf("entry %d (%s) rows = %d, want %d", i, entry.Description, entry.Rows, wantCounts[i])
		}
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Rows > entries[i-1].Rows {
			t.Errorf("counts must be non-increasing: entry %d has %d after %d",
				i, entries[i].Rows, entries[i-1].Rows)
		}
	}
}

func TestApplyInsightsFiltersKeepsHistoryAndUnescalated(t *testing.T) {
	p := testParams()
	tab := NewTable(
		[]string{"Date", "Product name", "Account name", "Jira ticket number if escalated to PSE"},
		[][]string{
			{"2026-03-10", "LoyaltyPro", "AU Bank", "ABC-1"},
			{"2025-11-02", "loyaltypro", "HDFC Bank", ""},
			{"2026-03-11", "RewardsMax", "AU Bank", "ABC-2"},
			{"2026-03-12", "LoyaltyPro", "Not A Client", "ABC-3"},
		},
	)

	got, entries := ApplyInsightsFilters(tab, p)

	if len(got.Rows) != 2 {
		t.Fatalf("expected 2 rows (old and unescalated kept, wrong product/client dropped), got %d:\n%s",
			len(got.Rows), tableCSV(t, got))
	}
	for _, row := range got.Rows {
		if row[1] == "RewardsMax" || row[2] == "Not A Client" {
			t.Fatalf("product and client steps must still apply:\n%s", tableCSV(t, got))
		}
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries (product, client), got %d: %+v", len(entries), entries)
	}
	urlIdx := got.ColumnIndex(p.URLColumn)
	if urlIdx < 0 {
		t.Fatalf("expected derived %q column, headers: %v", p.URLColumn, got.Headers)
	}
	if got.Cell(0, urlIdx) != "https://tracker.example.com/browse/ABC-1" {
		t.Errorf("escalated row URL = %q", got.Cell(0, urlIdx))
	}
	if got.Cell(1, urlIdx) != "" {
		t.Errorf("unescalated row must keep an empty URL, got %q", got.Cell(1, urlIdx))
	}
}

func TestApplyDefaultFiltersAlwaysLogsFourEntries(t *testing.T) {
	tab := NewTable([]string{"Unrelated"}, [][]string{{"x"}, {"y"}})

	got, entries := ApplyDefaultFilters(tab, testParams())
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries even when every step skips, got %d", len(entries))
	}
	if len(got.Rows) != 2 {
		t.Fatalf("all-skip chain must pass the table through, got %d rows", len(got.Rows))
	}
	for i, entry := range entries {
		if entry.Rows != 2 {
			t.Errorf("entry %d rows = %d, want 2", i, entry.Rows)
		}
	}
}
