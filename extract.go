package main

import (
	"regexp"
	"sort"
)

// Work-item keys as they appear embedded in free text, like DON-123 or
// PLT-456.
var (
	workIDRe      = regexp.MustCompile(`(?:DON|PLT|ISS|DEV|REV|TKT|WORK)-\d+`)
	workIDExactRe = regexp.MustCompile(`^(?:DON|PLT|ISS|DEV|REV|TKT|WORK)-\d+$`)
)

// ExtractTicketIDs collects tracker IDs from a table two ways: whole-cell
// values from every candidate ID column that exists, and work-item keys
// matched anywhere in the data. Column values are taken as-is, so IDs that
// do not match the key pattern (such as ABC-123) still count. Returns the
// deduplicated union, sorted.
func ExtractTicketIDs(t Table, candidates []string) []string {
	seen := make(map[string]bool)
	collectColumnIDs(t, candidates, seen)
	collectPatternIDs(t, seen)
	return sortedKeys(seen)
}

// ExtractColumnIDs collects non-blank values from every candidate ID column
// present in the table. Unlike ResolveColumn this walks all candidates, not
// just the first hit: exports sometimes carry the same IDs under two
// headers.
func ExtractColumnIDs(t Table, candidates []string) []string {
	seen := make(map[string]bool)
	collectColumnIDs(t, candidates, seen)
	return sortedKeys(seen)
}

// ExtractPatternIDs scans every cell for work-item keys embedded in free
// text, like "refer to PLT-456 for details".
func ExtractPatternIDs(t Table) []string {
	seen := make(map[string]bool)
	collectPatternIDs(t, seen)
	return sortedKeys(seen)
}

// LooksLikeWorkID reports whether an ID is a DevRev-style work key rather
// than a Jira issue key. Drives routing when a lookup does not say which
// tracker it wants.
func LooksLikeWorkID(id string) bool {
	return workIDExactRe.MatchString(id)
}

// SplitTrackerIDs partitions extracted IDs by tracker. Work-key-shaped IDs
// go to DevRev, everything else to Jira.
func SplitTrackerIDs(ids []string) (jira, devrev []string) {
	for _, id := range ids {
		if LooksLikeWorkID(id) {
			devrev = append(devrev, id)
		} else {
			jira = append(jira, id)
		}
	}
	return jira, devrev
}

func collectColumnIDs(t Table, candidates []string, seen map[string]bool) {
	for _, name := range candidates {
		idx := t.ColumnIndex(name)
		if idx < 0 {
			continue
		}
		for i := range t.Rows {
			if v := t.Cell(i, idx); v != "" {
				seen[v] = true
			}
		}
	}
}

func collectPatternIDs(t Table, seen map[string]bool) {
	for i := range t.Rows {
		for j := range t.Headers {
			for _, m := range workIDRe.FindAllString(t.Cell(i, j), -1) {
				seen[m] = true
			}
		}
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
