package main

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Table is a loaded ticket export: a header row plus rows of text cells.
// Every cell is a string; date columns are parsed on demand, never in place.
// Header names are stripped of surrounding whitespace exactly once, at load.
type Table struct {
	Headers []string
	Rows    [][]string
}

func NewTable(headers []string, rows [][]string) Table {
	stripped := make([]string, len(headers))
	for i, h := range headers {
		stripped[i] = strings.TrimSpace(h)
	}
	return Table{Headers: stripped, Rows: rows}
}

// ColumnIndex returns the position of an exact header name, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the trimmed value at (row, col), or "" for a ragged row.
func (t Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[row][col])
}

// FilterEntry is one line of the filter log: what a step did and how many
// rows its output table had. Entries are appended for skipped steps too.
type FilterEntry struct {
	Description string `json:"description"`
	Rows        int    `json:"rows"`
}

// FilterParams is the fixed parameter set the default chain runs with.
// Candidate lists are ordered; resolution is first-match-wins.
type FilterParams struct {
	RecencyDays     int
	DateColumns     []string
	ProductColumns  []string
	ProductVariants []string
	AccountColumns  []string
	AllowedClients  []string
	TrackerColumns  []string
	TrackerBaseURL  string
	URLColumn       string
}

// Dataset is the working state for one loaded export. Raw is the table as
// read; Filtered and Log are the default chain's output; Insights is the
// history-wide view (product and client filters only) that search and the
// month-scoped analyses use. A new upload replaces the whole dataset.
type Dataset struct {
	ID       string
	Name     string
	Source   string // "upload", "sheet", or "watch"
	LoadedAt time.Time
	Raw      Table
	Filtered Table
	Insights Table
	Log      []FilterEntry
}

// BuildDataset runs the default chain over a loaded table and wraps the
// result as the new working dataset. Upload, sheet refresh, and the drop
// watcher all come through here.
func BuildDataset(name, source string, raw Table, p FilterParams) *Dataset {
	filtered, entries := ApplyDefaultFilters(raw, p)
	insights, _ := ApplyInsightsFilters(raw, p)
	return &Dataset{
		ID:       uuid.NewString(),
		Name:     name,
		Source:   source,
		LoadedAt: time.Now().UTC(),
		Raw:      raw,
		Filtered: filtered,
		Insights: insights,
		Log:      entries,
	}
}

// Metrics are the headline numbers shown on the dashboard.
type Metrics struct {
	TotalTickets   int     `json:"total_tickets"`
	EscalatedCount int     `json:"escalated_count"`
	EscalationRate float64 `json:"escalation_rate"`
	UniqueClients  int     `json:"unique_clients"`
	DateFrom       string  `json:"date_from"`
	DateTo         string  `json:"date_to"`
}

// JiraTicket is the flattened view of one fetched issue.
type JiraTicket struct {
	Key             string             `json:"key"`
	Summary         string             `json:"summary"`
	Status          string             `json:"status"`
	Priority        string             `json:"priority"`
	IssueType       string             `json:"issue_type"`
	Assignee        string             `json:"assignee"`
	Reporter        string             `json:"reporter"`
	Created         time.Time          `json:"created"`
	Updated         time.Time          `json:"updated"`
	Resolved        time.Time          `json:"resolved"`
	Labels          []string           `json:"labels"`
	Components      []string           `json:"components"`
	CommentCount    int                `json:"comment_count"`
	RecentComments  []string           `json:"recent_comments"`
	AttachmentCount int                `json:"attachment_count"`
	StatusHistory   []JiraStatusChange `json:"status_history"`
	ResolutionHours float64            `json:"resolution_hours"`
}

type JiraStatusChange struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	By   string    `json:"by"`
	At   time.Time `json:"at"`
}

// DevRevWork is the flattened view of one works.get response.
type DevRevWork struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Stage    string    `json:"stage"`
	Severity string    `json:"severity"`
	Owner    string    `json:"owner"`
	Created  time.Time `json:"created"`
}

// dateLayouts are tried in order when coercing a cell to a timestamp.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// parseDate coerces a cell to a timestamp. The zero time is the missing
// sentinel: unparseable values never error, they just fail date predicates.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
