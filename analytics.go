package main

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const monthKeyLayout = "Jan-2006"

// ValueCount is one bar of a breakdown chart.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// SeriesPoint is one point of the volume trend.
type SeriesPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ValueChange compares one dimension value across two periods.
type ValueChange struct {
	Value     string  `json:"value"`
	Current   int     `json:"current"`
	Previous  int     `json:"previous"`
	Change    int     `json:"change"`
	ChangePct float64 `json:"change_pct"`
}

// ComputeMetrics derives the headline numbers from a filtered table. The
// escalated count is the number of distinct tracker IDs the extractor
// finds, so an ID referenced twice still counts once.
func ComputeMetrics(t Table, p FilterParams) Metrics {
	m := Metrics{TotalTickets: len(t.Rows)}

	m.EscalatedCount = len(ExtractTicketIDs(t, p.TrackerColumns))
	if m.TotalTickets > 0 {
		m.EscalationRate = round1(float64(m.EscalatedCount) / float64(m.TotalTickets) * 100)
	}

	if col, ok := ResolveColumn(t, p.AccountColumns); ok {
		idx := t.ColumnIndex(col)
		clients := make(map[string]bool)
		for i := range t.Rows {
			if v := t.Cell(i, idx); v != "" {
				clients[v] = true
			}
		}
		m.UniqueClients = len(clients)
	}

	if col, ok := ResolveColumn(t, p.DateColumns); ok {
		idx := t.ColumnIndex(col)
		var min, max time.Time
		for i := range t.Rows {
			ts, ok := parseDate(t.Cell(i, idx))
			if !ok {
				continue
			}
			if min.IsZero() || ts.Before(min) {
				min = ts
			}
			if ts.After(max) {
				max = ts
			}
		}
		if !min.IsZero() {
			m.DateFrom = min.Format("2006-01-02")
			m.DateTo = max.Format("2006-01-02")
		}
	}
	return m
}

// ValueCounts tallies non-blank values of one column, largest bucket first.
// Ties break alphabetically so chart order is stable.
func ValueCounts(t Table, col string) []ValueCount {
	idx := t.ColumnIndex(col)
	if idx < 0 {
		return nil
	}
	counts := make(map[string]int)
	for i := range t.Rows {
		if v := t.Cell(i, idx); v != "" {
			counts[v]++
		}
	}
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// FindColumnContaining is the loose lookup used for fields with no stable
// naming at all, like priority: any header containing the fragment,
// case-insensitively, first one wins.
func FindColumnContaining(t Table, fragment string) (string, bool) {
	fragment = strings.ToLower(fragment)
	for _, h := range t.Headers {
		if strings.Contains(strings.ToLower(h), fragment) {
			return h, true
		}
	}
	return "", false
}

// DailySeries counts tickets per calendar day, in date order. Rows whose
// date cell does not parse are left out.
func DailySeries(t Table, dateCol string) []SeriesPoint {
	return seriesBy(t, dateCol, func(ts time.Time) string {
		return ts.Format("2006-01-02")
	})
}

// WeeklySeries counts tickets per week, keyed by the Monday the week
// starts on.
func WeeklySeries(t Table, dateCol string) []SeriesPoint {
	return seriesBy(t, dateCol, func(ts time.Time) string {
		return weekStart(ts).Format("2006-01-02")
	})
}

// MonthlySeries counts tickets per month, keyed like Mar-2026.
func MonthlySeries(t Table, dateCol string) []SeriesPoint {
	return seriesBy(t, dateCol, func(ts time.Time) string {
		return ts.Format(monthKeyLayout)
	})
}

func seriesBy(t Table, dateCol string, keyFor func(time.Time) string) []SeriesPoint {
	idx := t.ColumnIndex(dateCol)
	if idx < 0 {
		return nil
	}
	counts := make(map[string]int)
	when := make(map[string]time.Time)
	for i := range t.Rows {
		ts, ok := parseDate(t.Cell(i, idx))
		if !ok {
			continue
		}
		key := keyFor(ts)
		counts[key]++
		if cur, seen := when[key]; !seen || ts.Before(cur) {
			when[key] = ts
		}
	}
	out := make([]SeriesPoint, 0, len(counts))
	for k, c := range counts {
		out = append(out, SeriesPoint{Date: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		return when[out[i].Date].Before(when[out[j].Date])
	})
	return out
}

// weekStart snaps a timestamp to the Monday of its week. Sunday rows belong
// to the week that started six days earlier.
func weekStart(ts time.Time) time.Time {
	offset := (int(ts.Weekday()) + 6) % 7
	return ts.AddDate(0, 0, -offset)
}

// MonthKeys lists the months present in the date column, oldest first.
func MonthKeys(t Table, dateCol string) []string {
	series := MonthlySeries(t, dateCol)
	keys := make([]string, len(series))
	for i, p := range series {
		keys[i] = p.Date
	}
	return keys
}

// LatestTwoMonths picks the newest and second-newest months for the
// month-over-month views. ok is false when the data spans fewer than two
// months.
func LatestTwoMonths(t Table, dateCol string) (current, previous string, ok bool) {
	keys := MonthKeys(t, dateCol)
	if len(keys) < 2 {
		return "", "", false
	}
	return keys[len(keys)-1], keys[len(keys)-2], true
}

// FilterByMonth keeps rows whose date cell falls in the given month key.
func FilterByMonth(t Table, dateCol, key string) Table {
	idx := t.ColumnIndex(dateCol)
	if idx < 0 {
		return Table{Headers: t.Headers}
	}
	var kept [][]string
	for i := range t.Rows {
		ts, ok := parseDate(t.Cell(i, idx))
		if ok && ts.Format(monthKeyLayout) == key {
			kept = append(kept, t.Rows[i])
		}
	}
	return Table{Headers: t.Headers, Rows: kept}
}

// CompareValueCounts diffs one dimension between two periods, biggest
// absolute movement first. The percentage uses max(previous, 1) so new
// values do not divide by zero.
func CompareValueCounts(current, previous Table, col string) []ValueChange {
	cur := countMap(current, col)
	prev := countMap(previous, col)

	all := make(map[string]bool)
	for v := range cur {
		all[v] = true
	}
	for v := range prev {
		all[v] = true
	}

	out := make([]ValueChange, 0, len(all))
	for v := range all {
		c, p := cur[v], prev[v]
		change := c - p
		denom := p
		if denom < 1 {
			denom = 1
		}
		out = append(out, ValueChange{
			Value:     v,
			Current:   c,
			Previous:  p,
			Change:    change,
			ChangePct: round1(float64(change) / float64(denom) * 100),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs(out[i].Change), abs(out[j].Change)
		if ai != aj {
			return ai > aj
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func countMap(t Table, col string) map[string]int {
	counts := make(map[string]int)
	idx := t.ColumnIndex(col)
	if idx < 0 {
		return counts
	}
	for i := range t.Rows {
		if v := t.Cell(i, idx); v != "" {
			counts[v]++
		}
	}
	return counts
}

// Crosstab is a two-dimensional count table. With margins it carries a
// Total row and column.
type Crosstab struct {
	RowField string   `json:"row_field"`
	ColField string   `json:"col_field"`
	Rows     []string `json:"rows"`
	Cols     []string `json:"cols"`
	Counts   [][]int  `json:"counts"`
}

const crosstabTotal = "Total"

// BuildCrosstab counts row-value x column-value pairs. Blank cells land in
// an Unknown bucket rather than vanishing, and a missing column makes the
// whole axis Unknown, so the table always renders.
func BuildCrosstab(t Table, rowField, colField string, margins bool) Crosstab {
	rowIdx := t.ColumnIndex(rowField)
	colIdx := t.ColumnIndex(colField)

	cell := func(i, idx int) string {
		if idx < 0 {
			return "Unknown"
		}
		if v := t.Cell(i, idx); v != "" {
			return v
		}
		return "Unknown"
	}

	counts := make(map[string]map[string]int)
	rowSet := make(map[string]bool)
	colSet := make(map[string]bool)
	for i := range t.Rows {
		r, c := cell(i, rowIdx), cell(i, colIdx)
		rowSet[r] = true
		colSet[c] = true
		if counts[r] == nil {
			counts[r] = make(map[string]int)
		}
		counts[r][c]++
	}

	ct := Crosstab{RowField: rowField, ColField: colField}
	ct.Rows = sortedKeys(rowSet)
	ct.Cols = sortedKeys(colSet)

	for _, r := range ct.Rows {
		line := make([]int, 0, len(ct.Cols)+1)
		sum := 0
		for _, c := range ct.Cols {
			n := counts[r][c]
			line = append(line, n)
			sum += n
		}
		if margins {
			line = append(line, sum)
		}
		ct.Counts = append(ct.Counts, line)
	}
	if margins {
		totals := make([]int, len(ct.Cols)+1)
		for _, line := range ct.Counts {
			for i, n := range line {
				totals[i] += n
			}
		}
		ct.Rows = append(ct.Rows, crosstabTotal)
		ct.Cols = append(ct.Cols, crosstabTotal)
		ct.Counts = append(ct.Counts, totals)
	}
	return ct
}

// Markdown renders the crosstab as a pipe table for prompts and reports.
func (ct Crosstab) Markdown() string {
	if len(ct.Rows) == 0 {
		return "| No data available |\n|---|\n"
	}
	var b strings.Builder
	b.WriteString("| " + ct.RowField)
	for _, c := range ct.Cols {
		b.WriteString(" | " + c)
	}
	b.WriteString(" |\n|")
	for i := 0; i <= len(ct.Cols); i++ {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for i, r := range ct.Rows {
		b.WriteString("| " + r)
		for _, n := range ct.Counts[i] {
			b.WriteString(" | " + fmt.Sprint(n))
		}
		b.WriteString(" |\n")
	}
	return b.String()
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
