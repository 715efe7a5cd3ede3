package main

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"
)

const notSpecified = "Not specified"

// Analysis is one generated report, ready to persist and render.
type Analysis struct {
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Usage     LLMUsage  `json:"usage"`
	CreatedAt time.Time `json:"created_at"`
}

// RunAnalysis builds the prompt for the requested kind from the filtered
// table, calls the configured provider, and wraps the response. The deep
// dive kind works from fetched ticket content instead and is the only one
// that uses the tickets argument.
func RunAnalysis(cfg Config, kind string, ds *Dataset, tickets []JiraTicket) (Analysis, error) {
	if !ValidAnalysisKind(kind) {
		return Analysis{}, fmt.Errorf("unknown analysis kind %q", kind)
	}
	if !cfg.LLMConfigured() {
		return Analysis{}, fmt.Errorf("llm provider %s is not configured", cfg.LLMProvider)
	}
	if kind == AnalysisTicketDeepDive {
		return runTicketDeepDive(cfg, tickets)
	}
	if ds == nil || len(ds.Filtered.Rows) == 0 {
		return Analysis{}, fmt.Errorf("no dataset loaded")
	}

	p := cfg.filterParams()
	t := ds.Filtered

	var systemPrompt, userPrompt string
	switch kind {
	case AnalysisExecutiveSummary:
		systemPrompt, userPrompt = buildExecutiveSummaryPrompts(t, ComputeMetrics(t, p), p)
	case AnalysisTrends:
		systemPrompt, userPrompt = buildTrendsPrompts(t, p)
	case AnalysisMonthOverMonth:
		// Month comparisons need every month in the export, so they run
		// over the history-wide table, not the recency-cut one.
		history := ds.Insights
		dateCol, ok := ResolveColumn(history, p.DateColumns)
		if !ok {
			return Analysis{}, fmt.Errorf("no date column found in data")
		}
		currentKey, previousKey, ok := LatestTwoMonths(history, dateCol)
		if !ok {
			return Analysis{}, fmt.Errorf("need at least 2 months of data for comparison")
		}
		current := FilterByMonth(history, dateCol, currentKey)
		previous := FilterByMonth(history, dateCol, previousKey)
		systemPrompt, userPrompt = buildMonthOverMonthPrompts(current, previous, currentKey, previousKey, p)
	case AnalysisActionPlan:
		monthTable, monthLabel := latestMonthSlice(ds.Insights, p)
		systemPrompt, userPrompt = buildActionPlanPrompts(monthTable, monthLabel, p)
	case AnalysisJiraInsights:
		var err error
		systemPrompt, userPrompt, err = buildJiraInsightsPrompts(t, p)
		if err != nil {
			return Analysis{}, err
		}
	}

	text, usage, err := llmGenerateFn(cfg, systemPrompt, userPrompt)
	if err != nil {
		return Analysis{}, fmt.Errorf("generate %s analysis: %w", kind, err)
	}
	log.Printf("analysis done kind=%s tokens=%d", kind, usage.TotalTokens())
	return Analysis{
		Kind:      kind,
		Title:     analysisTitles[kind],
		Content:   strings.TrimSpace(text),
		Provider:  cfg.LLMProvider,
		Model:     resolveLLMModel(cfg),
		Usage:     usage,
		CreatedAt: time.Now(),
	}, nil
}

// latestMonthSlice narrows the table to its most recent month. Falls back
// to the whole table when no dates resolve.
func latestMonthSlice(t Table, p FilterParams) (Table, string) {
	dateCol, ok := ResolveColumn(t, p.DateColumns)
	if !ok {
		return t, ""
	}
	keys := MonthKeys(t, dateCol)
	if len(keys) == 0 {
		return t, ""
	}
	key := keys[len(keys)-1]
	return FilterByMonth(t, dateCol, key), key
}

func runTicketDeepDive(cfg Config, tickets []JiraTicket) (Analysis, error) {
	if len(tickets) == 0 {
		return Analysis{}, fmt.Errorf("no ticket content fetched for deep dive")
	}
	var totalUsage LLMUsage
	var analyses []TicketAnalysis
	fallbacks := 0
	for _, tk := range tickets {
		systemPrompt, userPrompt := buildTicketDeepDivePrompts(tk)
		text, usage, err := llmGenerateFn(cfg, systemPrompt, userPrompt)
		totalUsage.Add(usage)
		if err != nil {
			log.Printf("deep dive skipped ticket=%s err=%v", tk.Key, err)
			continue
		}
		a, parsed := ParseTicketAnalysis(text)
		if !parsed {
			fallbacks++
		}
		a.TicketKey = tk.Key
		analyses = append(analyses, a)
	}
	if len(analyses) == 0 {
		return Analysis{}, fmt.Errorf("deep dive produced no analyses")
	}
	if fallbacks > 0 {
		log.Printf("deep dive label fallback tickets=%d", fallbacks)
	}
	return Analysis{
		Kind:      AnalysisTicketDeepDive,
		Title:     analysisTitles[AnalysisTicketDeepDive],
		Content:   renderDeepDive(analyses, DetectPatterns(tickets)),
		Provider:  cfg.LLMProvider,
		Model:     resolveLLMModel(cfg),
		Usage:     totalUsage,
		CreatedAt: time.Now(),
	}, nil
}

// TicketAnalysis is the structured assessment asked for per ticket. Field
// names mirror the JSON keys the prompt demands.
type TicketAnalysis struct {
	TicketKey             string `json:"ticket_key,omitempty"`
	Category              string `json:"category"`
	Subcategory           string `json:"subcategory"`
	RootCause             string `json:"root_cause"`
	PrimarySymptom        string `json:"primary_symptom"`
	ActionsTaken          string `json:"actions_taken"`
	BusinessImpact        string `json:"business_impact"`
	PreventionSuggestions string `json:"prevention_suggestions"`
	CustomerSentiment     string `json:"customer_sentiment"`
	TechnicalComplexity   string `json:"technical_complexity"`
}

func (a *TicketAnalysis) fillMissing() {
	a.Category = orNotSpecified(a.Category)
	a.Subcategory = orNotSpecified(a.Subcategory)
	a.RootCause = orNotSpecified(a.RootCause)
	a.PrimarySymptom = orNotSpecified(a.PrimarySymptom)
	a.ActionsTaken = orNotSpecified(a.ActionsTaken)
	a.BusinessImpact = orNotSpecified(a.BusinessImpact)
	a.PreventionSuggestions = orNotSpecified(a.PreventionSuggestions)
	a.CustomerSentiment = orNotSpecified(a.CustomerSentiment)
	a.TechnicalComplexity = orNotSpecified(a.TechnicalComplexity)
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return notSpecified
	}
	return strings.TrimSpace(s)
}

// ParseTicketAnalysis decodes a model response. When the JSON the prompt
// asked for does not come back, it degrades to scanning "label: value"
// lines, so a sloppy response still yields a usable record. The bool
// reports whether the strict path worked.
func ParseTicketAnalysis(raw string) (TicketAnalysis, bool) {
	cleaned := stripCodeFences(raw)

	var a TicketAnalysis
	if err := json.Unmarshal([]byte(cleaned), &a); err == nil && (a.Category != "" || a.RootCause != "") {
		a.fillMissing()
		return a, true
	}

	fields := extractLabeledFields(cleaned)
	a = TicketAnalysis{
		Category:              fields["category"],
		Subcategory:           fields["subcategory"],
		RootCause:             fields["root_cause"],
		PrimarySymptom:        fields["primary_symptom"],
		ActionsTaken:          fields["actions_taken"],
		BusinessImpact:        fields["business_impact"],
		PreventionSuggestions: fields["prevention_suggestions"],
		CustomerSentiment:     fields["customer_sentiment"],
		TechnicalComplexity:   fields["technical_complexity"],
	}
	a.fillMissing()
	return a, false
}

var labelFieldRe = regexp.MustCompile(`(?i)"?([a-z][a-z0-9_ ]*)"?\s*:\s*["']?([^"'\n]+)`)

// extractLabeledFields pulls key/value pairs out of free text. Keys are
// lowercased with spaces collapsed to underscores so "Root Cause: x" and
// `"root_cause": "x"` both land under root_cause. First occurrence wins.
func extractLabeledFields(text string) map[string]string {
	out := make(map[string]string)
	for _, m := range labelFieldRe.FindAllStringSubmatch(text, -1) {
		key := strings.ToLower(strings.TrimSpace(m[1]))
		key = strings.ReplaceAll(key, " ", "_")
		val := strings.TrimSpace(m[2])
		val = strings.Trim(val, "*")
		val = strings.TrimSuffix(strings.TrimSpace(val), ",")
		val = strings.TrimSpace(val)
		if val == "" || out[key] != "" {
			continue
		}
		out[key] = val
	}
	return out
}

// TicketPattern is a recurring shape found across fetched tickets.
type TicketPattern struct {
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Count   int      `json:"count"`
	Tickets []string `json:"tickets"`
}

// DetectPatterns flags repeated issue types, statuses tickets pile up in,
// and tickets that took more than two days to resolve.
func DetectPatterns(tickets []JiraTicket) []TicketPattern {
	var patterns []TicketPattern

	byType := groupTicketKeys(tickets, func(tk JiraTicket) string { return tk.IssueType })
	typeGroups := sortGroups(byType)
	if len(typeGroups) > 5 {
		typeGroups = typeGroups[:5]
	}
	for _, g := range typeGroups {
		if len(g.keys) < 2 {
			continue
		}
		patterns = append(patterns, TicketPattern{
			Type:    "issue_type",
			Name:    fmt.Sprintf("Frequent %s Issues", g.value),
			Count:   len(g.keys),
			Tickets: g.keys,
		})
	}

	byStatus := groupTicketKeys(tickets, func(tk JiraTicket) string { return tk.Status })
	for _, g := range sortGroups(byStatus) {
		if len(g.keys) < 3 {
			continue
		}
		patterns = append(patterns, TicketPattern{
			Type:    "status",
			Name:    fmt.Sprintf("Tickets Stuck in %s", g.value),
			Count:   len(g.keys),
			Tickets: g.keys,
		})
	}

	var slow []string
	for _, tk := range tickets {
		if tk.ResolutionHours > 48 {
			slow = append(slow, tk.Key)
		}
	}
	if len(slow) >= 2 {
		patterns = append(patterns, TicketPattern{
			Type:    "resolution_time",
			Name:    "Long Resolution Time Issues",
			Count:   len(slow),
			Tickets: slow,
		})
	}

	return patterns
}

type ticketGroup struct {
	value string
	keys  []string
}

func groupTicketKeys(tickets []JiraTicket, by func(JiraTicket) string) map[string][]string {
	out := make(map[string][]string)
	for _, tk := range tickets {
		v := strings.TrimSpace(by(tk))
		if v == "" {
			continue
		}
		out[v] = append(out[v], tk.Key)
	}
	return out
}

func sortGroups(m map[string][]string) []ticketGroup {
	groups := make([]ticketGroup, 0, len(m))
	for v, keys := range m {
		groups = append(groups, ticketGroup{value: v, keys: keys})
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].keys) != len(groups[j].keys) {
			return len(groups[i].keys) > len(groups[j].keys)
		}
		return groups[i].value < groups[j].value
	})
	return groups
}

func renderDeepDive(analyses []TicketAnalysis, patterns []TicketPattern) string {
	var b strings.Builder
	b.WriteString("## Ticket Analyses\n\n")
	b.WriteString("| Ticket | Category | Root Cause | Impact |\n|---|---|---|---|\n")
	for _, a := range analyses {
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", a.TicketKey, a.Category, truncateText(a.RootCause, 120), a.BusinessImpact))
	}

	for _, a := range analyses {
		b.WriteString(fmt.Sprintf("\n### %s\n\n", a.TicketKey))
		b.WriteString(fmt.Sprintf("* Category: %s / %s\n", a.Category, a.Subcategory))
		b.WriteString(fmt.Sprintf("* Primary symptom: %s\n", a.PrimarySymptom))
		b.WriteString(fmt.Sprintf("* Root cause: %s\n", a.RootCause))
		b.WriteString(fmt.Sprintf("* Actions taken: %s\n", a.ActionsTaken))
		b.WriteString(fmt.Sprintf("* Business impact: %s\n", a.BusinessImpact))
		b.WriteString(fmt.Sprintf("* Prevention: %s\n", a.PreventionSuggestions))
		b.WriteString(fmt.Sprintf("* Customer sentiment: %s\n", a.CustomerSentiment))
		b.WriteString(fmt.Sprintf("* Technical complexity: %s\n", a.TechnicalComplexity))
	}

	if len(patterns) > 0 {
		b.WriteString("\n## Recurring Patterns\n\n")
		b.WriteString("| Pattern | Count | Tickets |\n|---|---|---|\n")
		for _, p := range patterns {
			b.WriteString(fmt.Sprintf("| %s | %d | %s |\n", p.Name, p.Count, strings.Join(p.Tickets, ", ")))
		}
	}
	return b.String()
}
