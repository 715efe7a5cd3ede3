package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Analysis kinds accepted by RunAnalysis and the /api/analyze endpoint.
const (
	AnalysisExecutiveSummary = "executive_summary"
	AnalysisTrends           = "trends"
	AnalysisMonthOverMonth   = "month_over_month"
	AnalysisActionPlan       = "action_plan"
	AnalysisTicketDeepDive   = "ticket_deep_dive"
	AnalysisJiraInsights     = "jira_insights"
)

var analysisTitles = map[string]string{
	AnalysisExecutiveSummary: "Executive Summary",
	AnalysisTrends:           "Trend Analysis",
	AnalysisMonthOverMonth:   "Month-over-Month Comparison",
	AnalysisActionPlan:       "Root Cause & Action Plan",
	AnalysisTicketDeepDive:   "Ticket Deep Dive",
	AnalysisJiraInsights:     "Jira Pattern Insights",
}

// analysisKindOrder fixes the display order of the analysis buttons and
// rendered reports on the dashboard.
var analysisKindOrder = []string{
	AnalysisExecutiveSummary,
	AnalysisTrends,
	AnalysisMonthOverMonth,
	AnalysisActionPlan,
	AnalysisTicketDeepDive,
	AnalysisJiraInsights,
}

func ValidAnalysisKind(kind string) bool {
	_, ok := analysisTitles[kind]
	return ok
}

// analysisColumns holds the resolved header names the prompt builders read
// from. Any of these may be empty when the export lacks that column.
type analysisColumns struct {
	date        string
	client      string
	category    string
	subcategory string
	status      string
	priority    string
	tracker     string
}

func resolveAnalysisColumns(t Table, p FilterParams) analysisColumns {
	var cols analysisColumns
	cols.date, _ = ResolveColumn(t, p.DateColumns)
	cols.client, _ = ResolveColumn(t, p.AccountColumns)
	cols.tracker, _ = ResolveColumn(t, p.TrackerColumns)
	cols.category, _ = FindColumnContaining(t, "category")
	cols.subcategory, _ = FindColumnContaining(t, "sub-category")
	cols.status, _ = FindColumnContaining(t, "status")
	cols.priority, _ = FindColumnContaining(t, "priority")
	return cols
}

// nonEmptyRows keeps the rows whose cell in col is non-blank. An empty col
// name keeps nothing so callers can degrade when resolution failed.
func nonEmptyRows(t Table, col string) Table {
	out := Table{Headers: t.Headers}
	idx := t.ColumnIndex(col)
	if col == "" || idx < 0 {
		return out
	}
	for i := range t.Rows {
		if t.Cell(i, idx) != "" {
			out.Rows = append(out.Rows, t.Rows[i])
		}
	}
	return out
}

type escalatedTicket struct {
	TicketID    string `json:"ticket_id"`
	Date        string `json:"date"`
	Client      string `json:"client"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Status      string `json:"status"`
}

// escalatedTicketList flattens the escalated rows into the compact records
// sent inside [TICKET_SUMMARY] blocks, capped to keep prompts bounded.
func escalatedTicketList(t Table, cols analysisColumns, limit int) []escalatedTicket {
	escalated := nonEmptyRows(t, cols.tracker)
	trackerIdx := escalated.ColumnIndex(cols.tracker)
	dateIdx := escalated.ColumnIndex(cols.date)
	clientIdx := escalated.ColumnIndex(cols.client)
	categoryIdx := escalated.ColumnIndex(cols.category)
	subIdx := escalated.ColumnIndex(cols.subcategory)
	statusIdx := escalated.ColumnIndex(cols.status)

	var out []escalatedTicket
	for i := range escalated.Rows {
		if len(out) >= limit {
			break
		}
		date := ""
		if ts, ok := parseDate(escalated.Cell(i, dateIdx)); ok {
			date = ts.Format("2006-01-02")
		}
		out = append(out, escalatedTicket{
			TicketID:    escalated.Cell(i, trackerIdx),
			Date:        date,
			Client:      escalated.Cell(i, clientIdx),
			Category:    escalated.Cell(i, categoryIdx),
			Subcategory: escalated.Cell(i, subIdx),
			Status:      escalated.Cell(i, statusIdx),
		})
	}
	return out
}

func buildExecutiveSummaryPrompts(t Table, m Metrics, p FilterParams) (string, string) {
	cols := resolveAnalysisColumns(t, p)

	tickets := escalatedTicketList(t, cols, 200)
	ticketJSON, err := json.Marshal(tickets)
	if err != nil || len(tickets) == 0 {
		ticketJSON = []byte("[]")
	}

	var overview strings.Builder
	overview.WriteString(fmt.Sprintf("- total tickets: %d\n", m.TotalTickets))
	overview.WriteString(fmt.Sprintf("- escalated tickets: %d (%.1f%%)\n", m.EscalatedCount, m.EscalationRate))
	overview.WriteString(fmt.Sprintf("- unique clients: %d\n", m.UniqueClients))
	if m.DateFrom != "" {
		overview.WriteString(fmt.Sprintf("- date range: %s to %s\n", m.DateFrom, m.DateTo))
	}
	for _, line := range topCountLines(t, cols.category, "top issue categories", 8) {
		overview.WriteString(line)
	}
	for _, line := range topCountLines(t, cols.client, "top clients", 8) {
		overview.WriteString(line)
	}

	systemPrompt := `You are a data science expert specializing in support operations analytics for fintech platforms. You analyze support ticket datasets to extract strategic insights and identify actionable patterns.`

	userPrompt := fmt.Sprintf(`Analyze this dataset of support tickets.

[OVERVIEW]
%s[/OVERVIEW]

[TICKET_SUMMARY]
%s
[/TICKET_SUMMARY]

Conduct a comprehensive multi-dimensional analysis and provide the following:

1. **EXECUTIVE INTELLIGENCE BRIEF**
   - 3-5 sentence executive summary highlighting critical patterns and actionable intelligence
   - Key performance metrics with notable changes
   - Overall health assessment

2. **CLIENT ECOSYSTEM ANALYSIS**
   - Client segmentation by ticket volume and issue types
   - Identification of outlier clients requiring special attention

3. **TECHNICAL ROOT CAUSE MAPPING**
   - Clustering of issues by underlying technical causes
   - Correlation between issue categories and specific system components

4. **TEMPORAL PATTERN RECOGNITION**
   - Ticket volume trends across the date range
   - Detection of anomalous spikes or patterns

5. **BUSINESS IMPACT ASSESSMENT**
   - Highest-impact issue categories and clients
   - Client satisfaction risk assessment based on ticket patterns

6. **STRATEGIC RECOMMENDATIONS**
   - 3-5 high-impact, actionable recommendations with expected outcomes
   - Prioritized engineering initiatives to reduce ticket volume

Format your analysis as a structured report with clear section headers. Use bullet points for clarity but provide detailed technical explanations where needed. Include specific metrics and percentages where possible.`, overview.String(), ticketJSON)

	return systemPrompt, userPrompt
}

func buildTrendsPrompts(t Table, p FilterParams) (string, string) {
	cols := resolveAnalysisColumns(t, p)
	crosstab := BuildCrosstab(t, promptField(cols.client, "Account name"), promptField(cols.category, "Issue Category"), true)

	var monthly strings.Builder
	if cols.date != "" {
		for _, pt := range MonthlySeries(t, cols.date) {
			monthly.WriteString(fmt.Sprintf("- %s: %d tickets\n", pt.Date, pt.Count))
		}
	}
	monthlyBlock := "no parseable dates"
	if monthly.Len() > 0 {
		monthlyBlock = monthly.String()
	}

	systemPrompt := `You are a data analyst specializing in support operations for fintech companies.`

	userPrompt := fmt.Sprintf(`Analyze this ticket distribution data.

[TICKET DISTRIBUTION]
%s[/TICKET DISTRIBUTION]

[MONTHLY VOLUME]
%s[/MONTHLY VOLUME]

Create a concise analysis with markdown tables showing:
1. Top issue categories by volume
2. Top clients by ticket count
3. Month-over-month volume trend
4. Key patterns and insights

Keep analysis extremely brief with proper markdown table formatting.`, crosstab.Markdown(), monthlyBlock)

	return systemPrompt, userPrompt
}

func buildMonthOverMonthPrompts(current, previous Table, currentMonth, previousMonth string, p FilterParams) (string, string) {
	cols := resolveAnalysisColumns(current, p)

	categories := changeTable("Issue Category", CompareValueCounts(current, previous, cols.category), previousMonth, currentMonth)
	clients := changeTable("Account name", CompareValueCounts(current, previous, cols.client), previousMonth, currentMonth)

	systemPrompt := fmt.Sprintf(`You are a data analyst specializing in support operations for fintech companies. You are given ticket count data comparing %s to %s. Format your analysis EXACTLY like the reference format.`, previousMonth, currentMonth)

	userPrompt := fmt.Sprintf(`[CATEGORY COMPARISON]
%s[/CATEGORY COMPARISON]

[CLIENT COMPARISON]
%s[/CLIENT COMPARISON]

Create a concise, tabulated analysis with EXACTLY this format:

## Month-over-Month Comparison: %s vs %s

[1 sentence summary of overall change]

## Issue Category Changes

[CREATE TABLE with Issue Category, %s, %s, Delta columns, sorted by Delta descending]

[1 sentence explanation of the biggest category change]

## Client Changes

[CREATE TABLE with Account name, %s, %s, Delta columns, sorted by Delta descending]

[1 sentence explanation of the biggest client change]

## Top Focus Areas

[CREATE TABLE with 3-5 rows showing Client, Category, Delta, Root Cause (1-2 words), Action (1-2 words)]

CRITICAL FORMATTING REQUIREMENTS:
1. Use ONLY markdown tables, NOT HTML tables
2. Keep all analysis EXTREMELY concise - no more than 1-2 sentences per section
3. Tables must be formatted exactly as shown in the instructions
4. Only show the most significant items in each table (limit to top 5-7 entries)
5. Do not include any introduction or conclusion`,
		categories, clients,
		previousMonth, currentMonth,
		previousMonth, currentMonth,
		previousMonth, currentMonth)

	return systemPrompt, userPrompt
}

func buildActionPlanPrompts(t Table, monthLabel string, p FilterParams) (string, string) {
	cols := resolveAnalysisColumns(t, p)
	crosstab := BuildCrosstab(t, promptField(cols.client, "Account name"), promptField(cols.category, "Issue Category"), true)

	period := "this period"
	if monthLabel != "" {
		period = monthLabel
	}

	systemPrompt := `You are a support operations analyst for a fintech company. You create root cause analyses and action plans from ticket distribution data.`

	userPrompt := fmt.Sprintf(`Based on this ticket data for %s, create a root cause analysis and action plan in the EXACT format shown below.

[TICKET DISTRIBUTION]
%s[/TICKET DISTRIBUTION]

Create a concise, tabulated action plan with EXACTLY this format:

## Path to Ticket Reduction

[1 sentence stating roughly what share of these tickets can be reduced through specific actions]

[CREATE TABLE with columns: Client, Issue Category, #Tickets that can be reduced, Reason, Actionables]
- Format exactly like this example:
| Client | Issue Category | #Tickets that can be reduced | Reason | Actionables |
|------|---------------|----------------------------|--------|------------|
| Client1 | Category1 | 25 | Brief reason | Brief action |

## Potential Impact

[CREATE TABLE showing: Current baseline, Reduction potential, New potential baseline]

CRITICAL FORMATTING REQUIREMENTS:
1. Use ONLY markdown tables, NOT HTML tables
2. Make tables EXACTLY match the format shown
3. Be extremely brief in the "Reason" and "Actionables" columns - no more than 10 words each
4. Focus on the highest-impact items (those that can reduce the most tickets)
5. Group similar issues that have the same resolution
6. Format the final calculation as simple math: "189-124 = 65"
7. No introduction, conclusion, or additional sections`, period, crosstab.Markdown())

	return systemPrompt, userPrompt
}

func buildTicketDeepDivePrompts(tk JiraTicket) (string, string) {
	var ctx strings.Builder
	ctx.WriteString(fmt.Sprintf("Ticket ID: %s\n", tk.Key))
	ctx.WriteString(fmt.Sprintf("Summary: %s\n", orUnknown(tk.Summary)))
	ctx.WriteString(fmt.Sprintf("Status: %s\n", orUnknown(tk.Status)))
	ctx.WriteString(fmt.Sprintf("Priority: %s\n", orUnknown(tk.Priority)))
	ctx.WriteString(fmt.Sprintf("Issue Type: %s\n", orUnknown(tk.IssueType)))
	if len(tk.Labels) > 0 {
		ctx.WriteString(fmt.Sprintf("Labels: %s\n", strings.Join(tk.Labels, ", ")))
	}
	if len(tk.Components) > 0 {
		ctx.WriteString(fmt.Sprintf("Components: %s\n", strings.Join(tk.Components, ", ")))
	}
	if len(tk.RecentComments) > 0 {
		ctx.WriteString("Recent Comments:\n")
		for i, c := range tk.RecentComments {
			ctx.WriteString(fmt.Sprintf("Comment %d: %s\n", i+1, truncateText(c, 500)))
		}
	}
	if len(tk.StatusHistory) > 0 {
		ctx.WriteString("Status Changes:\n")
		history := tk.StatusHistory
		if len(history) > 5 {
			history = history[len(history)-5:]
		}
		for _, ch := range history {
			ctx.WriteString(fmt.Sprintf("From %s to %s on %s\n", orUnknown(ch.From), orUnknown(ch.To), ch.At.Format("2006-01-02")))
		}
	}
	if tk.ResolutionHours > 0 {
		ctx.WriteString(fmt.Sprintf("Resolution Time: %.1f hours\n", tk.ResolutionHours))
	}

	systemPrompt := `You are an expert support operations analyst for a fintech platform. Analyze the support ticket below and provide a comprehensive root cause analysis.

Focus on:
1. Identifying the true root cause, not just symptoms
2. Understanding the customer's perspective and impact
3. Recognizing patterns that could help prevent future issues
4. Providing actionable insights for improvement

Be specific and practical. Use your knowledge of fintech and payment processing to provide contextual insights.`

	userPrompt := fmt.Sprintf(`TICKET CONTEXT:
%s
Respond with JSON only (no markdown):
{"category": "Primary issue category (e.g. 'Technical Integration', 'Payment Processing', 'Account Management', 'API Issues', 'Configuration')", "subcategory": "Specific subcategory within the main category", "root_cause": "Detailed root cause analysis - what actually caused this issue", "primary_symptom": "Main symptom or problem reported by the user", "actions_taken": "Summary of actions taken to resolve the issue", "business_impact": "Assessment of business impact: Low/Medium/High", "prevention_suggestions": "Specific suggestions to prevent similar issues", "customer_sentiment": "Perceived customer sentiment: Positive/Neutral/Negative", "technical_complexity": "Technical complexity level: Low/Medium/High"}`, ctx.String())

	return systemPrompt, userPrompt
}

type clientCategoryCombo struct {
	Client        string         `json:"client"`
	Category      string         `json:"category"`
	Count         int            `json:"count"`
	SampleTickets []sampleTicket `json:"sample_tickets"`
}

type sampleTicket struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// escalationCombos groups escalated rows by client x category, most frequent
// first, keeping a few sample ticket IDs per group for the prompt.
func escalationCombos(t Table, cols analysisColumns, baseURL string, limit int) []clientCategoryCombo {
	escalated := nonEmptyRows(t, cols.tracker)
	trackerIdx := escalated.ColumnIndex(cols.tracker)
	clientIdx := escalated.ColumnIndex(cols.client)
	categoryIdx := escalated.ColumnIndex(cols.category)
	statusIdx := escalated.ColumnIndex(cols.status)
	priorityIdx := escalated.ColumnIndex(cols.priority)

	byKey := make(map[string]*clientCategoryCombo)
	var order []string
	for i := range escalated.Rows {
		client := escalated.Cell(i, clientIdx)
		if client == "" {
			client = "Unknown"
		}
		category := escalated.Cell(i, categoryIdx)
		if category == "" {
			category = "Unknown"
		}
		key := client + "\x00" + category
		combo := byKey[key]
		if combo == nil {
			combo = &clientCategoryCombo{Client: client, Category: category}
			byKey[key] = combo
			order = append(order, key)
		}
		combo.Count++
		if len(combo.SampleTickets) < 3 {
			id := escalated.Cell(i, trackerIdx)
			combo.SampleTickets = append(combo.SampleTickets, sampleTicket{
				ID:       id,
				URL:      baseURL + id,
				Status:   escalated.Cell(i, statusIdx),
				Priority: escalated.Cell(i, priorityIdx),
			})
		}
	}

	out := make([]clientCategoryCombo, 0, len(byKey))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Client != out[j].Client {
			return out[i].Client < out[j].Client
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func buildJiraInsightsPrompts(t Table, p FilterParams) (string, string, error) {
	cols := resolveAnalysisColumns(t, p)
	if cols.tracker == "" {
		return "", "", fmt.Errorf("no ticket ID column found in data")
	}
	combos := escalationCombos(t, cols, p.TrackerBaseURL, 10)
	if len(combos) == 0 {
		return "", "", fmt.Errorf("no escalated tickets found in the filtered data")
	}
	comboJSON, err := json.MarshalIndent(combos, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode ticket combinations: %w", err)
	}

	systemPrompt := `You are a support operations analyst for a fintech company specializing in loyalty and rewards platforms. Based on escalated ticket data, you provide detailed pattern analysis for client-category combinations.`

	userPrompt := fmt.Sprintf(`[TICKET_COMBINATIONS]
%s
[/TICKET_COMBINATIONS]

Create a detailed analysis titled "Key Patterns & Insights from Escalated Tickets" with the following structure:

First, provide a summary table of the top issues:

| Client-Category | Count | Primary Root Cause | Typical Resolution | Est. Resolution Time |
|----------------|-------|-------------------|-------------------|---------------------|
| Client1-Category1 | XX | Brief technical root cause | Brief resolution approach | X days/hours |

Then, for EACH of the top 5 client-category combinations, provide a detailed breakdown with:

### [Client] - [Category] ([Count] tickets)

**Root Cause Analysis:**
* Primary technical cause: [specific technical issue, not generic description]
* System components involved: [specific components/services]
* Triggering conditions: [what specific conditions cause this issue]

**Resolution Pattern:**
* Standard resolution process: [step-by-step technical resolution]
* Teams involved: [specific teams needed]
* Average resolution time: [estimate based on complexity]

**Action Items:**
* [3-5 specific, technical recommendations to prevent recurrence]
* [Include both immediate fixes and long-term prevention measures]

Each analysis must include:
1. The specific technical component failing
2. The exact integration point or data flow causing issues
3. Whether it's a code-level bug, configuration issue, or system limitation
4. Precise resolution steps that would be taken by support/engineering teams

Format all of this as clean markdown, with proper headers, bullet points, and tables. Focus on being specific and technical in your analysis - avoid generic statements.`, comboJSON)

	return systemPrompt, userPrompt, nil
}

// changeTable renders CompareValueCounts output as a markdown delta table,
// capped to the most significant movers.
func changeTable(label string, changes []ValueChange, previousMonth, currentMonth string) string {
	if len(changes) == 0 {
		return "| No data available |\n|---|\n"
	}
	if len(changes) > 15 {
		changes = changes[:15]
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("| %s | %s | %s | Delta |\n|---|---|---|---|\n", label, previousMonth, currentMonth))
	for _, ch := range changes {
		b.WriteString(fmt.Sprintf("| %s | %d | %d | %+d |\n", ch.Value, ch.Previous, ch.Current, ch.Change))
	}
	return b.String()
}

func topCountLines(t Table, col, label string, limit int) []string {
	if col == "" {
		return nil
	}
	counts := ValueCounts(t, col)
	if len(counts) == 0 {
		return nil
	}
	if len(counts) > limit {
		counts = counts[:limit]
	}
	lines := []string{fmt.Sprintf("- %s:\n", label)}
	for _, vc := range counts {
		lines = append(lines, fmt.Sprintf("    - %s: %d\n", vc.Value, vc.Count))
	}
	return lines
}

func promptField(col, fallback string) string {
	if col != "" {
		return col
	}
	return fallback
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
