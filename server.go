package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	uploadMaxBytes = 50 << 20
	previewRows    = 20
	historyRows    = 10
)

// Server owns the single working dataset and serves the dashboard around it.
// Handlers take a snapshot pointer under the mutex and read from that;
// datasets are never mutated after construction, so a snapshot stays
// consistent while an upload swaps in a replacement.
type Server struct {
	cfg Config
	db  *sql.DB

	mu       sync.Mutex
	ds       *Dataset
	analyses map[string]Analysis
}

func NewServer(cfg Config, db *sql.DB) *Server {
	return &Server{cfg: cfg, db: db, analyses: make(map[string]Analysis)}
}

func (s *Server) current() *Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds
}

// SetDataset swaps in a new working dataset, drops analyses generated for
// the previous one, and records the load in history. Upload, the drop
// watcher, and the scheduled refresh all come through here.
func (s *Server) SetDataset(ds *Dataset) {
	s.mu.Lock()
	s.ds = ds
	s.analyses = make(map[string]Analysis)
	s.mu.Unlock()

	if s.db != nil {
		if err := InsertDataset(s.db, ds); err != nil {
			log.Printf("dataset history write failed err=%v", err)
		}
	}
	log.Printf("dataset loaded id=%s source=%s name=%s rows=%d filtered=%d",
		ds.ID, ds.Source, ds.Name, len(ds.Raw.Rows), len(ds.Filtered.Rows))
}

// RecordAnalysis keeps a finished run for dashboard display and appends it
// to report history. The analyze endpoint and the scheduled refresh both
// come through here.
func (s *Server) RecordAnalysis(datasetID string, a Analysis) {
	if s.db != nil {
		if _, err := InsertReport(s.db, datasetID, a); err != nil {
			log.Printf("report history write failed err=%v", err)
		}
	}
	s.mu.Lock()
	s.analyses[a.Kind] = a
	s.mu.Unlock()
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/charts", s.handleCharts)
	mux.HandleFunc("/api/filterlog", s.handleFilterLog)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/jira", s.handleJira)
	mux.HandleFunc("/api/devrev", s.handleDevRev)
	mux.HandleFunc("/download/filtered.csv", s.handleDownloadFiltered)
	mux.HandleFunc("/download/report", s.handleDownloadReport)
	return mux
}

func (s *Server) ListenAndServe() error {
	addr := s.cfg.ListenAddr
	log.Printf("dashboard listening addr=%s", addr)
	return http.ListenAndServe(addr, s.Routes())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("response encode failed err=%v", err)
	}
}

// ChartData is the payload behind the dashboard's chart sections.
type ChartData struct {
	Status   []ValueCount  `json:"status"`
	Priority []ValueCount  `json:"priority"`
	Category []ValueCount  `json:"category"`
	Clients  []ValueCount  `json:"clients"`
	Daily    []SeriesPoint `json:"daily"`
	Weekly   []SeriesPoint `json:"weekly"`
	Monthly  []SeriesPoint `json:"monthly"`
	Crosstab Crosstab      `json:"crosstab"`
}

// BuildChartData assembles every chart-backing slice from the filtered
// table. Missing columns yield empty sections, never errors.
func BuildChartData(t Table, p FilterParams) ChartData {
	var cd ChartData
	if col, ok := FindColumnContaining(t, "status"); ok {
		cd.Status = ValueCounts(t, col)
	}
	if col, ok := FindColumnContaining(t, "priority"); ok {
		cd.Priority = ValueCounts(t, col)
	}
	catCol, hasCat := FindColumnContaining(t, "category")
	if hasCat {
		cd.Category = ValueCounts(t, catCol)
	}
	accCol, hasAcc := ResolveColumn(t, p.AccountColumns)
	if hasAcc {
		cd.Clients = ValueCounts(t, accCol)
	}
	if col, ok := ResolveColumn(t, p.DateColumns); ok {
		cd.Daily = DailySeries(t, col)
		cd.Weekly = WeeklySeries(t, col)
		cd.Monthly = MonthlySeries(t, col)
	}
	if hasAcc && hasCat {
		cd.Crosstab = BuildCrosstab(t, accCol, catCol, true)
	}
	return cd
}

// SearchQuery narrows the history-wide table. Term matches any cell,
// case-insensitively; client and category are exact; from/to bound the
// resolved date column, inclusive of both days.
type SearchQuery struct {
	Term     string
	Client   string
	Category string
	From     string
	To       string
}

func SearchTable(t Table, q SearchQuery, p FilterParams) Table {
	accIdx, catIdx, dateIdx := -1, -1, -1
	if col, ok := ResolveColumn(t, p.AccountColumns); ok {
		accIdx = t.ColumnIndex(col)
	}
	if col, ok := FindColumnContaining(t, "category"); ok {
		catIdx = t.ColumnIndex(col)
	}
	if col, ok := ResolveColumn(t, p.DateColumns); ok {
		dateIdx = t.ColumnIndex(col)
	}

	var from, dayEnd time.Time
	if q.From != "" {
		from, _ = parseDate(q.From)
	}
	if q.To != "" {
		if to, ok := parseDate(q.To); ok {
			dayEnd = to.AddDate(0, 0, 1)
		}
	}
	term := strings.ToLower(strings.TrimSpace(q.Term))

	rows := make([][]string, 0)
	for i := range t.Rows {
		if q.Client != "" && (accIdx < 0 || t.Cell(i, accIdx) != q.Client) {
			continue
		}
		if q.Category != "" && (catIdx < 0 || t.Cell(i, catIdx) != q.Category) {
			continue
		}
		if !from.IsZero() || !dayEnd.IsZero() {
			if dateIdx < 0 {
				continue
			}
			ts, ok := parseDate(t.Cell(i, dateIdx))
			if !ok || (!from.IsZero() && ts.Before(from)) || (!dayEnd.IsZero() && !ts.Before(dayEnd)) {
				continue
			}
		}
		if term != "" && !rowContains(t, i, term) {
			continue
		}
		rows = append(rows, t.Rows[i])
	}
	return Table{Headers: t.Headers, Rows: rows}
}

func rowContains(t Table, row int, loweredTerm string) bool {
	for col := range t.Headers {
		if strings.Contains(strings.ToLower(t.Cell(row, col)), loweredTerm) {
			return true
		}
	}
	return false
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(uploadMaxBytes); err != nil && err != http.ErrNotMultipart {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		raw    Table
		name   string
		source string
	)
	if f, hdr, err := r.FormFile("file"); err == nil {
		defer f.Close()
		raw, err = ReadTable(f)
		if err != nil {
			http.Error(w, "reading upload: "+err.Error(), http.StatusBadRequest)
			return
		}
		name, source = hdr.Filename, "upload"
	} else if sheetURL := strings.TrimSpace(r.FormValue("sheet_url")); sheetURL != "" {
		if !s.cfg.SheetsConfigured() {
			http.Error(w, "google sheets is not configured", http.StatusBadRequest)
			return
		}
		raw, err = loadSheetFn(r.Context(), s.cfg, sheetURL)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		id, _ := ExtractSheetID(sheetURL)
		name, source = "sheet "+id, "sheet"
	} else {
		http.Error(w, "a csv file or sheet_url is required", http.StatusBadRequest)
		return
	}

	s.SetDataset(BuildDataset(name, source, raw, s.cfg.filterParams()))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ds := s.current()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, ComputeMetrics(ds.Filtered, s.cfg.filterParams()))
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	ds := s.current()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, BuildChartData(ds.Filtered, s.cfg.filterParams()))
}

func (s *Server) handleFilterLog(w http.ResponseWriter, r *http.Request) {
	ds := s.current()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, ds.Log)
}

type searchResponse struct {
	Total   int        `json:"total"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ds := s.current()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	result := SearchTable(ds.Insights, SearchQuery{
		Term:     q.Get("q"),
		Client:   q.Get("client"),
		Category: q.Get("category"),
		From:     q.Get("from"),
		To:       q.Get("to"),
	}, s.cfg.filterParams())

	if q.Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="ticket_search_results.csv"`)
		if err := WriteTable(w, result); err != nil {
			log.Printf("search csv write failed err=%v", err)
		}
		return
	}
	writeJSON(w, searchResponse{Total: len(result.Rows), Headers: result.Headers, Rows: result.Rows})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	ds := s.current()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	kind := r.FormValue("kind")
	if !ValidAnalysisKind(kind) {
		http.Error(w, fmt.Sprintf("unknown analysis kind %q", kind), http.StatusBadRequest)
		return
	}
	if !s.cfg.LLMConfigured() {
		http.Error(w, "llm provider is not configured", http.StatusBadRequest)
		return
	}

	var tickets []JiraTicket
	if kind == AnalysisTicketDeepDive {
		if !s.cfg.JiraConfigured() {
			http.Error(w, "jira is not configured", http.StatusBadRequest)
			return
		}
		jiraKeys, _ := SplitTrackerIDs(ExtractTicketIDs(ds.Filtered, s.cfg.filterParams().TrackerColumns))
		if len(jiraKeys) == 0 {
			http.Error(w, "no escalated tracker IDs in the current dataset", http.StatusBadRequest)
			return
		}
		var err error
		tickets, err = FetchJiraTickets(r.Context(), s.cfg, s.db, jiraKeys)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
	}

	a, err := RunAnalysis(s.cfg, kind, ds, tickets)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.RecordAnalysis(ds.ID, a)

	if r.FormValue("redirect") == "1" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, a)
}

func (s *Server) handleJira(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.JiraConfigured() {
		http.Error(w, "jira is not configured", http.StatusBadRequest)
		return
	}
	key := strings.TrimSpace(r.URL.Query().Get("id"))
	if key == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	if s.db != nil {
		if tk, ok, err := GetCachedJiraTicket(s.db, key, jiraCacheTTL); err == nil && ok {
			writeJSON(w, tk)
			return
		}
	}
	tk, err := FetchJiraTicket(s.cfg, key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if s.db != nil {
		if err := UpsertJiraCache(s.db, tk); err != nil {
			log.Printf("jira cache write failed err=%v", err)
		}
	}
	writeJSON(w, tk)
}

func (s *Server) handleDevRev(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.DevRevConfigured() {
		http.Error(w, "devrev is not configured", http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	work, err := FetchDevRevWork(s.cfg, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, work)
}

func (s *Server) handleDownloadFiltered(w http.ResponseWriter, r *http.Request) {
	ds := s.current()
	if ds == nil {
		http.Error(w, "no dataset loaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="filtered_tickets.csv"`)
	if err := WriteTable(w, ds.Filtered); err != nil {
		log.Printf("filtered csv write failed err=%v", err)
	}
}

func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "history is not available", http.StatusNotFound)
		return
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "numeric id is required", http.StatusBadRequest)
		return
	}
	rec, err := GetReportByID(s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	a := Analysis{
		Kind:     rec.Kind,
		Title:    rec.Title,
		Content:  rec.Content,
		Provider: rec.Provider,
		Model:    rec.Model,
		Usage: LLMUsage{
			InputTokens:              rec.InputTokens,
			OutputTokens:             rec.OutputTokens,
			CacheCreationInputTokens: rec.CacheCreationTokens,
			CacheReadInputTokens:     rec.CacheReadTokens,
		},
		CreatedAt: rec.CreatedAt,
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitizeFilename(rec.Kind)+".md"))
	if _, err := w.Write([]byte(ReportMarkdown(a, rec.DatasetID))); err != nil {
		log.Printf("report download write failed err=%v", err)
	}
}

type kindOption struct {
	Kind  string
	Title string
}

type integrationStatus struct {
	LLMProvider string
	LLM         bool
	Jira        bool
	DevRev      bool
	Sheets      bool
	Slack       bool
}

type pageData struct {
	Status   integrationStatus
	Dataset  *Dataset
	Metrics  Metrics
	Charts   ChartData
	Preview  Table
	Analyses []Analysis
	Kinds    []kindOption
	History  []DatasetRecord
	Reports  []ReportRecord
}

func (s *Server) pageData() pageData {
	data := pageData{
		Status: integrationStatus{
			LLMProvider: s.cfg.LLMProvider,
			LLM:         s.cfg.LLMConfigured(),
			Jira:        s.cfg.JiraConfigured(),
			DevRev:      s.cfg.DevRevConfigured(),
			Sheets:      s.cfg.SheetsConfigured(),
			Slack:       s.cfg.SlackConfigured(),
		},
	}
	for _, kind := range analysisKindOrder {
		data.Kinds = append(data.Kinds, kindOption{Kind: kind, Title: analysisTitles[kind]})
	}

	s.mu.Lock()
	ds := s.ds
	for _, kind := range analysisKindOrder {
		if a, ok := s.analyses[kind]; ok {
			data.Analyses = append(data.Analyses, a)
		}
	}
	s.mu.Unlock()

	if ds != nil {
		p := s.cfg.filterParams()
		data.Dataset = ds
		data.Metrics = ComputeMetrics(ds.Filtered, p)
		data.Charts = BuildChartData(ds.Filtered, p)
		data.Preview = ds.Filtered
		if len(data.Preview.Rows) > previewRows {
			data.Preview = Table{Headers: ds.Filtered.Headers, Rows: ds.Filtered.Rows[:previewRows]}
		}
	}

	if s.db != nil {
		var err error
		if data.History, err = GetRecentDatasets(s.db, historyRows); err != nil {
			log.Printf("history read failed err=%v", err)
		}
		if data.Reports, err = GetRecentReports(s.db, historyRows); err != nil {
			log.Printf("report history read failed err=%v", err)
		}
	}
	return data
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if err := pageTemplate.Execute(w, s.pageData()); err != nil {
		log.Printf("page render failed err=%v", err)
	}
}

// svgSeries renders a volume series as an inline polyline, so the page
// needs no client-side chart code.
func svgSeries(series []SeriesPoint) template.HTML {
	if len(series) == 0 {
		return template.HTML(`<p class="muted">No dated rows.</p>`)
	}
	minV, maxV := series[0].Count, series[0].Count
	for _, pt := range series {
		if pt.Count < minV {
			minV = pt.Count
		}
		if pt.Count > maxV {
			maxV = pt.Count
		}
	}
	w, h := 640.0, 120.0
	step := w
	if len(series) > 1 {
		step = w / float64(len(series)-1)
	}
	pts := make([]string, 0, len(series))
	for i, pt := range series {
		x := float64(i) * step
		y := h - 8 - scalePoint(float64(pt.Count), float64(minV), float64(maxV), 0, h-16)
		pts = append(pts, fmt.Sprintf("%.1f,%.1f", x, y))
	}
	svg := fmt.Sprintf(
		`<svg viewBox="0 0 %.0f %.0f" preserveAspectRatio="none"><polyline points="%s" fill="none" stroke="#2a6fb0" stroke-width="2"/></svg>`,
		w, h, strings.Join(pts, " "))
	return template.HTML(svg)
}

func scalePoint(v, min, max, a, b float64) float64 {
	if max == min {
		return (a + b) / 2
	}
	return a + (v-min)*(b-a)/(max-min)
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"spark":      svgSeries,
	"reportHTML": func(content string) template.HTML { return template.HTML(renderReportHTML(content)) },
}).Parse(pageHTML))

const pageHTML = `<!doctype html><html><head>
<meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>TicketLens</title>
<style>
body{font-family:system-ui,Segoe UI,Roboto,Arial;background:#f4f6f9;color:#1c2733;margin:0;padding:20px;max-width:1100px}
.card{background:#fff;border:1px solid #d7dee8;border-radius:10px;padding:16px;margin:12px 0}
h1{margin:0 0 10px 0} h3{margin-top:0} .muted{color:#5c6b7d}
table{width:100%;border-collapse:collapse;font-size:14px}
th,td{border-bottom:1px solid #e3e9f1;padding:6px 8px;text-align:left;vertical-align:top}
.badge{display:inline-block;background:#e8eef7;padding:4px 10px;border-radius:8px;margin:0 6px 6px 0}
.badge.off{color:#9aa7b5}
button{background:#2a6fb0;color:#fff;border:none;padding:7px 12px;border-radius:8px;cursor:pointer}
form.inline{display:inline-block;margin:0 6px 6px 0}
input[type=text],input[type=date]{padding:6px;border:1px solid #c6d0dc;border-radius:6px;margin:0 6px 6px 0}
svg{max-width:100%}
.report-table th{background:#eef2f8}
ol li,ul li{margin:2px 0}
</style>
</head><body>
<h1>TicketLens</h1>
<p class="muted">
{{if .Status.LLM}}<span class="badge">LLM: {{.Status.LLMProvider}}</span>{{else}}<span class="badge off">LLM off</span>{{end}}
{{if .Status.Jira}}<span class="badge">Jira</span>{{else}}<span class="badge off">Jira off</span>{{end}}
{{if .Status.DevRev}}<span class="badge">DevRev</span>{{else}}<span class="badge off">DevRev off</span>{{end}}
{{if .Status.Sheets}}<span class="badge">Sheets</span>{{else}}<span class="badge off">Sheets off</span>{{end}}
{{if .Status.Slack}}<span class="badge">Slack</span>{{else}}<span class="badge off">Slack off</span>{{end}}
</p>

<div class="card">
  <h3>Load data</h3>
  <form method="POST" action="/upload" enctype="multipart/form-data" class="inline">
    <input type="file" name="file" accept=".csv" required>
    <button type="submit">Upload CSV</button>
  </form>
  {{if .Status.Sheets}}
  <form method="POST" action="/upload" class="inline">
    <input type="text" name="sheet_url" placeholder="Google Sheet URL" size="40" required>
    <button type="submit">Load sheet</button>
  </form>
  {{end}}
</div>

{{if .Dataset}}
<div class="card">
  <h3>{{.Dataset.Name}} <span class="muted">({{.Dataset.Source}}, loaded {{.Dataset.LoadedAt.Format "2006-01-02 15:04 MST"}})</span></h3>
  <div class="badge">Tickets: {{.Metrics.TotalTickets}}</div>
  <div class="badge">Escalated: {{.Metrics.EscalatedCount}} ({{printf "%.1f" .Metrics.EscalationRate}}%)</div>
  <div class="badge">Clients: {{.Metrics.UniqueClients}}</div>
  {{if .Metrics.DateFrom}}<div class="badge">{{.Metrics.DateFrom}} to {{.Metrics.DateTo}}</div>{{end}}
  <p class="muted"><a href="/download/filtered.csv">Download filtered CSV</a></p>
  <ol>
  {{range .Dataset.Log}}<li>{{.Description}}: {{.Rows}} rows</li>{{end}}
  </ol>
</div>

<div class="card">
  <h3>Daily volume</h3>
  {{spark .Charts.Daily}}
</div>

<div class="card">
  <h3>Weekly volume</h3>
  {{spark .Charts.Weekly}}
</div>

<div class="card">
  <h3>Breakdowns</h3>
  {{if .Charts.Category}}
  <h4>By issue category</h4>
  <table><tr><th>Category</th><th>Count</th></tr>
  {{range .Charts.Category}}<tr><td>{{.Value}}</td><td>{{.Count}}</td></tr>{{end}}</table>
  {{end}}
  {{if .Charts.Clients}}
  <h4>By client</h4>
  <table><tr><th>Client</th><th>Count</th></tr>
  {{range .Charts.Clients}}<tr><td>{{.Value}}</td><td>{{.Count}}</td></tr>{{end}}</table>
  {{end}}
  {{if .Charts.Status}}
  <h4>By status</h4>
  <table><tr><th>Status</th><th>Count</th></tr>
  {{range .Charts.Status}}<tr><td>{{.Value}}</td><td>{{.Count}}</td></tr>{{end}}</table>
  {{end}}
  {{if .Charts.Priority}}
  <h4>By priority</h4>
  <table><tr><th>Priority</th><th>Count</th></tr>
  {{range .Charts.Priority}}<tr><td>{{.Value}}</td><td>{{.Count}}</td></tr>{{end}}</table>
  {{end}}
</div>

{{if .Charts.Crosstab.Rows}}
<div class="card">
  <h3>Client x category</h3>
  <table>
  <tr><th>{{.Charts.Crosstab.RowField}}</th>{{range .Charts.Crosstab.Cols}}<th>{{.}}</th>{{end}}</tr>
  {{range $i, $r := .Charts.Crosstab.Rows}}<tr><td>{{$r}}</td>{{range index $.Charts.Crosstab.Counts $i}}<td>{{.}}</td>{{end}}</tr>
  {{end}}
  </table>
</div>
{{end}}

<div class="card">
  <h3>Analyze</h3>
  {{if .Status.LLM}}
  {{range .Kinds}}
  <form method="POST" action="/api/analyze" class="inline">
    <input type="hidden" name="kind" value="{{.Kind}}">
    <input type="hidden" name="redirect" value="1">
    <button type="submit">{{.Title}}</button>
  </form>
  {{end}}
  {{else}}
  <p class="muted">Configure an LLM API key to generate reports.</p>
  {{end}}
</div>

{{range .Analyses}}
<div class="card">
  <h3>{{.Title}}</h3>
  {{reportHTML .Content}}
  <p class="muted">{{.Provider}} {{.Model}}, {{.Usage.TotalTokens}} tokens, {{.CreatedAt.Format "15:04:05"}}</p>
</div>
{{end}}

<div class="card">
  <h3>Search all history</h3>
  <form method="GET" action="/api/search">
    <input type="text" name="q" placeholder="ticket ID or keywords">
    <input type="text" name="client" placeholder="client">
    <input type="text" name="category" placeholder="category">
    <input type="date" name="from"> <input type="date" name="to">
    <button type="submit">Search</button>
    <button type="submit" name="format" value="csv">Download CSV</button>
  </form>
</div>

<div class="card">
  <h3>Preview <span class="muted">(first {{len .Preview.Rows}} of {{len .Dataset.Filtered.Rows}} filtered rows)</span></h3>
  <div style="overflow-x:auto"><table>
  <tr>{{range .Preview.Headers}}<th>{{.}}</th>{{end}}</tr>
  {{range .Preview.Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
  {{end}}
  </table></div>
</div>
{{else}}
<div class="card"><p class="muted">Upload a CSV export or load a sheet to begin.</p></div>
{{end}}

{{if .Reports}}
<div class="card">
  <h3>Saved reports</h3>
  <ul>
  {{range .Reports}}<li><a href="/download/report?id={{.ID}}">{{.Title}}</a> <span class="muted">{{.CreatedAt.Format "2006-01-02 15:04"}}, {{.Provider}}</span></li>{{end}}
  </ul>
</div>
{{end}}

{{if .History}}
<div class="card">
  <h3>Recent runs</h3>
  <table><tr><th>Loaded</th><th>Source</th><th>Name</th><th>Rows</th><th>Filtered</th></tr>
  {{range .History}}<tr><td>{{.LoadedAt.Format "2006-01-02 15:04"}}</td><td>{{.Source}}</td><td>{{.Name}}</td><td>{{.LoadedRows}}</td><td>{{.FilteredRows}}</td></tr>{{end}}
  </table>
</div>
{{end}}

</body></html>
`
