package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/slack-go/slack"
)

type slackRecorder struct {
	postForms  []url.Values
	uploadBody string
	completed  bool
}

func newMockSlackAPI(t *testing.T) (*slack.Client, *slackRecorder) {
	t.Helper()

	rec := &slackRecorder{}
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/upload/") {
			body, _ := io.ReadAll(r.Body)
			rec.uploadBody = string(body)
			w.WriteHeader(http.StatusOK)
			return
		}
		switch strings.TrimPrefix(r.URL.Path, "/api/") {
		case "chat.postMessage":
			_ = r.ParseForm()
			rec.postForms = append(rec.postForms, r.Form)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": r.FormValue("channel"), "ts": "1700000000.000100"})
		case "files.getUploadURLExternal":
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "upload_url": server.URL + "/upload/1", "file_id": "F123"})
		case "files.completeUploadExternal":
			rec.completed = true
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "files": []map[string]any{{"id": "F123", "title": "report"}}})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}))
	t.Cleanup(server.Close)

	api := slack.New("xoxb-test", slack.OptionAPIURL(server.URL+"/api/"))
	return api, rec
}

func sampleSlackAnalysis() Analysis {
	return Analysis{
		Kind:      AnalysisExecutiveSummary,
		Title:     "Executive Summary",
		Content:   "## Highlights\n\n- **Login** failures doubled\n- Refund queue stable\n",
		Provider:  "gemini",
		Model:     "gemini-1.5-flash",
		Usage:     LLMUsage{InputTokens: 1500, OutputTokens: 80},
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestPostAnalysisSummary(t *testing.T) {
	api, rec := newMockSlackAPI(t)

	if err := PostAnalysisSummary(api, "C123", sampleSlackAnalysis(), "feb_tickets.csv"); err != nil {
		t.Fatalf("PostAnalysisSummary failed: %v", err)
	}
	if len(rec.postForms) != 1 {
		t.Fatalf("expected 1 chat.postMessage call, got %d", len(rec.postForms))
	}
	form := rec.postForms[0]
	if got := form.Get("channel"); got != "C123" {
		t.Errorf("channel = %q, want C123", got)
	}
	text := form.Get("text")
	if !strings.Contains(text, "*Executive Summary* (feb_tickets.csv)") {
		t.Errorf("message missing header, got:\n%s", text)
	}
	if !strings.Contains(text, "- Login failures doubled") {
		t.Errorf("message should carry plain-rendered content, got:\n%s", text)
	}
	if strings.Contains(text, "**") || strings.Contains(text, "## ") {
		t.Errorf("markdown markers should be stripped, got:\n%s", text)
	}
	if !strings.Contains(text, "tokens used: 1.6k") {
		t.Errorf("message missing usage footer, got:\n%s", text)
	}
}

func TestPostAnalysisSummaryTruncates(t *testing.T) {
	api, rec := newMockSlackAPI(t)

	a := sampleSlackAnalysis()
	a.Content = strings.Repeat("x", slackExcerptLimit+500)
	if err := PostAnalysisSummary(api, "C123", a, "big.csv"); err != nil {
		t.Fatalf("PostAnalysisSummary failed: %v", err)
	}
	text := rec.postForms[0].Get("text")
	if got := strings.Count(text, "x"); got != slackExcerptLimit {
		t.Errorf("excerpt kept %d chars, want %d", got, slackExcerptLimit)
	}
	if !strings.Contains(text, "...") {
		t.Error("truncated excerpt should carry an ellipsis")
	}
}

func TestPostAnalysisSummaryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	}))
	defer server.Close()
	api := slack.New("xoxb-test", slack.OptionAPIURL(server.URL+"/api/"))

	err := PostAnalysisSummary(api, "C404", sampleSlackAnalysis(), "feb_tickets.csv")
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected channel_not_found error, got %v", err)
	}
}

func TestPostText(t *testing.T) {
	api, rec := newMockSlackAPI(t)

	if err := PostText(api, "C123", "scheduled refresh failed: sheet unreachable"); err != nil {
		t.Fatalf("PostText failed: %v", err)
	}
	if got := rec.postForms[0].Get("text"); got != "scheduled refresh failed: sheet unreachable" {
		t.Errorf("text = %q", got)
	}
}

func TestUploadReportFile(t *testing.T) {
	api, rec := newMockSlackAPI(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "executive_summary_20260301.md")
	if err := os.WriteFile(path, []byte("# Executive Summary\n\nTotal tickets: 120\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := UploadReportFile(api, "C123", path, "feb_tickets.csv", sampleSlackAnalysis()); err != nil {
		t.Fatalf("UploadReportFile failed: %v", err)
	}
	if !rec.completed {
		t.Error("expected files.completeUploadExternal to be called")
	}
	if !strings.Contains(rec.uploadBody, "Total tickets: 120") {
		t.Error("uploaded body should contain the report content")
	}

	if err := UploadReportFile(api, "C123", filepath.Join(dir, "missing.md"), "feb_tickets.csv", sampleSlackAnalysis()); err == nil {
		t.Fatal("expected error for missing report file")
	}
}

func TestFormatTokenCount(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1k"},
		{1049, "1k"},
		{1050, "1.1k"},
		{1580, "1.6k"},
		{9950, "10k"},
		{12340, "12.3k"},
	}
	for _, c := range cases {
		if got := formatTokenCount(c.in); got != c.want {
			t.Errorf("formatTokenCount(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
