package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const sampleIssueJSON = `{
  "key": "PLT-942",
  "fields": {
    "summary": "Settlement webhook retries exhausted",
    "status": {"name": "Done"},
    "issuetype": {"name": "Bug"},
    "assignee": {"displayName": "Asha Pillai"},
    "reporter": null,
    "created": "2026-02-03T09:15:00.000+0530",
    "updated": "2026-02-05T14:00:00.000+0530",
    "resolutiondate": "2026-02-05T13:45:00.000+0530",
    "labels": ["payments", "sev2"],
    "components": [{"name": "Gateway"}, {"name": "Webhooks"}],
    "attachment": [{"filename": "trace.log"}, {"filename": "payload.json"}],
    "comment": {
      "total": 7,
      "comments": [
        {
          "author": {"displayName": "Asha Pillai"},
          "created": "2026-02-04T10:00:00.000+0530",
          "body": {
            "type": "doc",
            "content": [
              {"type": "paragraph", "content": [
                {"type": "text", "text": "Retries hit the cap because the endpoint kept returning 503."}
              ]},
              {"type": "bulletList", "content": [
                {"type": "listItem", "content": [
                  {"type": "paragraph", "content": [
                    {"type": "text", "text": "Raised retry ceiling to 10."}
                  ]}
                ]}
              ]}
            ]
          }
        },
        {
          "author": {"displayName": "Dev Narang"},
          "created": "2026-02-05T09:00:00.000+0530",
          "body": "Confirmed fixed after redeploy."
        },
        {
          "author": {"displayName": "Bot"},
          "created": "2026-02-05T09:05:00.000+0530",
          "body": {"type": "doc", "content": []}
        }
      ]
    }
  },
  "changelog": {
    "histories": [
      {
        "created": "2026-02-05T13:45:00.000+0530",
        "author": {"displayName": "Asha Pillai"},
        "items": [{"field": "status", "fromString": "In Progress", "toString": "Done"}]
      },
      {
        "created": "2026-02-03T11:00:00.000+0530",
        "author": {},
        "items": [
          {"field": "assignee", "fromString": "", "toString": "Asha Pillai"},
          {"field": "status", "fromString": "Open", "toString": "In Progress"}
        ]
      }
    ]
  }
}`

func TestFlattenJiraIssue(t *testing.T) {
	var issue jiraIssueResponse
	if err := json.Unmarshal([]byte(sampleIssueJSON), &issue); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	tk := flattenJiraIssue(issue)

	if tk.Key != "PLT-942" {
		t.Errorf("Key = %q, want PLT-942", tk.Key)
	}
	if tk.Summary != "Settlement webhook retries exhausted" {
		t.Errorf("Summary = %q", tk.Summary)
	}
	if tk.Status != "Done" {
		t.Errorf("Status = %q, want Done", tk.Status)
	}
	if tk.Priority != "Unknown" {
		t.Errorf("Priority = %q, want Unknown for missing field", tk.Priority)
	}
	if tk.IssueType != "Bug" {
		t.Errorf("IssueType = %q, want Bug", tk.IssueType)
	}
	if tk.Assignee != "Asha Pillai" {
		t.Errorf("Assignee = %q", tk.Assignee)
	}
	if tk.Reporter != "" {
		t.Errorf("Reporter = %q, want empty for null", tk.Reporter)
	}
	if len(tk.Labels) != 2 || tk.Labels[0] != "payments" {
		t.Errorf("Labels = %v", tk.Labels)
	}
	if len(tk.Components) != 2 || tk.Components[1] != "Webhooks" {
		t.Errorf("Components = %v", tk.Components)
	}
	if tk.CommentCount != 7 {
		t.Errorf("CommentCount = %d, want total from API", tk.CommentCount)
	}
	if tk.AttachmentCount != 2 {
		t.Errorf("AttachmentCount = %d, want 2", tk.AttachmentCount)
	}

	wantFirst := "Retries hit the cap because the endpoint kept returning 503. Raised retry ceiling to 10."
	if len(tk.RecentComments) != 2 {
		t.Fatalf("RecentComments = %v, want 2 entries (empty doc skipped)", tk.RecentComments)
	}
	if tk.RecentComments[0] != wantFirst {
		t.Errorf("RecentComments[0] = %q, want %q", tk.RecentComments[0], wantFirst)
	}
	if tk.RecentComments[1] != "Confirmed fixed after redeploy." {
		t.Errorf("RecentComments[1] = %q", tk.RecentComments[1])
	}

	if len(tk.StatusHistory) != 2 {
		t.Fatalf("StatusHistory = %v, want 2 status items", tk.StatusHistory)
	}
	if tk.StatusHistory[0].To != "In Progress" || tk.StatusHistory[1].To != "Done" {
		t.Errorf("StatusHistory not sorted oldest first: %v", tk.StatusHistory)
	}
	if tk.StatusHistory[0].By != "System" {
		t.Errorf("StatusHistory[0].By = %q, want System for missing author", tk.StatusHistory[0].By)
	}

	if math.Abs(tk.ResolutionHours-52.5) > 1e-9 {
		t.Errorf("ResolutionHours = %v, want 52.5", tk.ResolutionHours)
	}
}

func TestADFText(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"plain string", `"  just text  "`, "just text"},
		{"null", `null`, ""},
		{
			"nested document",
			`{"type":"doc","content":[
				{"type":"paragraph","content":[{"type":"text","text":"first"}]},
				{"type":"bulletList","content":[{"type":"listItem","content":[
					{"type":"paragraph","content":[{"type":"text","text":"second"}]}
				]}]}
			]}`,
			"first second",
		},
		{"not json", `{{{`, ""},
	}

	for _, tc := range cases {
		got := adfText(json.RawMessage(tc.raw))
		if got != tc.want {
			t.Errorf("%s: adfText = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestParseJiraTime(t *testing.T) {
	got := parseJiraTime("2026-02-03T09:15:00.000+0530")
	if got.IsZero() {
		t.Fatal("jira timestamp with millis and offset did not parse")
	}
	if got.UTC().Hour() != 3 || got.UTC().Minute() != 45 {
		t.Errorf("parsed time = %v, want 03:45 UTC", got.UTC())
	}

	if parseJiraTime("2026-02-03T09:15:00Z").IsZero() {
		t.Error("RFC3339 timestamp did not parse")
	}
	if !parseJiraTime("").IsZero() {
		t.Error("empty string should be the zero time")
	}
	if !parseJiraTime("last tuesday").IsZero() {
		t.Error("garbage should be the zero time")
	}
}

func TestFetchJiraTicket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/issue/PLT-942" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("expand") != "changelog" {
			t.Errorf("expand = %q, want changelog", r.URL.Query().Get("expand"))
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ana@example.com" || pass != "tok-123" {
			t.Errorf("basic auth = %q/%q ok=%v", user, pass, ok)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleIssueJSON)
	}))
	defer server.Close()

	cfg := Config{
		JiraServerURL: server.URL + "/",
		JiraEmail:     "ana@example.com",
		JiraAPIToken:  "tok-123",
	}

	tk, err := FetchJiraTicket(cfg, " PLT-942 ")
	if err != nil {
		t.Fatalf("FetchJiraTicket: %v", err)
	}
	if tk.Key != "PLT-942" {
		t.Errorf("Key = %q", tk.Key)
	}
	if tk.Status != "Done" {
		t.Errorf("Status = %q", tk.Status)
	}

	_, err = FetchJiraTicket(cfg, "PLT-1")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing ticket error = %v, want not found", err)
	}
}

func TestFetchJiraTicketsCacheAndUpsert(t *testing.T) {
	db := newTestDB(t)

	cached := JiraTicket{Key: "PLT-1", Summary: "from cache", Status: "Open"}
	if err := UpsertJiraCache(db, cached); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		key := strings.TrimPrefix(r.URL.Path, "/rest/api/3/issue/")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jiraIssueResponse{
			Key:    key,
			Fields: jiraFields{Summary: "fetched " + key, Status: jiraName{Name: "Done"}},
		})
	}))
	defer server.Close()

	cfg := Config{JiraServerURL: server.URL, JiraEmail: "a@b.c", JiraAPIToken: "t"}

	out, err := FetchJiraTickets(context.Background(), cfg, db, []string{"PLT-1", "PLT-2"})
	if err != nil {
		t.Fatalf("FetchJiraTickets: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d tickets, want 2", len(out))
	}
	if out[0].Summary != "from cache" {
		t.Errorf("out[0].Summary = %q, want cache hit", out[0].Summary)
	}
	if out[1].Summary != "fetched PLT-2" {
		t.Errorf("out[1].Summary = %q", out[1].Summary)
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1 (PLT-1 served from cache)", hits.Load())
	}

	// The fresh fetch lands in the cache for next time.
	tk, ok, err := GetCachedJiraTicket(db, "PLT-2", 0)
	if err != nil || !ok {
		t.Fatalf("PLT-2 not cached after fetch: ok=%v err=%v", ok, err)
	}
	if tk.Summary != "fetched PLT-2" {
		t.Errorf("cached Summary = %q", tk.Summary)
	}
}

func TestFetchJiraTicketsCapsBatch(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		key := strings.TrimPrefix(r.URL.Path, "/rest/api/3/issue/")
		json.NewEncoder(w).Encode(jiraIssueResponse{Key: key})
	}))
	defer server.Close()

	cfg := Config{JiraServerURL: server.URL, JiraEmail: "a@b.c", JiraAPIToken: "t"}

	keys := make([]string, 0, 20)
	for i := 1; i <= 20; i++ {
		keys = append(keys, fmt.Sprintf("PLT-%d", i))
	}

	out, err := FetchJiraTickets(context.Background(), cfg, nil, keys)
	if err != nil {
		t.Fatalf("FetchJiraTickets: %v", err)
	}
	if len(out) != maxDeepDiveTickets {
		t.Errorf("got %d tickets, want cap %d", len(out), maxDeepDiveTickets)
	}
	if hits.Load() != int64(maxDeepDiveTickets) {
		t.Errorf("server hits = %d, want %d", hits.Load(), maxDeepDiveTickets)
	}
}

func TestCheckJiraConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/myself" {
			http.NotFound(w, r)
			return
		}
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"displayName":"Ana"}`)
	}))
	defer server.Close()

	cfg := Config{JiraServerURL: server.URL, JiraEmail: "ana@example.com", JiraAPIToken: "tok"}
	if err := CheckJiraConnection(cfg); err != nil {
		t.Errorf("CheckJiraConnection: %v", err)
	}

	cfg.JiraServerURL = server.URL + "/missing"
	if err := CheckJiraConnection(cfg); err == nil {
		t.Error("expected error for wrong base URL")
	}
}
