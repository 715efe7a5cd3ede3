package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// maxDeepDiveTickets bounds how many issues a single run will pull from
	// the tracker; prompts and rate limits both depend on this staying small.
	maxDeepDiveTickets = 15

	maxTicketComments    = 5
	jiraFetchConcurrency = 4
	jiraCacheTTL         = 24 * time.Hour
)

// jiraIssueResponse mirrors the fields we read from
// GET /rest/api/3/issue/{key}?expand=changelog.
type jiraIssueResponse struct {
	Key       string        `json:"key"`
	Fields    jiraFields    `json:"fields"`
	Changelog jiraChangelog `json:"changelog"`
}

type jiraFields struct {
	Summary        string            `json:"summary"`
	Status         jiraName          `json:"status"`
	Priority       jiraName          `json:"priority"`
	IssueType      jiraName          `json:"issuetype"`
	Assignee       *jiraUser         `json:"assignee"`
	Reporter       *jiraUser         `json:"reporter"`
	Created        string            `json:"created"`
	Updated        string            `json:"updated"`
	ResolutionDate string            `json:"resolutiondate"`
	Labels         []string          `json:"labels"`
	Components     []jiraName        `json:"components"`
	Comment        jiraCommentPage   `json:"comment"`
	Attachment     []json.RawMessage `json:"attachment"`
}

type jiraName struct {
	Name string `json:"name"`
}

type jiraUser struct {
	DisplayName string `json:"displayName"`
}

type jiraCommentPage struct {
	Total    int           `json:"total"`
	Comments []jiraComment `json:"comments"`
}

type jiraComment struct {
	Author  jiraUser        `json:"author"`
	Body    json.RawMessage `json:"body"` // plain string on API v2, ADF document on v3
	Created string          `json:"created"`
}

type jiraChangelog struct {
	Histories []jiraHistory `json:"histories"`
}

type jiraHistory struct {
	Created string            `json:"created"`
	Author  jiraUser          `json:"author"`
	Items   []jiraHistoryItem `json:"items"`
}

type jiraHistoryItem struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

// CheckJiraConnection verifies the configured credentials against the
// /myself endpoint. Called once at startup when Jira is configured.
func CheckJiraConnection(cfg Config) error {
	req, err := http.NewRequest("GET", jiraBaseURL(cfg)+"/rest/api/3/myself", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(cfg.JiraEmail, cfg.JiraAPIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("jira connection test returned %d", resp.StatusCode)
	}
	return nil
}

// FetchJiraTicket retrieves one issue with its changelog and flattens it.
func FetchJiraTicket(cfg Config, key string) (JiraTicket, error) {
	key = strings.TrimSpace(key)
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s?expand=changelog", jiraBaseURL(cfg), url.PathEscape(key))

	req, err := http.NewRequest("GET", apiURL, nil)
	if err != nil {
		return JiraTicket{}, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(cfg.JiraEmail, cfg.JiraAPIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return JiraTicket{}, fmt.Errorf("executing request: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return JiraTicket{}, fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case 200:
	case 401:
		return JiraTicket{}, fmt.Errorf("jira authentication failed for %s", key)
	case 404:
		return JiraTicket{}, fmt.Errorf("jira ticket %s not found", key)
	default:
		return JiraTicket{}, fmt.Errorf("jira API returned %d: %s", resp.StatusCode, truncateText(string(body), 200))
	}

	var issue jiraIssueResponse
	if err := json.Unmarshal(body, &issue); err != nil {
		return JiraTicket{}, fmt.Errorf("parsing response: %w", err)
	}
	if issue.Key == "" {
		issue.Key = key
	}
	return flattenJiraIssue(issue), nil
}

// FetchJiraTickets resolves details for up to maxDeepDiveTickets keys,
// serving fresh cache entries and fetching the rest concurrently. Keys that
// fail to fetch are logged and skipped rather than failing the batch.
func FetchJiraTickets(ctx context.Context, cfg Config, db *sql.DB, keys []string) ([]JiraTicket, error) {
	if len(keys) > maxDeepDiveTickets {
		keys = keys[:maxDeepDiveTickets]
	}

	tickets := make([]JiraTicket, len(keys))
	found := make([]bool, len(keys))

	var misses []int
	for i, key := range keys {
		if db != nil {
			if tk, ok, err := GetCachedJiraTicket(db, key, jiraCacheTTL); err == nil && ok {
				tickets[i] = tk
				found[i] = true
				continue
			}
		}
		misses = append(misses, i)
	}

	var mu sync.Mutex
	var fetched []JiraTicket
	var failures int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jiraFetchConcurrency)
	for _, i := range misses {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tk, err := FetchJiraTicket(cfg, keys[i])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				log.Printf("jira fetch failed ticket=%s err=%v", keys[i], err)
				return nil
			}
			tickets[i] = tk
			found[i] = true
			fetched = append(fetched, tk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if db != nil && len(fetched) > 0 {
		if _, err := UpsertJiraTickets(db, fetched); err != nil {
			log.Printf("jira cache write failed err=%v", err)
		}
	}

	var out []JiraTicket
	for i := range keys {
		if found[i] {
			out = append(out, tickets[i])
		}
	}
	log.Printf("jira fetch done requested=%d served=%d cached=%d failed=%d",
		len(keys), len(out), len(keys)-len(misses), failures)
	return out, nil
}

func flattenJiraIssue(issue jiraIssueResponse) JiraTicket {
	f := issue.Fields
	tk := JiraTicket{
		Key:             issue.Key,
		Summary:         f.Summary,
		Status:          orUnknown(f.Status.Name),
		Priority:        orUnknown(f.Priority.Name),
		IssueType:       orUnknown(f.IssueType.Name),
		Created:         parseJiraTime(f.Created),
		Updated:         parseJiraTime(f.Updated),
		Resolved:        parseJiraTime(f.ResolutionDate),
		Labels:          f.Labels,
		CommentCount:    f.Comment.Total,
		AttachmentCount: len(f.Attachment),
	}
	if f.Assignee != nil {
		tk.Assignee = f.Assignee.DisplayName
	}
	if f.Reporter != nil {
		tk.Reporter = f.Reporter.DisplayName
	}
	for _, c := range f.Components {
		if c.Name != "" {
			tk.Components = append(tk.Components, c.Name)
		}
	}
	if tk.CommentCount == 0 {
		tk.CommentCount = len(f.Comment.Comments)
	}
	for _, c := range f.Comment.Comments {
		if len(tk.RecentComments) >= maxTicketComments {
			break
		}
		if text := adfText(c.Body); text != "" {
			tk.RecentComments = append(tk.RecentComments, text)
		}
	}

	for _, h := range issue.Changelog.Histories {
		for _, item := range h.Items {
			if item.Field != "status" {
				continue
			}
			by := h.Author.DisplayName
			if by == "" {
				by = "System"
			}
			tk.StatusHistory = append(tk.StatusHistory, JiraStatusChange{
				From: item.FromString,
				To:   item.ToString,
				By:   by,
				At:   parseJiraTime(h.Created),
			})
		}
	}
	sort.SliceStable(tk.StatusHistory, func(i, j int) bool {
		return tk.StatusHistory[i].At.Before(tk.StatusHistory[j].At)
	})

	if !tk.Created.IsZero() && !tk.Resolved.IsZero() && tk.Resolved.After(tk.Created) {
		tk.ResolutionHours = tk.Resolved.Sub(tk.Created).Hours()
	}
	return tk
}

// adfNode is the recursive shape of an Atlassian Document Format value.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// adfText flattens a description or comment body to plain text. Jira API v3
// returns ADF documents; older servers return plain strings. Both are
// accepted, and anything unrecognized becomes "".
func adfText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var parts []string
	collectADFText(doc, &parts)
	return strings.Join(parts, " ")
}

func collectADFText(n adfNode, parts *[]string) {
	if n.Type == "text" && strings.TrimSpace(n.Text) != "" {
		*parts = append(*parts, strings.TrimSpace(n.Text))
	}
	for _, child := range n.Content {
		collectADFText(child, parts)
	}
}

var jiraTimeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339,
}

func parseJiraTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range jiraTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func jiraBaseURL(cfg Config) string {
	return strings.TrimRight(cfg.JiraServerURL, "/")
}
