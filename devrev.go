package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const devrevWorksGetURL = "https://api.devrev.ai/works.get"

type devrevWorkResponse struct {
	Work devrevWork `json:"work"`
}

type devrevWork struct {
	ID          string          `json:"id"`
	DisplayID   string          `json:"display_id"`
	Title       string          `json:"title"`
	Stage       devrevName      `json:"stage"`
	Priority    string          `json:"priority"`
	Severity    json.RawMessage `json:"severity"` // string for tickets, enum object for issues
	OwnedBy     []devrevOwner   `json:"owned_by"`
	CreatedDate string          `json:"created_date"`
}

type devrevName struct {
	Name string `json:"name"`
}

type devrevOwner struct {
	DisplayName string `json:"display_name"`
}

// FetchDevRevWork resolves one work item via POST works.get with a bearer
// token. DevRev accepts both URNs and display IDs like ISS-42.
func FetchDevRevWork(cfg Config, id string) (DevRevWork, error) {
	payload, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return DevRevWork{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequest("POST", devrevWorksGetURL, bytes.NewReader(payload))
	if err != nil {
		return DevRevWork{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.DevRevToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return DevRevWork{}, fmt.Errorf("executing request: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return DevRevWork{}, fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case 200:
	case 401:
		return DevRevWork{}, fmt.Errorf("devrev authentication failed")
	case 404:
		return DevRevWork{}, fmt.Errorf("devrev work %s not found", id)
	default:
		return DevRevWork{}, fmt.Errorf("devrev API returned %d: %s", resp.StatusCode, truncateText(string(body), 200))
	}

	var result devrevWorkResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return DevRevWork{}, fmt.Errorf("parsing response: %w", err)
	}
	return convertDevRevWork(result.Work), nil
}

func convertDevRevWork(w devrevWork) DevRevWork {
	created, _ := time.Parse(time.RFC3339, w.CreatedDate)

	out := DevRevWork{
		ID:       w.ID,
		Title:    w.Title,
		Stage:    orUnknown(w.Stage.Name),
		Severity: devrevSeverity(w.Severity, w.Priority),
		Created:  created,
	}
	if w.DisplayID != "" {
		out.ID = w.DisplayID
	}
	if len(w.OwnedBy) > 0 {
		out.Owner = w.OwnedBy[0].DisplayName
	}
	return out
}

// devrevSeverity accepts the two shapes the API uses and falls back to the
// ticket priority when no severity is present.
func devrevSeverity(raw json.RawMessage, priority string) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var enum struct {
		Name  string `json:"name"`
		Label string `json:"label"`
	}
	if err := json.Unmarshal(raw, &enum); err == nil {
		if enum.Label != "" {
			return enum.Label
		}
		if enum.Name != "" {
			return enum.Name
		}
	}
	return priority
}
