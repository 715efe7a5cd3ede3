package main

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		loaded_rows   INTEGER NOT NULL,
		filtered_rows INTEGER NOT NULL,
		filter_log    TEXT DEFAULT '[]',
		loaded_at     DATETIME NOT NULL,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_datasets_loaded_at ON datasets(loaded_at);

	CREATE TABLE IF NOT EXISTS reports (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		dataset_id    TEXT NOT NULL,
		kind          TEXT NOT NULL,
		title         TEXT DEFAULT '',
		provider      TEXT DEFAULT '',
		model         TEXT DEFAULT '',
		content       TEXT NOT NULL,
		input_tokens  INTEGER DEFAULT 0,
		output_tokens INTEGER DEFAULT 0,
		cache_creation_tokens INTEGER DEFAULT 0,
		cache_read_tokens     INTEGER DEFAULT 0,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_reports_dataset ON reports(dataset_id);
	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);

	CREATE TABLE IF NOT EXISTS jira_cache (
		ticket_key TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		fetched_at DATETIME NOT NULL
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	// Migration: add source column if missing.
	var colCount int
	_ = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('datasets') WHERE name = 'source'`).Scan(&colCount)
	if colCount == 0 {
		_, _ = db.Exec(`ALTER TABLE datasets ADD COLUMN source TEXT DEFAULT 'upload'`)
	}

	return db, nil
}

// DatasetRecord is the persisted view of one load, enough for the dashboard
// history list without keeping table contents around.
type DatasetRecord struct {
	ID           string
	Name         string
	Source       string
	LoadedRows   int
	FilteredRows int
	FilterLog    []FilterEntry
	LoadedAt     time.Time
}

func InsertDataset(db *sql.DB, ds *Dataset) error {
	logJSON, err := json.Marshal(ds.Log)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO datasets (id, name, source, loaded_rows, filtered_rows, filter_log, loaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ds.ID, ds.Name, ds.Source, len(ds.Raw.Rows), len(ds.Filtered.Rows), string(logJSON), ds.LoadedAt,
	)
	return err
}

func GetRecentDatasets(db *sql.DB, limit int) ([]DatasetRecord, error) {
	rows, err := db.Query(
		`SELECT id, name, source, loaded_rows, filtered_rows, filter_log, loaded_at
		 FROM datasets ORDER BY loaded_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DatasetRecord
	for rows.Next() {
		var rec DatasetRecord
		var logJSON string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Source, &rec.LoadedRows, &rec.FilteredRows, &logJSON, &rec.LoadedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(logJSON), &rec.FilterLog); err != nil {
			rec.FilterLog = nil
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReportRecord is one stored analysis run.
type ReportRecord struct {
	ID                  int64
	DatasetID           string
	Kind                string
	Title               string
	Provider            string
	Model               string
	Content             string
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	CreatedAt           time.Time
}

func InsertReport(db *sql.DB, datasetID string, a Analysis) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO reports (dataset_id, kind, title, provider, model, content, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		datasetID, a.Kind, a.Title, a.Provider, a.Model, a.Content,
		a.Usage.InputTokens, a.Usage.OutputTokens, a.Usage.CacheCreationInputTokens, a.Usage.CacheReadInputTokens,
		a.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func GetReportByID(db *sql.DB, id int64) (ReportRecord, error) {
	var r ReportRecord
	err := db.QueryRow(
		`SELECT id, dataset_id, kind, title, provider, model, content, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, created_at
		 FROM reports WHERE id = ?`,
		id,
	).Scan(
		&r.ID, &r.DatasetID, &r.Kind, &r.Title, &r.Provider, &r.Model, &r.Content,
		&r.InputTokens, &r.OutputTokens, &r.CacheCreationTokens, &r.CacheReadTokens, &r.CreatedAt,
	)
	return r, err
}

func GetRecentReports(db *sql.DB, limit int) ([]ReportRecord, error) {
	rows, err := db.Query(
		`SELECT id, dataset_id, kind, title, provider, model, content, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, created_at
		 FROM reports ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var r ReportRecord
		if err := rows.Scan(
			&r.ID, &r.DatasetID, &r.Kind, &r.Title, &r.Provider, &r.Model, &r.Content,
			&r.InputTokens, &r.OutputTokens, &r.CacheCreationTokens, &r.CacheReadTokens, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReportStats aggregates stored runs for the dashboard footer.
type ReportStats struct {
	TotalReports int
	TotalTokens  int64
}

func GetReportStats(db *sql.DB, since time.Time) (ReportStats, error) {
	var s ReportStats
	err := db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(input_tokens + output_tokens + cache_creation_tokens + cache_read_tokens), 0)
		 FROM reports WHERE created_at >= ?`,
		since,
	).Scan(&s.TotalReports, &s.TotalTokens)
	return s, err
}

// --- Jira cache ---

func UpsertJiraCache(db *sql.DB, tk JiraTicket) error {
	payload, err := json.Marshal(tk)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO jira_cache (ticket_key, payload, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(ticket_key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		tk.Key, string(payload), time.Now().UTC(),
	)
	return err
}

// GetCachedJiraTicket returns a cached fetch no older than maxAge. The
// second return reports a usable hit.
func GetCachedJiraTicket(db *sql.DB, key string, maxAge time.Duration) (JiraTicket, bool, error) {
	var payload string
	var fetchedAt time.Time
	err := db.QueryRow(
		`SELECT payload, fetched_at FROM jira_cache WHERE ticket_key = ?`, key,
	).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return JiraTicket{}, false, nil
	}
	if err != nil {
		return JiraTicket{}, false, err
	}
	if maxAge > 0 && time.Since(fetchedAt) > maxAge {
		return JiraTicket{}, false, nil
	}
	var tk JiraTicket
	if err := json.Unmarshal([]byte(payload), &tk); err != nil {
		return JiraTicket{}, false, err
	}
	return tk, true, nil
}

func UpsertJiraTickets(db *sql.DB, tickets []JiraTicket) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO jira_cache (ticket_key, payload, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(ticket_key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	stored := 0
	for _, tk := range tickets {
		payload, err := json.Marshal(tk)
		if err != nil {
			return stored, err
		}
		if _, err := stmt.Exec(tk.Key, string(payload), now); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, tx.Commit()
}
