package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

func main() {
	var (
		filePath = flag.String("file", "", "analyze one CSV export and exit")
		serve    = flag.Bool("serve", false, "run the dashboard server")
	)
	flag.Parse()

	cfg := LoadConfig()
	ConfigureExternalHTTPClient(cfg)

	if *filePath != "" {
		if err := runOnce(cfg, *filePath); err != nil {
			log.Fatalf("run failed: %v", err)
		}
		return
	}
	if !*serve {
		fmt.Fprintln(os.Stderr, "usage: ticketlens -file export.csv | ticketlens -serve")
		flag.PrintDefaults()
		os.Exit(2)
	}

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	if cfg.JiraConfigured() {
		if err := CheckJiraConnection(cfg); err != nil {
			log.Printf("jira connection check failed err=%v", err)
		} else {
			log.Printf("jira connection ok server=%s", cfg.JiraServerURL)
		}
	}

	srv := NewServer(cfg, db)
	ctx := context.Background()

	if cfg.WatchDir != "" {
		go func() {
			if err := WatchDropDir(ctx, cfg.WatchDir, srv, cfg.filterParams()); err != nil {
				log.Printf("watch stopped err=%v", err)
			}
		}()
	}
	StartRefreshScheduler(ctx, cfg, srv, NewSlackClient(cfg))

	log.Println("Starting TicketLens dashboard...")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// runOnce is the headless mode: load one export, run the default chain,
// print what the dashboard would show, and write the summary report when an
// LLM is configured.
func runOnce(cfg Config, path string) error {
	raw, err := ReadTableFile(path)
	if err != nil {
		return err
	}
	p := cfg.filterParams()
	ds := BuildDataset(filepath.Base(path), "upload", raw, p)

	fmt.Printf("Loaded %s: %d rows\n\n", ds.Name, len(ds.Raw.Rows))
	for i, entry := range ds.Log {
		fmt.Printf("%d. %s: %d rows\n", i+1, entry.Description, entry.Rows)
	}

	m := ComputeMetrics(ds.Filtered, p)
	fmt.Printf("\nTickets: %d\nEscalated: %d (%.1f%%)\nClients: %d\n",
		m.TotalTickets, m.EscalatedCount, m.EscalationRate, m.UniqueClients)
	if m.DateFrom != "" {
		fmt.Printf("Range: %s to %s\n", m.DateFrom, m.DateTo)
	}

	if !cfg.LLMConfigured() {
		return nil
	}
	a, err := RunAnalysis(cfg, AnalysisExecutiveSummary, ds, nil)
	if err != nil {
		return fmt.Errorf("generating summary: %w", err)
	}
	fmt.Printf("\n%s\n\n%s\n", a.Title, markdownToPlain(a.Content))

	reportPath, err := WriteReportFile(ReportMarkdown(a, ds.Name), cfg.ReportOutputDir, a.CreatedAt, a.Kind)
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Printf("\nReport written to %s\n", reportPath)
	return nil
}
