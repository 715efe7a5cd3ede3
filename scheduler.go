package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
)

// RefreshFromSheet reloads the configured sheet and swaps it in as the
// working dataset.
func RefreshFromSheet(ctx context.Context, cfg Config, srv *Server) (*Dataset, error) {
	raw, err := loadSheetFn(ctx, cfg, cfg.SheetURL)
	if err != nil {
		return nil, err
	}
	id, _ := ExtractSheetID(cfg.SheetURL)
	ds := BuildDataset("sheet "+id, "sheet", raw, cfg.filterParams())
	srv.SetDataset(ds)
	return ds, nil
}

// RunScheduledRefresh is one scheduler cycle: reload the sheet, then, when
// an LLM is configured, generate the executive summary, record it, and
// write the markdown artifact. It has no Slack dependency so the delivery
// step stays with the caller. Returns the analysis and the written path;
// both are zero when the cycle stopped after the reload.
func RunScheduledRefresh(ctx context.Context, cfg Config, srv *Server) (Analysis, string, error) {
	ds, err := RefreshFromSheet(ctx, cfg, srv)
	if err != nil {
		return Analysis{}, "", fmt.Errorf("refreshing sheet: %w", err)
	}

	if !cfg.LLMConfigured() {
		log.Printf("scheduled refresh done dataset=%s llm=off", ds.Name)
		return Analysis{}, "", nil
	}

	a, err := RunAnalysis(cfg, AnalysisExecutiveSummary, ds, nil)
	if err != nil {
		return Analysis{}, "", fmt.Errorf("generating summary: %w", err)
	}
	srv.RecordAnalysis(ds.ID, a)

	path, err := WriteReportFile(ReportMarkdown(a, ds.Name), cfg.ReportOutputDir, a.CreatedAt, a.Kind)
	if err != nil {
		return a, "", fmt.Errorf("writing report file: %w", err)
	}
	log.Printf("scheduled refresh done dataset=%s report=%s tokens=%d", ds.Name, path, a.Usage.TotalTokens())
	return a, path, nil
}

// StartRefreshScheduler runs RunScheduledRefresh on a standard 5-field cron
// expression (minute hour day-of-month month day-of-week) and delivers the
// summary to Slack when that is configured.
// Examples: "0 9 * * *" (daily 9am), "0 9 * * 1-5" (weekdays 9am).
func StartRefreshScheduler(ctx context.Context, cfg Config, srv *Server, api *slack.Client) {
	schedule := strings.TrimSpace(cfg.RefreshSchedule)
	if schedule == "" {
		log.Println("Scheduled refresh disabled (refresh_schedule not set)")
		return
	}
	if !cfg.SheetsConfigured() || cfg.SheetURL == "" {
		log.Println("Scheduled refresh disabled: sheet_url or sheets credentials missing")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid refresh_schedule '%s': %v, scheduled refresh disabled", schedule, err)
		return
	}
	log.Printf("Scheduled refresh enabled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next refresh at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}

			a, path, err := RunScheduledRefresh(ctx, cfg, srv)
			if err != nil {
				log.Printf("Scheduled refresh error: %v", err)
				continue
			}
			if a.Kind == "" || !cfg.SlackConfigured() {
				continue
			}

			datasetName := ""
			if ds := srv.current(); ds != nil {
				datasetName = ds.Name
			}
			if err := PostAnalysisSummary(api, cfg.SlackChannelID, a, datasetName); err != nil {
				log.Printf("Scheduled refresh post error: %v", err)
			}
			if path != "" {
				if err := UploadReportFile(api, cfg.SlackChannelID, path, datasetName, a); err != nil {
					log.Printf("Scheduled refresh upload error: %v", err)
				}
			}
		}
	}()
}
