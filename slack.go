package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/slack-go/slack"
)

// Slack rejects message text past roughly 4000 characters; the excerpt
// limit leaves room for the header and footer lines around it.
const slackExcerptLimit = 2800

func NewSlackClient(cfg Config) *slack.Client {
	return slack.New(cfg.SlackBotToken)
}

// PostAnalysisSummary posts a rendered analysis to the channel as a plain
// message. Callers check SlackConfigured before constructing a client.
func PostAnalysisSummary(api *slack.Client, channelID string, a Analysis, datasetName string) error {
	msg := formatAnalysisMessage(a, datasetName)
	if _, _, err := api.PostMessage(channelID, slack.MsgOptionText(msg, false)); err != nil {
		return fmt.Errorf("posting analysis to slack: %w", err)
	}
	log.Printf("slack post done channel=%s kind=%s chars=%d", channelID, a.Kind, len(msg))
	return nil
}

// PostText sends a short status line, used for watcher and scheduler notices.
func PostText(api *slack.Client, channelID, text string) error {
	if _, _, err := api.PostMessage(channelID, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	return nil
}

// UploadReportFile attaches a written report markdown file to the channel so
// readers get the full document alongside the summary message.
func UploadReportFile(api *slack.Client, channelID, filePath, datasetName string, a Analysis) error {
	fi, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("stat report file: %w", err)
	}
	_, err = api.UploadFileV2(slack.UploadFileV2Parameters{
		File:           filePath,
		FileSize:       int(fi.Size()),
		Filename:       filepath.Base(filePath),
		Channel:        channelID,
		Title:          a.Title,
		InitialComment: fmt.Sprintf("Full report for %s (tokens used: %s)", datasetName, formatTokenCount(a.Usage.TotalTokens())),
	})
	if err != nil {
		return fmt.Errorf("uploading report file: %w", err)
	}
	return nil
}

func formatAnalysisMessage(a Analysis, datasetName string) string {
	excerpt := truncateText(strings.TrimSpace(markdownToPlain(a.Content)), slackExcerptLimit)

	var b strings.Builder
	fmt.Fprintf(&b, "*%s* (%s)\n\n", a.Title, datasetName)
	b.WriteString(excerpt)
	fmt.Fprintf(&b, "\n\n_%s %s, tokens used: %s_", a.Provider, a.Model, formatTokenCount(a.Usage.TotalTokens()))
	return b.String()
}

func formatTokenCount(tokens int64) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d", tokens)
	}
	rounded := (tokens + 50) / 100
	whole := rounded / 10
	decimal := rounded % 10
	if decimal == 0 {
		return fmt.Sprintf("%dk", whole)
	}
	return fmt.Sprintf("%d.%dk", whole, decimal)
}
