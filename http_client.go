package main

import (
	"net/http"
	"time"
)

const externalHTTPTimeout = 30 * time.Second

// externalHTTPClient is shared by every outbound call (Jira, DevRev,
// Sheets, OpenAI). A slow service times out here instead of hanging a
// request forever.
var externalHTTPClient = &http.Client{
	Timeout: externalHTTPTimeout,
}

// ConfigureExternalHTTPClient applies the configured timeout. Called once
// at startup, before any goroutine touches the client.
func ConfigureExternalHTTPClient(cfg Config) {
	if cfg.ExternalHTTPTimeoutSeconds > 0 {
		externalHTTPClient.Timeout = time.Duration(cfg.ExternalHTTPTimeoutSeconds) * time.Second
	}
}
