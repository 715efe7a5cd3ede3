package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("TIMEZONE", "UTC")
	// Blank out any credentials the host environment carries.
	for _, key := range []string{
		"GOOGLE_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY",
		"JIRA_SERVER_URL", "JIRA_EMAIL", "JIRA_API_TOKEN",
		"DEVREV_ACCESS_TOKEN", "GOOGLE_SHEETS_SERVICE_ACCOUNT_JSON",
		"SLACK_BOT_TOKEN", "SLACK_CHANNEL_ID", "LLM_PROVIDER",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateConfig(t)

	cfg := LoadConfig()

	if cfg.ListenAddr != ":8501" {
		t.Fatalf("unexpected listen addr default: %q", cfg.ListenAddr)
	}
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("unexpected provider default: %q", cfg.LLMProvider)
	}
	if cfg.DBPath != "./ticketlens.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.ReportOutputDir != "./reports" {
		t.Fatalf("unexpected report output dir default: %q", cfg.ReportOutputDir)
	}
	if cfg.RecencyDays != 30 {
		t.Fatalf("unexpected recency default: %d", cfg.RecencyDays)
	}
	if cfg.ExternalHTTPTimeoutSeconds != 30 {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.LLMConfigured() || cfg.JiraConfigured() || cfg.SheetsConfigured() || cfg.SlackConfigured() {
		t.Fatal("no credentials set, all integrations should be off")
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen_addr: ":9000"
llm_provider: "anthropic"
anthropic_api_key: "yaml-anthropic"
jira_server_url: "https://yaml.atlassian.net"
jira_email: "yaml@example.com"
jira_api_token: "yaml-token"
recency_days: 60
timezone: "UTC"
allowed_clients:
  - "Yaml Bank"
product_variants:
  - "YamlProduct"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("RECENCY_DAYS", "45")
	t.Setenv("ALLOWED_CLIENTS", "Env Bank, Other Bank")

	cfg := LoadConfig()

	if cfg.ListenAddr != ":9000" {
		t.Fatalf("expected listen addr from yaml, got %q", cfg.ListenAddr)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected provider from env override, got %q", cfg.LLMProvider)
	}
	if cfg.LLMAPIKey() != "sk-env" {
		t.Fatalf("expected openai key for openai provider, got %q", cfg.LLMAPIKey())
	}
	if cfg.RecencyDays != 45 {
		t.Fatalf("expected recency from env override, got %d", cfg.RecencyDays)
	}
	if len(cfg.AllowedClients) != 2 || cfg.AllowedClients[0] != "Env Bank" {
		t.Fatalf("expected client list from env override, got %v", cfg.AllowedClients)
	}
	if len(cfg.ProductVariants) != 1 || cfg.ProductVariants[0] != "YamlProduct" {
		t.Fatalf("expected product variants from yaml, got %v", cfg.ProductVariants)
	}
	if !cfg.JiraConfigured() {
		t.Fatal("jira should be configured from yaml")
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("TL_TEST_STR", "value")
	envOverride(&s, "TL_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	i := 1
	t.Setenv("TL_TEST_INT", "42")
	envOverrideInt(&i, "TL_TEST_INT")
	if i != 42 {
		t.Fatalf("envOverrideInt failed, got %d", i)
	}

	var list []string
	t.Setenv("TL_TEST_LIST", "a, b ,, c")
	envOverrideList(&list, "TL_TEST_LIST")
	if len(list) != 3 || list[0] != "a" || list[1] != "b" || list[2] != "c" {
		t.Fatalf("envOverrideList failed, got %v", list)
	}
}

func TestFilterParamsFromConfig(t *testing.T) {
	cfg := Config{RecencyDays: 45, JiraServerURL: "https://corp.atlassian.net/"}

	p := cfg.filterParams()

	if p.RecencyDays != 45 {
		t.Fatalf("recency = %d, want 45", p.RecencyDays)
	}
	if p.TrackerBaseURL != "https://corp.atlassian.net/browse/" {
		t.Fatalf("tracker base = %q", p.TrackerBaseURL)
	}
	if len(p.AllowedClients) != len(defaultAllowedClients) {
		t.Fatalf("unset allowlist should keep defaults, got %v", p.AllowedClients)
	}

	cfg.TrackerBaseURL = "https://elsewhere.example.com/browse/"
	cfg.AllowedClients = []string{"Only Bank"}
	p = cfg.filterParams()
	if p.TrackerBaseURL != "https://elsewhere.example.com/browse/" {
		t.Fatalf("explicit tracker base should win, got %q", p.TrackerBaseURL)
	}
	if len(p.AllowedClients) != 1 || p.AllowedClients[0] != "Only Bank" {
		t.Fatalf("configured allowlist should replace defaults, got %v", p.AllowedClients)
	}
}

func TestLLMAPIKeyPerProvider(t *testing.T) {
	cfg := Config{
		GoogleAPIKey:    "g-key",
		AnthropicAPIKey: "a-key",
		OpenAIAPIKey:    "o-key",
	}

	cfg.LLMProvider = "gemini"
	if cfg.LLMAPIKey() != "g-key" {
		t.Fatalf("gemini key = %q", cfg.LLMAPIKey())
	}
	cfg.LLMProvider = "anthropic"
	if cfg.LLMAPIKey() != "a-key" {
		t.Fatalf("anthropic key = %q", cfg.LLMAPIKey())
	}
	cfg.LLMProvider = "openai"
	if cfg.LLMAPIKey() != "o-key" {
		t.Fatalf("openai key = %q", cfg.LLMAPIKey())
	}
}

func TestLoadConfigInvalidTimezoneFatal(t *testing.T) {
	if os.Getenv("TEST_INVALID_TZ_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("TIMEZONE", "Mars/Colony")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigInvalidTimezoneFatal")
	cmd.Env = append(os.Environ(), "TEST_INVALID_TZ_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}

func TestLoadConfigInvalidScheduleFatal(t *testing.T) {
	if os.Getenv("TEST_INVALID_SCHEDULE_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("TIMEZONE", "UTC")
		_ = os.Setenv("REFRESH_SCHEDULE", "not a cron expression")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigInvalidScheduleFatal")
	cmd.Env = append(os.Environ(), "TEST_INVALID_SCHEDULE_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}
