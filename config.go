package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	GoogleAPIKey    string `yaml:"google_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	JiraServerURL string `yaml:"jira_server_url"`
	JiraEmail     string `yaml:"jira_email"`
	JiraAPIToken  string `yaml:"jira_api_token"`

	DevRevToken string `yaml:"devrev_token"`

	SheetsServiceAccountJSON string `yaml:"sheets_service_account_json"`
	SheetURL                 string `yaml:"sheet_url"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	DBPath          string `yaml:"db_path"`
	ReportOutputDir string `yaml:"report_output_dir"`
	WatchDir        string `yaml:"watch_dir"`

	RefreshSchedule string `yaml:"refresh_schedule"`
	Timezone        string `yaml:"timezone"`

	RecencyDays     int      `yaml:"recency_days"`
	ProductVariants []string `yaml:"product_variants"`
	AllowedClients  []string `yaml:"allowed_clients"`
	TrackerBaseURL  string   `yaml:"tracker_base_url"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`
}

// LoadConfig reads config.yaml, applies env overrides, fills defaults and
// validates. Malformed values are fatal; absent credentials are not. A
// missing token switches the matching integration off, the core pipeline
// never depends on one.
func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.GoogleAPIKey, "GOOGLE_API_KEY")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.JiraServerURL, "JIRA_SERVER_URL")
	envOverride(&cfg.JiraEmail, "JIRA_EMAIL")
	envOverride(&cfg.JiraAPIToken, "JIRA_API_TOKEN")
	envOverride(&cfg.DevRevToken, "DEVREV_ACCESS_TOKEN")
	envOverride(&cfg.SheetsServiceAccountJSON, "GOOGLE_SHEETS_SERVICE_ACCOUNT_JSON")
	envOverride(&cfg.SheetURL, "SHEET_URL")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverride(&cfg.WatchDir, "WATCH_DIR")
	envOverride(&cfg.RefreshSchedule, "REFRESH_SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideInt(&cfg.RecencyDays, "RECENCY_DAYS")
	envOverride(&cfg.TrackerBaseURL, "TRACKER_BASE_URL")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverrideList(&cfg.ProductVariants, "PRODUCT_VARIANTS")
	envOverrideList(&cfg.AllowedClients, "ALLOWED_CLIENTS")

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8501"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "gemini"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./ticketlens.db"
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.RecencyDays == 0 {
		cfg.RecencyDays = defaultRecencyDays
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = 30
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	// Validate
	switch cfg.LLMProvider {
	case "gemini", "anthropic", "openai":
	default:
		log.Fatalf("llm_provider must be 'gemini', 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}

	if cfg.RecencyDays < 1 {
		log.Fatalf("invalid recency_days '%d': must be >= 1", cfg.RecencyDays)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 1 {
		log.Fatalf("invalid external_http_timeout_seconds '%d': must be >= 1", cfg.ExternalHTTPTimeoutSeconds)
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Timezone = time.Local.String()
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		time.Local = loc
	}

	if cfg.RefreshSchedule != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.RefreshSchedule); err != nil {
			log.Fatalf("invalid refresh_schedule '%s': %v", cfg.RefreshSchedule, err)
		}
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideList(field *[]string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = nil
		for _, item := range strings.Split(val, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				*field = append(*field, item)
			}
		}
	}
}

// LLMAPIKey returns the key for the configured provider.
func (c Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	default:
		return c.GoogleAPIKey
	}
}

func (c Config) LLMConfigured() bool {
	return c.LLMAPIKey() != ""
}

func (c Config) JiraConfigured() bool {
	return c.JiraServerURL != "" && c.JiraEmail != "" && c.JiraAPIToken != ""
}

func (c Config) DevRevConfigured() bool {
	return c.DevRevToken != ""
}

func (c Config) SheetsConfigured() bool {
	return c.SheetsServiceAccountJSON != ""
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

// filterParams maps config onto the default chain parameters. Unset pieces
// keep their defaults, so a bare config still filters the stock way.
func (c Config) filterParams() FilterParams {
	p := DefaultFilterParams()
	if c.RecencyDays > 0 {
		p.RecencyDays = c.RecencyDays
	}
	if len(c.ProductVariants) > 0 {
		p.ProductVariants = c.ProductVariants
	}
	if len(c.AllowedClients) > 0 {
		p.AllowedClients = c.AllowedClients
	}
	if c.TrackerBaseURL != "" {
		p.TrackerBaseURL = c.TrackerBaseURL
	} else if c.JiraServerURL != "" {
		p.TrackerBaseURL = strings.TrimRight(c.JiraServerURL, "/") + "/browse/"
	}
	return p
}
