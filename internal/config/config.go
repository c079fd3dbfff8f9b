package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Scribe environment variables.
const EnvPrefix = "SCRIBE_"

// Config holds all application configuration. Secrets (API keys and the
// webhook verification secret) are loaded exclusively from environment
// variables and never appear in the config file.
type Config struct {
	DBPath            string `yaml:"db_path"`
	ArchiveDir        string `yaml:"archive_dir"`
	HTTPAddr          string `yaml:"http_addr"`
	InactivityTimeout string `yaml:"inactivity_timeout"`
	SummaryModel      string `yaml:"summary_model"`
	RecallBaseURL     string `yaml:"recall_base_url"`
	RecallBotName     string `yaml:"recall_bot_name"`
	WebhookURL        string `yaml:"webhook_url"`
	NATSURL           string `yaml:"nats_url"`

	// Secrets — env vars only, never serialized to YAML.
	RecallAPIToken  string `yaml:"-"`
	WebhookSecret   string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		DBPath:            "data/scribe.db",
		ArchiveDir:        "data/transcripts",
		HTTPAddr:          ":8080",
		InactivityTimeout: "5m",
		SummaryModel:      "openai/gpt-4o-mini",
		RecallBotName:     "Scribe Notetaker",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the
// result. It returns the config, any validation warnings, and an error
// if the file exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedInactivityTimeout returns InactivityTimeout as a time.Duration,
// falling back to 5m if the value is invalid.
func (c *Config) ParsedInactivityTimeout() time.Duration {
	d, err := time.ParseDuration(c.InactivityTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// APIKeyFor returns the secret for an LLM provider name, empty when the
// provider is unknown or unconfigured.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}
	if v := os.Getenv(EnvPrefix + "HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv(EnvPrefix + "INACTIVITY_TIMEOUT"); v != "" {
		cfg.InactivityTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "SUMMARY_MODEL"); v != "" {
		cfg.SummaryModel = v
	}
	if v := os.Getenv(EnvPrefix + "RECALL_BASE_URL"); v != "" {
		cfg.RecallBaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "RECALL_BOT_NAME"); v != "" {
		cfg.RecallBotName = v
	}
	if v := os.Getenv(EnvPrefix + "WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv(EnvPrefix + "NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.RecallAPIToken = os.Getenv(EnvPrefix + "RECALL_API_TOKEN")
	cfg.WebhookSecret = os.Getenv(EnvPrefix + "WEBHOOK_SECRET")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.RecallAPIToken == "" {
		warnings = append(warnings, "Recall API token not configured, bot provisioning is disabled. Set "+EnvPrefix+"RECALL_API_TOKEN.")
	}
	if cfg.WebhookSecret == "" {
		warnings = append(warnings, "Webhook secret not configured, incoming webhooks will be rejected. Set "+EnvPrefix+"WEBHOOK_SECRET.")
	}
	if cfg.WebhookURL == "" {
		warnings = append(warnings, "Webhook URL not configured, bots cannot deliver transcripts. Set "+EnvPrefix+"WEBHOOK_URL.")
	}
	if cfg.OpenAIAPIKey == "" && cfg.AnthropicAPIKey == "" && cfg.GeminiAPIKey == "" {
		warnings = append(warnings, "No LLM API key configured, summaries are disabled. Set "+EnvPrefix+"OPENAI_API_KEY, "+EnvPrefix+"ANTHROPIC_API_KEY or "+EnvPrefix+"GEMINI_API_KEY.")
	}
	if _, err := time.ParseDuration(cfg.InactivityTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid inactivity_timeout %q, using default 5m.", cfg.InactivityTimeout))
	}

	return warnings
}
