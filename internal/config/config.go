// Package config loads settings from .env, an optional YAML file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "configs/eis.yaml"

// DefaultAlertSenders are the addresses LinkedIn and Indeed send job alerts
// from.
var DefaultAlertSenders = []string{
	"jobalerts-noreply@linkedin.com",
	"jobs-noreply@linkedin.com",
	"alert@indeed.com",
	"donotreply@match.indeed.com",
}

type Config struct {
	DatabaseURL string `yaml:"database_url"`

	GmailCredentialsFile string   `yaml:"gmail_credentials_file"`
	GmailTokenFile       string   `yaml:"gmail_token_file"`
	AlertSenders         []string `yaml:"alert_senders"`
	InboxOnly            bool     `yaml:"inbox_only"`

	LookbackDays      int     `yaml:"lookback_days"`
	PeriodHours       float64 `yaml:"period_hours"`
	OnUnmatchedSender string  `yaml:"on_unmatched_sender"`

	ResolveBackoffMS   int    `yaml:"resolve_backoff_ms"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
	IndeedBaseURL      string `yaml:"indeed_base_url"`

	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`

	RedisURL       string `yaml:"redis_url"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

func defaults() *Config {
	return &Config{
		GmailCredentialsFile: "credentials.json",
		GmailTokenFile:       "token.json",
		AlertSenders:         append([]string(nil), DefaultAlertSenders...),
		InboxOnly:            true,
		LookbackDays:         7,
		PeriodHours:          6,
		OnUnmatchedSender:    "fail",
		ResolveBackoffMS:     500,
		HTTPTimeoutSeconds:   30,
		IndeedBaseURL:        "https://uk.indeed.com",
		Addr:                 ":8080",
		LogLevel:             "info",
		GeminiModel:          "gemini-2.5-flash",
	}
}

// Load reads .env, then the YAML file named by EIS_CONFIG_FILE (default
// configs/eis.yaml), then environment overrides. A missing YAML file is
// fine unless EIS_CONFIG_FILE names it explicitly.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path, explicit := os.LookupEnv("EIS_CONFIG_FILE")
	if !explicit || path == "" {
		path = DefaultConfigFile
	}
	return load(path, explicit)
}

func load(path string, required bool) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("DATABASE_URL", &c.DatabaseURL)
	envString("GMAIL_CREDENTIALS_FILE", &c.GmailCredentialsFile)
	envString("GMAIL_TOKEN_FILE", &c.GmailTokenFile)
	envString("EIS_ON_UNMATCHED_SENDER", &c.OnUnmatchedSender)
	envString("EIS_INDEED_BASE_URL", &c.IndeedBaseURL)
	envString("EIS_ADDR", &c.Addr)
	envString("EIS_LOG_LEVEL", &c.LogLevel)
	envString("GEMINI_API_KEY", &c.GeminiAPIKey)
	envString("GEMINI_MODEL", &c.GeminiModel)
	envString("REDIS_URL", &c.RedisURL)
	envString("TELEGRAM_BOT_TOKEN", &c.TelegramToken)

	if v := os.Getenv("EIS_ALERT_SENDERS"); v != "" {
		c.AlertSenders = splitList(v)
	}

	return errors.Join(
		envBool("EIS_INBOX_ONLY", &c.InboxOnly),
		envInt("EIS_LOOKBACK_DAYS", &c.LookbackDays),
		envFloat("EIS_PERIOD_HOURS", &c.PeriodHours),
		envInt("EIS_RESOLVE_BACKOFF_MS", &c.ResolveBackoffMS),
		envInt("EIS_HTTP_TIMEOUT_SECONDS", &c.HTTPTimeoutSeconds),
		envInt64("TELEGRAM_CHAT_ID", &c.TelegramChatID),
	)
}

// Validate checks the settings a scraping run depends on.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return &ConfigError{Field: "DATABASE_URL", Message: "DATABASE_URL is required"}
	}
	if c.LookbackDays <= 0 {
		return &ConfigError{Field: "EIS_LOOKBACK_DAYS", Message: "EIS_LOOKBACK_DAYS must be positive"}
	}
	if c.PeriodHours <= 0 {
		return &ConfigError{Field: "EIS_PERIOD_HOURS", Message: "EIS_PERIOD_HOURS must be positive"}
	}
	switch strings.ToLower(c.OnUnmatchedSender) {
	case "fail", "skip":
	default:
		return &ConfigError{Field: "EIS_ON_UNMATCHED_SENDER", Message: fmt.Sprintf("EIS_ON_UNMATCHED_SENDER must be fail or skip, got %q", c.OnUnmatchedSender)}
	}
	if c.ResolveBackoffMS < 0 {
		return &ConfigError{Field: "EIS_RESOLVE_BACKOFF_MS", Message: "EIS_RESOLVE_BACKOFF_MS must not be negative"}
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return &ConfigError{Field: "EIS_HTTP_TIMEOUT_SECONDS", Message: "EIS_HTTP_TIMEOUT_SECONDS must be positive"}
	}
	if len(c.AlertSenders) == 0 {
		return &ConfigError{Field: "EIS_ALERT_SENDERS", Message: "at least one alert sender is required"}
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return &ConfigError{Field: "TELEGRAM_CHAT_ID", Message: "TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set"}
	}
	return nil
}

func (c *Config) Period() time.Duration {
	return time.Duration(c.PeriodHours * float64(time.Hour))
}

func (c *Config) ResolveBackoff() time.Duration {
	return time.Duration(c.ResolveBackoffMS) * time.Millisecond
}

// ConfigError names the setting that failed validation.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return &ConfigError{Field: key, Message: fmt.Sprintf("%s: invalid boolean %q", key, v)}
	}
	*dst = parsed
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return &ConfigError{Field: key, Message: fmt.Sprintf("%s: invalid integer %q", key, v)}
	}
	*dst = parsed
	return nil
}

func envInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return &ConfigError{Field: key, Message: fmt.Sprintf("%s: invalid integer %q", key, v)}
	}
	*dst = parsed
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return &ConfigError{Field: key, Message: fmt.Sprintf("%s: invalid number %q", key, v)}
	}
	*dst = parsed
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
