package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database  Database  `yaml:"database"`
	Server    Server    `yaml:"server"`
	Scraper   Scraper   `yaml:"scraper"`
	Scheduler Scheduler `yaml:"scheduler"`
	LLM       LLM       `yaml:"llm"`
	Tagging   Tagging   `yaml:"tagging"`
	Telegram  Telegram  `yaml:"telegram"`
	Emerging  Emerging  `yaml:"emerging"`
	Log       Log       `yaml:"log"`
}

// Database configures the SQLite store.
type Database struct {
	Path string `yaml:"path"`
}

// Server configures the HTTP API listener.
type Server struct {
	Addr string `yaml:"addr"`
}

// Scraper configures the Hugging Face client.
type Scraper struct {
	BaseURL          string `yaml:"base_url"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`
	FetchDelayMillis int    `yaml:"fetch_delay_millis"`
}

// Scheduler configures the daily pipeline schedule.
type Scheduler struct {
	Enabled      *bool  `yaml:"enabled"`
	ScrapeTime   string `yaml:"scrape_time"`
	Timezone     string `yaml:"timezone"`
	BackfillDays int    `yaml:"backfill_days"`
}

// LLM selects the provider used for taxonomy generation and tagging.
type LLM struct {
	Provider  string      `yaml:"provider"`
	MiniMax   LLMProvider `yaml:"minimax"`
	OpenAI    LLMProvider `yaml:"openai"`
	Anthropic LLMProvider `yaml:"anthropic"`
}

// LLMProvider holds per-provider credentials and overrides.
type LLMProvider struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	APIURL string `yaml:"api_url"`
}

// Tagging selects between LLM and heuristic classification.
type Tagging struct {
	UseLLM bool `yaml:"use_llm"`
}

// Telegram configures the optional daily digest. Both fields must be
// set for delivery to be enabled.
type Telegram struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// Emerging configures the detection windows.
type Emerging struct {
	LookbackDays   int `yaml:"lookback_days"`
	ComparisonDays int `yaml:"comparison_days"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// scrapeTimeRegex validates HH:MM format with proper ranges.
var scrapeTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var llmProviders = map[string]bool{"minimax": true, "openai": true, "anthropic": true}

// Load reads configuration from a YAML file and applies defaults. A
// missing file is not an error: every setting has a default or an
// environment override.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Run on defaults and environment alone.
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("PAPER_RADAR_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// SchedulerEnabled reports whether the daily schedule should run.
// Unset means enabled.
func (c *Config) SchedulerEnabled() bool {
	return c.Scheduler.Enabled == nil || *c.Scheduler.Enabled
}

// TelegramEnabled reports whether digest delivery is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Token != "" && c.Telegram.ChatID != 0
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./paper-radar.db"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Scraper.BaseURL == "" {
		cfg.Scraper.BaseURL = "https://huggingface.co"
	}
	if cfg.Scraper.FetchTimeoutSecs == 0 {
		cfg.Scraper.FetchTimeoutSecs = 30
	}
	if cfg.Scraper.FetchDelayMillis == 0 {
		cfg.Scraper.FetchDelayMillis = 1500
	}
	if cfg.Scheduler.ScrapeTime == "" {
		cfg.Scheduler.ScrapeTime = "09:00"
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}
	if cfg.Scheduler.BackfillDays == 0 {
		cfg.Scheduler.BackfillDays = 7
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "minimax"
	}
	if cfg.Emerging.LookbackDays == 0 {
		cfg.Emerging.LookbackDays = 14
	}
	if cfg.Emerging.ComparisonDays == 0 {
		cfg.Emerging.ComparisonDays = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("PAPER_RADAR_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PAPER_RADAR_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SCRAPE_TIME"); v != "" {
		cfg.Scheduler.ScrapeTime = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("USE_LLM"); v != "" {
		cfg.Tagging.UseLLM = v == "true" || v == "1"
	}
	if v := os.Getenv("MINIMAX_API_KEY"); v != "" {
		cfg.LLM.MiniMax.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.Anthropic.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func validate(cfg *Config) error {
	if !scrapeTimeRegex.MatchString(cfg.Scheduler.ScrapeTime) {
		return fmt.Errorf("scrape_time must be in HH:MM format (00:00-23:59), got %q", cfg.Scheduler.ScrapeTime)
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Scheduler.Timezone, err)
	}
	if cfg.Scheduler.BackfillDays < 0 {
		return fmt.Errorf("backfill_days must not be negative, got %d", cfg.Scheduler.BackfillDays)
	}
	if !llmProviders[cfg.LLM.Provider] {
		return fmt.Errorf("unknown llm provider %q (minimax, openai or anthropic)", cfg.LLM.Provider)
	}
	if !logLevels[cfg.Log.Level] {
		return fmt.Errorf("unknown log level %q (debug, info, warn or error)", cfg.Log.Level)
	}
	if cfg.Emerging.LookbackDays < 1 {
		return fmt.Errorf("lookback_days must be positive, got %d", cfg.Emerging.LookbackDays)
	}
	if cfg.Emerging.ComparisonDays < 1 {
		return fmt.Errorf("comparison_days must be positive, got %d", cfg.Emerging.ComparisonDays)
	}
	return nil
}
