package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the family assistant service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	LineAccessToken   string
	LineChannelSecret string
	BotName           string
	AllowedGroupIDs   []string

	DatabaseURL string

	// Context assembly limits for the per-turn memory window.
	ContextRecordLimit   int
	ContextEntryMaxChars int
	ContextMaxChars      int

	DedupeCapacity   int
	DispatchMaxSteps int
	ToolTimeout      time.Duration

	LLMAdapterMode string
	LLMBaseURL     string
	LLMModel       string
	LLMAPIKey      string

	PlacesAPIKey    string
	FirecrawlAPIKey string

	BrowserEnabled     bool
	BrowserHeadless    bool
	BrowserNavTimeout  time.Duration
	BrowserCallTimeout time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "familyagent"),
		LineAccessToken:      stringsTrimSpace("LINE_ACCESS_TOKEN"),
		LineChannelSecret:    stringsTrimSpace("LINE_CHANNEL_SECRET"),
		BotName:              envOrDefault("LINE_BOT_NAME", "FamilyAgent"),
		AllowedGroupIDs:      splitCommaList(os.Getenv("ALLOWED_GROUP_IDS")),
		DatabaseURL:          stringsTrimSpace("DATABASE_URL"),
		ContextRecordLimit:   6,
		ContextEntryMaxChars: 100,
		ContextMaxChars:      10000,
		DedupeCapacity:       500,
		DispatchMaxSteps:     30,
		ToolTimeout:          60 * time.Second,
		LLMAdapterMode:       envOrDefault("LLM_ADAPTER_MODE", "auto"),
		LLMBaseURL:           envOrDefault("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:             envOrDefault("LLM_MODEL", "gemini-2.5-flash"),
		LLMAPIKey:            stringsTrimSpace("GEMINI_API_KEY"),
		PlacesAPIKey:         stringsTrimSpace("GOOGLE_PLACES_API_KEY"),
		FirecrawlAPIKey:      stringsTrimSpace("FIRECRAWL_API_KEY"),
		BrowserEnabled:       true,
		BrowserHeadless:      true,
		BrowserNavTimeout:    30 * time.Second,
		BrowserCallTimeout:   2 * time.Minute,
		ShutdownTimeout:      15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ToolTimeout, err = durationFromEnv("TOOL_TIMEOUT", cfg.ToolTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BrowserNavTimeout, err = durationFromEnv("BROWSER_NAV_TIMEOUT", cfg.BrowserNavTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BrowserCallTimeout, err = durationFromEnv("BROWSER_CALL_TIMEOUT", cfg.BrowserCallTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextRecordLimit, err = intFromEnv("MEMORY_CONTEXT_LIMIT", cfg.ContextRecordLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextEntryMaxChars, err = intFromEnv("MEMORY_ENTRY_MAX_CHARS", cfg.ContextEntryMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextMaxChars, err = intFromEnv("MEMORY_CONTEXT_MAX_CHARS", cfg.ContextMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.DedupeCapacity, err = intFromEnv("DEDUPE_CAPACITY", cfg.DedupeCapacity)
	if err != nil {
		return Config{}, err
	}
	cfg.DispatchMaxSteps, err = intFromEnv("DISPATCH_MAX_STEPS", cfg.DispatchMaxSteps)
	if err != nil {
		return Config{}, err
	}
	cfg.BrowserEnabled, err = boolFromEnv("BROWSER_AUTOMATION_ENABLED", cfg.BrowserEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.BrowserHeadless, err = boolFromEnv("BROWSER_HEADLESS", cfg.BrowserHeadless)
	if err != nil {
		return Config{}, err
	}

	if cfg.LineAccessToken == "" {
		return Config{}, fmt.Errorf("LINE_ACCESS_TOKEN is required")
	}
	if cfg.LineChannelSecret == "" {
		return Config{}, fmt.Errorf("LINE_CHANNEL_SECRET is required")
	}
	if cfg.ContextRecordLimit <= 0 {
		return Config{}, fmt.Errorf("MEMORY_CONTEXT_LIMIT must be positive")
	}
	if cfg.ContextEntryMaxChars <= 0 {
		return Config{}, fmt.Errorf("MEMORY_ENTRY_MAX_CHARS must be positive")
	}
	if cfg.ContextMaxChars <= 0 {
		return Config{}, fmt.Errorf("MEMORY_CONTEXT_MAX_CHARS must be positive")
	}
	if cfg.DedupeCapacity <= 0 {
		return Config{}, fmt.Errorf("DEDUPE_CAPACITY must be positive")
	}
	if cfg.DispatchMaxSteps <= 0 {
		return Config{}, fmt.Errorf("DISPATCH_MAX_STEPS must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitCommaList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
