package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the safety-gated chat service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	RetentionLimit    int
	StoreBlockedTurns bool
	PromptBudgetChars int
	HistoryLimit      int
	SystemStyle       string

	ModerationRulesPath  string
	ModerationRulesWatch bool
	ClassifierMode       string
	ClassifierHTTPURL    string
	ClassifierTimeout    time.Duration

	RetrievalMode     string
	RetrievalHTTPURL  string
	RetrievalTimeout  time.Duration
	RetrievalTopK     int
	RetrievalDataPath string

	GeneratorMode     string
	GeneratorHTTPURL  string
	GenerationTimeout time.Duration

	DatabaseURL  string
	AuditLogPath string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "aegis"),
		AllowAnyOrigin:   false,

		RetentionLimit:    20,
		StoreBlockedTurns: true,
		PromptBudgetChars: 8000,
		HistoryLimit:      8,
		SystemStyle:       envOrDefault("APP_SYSTEM_STYLE", "You are a careful, helpful assistant."),

		ModerationRulesPath:  stringsTrimSpace("MODERATION_RULES_PATH"),
		ModerationRulesWatch: false,
		ClassifierMode:       envOrDefault("CLASSIFIER_MODE", "auto"),
		ClassifierHTTPURL:    stringsTrimSpace("CLASSIFIER_HTTP_URL"),
		ClassifierTimeout:    5 * time.Second,

		RetrievalMode:     envOrDefault("RETRIEVAL_MODE", "auto"),
		RetrievalHTTPURL:  stringsTrimSpace("RETRIEVAL_HTTP_URL"),
		RetrievalTimeout:  3 * time.Second,
		RetrievalTopK:     3,
		RetrievalDataPath: envOrDefault("RETRIEVAL_DATA_PATH", "./data"),

		GeneratorMode:     envOrDefault("GENERATOR_MODE", "auto"),
		GeneratorHTTPURL:  stringsTrimSpace("GENERATOR_HTTP_URL"),
		GenerationTimeout: 60 * time.Second,

		DatabaseURL:  stringsTrimSpace("DATABASE_URL"),
		AuditLogPath: envOrDefault("AUDIT_LOG_PATH", "./data/audit.jsonl"),

		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ClassifierTimeout, err = durationFromEnv("CLASSIFIER_TIMEOUT", cfg.ClassifierTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalTimeout, err = durationFromEnv("RETRIEVAL_TIMEOUT", cfg.RetrievalTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTimeout, err = durationFromEnv("GENERATION_TIMEOUT", cfg.GenerationTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.StoreBlockedTurns, err = boolFromEnv("APP_STORE_BLOCKED_TURNS", cfg.StoreBlockedTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.ModerationRulesWatch, err = boolFromEnv("MODERATION_RULES_WATCH", cfg.ModerationRulesWatch)
	if err != nil {
		return Config{}, err
	}
	cfg.RetentionLimit, err = intFromEnv("APP_RETENTION_LIMIT", cfg.RetentionLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.PromptBudgetChars, err = intFromEnv("APP_PROMPT_BUDGET_CHARS", cfg.PromptBudgetChars)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("APP_HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalTopK, err = intFromEnv("RETRIEVAL_TOP_K", cfg.RetrievalTopK)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.RetentionLimit <= 0 {
		return Config{}, fmt.Errorf("APP_RETENTION_LIMIT must be positive")
	}
	if cfg.PromptBudgetChars <= 0 {
		return Config{}, fmt.Errorf("APP_PROMPT_BUDGET_CHARS must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("APP_HISTORY_LIMIT must be positive")
	}
	if cfg.RetrievalTopK <= 0 {
		return Config{}, fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if cfg.ModerationRulesWatch && cfg.ModerationRulesPath == "" {
		return Config{}, fmt.Errorf("MODERATION_RULES_WATCH requires MODERATION_RULES_PATH")
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
