package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBDSN         string `mapstructure:"DB_DSN"`
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	ChatContextWindowSize int `mapstructure:"CHAT_CONTEXT_WINDOW_SIZE"`

	// identity / access
	AnonymousAllowed   bool   `mapstructure:"ANONYMOUS_ALLOWED"`
	IdentityHeader     string `mapstructure:"IDENTITY_HEADER"`
	AccessPasswordHash string `mapstructure:"ACCESS_PASSWORD_HASH"`
	TokenTTL           time.Duration

	// AI provider
	AIProvider        string `mapstructure:"AI_PROVIDER"`
	DocumentsProvider string `mapstructure:"DOCUMENTS_PROVIDER"`
	OllamaBaseURL     string `mapstructure:"OLLAMA_BASE_URL"`
	OllamaModel       string `mapstructure:"OLLAMA_MODEL"`
	OpenRouterBaseURL string `mapstructure:"OPENROUTER_BASE_URL"`
	OpenRouterAPIKey  string `mapstructure:"OPENROUTER_API_KEY"`
	OpenRouterModel   string `mapstructure:"OPENROUTER_MODEL"`
	OpenRouterSiteURL string `mapstructure:"OPENROUTER_SITE_URL"`
	OpenRouterAppName string `mapstructure:"OPENROUTER_APP_NAME"`
	OpenAIAPIKey      string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel       string `mapstructure:"OPENAI_MODEL"`
	AgentTimeout      time.Duration

	// sensitivity gate: "keyword", "remote" or "openai"
	SensitivityMode        string `mapstructure:"SENSITIVITY_MODE"`
	SensitivityPhrasesFile string `mapstructure:"SENSITIVITY_PHRASES_FILE"`
	SensitivityURL         string `mapstructure:"SENSITIVITY_URL"`
	SensitivityModel       string `mapstructure:"SENSITIVITY_MODEL"`
	SensitivityCacheTTL    time.Duration

	// session state
	StateCacheSize int `mapstructure:"STATE_CACHE_SIZE"`
	TurnLockTTL    time.Duration

	// rabbitMQ; ingestion runs inline when RABBIT_URL is empty
	RabbitURL         string `mapstructure:"RABBIT_URL"`
	RabbitQueue       string `mapstructure:"RABBIT_QUEUE"`
	WorkerConcurrency int    `mapstructure:"WORKER_CONCURRENCY"`
	JobMaxAttempts    int    `mapstructure:"JOB_MAX_ATTEMPTS"`

	UI UI
}

// UI holds the texts shown by front-ends.
type UI struct {
	PageTitle        string `mapstructure:"UI_PAGE_TITLE" json:"page_title"`
	Greeting         string `mapstructure:"UI_GREETING" json:"greeting"`
	NewChatLabel     string `mapstructure:"UI_NEW_CHAT_LABEL" json:"new_chat_label"`
	InputPlaceholder string `mapstructure:"UI_INPUT_PLACEHOLDER" json:"input_placeholder"`
}

type rawDurations struct {
	TokenTTLHours          int `mapstructure:"TOKEN_TTL_HOURS"`
	AgentTimeoutSeconds    int `mapstructure:"AGENT_TIMEOUT_SECONDS"`
	SensitivityCacheSecond int `mapstructure:"SENSITIVITY_CACHE_SECONDS"`
	TurnLockTTLSeconds     int `mapstructure:"TURN_LOCK_TTL_SECONDS"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")

	// DSN demo：
	// app:apppass@tcp(127.0.0.1:3306)/sentinel_chat?charset=utf8mb4&parseTime=true&loc=Local
	// sqlite:sentinel.db for local runs
	v.SetDefault("DB_DSN", fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
		"app", "apppass", "127.0.0.1", "3306", "sentinel_chat",
	))
	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CHAT_CONTEXT_WINDOW_SIZE", 20)

	v.SetDefault("ANONYMOUS_ALLOWED", false)
	v.SetDefault("IDENTITY_HEADER", "Username")
	v.SetDefault("ACCESS_PASSWORD_HASH", "")
	v.SetDefault("TOKEN_TTL_HOURS", 24)

	v.SetDefault("AI_PROVIDER", "ollama")
	v.SetDefault("DOCUMENTS_PROVIDER", "")
	v.SetDefault("OLLAMA_BASE_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "llama3:latest")
	v.SetDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	v.SetDefault("OPENROUTER_API_KEY", "")
	v.SetDefault("OPENROUTER_MODEL", "openrouter/auto")
	v.SetDefault("OPENROUTER_SITE_URL", "")
	v.SetDefault("OPENROUTER_APP_NAME", "")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("AGENT_TIMEOUT_SECONDS", 120)

	v.SetDefault("SENSITIVITY_MODE", "keyword")
	v.SetDefault("SENSITIVITY_PHRASES_FILE", "")
	v.SetDefault("SENSITIVITY_URL", "")
	v.SetDefault("SENSITIVITY_MODEL", "gpt-4o-mini")
	v.SetDefault("SENSITIVITY_CACHE_SECONDS", 600)

	v.SetDefault("STATE_CACHE_SIZE", 1024)
	v.SetDefault("TURN_LOCK_TTL_SECONDS", 300)

	v.SetDefault("RABBIT_URL", "")
	v.SetDefault("RABBIT_QUEUE", "document_jobs")
	v.SetDefault("WORKER_CONCURRENCY", 2)
	v.SetDefault("JOB_MAX_ATTEMPTS", 3)

	v.SetDefault("UI_PAGE_TITLE", "Sentinel Chat")
	v.SetDefault("UI_GREETING", "Hello! How can I help you today?")
	v.SetDefault("UI_NEW_CHAT_LABEL", "New Chat")
	v.SetDefault("UI_INPUT_PLACEHOLDER", "Ask me anything")
}

// Load reads config.yaml (if present) and the environment. Environment wins.
func Load(logger *zap.Logger) Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil && logger != nil {
		logger.Debug("no config file, using defaults/env vars", zap.Error(err))
	}

	var cfg Config
	var ui UI
	var raw rawDurations
	for _, target := range []any{&cfg, &ui, &raw} {
		if err := v.Unmarshal(target); err != nil && logger != nil {
			logger.Warn("config decode failed, keeping defaults", zap.Error(err))
		}
	}
	cfg.UI = ui

	cfg.TokenTTL = time.Duration(raw.TokenTTLHours) * time.Hour
	cfg.AgentTimeout = time.Duration(raw.AgentTimeoutSeconds) * time.Second
	cfg.SensitivityCacheTTL = time.Duration(raw.SensitivityCacheSecond) * time.Second
	cfg.TurnLockTTL = time.Duration(raw.TurnLockTTLSeconds) * time.Second

	cfg.AIProvider = strings.ToLower(strings.TrimSpace(cfg.AIProvider))
	if cfg.DocumentsProvider == "" {
		cfg.DocumentsProvider = cfg.AIProvider
	}
	cfg.SensitivityMode = strings.ToLower(strings.TrimSpace(cfg.SensitivityMode))
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 2
	}
	if cfg.WorkerConcurrency > 50 {
		cfg.WorkerConcurrency = 50
	}
	if cfg.ChatContextWindowSize <= 0 || cfg.ChatContextWindowSize > 100 {
		cfg.ChatContextWindowSize = 20
	}
	return cfg
}
