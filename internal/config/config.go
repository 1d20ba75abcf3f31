package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	HistoryFromStore = "store"
	HistoryRedis     = "redis"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Storage
	StorageBackend string
	DatabaseURL    string

	// Redis
	RedisURL string

	// Chat history
	ChatHistoryBackend string
	ChatHistoryTTL     time.Duration

	// LLM
	LLMProvider       string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	GeminiAPIKey      string
	DefaultModel      string
	ProfileModel      string
	ProfileExtraction bool

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "8000"),
		Env:                getEnvOrDefault("ENV", "development"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		StorageBackend:     strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", StorageMemory)),
		RedisURL:           getEnvOrDefault("REDIS_URL", ""),
		ChatHistoryBackend: strings.ToLower(getEnvOrDefault("CHAT_HISTORY_BACKEND", HistoryFromStore)),
		ChatHistoryTTL:     getEnvAsDurationOrDefault("CHAT_HISTORY_TTL", 0),
		LLMProvider:        strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIBaseURL:      getEnvOrDefault("OPENAI_BASE_URL", ""),
		ProfileExtraction:  getEnvAsBoolOrDefault("PROFILE_EXTRACTION", true),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "*"),
	}

	switch cfg.StorageBackend {
	case StoragePostgres:
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	case StorageMemory:
	default:
		panic(fmt.Sprintf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend))
	}

	switch cfg.ChatHistoryBackend {
	case HistoryRedis:
		cfg.RedisURL = mustGetEnv("REDIS_URL")
	case HistoryFromStore:
	default:
		panic(fmt.Sprintf("unsupported CHAT_HISTORY_BACKEND %q", cfg.ChatHistoryBackend))
	}

	switch cfg.LLMProvider {
	case ProviderOpenAI:
		cfg.OpenAIAPIKey = mustGetEnv("OPENAI_API_KEY")
		cfg.DefaultModel = getEnvOrDefault("LLM_DEFAULT_MODEL", "gpt-4o-mini")
	case ProviderGemini:
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
		cfg.DefaultModel = getEnvOrDefault("LLM_DEFAULT_MODEL", "gemini-2.0-flash")
	case ProviderMock:
		cfg.DefaultModel = getEnvOrDefault("LLM_DEFAULT_MODEL", "mock")
	default:
		panic(fmt.Sprintf("unsupported LLM_PROVIDER %q", cfg.LLMProvider))
	}
	cfg.ProfileModel = getEnvOrDefault("PROFILE_MODEL", cfg.DefaultModel)

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvAsDurationOrDefault accepts Go durations ("30m") or a bare number of seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs := getEnvAsIntOrDefault(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
