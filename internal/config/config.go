package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LLM provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Inference
	LLMProvider      string
	LLMBaseURL       string
	LLMAPIKey        string
	LLMChatModel     string
	LLMDecisionModel string
	GeminiAPIKey     string
	GeminiModel      string
	GeminiBaseURL    string
	LLMTimeout       time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int
	RatePerSecond  float64

	// Workflow
	MaxToolSteps int
	SessionTTL   time.Duration

	// Customer store
	CustomersSeedFile string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisKey          string

	// Ticket events
	KafkaBrokers      []string
	KafkaTicketsTopic string

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		LLMBaseURL:       getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		LLMChatModel:     getEnv("LLM_CHAT_MODEL", "gpt-4o"),
		LLMDecisionModel: getEnv("LLM_DECISION_MODEL", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", ""),
		LLMTimeout:       getEnvDuration("LLM_TIMEOUT", 30*time.Second),

		MaxRetries:     getEnvInt("LLM_MAX_RETRIES", 0),
		InitialBackoff: getEnvDuration("LLM_INITIAL_BACKOFF", 200*time.Millisecond),
		MaxConcurrency: getEnvInt("LLM_MAX_CONCURRENCY", 16),
		RatePerSecond:  getEnvFloat("LLM_RATE_PER_SECOND", 0),

		MaxToolSteps: getEnvInt("MAX_TOOL_STEPS", 12),
		SessionTTL:   getEnvDuration("SESSION_TTL", 30*time.Minute),

		CustomersSeedFile: getEnv("CUSTOMERS_SEED_FILE", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RedisKey:          getEnv("REDIS_KEY", "support:customers"),

		KafkaBrokers:      getEnvList("KAFKA_BROKERS"),
		KafkaTicketsTopic: getEnv("KAFKA_TICKETS_TOPIC", "support.tickets"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// LoadDotEnv loads path into the environment. Variables already set win.
// A missing file is reported so the caller can decide to ignore it.
func LoadDotEnv(path string) error {
	return godotenv.Load(path)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
