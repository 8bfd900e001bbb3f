package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends for the job registry.
const (
	StoreMemory    = "memory"
	StoreSurrealDB = "surrealdb"
)

// DefaultEngineTimeoutMs is the HTTP timeout for research engine calls.
const DefaultEngineTimeoutMs = 600000

// Config holds all configuration values.
type Config struct {
	// Research engine (OpenAI Responses API)
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	EngineTimeoutMs int

	// Job registry
	Store        string
	JobRetention time.Duration

	// SurrealDB connection (used when Store is "surrealdb")
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		EngineTimeoutMs: getEnvInt("OPENAI_TIMEOUT_MS", DefaultEngineTimeoutMs),

		Store:        strings.ToLower(getEnv("RESEARCH_STORE", StoreMemory)),
		JobRetention: getEnvDuration("RESEARCH_JOB_RETENTION", 0),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "deepresearch"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "jobs"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LogFile:  getEnv("DEEPRESEARCH_LOG_FILE", "/tmp/deepresearch.log"),
		LogLevel: parseLogLevel(getEnv("DEEPRESEARCH_LOG_LEVEL", "INFO")),
	}
}

// EngineTimeout returns the engine HTTP timeout as a duration.
func (c Config) EngineTimeout() time.Duration {
	return time.Duration(c.EngineTimeoutMs) * time.Millisecond
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt falls back to defaultVal for missing, malformed, or non-positive values.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
