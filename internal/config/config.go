package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis (optional: session locks + turn notifications across instances)
	RedisURL string

	// Session cookie
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	// Gemini AI
	GeminiAPIKey         string
	GeminiConcurrentReqs int
	GeminiTimeout        time.Duration

	// Conversation
	HistoryLimit  int
	TurnRetention time.Duration
	AssetsFile    string
	ChatRateLimit int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "5000"),
		Env:                  getEnvOrDefault("ENV", "development"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		DatabaseURL:          getEnvOrDefault("DATABASE_URL", "cryptopal.db"),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		SessionSecret:        getEnvOrDefault("SESSION_SECRET", ""),
		SessionTTL:           getEnvAsDurationOrDefault("SESSION_TTL", 30*24*time.Hour),
		CookieSecure:         getEnvAsBoolOrDefault("COOKIE_SECURE", false),
		GeminiAPIKey:         getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		GeminiTimeout:        getEnvAsDurationOrDefault("GEMINI_TIMEOUT", 30*time.Second),
		HistoryLimit:         getEnvAsIntOrDefault("HISTORY_LIMIT", 20),
		TurnRetention:        getEnvAsDurationOrDefault("TURN_RETENTION", 30*24*time.Hour),
		AssetsFile:           getEnvOrDefault("ASSETS_FILE", ""),
		ChatRateLimit:        getEnvAsIntOrDefault("CHAT_RATE_LIMIT", 30),
	}

	// Sessions signed with a throwaway secret would not survive a restart,
	// which is fine locally but not in production.
	if cfg.IsProduction() {
		cfg.SessionSecret = mustGetEnv("SESSION_SECRET")
	}

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

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
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
