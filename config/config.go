package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PricingBaseURL   string
	PricingEndpoint  string
	PricingTimeoutMs int

	CacheBackend    string
	CacheTTLHours   int
	CacheMaxEntries int
	CachePrefix     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int

	CSVOutputPath string
	HTTPAddr      string
	LogLevel      string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PricingBaseURL:   getEnv("PRICING_BASE_URL", "http://localhost:8000"),
		PricingEndpoint:  getEnv("PRICING_ENDPOINT", "/api/v1/price-per-floor-area"),
		PricingTimeoutMs: getEnvInt("PRICING_TIMEOUT_MS", 10000),

		CacheBackend:    getEnv("CACHE_BACKEND", "memory"),
		CacheTTLHours:   getEnvInt("CACHE_TTL_HOURS", 24),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 1000),
		CachePrefix:     getEnv("CACHE_PREFIX", "valuation:"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "valuation"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "valuation123"),
		PostgresDB:       getEnv("POSTGRES_DB", "valuation_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 200),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/valuations.csv"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// PricingTimeout is the deadline applied to a single pricing API request.
func (c *Config) PricingTimeout() time.Duration {
	return time.Duration(c.PricingTimeoutMs) * time.Millisecond
}

// CacheTTL is the wall-clock window a cached postcode series stays fresh.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
