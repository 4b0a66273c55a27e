package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	JWTSecret          string
	SessionTTL         time.Duration
	StoreBackend       string
	SnapshotPath       string
	RedisURL           string
	DatabaseURL        string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	JanitorInterval    time.Duration
	AdminEmail         string
	AdminPassword      string
	Verification       VerificationConfig
	S3                 S3Config
	OTLPEndpoint       string
}

// VerificationConfig sets the pace of the simulated stages
type VerificationConfig struct {
	DocumentDelay time.Duration
	NotaryDelay   time.Duration
	Tick          time.Duration
}

// S3Config locates the bucket that receives verification documents
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	sessionMinutes, err := getInt("SESSION_TTL_MINUTES", 24*60)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getInt("RATE_LIMIT_PER_MINUTE", 100)
	if err != nil {
		return nil, err
	}
	janitorSeconds, err := getInt("JANITOR_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	documentDelay, err := getInt("VERIFY_DOCUMENT_DELAY_MS", 2000)
	if err != nil {
		return nil, err
	}
	notaryDelay, err := getInt("VERIFY_NOTARY_DELAY_MS", 3000)
	if err != nil {
		return nil, err
	}
	tick, err := getInt("VERIFY_TICK_MS", 500)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		ServerPort:         port,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		SessionTTL:         time.Duration(sessionMinutes) * time.Minute,
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		SnapshotPath:       os.Getenv("STORE_SNAPSHOT_PATH"),
		RedisURL:           os.Getenv("REDIS_URL"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		RateLimitPerMinute: rateLimit,
		JanitorInterval:    time.Duration(janitorSeconds) * time.Second,
		AdminEmail:         getEnv("ADMIN_EMAIL", "admin@blockland.com"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", "admin123"),
		Verification: VerificationConfig{
			DocumentDelay: time.Duration(documentDelay) * time.Millisecond,
			NotaryDelay:   time.Duration(notaryDelay) * time.Millisecond,
			Tick:          time.Duration(tick) * time.Millisecond,
		},
		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store backend")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want memory, redis or postgres", c.StoreBackend)
	}
	if c.JWTSecret == "" {
		if c.Environment == "production" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.JWTSecret = "landledger-dev-secret"
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.ServerPort)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
