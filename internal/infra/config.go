package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	SessionStore      string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	StorageBaseURL    string
	StoragePath       string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiBaseURL     string
	DashScopeAPIKey   string
	DashScopeModel    string
	DashScopeBaseURL  string
	BackgroundAPIURL  string
	BackgroundAPIKey  string
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	ProviderTimeout   time.Duration
	SnapshotDebounce  time.Duration
	SnapshotTTL       time.Duration
	SessionSweepCron  string
	SessionRetention  time.Duration
	RateLimitPerMin   int
	GenerateQueueRate int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		SessionStore:      getEnv("SESSION_STORE", "postgres"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		StoragePath:       getEnv("STORAGE_PATH", "./data/storage"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		DashScopeAPIKey:   os.Getenv("DASHSCOPE_API_KEY"),
		DashScopeModel:    getEnv("DASHSCOPE_MODEL", "qwen-image-edit"),
		DashScopeBaseURL:  getEnv("DASHSCOPE_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		BackgroundAPIURL:  os.Getenv("BACKGROUND_API_URL"),
		BackgroundAPIKey:  os.Getenv("BACKGROUND_API_KEY"),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		ProviderTimeout:   time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 120)),
		SnapshotDebounce:  time.Millisecond * time.Duration(getEnvInt("SNAPSHOT_DEBOUNCE_MS", 1500)),
		SnapshotTTL:       time.Hour * time.Duration(getEnvInt("SNAPSHOT_TTL_HOURS", 72)),
		SessionSweepCron:  getEnv("SESSION_SWEEP_CRON", "0 * * * *"),
		SessionRetention:  time.Hour * time.Duration(getEnvInt("SESSION_RETENTION_HOURS", 168)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		GenerateQueueRate: getEnvInt("GENERATE_QUEUE_PER_MINUTE", 30),
	}

	switch cfg.SessionStore {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when SESSION_STORE=postgres")
		}
	case "redis":
	default:
		return nil, fmt.Errorf("SESSION_STORE must be postgres or redis, got %q", cfg.SessionStore)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
