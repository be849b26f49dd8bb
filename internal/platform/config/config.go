package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Addr               string        `yaml:"addr"`
	Environment        string        `yaml:"environment"`
	LogLevel           string        `yaml:"log_level"`
	StoreDriver        string        `yaml:"store_driver"`
	DatabaseURL        string        `yaml:"database_url"`
	RunMigrations      bool          `yaml:"run_migrations"`
	JWTSecret          string        `yaml:"jwt_secret"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	MetricsEnabled     bool          `yaml:"metrics_enabled"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	GenAIEndpoint      string        `yaml:"genai_endpoint"`
	GenAIModel         string        `yaml:"genai_model"`
	GenAIAPIKey        string        `yaml:"genai_api_key"`
	GenAITimeout       time.Duration `yaml:"genai_timeout"`
	NATSURL            string        `yaml:"nats_url"`
	RolloutConcurrency int           `yaml:"rollout_concurrency"`
	CatalogFile        string        `yaml:"catalog_file"`
	SeedTenantName     string        `yaml:"seed_tenant_name"`
}

func defaults() Config {
	return Config{
		Addr:               ":8080",
		Environment:        "development",
		LogLevel:           "info",
		StoreDriver:        StorePostgres,
		RunMigrations:      true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 120,
		MetricsEnabled:     true,
		ShutdownTimeout:    15 * time.Second,
		GenAITimeout:       20 * time.Second,
		RolloutConcurrency: 4,
		SeedTenantName:     "default",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE when set, then environment variables.
func Load() (Config, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Addr = getEnv("APP_ADDR", cfg.Addr)
	cfg.Environment = getEnv("APP_ENV", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.StoreDriver = getEnv("STORE_DRIVER", cfg.StoreDriver)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RunMigrations = getEnvBool("RUN_MIGRATIONS", cfg.RunMigrations)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.GenAIEndpoint = getEnv("GENAI_ENDPOINT", cfg.GenAIEndpoint)
	cfg.GenAIModel = getEnv("GENAI_MODEL", cfg.GenAIModel)
	cfg.GenAIAPIKey = getEnv("GENAI_API_KEY", cfg.GenAIAPIKey)
	cfg.GenAITimeout = getEnvDuration("GENAI_TIMEOUT", cfg.GenAITimeout)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.RolloutConcurrency = getEnvInt("ROLLOUT_CONCURRENCY", cfg.RolloutConcurrency)
	cfg.CatalogFile = getEnv("KPI_CATALOG_FILE", cfg.CatalogFile)
	cfg.SeedTenantName = getEnv("SEED_TENANT_NAME", cfg.SeedTenantName)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case StoreMemory:
		if c.Environment == "production" {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", StorePostgres, StoreMemory)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Environment == "production" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.GenAITimeout <= 0 {
		return fmt.Errorf("GENAI_TIMEOUT must be positive")
	}
	if c.RolloutConcurrency <= 0 {
		return fmt.Errorf("ROLLOUT_CONCURRENCY must be positive")
	}
	return nil
}
