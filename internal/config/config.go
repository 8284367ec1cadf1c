package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HDR processing provider
	ProviderAPIKey       string
	ProviderAPIBaseURL   string
	ProviderWebhookToken string
	WebhookCallbackURL   string
	ProcessingTimeout    time.Duration

	// Messaging collaborator (email/sms dispatch)
	MessagingAPIBaseURL string
	MessagingAPIKey     string

	// Supabase (processed-asset archival + realtime)
	SupabaseURL           string
	SupabaseKey           string
	SupabaseStorageBucket string

	// Orchestration
	EditorWorkloadCap int
	MaxRevisions      int
	SweepInterval     time.Duration

	// Auth
	JWTSecret string

	// Database
	DatabaseURL string

	// Server
	Port        string
	Environment string
}

func Load() (*Config, error) {
	cfg := &Config{
		ProviderAPIKey:       getEnv("PROVIDER_API_KEY", ""),
		ProviderAPIBaseURL:   getEnv("PROVIDER_API_BASE_URL", "https://api.hdrmerge.example.com/v1/"),
		ProviderWebhookToken: getEnv("PROVIDER_WEBHOOK_TOKEN", ""),
		WebhookCallbackURL:   getEnv("WEBHOOK_CALLBACK_URL", ""),
		ProcessingTimeout:    getEnvDuration("PROCESSING_TIMEOUT", 3*time.Hour),

		MessagingAPIBaseURL: getEnv("MESSAGING_API_BASE_URL", ""),
		MessagingAPIKey:     getEnv("MESSAGING_API_KEY", ""),

		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseKey:           getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "processed-assets"),

		EditorWorkloadCap: getEnvInt("EDITOR_WORKLOAD_CAP", 5),
		MaxRevisions:      getEnvInt("MAX_REVISIONS", 3),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Minute),

		JWTSecret: getEnv("JWT_SECRET", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ProviderAPIKey == "" {
		return fmt.Errorf("PROVIDER_API_KEY is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.EditorWorkloadCap < 1 {
		return fmt.Errorf("EDITOR_WORKLOAD_CAP must be at least 1")
	}
	if c.MaxRevisions < 1 {
		return fmt.Errorf("MAX_REVISIONS must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
