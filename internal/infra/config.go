package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv  string
	Port    string
	BaseURL string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	AdminEmail    string
	AdminPassword string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAIQuality string

	AirtableAPIKey  string
	AirtableBaseID  string
	AirtableTable   string
	AirtableBaseURL string

	UploadProvider   string
	StoragePath      string
	StorageBaseURL   string
	GitHubToken      string
	GitHubOwner      string
	GitHubRepo       string
	GitHubBranch     string
	CloudinaryCloud  string
	CloudinaryKey    string
	CloudinarySecret string

	// ImageBatchSize is how many candidate images one orchestrator run
	// attempts. Bounded by the deployment platform's execution ceiling, so a
	// knob rather than a constant.
	ImageBatchSize int

	PollInterval    time.Duration
	PollMaxAttempts int

	PresentationCacheTTL time.Duration

	IntakeWebhookURL       string
	ModificationWebhookURL string
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. Adapter credentials are validated at the point of
// use, not here, so a deployment without e.g. Cloudinary keys still boots.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		Port:    getEnv("PORT", "8080"),
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		OpenAIQuality: getEnv("OPENAI_IMAGE_QUALITY", "standard"),

		AirtableAPIKey:  os.Getenv("AIRTABLE_API_KEY"),
		AirtableBaseID:  os.Getenv("AIRTABLE_BASE_ID"),
		AirtableTable:   os.Getenv("AIRTABLE_TABLE_NAME"),
		AirtableBaseURL: getEnv("AIRTABLE_BASE_URL", "https://api.airtable.com/v0"),

		UploadProvider:   getEnv("UPLOAD_PROVIDER", "local"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:   getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		GitHubOwner:      os.Getenv("GITHUB_OWNER"),
		GitHubRepo:       getEnv("GITHUB_REPO", "permale-images"),
		GitHubBranch:     getEnv("GITHUB_BRANCH", "main"),
		CloudinaryCloud:  os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinarySecret: os.Getenv("CLOUDINARY_API_SECRET"),

		ImageBatchSize: getEnvInt("IMAGE_BATCH_SIZE", 4),

		PollInterval:    time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		PollMaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 20),

		PresentationCacheTTL: time.Minute * time.Duration(getEnvInt("PRESENTATION_CACHE_TTL_MINUTES", 5)),

		IntakeWebhookURL:       os.Getenv("INTAKE_WEBHOOK_URL"),
		ModificationWebhookURL: os.Getenv("MODIFICATION_WEBHOOK_URL"),
	}

	if cfg.ImageBatchSize < 1 {
		return nil, fmt.Errorf("IMAGE_BATCH_SIZE must be at least 1")
	}
	if cfg.ImageBatchSize > 5 {
		return nil, fmt.Errorf("IMAGE_BATCH_SIZE must not exceed %d candidate slots", 5)
	}

	return cfg, nil
}

// Production reports whether the service runs with production settings.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
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
