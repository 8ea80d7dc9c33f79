package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	PublicBaseURL    string
	UploadDir        string
	BrandCatalogPath string
	CORSOrigins      []string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	ReplicateAPIToken string
	ReplicateBaseURL  string
	ReplicateModel    string

	GenerateMaxAttempts int
	GenerateRetryDelay  time.Duration
	GenerateTimeout     time.Duration
	PredictionPollDelay time.Duration
	PredictionMaxPolls  int
	SlotLaunchPerSecond float64
	BackfillAttempts    int
	PlaceholderFallback bool

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults
// where needed. Provider credentials are optional: without them the service runs
// in mock / placeholder mode, which is what local development and tests rely on.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "3001")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", "http://localhost:"+port),
		UploadDir:        getEnv("UPLOAD_DIR", "uploads"),
		BrandCatalogPath: os.Getenv("BRAND_CATALOG_PATH"),
		CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS",
			"http://localhost:3000", "http://127.0.0.1:3000"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		ReplicateAPIToken: os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:  getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModel:    getEnv("REPLICATE_MODEL", "black-forest-labs/flux-schnell"),

		GenerateMaxAttempts: getEnvInt("GENERATE_MAX_ATTEMPTS", 3),
		GenerateRetryDelay:  time.Millisecond * time.Duration(getEnvInt("GENERATE_RETRY_DELAY_MS", 2000)),
		GenerateTimeout:     time.Second * time.Duration(getEnvInt("GENERATE_TIMEOUT_SECONDS", 60)),
		PredictionPollDelay: time.Millisecond * time.Duration(getEnvInt("PREDICTION_POLL_DELAY_MS", 1000)),
		PredictionMaxPolls:  getEnvInt("PREDICTION_MAX_POLLS", 60),
		SlotLaunchPerSecond: getEnvFloat("SLOT_LAUNCH_PER_SECOND", 2),
		BackfillAttempts:    getEnvInt("BACKFILL_ATTEMPTS", 2),
		PlaceholderFallback: getEnvBool("PLACEHOLDER_FALLBACK", false),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	return cfg, nil
}

// GeminiConfigured reports whether the LLM provider has credentials.
func (c *Config) GeminiConfigured() bool { return c.GeminiAPIKey != "" }

// ReplicateConfigured reports whether the image provider has credentials.
func (c *Config) ReplicateConfigured() bool { return c.ReplicateAPIToken != "" }

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

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback ...string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
