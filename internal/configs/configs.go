/*
Package configs is responsible for loading and parsing the application's configuration settings.

All settings come from environment variables (optionally seeded from a .env file in
development): server parameters, LINE channel credentials, the key-value store URL,
the content storage backend, retention and rate limits.
*/
package configs

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for composed images.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment   string
	Port          int
	PublicBaseURL string

	// LINE Channel Settings
	ChannelSecret      string
	ChannelAccessToken string
	RichMenuEnabled    bool
	FeatureFormURI     string

	// Key-value store (redis://, rediss://, postgres://, postgresql://, memory://)
	StoreURL string

	// Labels and overlays
	OverlayDir  string
	CatalogFile string

	// Result Storage Settings
	StorageBackend    string
	LocalStorageDir   string
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicBaseURL   string
	ResultRetention   time.Duration
	SweepInterval     time.Duration

	// Abuse Protection
	ImageRatePerMinute float64
	ImageBurst         int
	AllowedOrigins     []string
	AdminJWTSecret     string
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and validates the configuration from environment variables.
// In development a .env file in the working directory is loaded first, without
// overriding variables that are already set.
func LoadConfig() (*AppConfig, error) {
	if env := os.Getenv("ENVIRONMENT"); env == "" || env == "development" {
		_ = godotenv.Load()
	}

	cfg := &AppConfig{}
	var err error

	// --- General Server Settings ---
	cfg.Environment = getEnv("ENVIRONMENT", "development")

	cfg.Port, err = getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	cfg.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	if err := validateBaseURL("PUBLIC_BASE_URL", cfg.PublicBaseURL, !cfg.IsDevelopment()); err != nil {
		return nil, err
	}

	// --- LINE Channel Settings ---
	cfg.ChannelSecret = os.Getenv("CHANNEL_SECRET")
	if cfg.ChannelSecret == "" {
		return nil, fmt.Errorf("CHANNEL_SECRET environment variable is required to verify webhook signatures")
	}
	cfg.ChannelAccessToken = os.Getenv("CHANNEL_ACCESS_TOKEN")
	if cfg.ChannelAccessToken == "" {
		return nil, fmt.Errorf("CHANNEL_ACCESS_TOKEN environment variable is required to call the Messaging API")
	}

	cfg.RichMenuEnabled, err = getEnvBool("RICH_MENU_ENABLED", true)
	if err != nil {
		return nil, err
	}
	cfg.FeatureFormURI = getEnv("FEATURE_FORM_URI", "line://app/1636610661-exPKww1a")

	// --- Key-value Store ---
	cfg.StoreURL = os.Getenv("STORE_URL")
	if cfg.StoreURL == "" {
		cfg.StoreURL = os.Getenv("REDIS_URL")
	}
	if cfg.StoreURL == "" {
		if cfg.IsDevelopment() {
			cfg.StoreURL = "memory://"
		} else {
			return nil, fmt.Errorf("STORE_URL (or REDIS_URL) environment variable is required in %s environment", cfg.Environment)
		}
	}

	// --- Labels and Overlays ---
	cfg.OverlayDir = getEnv("OVERLAY_DIR", "imgs")
	cfg.CatalogFile = os.Getenv("CATALOG_FILE")

	// --- Result Storage Settings ---
	cfg.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal))
	switch cfg.StorageBackend {
	case StorageLocal:
		cfg.LocalStorageDir = getEnv("LOCAL_STORAGE_DIR", "data/results")
	case StorageS3:
		if err := loadS3(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q (want %q or %q)", cfg.StorageBackend, StorageLocal, StorageS3)
	}

	cfg.ResultRetention, err = getEnvDuration("RESULT_RETENTION", 72*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.SweepInterval, err = getEnvDuration("SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	// --- Abuse Protection ---
	rateStr := getEnv("IMAGE_RATE_PER_MINUTE", "10")
	cfg.ImageRatePerMinute, err = strconv.ParseFloat(rateStr, 64)
	if err != nil || cfg.ImageRatePerMinute <= 0 {
		return nil, fmt.Errorf("invalid IMAGE_RATE_PER_MINUTE environment variable: %q", rateStr)
	}
	cfg.ImageBurst, err = getEnvInt("IMAGE_BURST", 5)
	if err != nil {
		return nil, err
	}

	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{}
	}

	cfg.AdminJWTSecret = os.Getenv("ADMIN_JWT_SECRET")

	return cfg, nil
}

func loadS3(cfg *AppConfig) error {
	required := []struct {
		key string
		dst *string
	}{
		{"S3_BUCKET_NAME", &cfg.S3BucketName},
		{"S3_ENDPOINT", &cfg.S3Endpoint},
		{"S3_ACCESS_KEY_ID", &cfg.S3AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", &cfg.S3SecretAccessKey},
	}
	for _, r := range required {
		*r.dst = os.Getenv(r.key)
		if *r.dst == "" {
			return fmt.Errorf("%s environment variable is required for S3 storage", r.key)
		}
	}

	cfg.S3PublicBaseURL = strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/")
	if cfg.S3PublicBaseURL != "" {
		return validateBaseURL("S3_PUBLIC_BASE_URL", cfg.S3PublicBaseURL, true)
	}
	return nil
}

// validateBaseURL checks that raw is an absolute URL; requireHTTPS enforces https,
// which the Messaging API demands for image and link URLs.
func validateBaseURL(key, raw string, requireHTTPS bool) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid %s %q: must be an absolute URL", key, raw)
	}
	if requireHTTPS && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: must use https", key, raw)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("invalid %s %q: unsupported scheme %q", key, raw, u.Scheme)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s environment variable: must be positive", key)
	}
	return d, nil
}
