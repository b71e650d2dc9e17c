package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           int    `mapstructure:"port"`
	DatabaseURL    string `mapstructure:"database_url"`
	GatewayToken   string `mapstructure:"gateway_service_token"`
	AllowedOrigins string `mapstructure:"allowed_origins"`
	AuthServiceURL string `mapstructure:"auth_service_url"`

	GoogleBooks GoogleBooksConfig `mapstructure:"google_books"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Stripe      StripeConfig      `mapstructure:"stripe"`
	R2          R2Config          `mapstructure:"r2"`
	ProfileSync ProfileSyncConfig `mapstructure:"profile_sync"`

	LeaderboardRecomputeInterval time.Duration `mapstructure:"leaderboard_recompute_interval"`
	CoverMirrorInterval          time.Duration `mapstructure:"cover_mirror_interval"`
}

type GoogleBooksConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	MaxResults        int           `mapstructure:"max_results"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StripeConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	Currency  string `mapstructure:"currency"`
}

// R2Config holds the Cloudflare R2 bucket used for mirrored covers.
type R2Config struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	Bucket          string `mapstructure:"bucket"`
	CDNBaseURL      string `mapstructure:"cdn_base_url"`
}

func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

type ProfileSyncConfig struct {
	URL          string        `mapstructure:"url"`
	EndpointPath string        `mapstructure:"endpoint_path"`
	ServiceToken string        `mapstructure:"service_token"`
	Interval     time.Duration `mapstructure:"interval"`
}

// envBindings maps keys whose environment variable does not follow the
// dotted-key to UPPER_SNAKE rule.
var envBindings = map[string]string{
	"r2.account_id":        "CLOUDFLARE_ACCOUNT_ID",
	"r2.bucket":            "R2_BUCKET_NAME",
	"r2.access_key_id":     "R2_ACCESS_KEY_ID",
	"r2.access_key_secret": "R2_ACCESS_KEY_SECRET",
	"r2.cdn_base_url":      "CDN_BASE_URL",
	"profile_sync.url":     "PROFILE_SYNC_URL",
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.R2.CDNBaseURL == "" && cfg.R2.AccountID != "" {
		cfg.R2.CDNBaseURL = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2.AccountID)
	}
	if cfg.ProfileSync.ServiceToken == "" {
		cfg.ProfileSync.ServiceToken = cfg.GatewayToken
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 5200)
	v.SetDefault("database_url", "")
	v.SetDefault("gateway_service_token", "")
	v.SetDefault("allowed_origins", "http://localhost:3000")
	v.SetDefault("auth_service_url", "")

	v.SetDefault("google_books.api_key", "")
	v.SetDefault("google_books.base_url", "https://www.googleapis.com/books/v1")
	v.SetDefault("google_books.max_results", 20)
	v.SetDefault("google_books.timeout", 10*time.Second)
	v.SetDefault("google_books.requests_per_second", 5.0)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 60*time.Second)

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.currency", "usd")

	v.SetDefault("r2.account_id", "")
	v.SetDefault("r2.access_key_id", "")
	v.SetDefault("r2.access_key_secret", "")
	v.SetDefault("r2.bucket", "")
	v.SetDefault("r2.cdn_base_url", "")

	v.SetDefault("profile_sync.url", "")
	v.SetDefault("profile_sync.endpoint_path", "/api/v1/public/profiles")
	v.SetDefault("profile_sync.service_token", "")
	v.SetDefault("profile_sync.interval", time.Minute)

	v.SetDefault("leaderboard_recompute_interval", 15*time.Minute)
	v.SetDefault("cover_mirror_interval", 10*time.Minute)
}

// CORSOrigins normalizes the comma separated ALLOWED_ORIGINS list.
func (c *Config) CORSOrigins() string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// ValidateServe checks the settings the HTTP server cannot start without.
func (c *Config) ValidateServe() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
	}
	if c.GatewayToken == "" {
		errs = append(errs, errors.New("GATEWAY_SERVICE_TOKEN is not set, service cannot authenticate Gateway"))
	}
	return errors.Join(errs...)
}
