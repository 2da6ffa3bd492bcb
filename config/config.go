package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every knob the service reads from the environment.
// Game timing values are seconds to keep .env files simple.
type Config struct {
	DatabaseURL    string `env:"DATABASE_URL,required"`
	Port           int    `env:"PORT" envDefault:"8000"`
	AdminToken     string `env:"ADMIN_TOKEN,required"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	RoundInactivityTimeoutSec int     `env:"ROUND_INACTIVITY_TIMEOUT_SEC" envDefault:"1200"`
	MaxRoundDurationSec       int     `env:"MAX_ROUND_DURATION_SEC" envDefault:"86400"`
	BetTimeExtensionSec       int     `env:"BET_TIME_EXTENSION_SEC" envDefault:"60"`
	HouseCutPercentage        float64 `env:"HOUSE_CUT_PERCENTAGE" envDefault:"0.10"`
	PayoutBatchSize           int     `env:"PAYOUT_BATCH_SIZE" envDefault:"5"`

	// Chain integration. "mock" keeps everything local, "http" talks to the
	// external payout/verification service.
	ChainMode          string `env:"CHAIN_MODE" envDefault:"mock"`
	TreasuryAddress    string `env:"TREASURY_ADDRESS"`
	PayoutServiceURL   string `env:"PAYOUT_SERVICE_URL"`
	PayoutServiceToken string `env:"PAYOUT_SERVICE_TOKEN"`

	// Battle image rendering.
	ImageProvider          string `env:"IMAGE_PROVIDER" envDefault:"mock"`
	OpenAIAPIKey           string `env:"OPENAI_API_KEY"`
	ImageRenderIntervalSec int    `env:"IMAGE_RENDER_INTERVAL_SEC" envDefault:"60"`

	// R2 storage for rendered battle images.
	CloudflareAccountID string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID       string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret   string `env:"R2_ACCESS_KEY_SECRET"`
	R2BucketName        string `env:"R2_BUCKET_NAME"`
	CDNBaseURL          string `env:"CDN_BASE_URL"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment config: %w", err)
	}
	if cfg.ChainMode == "http" && cfg.PayoutServiceURL == "" {
		return nil, fmt.Errorf("PAYOUT_SERVICE_URL is required when CHAIN_MODE=http")
	}
	return &cfg, nil
}

func (c *Config) InactivityTimeout() time.Duration {
	return time.Duration(c.RoundInactivityTimeoutSec) * time.Second
}

func (c *Config) MaxRoundDuration() time.Duration {
	return time.Duration(c.MaxRoundDurationSec) * time.Second
}

func (c *Config) BetTimeExtension() time.Duration {
	return time.Duration(c.BetTimeExtensionSec) * time.Second
}

func (c *Config) ImageRenderInterval() time.Duration {
	return time.Duration(c.ImageRenderIntervalSec) * time.Second
}

// R2Configured reports whether rendered images can be persisted to R2.
// When false the image worker falls back to provider-hosted URLs.
func (c *Config) R2Configured() bool {
	return c.CloudflareAccountID != "" && c.R2AccessKeyID != "" &&
		c.R2AccessKeySecret != "" && c.R2BucketName != ""
}
