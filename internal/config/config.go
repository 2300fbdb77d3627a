// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"meu-plano/internal/domain/model"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format   string `yaml:"format" validate:"oneof=json console"`
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port" validate:"min=1,max=65535"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AuthConfig struct {
	// JWTSecret enables bearer auth on /api/v1 when set.
	JWTSecret string `yaml:"jwt_secret"`
}

// CustomerConfig is the single customer this deployment serves.
type CustomerConfig struct {
	ID                    string `yaml:"id" validate:"required"`
	IncludedWhatsAppSlots int    `yaml:"included_whatsapp_slots" validate:"min=0"`
}

type StripeConfig struct {
	SecretKey string `yaml:"secret_key" validate:"required"`
	// PlanPriceIDs identify the main plan when metadata is missing.
	PlanPriceIDs []string      `yaml:"plan_price_ids"`
	Timeout      time.Duration `yaml:"timeout"`
}

type InfozapConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type SlotConfig struct {
	ID               int    `yaml:"id" validate:"min=0,max=4"`
	ChannelProductID string `yaml:"channel_product_id"`
	ChannelPriceID   string `yaml:"channel_price_id"`
	IAProductID      string `yaml:"ia_product_id"`
	IAPriceID        string `yaml:"ia_price_id" validate:"required"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // optional: enables the mutation journal
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // optional: enables product cache and rate limiting
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type RateLimitConfig struct {
	Mutations int           `yaml:"mutations"`
	Window    time.Duration `yaml:"window"`
}

type SchedulerConfig struct {
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Customer  CustomerConfig  `yaml:"customer"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Infozap   InfozapConfig   `yaml:"infozap"`
	Channels  []SlotConfig    `yaml:"channels" validate:"len=5,dive"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads an optional .env, then the YAML file, then applies
// environment overrides and defaults, and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse is LoadConfig without the file and .env access.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setStr(&cfg.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	setStr(&cfg.Customer.ID, "MEUPLANO_CUSTOMER_ID")
	setStr(&cfg.Infozap.BaseURL, "INFOZAP_BASE_URL")
	setStr(&cfg.Infozap.Token, "INFOZAP_TOKEN")
	setStr(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL")
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.Stripe.Timeout <= 0 {
		cfg.Stripe.Timeout = 30 * time.Second
	}
	if cfg.Infozap.Timeout <= 0 {
		cfg.Infozap.Timeout = 15 * time.Second
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.RateLimit.Mutations <= 0 {
		cfg.RateLimit.Mutations = 20
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Scheduler.SnapshotInterval <= 0 {
		cfg.Scheduler.SnapshotInterval = 15 * time.Minute
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

// CatalogSlots converts the configured slots for model.NewCatalog.
func (c *Config) CatalogSlots() []model.ChannelSlot {
	out := make([]model.ChannelSlot, 0, len(c.Channels))
	for _, s := range c.Channels {
		out = append(out, model.ChannelSlot{
			ID:               s.ID,
			ChannelProductID: s.ChannelProductID,
			ChannelPriceID:   s.ChannelPriceID,
			IAProductID:      s.IAProductID,
			IAPriceID:        s.IAPriceID,
		})
	}
	return out
}
