package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is read once at startup. Missing required variables abort the process.
type Config struct {
	Port    string `env:"PORT,default=8080"`
	GinMode string `env:"GIN_MODE,default=debug"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogPretty bool   `env:"LOG_PRETTY,default=false"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	// JWTSecret signs and verifies bearer tokens
	JWTSecret string        `env:"JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h"`

	StripeSecretKey     string        `env:"STRIPE_SECRET_KEY,required"`
	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	PaymentTimeout      time.Duration `env:"PAYMENT_TIMEOUT,default=30s"`

	FrontendURL   string `env:"FRONTEND_URL,default=*"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	UploadDir     string `env:"UPLOAD_DIR,default=./uploads"`

	// RedisURL enables the shared rate-limit store; empty keeps counters in memory.
	RedisURL string `env:"REDIS_URL"`

	// KafkaBrokers is a comma-separated list; empty disables event publishing.
	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=order-events"`

	Timezone string `env:"TIMEZONE,default=Europe/Zurich"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location is the zone opening hours are evaluated in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
