package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv          string        `env:"APP_ENV" envDefault:"development"`
	AppPort         string        `env:"APP_PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// InternalServiceKey lifts trusted callers into the internal rate tier.
	InternalServiceKey string `env:"INTERNAL_SERVICE_KEY"`

	DBHost     string `env:"DB_HOST"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// MarkerBackend selects where confirmation markers live: redis, postgres or memory.
	MarkerBackend string        `env:"MARKER_BACKEND" envDefault:"redis"`
	MarkerTTL     time.Duration `env:"MARKER_TTL" envDefault:"24h"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"payment.confirmed"`

	BackendConfirmURL string        `env:"BACKEND_CONFIRM_URL"`
	BackendTimeout    time.Duration `env:"BACKEND_TIMEOUT" envDefault:"15s"`

	SuccessViewURL   string        `env:"SUCCESS_VIEW_URL" envDefault:"/payment/success"`
	FailureViewURL   string        `env:"FAILURE_VIEW_URL" envDefault:"/payment/failure"`
	CheckoutViewURL  string        `env:"CHECKOUT_VIEW_URL" envDefault:"/payment/checkout"`
	ProcessingBudget time.Duration `env:"PROCESSING_BUDGET" envDefault:"5s"`

	ReservedSigningKey string        `env:"RESERVED_SIGNING_KEY"`
	ReservedTTL        time.Duration `env:"RESERVED_TTL" envDefault:"1h"`

	TransferBank    string `env:"TRANSFER_BANK"`
	TransferAccount string `env:"TRANSFER_ACCOUNT"`
	TransferHolder  string `env:"TRANSFER_HOLDER"`

	Gateway GatewayConfig `envPrefix:"GATEWAY_"`
}

// GatewayConfig holds the hosted checkout settings. Empty credentials are
// allowed here; checkout reports them as a configuration precondition.
type GatewayConfig struct {
	ClientID        string        `env:"CLIENT_ID"`
	SecretKey       string        `env:"SECRET_KEY"`
	BaseURL         string        `env:"BASE_URL" envDefault:"https://api.nicepay.co.kr"`
	SDKURL          string        `env:"SDK_URL" envDefault:"https://pay.nicepay.co.kr/v1/js/manifest.json"`
	CallbackToken   string        `env:"CALLBACK_TOKEN"`
	ReturnURL       string        `env:"RETURN_URL" envDefault:"http://localhost:8080/payments/return"`
	Origin          string        `env:"ORIGIN" envDefault:"http://localhost:3000"`
	GoodsName       string        `env:"GOODS_NAME" envDefault:"Service request"`
	CheckoutTimeout time.Duration `env:"CHECKOUT_TIMEOUT" envDefault:"30s"`
	PollInterval    time.Duration `env:"SDK_POLL_INTERVAL" envDefault:"200ms"`
	PollAttempts    int           `env:"SDK_POLL_ATTEMPTS" envDefault:"30"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
}

func (g GatewayConfig) HasCredentials() bool {
	return g.ClientID != "" && g.SecretKey != ""
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads the same environment as Load but only checks the
// database settings. Tools that never serve traffic use it.
func LoadDatabase() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.validateDB(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validateDB() error {
	if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
		return errors.New("DB_HOST, DB_USER and DB_NAME are required")
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.validateDB(); err != nil {
		return err
	}
	if c.BackendConfirmURL == "" {
		return errors.New("BACKEND_CONFIRM_URL is required")
	}
	if c.ReservedSigningKey == "" {
		return errors.New("RESERVED_SIGNING_KEY is required")
	}
	switch c.MarkerBackend {
	case "redis", "postgres", "memory":
	default:
		return fmt.Errorf("invalid MARKER_BACKEND: %s (must be redis, postgres or memory)", c.MarkerBackend)
	}
	if c.MarkerTTL <= 0 {
		return errors.New("MARKER_TTL must be positive")
	}
	if c.Gateway.CheckoutTimeout <= 0 || c.Gateway.PollInterval <= 0 || c.Gateway.PollAttempts <= 0 {
		return errors.New("gateway checkout timeout and SDK polling bounds must be positive")
	}
	if c.ProcessingBudget <= 0 {
		return errors.New("PROCESSING_BUDGET must be positive")
	}
	return nil
}

// DSN builds the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}
