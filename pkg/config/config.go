package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "UPLIFT"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	PaymentPolicyHostedRedirect = "hosted_redirect"
	PaymentPolicyEmbeddedCharge = "embedded_charge"
)

type Config struct {
	App     AppConfig
	Redis   RedisConfig
	Stripe  StripeConfig
	CRM     CRMConfig
	Pricing PricingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Stripe.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"UPLIFT_APP_ENV" required:"true"`
	Port         string `envconfig:"UPLIFT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"UPLIFT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"UPLIFT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type RedisConfig struct {
	URL          string        `envconfig:"UPLIFT_REDIS_URL"`
	Address      string        `envconfig:"UPLIFT_REDIS_ADDR"`
	Password     string        `envconfig:"UPLIFT_REDIS_PASSWORD"`
	DB           int           `envconfig:"UPLIFT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"UPLIFT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"UPLIFT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"UPLIFT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"UPLIFT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"UPLIFT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether a Redis endpoint was supplied at all. The
// service falls back to in-process stores when it was not.
func (r RedisConfig) Configured() bool {
	return r.URL != "" || r.Address != ""
}

type StripeConfig struct {
	SecretKey      string        `envconfig:"UPLIFT_STRIPE_SECRET_KEY" required:"true"`
	PublishableKey string        `envconfig:"UPLIFT_STRIPE_PUBLISHABLE_KEY"`
	WebhookSecret  string        `envconfig:"UPLIFT_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env            string        `envconfig:"UPLIFT_STRIPE_ENV" default:"test"`
	PaymentPolicy  string        `envconfig:"UPLIFT_STRIPE_PAYMENT_POLICY" default:"hosted_redirect"`
	CallTimeout    time.Duration `envconfig:"UPLIFT_STRIPE_CALL_TIMEOUT" default:"15s"`
	TrialDays      int           `envconfig:"UPLIFT_STRIPE_TRIAL_DAYS" default:"30"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

func (s StripeConfig) validate() error {
	switch s.PaymentPolicy {
	case PaymentPolicyHostedRedirect, PaymentPolicyEmbeddedCharge:
		return nil
	default:
		return fmt.Errorf("payment policy must be %q or %q",
			PaymentPolicyHostedRedirect, PaymentPolicyEmbeddedCharge)
	}
}

type CRMConfig struct {
	WebhookURL         string        `envconfig:"UPLIFT_CRM_WEBHOOK_URL"`
	ContractWebhookURL string        `envconfig:"UPLIFT_CRM_CONTRACT_WEBHOOK_URL"`
	Timeout            time.Duration `envconfig:"UPLIFT_CRM_TIMEOUT" default:"5s"`
}

// ContractURL returns the contract webhook URL, falling back to the lead URL.
func (c CRMConfig) ContractURL() string {
	if c.ContractWebhookURL != "" {
		return c.ContractWebhookURL
	}
	return c.WebhookURL
}

type PricingConfig struct {
	TaxRate         string        `envconfig:"UPLIFT_PRICING_TAX_RATE" default:"0.10"`
	MinMonthlyCents int64         `envconfig:"UPLIFT_PRICING_MIN_MONTHLY_CENTS" default:"50000"`
	Currency        string        `envconfig:"UPLIFT_PRICING_CURRENCY" default:"aud"`
	BaseURL         string        `envconfig:"UPLIFT_PRICING_BASE_URL" default:"http://localhost:3000"`
	SessionTTL      time.Duration `envconfig:"UPLIFT_PRICING_SESSION_TTL" default:"24h"`
}

func (p PricingConfig) validate() error {
	if p.MinMonthlyCents < 0 {
		return fmt.Errorf("minimum monthly spend cannot be negative")
	}
	if _, err := url.Parse(p.BaseURL); err != nil {
		return fmt.Errorf("parsing base url: %w", err)
	}
	return nil
}
