package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds process configuration. Values come from an optional YAML
// file and are then overridden by environment variables.
type Config struct {
	Port      string `yaml:"port"`
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	DatabaseURL string `yaml:"databaseURL"`
	RedisURL    string `yaml:"redisURL"`

	SessionSecret string `yaml:"sessionSecret"`
	SessionDomain string `yaml:"sessionDomain"`

	OTPExpiryMinutes int           `yaml:"otpExpiryMinutes"`
	FrontendURL      string        `yaml:"frontendURL"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"`

	Stripe  StripeConfig  `yaml:"stripe"`
	Mail    MailConfig    `yaml:"mail"`
	AWS     AWSConfig     `yaml:"aws"`
	Storage StorageConfig `yaml:"storage"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secretKey"`
	PlanID        string `yaml:"planID"`
	WebhookSecret string `yaml:"webhookSecret"`
}

// MailConfig selects the verification mail transport: ses, postmark or log.
type MailConfig struct {
	Transport     string `yaml:"transport"`
	SESSender     string `yaml:"sesSender"`
	PostmarkToken string `yaml:"postmarkToken"`
	PostmarkFrom  string `yaml:"postmarkFrom"`
}

type AWSConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

type StorageConfig struct {
	Bucket   string `yaml:"bucket"`
	Endpoint string `yaml:"endpoint"`
}

func defaults() Config {
	return Config{
		Port:             "3000",
		Env:              "dev",
		LogLevel:         "info",
		DatabaseURL:      "stremify.db",
		RedisURL:         "redis://localhost:6379/0",
		OTPExpiryMinutes: 10,
		FrontendURL:      "http://localhost:5173",
		RequestTimeout:   15 * time.Second,
		Mail:             MailConfig{Transport: "log"},
	}
}

// Load reads path (if non-empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if cfg.Production() {
			cfg.LogFormat = "json"
		}
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"PORT":                  &cfg.Port,
		"APP_ENV":               &cfg.Env,
		"LOG_LEVEL":             &cfg.LogLevel,
		"LOG_FORMAT":            &cfg.LogFormat,
		"DATABASE_URL":          &cfg.DatabaseURL,
		"REDIS_URL":             &cfg.RedisURL,
		"SESSION_SECRET":        &cfg.SessionSecret,
		"SESSION_DOMAIN":        &cfg.SessionDomain,
		"FRONTEND_URL":          &cfg.FrontendURL,
		"STRIPE_SECRET_KEY":     &cfg.Stripe.SecretKey,
		"STRIPE_PLAN_ID":        &cfg.Stripe.PlanID,
		"STRIPE_WEBHOOK_SECRET": &cfg.Stripe.WebhookSecret,
		"MAIL_TRANSPORT":        &cfg.Mail.Transport,
		"AWS_SES_SENDER_EMAIL":  &cfg.Mail.SESSender,
		"POSTMARK_TOKEN":        &cfg.Mail.PostmarkToken,
		"POSTMARK_FROM":         &cfg.Mail.PostmarkFrom,
		"AWS_REGION":            &cfg.AWS.Region,
		"AWS_ACCESS_KEY":        &cfg.AWS.AccessKey,
		"AWS_SECRET_ACCESS_KEY": &cfg.AWS.SecretKey,
		"S3_BUCKET":             &cfg.Storage.Bucket,
		"S3_ENDPOINT":           &cfg.Storage.Endpoint,
	}
	for name, dst := range str {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("OTP_EXPIRY_TIME_IN_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: OTP_EXPIRY_TIME_IN_MINUTES: %w", err)
		}
		cfg.OTPExpiryMinutes = n
	}
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	return nil
}

func validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: port is required")
	}
	if cfg.OTPExpiryMinutes <= 0 {
		return errors.New("config: OTP expiry must be positive")
	}
	if cfg.Production() && cfg.SessionSecret == "" {
		return errors.New("config: SESSION_SECRET is required in production")
	}

	switch cfg.Mail.Transport {
	case "log":
	case "ses":
		if cfg.AWS.Region == "" || cfg.AWS.AccessKey == "" || cfg.AWS.SecretKey == "" {
			return errors.New("config: ses transport requires AWS_REGION, AWS_ACCESS_KEY and AWS_SECRET_ACCESS_KEY")
		}
		if cfg.Mail.SESSender == "" {
			return errors.New("config: ses transport requires AWS_SES_SENDER_EMAIL")
		}
	case "postmark":
		if cfg.Mail.PostmarkToken == "" || cfg.Mail.PostmarkFrom == "" {
			return errors.New("config: postmark transport requires POSTMARK_TOKEN and POSTMARK_FROM")
		}
	default:
		return fmt.Errorf("config: unknown mail transport %q", cfg.Mail.Transport)
	}

	s := cfg.Stripe
	set := 0
	for _, v := range []string{s.SecretKey, s.PlanID, s.WebhookSecret} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return errors.New("config: STRIPE_SECRET_KEY, STRIPE_PLAN_ID and STRIPE_WEBHOOK_SECRET must be set together")
	}
	return nil
}

func (c Config) Production() bool {
	return c.Env == "production"
}

func (c Config) BillingEnabled() bool {
	return c.Stripe.SecretKey != ""
}

func (c Config) OTPExpiry() time.Duration {
	return time.Duration(c.OTPExpiryMinutes) * time.Minute
}

func (c Config) Addr() string {
	return ":" + c.Port
}
