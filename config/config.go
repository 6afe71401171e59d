package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config 服务配置；环境变量覆盖 config.yaml
type Config struct {
	Env        string `mapstructure:"env"`
	ListenAddr string `mapstructure:"listen_addr"`
	BaseURL    string `mapstructure:"base_url"`

	DatabaseDSN    string `mapstructure:"database_dsn"`
	DatabaseDriver string `mapstructure:"database_driver"` // postgres | sqlite
	RedisAddr      string `mapstructure:"redis_addr"`

	PaystackSecretKey     string `mapstructure:"paystack_secret_key"`
	PaystackWebhookSecret string `mapstructure:"paystack_webhook_secret"`
	PaystackBaseURL       string `mapstructure:"paystack_base_url"`

	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	SenderEmail    string `mapstructure:"sender_email"`
	OwnerEmail     string `mapstructure:"owner_email"`

	AdminAPIKey            string `mapstructure:"admin_api_key"`
	AdminPaymentWebhookURL string `mapstructure:"admin_payment_webhook_url"`

	// SmokeTestToken enables the simulated-verification path outside
	// production; empty disables it entirely.
	SmokeTestToken string `mapstructure:"smoke_test_token"`

	SentryDSN    string `mapstructure:"sentry_dsn"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// Load 读取配置：默认值 < config.yaml < 环境变量
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("env", "development")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database_driver", "postgres")
	v.SetDefault("database_dsn", "host=localhost user=postgres dbname=quantum_checkout sslmode=disable")
	v.SetDefault("redis_addr", "")
	v.SetDefault("paystack_base_url", "https://api.paystack.co")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	// Webhook signature verification is mandatory; refuse to start a
	// production process that cannot verify signatures.
	if c.IsProduction() {
		if c.PaystackWebhookSecret == "" {
			return errors.New("paystack_webhook_secret is required in production")
		}
		if c.SmokeTestToken != "" {
			return errors.New("smoke_test_token must not be set in production")
		}
	}
	if c.PaystackWebhookSecret == "" && c.PaystackSecretKey != "" {
		// Paystack signs webhooks with the secret key unless a separate
		// webhook secret is configured.
		c.PaystackWebhookSecret = c.PaystackSecretKey
	}
	return nil
}
