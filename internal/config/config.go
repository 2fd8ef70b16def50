// Package config loads all deployment settings from the environment.
// A .env file is honored for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Tables TablesConfig
	Stripe StripeConfig
	Auth   AuthConfig
	Queue  QueueConfig
	SMTP   SMTPConfig
}

type AppConfig struct {
	Name            string
	Env             string
	HTTPAddr        string
	MetricNamespace string
}

type TablesConfig struct {
	Orders          string
	Customers       string
	Admins          string
	Reconciliations string
	Counters        string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type AuthConfig struct {
	JWTSecret     string
	CookieDomain  string
	SecureCookies bool
}

type QueueConfig struct {
	ConfirmationQueueURL string
}

// SMTPConfig carries the outbound-mail settings used by the confirmation
// worker.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:            getEnv("APP_NAME", "ybm-bakes"),
			Env:             getEnv("APP_ENV", "local"),
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			MetricNamespace: getEnv("METRIC_NAMESPACE", "YBMBakes/Orders"),
		},
		Tables: TablesConfig{
			Orders:          getEnv("ORDERS_TABLE", "ybm-orders"),
			Customers:       getEnv("CUSTOMERS_TABLE", "ybm-customers"),
			Admins:          getEnv("ADMINS_TABLE", "ybm-admins"),
			Reconciliations: getEnv("RECONCILIATIONS_TABLE", "ybm-reconciliations"),
			Counters:        getEnv("COUNTERS_TABLE", "ybm-counters"),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Currency:      getEnv("STRIPE_CURRENCY", "aud"),
			SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "https://ybmbakes.com/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:     getEnv("CHECKOUT_CANCEL_URL", "https://ybmbakes.com/checkout/cancelled"),
		},
		Auth: AuthConfig{
			JWTSecret:     os.Getenv("JWT_SECRET"),
			CookieDomain:  getEnv("COOKIE_DOMAIN", ""),
			SecureCookies: getEnv("SECURE_COOKIES", "true") == "true",
		},
		Queue: QueueConfig{
			ConfirmationQueueURL: os.Getenv("CONFIRMATION_QUEUE_URL"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "orders@ybmbakes.com"),
		},
	}

	return cfg, nil
}

// ValidateAPI checks the settings only the API binary needs; the
// confirmation worker runs without Stripe or JWT credentials.
func (c *Config) ValidateAPI() error {
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
