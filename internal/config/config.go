package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	IngredientsRouteQuery = "query"
	IngredientsRoutePath  = "path"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	HTTPPort         string `yaml:"http_port"`
	APIBaseURL       string `yaml:"api_base_url"`
	TableNumber      int    `yaml:"table_number"`
	CustomerEmail    string `yaml:"customer_email"`
	StripeAPIKey     string `yaml:"stripe_api_key"`
	RedisAddr        string `yaml:"redis_addr"`
	IngredientsRoute string `yaml:"catalog_ingredients_route"`
	LogLevel         string `yaml:"log_level"`

	CatalogCacheTTL        time.Duration `yaml:"catalog_cache_ttl"`
	RequestTimeout         time.Duration `yaml:"request_timeout"`
	CheckoutIntentTimeout  time.Duration `yaml:"checkout_intent_timeout"`
	CheckoutConfirmTimeout time.Duration `yaml:"checkout_confirm_timeout"`
	ShutdownTimeout        time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBodySize     int64         `yaml:"max_request_body_size"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:               "8080",
		APIBaseURL:             "http://localhost:5000",
		TableNumber:            1,
		IngredientsRoute:       IngredientsRouteQuery,
		LogLevel:               "info",
		CatalogCacheTTL:        5 * time.Minute,
		RequestTimeout:         30 * time.Second,
		CheckoutIntentTimeout:  15 * time.Second,
		CheckoutConfirmTimeout: 60 * time.Second,
		ShutdownTimeout:        10 * time.Second,
		MaxRequestBodySize:     1 << 20, // 1MB
	}
}

// Load builds the kiosk configuration: defaults, then the YAML file named by CONFIG_FILE, then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.APIBaseURL = getEnv("API_BASE_URL", c.APIBaseURL)
	c.CustomerEmail = getEnv("CUSTOMER_EMAIL", c.CustomerEmail)
	c.StripeAPIKey = getEnv("STRIPE_API_KEY", c.StripeAPIKey)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.IngredientsRoute = getEnv("CATALOG_INGREDIENTS_ROUTE", c.IngredientsRoute)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	var err error
	if c.TableNumber, err = getEnvInt("TABLE_NUMBER", c.TableNumber); err != nil {
		return err
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CATALOG_CACHE_TTL", &c.CatalogCacheTTL},
		{"REQUEST_TIMEOUT", &c.RequestTimeout},
		{"CHECKOUT_INTENT_TIMEOUT", &c.CheckoutIntentTimeout},
		{"CHECKOUT_CONFIRM_TIMEOUT", &c.CheckoutConfirmTimeout},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvDuration(d.key, *d.dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.TableNumber < 1 {
		return fmt.Errorf("%w: TABLE_NUMBER must be positive, got %d", ErrInvalidConfig, c.TableNumber)
	}
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("%w: API_BASE_URL is required", ErrInvalidConfig)
	}
	switch c.IngredientsRoute {
	case IngredientsRouteQuery, IngredientsRoutePath:
	default:
		return fmt.Errorf("%w: CATALOG_INGREDIENTS_ROUTE must be %q or %q", ErrInvalidConfig, IngredientsRouteQuery, IngredientsRoutePath)
	}
	if c.CatalogCacheTTL <= 0 {
		return fmt.Errorf("%w: CATALOG_CACHE_TTL must be positive", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 || c.CheckoutIntentTimeout <= 0 || c.CheckoutConfirmTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}
