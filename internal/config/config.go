package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"resume-pricing-api/internal/pricing"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Upstream  UpstreamConfig  `json:"upstream" yaml:"upstream"`
	Refresh   RefreshConfig   `json:"refresh" yaml:"refresh"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Security  SecurityConfig  `json:"security" yaml:"security"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing"`
	Features  map[string]bool `json:"features" yaml:"features"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string `json:"port" yaml:"port"`
	Host string `json:"host" yaml:"host"`
}

// UpstreamConfig points at the pricing service.
type UpstreamConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Path    string `json:"path" yaml:"path"`
	Timeout int    `json:"timeout" yaml:"timeout"` // in seconds
}

// RefreshConfig controls the refresh controller.
type RefreshConfig struct {
	Interval        int    `json:"interval" yaml:"interval"` // in seconds, 0 disables polling
	DefaultCurrency string `json:"default_currency" yaml:"default_currency"`
}

// CacheConfig holds response cache configuration. An empty RedisAddr
// selects the in-process cache.
type CacheConfig struct {
	TTL           int    `json:"ttl" yaml:"ttl"` // in seconds, 0 disables caching
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
	Prefix        string `json:"prefix" yaml:"prefix"`
}

// DatabaseConfig holds the snapshot history database configuration.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes (default: 64KB)
	MaxRequestBodySize int64 `json:"max_request_body_size" yaml:"max_request_body_size"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins" yaml:"allowed_origins"`
}

// RateLimitConfig holds rate limiting configuration for manual refreshes.
type RateLimitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Rate    int  `json:"rate" yaml:"rate"`
	Window  int  `json:"window" yaml:"window"` // in seconds
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	ServiceName string  `json:"service_name" yaml:"service_name"`
	Environment string  `json:"environment" yaml:"environment"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio"` // 0 samples everything
}

// LoadConfig loads configuration from a .env file, environment variables
// and/or config file. Environment variables take precedence over config
// file values. The file format follows its extension: .yaml/.yml or JSON.
func LoadConfig(configFile string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", ""),
		},
		Upstream: UpstreamConfig{
			BaseURL: getEnv("PRICING_API_BASE", "http://localhost:8000"),
			Path:    getEnv("PRICING_API_PATH", "/api/pricing/"),
			Timeout: getEnvInt("PRICING_API_TIMEOUT", 10),
		},
		Refresh: RefreshConfig{
			Interval:        getEnvInt("REFRESH_INTERVAL", 60),
			DefaultCurrency: getEnv("DEFAULT_CURRENCY", string(pricing.DefaultCurrency)),
		},
		Cache: CacheConfig{
			TTL:           getEnvInt("CACHE_TTL", 30),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			Prefix:        getEnv("CACHE_PREFIX", "resume-pricing:"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./pricing_history.db"),
		},
		Security: SecurityConfig{
			MaxRequestBodySize: getEnvInt64("MAX_REQUEST_BODY_SIZE", 64<<10),
			AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			Rate:    getEnvInt("RATE_LIMIT_RATE", 10),
			Window:  getEnvInt("RATE_LIMIT_WINDOW", 60),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("TRACING_ENDPOINT", "http://localhost:14268/api/traces"),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "resume-pricing-api"),
			Environment: getEnv("ENVIRONMENT", "development"),
			SampleRatio: getEnvFloat("TRACING_SAMPLE_RATIO", 0),
		},
		Features: map[string]bool{},
	}

	// Load from config file if provided
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables (they take precedence)
	overrideFromEnv(cfg)

	return cfg, nil
}

// loadFromFile loads configuration from a JSON or YAML file.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// overrideFromEnv overrides configuration with environment variables.
func overrideFromEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Host, "SERVER_HOST")
	setString(&cfg.Upstream.BaseURL, "PRICING_API_BASE")
	setString(&cfg.Upstream.Path, "PRICING_API_PATH")
	setInt(&cfg.Upstream.Timeout, "PRICING_API_TIMEOUT")
	setInt(&cfg.Refresh.Interval, "REFRESH_INTERVAL")
	setString(&cfg.Refresh.DefaultCurrency, "DEFAULT_CURRENCY")
	setInt(&cfg.Cache.TTL, "CACHE_TTL")
	setString(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.Cache.RedisDB, "REDIS_DB")
	setString(&cfg.Cache.Prefix, "CACHE_PREFIX")
	setString(&cfg.Database.Path, "DATABASE_PATH")
	if maxBodySize := os.Getenv("MAX_REQUEST_BODY_SIZE"); maxBodySize != "" {
		if size, err := strconv.ParseInt(maxBodySize, 10, 64); err == nil {
			cfg.Security.MaxRequestBodySize = size
		}
	}
	setString(&cfg.Security.AllowedOrigins, "ALLOWED_ORIGINS")
	setBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.Rate, "RATE_LIMIT_RATE")
	setInt(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW")
	setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED")
	setString(&cfg.Tracing.Endpoint, "TRACING_ENDPOINT")
	setString(&cfg.Tracing.ServiceName, "TRACING_SERVICE_NAME")
	setString(&cfg.Tracing.Environment, "ENVIRONMENT")
	setFloat(&cfg.Tracing.SampleRatio, "TRACING_SAMPLE_RATIO")

	// FEATURE_<NAME>=true|false toggles a feature flag.
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "FEATURE_") || value == "" {
			continue
		}
		if cfg.Features == nil {
			cfg.Features = map[string]bool{}
		}
		name := strings.ToLower(strings.TrimPrefix(key, "FEATURE_"))
		cfg.Features[name] = parseBool(value)
	}
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			*dst = i
		}
	}
}

func setFloat(dst *float64, key string) {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = parseBool(value)
	}
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true" || value == "1"
}

// getEnv gets an environment variable or returns the default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return parseBool(value)
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable or returns the default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvInt64 gets an int64 environment variable or returns the default value.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base url is required")
	}
	if c.Upstream.Timeout < 0 {
		return fmt.Errorf("upstream timeout must not be negative")
	}
	if c.Refresh.Interval < 0 {
		return fmt.Errorf("refresh interval must not be negative")
	}
	if _, ok := pricing.NormalizeCurrency(c.Refresh.DefaultCurrency); !ok {
		return fmt.Errorf("unsupported default currency %q", c.Refresh.DefaultCurrency)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be between 0 and 1")
	}
	return nil
}
