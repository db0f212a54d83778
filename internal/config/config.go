// Package config loads and validates the exporter configuration from the
// environment.
//
// A missing Stripe key or a malformed numeric option is a startup error. A
// Stripe key with an unexpected format is only fatal in production.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stripe-exporter/internal/pricing"
)

// Environment constants
const (
	EnvProduction  = "production"
	EnvStaging     = "staging"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Defaults
const (
	DefaultRefreshInterval   = 300 * time.Second
	DefaultMetricsPort       = 8080
	DefaultBindAddress       = "0.0.0.0"
	DefaultPageSize          = 100
	DefaultRateLimit         = 20.0
	DefaultMaxNetworkRetries = 2
	DefaultLogLevel          = "info"

	MaxPageSize        = 100
	MinStripeKeyLength = 20
)

// Config holds the validated exporter configuration
type Config struct {
	StripeAPIKey string

	Fees            pricing.FeeModel
	RefreshInterval time.Duration

	MetricsPort int
	BindAddress string

	PageSize          int64
	RateLimit         float64
	MaxNetworkRetries int64

	Environment string
	LogLevel    string

	// Warnings are non-fatal findings the caller should log.
	Warnings []string
}

// ListenAddr returns the host:port the metrics server listens on
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.MetricsPort))
}

// IsProduction reports whether the exporter runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction || c.Environment == "prod"
}

// ValidationError represents a configuration failure
type ValidationError struct {
	Missing  []string
	Invalid  []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing settings: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid settings: %s", strings.Join(e.Invalid, ", ")))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Invalid) > 0
}

// LoadDotEnv loads .env from the working directory, falling back to ../.env.
// A missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("../.env")
	}
}

// Load reads the configuration from the environment. Validation failures are
// returned as a *ValidationError.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: GetEnvironment(),
		LogLevel:    strings.ToLower(getEnvOrDefault("LOG_LEVEL", DefaultLogLevel)),
		BindAddress: getEnvOrDefault("METRICS_BIND_ADDRESS", DefaultBindAddress),
	}
	verr := &ValidationError{}

	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	if cfg.StripeAPIKey == "" {
		cfg.StripeAPIKey = os.Getenv("STRIPE_SECRET_KEY")
	}
	if cfg.StripeAPIKey == "" {
		verr.Missing = append(verr.Missing, "STRIPE_API_KEY")
	} else if err := validateStripeKey(cfg.StripeAPIKey); err != nil {
		if cfg.IsProduction() {
			verr.Invalid = append(verr.Invalid, fmt.Sprintf("STRIPE_API_KEY: %s", err))
		} else {
			verr.Warnings = append(verr.Warnings,
				fmt.Sprintf("STRIPE_API_KEY: %s (allowed outside production)", err))
		}
	}

	cfg.Fees.Percent = parseFloat(verr, "STRIPE_FEE_PERCENT", pricing.DefaultFeePercent)
	cfg.Fees.Flat = parseFloat(verr, "STRIPE_FEE_FLAT", pricing.DefaultFeeFlat)
	if err := cfg.Fees.Validate(); err != nil {
		verr.Invalid = append(verr.Invalid, err.Error())
	}

	cfg.RefreshInterval = parseInterval(verr, "REFRESH_INTERVAL", DefaultRefreshInterval)

	cfg.MetricsPort = parseInt(verr, "METRICS_PORT", DefaultMetricsPort)
	if cfg.MetricsPort < 1 || cfg.MetricsPort > 65535 {
		verr.Invalid = append(verr.Invalid, fmt.Sprintf("METRICS_PORT: %d out of range", cfg.MetricsPort))
	}

	cfg.PageSize = int64(parseInt(verr, "STRIPE_PAGE_SIZE", DefaultPageSize))
	if cfg.PageSize < 1 || cfg.PageSize > MaxPageSize {
		verr.Invalid = append(verr.Invalid,
			fmt.Sprintf("STRIPE_PAGE_SIZE: must be between 1 and %d", MaxPageSize))
	}

	cfg.RateLimit = parseFloat(verr, "STRIPE_RATE_LIMIT", DefaultRateLimit)
	if cfg.RateLimit < 0 {
		verr.Invalid = append(verr.Invalid, "STRIPE_RATE_LIMIT: must be >= 0")
	}

	cfg.MaxNetworkRetries = int64(parseInt(verr, "STRIPE_MAX_NETWORK_RETRIES", DefaultMaxNetworkRetries))
	if cfg.MaxNetworkRetries < 0 {
		verr.Invalid = append(verr.Invalid, "STRIPE_MAX_NETWORK_RETRIES: must be >= 0")
	}

	if verr.HasErrors() {
		return nil, verr
	}
	cfg.Warnings = verr.Warnings
	return cfg, nil
}

// GetEnvironment returns the current environment
func GetEnvironment() string {
	// Check multiple environment variables for compatibility
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	if env == "" {
		env = os.Getenv("ENV")
	}
	if env == "" {
		env = EnvDevelopment
	}
	return strings.ToLower(env)
}

// IsProductionEnvironment returns true if running in production
func IsProductionEnvironment() bool {
	env := GetEnvironment()
	return env == EnvProduction || env == "prod"
}

var placeholderKeyPattern = regexp.MustCompile(`^(sk|rk)_(live|test)_[xX]+$`)

// validateStripeKey checks the Stripe secret or restricted key format.
func validateStripeKey(key string) error {
	if !strings.HasPrefix(key, "sk_") && !strings.HasPrefix(key, "rk_") {
		return errors.New("must start with sk_ or rk_")
	}

	// Reject obvious placeholders
	if placeholderKeyPattern.MatchString(key) {
		return errors.New("appears to be a placeholder value (all x's)")
	}

	if len(key) < MinStripeKeyLength {
		return fmt.Errorf("Stripe key appears truncated (expected %d+ characters)", MinStripeKeyLength)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseFloat(verr *ValidationError, key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		verr.Invalid = append(verr.Invalid, fmt.Sprintf("%s: %q is not a number", key, raw))
		return def
	}
	return v
}

func parseInt(verr *ValidationError, key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		verr.Invalid = append(verr.Invalid, fmt.Sprintf("%s: %q is not an integer", key, raw))
		return def
	}
	return v
}

// parseInterval accepts a Go duration ("5m") or a number of seconds ("300").
func parseInterval(verr *ValidationError, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			verr.Invalid = append(verr.Invalid, fmt.Sprintf("%s: must be positive", key))
			return def
		}
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		verr.Invalid = append(verr.Invalid, fmt.Sprintf("%s: %q is not a positive duration", key, raw))
		return def
	}
	return d
}
