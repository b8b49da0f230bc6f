package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/observatory-global/narrative-flow/internal/errors"
)

// Config is the full configuration surface of the pipeline. Values come
// from an optional YAML file with environment-variable overrides on top.
type Config struct {
	// HTTP server
	Port string `yaml:"port"`

	// Upstream snapshot feed
	FeedBaseURL            string  `yaml:"feed_base_url"`
	CacheDir               string  `yaml:"cache_dir"`
	RetryAttempts          int     `yaml:"retry_attempts"`
	RetryBaseDelaySeconds  float64 `yaml:"retry_base_delay_seconds"`
	ProcessingDelayMinutes int     `yaml:"processing_delay_minutes"`
	CacheMaxAgeHours       int     `yaml:"cache_max_age_hours"`

	// Parser
	ErrorRateAlertPct float64 `yaml:"error_rate_alert_pct"`

	// Signal converter
	FallbackCountry string `yaml:"fallback_country"`

	// Flow detection
	HalflifeHours   float64 `yaml:"halflife_hours"`
	FlowThreshold   float64 `yaml:"flow_threshold"`
	TimeWindowHours float64 `yaml:"time_window_hours"`

	// Response cache
	ResponseCacheTTLSeconds int `yaml:"response_cache_ttl_seconds"`

	// Signal archive (empty path disables persistence)
	DatabasePath string `yaml:"database_path"`
}

// Default returns the built-in defaults, matching the upstream feed's
// 15-minute publish cadence and the calibrated flow detection constants.
func Default() Config {
	return Config{
		Port:                    "8080",
		FeedBaseURL:             "http://data.gdeltproject.org/gdeltv2",
		CacheDir:                "/tmp/gkg-cache",
		RetryAttempts:           3,
		RetryBaseDelaySeconds:   5,
		ProcessingDelayMinutes:  15,
		CacheMaxAgeHours:        1,
		ErrorRateAlertPct:       10,
		FallbackCountry:         "US",
		HalflifeHours:           6,
		FlowThreshold:           0.5,
		TimeWindowHours:         24,
		ResponseCacheTTLSeconds: 300,
		DatabasePath:            "",
	}
}

// Load reads configuration from the YAML file at path (skipped when path is
// empty or the file does not exist), then applies environment overrides,
// then validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, apperrors.NewConfigurationError("invalid config file "+path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, apperrors.NewConfigurationError("cannot read config file "+path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvOrDefault("PORT", c.Port)
	c.FeedBaseURL = getEnvOrDefault("FEED_BASE_URL", c.FeedBaseURL)
	c.CacheDir = getEnvOrDefault("CACHE_DIR", c.CacheDir)
	c.FallbackCountry = getEnvOrDefault("FALLBACK_COUNTRY", c.FallbackCountry)
	c.DatabasePath = getEnvOrDefault("DATABASE_PATH", c.DatabasePath)

	c.RetryAttempts = getEnvInt("RETRY_ATTEMPTS", c.RetryAttempts)
	c.ProcessingDelayMinutes = getEnvInt("PROCESSING_DELAY_MINUTES", c.ProcessingDelayMinutes)
	c.CacheMaxAgeHours = getEnvInt("CACHE_MAX_AGE_HOURS", c.CacheMaxAgeHours)
	c.ResponseCacheTTLSeconds = getEnvInt("RESPONSE_CACHE_TTL_SECONDS", c.ResponseCacheTTLSeconds)

	c.RetryBaseDelaySeconds = getEnvFloat("RETRY_BASE_DELAY_SECONDS", c.RetryBaseDelaySeconds)
	c.ErrorRateAlertPct = getEnvFloat("ERROR_RATE_ALERT_PCT", c.ErrorRateAlertPct)
	c.HalflifeHours = getEnvFloat("HEAT_HALFLIFE_HOURS", c.HalflifeHours)
	c.FlowThreshold = getEnvFloat("FLOW_THRESHOLD", c.FlowThreshold)
	c.TimeWindowHours = getEnvFloat("TIME_WINDOW_HOURS", c.TimeWindowHours)
}

func (c *Config) validate() error {
	if c.RetryAttempts < 1 {
		return apperrors.NewConfigurationError("retry_attempts must be at least 1", nil)
	}
	if c.HalflifeHours <= 0 {
		return apperrors.NewConfigurationError("halflife_hours must be positive", nil)
	}
	if c.FlowThreshold < 0 || c.FlowThreshold > 1 {
		return apperrors.NewConfigurationError("flow_threshold must be within [0,1]", nil)
	}
	if c.TimeWindowHours <= 0 {
		return apperrors.NewConfigurationError("time_window_hours must be positive", nil)
	}
	if len(c.FallbackCountry) != 2 {
		return apperrors.NewConfigurationError("fallback_country must be an ISO alpha-2 code", nil)
	}
	return nil
}

// RetryBaseDelay returns the backoff base delay as a duration.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelaySeconds * float64(time.Second))
}

// ResponseCacheTTL returns the response cache TTL as a duration.
func (c Config) ResponseCacheTTL() time.Duration {
	return time.Duration(c.ResponseCacheTTLSeconds) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
