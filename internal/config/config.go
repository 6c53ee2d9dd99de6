// Package config provides configuration loading and validation for the API server.
// It uses koanf to layer struct defaults, an optional YAML file and environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: FEED_FEED__MAX_LIMIT sets feed.max_limit.
const EnvPrefix = "FEED_"

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Storage. Both are optional; without them the server runs on
	// in-memory stores and an in-process rate limiter.
	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"`

	// JWT Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"` // accepted during key rotation

	// Data files
	GeoDatasetPath         string `koanf:"geo_dataset_path"`
	RankingCalibrationPath string `koanf:"ranking_calibration_path"`

	// Comma-separated list of allowed CORS origins
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	Feed      FeedConfig      `koanf:"feed"`
	Risk      RiskConfig      `koanf:"risk"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Tracing   TracingConfig   `koanf:"tracing"`
}

// FeedConfig tunes pagination and the candidate pool.
type FeedConfig struct {
	DefaultLimit  int     `koanf:"default_limit"`
	MaxLimit      int     `koanf:"max_limit"`
	MaxCandidates int     `koanf:"max_candidates"`
	FetchLimit    int     `koanf:"fetch_limit"`
	BoostedRatio  float64 `koanf:"boosted_ratio"`
	BBoxPrefilter bool    `koanf:"bbox_prefilter"`
}

// RiskConfig controls the risk backfill job.
type RiskConfig struct {
	BackfillEnabled  bool          `koanf:"backfill_enabled"`
	BackfillInterval time.Duration `koanf:"backfill_interval"`
	BackfillTimeout  time.Duration `koanf:"backfill_timeout"`
	LongStayDays     int           `koanf:"long_stay_days"`
}

// RateLimitConfig sets per-minute request budgets.
type RateLimitConfig struct {
	RequestsPerMinute  int `koanf:"requests_per_minute"`
	DecisionsPerMinute int `koanf:"decisions_per_minute"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `koanf:"enabled"`
	ExporterType string  `koanf:"exporter_type"`
	Endpoint     string  `koanf:"endpoint"`
	SamplingRate float64 `koanf:"sampling_rate"`
	Insecure     bool    `koanf:"insecure"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret         = errors.New("JWT_SECRET is required")
	ErrMissingDatabaseURL       = errors.New("DATABASE_URL is required in production")
	ErrInvalidPort              = errors.New("PORT must be between 1 and 65535")
	ErrInvalidFeedLimits        = errors.New("feed limits must satisfy 0 < default_limit <= max_limit")
	ErrInvalidMaxCandidates     = errors.New("feed.max_candidates must be positive and not exceed feed.fetch_limit")
	ErrInvalidBoostedRatio      = errors.New("feed.boosted_ratio must be in (0, 1]")
	ErrInvalidBackfillInterval  = errors.New("risk.backfill_interval and risk.backfill_timeout must be positive")
	ErrInvalidLongStayDays      = errors.New("risk.long_stay_days must be positive")
	ErrInvalidRateLimit         = errors.New("rate limits must be positive")
	ErrInvalidTracingSampleRate = errors.New("tracing.sampling_rate must be between 0 and 1")
	ErrInvalidTracingExporter   = errors.New("tracing.exporter_type must be otlp-http or otlp-grpc")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultGeoDatasetPath      = "data/us_zip_centroids.csv"
	DefaultCalibrationPath     = "configs/ranking.calibration.json"
	DefaultFeedLimit           = 20
	DefaultFeedMaxLimit        = 50
	DefaultMaxCandidates       = 500
	DefaultFetchLimit          = 2000
	DefaultBoostedRatio        = 0.6
	DefaultBackfillInterval    = time.Hour
	DefaultBackfillTimeout     = 5 * time.Minute
	DefaultLongStayDays        = 21
	DefaultRequestsPerMinute   = 100
	DefaultDecisionsPerMinute  = 30
	DefaultTracingExporter     = "otlp-http"
	DefaultTracingSamplingRate = 0.1
)

// legacyEnv maps unprefixed variables kept for deployment compatibility to
// their keys. FEED_-prefixed variables take precedence over them.
var legacyEnv = map[string]string{
	"PORT":         "port",
	"DATABASE_URL": "database_url",
	"REDIS_URL":    "redis_url",
	"JWT_SECRET":   "jwt_secret",
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Port:                   DefaultPort,
		Env:                    DefaultEnv,
		GeoDatasetPath:         DefaultGeoDatasetPath,
		RankingCalibrationPath: DefaultCalibrationPath,
		Feed: FeedConfig{
			DefaultLimit:  DefaultFeedLimit,
			MaxLimit:      DefaultFeedMaxLimit,
			MaxCandidates: DefaultMaxCandidates,
			FetchLimit:    DefaultFetchLimit,
			BoostedRatio:  DefaultBoostedRatio,
			BBoxPrefilter: true,
		},
		Risk: RiskConfig{
			BackfillEnabled:  true,
			BackfillInterval: DefaultBackfillInterval,
			BackfillTimeout:  DefaultBackfillTimeout,
			LongStayDays:     DefaultLongStayDays,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute:  DefaultRequestsPerMinute,
			DecisionsPerMinute: DefaultDecisionsPerMinute,
		},
		Tracing: TracingConfig{
			ExporterType: DefaultTracingExporter,
			SamplingRate: DefaultTracingSamplingRate,
		},
	}
}

// Load reads configuration with this precedence, lowest first: defaults, the
// YAML file at configFilePath (if non-empty), legacy unprefixed environment
// variables, FEED_-prefixed environment variables.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If the file or an environment value cannot be loaded, config is nil.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, []error{fmt.Errorf("failed to load defaults: %w", err)}
	}

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	for envKey, key := range legacyEnv {
		if val := os.Getenv(envKey); val != "" {
			if err := k.Set(key, val); err != nil {
				return nil, []error{fmt.Errorf("failed to apply %s: %w", envKey, err)}
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKeyToPath), nil); err != nil {
		return nil, []error{fmt.Errorf("failed to load environment: %w", err)}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, []error{fmt.Errorf("failed to decode config: %w", err)}
	}

	return &cfg, cfg.Validate()
}

// envKeyToPath maps FEED_RATE_LIMIT__DECISIONS_PER_MINUTE to
// rate_limit.decisions_per_minute.
func envKeyToPath(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AllowedOrigins splits CORSAllowedOrigins on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks required values and ranges.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.IsProduction() && c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}

	f := c.Feed
	if f.DefaultLimit <= 0 || f.MaxLimit < f.DefaultLimit {
		errs = append(errs, ErrInvalidFeedLimits)
	}
	if f.MaxCandidates <= 0 || f.MaxCandidates > f.FetchLimit {
		errs = append(errs, ErrInvalidMaxCandidates)
	}
	if f.BoostedRatio <= 0 || f.BoostedRatio > 1 {
		errs = append(errs, ErrInvalidBoostedRatio)
	}

	if c.Risk.BackfillInterval <= 0 || c.Risk.BackfillTimeout <= 0 {
		errs = append(errs, ErrInvalidBackfillInterval)
	}
	if c.Risk.LongStayDays <= 0 {
		errs = append(errs, ErrInvalidLongStayDays)
	}

	if c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.DecisionsPerMinute <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}

	if c.Tracing.Enabled {
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			errs = append(errs, ErrInvalidTracingSampleRate)
		}
		switch c.Tracing.ExporterType {
		case "otlp-http", "otlp-grpc":
		default:
			errs = append(errs, ErrInvalidTracingExporter)
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                            fmt.Sprintf("%d", c.Port),
		"env":                             c.Env,
		"database_url":                    maskDatabaseURL(c.DatabaseURL),
		"redis_url":                       maskDatabaseURL(c.RedisURL),
		"jwt_secret":                      maskSecret(c.JWTSecret),
		"jwt_previous_secret":             maskSecret(c.JWTPreviousSecret),
		"geo_dataset_path":                c.GeoDatasetPath,
		"ranking_calibration_path":        c.RankingCalibrationPath,
		"cors_allowed_origins":            c.CORSAllowedOrigins,
		"feed.default_limit":              fmt.Sprintf("%d", c.Feed.DefaultLimit),
		"feed.max_limit":                  fmt.Sprintf("%d", c.Feed.MaxLimit),
		"feed.max_candidates":             fmt.Sprintf("%d", c.Feed.MaxCandidates),
		"feed.fetch_limit":                fmt.Sprintf("%d", c.Feed.FetchLimit),
		"feed.boosted_ratio":              fmt.Sprintf("%.2f", c.Feed.BoostedRatio),
		"feed.bbox_prefilter":             fmt.Sprintf("%t", c.Feed.BBoxPrefilter),
		"risk.backfill_enabled":           fmt.Sprintf("%t", c.Risk.BackfillEnabled),
		"risk.backfill_interval":          c.Risk.BackfillInterval.String(),
		"risk.long_stay_days":             fmt.Sprintf("%d", c.Risk.LongStayDays),
		"rate_limit.requests_per_minute":  fmt.Sprintf("%d", c.RateLimit.RequestsPerMinute),
		"rate_limit.decisions_per_minute": fmt.Sprintf("%d", c.RateLimit.DecisionsPerMinute),
		"tracing.enabled":                 fmt.Sprintf("%t", c.Tracing.Enabled),
		"tracing.endpoint":                c.Tracing.Endpoint,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Works for postgres://, postgresql:// and redis:// URLs.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.LastIndex(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
