package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// ErrInvalid wraps every validation failure reported by Load.
var ErrInvalid = errors.New("invalid configuration")

// Country reference sources.
const (
	CountrySourceMemory   = "memory"
	CountrySourcePostgres = "postgres"
	CountrySourceNone     = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	PipelineEnabled    bool
	BatchSize          int
	BatchFlushInterval time.Duration

	// Google geocoding configuration. Either an API key or a client id
	// with signing secret authenticates requests.
	GoogleAPIKey        string
	GoogleEnabled       bool
	GoogleBaseURL       string
	GoogleTimeout       time.Duration
	GoogleClientID      string
	GoogleSigningSecret string

	// Shared geocoding behavior.
	GeocodeRetryDelay  time.Duration
	GeocodeMaxAttempts int
	GeocodeCacheSize   int
	GeocodeRateLimit   float64 // requests per second; 0 disables throttling

	// Mapbox fallback geocoding configuration.
	MapboxToken   string
	MapboxEnabled bool
	MapboxTimeout time.Duration

	CountrySource string
	DatabaseURL   string
}

// LoadDotenv loads variables from the given .env files (".env" when none
// are given) without overriding variables already set. Missing files are
// not an error.
func LoadDotenv(files ...string) error {
	err := godotenv.Load(files...)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load .env: %w", err)
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	googleTimeout, err := parsePositiveDuration("GOOGLE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	retryDelay, err := time.ParseDuration(sharedcfg.EnvOrDefault("GEOCODE_RETRY_DELAY", "2s"))
	if err != nil || retryDelay < 0 {
		return nil, fmt.Errorf("%w: GEOCODE_RETRY_DELAY must be a non-negative duration", ErrInvalid)
	}

	maxAttempts, err := parsePositiveInt("GEOCODE_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("GEOCODE_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("GEOCODE_RATE_LIMIT", "10"), 64)
	if err != nil || rateLimit < 0 {
		return nil, fmt.Errorf("%w: GEOCODE_RATE_LIMIT must be a non-negative number", ErrInvalid)
	}

	pipelineEnabled, err := parseBool("PIPELINE_ENABLED", true)
	if err != nil {
		return nil, err
	}

	googleKey := os.Getenv("GOOGLE_API_KEY")
	googleClientID := os.Getenv("GOOGLE_CLIENT_ID")
	googleEnabled, err := parseBool("GOOGLE_ENABLED", googleKey != "" || googleClientID != "")
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled, err := parseBool("MAPBOX_ENABLED", mapboxToken != "")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-addresses"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "geocoded-markers"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "address-geocoder"),
		PipelineEnabled:    pipelineEnabled,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		GoogleAPIKey:        googleKey,
		GoogleEnabled:       googleEnabled,
		GoogleBaseURL:       sharedcfg.EnvOrDefault("GOOGLE_BASE_URL", "https://maps.googleapis.com/maps/api"),
		GoogleTimeout:       googleTimeout,
		GoogleClientID:      googleClientID,
		GoogleSigningSecret: os.Getenv("GOOGLE_SIGNING_SECRET"),

		GeocodeRetryDelay:  retryDelay,
		GeocodeMaxAttempts: maxAttempts,
		GeocodeCacheSize:   cacheSize,
		GeocodeRateLimit:   rateLimit,

		MapboxToken:   mapboxToken,
		MapboxEnabled: mapboxEnabled,
		MapboxTimeout: mapboxTimeout,

		CountrySource: sharedcfg.EnvOrDefault("COUNTRY_SOURCE", CountrySourceMemory),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PipelineEnabled {
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("%w: KAFKA_BROKERS is required", ErrInvalid)
		}
		if c.KafkaSourceTopic == "" {
			return fmt.Errorf("%w: KAFKA_SOURCE_TOPIC is required", ErrInvalid)
		}
		if c.KafkaSinkTopic == "" {
			return fmt.Errorf("%w: KAFKA_SINK_TOPIC is required", ErrInvalid)
		}
	}
	if c.GoogleEnabled && c.GoogleAPIKey == "" && c.GoogleClientID == "" {
		return fmt.Errorf("%w: GOOGLE_ENABLED is true but GOOGLE_API_KEY is not set", ErrInvalid)
	}
	if c.GoogleClientID != "" && c.GoogleSigningSecret == "" {
		return fmt.Errorf("%w: GOOGLE_CLIENT_ID requires GOOGLE_SIGNING_SECRET", ErrInvalid)
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return fmt.Errorf("%w: MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set", ErrInvalid)
	}
	switch c.CountrySource {
	case CountrySourceMemory, CountrySourceNone:
	case CountrySourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: COUNTRY_SOURCE=postgres requires DATABASE_URL", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: COUNTRY_SOURCE must be memory, postgres or none", ErrInvalid)
	}
	return nil
}

// UsesSigning reports whether Google requests are signed with a client id
// instead of carrying an API key.
func (c *Config) UsesSigning() bool {
	return c.GoogleClientID != ""
}

func parsePositiveDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive duration", ErrInvalid, name)
	}
	return d, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalid, name)
	}
	return n, nil
}

func parseBool(name string, def bool) (bool, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", ErrInvalid, name)
	}
	return b, nil
}
