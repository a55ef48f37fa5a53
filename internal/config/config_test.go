package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker   = "localhost:9092"
	testMapboxToken = "pk.test-token"
	testGoogleKey   = "AIza-test-key"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-addresses", cfg.KafkaSourceTopic)
	assert.Equal(t, "geocoded-markers", cfg.KafkaSinkTopic)
	assert.Equal(t, "address-geocoder", cfg.KafkaGroupID)
	assert.True(t, cfg.PipelineEnabled)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)

	assert.False(t, cfg.GoogleEnabled)
	assert.Empty(t, cfg.GoogleAPIKey)
	assert.Equal(t, "https://maps.googleapis.com/maps/api", cfg.GoogleBaseURL)
	assert.Equal(t, 5*time.Second, cfg.GoogleTimeout)
	assert.False(t, cfg.UsesSigning())

	assert.Equal(t, 2*time.Second, cfg.GeocodeRetryDelay)
	assert.Equal(t, 3, cfg.GeocodeMaxAttempts)
	assert.Equal(t, 1000, cfg.GeocodeCacheSize)
	assert.InDelta(t, 10.0, cfg.GeocodeRateLimit, 0)

	assert.False(t, cfg.MapboxEnabled)
	assert.Empty(t, cfg.MapboxToken)
	assert.Equal(t, 5*time.Second, cfg.MapboxTimeout)

	assert.Equal(t, CountrySourceMemory, cfg.CountrySource)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("GOOGLE_API_KEY", testGoogleKey)
	t.Setenv("GOOGLE_BASE_URL", "http://localhost:9999/maps/api")
	t.Setenv("GOOGLE_TIMEOUT", "3s")
	t.Setenv("GEOCODE_RETRY_DELAY", "0s")
	t.Setenv("GEOCODE_MAX_ATTEMPTS", "5")
	t.Setenv("GEOCODE_CACHE_SIZE", "500")
	t.Setenv("GEOCODE_RATE_LIMIT", "2.5")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_TIMEOUT", "10s")
	t.Setenv("COUNTRY_SOURCE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/geocoder")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.True(t, cfg.GoogleEnabled)
	assert.Equal(t, testGoogleKey, cfg.GoogleAPIKey)
	assert.Equal(t, "http://localhost:9999/maps/api", cfg.GoogleBaseURL)
	assert.Equal(t, 3*time.Second, cfg.GoogleTimeout)
	assert.Equal(t, time.Duration(0), cfg.GeocodeRetryDelay)
	assert.Equal(t, 5, cfg.GeocodeMaxAttempts)
	assert.Equal(t, 500, cfg.GeocodeCacheSize)
	assert.InDelta(t, 2.5, cfg.GeocodeRateLimit, 0)
	assert.True(t, cfg.MapboxEnabled)
	assert.Equal(t, testMapboxToken, cfg.MapboxToken)
	assert.Equal(t, 10*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, CountrySourcePostgres, cfg.CountrySource)
	assert.Equal(t, "postgres://localhost/geocoder", cfg.DatabaseURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"shutdown timeout", "SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"negative shutdown timeout", "SHUTDOWN_TIMEOUT", "-1s"},
		{"zero batch size", "BATCH_SIZE", "0"},
		{"batch size too large", "BATCH_SIZE", "9999"},
		{"flush interval", "BATCH_FLUSH_INTERVAL", "not-a-duration"},
		{"google timeout", "GOOGLE_TIMEOUT", "bad"},
		{"mapbox timeout", "MAPBOX_TIMEOUT", "0s"},
		{"retry delay", "GEOCODE_RETRY_DELAY", "-2s"},
		{"max attempts", "GEOCODE_MAX_ATTEMPTS", "0"},
		{"cache size", "GEOCODE_CACHE_SIZE", "many"},
		{"rate limit", "GEOCODE_RATE_LIMIT", "-1"},
		{"pipeline flag", "PIPELINE_ENABLED", "sometimes"},
		{"country source", "COUNTRY_SOURCE", "csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_ValidationErrorsWrapSentinel(t *testing.T) {
	t.Setenv("GEOCODE_MAX_ATTEMPTS", "-3")
	_, err := Load()
	require.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_GoogleEnabledWithoutCredentials(t *testing.T) {
	t.Setenv("GOOGLE_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
}

func TestLoad_GoogleSigning(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "gme-test")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_SIGNING_SECRET")

	t.Setenv("GOOGLE_SIGNING_SECRET", "c2VjcmV0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.GoogleEnabled)
	assert.True(t, cfg.UsesSigning())
}

func TestLoad_GoogleExplicitlyDisabled(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", testGoogleKey)
	t.Setenv("GOOGLE_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.GoogleEnabled)
}

func TestLoad_MapboxEnabledWithoutToken(t *testing.T) {
	t.Setenv("MAPBOX_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TOKEN")
}

func TestLoad_MapboxTokenImpliesEnabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.MapboxEnabled)
}

func TestLoad_MapboxExplicitlyDisabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("COUNTRY_SOURCE", "postgres")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_PipelineDisabledSkipsKafkaChecks(t *testing.T) {
	t.Setenv("PIPELINE_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", " ")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.PipelineEnabled)
}

func TestLoadDotenv(t *testing.T) {
	const key = "GEOCODER_DOTENV_TEST_VALUE"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, LoadDotenv(path))
	assert.Equal(t, "from-file", os.Getenv(key))
}

func TestLoadDotenv_DoesNotOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\n"), 0o600))

	require.NoError(t, LoadDotenv(path))
	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"))
}

func TestLoadDotenv_MissingFile(t *testing.T) {
	require.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), "absent.env")))
}
