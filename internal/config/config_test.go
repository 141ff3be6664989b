package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "testuser")
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("DB_NAME", "testdb")
	t.Setenv("BACKEND_CONFIRM_URL", "http://backend.local/payment/confirm")
	t.Setenv("RESERVED_SIGNING_KEY", "reserved-secret")
}

func TestLoad(t *testing.T) {
	t.Run("Success loading from env", func(t *testing.T) {
		setRequired(t)
		t.Setenv("APP_PORT", "9090")
		t.Setenv("APP_ENV", "test")
		t.Setenv("GATEWAY_CLIENT_ID", "client-1")
		t.Setenv("GATEWAY_SECRET_KEY", "secret-1")
		t.Setenv("GATEWAY_CHECKOUT_TIMEOUT", "45s")
		t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
		t.Setenv("MARKER_BACKEND", "postgres")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9090", cfg.AppPort)
		assert.Equal(t, "test", cfg.AppEnv)
		assert.Equal(t, "client-1", cfg.Gateway.ClientID)
		assert.True(t, cfg.Gateway.HasCredentials())
		assert.Equal(t, 45*time.Second, cfg.Gateway.CheckoutTimeout)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, "postgres", cfg.MarkerBackend)
		assert.Equal(t, "host=localhost user=testuser password=testpass dbname=testdb port=5432 sslmode=disable", cfg.DSN())
	})

	t.Run("Defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.AppPort)
		assert.Equal(t, "redis", cfg.MarkerBackend)
		assert.Equal(t, 24*time.Hour, cfg.MarkerTTL)
		assert.Equal(t, 30*time.Second, cfg.Gateway.CheckoutTimeout)
		assert.Equal(t, 200*time.Millisecond, cfg.Gateway.PollInterval)
		assert.Equal(t, 30, cfg.Gateway.PollAttempts)
		assert.Equal(t, 5*time.Second, cfg.ProcessingBudget)
		assert.False(t, cfg.Gateway.HasCredentials())
	})

	t.Run("Missing database", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DB_HOST", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Invalid marker backend", func(t *testing.T) {
		setRequired(t)
		t.Setenv("MARKER_BACKEND", "localstorage")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MARKER_BACKEND")
	})

	t.Run("Invalid duration", func(t *testing.T) {
		setRequired(t)
		t.Setenv("MARKER_TTL", "soon")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadDatabase(t *testing.T) {
	t.Run("Only database settings are required", func(t *testing.T) {
		setRequired(t)
		t.Setenv("BACKEND_CONFIRM_URL", "")
		t.Setenv("RESERVED_SIGNING_KEY", "")
		t.Setenv("DB_PORT", "6543")

		_, err := Load()
		require.Error(t, err)

		cfg, err := LoadDatabase()
		require.NoError(t, err)
		assert.Equal(t, "host=localhost user=testuser password=testpass dbname=testdb port=6543 sslmode=disable", cfg.DSN())
	})

	t.Run("Missing database", func(t *testing.T) {
		setRequired(t)
		t.Setenv("DB_NAME", "")

		_, err := LoadDatabase()
		assert.ErrorContains(t, err, "DB_NAME")
	})
}
