package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("HTTP_ADDRESS", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPAddress)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.Equal(t, 25, cfg.OutboxBatchSize)
	assert.False(t, cfg.OutboxEnabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/activities.db")
	t.Setenv("KAFKA_BROKERS", " broker-1:9092 , ,broker-2:9092")
	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("DLQ_MAX_RETRIES", "9")
	t.Setenv("OUTBOX_ENABLED", "nope")

	cfg := Load()

	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, "/tmp/activities.db", cfg.SQLitePath)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 25, cfg.OutboxBatchSize, "unparseable values fall back to the default")
	assert.Equal(t, 9, cfg.DLQMaxRetries)
	assert.False(t, cfg.OutboxEnabled)
}

func TestValidate(t *testing.T) {
	base := Config{
		StorageDriver:   DriverPostgres,
		PostgresURL:     "postgres://localhost/test",
		SQLitePath:      "test.db",
		KafkaBrokers:    []string{"kafka:9092"},
		OutboxBatchSize: 10,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"postgres ok", func(c *Config) {}, ""},
		{"memory ok", func(c *Config) { c.StorageDriver = DriverMemory }, ""},
		{"unknown driver", func(c *Config) { c.StorageDriver = "mysql" }, `unknown storage driver "mysql"`},
		{"missing postgres url", func(c *Config) { c.PostgresURL = "" }, "POSTGRES_URL is required"},
		{"missing sqlite path", func(c *Config) { c.StorageDriver = DriverSQLite; c.SQLitePath = "" }, "SQLITE_PATH is required"},
		{"outbox needs postgres", func(c *Config) { c.StorageDriver = DriverMemory; c.OutboxEnabled = true }, "requires the postgres storage driver"},
		{"outbox needs brokers", func(c *Config) { c.OutboxEnabled = true; c.KafkaBrokers = nil }, "KAFKA_BROKERS is required"},
		{"batch size", func(c *Config) { c.OutboxBatchSize = 0 }, "OUTBOX_BATCH_SIZE must be > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
