package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaultsAreValid(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTAddress())
	assert.Equal(t, "localhost:6379", cfg.RedisAddress())
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Equal(t, 100.0, cfg.Timeline.SignificantDistanceMeters)
	assert.Equal(t, 3, cfg.Timeline.SmartGuessK)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TEFERI_MQTT_BROKER", "broker.lan")
	t.Setenv("TEFERI_REDIS_PORT", "6380")
	t.Setenv("TEFERI_STORAGE_BACKEND", "sqlite")
	t.Setenv("TEFERI_SQLITE_PATH", "/var/lib/teferi/timeline.db")
	t.Setenv("TEFERI_DEVICE_ID", "phone")
	t.Setenv("TEFERI_SMART_GUESS_RADIUS_METERS", "250.5")
	t.Setenv("TEFERI_REFRESH_INTERVAL_SEC", "60")
	t.Setenv("TEFERI_TIME_ZONE", "Europe/Helsinki")
	t.Setenv("TEFERI_API_PORT", "not-a-number")

	cfg := NewConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, "broker.lan", cfg.MQTTBroker)
	assert.Equal(t, 6380, cfg.RedisPort)
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.Equal(t, "/var/lib/teferi/timeline.db", cfg.SQLitePath)
	assert.Equal(t, "phone", cfg.DeviceID)
	assert.Equal(t, 250.5, cfg.Timeline.SmartGuessRadiusMeters)
	assert.Equal(t, time.Minute, cfg.RefreshInterval())
	assert.Equal(t, 8080, cfg.APIPort, "unparseable values keep the default")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "Europe/Helsinki", cfg.Location().String())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teferi.yaml")
	content := `
mqtt_broker: mqtt.example
storage_backend: sqlite
log_level: debug
postgres_conn_max_lifetime: 5m
timeline:
  smart_guess_k: 5
  time_zone: UTC
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := NewConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "mqtt.example", cfg.MQTTBroker)
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, 5*time.Minute, cfg.PostgresConnMaxLifetime)
	assert.Equal(t, 5, cfg.Timeline.SmartGuessK)
	assert.Equal(t, time.UTC, cfg.Location())

	// Keys absent from the file keep their defaults
	assert.Equal(t, 1883, cfg.MQTTPort)
	assert.Equal(t, 400.0, cfg.Timeline.SmartGuessRadiusMeters)

	assert.Error(t, NewConfig().LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "missing broker", modify: func(c *Config) { c.MQTTBroker = "" }},
		{name: "bad mqtt port", modify: func(c *Config) { c.MQTTPort = 70000 }},
		{name: "bad api port", modify: func(c *Config) { c.APIPort = 0 }},
		{name: "unknown backend", modify: func(c *Config) { c.StorageBackend = "mysql" }},
		{name: "sqlite without path", modify: func(c *Config) { c.StorageBackend = "sqlite"; c.SQLitePath = "" }},
		{name: "bad log level", modify: func(c *Config) { c.LogLevel = "verbose" }},
		{name: "zero distance", modify: func(c *Config) { c.Timeline.SignificantDistanceMeters = 0 }},
		{name: "zero k", modify: func(c *Config) { c.Timeline.SmartGuessK = 0 }},
		{name: "negative refresh", modify: func(c *Config) { c.Timeline.RefreshIntervalSec = -1 }},
		{name: "unknown time zone", modify: func(c *Config) { c.Timeline.TimeZone = "Mars/Olympus_Mons" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
