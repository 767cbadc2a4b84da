package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for a teferi timeline agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTPort     int    `yaml:"mqtt_port"`
	MQTTUser     string `yaml:"mqtt_user"`
	MQTTPassword string `yaml:"mqtt_password"`
	MQTTClientID string `yaml:"mqtt_client_id"`

	// Redis configuration
	RedisHost     string `yaml:"redis_host"`
	RedisPort     int    `yaml:"redis_port"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Storage configuration
	StorageBackend   string `yaml:"storage_backend"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     int    `yaml:"postgres_port"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`
	SQLitePath       string `yaml:"sqlite_path"`

	PostgresMaxConnections     int           `yaml:"postgres_max_connections"`
	PostgresMaxIdleConnections int           `yaml:"postgres_max_idle_connections"`
	PostgresConnMaxLifetime    time.Duration `yaml:"postgres_conn_max_lifetime"`

	// Service configuration
	ServiceName string `yaml:"service_name"`
	APIPort     int    `yaml:"api_port"`
	LogLevel    string `yaml:"log_level"`
	DeviceID    string `yaml:"device_id"`
	RunOnce     bool   `yaml:"-"`

	Timeline TimelineConfig `yaml:"timeline"`
}

// TimelineConfig holds the tunables of the timeline generation pipeline
type TimelineConfig struct {
	SignificantDistanceMeters float64 `yaml:"significant_distance_meters"`
	SmartGuessRadiusMeters    float64 `yaml:"smart_guess_radius_meters"`
	SmartGuessK               int     `yaml:"smart_guess_k"`
	SmartGuessLookbackDays    int     `yaml:"smart_guess_lookback_days"`
	DefaultLookbackDays       int     `yaml:"default_lookback_days"`
	RefreshIntervalSec        int     `yaml:"refresh_interval_sec"`
	MotionRetentionHours      int     `yaml:"motion_retention_hours"`
	TimeZone                  string  `yaml:"time_zone"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:       "localhost",
		MQTTPort:         1883,
		MQTTUser:         "",
		MQTTPassword:     "",
		MQTTClientID:     "",
		RedisHost:        "localhost",
		RedisPort:        6379,
		RedisPassword:    "",
		RedisDB:          0,
		StorageBackend:   "postgres",
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresDB:       "teferi",
		PostgresUser:     "teferi",
		PostgresPassword: "",
		PostgresSSLMode:  "disable",
		SQLitePath:       "teferi.db",

		PostgresMaxConnections:     10,
		PostgresMaxIdleConnections: 5,
		PostgresConnMaxLifetime:    30 * time.Minute,

		ServiceName:      "teferi-timeline",
		APIPort:          8080,
		LogLevel:         "info",
		DeviceID:         "default",
		Timeline: TimelineConfig{
			SignificantDistanceMeters: 100,
			SmartGuessRadiusMeters:    400,
			SmartGuessK:               3,
			SmartGuessLookbackDays:    15,
			DefaultLookbackDays:       7,
			RefreshIntervalSec:        900,
			MotionRetentionHours:      24 * 8,
			TimeZone:                  "Local",
		},
	}
}

// LoadFromFile overlays values from a YAML file. Keys missing from the file
// keep their current value.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables with TEFERI_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("TEFERI_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("TEFERI_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("TEFERI_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("TEFERI_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("TEFERI_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("TEFERI_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("TEFERI_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("TEFERI_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("TEFERI_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Storage configuration
	if v := os.Getenv("TEFERI_STORAGE_BACKEND"); v != "" {
		c.StorageBackend = v
	}
	if v := os.Getenv("TEFERI_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("TEFERI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("TEFERI_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("TEFERI_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("TEFERI_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("TEFERI_POSTGRES_SSLMODE"); v != "" {
		c.PostgresSSLMode = v
	}
	if v := os.Getenv("TEFERI_POSTGRES_MAX_CONNECTIONS"); v != "" {
		if max, err := strconv.Atoi(v); err == nil {
			c.PostgresMaxConnections = max
		}
	}
	if v := os.Getenv("TEFERI_SQLITE_PATH"); v != "" {
		c.SQLitePath = v
	}

	// Service configuration
	if v := os.Getenv("TEFERI_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("TEFERI_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.APIPort = port
		}
	}
	if v := os.Getenv("TEFERI_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("TEFERI_DEVICE_ID"); v != "" {
		c.DeviceID = v
	}

	// Timeline configuration
	if v := os.Getenv("TEFERI_SIGNIFICANT_DISTANCE_METERS"); v != "" {
		if meters, err := strconv.ParseFloat(v, 64); err == nil {
			c.Timeline.SignificantDistanceMeters = meters
		}
	}
	if v := os.Getenv("TEFERI_SMART_GUESS_RADIUS_METERS"); v != "" {
		if meters, err := strconv.ParseFloat(v, 64); err == nil {
			c.Timeline.SmartGuessRadiusMeters = meters
		}
	}
	if v := os.Getenv("TEFERI_SMART_GUESS_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.Timeline.SmartGuessK = k
		}
	}
	if v := os.Getenv("TEFERI_SMART_GUESS_LOOKBACK_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			c.Timeline.SmartGuessLookbackDays = days
		}
	}
	if v := os.Getenv("TEFERI_DEFAULT_LOOKBACK_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			c.Timeline.DefaultLookbackDays = days
		}
	}
	if v := os.Getenv("TEFERI_REFRESH_INTERVAL_SEC"); v != "" {
		if interval, err := strconv.Atoi(v); err == nil {
			c.Timeline.RefreshIntervalSec = interval
		}
	}
	if v := os.Getenv("TEFERI_MOTION_RETENTION_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			c.Timeline.MotionRetentionHours = hours
		}
	}
	if v := os.Getenv("TEFERI_TIME_ZONE"); v != "" {
		c.Timeline.TimeZone = v
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	// MQTT flags
	pflag.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	pflag.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	pflag.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	pflag.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	pflag.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	pflag.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	pflag.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	pflag.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	pflag.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Storage flags
	pflag.StringVar(&c.StorageBackend, "storage-backend", c.StorageBackend, "Time slot storage backend (postgres, sqlite)")
	pflag.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	pflag.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	pflag.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database name")
	pflag.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres username")
	pflag.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	pflag.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres SSL mode")
	pflag.StringVar(&c.SQLitePath, "sqlite-path", c.SQLitePath, "SQLite database file")

	// Service flags
	pflag.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	pflag.IntVar(&c.APIPort, "api-port", c.APIPort, "HTTP API port")
	pflag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	pflag.StringVar(&c.DeviceID, "device-id", c.DeviceID, "Device whose raw events are collected")
	pflag.BoolVar(&c.RunOnce, "once", c.RunOnce, "Run the timeline pipeline once and exit")

	// Timeline flags
	pflag.Float64Var(&c.Timeline.SignificantDistanceMeters, "significant-distance", c.Timeline.SignificantDistanceMeters, "Distance in meters for two locations to count as different")
	pflag.Float64Var(&c.Timeline.SmartGuessRadiusMeters, "smart-guess-radius", c.Timeline.SmartGuessRadiusMeters, "Smart guess search radius in meters")
	pflag.IntVar(&c.Timeline.SmartGuessK, "smart-guess-k", c.Timeline.SmartGuessK, "Neighbours considered by the smart guesser")
	pflag.IntVar(&c.Timeline.SmartGuessLookbackDays, "smart-guess-lookback-days", c.Timeline.SmartGuessLookbackDays, "Age limit of smart guesses in days")
	pflag.IntVar(&c.Timeline.DefaultLookbackDays, "default-lookback-days", c.Timeline.DefaultLookbackDays, "Lookback when nothing has been generated yet")
	pflag.IntVar(&c.Timeline.RefreshIntervalSec, "refresh-interval", c.Timeline.RefreshIntervalSec, "Scheduled refresh interval in seconds (0 disables)")
	pflag.IntVar(&c.Timeline.MotionRetentionHours, "motion-retention-hours", c.Timeline.MotionRetentionHours, "Hours of motion activity kept in Redis")
	pflag.StringVar(&c.Timeline.TimeZone, "time-zone", c.Timeline.TimeZone, "IANA time zone used for day boundaries")

	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}

	switch c.StorageBackend {
	case "postgres":
		if c.PostgresHost == "" || c.PostgresDB == "" {
			return fmt.Errorf("Postgres host and database are required for the postgres backend")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLite path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be postgres or sqlite)", c.StorageBackend)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.Timeline.SignificantDistanceMeters <= 0 {
		return fmt.Errorf("significant distance must be positive")
	}
	if c.Timeline.SmartGuessRadiusMeters <= 0 {
		return fmt.Errorf("smart guess radius must be positive")
	}
	if c.Timeline.SmartGuessK <= 0 {
		return fmt.Errorf("smart guess k must be positive")
	}
	if c.Timeline.RefreshIntervalSec < 0 {
		return fmt.Errorf("refresh interval cannot be negative")
	}
	if _, err := time.LoadLocation(c.Timeline.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.Timeline.TimeZone, err)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns the lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}

// Location returns the time zone used for calendar days.
// Validate must have succeeded before calling.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timeline.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RefreshInterval returns the scheduled refresh period
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Timeline.RefreshIntervalSec) * time.Second
}

// SlogLevel maps the configured log level name onto slog's levels
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
