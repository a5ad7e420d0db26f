package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Backend  BackendConfig
	Realtime RealtimeConfig
	Storage  StorageConfig
	Meter    MeterConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	HTTPAddr string
}

// BackendConfig holds discovery and submission settings for the
// processing backend.
type BackendConfig struct {
	DiscoveryURL   string
	RequestTimeout time.Duration
}

// RealtimeConfig holds the push-channel settings for job status updates.
type RealtimeConfig struct {
	ProjectID  string
	Collection string
}

// StorageConfig holds the batch upload destination.
type StorageConfig struct {
	Bucket string
}

// MeterConfig holds page-metering knobs.
type MeterConfig struct {
	Workers int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		Backend: BackendConfig{
			DiscoveryURL:   getEnv("BACKEND_DISCOVERY_URL", ""),
			RequestTimeout: getEnvAsDuration("BACKEND_REQUEST_TIMEOUT", 30*time.Second),
		},
		Realtime: RealtimeConfig{
			ProjectID:  getEnv("PROJECT_ID", ""),
			Collection: getEnv("JOBS_COLLECTION", "jobs"),
		},
		Storage: StorageConfig{
			Bucket: getEnv("BATCH_BUCKET", ""),
		},
		Meter: MeterConfig{
			Workers: getEnvAsInt("METER_WORKERS", 4),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Backend.DiscoveryURL == "" {
		return NewAppError("CONFIG_ERROR", "BACKEND_DISCOVERY_URL is required", ErrInvalidInput)
	}
	if c.Realtime.ProjectID == "" {
		return NewAppError("CONFIG_ERROR", "PROJECT_ID is required", ErrInvalidInput)
	}
	if c.Storage.Bucket == "" {
		return NewAppError("CONFIG_ERROR", "BATCH_BUCKET is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}
