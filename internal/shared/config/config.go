package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	EMR        EMRConfig
	EventStore EventStoreConfig
	Auth       AuthConfig
	StoreAPI   StoreAPIConfig
	Sync       SyncConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EMRConfig holds connection settings for the legacy MSSQL EMR.
// The EMR is read-only from our side; writes stay with the vendor software.
type EMRConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Encrypt  bool
	// PollInterval controls how often the adapter scans the transaction
	// table for newly recorded services.
	PollInterval time.Duration
}

// EventStoreConfig holds configuration for EventStoreDB.
type EventStoreConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

type AuthConfig struct {
	JWTSecret string
}

// StoreAPIConfig points at the remote SQL execution / subscribe endpoints
// consumed by the store client and the realtime channel.
type StoreAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SyncConfig tunes the realtime channel and its polling fallback.
type SyncConfig struct {
	ReconnectDelay time.Duration
	PollFallback   time.Duration
	PollJitter     time.Duration
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "careops"),
			Password: getEnv("DB_PASSWORD", "careops"),
			Database: getEnv("DB_NAME", "careops"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		EMR: EMRConfig{
			Host:         getEnv("EMR_HOST", "localhost"),
			Port:         getEnvInt("EMR_PORT", 1433),
			User:         getEnv("EMR_USER", ""),
			Password:     getEnv("EMR_PASSWORD", ""),
			Database:     getEnv("EMR_DATABASE", "MasterDB"),
			Encrypt:      getEnvBool("EMR_ENCRYPT", false),
			PollInterval: getEnvDuration("EMR_POLL_INTERVAL", 30*time.Second),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		StoreAPI: StoreAPIConfig{
			BaseURL: getEnv("STORE_API_URL", "http://localhost:3200"),
			Timeout: getEnvDuration("STORE_API_TIMEOUT", 15*time.Second),
		},
		Sync: SyncConfig{
			ReconnectDelay: getEnvDuration("SYNC_RECONNECT_DELAY", 3*time.Second),
			PollFallback:   getEnvDuration("SYNC_POLL_FALLBACK", 5*time.Minute),
			PollJitter:     getEnvDuration("SYNC_POLL_JITTER", 30*time.Second),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
