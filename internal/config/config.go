package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server       ServerConfig
	Store        StoreConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Notification NotificationConfig
	NewRelic     NewRelicConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// StoreConfig selects the payment store backend.
type StoreConfig struct {
	Driver string
}

// Validate rejects drivers other than StoreDriverPostgres and StoreDriverMemory.
func (c StoreConfig) Validate() error {
	switch c.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
		return nil
	}
	return fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", c.Driver, StoreDriverPostgres, StoreDriverMemory)
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// GatewayConfig holds payment gateway configuration.
// An empty SecretKey is allowed at boot and reported per request.
type GatewayConfig struct {
	SecretKey       string
	BaseURL         string
	CallbackURL     string
	Timeout         time.Duration
	DefaultCurrency string
}

// NotificationConfig holds confirmation dispatcher configuration.
type NotificationConfig struct {
	Workers      int
	QueueSize    int
	From         string
	SMTPAddr     string // host:port; empty logs messages instead of sending them
	SMTPUser     string
	SMTPPassword string
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", StoreDriverPostgres),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "travel"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			AutoMigrate: getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Gateway: GatewayConfig{
			SecretKey:       getEnv("CHAPA_SECRET_KEY", ""),
			BaseURL:         getEnv("CHAPA_BASE_URL", "https://api.chapa.co/v1"),
			CallbackURL:     getEnv("CHAPA_CALLBACK_URL", "http://localhost:8080/payment/verify"),
			Timeout:         getDurationEnv("CHAPA_TIMEOUT", 20*time.Second),
			DefaultCurrency: getEnv("PAYMENT_DEFAULT_CURRENCY", "ETB"),
		},
		Notification: NotificationConfig{
			Workers:      getIntEnv("NOTIFY_WORKERS", 4),
			QueueSize:    getIntEnv("NOTIFY_QUEUE_SIZE", 256),
			From:         getEnv("NOTIFY_FROM", "no-reply@travelpay.local"),
			SMTPAddr:     getEnv("SMTP_ADDR", ""),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "travelpay"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
