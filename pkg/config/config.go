package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	Reports   ReportsConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnectRetries  int
	LogLevel        string
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// SchedulerConfig holds report-task scheduler configuration
type SchedulerConfig struct {
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// ReportsConfig holds report generation configuration
type ReportsConfig struct {
	OutputDir string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	Prefix string
}

// Load loads the application configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "shopease"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			ConnectRetries:  getEnvAsInt("DB_CONNECT_RETRIES", 5),
			LogLevel:        getEnv("DB_LOG_LEVEL", "error"),
		},
		Scheduler: SchedulerConfig{
			Workers:      getEnvAsInt("SCHEDULER_WORKERS", 2),
			PollInterval: getEnvAsDuration("SCHEDULER_POLL_INTERVAL", 2*time.Second),
			MaxAttempts:  getEnvAsInt("SCHEDULER_MAX_ATTEMPTS", 3),
			BaseBackoff:  getEnvAsDuration("SCHEDULER_BASE_BACKOFF", 5*time.Second),
			MaxBackoff:   getEnvAsDuration("SCHEDULER_MAX_BACKOFF", 10*time.Minute),
		},
		Reports: ReportsConfig{
			OutputDir: getEnv("REPORTS_OUTPUT_DIR", "reports"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "shopease"),
		},
	}, nil
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
