package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all runtime settings, read from the environment
type Config struct {
	Port     string
	BasePath string
	LogLevel string

	Database DatabaseConfig
	Auth     AuthConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	Delivery DeliveryConfig

	SentryDSN string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN renders the connection string for the postgres driver
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// AuthConfig holds token settings
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CleanupInterval time.Duration
}

// RabbitMQConfig holds broker settings. An empty Host disables the broker.
type RabbitMQConfig struct {
	Host  string
	Port  string
	User  string
	Pass  string
	Queue string
}

// URL renders the AMQP connection URL
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Pass, c.Host, c.Port)
}

// RedisConfig holds the lock store settings. An empty Addr disables locking.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// DeliveryConfig holds the campaign delivery pipeline settings
type DeliveryConfig struct {
	VendorURL       string
	CallbackURL     string
	VendorTimeout   time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	Workers         int
	QueueBuffer     int
	PendingTimeout  time.Duration
	SweepInterval   time.Duration
	WebhookSecret   string
	VendorSuccessPc int
	VendorMinDelay  time.Duration
	VendorMaxDelay  time.Duration
}

// Load reads .env when present and builds the configuration
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	port := getEnv("PORT", "8080")
	apiBase := fmt.Sprintf("http://localhost:%s/api/v1", port)

	return &Config{
		Port:     port,
		BasePath: getEnv("BASE_PATH", "/"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", "default-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvAsDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			CleanupInterval: getEnvAsDuration("TOKEN_CLEANUP_INTERVAL", 24*time.Hour),
		},
		RabbitMQ: RabbitMQConfig{
			Host:  getEnv("RABBITMQ_HOST", ""),
			Port:  getEnv("RABBITMQ_PORT", "5672"),
			User:  getEnv("RABBITMQ_USER", "guest"),
			Pass:  getEnv("RABBITMQ_PASS", "guest"),
			Queue: getEnv("RABBITMQ_DELIVERY_QUEUE", "campaign_delivery"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			LockTTL:  getEnvAsDuration("CAMPAIGN_LOCK_TTL", 30*time.Second),
		},
		Delivery: DeliveryConfig{
			VendorURL:       getEnv("VENDOR_API_URL", apiBase+"/vendor/send"),
			CallbackURL:     getEnv("DELIVERY_RECEIPT_URL", apiBase+"/delivery-receipt"),
			VendorTimeout:   getEnvAsDuration("VENDOR_TIMEOUT", 5*time.Second),
			MaxRetries:      getEnvAsInt("VENDOR_MAX_RETRIES", 0),
			RetryBaseDelay:  getEnvAsDuration("VENDOR_RETRY_BASE_DELAY", time.Second),
			Workers:         getEnvAsInt("DELIVERY_WORKERS", 8),
			QueueBuffer:     getEnvAsInt("DELIVERY_QUEUE_BUFFER", 1024),
			PendingTimeout:  getEnvAsDuration("DELIVERY_PENDING_TIMEOUT", 10*time.Minute),
			SweepInterval:   getEnvAsDuration("DELIVERY_SWEEP_INTERVAL", time.Minute),
			WebhookSecret:   getEnv("WEBHOOK_SECRET", ""),
			VendorSuccessPc: getEnvAsInt("VENDOR_SUCCESS_PERCENT", 90),
			VendorMinDelay:  getEnvAsDuration("VENDOR_MIN_DELAY", 500*time.Millisecond),
			VendorMaxDelay:  getEnvAsDuration("VENDOR_MAX_DELAY", 2500*time.Millisecond),
		},
		SentryDSN: getEnv("SENTRY_DSN", ""),
	}
}

// Validate reports settings the server cannot start without
func (c *Config) Validate() error {
	d := c.Database
	if d.Host == "" || d.Port == "" || d.User == "" || d.Password == "" || d.Name == "" {
		return fmt.Errorf("missing required database environment variables. Please check your .env file")
	}
	if c.Delivery.Workers < 1 {
		return fmt.Errorf("DELIVERY_WORKERS must be at least 1")
	}
	if c.Delivery.MaxRetries < 0 {
		return fmt.Errorf("VENDOR_MAX_RETRIES cannot be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if raw := getEnv(key, ""); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			return parsed
		}
	}
	return defaultValue
}
