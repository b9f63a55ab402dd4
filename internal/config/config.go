package config

import (
	"os"
	"strconv"

	"github.com/Tesseract-Nexus/go-shared/secrets"
)

// Config holds all configuration for the service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	App      AppConfig
	Payment  PaymentConfig
	Sync     SyncConfig
	Cleanup  CleanupConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// AppConfig holds application configuration
type AppConfig struct {
	Environment   string
	LogLevel      string
	JWTSecret     string
	TokenTTLHours int
}

// PaymentConfig holds payment provider configuration
type PaymentConfig struct {
	StripeSecretKey        string
	PaystackSecretKey      string
	RazorPayKeyID          string
	RazorPayKeySecret      string
	FlutterwaveSecretKey   string
	MercadoPagoAccessToken string
	FrontURL               string
}

// SyncConfig holds product replication configuration
type SyncConfig struct {
	CacheTTLMinutes int
}

// CleanupConfig holds the payment process purge configuration
type CleanupConfig struct {
	Schedule       string // cron expression
	RetentionHours int    // how long unsettled processes are kept
}

// New creates a new configuration instance
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnvWithDefault("SERVER_HOST", "0.0.0.0"),
			Port: getEnvWithDefault("SERVER_PORT", "8090"),
		},
		Database: DatabaseConfig{
			Host:     getEnvWithDefault("DB_HOST", "localhost"),
			Port:     getEnvWithDefault("DB_PORT", "5432"),
			User:     getEnvWithDefault("DB_USER", "postgres"),
			Password: secrets.GetDBPassword(), // Fetch from GCP Secret Manager if enabled
			Name:     getEnvWithDefault("DB_NAME", "catalog_db"),
			SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnvWithDefault("REDIS_HOST", "localhost"),
			Port:     getEnvWithDefault("REDIS_PORT", "6379"),
			Password: getEnvWithDefault("REDIS_PASSWORD", ""),
			DB:       getEnvAsIntWithDefault("REDIS_DB", 0),
		},
		App: AppConfig{
			Environment:   getEnvWithDefault("APP_ENV", "development"),
			LogLevel:      getEnvWithDefault("LOG_LEVEL", "info"),
			JWTSecret:     secrets.GetJWTSecret(), // Fetch from GCP Secret Manager if enabled
			TokenTTLHours: getEnvAsIntWithDefault("TOKEN_TTL_HOURS", 24),
		},
		Payment: PaymentConfig{
			StripeSecretKey:        secrets.GetSecretOrEnv("STRIPE_SECRET_KEY_SECRET_NAME", "STRIPE_SECRET_KEY", ""),
			PaystackSecretKey:      secrets.GetSecretOrEnv("PAYSTACK_SECRET_KEY_SECRET_NAME", "PAYSTACK_SECRET_KEY", ""),
			RazorPayKeyID:          getEnvWithDefault("RAZORPAY_KEY_ID", ""),
			RazorPayKeySecret:      secrets.GetSecretOrEnv("RAZORPAY_KEY_SECRET_SECRET_NAME", "RAZORPAY_KEY_SECRET", ""),
			FlutterwaveSecretKey:   secrets.GetSecretOrEnv("FLUTTERWAVE_SECRET_KEY_SECRET_NAME", "FLUTTERWAVE_SECRET_KEY", ""),
			MercadoPagoAccessToken: secrets.GetSecretOrEnv("MERCADOPAGO_ACCESS_TOKEN_SECRET_NAME", "MERCADOPAGO_ACCESS_TOKEN", ""),
			FrontURL:               getEnvWithDefault("FRONT_URL", "http://localhost:3000"),
		},
		Sync: SyncConfig{
			CacheTTLMinutes: getEnvAsIntWithDefault("PRODUCT_CACHE_TTL_MINS", 30),
		},
		Cleanup: CleanupConfig{
			Schedule:       getEnvWithDefault("PROCESS_PURGE_SCHEDULE", "0 * * * *"),
			RetentionHours: getEnvAsIntWithDefault("PROCESS_RETENTION_HOURS", 72),
		},
	}
}

// getEnvWithDefault gets environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntWithDefault gets environment variable as integer with default fallback
func getEnvAsIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
