package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider base URLs.
const (
	MpesaSandboxURL    = "https://sandbox.safaricom.co.ke"
	MpesaProductionURL = "https://api.safaricom.co.ke"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Mpesa     MpesaConfig
	Kafka     KafkaConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Sweeper   SweeperConfig
	Pricing   PricingConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// MpesaConfig holds STK push provider configuration.
type MpesaConfig struct {
	Environment     string
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	PassKey         string
	CallbackURL     string
	CallbackToken   string
	AllowedIPs      []string
	TransactionType string
	Timeout         time.Duration
	Timezone        string
}

// KafkaConfig holds payment event publisher configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// SecurityConfig holds admin API configuration.
type SecurityConfig struct {
	AdminToken string
}

// RateLimitConfig holds per-IP rate limit configuration.
type RateLimitConfig struct {
	Enabled   bool
	PerMinute int
	Burst     int
}

// SweeperConfig holds pending-payment sweeper configuration.
type SweeperConfig struct {
	Enabled   bool
	Interval  time.Duration
	MinAge    time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// PricingConfig holds price cache configuration.
type PricingConfig struct {
	CacheTTL time.Duration
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string
}

// Load loads configuration from environment variables.
func Load() *Config {
	env := strings.ToLower(getEnv("MPESA_ENV", "sandbox"))
	baseURL := MpesaSandboxURL
	if env == "production" {
		baseURL = MpesaProductionURL
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 45*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getSliceEnv("CORS_ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "servicedesk"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "servicedesk"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Mpesa: MpesaConfig{
			Environment:     env,
			BaseURL:         getEnv("MPESA_BASE_URL", baseURL),
			ConsumerKey:     getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:  getEnv("MPESA_CONSUMER_SECRET", ""),
			ShortCode:       getEnv("MPESA_SHORTCODE", ""),
			PassKey:         getEnv("MPESA_PASSKEY", ""),
			CallbackURL:     getEnv("MPESA_CALLBACK_URL", ""),
			CallbackToken:   getEnv("MPESA_CALLBACK_TOKEN", ""),
			AllowedIPs:      getSliceEnv("MPESA_CALLBACK_ALLOWED_IPS", nil),
			TransactionType: getEnv("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
			Timeout:         getDurationEnv("MPESA_TIMEOUT", 30*time.Second),
			Timezone:        getEnv("MPESA_TIMEZONE", "Africa/Nairobi"),
		},
		Kafka: KafkaConfig{
			Brokers: getSliceEnv("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_PAYMENT_TOPIC", "payment-events"),
		},
		Security: SecurityConfig{
			AdminToken: getEnv("ADMIN_TOKEN", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled:   getBoolEnv("RATE_LIMIT_ENABLED", true),
			PerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 60),
			Burst:     getIntEnv("RATE_LIMIT_BURST", 10),
		},
		Sweeper: SweeperConfig{
			Enabled:   getBoolEnv("SWEEPER_ENABLED", true),
			Interval:  getDurationEnv("SWEEPER_INTERVAL", time.Minute),
			MinAge:    getDurationEnv("SWEEPER_MIN_AGE", 2*time.Minute),
			MaxAge:    getDurationEnv("SWEEPER_MAX_AGE", 24*time.Hour),
			BatchSize: getIntEnv("SWEEPER_BATCH_SIZE", 50),
		},
		Pricing: PricingConfig{
			CacheTTL: getDurationEnv("PRICING_CACHE_TTL", 5*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
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

// getSliceEnv splits a comma separated value, dropping empty items.
func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
