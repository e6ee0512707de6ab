package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Booking lifecycle
	Booking BookingConfig

	// Payment orchestration
	Payment PaymentConfig

	// Waitlist behavior
	Waitlist WaitlistConfig

	// Background sweeps
	Sweep SweepConfig

	// Kafka notification pipeline
	Kafka KafkaConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	// TTL values for different operations
	AvailabilityTTL time.Duration
	WebhookGuardTTL time.Duration
	CacheTTL        time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled          bool          `json:"enabled"`
	WindowDuration   time.Duration `json:"window_duration"`
	DefaultRequests  int           `json:"default_requests"`
	PublicRequests   int           `json:"public_requests"`
	BookingRequests  int           `json:"booking_requests"`
	CheckoutRequests int           `json:"checkout_requests"`
	WebhookRequests  int           `json:"webhook_requests"`
	AdminRequests    int           `json:"admin_requests"`
	HealthRequests   int           `json:"health_requests"`
	WhitelistedIPs   []string      `json:"whitelisted_ips"`
}

// BookingConfig holds booking lifecycle configuration
type BookingConfig struct {
	// How long a pending booking holds its reservation before expiring
	ExpiryDuration time.Duration
}

// PaymentConfig holds payment orchestration configuration
type PaymentConfig struct {
	MaxRetries        int
	PendingExpiry     time.Duration
	CommissionPercent float64
	DefaultCurrency   string
	SupportedGateways []string
}

// WaitlistConfig holds waitlist notification configuration
type WaitlistConfig struct {
	NotificationBatchSize int
	ResponseWindow        time.Duration
}

// SweepConfig holds background sweep intervals
type SweepConfig struct {
	Enabled            bool
	BookingExpiration  time.Duration
	PaymentStaleness   time.Duration
	Settlement         time.Duration
	WaitlistExpiration time.Duration
	BatchSize          int
}

// KafkaConfig holds Kafka producer configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "ticketflow_db"),
			User:     getEnv("DB_USER", "ticketflow_user"),
			Password: getEnv("DB_PASSWORD", "ticketflow_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),

			AvailabilityTTL: getDurationEnv("REDIS_AVAILABILITY_TTL", 30*time.Second),
			WebhookGuardTTL: getDurationEnv("REDIS_WEBHOOK_GUARD_TTL", 24*time.Hour),
			CacheTTL:        getDurationEnv("REDIS_CACHE_TTL", 1*time.Hour),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:          getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:   getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests:  getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			PublicRequests:   getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 100),
			BookingRequests:  getIntEnv("RATE_LIMIT_BOOKING_REQUESTS", 30),
			CheckoutRequests: getIntEnv("RATE_LIMIT_CHECKOUT_REQUESTS", 10),
			WebhookRequests:  getIntEnv("RATE_LIMIT_WEBHOOK_REQUESTS", 120),
			AdminRequests:    getIntEnv("RATE_LIMIT_ADMIN_REQUESTS", 200),
			HealthRequests:   getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 300),
			WhitelistedIPs:   getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		// Booking lifecycle
		Booking: BookingConfig{
			ExpiryDuration: getDurationEnv("BOOKING_EXPIRY_DURATION", 15*time.Minute),
		},

		// Payment orchestration
		Payment: PaymentConfig{
			MaxRetries:        getIntEnv("PAYMENT_MAX_RETRIES", 3),
			PendingExpiry:     getDurationEnv("PAYMENT_PENDING_EXPIRY", 30*time.Minute),
			CommissionPercent: getFloatEnv("PAYMENT_COMMISSION_PERCENT", 5.0),
			DefaultCurrency:   getEnv("PAYMENT_DEFAULT_CURRENCY", "INR"),
			SupportedGateways: getStringSliceEnv("PAYMENT_SUPPORTED_GATEWAYS", []string{"razorpay", "stripe"}),
		},

		// Waitlist behavior
		Waitlist: WaitlistConfig{
			NotificationBatchSize: getIntEnv("WAITLIST_NOTIFICATION_BATCH_SIZE", 5),
			ResponseWindow:        getDurationEnv("WAITLIST_RESPONSE_WINDOW", 2*time.Hour),
		},

		// Background sweeps
		Sweep: SweepConfig{
			Enabled:            getBoolEnv("SWEEP_ENABLED", true),
			BookingExpiration:  getDurationEnv("SWEEP_BOOKING_EXPIRATION_INTERVAL", 1*time.Minute),
			PaymentStaleness:   getDurationEnv("SWEEP_PAYMENT_STALENESS_INTERVAL", 5*time.Minute),
			Settlement:         getDurationEnv("SWEEP_SETTLEMENT_INTERVAL", 1*time.Hour),
			WaitlistExpiration: getDurationEnv("SWEEP_WAITLIST_EXPIRATION_INTERVAL", 10*time.Minute),
			BatchSize:          getIntEnv("SWEEP_BATCH_SIZE", 100),
		},

		// Kafka notification pipeline
		Kafka: KafkaConfig{
			Enabled: getBoolEnv("KAFKA_ENABLED", true),
			Brokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getFloatEnv gets a float environment variable with a fallback value
func getFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}

// IsGatewaySupported reports whether a payment gateway name is configured
func (c *Config) IsGatewaySupported(gateway string) bool {
	for _, g := range c.Payment.SupportedGateways {
		if strings.EqualFold(g, gateway) {
			return true
		}
	}
	return false
}
