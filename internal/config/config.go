package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port            string
	Env             string
	JWTSecret       string
	JWTTTL          time.Duration
	DefaultCurrency string
	// AdminPhones are granted the admin role at startup.
	AdminPhones []string

	DB       DatabaseConfig
	Redis    RedisConfig
	WhatsApp WhatsAppConfig
	Rabbit   RabbitConfig
	OTP      OTPConfig
	Notify   NotifyConfig
	Worker   WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// WhatsAppConfig contains WhatsApp Cloud API credentials.
// Delivery is disabled when AccessToken or PhoneNumberID is empty.
type WhatsAppConfig struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	Timeout       time.Duration
}

// Enabled reports whether outbound WhatsApp delivery is configured.
func (w WhatsAppConfig) Enabled() bool {
	return w.AccessToken != "" && w.PhoneNumberID != ""
}

// RabbitConfig contains RabbitMQ settings for the notification pipeline.
// An empty URL means notifications are delivered in-process.
type RabbitConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
}

// OTPConfig controls one-time password issuance.
type OTPConfig struct {
	TTL          time.Duration
	Length       int
	SendLimit    int
	SendWindow   time.Duration
	DevEchoCodes bool
}

// NotifyConfig sizes the async notification dispatcher.
type NotifyConfig struct {
	Workers   int
	QueueSize int
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	SubscriptionSweepInterval time.Duration
	SweepLockTTL              time.Duration
	ReconcileInterval         time.Duration
	ReconcileBatchSize        int
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.DefaultCurrency = strings.ToUpper(getEnv("DEFAULT_CURRENCY", "JOD"))
	cfg.AdminPhones = getEnvList("ADMIN_PHONES")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// WhatsApp Cloud API
	cfg.WhatsApp = WhatsAppConfig{
		BaseURL:       getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v20.0"),
		AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
	}

	// RabbitMQ
	cfg.Rabbit = RabbitConfig{
		URL:      getEnv("RABBIT_URL", ""),
		Exchange: getEnv("NOTIFY_EXCHANGE", "marketplace.notifications"),
		Queue:    getEnv("NOTIFY_QUEUE", "marketplace.whatsapp"),
		Prefetch: getEnvInt("NOTIFY_PREFETCH", 8),
	}

	cfg.OTP = OTPConfig{
		Length:       getEnvInt("OTP_LENGTH", 6),
		SendLimit:    getEnvInt("OTP_SEND_LIMIT", 5),
		DevEchoCodes: getEnvBool("OTP_DEV_ECHO", cfg.Env != "production"),
	}

	cfg.Notify = NotifyConfig{
		Workers:   getEnvInt("NOTIFY_WORKERS", 4),
		QueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 256),
	}
	cfg.Worker.ReconcileBatchSize = getEnvInt("RECONCILE_BATCH_SIZE", 100)

	// Durations
	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", "720h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if cfg.WhatsApp.Timeout, err = parseDurationEnv("WHATSAPP_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid WHATSAPP_TIMEOUT: %w", err)
	}
	if cfg.OTP.TTL, err = parseDurationEnv("OTP_TTL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid OTP_TTL: %w", err)
	}
	if cfg.OTP.SendWindow, err = parseDurationEnv("OTP_SEND_WINDOW", "15m"); err != nil {
		return nil, fmt.Errorf("invalid OTP_SEND_WINDOW: %w", err)
	}
	if cfg.Worker.SubscriptionSweepInterval, err = parseDurationEnv("SUBSCRIPTION_SWEEP_INTERVAL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid SUBSCRIPTION_SWEEP_INTERVAL: %w", err)
	}
	if cfg.Worker.SweepLockTTL, err = parseDurationEnv("SWEEP_LOCK_TTL", "30m"); err != nil {
		return nil, fmt.Errorf("invalid SWEEP_LOCK_TTL: %w", err)
	}
	if cfg.Worker.ReconcileInterval, err = parseDurationEnv("RECONCILE_INTERVAL", "15m"); err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_INTERVAL: %w", err)
	}

	// Basic validation for DB parameters.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	// Validate JWT_SECRET
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	if cfg.OTP.Length < 4 || cfg.OTP.Length > 10 {
		return nil, fmt.Errorf("OTP_LENGTH must be between 4 and 10, got %d", cfg.OTP.Length)
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
