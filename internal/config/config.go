package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Store selection
	Store StoreConfig

	// JWT configuration
	JWT JWTConfig

	// Email configuration
	Email EmailConfig

	// Google OAuth configuration
	GoogleOAuth GoogleOAuthConfig

	// CORS configuration
	CORS CORSConfig

	// Live channel configuration
	Realtime RealtimeConfig

	// Collaboration rules
	Collab CollabConfig

	// Logging configuration
	Log LogConfig

	// EnvFile is the .env file that was loaded, if any
	EnvFile string
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	PublicURL       string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxLifetime     time.Duration
	ConnTimeout     time.Duration
	QueryTimeout    time.Duration
	SimpleProtocol  bool
	ApplicationName string
	AutoMigrate     bool
}

// StoreConfig selects the persistence driver
type StoreConfig struct {
	Driver string
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

// EmailConfig holds email service configuration
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
	UseTLS       bool
	UseSSL       bool
}

// GoogleOAuthConfig holds Google OAuth configuration
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
}

// RealtimeConfig holds live channel configuration
type RealtimeConfig struct {
	SubscriberBuffer int
	DedupeWindow     int
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	EchoWindow       time.Duration
	PendingTimeout   time.Duration
}

// CollabConfig holds collaboration rules
type CollabConfig struct {
	FeedbackWindow    time.Duration
	SummaryTimeout    time.Duration
	SeedTemplatesPath string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{}

	// Load .env file; a missing file is fine
	for _, path := range []string{"../.env", ".env"} {
		if err := godotenv.Load(path); err == nil {
			config.EnvFile = path
			break
		}
	}

	config.Server = ServerConfig{
		Port:            getEnv("SERVER_PORT", "8080"),
		ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  getDurationEnv("SERVER_REQUEST_TIMEOUT", 5*time.Second),
		PublicURL:       getEnv("PUBLIC_URL", "http://localhost:8081"),
	}
	config.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnv("DB_PORT", "5432"),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		Name:            getEnv("DB_NAME", "postgres"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxConns:        getInt32Env("DB_MAX_CONNS", 10),
		MinConns:        getInt32Env("DB_MIN_CONNS", 0),
		MaxLifetime:     getDurationEnv("DB_MAX_LIFETIME", time.Hour),
		ConnTimeout:     getDurationEnv("DB_CONN_TIMEOUT", 10*time.Second),
		QueryTimeout:    getDurationEnv("DB_QUERY_TIMEOUT", 30*time.Second),
		SimpleProtocol:  getBoolEnv("DB_SIMPLE_PROTOCOL", false),
		ApplicationName: getEnv("DB_APPLICATION_NAME", "tripcollab-backend"),
		AutoMigrate:     getBoolEnv("DB_AUTO_MIGRATE", true),
	}
	config.Store = StoreConfig{
		Driver: strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
	}
	config.JWT = JWTConfig{
		Secret:         getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		AccessTokenTTL: getDurationEnv("JWT_ACCESS_TTL", 7*24*time.Hour), // 7 days
	}
	config.Email = EmailConfig{
		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		FromEmail:    getEnv("EMAIL_FROM", ""),
		FromName:     getEnv("EMAIL_FROM_NAME", "TripCollab Team"),
		UseTLS:       getBoolEnv("SMTP_USE_TLS", true),
		UseSSL:       getBoolEnv("SMTP_USE_SSL", false),
	}
	config.GoogleOAuth = GoogleOAuthConfig{
		ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
	}
	config.CORS = CORSConfig{
		AllowedOrigins:   getStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AllowedMethods:   getStringSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		AllowedHeaders:   getStringSliceEnv("CORS_ALLOWED_HEADERS", []string{"*"}),
		AllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
	}
	config.Realtime = RealtimeConfig{
		SubscriberBuffer: getIntEnv("REALTIME_SUBSCRIBER_BUFFER", 64),
		DedupeWindow:     getIntEnv("REALTIME_DEDUPE_WINDOW", 512),
		PingInterval:     getDurationEnv("REALTIME_PING_INTERVAL", 30*time.Second),
		WriteTimeout:     getDurationEnv("REALTIME_WRITE_TIMEOUT", 5*time.Second),
		EchoWindow:       getDurationEnv("REALTIME_ECHO_WINDOW", 5*time.Second),
		PendingTimeout:   getDurationEnv("REALTIME_PENDING_TIMEOUT", 15*time.Second),
	}
	config.Collab = CollabConfig{
		FeedbackWindow:    getDurationEnv("COLLAB_FEEDBACK_WINDOW", 72*time.Hour),
		SummaryTimeout:    getDurationEnv("COLLAB_SUMMARY_TIMEOUT", 30*time.Second),
		SeedTemplatesPath: getEnv("COLLAB_SEED_TEMPLATES", ""),
	}
	config.Log = LogConfig{
		Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		// Check required database configuration
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Realtime.SubscriberBuffer < 1 {
		return fmt.Errorf("REALTIME_SUBSCRIBER_BUFFER must be positive")
	}
	if c.Collab.FeedbackWindow <= 0 {
		return fmt.Errorf("COLLAB_FEEDBACK_WINDOW must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// Warnings lists optional features that are not configured.
func (c *Config) Warnings() []string {
	var out []string
	if !c.IsEmailConfigured() {
		out = append(out, "SMTP credentials not configured; invitation emails are disabled")
	}
	if !c.IsGoogleOAuthConfigured() {
		out = append(out, "Google OAuth credentials not configured; Google login is disabled")
	}
	if c.JWT.Secret == "your-secret-key-change-in-production" {
		out = append(out, "JWT_SECRET uses the development default")
	}
	return out
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&connect_timeout=%d",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
		int(c.Database.ConnTimeout.Seconds()),
	)
}

// IsEmailConfigured checks if email service is properly configured
func (c *Config) IsEmailConfigured() bool {
	return c.Email.SMTPUsername != "" && c.Email.SMTPPassword != "" && c.Email.FromEmail != ""
}

// IsGoogleOAuthConfigured checks if Google OAuth is properly configured
func (c *Config) IsGoogleOAuthConfigured() bool {
	return c.GoogleOAuth.ClientID != "" && c.GoogleOAuth.ClientSecret != ""
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt32Env(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intValue)
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
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

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// comma-separated, blanks dropped
		parts := []string{}
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
