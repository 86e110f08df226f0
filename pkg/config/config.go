package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maritimeconnect/mir/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Broker is the identity broker realm that holds organization identity
	// providers and service clients
	Broker RealmConfig

	// Users is the realm that holds directly managed (non-federated) users
	Users RealmConfig

	// Certificates configuration
	Certificates CertificateConfig

	// Email configuration
	Email EmailConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// RealmConfig holds the connection settings for one realm of the
// federation service
type RealmConfig struct {
	BaseURL       string
	Realm         string
	AdminClientID string
	AdminUser     string
	AdminPassword string
	Timeout       time.Duration
}

// CertificateConfig holds certificate issuance settings
type CertificateConfig struct {
	ValidityPeriod time.Duration
}

// EmailConfig holds SMTP settings for notification mail
type EmailConfig struct {
	Host       string
	Port       string
	From       string
	AdminEmail string
	PortalName string
	PortalURL  string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Broker:        loadRealmConfig("MIR_BROKER", "mcp-broker"),
		Users:         loadRealmConfig("MIR_USERS", "mcp-users"),
		Certificates:  loadCertificateConfig(),
		Email:         loadEmailConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("MIR_HOST", "0.0.0.0"),
		Port:            getEnv("MIR_PORT", "8080"),
		ReadTimeout:     getEnvDuration("MIR_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("MIR_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("MIR_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("MIR_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("MIR_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads PostgreSQL configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:      getEnv("MIR_POSTGRES_URL", ""),
		MaxConns: getEnvInt("MIR_POSTGRES_MAX_CONNS", 25),
		MinConns: getEnvInt("MIR_POSTGRES_MIN_CONNS", 5),
	}
}

// loadRealmConfig loads a realm configuration from environment under the
// given prefix
func loadRealmConfig(prefix, defaultRealm string) RealmConfig {
	return RealmConfig{
		BaseURL:       getEnv(prefix+"_BASE_URL", ""),
		Realm:         getEnv(prefix+"_REALM", defaultRealm),
		AdminClientID: getEnv(prefix+"_ADMIN_CLIENT_ID", "admin-cli"),
		AdminUser:     getEnv(prefix+"_ADMIN_USER", ""),
		AdminPassword: getEnv(prefix+"_ADMIN_PASSWORD", ""),
		Timeout:       getEnvDuration(prefix+"_TIMEOUT", 30*time.Second),
	}
}

// loadCertificateConfig loads certificate settings from environment
func loadCertificateConfig() CertificateConfig {
	days := getEnvInt("MIR_CERT_VALIDITY_DAYS", 365)
	return CertificateConfig{
		ValidityPeriod: time.Duration(days) * 24 * time.Hour,
	}
}

// loadEmailConfig loads SMTP settings from environment
func loadEmailConfig() EmailConfig {
	return EmailConfig{
		Host:       getEnv("MIR_SMTP_HOST", "localhost"),
		Port:       getEnv("MIR_SMTP_PORT", "25"),
		From:       getEnv("MIR_EMAIL_FROM", "no-reply@maritimeconnect.example"),
		AdminEmail: getEnv("MIR_ADMIN_EMAIL", ""),
		PortalName: getEnv("MIR_PORTAL_NAME", "Maritime Identity Registry"),
		PortalURL:  getEnv("MIR_PORTAL_URL", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("MIR_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("MIR_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Broker.BaseURL == "" {
		return fmt.Errorf("broker realm base URL is required")
	}
	if c.Broker.AdminUser == "" || c.Broker.AdminPassword == "" {
		return fmt.Errorf("broker realm admin credentials are required")
	}
	if c.Users.BaseURL == "" {
		return fmt.Errorf("users realm base URL is required")
	}
	if c.Users.AdminUser == "" || c.Users.AdminPassword == "" {
		return fmt.Errorf("users realm admin credentials are required")
	}

	if c.Certificates.ValidityPeriod <= 0 {
		return fmt.Errorf("certificate validity period must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
