package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Ledger    LedgerConfig
	Server    ServerConfig
	Artifacts ArtifactsConfig
	Converter ConverterConfig
	SMTP      SMTPConfig
}

// LedgerConfig holds remote ledger (payment API) configuration
type LedgerConfig struct {
	BaseURL     string
	AccessToken string
	LocationID  string
	Timeout     time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// ArtifactsConfig holds generated-document storage configuration
type ArtifactsConfig struct {
	Dir          string
	IndexPath    string
	TemplatePath string
	URLPrefix    string
}

// ConverterConfig holds PDF converter configuration.
// A Timeout of 0 disables the bound on a single conversion.
type ConverterConfig struct {
	Binary  string
	Timeout time.Duration
}

// SMTPConfig holds outbound mail configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Ledger: LedgerConfig{
			BaseURL:     getEnv("LEDGER_BASE_URL", "https://connect.squareupsandbox.com"),
			AccessToken: getEnv("LEDGER_ACCESS_TOKEN", ""),
			LocationID:  getEnv("LEDGER_LOCATION_ID", ""),
			Timeout:     getEnvAsDuration("LEDGER_TIMEOUT", 30*time.Second),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":3000"),
		},
		Artifacts: ArtifactsConfig{
			Dir:          getEnv("ARTIFACT_DIR", "./public/tmp"),
			IndexPath:    getEnv("ARTIFACT_INDEX_PATH", "./public/tmp/artifacts.db"),
			TemplatePath: getEnv("RECEIPT_TEMPLATE_PATH", "./public/templates/donation_receipt.xlsx"),
			URLPrefix:    getEnv("ARTIFACT_URL_PREFIX", "/tmp"),
		},
		Converter: ConverterConfig{
			Binary:  getEnv("PDF_CONVERTER", "soffice"),
			Timeout: getEnvAsDuration("CONVERT_TIMEOUT", 2*time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_APP_PASS", ""),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Ledger.AccessToken == "" {
		return NewAppError("CONFIG_ERROR", "LEDGER_ACCESS_TOKEN is required", ErrInvalidInput)
	}
	if c.Ledger.LocationID == "" {
		return NewAppError("CONFIG_ERROR", "LEDGER_LOCATION_ID is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
