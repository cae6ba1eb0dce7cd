package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultDataFile is the document used when APPOINTMENTS_FILE is unset.
const DefaultDataFile = "appointments.json"

// Config holds application configuration
type Config struct {
	Env       string
	LogLevel  string
	LogFormat string

	// DataFile is the default persisted document flushed after every mutation.
	DataFile string
	// Timezone names the location used to stamp created_at. "Local" follows the host.
	Timezone     string
	AuditEnabled bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:          getEnv("ENV", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    strings.ToLower(strings.TrimSpace(getEnv("LOG_FORMAT", "json"))),
		DataFile:     getEnv("APPOINTMENTS_FILE", DefaultDataFile),
		Timezone:     getEnv("APPOINTMENTS_TZ", "Local"),
		AuditEnabled: getEnvAsBool("AUDIT_ENABLED", true),
	}
}

// LoadDotEnv seeds the process environment from a .env file. Variables that
// are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
