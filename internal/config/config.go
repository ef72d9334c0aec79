package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"salesdash/internal/engine"
	applog "salesdash/internal/log"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration
	RateLimitRPS    float64

	// Logging
	LogLevel  string
	LogFormat string

	// Dataset
	DataSource string
	SQLQuery   string
	Columns    engine.Columns

	// S3 source
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PathStyle       bool

	// Dashboard
	DefaultSelectionSize int
	CacheSize            int
	CacheTTL             time.Duration
}

// LoadDotEnv seeds the environment from a .env file. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() *Config {
	def := engine.GapminderColumns()
	cfg := &Config{
		Port:            getEnv("PORT", "8050"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 20),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataSource: getEnv("DATA_SOURCE", "embedded"),
		SQLQuery:   getEnv("SQL_QUERY", ""),
		Columns: engine.Columns{
			Entity:    getEnv("COLUMN_ENTITY", def.Entity),
			Group:     getEnv("COLUMN_GROUP", def.Group),
			Period:    getEnv("COLUMN_PERIOD", def.Period),
			Quantity:  getEnv("COLUMN_QUANTITY", def.Quantity),
			UnitValue: getEnv("COLUMN_UNIT_VALUE", def.UnitValue),
		},

		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PathStyle:       strings.EqualFold(getEnv("S3_PATH_STYLE", "false"), "true"),

		DefaultSelectionSize: getEnvInt("DEFAULT_SELECTION_SIZE", 5),
		CacheSize:            getEnvInt("CACHE_SIZE", 256),
		CacheTTL:             getEnvDuration("CACHE_TTL", 10*time.Minute),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if strings.TrimSpace(c.DataSource) == "" {
		errs = append(errs, "data source cannot be empty")
	}
	if err := c.Columns.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid column mapping: %v", err))
	}

	if c.DefaultSelectionSize < 0 {
		errs = append(errs, fmt.Sprintf("invalid default selection size %d: must not be negative", c.DefaultSelectionSize))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Sprintf("invalid cache size %d: must not be negative", c.CacheSize))
	}
	if c.CacheSize > 0 && c.CacheTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
		errs = append(errs, "S3 access key ID and secret access key must be set together")
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %v: must not be negative", c.RateLimitRPS))
	}
	if c.ShutdownTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	// Return combined errors
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
