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
)

// Config holds the service configuration
type Config struct {
	// Database. Empty keeps receipts in memory.
	PostgresDSN string

	// Chain
	ChainID uint64

	// Server
	Port             int
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// Recovery modules
	RecoveryDomainName         string
	RecoveryDomainVersion      string
	CloudRecoveryTimelock      time.Duration
	SocialRecoveryMinTimelock  time.Duration
	SocialRecoveryMinThreshold uint64
}

// Load reads envPath (or ./.env when empty) if present, then builds the
// configuration from environment variables. Variables already set in the
// environment win over the file.
func Load(envPath string) (*Config, error) {
	if err := loadEnvFile(envPath); err != nil {
		return nil, err
	}

	cfg := &Config{
		PostgresDSN:                getEnv("POSTGRES_DSN", ""),
		ChainID:                    getEnvUint("CHAIN_ID", 31337),
		Port:                       getEnvInt("PORT", 8080),
		RateLimitEnabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:               getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:             getEnvInt("RATE_LIMIT_BURST", 40),
		RecoveryDomainName:         getEnv("RECOVERY_DOMAIN_NAME", "SmartAccountRecovery"),
		RecoveryDomainVersion:      getEnv("RECOVERY_DOMAIN_VERSION", "1"),
		CloudRecoveryTimelock:      getEnvDuration("CLOUD_RECOVERY_TIMELOCK", 0),
		SocialRecoveryMinTimelock:  getEnvDuration("SOCIAL_RECOVERY_MIN_TIMELOCK", 0),
		SocialRecoveryMinThreshold: getEnvUint("SOCIAL_RECOVERY_MIN_THRESHOLD", 1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadEnvFile(envPath string) error {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("failed to load %s: %w", envPath, err)
		}
		return nil
	}
	// ./.env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}

	if c.RateLimitEnabled {
		if c.RateLimitRPS <= 0 {
			return fmt.Errorf("RATE_LIMIT_RPS must be positive, got: %v", c.RateLimitRPS)
		}
		if c.RateLimitBurst < 1 {
			return fmt.Errorf("RATE_LIMIT_BURST must be at least 1, got: %d", c.RateLimitBurst)
		}
	}

	if c.RecoveryDomainName == "" || c.RecoveryDomainVersion == "" {
		return fmt.Errorf("RECOVERY_DOMAIN_NAME and RECOVERY_DOMAIN_VERSION are required")
	}

	if c.CloudRecoveryTimelock < 0 || c.SocialRecoveryMinTimelock < 0 {
		return fmt.Errorf("recovery timelocks must not be negative")
	}

	if c.SocialRecoveryMinThreshold == 0 {
		return fmt.Errorf("SOCIAL_RECOVERY_MIN_THRESHOLD must be at least 1")
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("36h") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if seconds, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}
