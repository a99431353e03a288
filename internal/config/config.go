package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// ThrottleConfig holds login throttle policy settings.
type ThrottleConfig struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	ResetWindow     time.Duration
	SweepInterval   time.Duration
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 7 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// Default throttle policy applied when the config omits or invalidates values.
const (
	defaultThrottleMaxAttempts     = 5
	defaultThrottleLockoutDuration = 15 * time.Minute
	defaultThrottleResetWindow     = 30 * time.Minute
	defaultThrottleSweepInterval   = 5 * time.Minute
)

// LoadThrottleConfig loads login throttle settings from the YAML config file.
// Durations are written as Go duration strings ("15m", "1h30m").
func LoadThrottleConfig(configPath string) (ThrottleConfig, error) {
	// fileConfig maps the YAML fields needed for throttle settings.
	type fileConfig struct {
		Throttle struct {
			MaxAttempts     int    `yaml:"max-attempts"`
			LockoutDuration string `yaml:"lockout-duration"`
			ResetWindow     string `yaml:"reset-window"`
			SweepInterval   string `yaml:"sweep-interval"`
		} `yaml:"login-throttle"`
	}

	result := ThrottleConfig{}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result.MaxAttempts = cfg.Throttle.MaxAttempts
			result.LockoutDuration = parseDuration(cfg.Throttle.LockoutDuration)
			result.ResetWindow = parseDuration(cfg.Throttle.ResetWindow)
			result.SweepInterval = parseDuration(cfg.Throttle.SweepInterval)
		}
	}

	if result.MaxAttempts <= 0 {
		result.MaxAttempts = defaultThrottleMaxAttempts
	}
	if result.LockoutDuration <= 0 {
		result.LockoutDuration = defaultThrottleLockoutDuration
	}
	if result.ResetWindow <= 0 {
		result.ResetWindow = defaultThrottleResetWindow
	}
	if result.SweepInterval <= 0 {
		result.SweepInterval = defaultThrottleSweepInterval
	}
	return result, nil
}

// parseDuration parses a duration string, returning zero on empty or invalid input.
func parseDuration(raw string) time.Duration {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	parsed, errParse := time.ParseDuration(trimmed)
	if errParse != nil {
		return 0
	}
	return parsed
}
