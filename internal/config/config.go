// Package config provides configuration for the application
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

// Supported database drivers
const (
	DriverMySQL   = "mysql"
	DriverSQLite3 = "sqlite3"
)

// Supported storage backends
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

const (
	defaultAllowedExtensions = "txt,pdf,png,jpg,jpeg,gif,doc,docx,xls,xlsx,ppt,pptx,zip"
	defaultMaxUploadSize     = 16 * 1024 * 1024
	minSessionSecretLength   = 32
	defaultSweepSchedule     = "@hourly"
	defaultSweepGrace        = time.Hour
)

// SweepDisabled turns the orphan sweep off when used as ORPHAN_SWEEP_SCHEDULE
const SweepDisabled = "off"

// Config holds all configuration for the application.
// It is built once by Load and must not be mutated afterwards.
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	Logging     LoggingConfig
	Upload      UploadConfig
	Session     SessionConfig
	RateLimit   RateLimitConfig
	Bootstrap   BootstrapConfig
	Storage     StorageConfig
	Maintenance MaintenanceConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Path     string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// UploadConfig holds upload settings
type UploadConfig struct {
	Dir               string
	AllowedExtensions map[string]struct{}
	MaxSize           int64
}

// SessionConfig holds cookie session settings
type SessionConfig struct {
	Secret       string
	MaxAge       int
	CookieSecure bool
}

// RateLimitConfig holds per-IP request limits
type RateLimitConfig struct {
	PerMinute      int
	LoginPerMinute int
}

// BootstrapConfig holds the credentials of the admin created on first run
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
}

// StorageConfig holds settings of the file bytes backend
type StorageConfig struct {
	Backend   string
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// MaintenanceConfig holds settings of the orphan sweep
type MaintenanceConfig struct {
	SweepSchedule string
	SweepGrace    time.Duration
}

// SweepEnabled reports whether the orphan sweep should be scheduled
func (c *MaintenanceConfig) SweepEnabled() bool {
	return c.SweepSchedule != SweepDisabled
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	// Database configuration
	cfg.Database.Driver = getEnv("DB_DRIVER", DriverMySQL)
	switch cfg.Database.Driver {
	case DriverMySQL:
		if err := loadMySQL(&cfg.Database); err != nil {
			return nil, err
		}
	case DriverSQLite3:
		cfg.Database.Path = getEnv("DB_PATH", "data/filevault.db")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.Database.Driver)
	}

	// Server configuration
	serverPort, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.Server.Port = serverPort

	// Logging configuration
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	// Upload configuration
	cfg.Upload.Dir = getEnv("UPLOAD_DIR", "uploads")
	cfg.Upload.AllowedExtensions = ParseExtensions(getEnv("ALLOWED_EXTENSIONS", defaultAllowedExtensions))
	if len(cfg.Upload.AllowedExtensions) == 0 {
		return nil, fmt.Errorf("ALLOWED_EXTENSIONS must contain at least one extension")
	}
	maxSize, err := getEnvInt("MAX_UPLOAD_SIZE", defaultMaxUploadSize)
	if err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	cfg.Upload.MaxSize = int64(maxSize)

	// Session configuration
	cfg.Session.Secret = os.Getenv("SESSION_SECRET")
	if len(cfg.Session.Secret) < minSessionSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET is required and must be at least %d bytes", minSessionSecretLength)
	}
	if cfg.Session.MaxAge, err = getEnvInt("SESSION_MAX_AGE", 86400); err != nil {
		return nil, err
	}
	if cfg.Session.CookieSecure, err = getEnvBool("COOKIE_SECURE", false); err != nil {
		return nil, err
	}

	// Rate limit configuration
	if cfg.RateLimit.PerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 300); err != nil {
		return nil, err
	}
	if cfg.RateLimit.LoginPerMinute, err = getEnvInt("LOGIN_RATE_LIMIT_PER_MINUTE", 10); err != nil {
		return nil, err
	}

	// Bootstrap admin
	cfg.Bootstrap.AdminUsername = getEnv("DEFAULT_ADMIN_USERNAME", "admin")
	cfg.Bootstrap.AdminPassword = getEnv("DEFAULT_ADMIN_PASSWORD", "admin123")

	// Storage backend
	cfg.Storage.Backend = getEnv("STORAGE_BACKEND", StorageLocal)
	switch cfg.Storage.Backend {
	case StorageLocal:
	case StorageS3:
		cfg.Storage.Bucket = os.Getenv("S3_BUCKET")
		if cfg.Storage.Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required")
		}
		cfg.Storage.Region = getEnv("S3_REGION", "us-east-1")
		cfg.Storage.Endpoint = os.Getenv("S3_ENDPOINT")
		cfg.Storage.AccessKey = os.Getenv("S3_ACCESS_KEY")
		cfg.Storage.SecretKey = os.Getenv("S3_SECRET_KEY")
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND: %s", cfg.Storage.Backend)
	}

	// Orphan sweep
	cfg.Maintenance.SweepSchedule = getEnv("ORPHAN_SWEEP_SCHEDULE", defaultSweepSchedule)
	if cfg.Maintenance.SweepGrace, err = getEnvDuration("ORPHAN_SWEEP_GRACE", defaultSweepGrace); err != nil {
		return nil, err
	}
	if cfg.Maintenance.SweepGrace < 0 {
		return nil, fmt.Errorf("ORPHAN_SWEEP_GRACE must not be negative")
	}

	return cfg, nil
}

func loadMySQL(db *DatabaseConfig) error {
	db.Host = os.Getenv("DB_HOST")
	if db.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return fmt.Errorf("invalid DB_PORT: %w", err)
	}
	db.Port = dbPort

	db.User = os.Getenv("DB_USER")
	if db.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	db.Password = os.Getenv("DB_PASSWORD")
	if db.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}

	db.DBName = os.Getenv("DB_NAME")
	if db.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	return nil
}

// ParseExtensions parses a comma-separated extension list.
// Extensions are lower-cased and stripped of a leading dot.
func ParseExtensions(raw string) map[string]struct{} {
	extensions := make(map[string]struct{})
	for _, ext := range strings.Split(raw, ",") {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			extensions[ext] = struct{}{}
		}
	}
	return extensions
}

// IsExtensionAllowed reports whether ext (case-insensitive, without dot) is in the allow-list
func (c *UploadConfig) IsExtensionAllowed(ext string) bool {
	_, ok := c.AllowedExtensions[strings.ToLower(ext)]
	return ok
}

// DSN returns the database connection string for the configured driver
func (c *Config) DSN() string {
	if c.Database.Driver == DriverSQLite3 {
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", c.Database.Path)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&multiStatements=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
