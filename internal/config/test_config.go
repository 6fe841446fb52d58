package config

import (
	"path/filepath"
	"time"
)

// testSessionSecret is only used by NewTestConfig
const testSessionSecret = "test-session-secret-0123456789abcdef"

// NewTestConfig returns a Config for end-to-end tests.
// It uses a sqlite3 database and a local upload directory, both placed inside dir,
// so tests do not depend on a running database server.
func NewTestConfig(dir string) *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite3,
			Path:   filepath.Join(dir, "test.db"),
		},
		Server:  ServerConfig{Port: 0},
		Logging: LoggingConfig{Level: "debug"},
		Upload: UploadConfig{
			Dir:               filepath.Join(dir, "uploads"),
			AllowedExtensions: ParseExtensions(defaultAllowedExtensions),
			MaxSize:           1024 * 1024,
		},
		Session: SessionConfig{
			Secret: testSessionSecret,
			MaxAge: 3600,
		},
		RateLimit: RateLimitConfig{
			PerMinute:      1000,
			LoginPerMinute: 1000,
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: "admin",
			AdminPassword: "admin123",
		},
		Storage: StorageConfig{Backend: StorageLocal},
		Maintenance: MaintenanceConfig{
			SweepSchedule: SweepDisabled,
			SweepGrace:    time.Hour,
		},
	}
}
