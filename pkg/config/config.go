// Package config loads treasury host configuration from the environment and
// treasury policy profiles from YAML files.
package config

import "os"

// Config holds host configuration for the treasury engine.
type Config struct {
	Admin       string
	Custody     string
	DatabaseURL string
	SQLitePath  string
	LogLevel    string
	AuditBucket string
}

// Load loads configuration from environment variables.
func Load() *Config {
	admin := os.Getenv("TREASURY_ADMIN")
	if admin == "" {
		admin = "treasury-admin"
	}

	custody := os.Getenv("TREASURY_CUSTODY_ACCOUNT")
	if custody == "" {
		custody = "treasury-pool"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "treasury.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	return &Config{
		Admin:       admin,
		Custody:     custody,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  sqlitePath,
		LogLevel:    logLevel,
		AuditBucket: os.Getenv("AUDIT_BUCKET"),
	}
}
