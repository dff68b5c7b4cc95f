// Package config loads server configuration from the environment and
// community governance profiles from YAML.
package config

import "os"

// Config holds server configuration.
type Config struct {
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	EvidenceBucket string
	ProfilesDir    string
}

// Load reads configuration from environment variables, with local-dev
// defaults.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://commonshold@localhost:5432/commonshold?sslmode=disable"
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	profilesDir := os.Getenv("PROFILES_DIR")
	if profilesDir == "" {
		profilesDir = "profiles"
	}

	return &Config{
		Port:           port,
		LogLevel:       logLevel,
		DatabaseURL:    dbURL,
		RedisURL:       redisURL,
		EvidenceBucket: os.Getenv("EVIDENCE_BUCKET"),
		ProfilesDir:    profilesDir,
	}
}
