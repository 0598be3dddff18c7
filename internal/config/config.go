// Package config resolves runtime settings from the process environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables:
//
//	INCIDENTCORE_STORAGE_DRIVER: file|memory|sqlite|postgres|s3 (default file)
//	INCIDENTCORE_FILE_PATH: document path for the file driver (default ./data.json)
//	INCIDENTCORE_SQLITE_PATH: sqlite database path (default ./incidentcore.db)
//	INCIDENTCORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	INCIDENTCORE_S3_BUCKET: bucket when driver=s3 (required)
//	INCIDENTCORE_S3_REGION, INCIDENTCORE_S3_ENDPOINT, INCIDENTCORE_S3_KEY
//	INCIDENTCORE_S3_PATH_STYLE: true|false
//	INCIDENTCORE_LOG_LEVEL: debug|info|warn|error (default info)
const (
	EnvStorageDriver = "INCIDENTCORE_STORAGE_DRIVER"
	EnvFilePath      = "INCIDENTCORE_FILE_PATH"
	EnvSQLitePath    = "INCIDENTCORE_SQLITE_PATH"
	EnvPostgresDSN   = "INCIDENTCORE_POSTGRES_DSN"
	EnvS3Bucket      = "INCIDENTCORE_S3_BUCKET"
	EnvS3Region      = "INCIDENTCORE_S3_REGION"
	EnvS3Endpoint    = "INCIDENTCORE_S3_ENDPOINT"
	EnvS3Key         = "INCIDENTCORE_S3_KEY"
	EnvS3PathStyle   = "INCIDENTCORE_S3_PATH_STYLE"
	EnvLogLevel      = "INCIDENTCORE_LOG_LEVEL"
)

// DefaultDriver is used when no driver is configured.
const DefaultDriver = "file"

// S3 holds object storage settings.
type S3 struct {
	Bucket    string
	Region    string
	Endpoint  string
	Key       string
	PathStyle bool
}

// Storage selects and parameterises the document store backend.
type Storage struct {
	Driver      string
	FilePath    string
	SQLitePath  string
	PostgresDSN string
	S3          S3
}

// Config is the resolved runtime configuration.
type Config struct {
	Storage  Storage
	LogLevel slog.Level
}

// Load reads the given .env files (missing files are skipped; ".env" when none
// are named) into the environment without overriding variables that are
// already set, then resolves the configuration from the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv resolves the configuration through getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Storage: Storage{
			Driver:      strings.ToLower(strings.TrimSpace(getenv(EnvStorageDriver))),
			FilePath:    getenv(EnvFilePath),
			SQLitePath:  getenv(EnvSQLitePath),
			PostgresDSN: getenv(EnvPostgresDSN),
			S3: S3{
				Bucket:    getenv(EnvS3Bucket),
				Region:    getenv(EnvS3Region),
				Endpoint:  getenv(EnvS3Endpoint),
				Key:       getenv(EnvS3Key),
				PathStyle: strings.EqualFold(getenv(EnvS3PathStyle), "true"),
			},
		},
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DefaultDriver
	}
	level, err := ParseLevel(getenv(EnvLogLevel))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level
	if cfg.Storage.Driver == "s3" && cfg.Storage.S3.Bucket == "" {
		return Config{}, fmt.Errorf("%s required for s3 driver", EnvS3Bucket)
	}
	return cfg, nil
}

// ParseLevel maps a level name onto slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", EnvLogLevel, s, err)
	}
	return level, nil
}
