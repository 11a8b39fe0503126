package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Sources  SourcesConfig
	Archive  ArchiveConfig
	Registry RegistryConfig
	Pipeline PipelineConfig
}

// SourcesConfig holds source-manifest configuration
type SourcesConfig struct {
	ManifestPath string
}

// ArchiveConfig holds archive-backend configuration
type ArchiveConfig struct {
	RootDir    string
	S3Bucket   string
	S3Region   string
	S3Prefix   string
	S3Endpoint string
}

// RegistryConfig holds ledger-backend configuration
type RegistryConfig struct {
	Backend          string // "xlsx", "postgres" or "sqlite"
	XLSXPath         string
	DSN              string
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// PipelineConfig holds run-level configuration
type PipelineConfig struct {
	LookbackDays int
	Pdftotext    string
	ArtifactDir  string
}

// LoadConfig loads configuration from the environment, reading a .env file
// first when one is present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Sources: SourcesConfig{
			ManifestPath: getEnv("SOURCES_MANIFEST", "sources.json"),
		},
		Archive: ArchiveConfig{
			RootDir:    getEnv("ARCHIVE_DIR", ""),
			S3Bucket:   getEnv("ARCHIVE_S3_BUCKET", ""),
			S3Region:   getEnv("ARCHIVE_S3_REGION", "eu-west-1"),
			S3Prefix:   getEnv("ARCHIVE_S3_PREFIX", "invoices"),
			S3Endpoint: getEnv("ARCHIVE_S3_ENDPOINT", ""),
		},
		Registry: RegistryConfig{
			Backend:          getEnv("REGISTRY_BACKEND", "xlsx"),
			XLSXPath:         getEnv("REGISTRY_XLSX_PATH", "ledger.xlsx"),
			DSN:              getEnv("REGISTRY_DSN", ""),
			SQLitePath:       getEnv("REGISTRY_SQLITE_PATH", "ledger.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Pipeline: PipelineConfig{
			LookbackDays: getEnvAsInt("LOOKBACK_DAYS", 90),
			Pdftotext:    getEnv("PDFTOTEXT_BIN", "pdftotext"),
			ArtifactDir:  getEnv("ARTIFACT_CACHE_DIR", ""),
		},
	}
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Sources.ManifestPath == "" {
		return ValidationErrorf("SOURCES_MANIFEST is required")
	}
	switch c.Registry.Backend {
	case "xlsx":
		if c.Registry.XLSXPath == "" {
			return ValidationErrorf("REGISTRY_XLSX_PATH is required for the xlsx backend")
		}
	case "postgres":
		if c.Registry.DSN == "" {
			return ValidationErrorf("REGISTRY_DSN is required for the postgres backend")
		}
	case "sqlite":
		if c.Registry.SQLitePath == "" {
			return ValidationErrorf("REGISTRY_SQLITE_PATH is required for the sqlite backend")
		}
	default:
		return ValidationErrorf("unknown registry backend %q", c.Registry.Backend)
	}
	if c.Pipeline.LookbackDays <= 0 {
		return ValidationErrorf("LOOKBACK_DAYS must be positive")
	}
	return nil
}
