package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"extruder/internal/errors"
)

// Storage backends
const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Analysis  AnalysisConfig
	Profiling ProfilingConfig
	LogLevel  string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string
	GinMode         string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds the dashboard password gate. An empty password disables it.
type AuthConfig struct {
	Password      string
	SessionSecret string
	SessionTTL    time.Duration
}

// Enabled reports whether the password gate is active
func (a AuthConfig) Enabled() bool {
	return a.Password != ""
}

// StorageConfig selects where uploaded measurement files live
type StorageConfig struct {
	Backend         string
	Path            string // local backend root
	Bucket          string // gcs backend bucket
	CredentialsJSON string
	CredentialsFile string
	ListConcurrency int
}

// DatabaseConfig holds the catalog database connection. Postgres wins over
// Redis; with neither set the catalog stays in memory.
type DatabaseConfig struct {
	URL      string
	SSLMode  string
	RedisURL string
}

// AnalysisConfig holds dashboard defaults for a fresh analysis
type AnalysisConfig struct {
	TargetDataPoints int
	DefaultDataType  string
	LabelColumn      string
	ExcludeFirst     int
	ExcludeLast      int
	USL              float64
	LSL              float64
	ReferenceLine    float64
	AdditionalLine1  float64
	AdditionalLine2  float64
	BucketWidth      float64
	CurvePoints      int
}

// ProfilingConfig holds the ops server settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:    *loadServerConfig(),
		Auth:      *loadAuthConfig(),
		Storage:   *loadStorageConfig(),
		Database:  *loadDatabaseConfig(),
		Analysis:  *loadAnalysisConfig(),
		Profiling: *loadProfilingConfig(),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		GinMode:         getEnvOrDefault("GIN_MODE", "release"),
		ReadTimeout:     getEnvDurationOrDefault("READ_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func loadAuthConfig() *AuthConfig {
	password := os.Getenv("DASHBOARD_PASSWORD")
	return &AuthConfig{
		Password:      password,
		SessionSecret: getEnvOrDefault("SESSION_SECRET", password),
		SessionTTL:    getEnvDurationOrDefault("SESSION_TTL", 12*time.Hour),
	}
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		Backend:         strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", StorageLocal)),
		Path:            getEnvOrDefault("STORAGE_PATH", "uploads"),
		Bucket:          getEnvOrDefault("GCS_BUCKET", os.Getenv("FIREBASE_STORAGE_BUCKET")),
		CredentialsJSON: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		ListConcurrency: getEnvIntOrDefault("STORAGE_LIST_CONCURRENCY", 8),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:      os.Getenv("DATABASE_URL"),
		SSLMode:  getEnvOrDefault("SSL_MODE", "disable"),
		RedisURL: os.Getenv("REDIS_URL"),
	}
}

func loadAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		TargetDataPoints: getEnvIntOrDefault("TARGET_DATA_POINTS", 10000),
		DefaultDataType:  getEnvOrDefault("DEFAULT_DATA_TYPE", "x"),
		LabelColumn:      getEnvOrDefault("LABEL_COLUMN", "MCGS_TIME"),
		ExcludeFirst:     getEnvIntOrDefault("DEFAULT_EXCLUDE_FIRST", 300),
		ExcludeLast:      getEnvIntOrDefault("DEFAULT_EXCLUDE_LAST", 300),
		USL:              getEnvFloatOrDefault("DEFAULT_USL", 1.80),
		LSL:              getEnvFloatOrDefault("DEFAULT_LSL", 1.70),
		ReferenceLine:    getEnvFloatOrDefault("REFERENCE_LINE", 1.75),
		AdditionalLine1:  getEnvFloatOrDefault("DEFAULT_LINE1", 1.73),
		AdditionalLine2:  getEnvFloatOrDefault("DEFAULT_LINE2", 1.77),
		BucketWidth:      getEnvFloatOrDefault("BUCKET_WIDTH", 0.001),
		CurvePoints:      getEnvIntOrDefault("CURVE_POINTS", 200),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	switch config.Storage.Backend {
	case StorageLocal:
		if config.Storage.Path == "" {
			return errors.ConfigInvalid("STORAGE_PATH is required for the local backend")
		}
	case StorageGCS:
		if config.Storage.Bucket == "" {
			return errors.ConfigInvalid("GCS_BUCKET is required for the gcs backend")
		}
	default:
		return errors.ConfigInvalid("unknown STORAGE_BACKEND: " + config.Storage.Backend)
	}
	if config.Analysis.BucketWidth <= 0 {
		return errors.ConfigInvalid("BUCKET_WIDTH must be positive")
	}
	if config.Analysis.CurvePoints < 2 {
		return errors.ConfigInvalid("CURVE_POINTS must be at least 2")
	}
	if config.Analysis.TargetDataPoints <= 0 {
		return errors.ConfigInvalid("TARGET_DATA_POINTS must be positive")
	}
	if config.Analysis.ExcludeFirst < 0 || config.Analysis.ExcludeLast < 0 {
		return errors.ConfigInvalid("default trims must not be negative")
	}
	if config.Analysis.USL < config.Analysis.LSL {
		return errors.ConfigInvalid("DEFAULT_USL must not be below DEFAULT_LSL")
	}
	if config.Auth.Enabled() && config.Auth.SessionSecret == "" {
		return errors.ConfigInvalid("SESSION_SECRET is required when DASHBOARD_PASSWORD is set")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
