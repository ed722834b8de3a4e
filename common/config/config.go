package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service    ServiceConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Cache      CacheConfig
	Queue      QueueConfig
	Storage    StorageConfig
	Validation ValidationConfig
	Telemetry  TelemetryConfig
	Features   FeatureFlags
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string

	// RequestsPerMinute caps the whole API across instances; 0 disables
	RequestsPerMinute int64
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds cache settings
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// QueueConfig holds work queue settings
type QueueConfig struct {
	Type          string // "memory" for single-node, "redis" for production
	ConsumerGroup string
	BlockTimeout  time.Duration
}

// StorageConfig holds object store settings
type StorageConfig struct {
	Bucket        string
	PresignExpiry time.Duration
}

// ValidationConfig holds the validation engine settings
type ValidationConfig struct {
	AllowedSchemaVersions []string
	// CurrentSchemaVersion is filled into metadata submitted without one
	CurrentSchemaVersion string
	SweepInterval        time.Duration
	DispatchPerSecond    int
	DispatchBatchSize    int
	TimeBudget           time.Duration
	AggregateMaxRetries  int
	AggregateBackoff     time.Duration
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// FeatureFlags for deployment toggles
type FeatureFlags struct {
	EnableRedisQueue   bool
	EnableEagerChecks  bool
	EnableEmbargo      bool
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"), // Default to text for development

			RequestsPerMinute: int64(getEnvInt("API_REQUESTS_PER_MINUTE", 600)),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "archive"),
			User:        getEnv("POSTGRES_USER", "archive"),
			Password:    getEnv("POSTGRES_PASSWORD", "archive"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Queue: QueueConfig{
			Type:          getEnv("QUEUE_TYPE", "memory"),
			ConsumerGroup: getEnv("QUEUE_CONSUMER_GROUP", "validation-workers"),
			BlockTimeout:  getEnvDuration("QUEUE_BLOCK_TIMEOUT", 5*time.Second),
		},
		Storage: StorageConfig{
			Bucket:        getEnv("STORAGE_BUCKET", "archive-blobs"),
			PresignExpiry: getEnvDuration("STORAGE_PRESIGN_EXPIRY", 1*time.Hour),
		},
		Validation: ValidationConfig{
			AllowedSchemaVersions: getEnvSlice("ALLOWED_SCHEMA_VERSIONS", []string{"0.6.0", "0.6.1", "0.6.2"}),
			CurrentSchemaVersion:  getEnv("DANDI_SCHEMA_VERSION", "0.6.2"),
			SweepInterval:         getEnvDuration("VALIDATION_SWEEP_INTERVAL", 1*time.Minute),
			DispatchPerSecond:     getEnvInt("VALIDATION_DISPATCH_PER_SECOND", 100),
			DispatchBatchSize:     getEnvInt("VALIDATION_DISPATCH_BATCH_SIZE", 500),
			TimeBudget:            getEnvDuration("VALIDATION_TIME_BUDGET", 10*time.Second),
			AggregateMaxRetries:   getEnvInt("AGGREGATE_MAX_RETRIES", 5),
			AggregateBackoff:      getEnvDuration("AGGREGATE_BACKOFF", 100*time.Millisecond),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", true),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
		Features: FeatureFlags{
			EnableRedisQueue:  getEnvBool("ENABLE_REDIS_QUEUE", false),
			EnableEagerChecks: getEnvBool("ENABLE_EAGER_CHECKS", true),
			EnableEmbargo:     getEnvBool("ENABLE_EMBARGO", true),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if len(c.Validation.AllowedSchemaVersions) == 0 {
		return fmt.Errorf("at least one allowed schema version is required")
	}

	if c.Validation.CurrentSchemaVersion != "" &&
		!slices.Contains(c.Validation.AllowedSchemaVersions, c.Validation.CurrentSchemaVersion) {
		return fmt.Errorf("current schema version %s is not in the allowed set", c.Validation.CurrentSchemaVersion)
	}

	if c.Validation.DispatchPerSecond < 1 {
		return fmt.Errorf("dispatch rate must be positive")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the Redis host:port address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
