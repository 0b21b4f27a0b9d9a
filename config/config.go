// Package config loads the portal configuration from the environment
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Counter backends
const (
	CounterBackendPostgres = "postgres"
	CounterBackendRedis    = "redis"
	CounterBackendBadger   = "badger"
)

// Log outputs
const (
	LogOutputStdout = "stdout"
	LogOutputFile   = "file"
	LogOutputBoth   = "both"
)

// Config holds every configuration section of the portal
type Config struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Cache      CacheConfig      `json:"cache"`
	Counter    CounterConfig    `json:"counter"`
	JWT        JWTConfig        `json:"jwt"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

// DSN returns the key/value connection string understood by pgx and lib/pq
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

// Address returns host:port for the HTTP listener
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type CacheConfig struct {
	RedisURL            string        `json:"redis_url"`
	RedisDB             int           `json:"redis_db"`
	RedisPrefix         string        `json:"redis_prefix"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
}

// CounterConfig selects the counter store and the identifier format
type CounterConfig struct {
	Backend              string        `json:"backend"` // postgres, redis, badger
	Name                 string        `json:"name"`
	UniqueIDPrefix       string        `json:"unique_id_prefix"`
	UniqueIDPadWidth     int           `json:"unique_id_pad_width"`
	MaxAttempts          int           `json:"max_attempts"`
	RetryInitialInterval time.Duration `json:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `json:"retry_max_interval"`
	BadgerDir            string        `json:"badger_dir"` // empty keeps badger in memory
}

// JWTConfig verifies bearer tokens issued by the club's auth service
type JWTConfig struct {
	SecretKey  string `json:"secret_key"`
	PublicKey  string `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys bool   `json:"use_rsa_keys"` // Whether to verify with the RSA public key
	Issuer     string `json:"issuer"`
	Audience   string `json:"audience"`
}

type LoggingConfig struct {
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type SchedulerConfig struct {
	ReconcileEnabled   bool          `json:"reconcile_enabled"`
	ReconcileInterval  time.Duration `json:"reconcile_interval"`
	ReconcileBatchSize int           `json:"reconcile_batch_size"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadConfig loads the configuration from the environment and .env, then validates it
func LoadConfig() (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "raiot"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 2*time.Minute),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024),
			AllowedOrigins:  getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Cache: CacheConfig{
			RedisURL:            getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:             getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:         getEnvString("CACHE_REDIS_PREFIX", "raiot:"),
			HealthCheckInterval: getEnvDuration("CACHE_HEALTH_CHECK_INTERVAL", 30*time.Second),
		},
		Counter: CounterConfig{
			Backend:              strings.ToLower(getEnvString("COUNTER_BACKEND", CounterBackendPostgres)),
			Name:                 getEnvString("COUNTER_NAME", "uniqueIdCounter"),
			UniqueIDPrefix:       getEnvString("UNIQUE_ID_PREFIX", "RAIoT"),
			UniqueIDPadWidth:     getEnvInt("UNIQUE_ID_PAD_WIDTH", 5),
			MaxAttempts:          getEnvInt("COUNTER_MAX_ATTEMPTS", 5),
			RetryInitialInterval: getEnvDuration("COUNTER_RETRY_INITIAL_INTERVAL", 10*time.Millisecond),
			RetryMaxInterval:     getEnvDuration("COUNTER_RETRY_MAX_INTERVAL", 500*time.Millisecond),
			BadgerDir:            getEnvString("COUNTER_BADGER_DIR", ""),
		},
		JWT: JWTConfig{
			SecretKey:  getEnvString("JWT_SECRET_KEY", ""),
			PublicKey:  getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys: getEnvBool("JWT_USE_RSA_KEYS", false),
			Issuer:     getEnvString("JWT_ISSUER", "raiot-auth"),
			Audience:   getEnvString("JWT_AUDIENCE", "raiot-portal"),
		},
		Logging: LoggingConfig{
			Output:     strings.ToLower(getEnvString("LOG_OUTPUT", LogOutputStdout)),
			FilePath:   getEnvString("LOG_FILE_PATH", "/var/log/raiot/portal.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Scheduler: SchedulerConfig{
			ReconcileEnabled:   getEnvBool("RECONCILE_ENABLED", true),
			ReconcileInterval:  getEnvDuration("RECONCILE_INTERVAL", 5*time.Minute),
			ReconcileBatchSize: getEnvInt("RECONCILE_BATCH_SIZE", 100),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile sets variables from path unless they are already present in the
// environment, even as empty strings. A missing file is not an error.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// ValidateConfig reports every invalid setting at once
func ValidateConfig(cfg *Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Database.Host == "" {
		add("DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		add("DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		add("DB_NAME is required")
	}
	if cfg.Database.User == "" {
		add("DB_USER is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		add("SERVER_PORT must be between 1 and 65535")
	}

	switch cfg.Counter.Backend {
	case CounterBackendPostgres, CounterBackendBadger:
	case CounterBackendRedis:
		if cfg.Cache.RedisURL == "" {
			add("CACHE_REDIS_URL is required when COUNTER_BACKEND=redis")
		}
	default:
		add("COUNTER_BACKEND must be one of: postgres, redis, badger (got %q)", cfg.Counter.Backend)
	}
	if cfg.Counter.Name == "" {
		add("COUNTER_NAME is required")
	}
	if cfg.Counter.UniqueIDPadWidth < 1 || cfg.Counter.UniqueIDPadWidth > 18 {
		add("UNIQUE_ID_PAD_WIDTH must be between 1 and 18")
	}
	if cfg.Counter.MaxAttempts < 1 {
		add("COUNTER_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Counter.RetryInitialInterval <= 0 {
		add("COUNTER_RETRY_INITIAL_INTERVAL must be positive")
	}
	if cfg.Counter.RetryMaxInterval < cfg.Counter.RetryInitialInterval {
		add("COUNTER_RETRY_MAX_INTERVAL must not be shorter than COUNTER_RETRY_INITIAL_INTERVAL")
	}

	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PublicKey == "" {
			add("JWT_PUBLIC_KEY is required when JWT_USE_RSA_KEYS is true")
		}
	} else if len(cfg.JWT.SecretKey) < 32 {
		add("JWT_SECRET_KEY must be at least 32 characters long")
	}

	switch cfg.Logging.Output {
	case LogOutputStdout:
	case LogOutputFile, LogOutputBoth:
		if cfg.Logging.FilePath == "" {
			add("LOG_FILE_PATH is required when LOG_OUTPUT=%s", cfg.Logging.Output)
		}
	default:
		add("LOG_OUTPUT must be one of: stdout, file, both (got %q)", cfg.Logging.Output)
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		add("METRICS_PATH must start with /")
	}

	if cfg.Scheduler.ReconcileEnabled && cfg.Scheduler.ReconcileInterval <= 0 {
		add("RECONCILE_INTERVAL must be positive when RECONCILE_ENABLED is true")
	}
	if cfg.Scheduler.ReconcileBatchSize < 1 {
		add("RECONCILE_BATCH_SIZE must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}
