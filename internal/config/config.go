// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Engine    EngineConfig
	Worker    WorkerConfig
	Reconcile ReconcileConfig
	Sweeper   SweeperConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64

	// PublicBaseURL is the externally reachable base URL of this service,
	// embedded into callback URLs handed to the detection engine.
	PublicBaseURL string
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig holds Redis configuration (asynq broker + health checks).
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// Addr returns the host:port Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig holds detection-engine client configuration.
type EngineConfig struct {
	// BaseURL of the external detection engine.
	BaseURL string

	// HealthTimeout bounds the pre-dispatch health probe.
	HealthTimeout time.Duration

	// ScanTimeout bounds a single scan submission.
	ScanTimeout time.Duration

	// MultiScanTimeout bounds a batched multi-scan submission. Batches make
	// the engine resolve up to ten references before answering, so this is
	// minutes where ScanTimeout is seconds.
	MultiScanTimeout time.Duration
}

// WorkerConfig holds background worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of concurrent asynq task handlers. Multiple
	// scans' reconciliations may run concurrently; within one scan writes
	// stay sequential.
	Concurrency int
}

// ReconcileConfig holds results-reconciliation configuration.
type ReconcileConfig struct {
	// HistoryLookback is how many recent completed scans are consulted when
	// carrying forward review decisions. Bounded 2-5: decisions older than
	// the window are not carried forward automatically.
	HistoryLookback int

	// BatchSize is the number of findings inserted per statement batch.
	BatchSize int
}

// SweeperConfig holds timeout-sweeper configuration.
type SweeperConfig struct {
	// Interval is how often the sweeper scans for stuck scans.
	Interval time.Duration

	// StaleAfter is how long a scan may stay running without a terminal
	// callback before it is reclassified as timed out.
	StaleAfter time.Duration
}

// Lookback bounds for ReconcileConfig.HistoryLookback.
const (
	MinHistoryLookback = 2
	MaxHistoryLookback = 5
)

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "leakwatch"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 64*1024*1024),
			PublicBaseURL:   getEnv("SERVER_PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "leakwatch"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "leakwatch"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			BaseURL:          getEnv("ENGINE_BASE_URL", "http://localhost:9000"),
			HealthTimeout:    getEnvDuration("ENGINE_HEALTH_TIMEOUT", 5*time.Second),
			ScanTimeout:      getEnvDuration("ENGINE_SCAN_TIMEOUT", 30*time.Second),
			MultiScanTimeout: getEnvDuration("ENGINE_MULTI_SCAN_TIMEOUT", 3*time.Minute),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvInt("WORKER_CONCURRENCY", 10),
		},
		Reconcile: ReconcileConfig{
			HistoryLookback: getEnvInt("RECONCILE_HISTORY_LOOKBACK", 3),
			BatchSize:       getEnvInt("RECONCILE_BATCH_SIZE", 500),
		},
		Sweeper: SweeperConfig{
			Interval:   getEnvDuration("SWEEPER_INTERVAL", time.Minute),
			StaleAfter: getEnvDuration("SWEEPER_STALE_AFTER", 10*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency and clamps bounded values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Engine.BaseURL == "" {
		return fmt.Errorf("ENGINE_BASE_URL is required")
	}
	if c.Reconcile.HistoryLookback < MinHistoryLookback {
		c.Reconcile.HistoryLookback = MinHistoryLookback
	}
	if c.Reconcile.HistoryLookback > MaxHistoryLookback {
		c.Reconcile.HistoryLookback = MaxHistoryLookback
	}
	if c.Reconcile.BatchSize <= 0 {
		return fmt.Errorf("RECONCILE_BATCH_SIZE must be positive")
	}
	if c.Sweeper.Interval <= 0 || c.Sweeper.StaleAfter <= 0 {
		return fmt.Errorf("sweeper interval and staleness threshold must be positive")
	}
	return nil
}

// IsProduction returns true when running in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
