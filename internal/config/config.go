package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vytor/phonicsmastery/internal/logger"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

type Config struct {
	Addr                  string
	DBDriver              string
	DBPath                string
	CurriculumPath        string
	LogLevel              string
	WriteWorkerCount      int
	WriteQueueSize        int
	SyncMaxAttempts       int
	SyncBackoff           time.Duration
	ResyncInterval        time.Duration
	ExpectedActivityCount int
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:                  envOr("ADDR", ":8080"),
		DBDriver:              envOr("DB_DRIVER", DriverSQLite),
		DBPath:                envOr("DB_PATH", "file:phonicsmastery.db"),
		CurriculumPath:        os.Getenv("CURRICULUM_PATH"),
		LogLevel:              envOr("LOG_LEVEL", "INFO"),
		WriteWorkerCount:      envIntOr("WRITE_WORKER_COUNT", 2),
		WriteQueueSize:        envIntOr("WRITE_QUEUE_SIZE", 64),
		SyncMaxAttempts:       envIntOr("SYNC_MAX_ATTEMPTS", 3),
		SyncBackoff:           time.Duration(envIntOr("SYNC_BACKOFF_MS", 200)) * time.Millisecond,
		ResyncInterval:        envDurationOr("RESYNC_INTERVAL", 30*time.Second),
		ExpectedActivityCount: envIntOr("EXPECTED_ACTIVITY_COUNT", 0),
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("ADDR cannot be empty"))
	}
	if c.DBDriver != DriverSQLite && c.DBDriver != DriverPostgres {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("DB_PATH cannot be empty"))
	}
	if c.CurriculumPath != "" {
		if _, err := os.Stat(c.CurriculumPath); err != nil {
			errs = append(errs, fmt.Errorf("CURRICULUM_PATH not readable: %w", err))
		}
	}
	if !logger.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of DEBUG, INFO, WARN, ERROR, got %q", c.LogLevel))
	}
	if c.WriteWorkerCount < 1 {
		errs = append(errs, fmt.Errorf("WRITE_WORKER_COUNT must be at least 1, got %d", c.WriteWorkerCount))
	}
	if c.WriteQueueSize < 1 {
		errs = append(errs, fmt.Errorf("WRITE_QUEUE_SIZE must be at least 1, got %d", c.WriteQueueSize))
	}
	if c.SyncMaxAttempts < 1 || c.SyncMaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("SYNC_MAX_ATTEMPTS must be between 1 and 10, got %d", c.SyncMaxAttempts))
	}
	if c.SyncBackoff < 0 {
		errs = append(errs, fmt.Errorf("SYNC_BACKOFF_MS cannot be negative, got %v", c.SyncBackoff))
	}
	if c.ResyncInterval < time.Second {
		errs = append(errs, fmt.Errorf("RESYNC_INTERVAL must be at least 1s, got %v", c.ResyncInterval))
	}
	if c.ExpectedActivityCount < 0 {
		errs = append(errs, fmt.Errorf("EXPECTED_ACTIVITY_COUNT cannot be negative, got %d", c.ExpectedActivityCount))
	}
	return errors.Join(errs...)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid value for %s=%q, using default %v", key, v, def)
	}
	return def
}
