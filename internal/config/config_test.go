package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/phonicsmastery/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Addr:                  ":8080",
		DBDriver:              config.DriverSQLite,
		DBPath:                "test.db",
		LogLevel:              "INFO",
		WriteWorkerCount:      2,
		WriteQueueSize:        64,
		SyncMaxAttempts:       3,
		SyncBackoff:           200 * time.Millisecond,
		ResyncInterval:        30 * time.Second,
		ExpectedActivityCount: 0,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_EmptyAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Addr = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ADDR cannot be empty")
}

func TestValidate_EmptyDBPath(t *testing.T) {
	cfg := validConfig()
	cfg.DBPath = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PATH cannot be empty")
}

func TestValidate_Driver(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		wantErr bool
	}{
		{name: "sqlite", driver: config.DriverSQLite},
		{name: "postgres", driver: config.DriverPostgres},
		{name: "mysql", driver: "mysql", wantErr: true},
		{name: "empty", driver: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.DBDriver = tt.driver

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "DB_DRIVER")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_CurriculumPath(t *testing.T) {
	cfg := validConfig()
	cfg.CurriculumPath = filepath.Join(t.TempDir(), "missing.yaml")

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "CURRICULUM_PATH")

	path := filepath.Join(t.TempDir(), "curriculum.yaml")
	require.NoError(t, os.WriteFile(path, []byte("levels: []\n"), 0o644))
	cfg.CurriculumPath = path
	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{
			name:  "invalid level",
			level: "INVALID",
		},
		{
			name:  "empty level",
			level: "",
		},
		{
			name:  "lowercase valid level",
			level: "debug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.LogLevel = tt.level

			err := cfg.Validate()
			if tt.level == "debug" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "LOG_LEVEL")
			}
		})
	}
}

func TestValidate_WriteQueueSettings(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*config.Config)
		expectedError string
	}{
		{
			name:          "zero workers",
			mutate:        func(c *config.Config) { c.WriteWorkerCount = 0 },
			expectedError: "WRITE_WORKER_COUNT",
		},
		{
			name:          "zero queue",
			mutate:        func(c *config.Config) { c.WriteQueueSize = 0 },
			expectedError: "WRITE_QUEUE_SIZE",
		},
		{
			name:          "zero attempts",
			mutate:        func(c *config.Config) { c.SyncMaxAttempts = 0 },
			expectedError: "SYNC_MAX_ATTEMPTS",
		},
		{
			name:          "too many attempts",
			mutate:        func(c *config.Config) { c.SyncMaxAttempts = 11 },
			expectedError: "SYNC_MAX_ATTEMPTS",
		},
		{
			name:          "negative backoff",
			mutate:        func(c *config.Config) { c.SyncBackoff = -time.Millisecond },
			expectedError: "SYNC_BACKOFF_MS",
		},
		{
			name:          "resync too often",
			mutate:        func(c *config.Config) { c.ResyncInterval = 10 * time.Millisecond },
			expectedError: "RESYNC_INTERVAL",
		},
		{
			name:          "negative expected activities",
			mutate:        func(c *config.Config) { c.ExpectedActivityCount = -1 },
			expectedError: "EXPECTED_ACTIVITY_COUNT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := config.Config{
		Addr:             "",
		DBDriver:         "oracle",
		DBPath:           "",
		LogLevel:         "INVALID",
		WriteWorkerCount: 0,
		WriteQueueSize:   0,
		SyncMaxAttempts:  0,
		ResyncInterval:   0,
	}

	err := cfg.Validate()
	require.Error(t, err)

	errStr := err.Error()
	assert.Contains(t, errStr, "ADDR cannot be empty")
	assert.Contains(t, errStr, "DB_DRIVER")
	assert.Contains(t, errStr, "DB_PATH cannot be empty")
	assert.Contains(t, errStr, "LOG_LEVEL")
	assert.Contains(t, errStr, "WRITE_WORKER_COUNT")
	assert.Contains(t, errStr, "WRITE_QUEUE_SIZE")
	assert.Contains(t, errStr, "SYNC_MAX_ATTEMPTS")
	assert.Contains(t, errStr, "RESYNC_INTERVAL")
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("DB_PATH", "custom.db")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("SYNC_BACKOFF_MS", "50")
	t.Setenv("RESYNC_INTERVAL", "2m")
	t.Setenv("WRITE_WORKER_COUNT", "not-a-number")

	cfg := config.Load()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "custom.db", cfg.DBPath)
	assert.Equal(t, config.DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 50*time.Millisecond, cfg.SyncBackoff)
	assert.Equal(t, 2*time.Minute, cfg.ResyncInterval)
	assert.Equal(t, 2, cfg.WriteWorkerCount)
}
