// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Engine    EngineConfig
	Backup    *BackupConfig
	Cron      CronConfig
	Retention RetentionConfig
}

// EngineConfig holds the default knobs for schedule generation.
// Per-request AlgorithmConfig values override these.
type EngineConfig struct {
	MinWeekendGapDays      int
	MaxConsecutiveWorkDays int
	MaxScreenerDaysDefault int
	MinScreenerDaysDefault int
	HolidayCompCredit      bool
	GenerationDeadlineSecs int // soft deadline for a single generation pass
}

// BackupConfig holds cloud backup settings for an S3-compatible store.
// Nil Endpoint/Bucket disables cloud upload; local snapshots still run.
type BackupConfig struct {
	Enabled         bool
	Endpoint        string // S3-compatible endpoint URL (R2, MinIO, AWS)
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// CronConfig holds cron expressions for background maintenance jobs.
type CronConfig struct {
	DailyMaintenance   string
	WeeklyMaintenance  string
	CloudBackup        string
	GenerationLogPrune string
}

// RetentionConfig holds data retention settings.
type RetentionConfig struct {
	GenerationLogDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check ROSTERD_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("ROSTERD_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("ROSTERD_PORT", 8040),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Engine: EngineConfig{
			MinWeekendGapDays:      getEnvAsInt("ENGINE_MIN_WEEKEND_GAP_DAYS", 13),
			MaxConsecutiveWorkDays: getEnvAsInt("ENGINE_MAX_CONSECUTIVE_WORK_DAYS", 5),
			MaxScreenerDaysDefault: getEnvAsInt("ENGINE_MAX_SCREENER_DAYS", 10),
			MinScreenerDaysDefault: getEnvAsInt("ENGINE_MIN_SCREENER_DAYS", 2),
			HolidayCompCredit:      getEnvAsBool("ENGINE_HOLIDAY_COMP_CREDIT", true),
			GenerationDeadlineSecs: getEnvAsInt("ENGINE_GENERATION_DEADLINE_SECS", 120),
		},
		Backup: loadBackupConfig(),
		Cron: CronConfig{
			DailyMaintenance:   getEnv("CRON_DAILY_MAINTENANCE", "0 0 2 * * *"),
			WeeklyMaintenance:  getEnv("CRON_WEEKLY_MAINTENANCE", "0 0 3 * * SUN"),
			CloudBackup:        getEnv("CRON_CLOUD_BACKUP", "0 30 2 * * *"),
			GenerationLogPrune: getEnv("CRON_GENERATION_LOG_PRUNE", "0 15 3 * * *"),
		},
		Retention: RetentionConfig{
			GenerationLogDays: getEnvAsInt("RETENTION_GENERATION_LOG_DAYS", 180),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Engine.MaxConsecutiveWorkDays < 1 {
		return fmt.Errorf("ENGINE_MAX_CONSECUTIVE_WORK_DAYS must be >= 1, got %d", c.Engine.MaxConsecutiveWorkDays)
	}
	if c.Engine.MinWeekendGapDays < 0 {
		return fmt.Errorf("ENGINE_MIN_WEEKEND_GAP_DAYS must be >= 0, got %d", c.Engine.MinWeekendGapDays)
	}
	if c.Backup != nil && c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return fmt.Errorf("BACKUP_S3_BUCKET required when cloud backup is enabled")
		}
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			return fmt.Errorf("BACKUP_S3_ACCESS_KEY_ID and BACKUP_S3_SECRET_ACCESS_KEY required when cloud backup is enabled")
		}
	}
	return nil
}

// Helper functions
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// loadBackupConfig loads cloud backup configuration from environment
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:          getEnv("BACKUP_S3_REGION", "auto"),
		Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
		AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}
}
