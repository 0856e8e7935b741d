package reliability

import (
	"context"
	"fmt"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/database"
)

// expiredPurger removes expired rows from a TTL cache.
type expiredPurger interface {
	DeleteExpired() (int64, error)
}

// generationLogPruner removes generation log entries past retention.
type generationLogPruner interface {
	PruneOlderThan(days int) (int64, error)
}

// DailyMaintenanceJob runs nightly upkeep: integrity checks with recovery,
// WAL checkpoints, the daily local backup, report cache cleanup and a disk
// space check.
type DailyMaintenanceJob struct {
	databases   map[string]*database.DB
	health      *DatabaseHealthService
	backups     *BackupService
	reportCache expiredPurger
	dataDir     string
	log         zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(
	databases map[string]*database.DB,
	health *DatabaseHealthService,
	backups *BackupService,
	reportCache expiredPurger,
	dataDir string,
	log zerolog.Logger,
) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases:   databases,
		health:      health,
		backups:     backups,
		reportCache: reportCache,
		dataDir:     dataDir,
		log:         log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()
	ctx := context.Background()

	// Step 1: Integrity check and auto-recovery for all databases.
	// Keep going on failure; healthy databases still get their snapshot.
	healthErr := j.health.CheckAndRecover(ctx)
	if healthErr != nil {
		j.log.Error().Err(healthErr).Msg("CRITICAL: Database recovery incomplete")
	}

	// Step 2: WAL checkpoint for all databases (prevent bloat)
	for _, name := range sortedNames(j.databases) {
		j.log.Debug().Str("database", name).Msg("Running WAL checkpoint")

		if err := j.databases[name].WALCheckpoint(""); err != nil {
			j.log.Warn().
				Str("database", name).
				Err(err).
				Msg("WAL checkpoint failed")
		}
	}

	// Step 3: Check disk space before writing new snapshots
	if err := j.checkDiskSpace(); err != nil {
		return err // HALT if critical
	}

	// Step 4: Daily local backup (roster, ledger)
	if err := j.backups.DailyBackup(); err != nil {
		j.log.Error().Err(err).Msg("Daily backup failed")
		return err
	}

	// Step 5: Purge expired report cache entries
	if j.reportCache != nil {
		if purged, err := j.reportCache.DeleteExpired(); err != nil {
			j.log.Warn().Err(err).Msg("Failed to purge expired report cache entries")
		} else if purged > 0 {
			j.log.Debug().Int64("purged", purged).Msg("Purged expired report cache entries")
		}
	}

	// Step 6: Log database size metrics
	j.logDatabaseMetrics()

	duration := time.Since(startTime)
	j.log.Info().
		Dur("duration_ms", duration).
		Msg("Daily maintenance completed")

	return healthErr
}

// checkDiskSpace verifies sufficient disk space is available
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	stat := syscall.Statfs_t{}
	if err := syscall.Statfs(j.dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	availableGB := float64(availableBytes) / 1e9

	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	// CRITICAL: Less than 500MB
	if availableGB < 0.5 {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("CRITICAL: Insufficient disk space - skipping backups")
		return fmt.Errorf("CRITICAL: only %.2f GB free", availableGB)
	}

	// ERROR: Less than 5GB
	if availableGB < 5.0 {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("Low disk space - consider cleanup")
	} else if availableGB < 10.0 {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}

	return nil
}

// logDatabaseMetrics logs size and WAL growth for every database
func (j *DailyMaintenanceJob) logDatabaseMetrics() {
	for name, stats := range j.health.GetMetrics() {
		j.log.Info().
			Str("database", name).
			Float64("size_mb", float64(stats.SizeBytes)/1024/1024).
			Float64("wal_size_mb", float64(stats.WALSizeBytes)/1024/1024).
			Int64("freelist_pages", stats.FreelistCount).
			Msg("Database metrics")
	}
}

// WeeklyMaintenanceJob runs the weekly full backup (cache included) and
// compacts the databases that see churn.
type WeeklyMaintenanceJob struct {
	databases map[string]*database.DB
	backups   *BackupService
	log       zerolog.Logger
}

// NewWeeklyMaintenanceJob creates a new weekly maintenance job
func NewWeeklyMaintenanceJob(
	databases map[string]*database.DB,
	backups *BackupService,
	log zerolog.Logger,
) *WeeklyMaintenanceJob {
	return &WeeklyMaintenanceJob{
		databases: databases,
		backups:   backups,
		log:       log.With().Str("job", "weekly_maintenance").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *WeeklyMaintenanceJob) Name() string {
	return "weekly_maintenance"
}

// Run executes the weekly maintenance job
func (j *WeeklyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting weekly maintenance")
	startTime := time.Now()

	// Step 1: Weekly full backup, cache included
	if err := j.backups.WeeklyBackup(); err != nil {
		j.log.Error().Err(err).Msg("Weekly backup failed")
		return err
	}

	// Step 2: VACUUM the databases that accumulate free pages. Schedule
	// regeneration rewrites roster rows and the report cache churns; the
	// ledger is append-only and skipped.
	for _, name := range sortedNames(j.databases) {
		if name == "ledger" {
			j.log.Debug().
				Str("database", name).
				Msg("Skipping VACUUM for append-only ledger")
			continue
		}

		if err := j.vacuumDatabase(j.databases[name], name); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("VACUUM failed")
		}
	}

	duration := time.Since(startTime)
	j.log.Info().
		Dur("duration_ms", duration).
		Msg("Weekly maintenance completed successfully")

	return nil
}

// vacuumDatabase compacts a database and logs the space reclaimed
func (j *WeeklyMaintenanceJob) vacuumDatabase(db *database.DB, name string) error {
	j.log.Debug().Str("database", name).Msg("Starting VACUUM")

	var sizeBefore float64
	if stats, err := db.GetStats(); err == nil {
		sizeBefore = float64(stats.SizeBytes) / 1024 / 1024
	}

	if err := db.Vacuum(); err != nil {
		return err
	}

	var sizeAfter float64
	if stats, err := db.GetStats(); err == nil {
		sizeAfter = float64(stats.SizeBytes) / 1024 / 1024
	}

	j.log.Info().
		Str("database", name).
		Float64("size_before_mb", sizeBefore).
		Float64("size_after_mb", sizeAfter).
		Float64("space_reclaimed_mb", sizeBefore-sizeAfter).
		Msg("VACUUM completed")

	return nil
}

// CloudBackupJob uploads a full backup archive to the configured object
// store and rotates old archives.
type CloudBackupJob struct {
	s3Backups     *S3BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewCloudBackupJob creates a new cloud backup job
func NewCloudBackupJob(s3Backups *S3BackupService, retentionDays int, log zerolog.Logger) *CloudBackupJob {
	return &CloudBackupJob{
		s3Backups:     s3Backups,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "cloud_backup").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *CloudBackupJob) Name() string {
	return "cloud_backup"
}

// Run executes the cloud backup job
func (j *CloudBackupJob) Run() error {
	ctx := context.Background()

	if err := j.s3Backups.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	// The upload succeeded; rotation failure only leaves extra archives.
	if err := j.s3Backups.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Failed to rotate cloud backups")
	}

	return nil
}

// GenerationLogPruneJob removes generation log entries past retention.
type GenerationLogPruneJob struct {
	genLog generationLogPruner
	days   int
	log    zerolog.Logger
}

// NewGenerationLogPruneJob creates a new generation log prune job
func NewGenerationLogPruneJob(genLog generationLogPruner, days int, log zerolog.Logger) *GenerationLogPruneJob {
	return &GenerationLogPruneJob{
		genLog: genLog,
		days:   days,
		log:    log.With().Str("job", "generation_log_prune").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *GenerationLogPruneJob) Name() string {
	return "generation_log_prune"
}

// Run executes the generation log prune job
func (j *GenerationLogPruneJob) Run() error {
	pruned, err := j.genLog.PruneOlderThan(j.days)
	if err != nil {
		return fmt.Errorf("failed to prune generation log: %w", err)
	}

	if pruned > 0 {
		j.log.Info().
			Int64("pruned", pruned).
			Int("retention_days", j.days).
			Msg("Pruned old generation log entries")
	}

	return nil
}

func sortedNames(databases map[string]*database.DB) []string {
	names := make([]string, 0, len(databases))
	for name := range databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
