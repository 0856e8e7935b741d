// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/config"
	"github.com/shiftops/rosterd/internal/reliability"
)

// RegisterJobs creates the background maintenance jobs.
// Returns JobInstances for manual triggering via API. The caller registers
// them with the scheduler using the cron expressions from the config.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{}

	// Daily maintenance: health checks, WAL checkpoints, disk space, local
	// snapshots, report cache purge
	instances.DailyMaintenance = reliability.NewDailyMaintenanceJob(
		container.Databases,
		container.HealthService,
		container.BackupService,
		container.ReportCache,
		cfg.DataDir,
		log,
	)

	// Weekly maintenance: weekly snapshot tier plus VACUUM
	instances.WeeklyMaintenance = reliability.NewWeeklyMaintenanceJob(
		container.Databases,
		container.BackupService,
		log,
	)

	// Cloud backup only runs with a configured S3 target
	if container.S3BackupService != nil {
		retentionDays := 0
		if cfg.Backup != nil {
			retentionDays = cfg.Backup.RetentionDays
		}
		instances.CloudBackup = reliability.NewCloudBackupJob(
			container.S3BackupService,
			retentionDays,
			log,
		)
	}

	// Generation log pruning keeps the audit table bounded
	instances.GenerationLogPrune = reliability.NewGenerationLogPruneJob(
		container.GenerationLogRepo,
		cfg.Retention.GenerationLogDays,
		log,
	)

	log.Info().Msg("Jobs registered")

	return instances, nil
}
