// Package di provides dependency injection for service implementations.
package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/config"
	"github.com/shiftops/rosterd/internal/events"
	"github.com/shiftops/rosterd/internal/modules/compoff"
	"github.com/shiftops/rosterd/internal/modules/constraint"
	"github.com/shiftops/rosterd/internal/modules/schedule"
	"github.com/shiftops/rosterd/internal/modules/statistics"
	"github.com/shiftops/rosterd/internal/reliability"
)

// InitializeServices creates all services and stores them in the container
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Event bus first; most services publish or subscribe
	container.EventBus = events.NewBus(log)

	// Constraint engine evaluates scheduling constraints for the generator
	// and the swap validator
	container.ConstraintEngine = constraint.NewEngine(container.ConstraintRepo, constraint.Defaults{
		MaxScreenerDays: cfg.Engine.MaxScreenerDaysDefault,
		MinScreenerDays: cfg.Engine.MinScreenerDaysDefault,
	}, log)

	// Comp-off ledger (ledger.db; append-only accrual and redemption)
	container.CompOffLedger = compoff.NewLedger(container.LedgerDB.Conn(), container.EventBus, log)

	// Schedule generation engine. Takes every repository it reads during a
	// generation pass plus the roster connection for transactional persistence.
	container.Engine = schedule.NewEngine(schedule.Deps{
		Regions:       container.RegionRepo,
		Shifts:        container.ShiftRepo,
		Analysts:      container.AnalystRepo,
		Holidays:      container.HolidayRepo,
		Vacations:     container.VacationRepo,
		Absences:      container.AbsenceRepo,
		Constraints:   container.ConstraintEngine,
		Schedules:     container.ScheduleRepo,
		Rotations:     container.RotationRepo,
		Continuity:    container.ContinuityRepo,
		GenerationLog: container.GenerationLogRepo,
		Ledger:        container.CompOffLedger,
		RosterDB:      container.RosterDB.Conn(),
		Bus:           container.EventBus,
	}, cfg.Engine, log)

	// Swap validator enforces the same streak limit the generator uses
	container.SwapValidator = schedule.NewSwapValidator(
		container.ScheduleRepo,
		cfg.Engine.MaxConsecutiveWorkDays,
		container.EventBus,
		log,
	)

	// Statistics service (subscribes to generation events for cache invalidation)
	container.StatisticsService = statistics.NewService(
		container.ScheduleRepo,
		container.RotationRepo,
		container.GenerationLogRepo,
		container.AnalystRepo,
		container.ReportCache,
		container.EventBus,
		log,
	)

	// Reliability services. Local snapshots always run; the cloud pair is
	// only wired when an endpoint and bucket are configured.
	container.BackupService = reliability.NewBackupService(
		container.Databases,
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "backups"),
		container.EventBus,
		log,
	)

	if cfg.Backup != nil && cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), *cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		container.S3Client = s3Client
		container.S3BackupService = reliability.NewS3BackupService(
			s3Client,
			container.BackupService,
			cfg.DataDir,
			container.EventBus,
			log,
		)
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Cloud backup enabled")
	}

	container.RestoreService = reliability.NewRestoreService(container.S3BackupService, cfg.DataDir, log)

	container.HealthService = reliability.NewDatabaseHealthService(
		container.Databases,
		container.BackupService,
		container.RestoreService,
		log,
	)

	log.Info().Msg("Services initialized")

	return nil
}
