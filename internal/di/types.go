// Package di provides dependency injection type definitions.
//
// The Container is the single source of truth for all service instances.
// It is created by Wire() and handed to the HTTP server, which passes the
// services on to handlers.
package di

import (
	"github.com/shiftops/rosterd/internal/database"
	"github.com/shiftops/rosterd/internal/events"
	"github.com/shiftops/rosterd/internal/modules/absence"
	"github.com/shiftops/rosterd/internal/modules/compoff"
	"github.com/shiftops/rosterd/internal/modules/constraint"
	"github.com/shiftops/rosterd/internal/modules/roster"
	"github.com/shiftops/rosterd/internal/modules/rotation"
	"github.com/shiftops/rosterd/internal/modules/schedule"
	"github.com/shiftops/rosterd/internal/modules/statistics"
	"github.com/shiftops/rosterd/internal/reliability"
)

// Container holds all dependencies for the application.
//
// Architecture:
// - Databases: 3-database architecture (roster, ledger, cache)
// - Repositories: data access layer (regions, shifts, analysts, schedules, ...)
// - Services: business logic layer (generation engine, swap validation, reports)
// - Reliability: backups, health checks, staged restores
//
// All dependencies are injected via constructor injection.
type Container struct {
	// Databases (3-database architecture)
	// Each database uses SQLite with WAL mode and profile-specific PRAGMAs
	RosterDB *database.DB // Roster state (regions, shifts, analysts, schedules, constraints)
	LedgerDB *database.DB // Immutable comp-off audit trail
	CacheDB  *database.DB // Ephemeral report cache

	// Databases keyed by name, for the backup and health services
	Databases map[string]*database.DB

	// EventBus carries domain events to the live stream and subscribers
	EventBus *events.Bus

	// Repositories - data access layer
	RegionRepo        *roster.RegionRepository          // Coverage regions
	ShiftRepo         *roster.ShiftRepository           // Shift definitions per region
	AnalystRepo       *roster.AnalystRepository         // Analysts and their skills
	HolidayRepo       *roster.HolidayRepository         // Region holidays
	VacationRepo      *absence.VacationRepository       // Vacation windows
	AbsenceRepo       *absence.Repository               // Sick leave and other absences
	ConstraintRepo    *constraint.Repository            // Scheduling constraints
	ScheduleRepo      *schedule.Repository              // Generated schedule entries
	GenerationLogRepo *schedule.GenerationLogRepository // Generation run audit log
	RotationRepo      *rotation.Repository              // Weekend rotation history
	ContinuityRepo    *rotation.ContinuityRepository    // Pattern continuity across ranges
	ReportCache       *statistics.ReportCache           // Cached fairness and rotation reports

	// Services - business logic layer
	ConstraintEngine  *constraint.Engine      // Constraint evaluation over candidate assignments
	CompOffLedger     *compoff.Ledger         // Comp-off accrual and redemption
	Engine            *schedule.Engine        // Schedule generation engine
	SwapValidator     *schedule.SwapValidator // Shift swap validation and application
	StatisticsService *statistics.Service     // Rotation and fairness reports

	// Reliability - backups, health, restores
	BackupService   *reliability.BackupService         // Local database snapshots
	HealthService   *reliability.DatabaseHealthService // Integrity checks and recovery
	RestoreService  *reliability.RestoreService        // Staged restore management
	S3Client        *reliability.S3Client              // S3-compatible client (nil unless configured)
	S3BackupService *reliability.S3BackupService       // Cloud backup service (nil unless configured)
}

// JobInstances holds the background jobs so handlers can trigger them
// manually outside their cron schedule.
type JobInstances struct {
	DailyMaintenance   *reliability.DailyMaintenanceJob
	WeeklyMaintenance  *reliability.WeeklyMaintenanceJob
	CloudBackup        *reliability.CloudBackupJob // nil when cloud backup is not configured
	GenerationLogPrune *reliability.GenerationLogPruneJob
}

// Close closes all database connections. Safe to call with partially
// initialized databases.
func (c *Container) Close() {
	if c.RosterDB != nil {
		c.RosterDB.Close()
	}
	if c.LedgerDB != nil {
		c.LedgerDB.Close()
	}
	if c.CacheDB != nil {
		c.CacheDB.Close()
	}
}
