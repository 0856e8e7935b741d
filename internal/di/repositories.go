// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/modules/absence"
	"github.com/shiftops/rosterd/internal/modules/constraint"
	"github.com/shiftops/rosterd/internal/modules/roster"
	"github.com/shiftops/rosterd/internal/modules/rotation"
	"github.com/shiftops/rosterd/internal/modules/schedule"
	"github.com/shiftops/rosterd/internal/modules/statistics"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Roster repositories (regions, shifts, analysts, holidays)
	container.RegionRepo = roster.NewRegionRepository(container.RosterDB.Conn(), log)
	container.ShiftRepo = roster.NewShiftRepository(container.RosterDB.Conn(), log)
	container.AnalystRepo = roster.NewAnalystRepository(container.RosterDB.Conn(), log)
	container.HolidayRepo = roster.NewHolidayRepository(container.RosterDB.Conn(), log)

	// Absence repositories (vacations, sick leave)
	container.VacationRepo = absence.NewVacationRepository(container.RosterDB.Conn(), log)
	container.AbsenceRepo = absence.NewRepository(container.RosterDB.Conn(), log)

	// Constraint repository
	container.ConstraintRepo = constraint.NewRepository(container.RosterDB.Conn(), log)

	// Schedule repositories (entries, generation audit log)
	container.ScheduleRepo = schedule.NewRepository(container.RosterDB.Conn(), log)
	container.GenerationLogRepo = schedule.NewGenerationLogRepository(container.RosterDB.Conn(), log)

	// Rotation repositories (weekend history, pattern continuity)
	container.RotationRepo = rotation.NewRepository(container.RosterDB.Conn(), log)
	container.ContinuityRepo = rotation.NewContinuityRepository(container.RosterDB.Conn(), log)

	// Report cache (cache.db; rebuildable)
	container.ReportCache = statistics.NewReportCache(container.CacheDB.Conn(), log)

	log.Info().Msg("Repositories initialized")

	return nil
}
