package schedule

import (
	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/calendar"
	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/modules/absence"
	"github.com/shiftops/rosterd/internal/modules/constraint"
	"github.com/shiftops/rosterd/internal/modules/roster"
	"github.com/shiftops/rosterd/internal/modules/rotation"
)

// WeekdayAssigner covers Monday through Friday. Every analyst affiliated
// with a shift works it unless absent, blocked, at the streak cap or off per
// their rotation pattern that weekday. Analysts picked by the AM-to-PM plan
// emit on the latest shift instead with the rotation provenance tag.
type WeekdayAssigner struct {
	cal       *calendar.Calendar
	catalog   *roster.Catalog
	pools     map[string][]domain.Analyst
	managers  map[string]*rotation.Manager
	rules     *constraint.RuleSet
	absences  *absence.Index
	amToPM    rotation.AMToPMPlan
	streaks   map[string]int
	maxStreak int
	log       zerolog.Logger
}

// NewWeekdayAssigner wires a weekday assigner for one generation run.
// pools maps shift names to their affiliated analysts in id order; streaks
// is shared with the engine and read here, never written.
func NewWeekdayAssigner(
	cal *calendar.Calendar,
	catalog *roster.Catalog,
	pools map[string][]domain.Analyst,
	managers map[string]*rotation.Manager,
	rules *constraint.RuleSet,
	absences *absence.Index,
	amToPM rotation.AMToPMPlan,
	streaks map[string]int,
	cfg domain.AlgorithmConfig,
	log zerolog.Logger,
) *WeekdayAssigner {
	return &WeekdayAssigner{
		cal:       cal,
		catalog:   catalog,
		pools:     pools,
		managers:  managers,
		rules:     rules,
		absences:  absences,
		amToPM:    amToPM,
		streaks:   streaks,
		maxStreak: cfg.MaxConsecutiveWorkDays,
		log:       log.With().Str("component", "weekday_assigner").Logger(),
	}
}

// AssignDate produces the schedules for one weekday
func (w *WeekdayAssigner) AssignDate(date string) ([]domain.Schedule, error) {
	var schedules []domain.Schedule

	for _, shift := range w.catalog.Shifts() {
		for _, analyst := range w.pools[shift.Name] {
			if w.absences.IsAbsent(analyst.ID, date) {
				continue
			}
			if w.rules.BlocksDate(analyst.ID, date) {
				continue
			}
			if w.streaks[analyst.ID] >= w.maxStreak {
				continue
			}

			worksToday, err := w.patternWorks(shift.Name, analyst.ID, date)
			if err != nil {
				return nil, err
			}
			if !worksToday {
				continue
			}

			if w.amToPM.RotatedTo(analyst.ID, date) && !w.catalog.IsLatest(shift.Name) {
				schedules = append(schedules, domain.Schedule{
					AnalystID: analyst.ID,
					Date:      date,
					ShiftType: w.catalog.Latest().Name,
					RegionID:  w.catalog.RegionID(),
					Type:      domain.ScheduleTypeAMToPMRotation,
				})
				continue
			}

			schedules = append(schedules, domain.Schedule{
				AnalystID: analyst.ID,
				Date:      date,
				ShiftType: shift.Name,
				RegionID:  w.catalog.RegionID(),
				Type:      domain.ScheduleTypeNew,
			})
		}
	}
	return schedules, nil
}

// patternWorks reports whether the analyst's rotation pattern covers the
// weekday. Analysts outside any rotation slot follow the regular
// Monday-to-Friday pattern.
func (w *WeekdayAssigner) patternWorks(shiftName, analystID, date string) (bool, error) {
	mgr := w.managers[shiftName]
	if mgr == nil {
		return domain.PatternRegular.WorksOn(w.cal.Weekday(date)), nil
	}
	return mgr.ShouldAnalystWork(analystID, date)
}
