package schedule

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/calendar"
	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/modules/absence"
	"github.com/shiftops/rosterd/internal/modules/constraint"
	"github.com/shiftops/rosterd/internal/modules/roster"
	"github.com/shiftops/rosterd/internal/modules/rotation"
)

// pendingCredit is a comp-off credit earned during the walk. Credits post to
// the ledger only after the schedule set has been persisted, so a failed run
// leaves no ledger trace.
type pendingCredit struct {
	AnalystID   string
	Date        string // the weekend day that earned the credit
	CompOffDate string
	Reason      string
}

// WeekendAssigner covers Saturdays and Sundays from the per-shift rotation
// slots. The planned slot analyst is taken unless absent, blocked or at the
// streak cap; then the available pool is scanned in order for the first
// eligible substitute, who inherits the rest of the pattern week. Every
// weekend day worked earns one comp-off credit.
type WeekendAssigner struct {
	cal           *calendar.Calendar
	catalog       *roster.Catalog
	managers      map[string]*rotation.Manager
	rules         *constraint.RuleSet
	absences      *absence.Index
	continuity    map[string]domain.PatternContinuityRecord
	touched       map[string]bool // continuity records changed by this run
	streaks       map[string]int
	holidays      map[string]bool
	credits       []pendingCredit
	minGap        int
	maxStreak     int
	holidayCredit bool
	log           zerolog.Logger
}

// NewWeekendAssigner wires a weekend assigner for one generation run.
// continuity and streaks are shared with the engine and mutated in place.
func NewWeekendAssigner(
	cal *calendar.Calendar,
	catalog *roster.Catalog,
	managers map[string]*rotation.Manager,
	rules *constraint.RuleSet,
	absences *absence.Index,
	continuity map[string]domain.PatternContinuityRecord,
	streaks map[string]int,
	holidays map[string]bool,
	cfg domain.AlgorithmConfig,
	holidayCredit bool,
	log zerolog.Logger,
) *WeekendAssigner {
	return &WeekendAssigner{
		cal:           cal,
		catalog:       catalog,
		managers:      managers,
		rules:         rules,
		absences:      absences,
		continuity:    continuity,
		touched:       make(map[string]bool),
		streaks:       streaks,
		holidays:      holidays,
		minGap:        cfg.MinWeekendGapDays,
		maxStreak:     cfg.MaxConsecutiveWorkDays,
		holidayCredit: holidayCredit,
		log:           log.With().Str("component", "weekend_assigner").Logger(),
	}
}

// AssignDate produces the schedules for one weekend date, one analyst per
// shift. A shift whose slot cannot be covered lands in conflicts instead.
func (w *WeekendAssigner) AssignDate(date string) ([]domain.Schedule, []domain.Conflict, error) {
	var schedules []domain.Schedule
	var conflicts []domain.Conflict

	for _, shift := range w.catalog.Shifts() {
		mgr := w.managers[shift.Name]
		if mgr == nil {
			conflicts = append(conflicts, domain.Conflict{
				Date:      date,
				ShiftType: shift.Name,
				Type:      domain.ConflictNoCandidate,
				Message:   fmt.Sprintf("no analysts affiliated with shift %s", shift.Name),
			})
			continue
		}

		planned, pattern, err := mgr.PlanWeekendAssignmentForDate(date)
		if err != nil {
			return nil, nil, err
		}

		analyst := ""
		if planned != "" && w.eligible(planned, date, false) {
			analyst = planned
		} else {
			substitute := w.findSubstitute(mgr, date)
			if substitute != "" {
				if err := mgr.SubstituteWeekendAnalyst(date, substitute); err != nil {
					return nil, nil, err
				}
				analyst = substitute
			}
		}

		if analyst == "" {
			conflicts = append(conflicts, domain.Conflict{
				Date:      date,
				ShiftType: shift.Name,
				Type:      domain.ConflictNoCandidate,
				Message:   fmt.Sprintf("no eligible analyst for %s on %s", shift.Name, date),
			})
			w.log.Warn().
				Str("date", date).
				Str("shift_type", shift.Name).
				Str("planned", planned).
				Msg("Weekend slot left uncovered")
			continue
		}

		schedules = append(schedules, domain.Schedule{
			AnalystID: analyst,
			Date:      date,
			ShiftType: shift.Name,
			RegionID:  w.catalog.RegionID(),
			Type:      domain.ScheduleTypeNew,
		})

		reason := domain.ReasonWeekend
		if w.holidays[date] && w.holidayCredit {
			reason = domain.ReasonHoliday
		}
		w.credits = append(w.credits, pendingCredit{
			AnalystID:   analyst,
			Date:        date,
			CompOffDate: w.compOffDateFor(pattern, date),
			Reason:      reason,
		})

		w.continuity[analyst] = domain.PatternContinuityRecord{
			AnalystID:   analyst,
			LastPattern: pattern,
			LastEndDate: date,
		}
		w.touched[analyst] = true
	}
	return schedules, conflicts, nil
}

// eligible applies the candidate checks from the weekend policy. The gap
// rule binds substitutes only: the planned slot analyst follows the
// staggered cadence, which spaces weekends on its own once the pool is deep
// enough, and with a roster of two that cadence is the only coverage there
// is.
func (w *WeekendAssigner) eligible(analystID, date string, checkGap bool) bool {
	if w.absences.IsAbsent(analystID, date) {
		return false
	}
	if w.rules.BlocksDate(analystID, date) {
		return false
	}
	if w.streaks[analystID] >= w.maxStreak {
		return false
	}
	if checkGap {
		if rec, ok := w.continuity[analystID]; ok && rec.LastEndDate != "" && rec.LastEndDate < date {
			gap := w.cal.DaysBetween(rec.LastEndDate, date)
			if !rotation.GapAllowed(gap, w.minGap) {
				return false
			}
		}
	}
	return true
}

func (w *WeekendAssigner) findSubstitute(mgr *rotation.Manager, date string) string {
	for _, candidate := range mgr.AvailableCandidates() {
		if w.eligible(candidate, date, true) {
			return candidate
		}
	}
	return ""
}

// compOffDateFor returns the pattern's automatic comp-off day for the week
// holding the given weekend date: the Friday after a SUN_THU Sunday, the
// Monday after a TUE_SAT Saturday.
func (w *WeekendAssigner) compOffDateFor(pattern domain.WeekendPattern, date string) string {
	target := pattern.CompOffWeekday()
	if target < 0 {
		return ""
	}
	for i := 1; i <= 6; i++ {
		next := w.cal.AddDays(date, i)
		if w.cal.Weekday(next) == target {
			return next
		}
	}
	return ""
}

// Credits returns the comp-off credits earned so far
func (w *WeekendAssigner) Credits() []pendingCredit {
	return w.credits
}

// TouchedContinuity returns the continuity records this run changed
func (w *WeekendAssigner) TouchedContinuity() []domain.PatternContinuityRecord {
	records := make([]domain.PatternContinuityRecord, 0, len(w.touched))
	for _, analystID := range sortedKeys(w.touched) {
		records = append(records, w.continuity[analystID])
	}
	return records
}
