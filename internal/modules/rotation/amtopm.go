package rotation

import (
	"sort"

	"github.com/shiftops/rosterd/internal/calendar"
	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/modules/absence"
)

// AMToPMPlan maps a date to the early-shift analysts rotated onto the latest
// shift for that day.
type AMToPMPlan map[string][]string

// RotatedTo reports whether the plan moves the analyst on the given date
func (p AMToPMPlan) RotatedTo(analystID, date string) bool {
	for _, id := range p[date] {
		if id == analystID {
			return true
		}
	}
	return false
}

// PlanAMToPMRotation spreads early-shift analysts across the latest shift
// over the window, fewest prior rotation days first. Weekend dates belong to
// the weekend rotation and are excluded, as is any analyst who is absent on
// the day or holding weekend duty that day. history carries each analyst's
// prior rotation-day count so repeated runs keep the load level.
func PlanAMToPMRotation(
	cal *calendar.Calendar,
	startDate, endDate string,
	source []domain.Analyst,
	capacityPerDay int,
	history map[string]int,
	absences *absence.Index,
	onWeekendDuty func(analystID, date string) bool,
) (AMToPMPlan, error) {
	plan := make(AMToPMPlan)
	if capacityPerDay <= 0 || len(source) == 0 {
		return plan, nil
	}

	dates, err := cal.WalkDays(startDate, endDate)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(source))
	for _, a := range source {
		counts[a.ID] = history[a.ID]
	}

	for _, date := range dates {
		if cal.IsWeekend(date) {
			continue
		}

		candidates := make([]domain.Analyst, 0, len(source))
		for _, a := range source {
			if absences != nil && absences.IsAbsent(a.ID, date) {
				continue
			}
			if onWeekendDuty != nil && onWeekendDuty(a.ID, date) {
				continue
			}
			candidates = append(candidates, a)
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			ci, cj := counts[candidates[i].ID], counts[candidates[j].ID]
			if ci != cj {
				return ci < cj
			}
			return candidates[i].ID < candidates[j].ID
		})

		n := capacityPerDay
		if n > len(candidates) {
			n = len(candidates)
		}
		for _, a := range candidates[:n] {
			plan[date] = append(plan[date], a.ID)
			counts[a.ID]++
		}
	}
	return plan, nil
}
