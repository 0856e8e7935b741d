// Package absence tracks approved time off and single-day unavailability,
// and builds the lookup index the generation engine consults on every
// candidate assignment.
package absence

import (
	"sort"

	"github.com/shiftops/rosterd/internal/domain"
)

type interval struct {
	start string
	end   string
}

// Index answers absence lookups for one generation run. It is built once
// from the vacations and absences overlapping the generation window and is
// read-only afterwards, so concurrent reads need no locking.
type Index struct {
	intervals map[string][]interval
	days      map[string]map[string]bool
}

// NewIndex builds an index from vacation and absence records. Only approved
// vacations block assignment; pending and rejected requests are ignored.
func NewIndex(vacations []domain.Vacation, absences []domain.Absence) *Index {
	idx := &Index{
		intervals: make(map[string][]interval),
		days:      make(map[string]map[string]bool),
	}

	for _, v := range vacations {
		if !v.IsApproved {
			continue
		}
		idx.intervals[v.AnalystID] = append(idx.intervals[v.AnalystID], interval{
			start: v.StartDate,
			end:   v.EndDate,
		})
	}

	for analystID, ivs := range idx.intervals {
		sort.Slice(ivs, func(i, j int) bool { return ivs[i].start < ivs[j].start })
		idx.intervals[analystID] = ivs
	}

	for _, a := range absences {
		if idx.days[a.AnalystID] == nil {
			idx.days[a.AnalystID] = make(map[string]bool)
		}
		idx.days[a.AnalystID][a.Date] = true
	}

	return idx
}

// IsAbsent reports whether the analyst is unavailable on the date, either
// through an approved vacation covering it or a single-day absence record.
// Dates are normalized YYYY-MM-DD strings.
func (idx *Index) IsAbsent(analystID, date string) bool {
	if idx.days[analystID][date] {
		return true
	}

	for _, iv := range idx.intervals[analystID] {
		if iv.start > date {
			break
		}
		if date <= iv.end {
			return true
		}
	}

	return false
}

// AbsentDays returns how many days in the inclusive window the analyst is
// unavailable, given the ordered list of window dates.
func (idx *Index) AbsentDays(analystID string, dates []string) int {
	count := 0
	for _, d := range dates {
		if idx.IsAbsent(analystID, d) {
			count++
		}
	}
	return count
}
