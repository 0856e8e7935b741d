// Package screener assigns the daily screener duty with an exhaustive
// least-recently-used policy: nobody screens twice until every eligible
// analyst has screened once. One tracker serves every shift so an analyst
// cannot build up separate morning and evening debts.
package screener

import (
	"sort"

	"github.com/shiftops/rosterd/internal/domain"
)

// Tracker keeps the running screener count and the most recent screener date
// per analyst. Weekend duty records through the same counter, which is how
// the added weekend burden offsets weekday screener picks.
type Tracker struct {
	strategy domain.ScreenerStrategy
	counts   map[string]int
	lastDate map[string]string
	workload map[string]int
}

// NewTracker creates a tracker for one generation run
func NewTracker(strategy domain.ScreenerStrategy) *Tracker {
	if strategy == "" {
		strategy = domain.ScreenerRoundRobin
	}
	return &Tracker{
		strategy: strategy,
		counts:   make(map[string]int),
		lastDate: make(map[string]string),
		workload: make(map[string]int),
	}
}

// Seed replays historical screener designations into the tracker
func (t *Tracker) Seed(schedules []domain.Schedule) {
	for _, s := range schedules {
		if s.IsScreener {
			t.Record(s.AnalystID, s.Date)
		}
	}
}

// SetWorkload installs per-analyst total assignment days for the
// WORKLOAD_BALANCE tie-break. ROUND_ROBIN ignores it.
func (t *Tracker) SetWorkload(totals map[string]int) {
	t.workload = make(map[string]int, len(totals))
	for id, days := range totals {
		t.workload[id] = days
	}
}

// Record notes one screener designation (or one weekend duty day, which
// counts as the same debt unit).
func (t *Tracker) Record(analystID, date string) {
	t.counts[analystID]++
	if date > t.lastDate[analystID] {
		t.lastDate[analystID] = date
	}
}

// Count returns the running screener count for an analyst
func (t *Tracker) Count(analystID string) int {
	return t.counts[analystID]
}

// LastDate returns the most recent screener date, empty when never recorded
func (t *Tracker) LastDate(analystID string) string {
	return t.lastDate[analystID]
}

// SelectScreener picks the screener for one (date, shift) roster and records
// the pick. Candidates sort by running count, then least-recent screener
// date with never-screened first, then analyst id.
func (t *Tracker) SelectScreener(pool []string, date string) string {
	if len(pool) == 0 {
		return ""
	}

	sorted := append([]string(nil), pool...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return t.less(sorted[i], sorted[j])
	})

	chosen := sorted[0]
	t.Record(chosen, date)
	return chosen
}

func (t *Tracker) less(a, b string) bool {
	if t.counts[a] != t.counts[b] {
		return t.counts[a] < t.counts[b]
	}
	if t.strategy == domain.ScreenerWorkloadBalance && t.workload[a] != t.workload[b] {
		return t.workload[a] < t.workload[b]
	}
	if t.lastDate[a] != t.lastDate[b] {
		return t.lastDate[a] < t.lastDate[b]
	}
	return a < b
}
