package schedule

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/shiftops/rosterd/internal/calendar"
	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/modules/roster"
)

// CalculateFairness measures workload distribution over a schedule set.
// Totals count every assignment day; weekend, screener and after-hours days
// are broken out per analyst. The overall score is max(0, 1 - sigma/mean)
// over total days, so an even distribution scores 1 and the score falls as
// the spread grows. Analysts with no schedules still count: a roster member
// left idle is unfairness, not absence of data.
func CalculateFairness(
	schedules []domain.Schedule,
	analysts []domain.Analyst,
	cal *calendar.Calendar,
	catalog *roster.Catalog,
) domain.FairnessMetrics {
	if len(analysts) == 0 {
		return domain.FairnessMetrics{}
	}

	type tally struct {
		total      int
		weekend    int
		screener   int
		afterHours int
	}
	tallies := make(map[string]*tally, len(analysts))
	for _, a := range analysts {
		tallies[a.ID] = &tally{}
	}

	for _, s := range schedules {
		t, ok := tallies[s.AnalystID]
		if !ok {
			// schedules may reference analysts outside the roster snapshot
			continue
		}
		t.total++
		if cal.IsWeekend(s.Date) {
			t.weekend++
		}
		if s.IsScreener {
			t.screener++
		}
		if catalog != nil && catalog.IsLatest(s.ShiftType) {
			t.afterHours++
		}
	}

	ids := make([]string, 0, len(tallies))
	for id := range tallies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	totals := make([]float64, len(ids))
	for i, id := range ids {
		totals[i] = float64(tallies[id].total)
	}

	mean := stat.Mean(totals, nil)
	var sigma, variance float64
	if len(totals) > 1 {
		sigma = stat.PopStdDev(totals, nil)
		variance = stat.PopVariance(totals, nil)
	}

	metrics := domain.FairnessMetrics{
		Mean:         mean,
		StdDev:       sigma,
		Variance:     variance,
		OverallScore: overallScore(mean, sigma),
		PerAnalyst:   make([]domain.AnalystFairness, 0, len(ids)),
	}

	for _, id := range ids {
		t := tallies[id]
		metrics.PerAnalyst = append(metrics.PerAnalyst, domain.AnalystFairness{
			AnalystID:      id,
			TotalDays:      t.total,
			WeekendDays:    t.weekend,
			ScreenerDays:   t.screener,
			AfterHoursDays: t.afterHours,
			Score:          individualScore(float64(t.total), mean),
		})
	}
	return metrics
}

// overallScore is max(0, 1 - sigma/mean); 1 when nobody works at all
func overallScore(mean, sigma float64) float64 {
	if mean == 0 {
		if sigma == 0 {
			return 1
		}
		return 0
	}
	score := 1 - sigma/mean
	if score < 0 {
		return 0
	}
	return score
}

// individualScore is 1 - |total-mean|/mean clamped to [0, 1]
func individualScore(total, mean float64) float64 {
	if mean == 0 {
		if total == 0 {
			return 1
		}
		return 0
	}
	score := 1 - abs(total-mean)/mean
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
