package screener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftops/rosterd/internal/domain"
)

func TestTracker_ExhaustiveLRU(t *testing.T) {
	tracker := NewTracker(domain.ScreenerRoundRobin)
	pool := []string{"a1", "a2", "a3"}

	// nobody screens twice until everyone has screened once
	first := tracker.SelectScreener(pool, "2025-06-02")
	second := tracker.SelectScreener(pool, "2025-06-03")
	third := tracker.SelectScreener(pool, "2025-06-04")
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, []string{first, second, third})

	// the cycle restarts in the same order
	assert.Equal(t, first, tracker.SelectScreener(pool, "2025-06-05"))
	assert.Equal(t, second, tracker.SelectScreener(pool, "2025-06-06"))
}

func TestTracker_TieBreaks(t *testing.T) {
	t.Run("never screened sorts before any date", func(t *testing.T) {
		tracker := NewTracker(domain.ScreenerRoundRobin)
		tracker.Record("a1", "2025-05-01")
		tracker.Record("a2", "2025-05-02")
		// a3 has the same count only after one pick each; force equal counts
		tracker.Record("a3", "2025-05-03")
		tracker.Record("a1", "2025-05-10")
		tracker.Record("a2", "2025-05-11")
		tracker.Record("a3", "2025-05-09")

		// counts all 2; a3 screened least recently
		assert.Equal(t, "a3", tracker.SelectScreener([]string{"a1", "a2", "a3"}, "2025-06-02"))
	})

	t.Run("stable id order on full tie", func(t *testing.T) {
		tracker := NewTracker(domain.ScreenerRoundRobin)
		assert.Equal(t, "a1", tracker.SelectScreener([]string{"a3", "a1", "a2"}, "2025-06-02"))
	})
}

func TestTracker_SeedFromHistory(t *testing.T) {
	tracker := NewTracker(domain.ScreenerRoundRobin)
	tracker.Seed([]domain.Schedule{
		{AnalystID: "a1", Date: "2025-05-26", ShiftType: "AM", IsScreener: true},
		{AnalystID: "a1", Date: "2025-05-28", ShiftType: "AM", IsScreener: true},
		{AnalystID: "a2", Date: "2025-05-27", ShiftType: "AM", IsScreener: true},
		{AnalystID: "a3", Date: "2025-05-27", ShiftType: "AM"}, // not a screener row
	})

	assert.Equal(t, 2, tracker.Count("a1"))
	assert.Equal(t, 1, tracker.Count("a2"))
	assert.Equal(t, 0, tracker.Count("a3"))
	assert.Equal(t, "2025-05-28", tracker.LastDate("a1"))

	// a3 owes nothing and screens first
	assert.Equal(t, "a3", tracker.SelectScreener([]string{"a1", "a2", "a3"}, "2025-06-02"))
}

func TestTracker_WeekendDebtOffsetsWeekdayPicks(t *testing.T) {
	tracker := NewTracker(domain.ScreenerRoundRobin)

	// a1 carried the weekend: both days count as screener debt
	tracker.Record("a1", "2025-06-01")

	// the next weekday picks skip a1 until the others catch up
	assert.Equal(t, "a2", tracker.SelectScreener([]string{"a1", "a2", "a3"}, "2025-06-02"))
	assert.Equal(t, "a3", tracker.SelectScreener([]string{"a1", "a2", "a3"}, "2025-06-03"))
	assert.Equal(t, "a1", tracker.SelectScreener([]string{"a1", "a2", "a3"}, "2025-06-04"))
}

func TestTracker_WorkloadBalanceTieBreak(t *testing.T) {
	tracker := NewTracker(domain.ScreenerWorkloadBalance)
	tracker.SetWorkload(map[string]int{"a1": 20, "a2": 15, "a3": 18})

	// equal counts: the lightest total load screens first
	assert.Equal(t, "a2", tracker.SelectScreener([]string{"a1", "a2", "a3"}, "2025-06-02"))
	assert.Equal(t, "a3", tracker.SelectScreener([]string{"a1", "a2", "a3"}, "2025-06-03"))
	assert.Equal(t, "a1", tracker.SelectScreener([]string{"a1", "a2", "a3"}, "2025-06-04"))
}

func TestTracker_EmptyPool(t *testing.T) {
	tracker := NewTracker(domain.ScreenerRoundRobin)
	assert.Empty(t, tracker.SelectScreener(nil, "2025-06-02"))
}

func TestTracker_DefaultsToRoundRobin(t *testing.T) {
	tracker := NewTracker("")
	require.NotNil(t, tracker)
	assert.Equal(t, "a1", tracker.SelectScreener([]string{"a2", "a1"}, "2025-06-02"))
}
