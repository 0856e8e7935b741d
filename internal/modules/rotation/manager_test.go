package rotation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftops/rosterd/internal/calendar"
	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/modules/absence"
)

func testCalendar(t *testing.T) *calendar.Calendar {
	cal, err := calendar.New("UTC")
	require.NoError(t, err)
	return cal
}

func testAnalysts(ids ...string) []domain.Analyst {
	analysts := make([]domain.Analyst, len(ids))
	for i, id := range ids {
		analysts[i] = domain.Analyst{ID: id, DisplayName: id, ShiftAffiliation: "AM", Active: true}
	}
	return analysts
}

// 2025-06-01 is a Sunday.

func TestNewState_StaggeredInit(t *testing.T) {
	cal := testCalendar(t)

	state, err := NewState("core_v1", "AM", "2025-06-04", testAnalysts("a1", "a2", "a3", "a4"), WeekendHistory{}, cal)
	require.NoError(t, err)

	assert.Equal(t, "a1", state.Week1Analyst)
	assert.Equal(t, "2025-06-01", state.Week1StartDate)
	assert.Equal(t, "a2", state.Week2Analyst)
	assert.Equal(t, "2025-06-03", state.Week2StartDate)
	assert.Equal(t, []string{"a3", "a4"}, state.AvailablePool)
	assert.Empty(t, state.CompletedPool)
	assert.Equal(t, 0, state.CycleGeneration)
}

func TestNewState_HistoryOrdersPool(t *testing.T) {
	cal := testCalendar(t)

	analysts := []domain.Analyst{
		{ID: "a1", DisplayName: "Alice"},
		{ID: "a2", DisplayName: "Bob"},
		{ID: "a3", DisplayName: "Carol"},
	}
	hist := WeekendHistory{
		Days:     map[string]int{"a1": 5},
		LastDate: map[string]string{"a1": "2025-05-25", "a2": "2025-05-10"},
	}

	state, err := NewState("core_v1", "AM", "2025-06-01", analysts, hist, cal)
	require.NoError(t, err)

	// Carol never served, Bob served longest ago, Alice carries five days
	assert.Equal(t, "a3", state.Week1Analyst)
	assert.Equal(t, "a2", state.Week2Analyst)
	assert.Equal(t, []string{"a1"}, state.AvailablePool)
}

func TestNewState_EmptyRoster(t *testing.T) {
	cal := testCalendar(t)

	_, err := NewState("core_v1", "AM", "2025-06-01", nil, WeekendHistory{}, cal)
	require.Error(t, err)
	assert.Equal(t, domain.KindConfig, domain.KindOf(err))
}

func TestManager_PlanWeekendAssignment(t *testing.T) {
	cal := testCalendar(t)
	state, err := NewState("core_v1", "AM", "2025-06-01", testAnalysts("a1", "a2", "a3"), WeekendHistory{}, cal)
	require.NoError(t, err)
	m := NewManager(state, cal, zerolog.Nop())

	sunday1, pattern, err := m.PlanWeekendAssignmentForDate("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, "a1", sunday1)
	assert.Equal(t, domain.PatternSunThu, pattern)

	saturday1, pattern, err := m.PlanWeekendAssignmentForDate("2025-06-07")
	require.NoError(t, err)
	assert.Equal(t, "a2", saturday1)
	assert.Equal(t, domain.PatternTueSat, pattern)

	// week one turns over: a1 completes, a3 takes the Sunday slot
	sunday2, _, err := m.PlanWeekendAssignmentForDate("2025-06-08")
	require.NoError(t, err)
	assert.Equal(t, "a3", sunday2)

	// week two turns over with an empty pool: completed pool reseeds and a1,
	// the first to finish, returns for the Saturday slot
	saturday2, _, err := m.PlanWeekendAssignmentForDate("2025-06-14")
	require.NoError(t, err)
	assert.Equal(t, "a1", saturday2)
	assert.Equal(t, 1, m.State().CycleGeneration)

	require.Len(t, m.Cycles(), 1)
	assert.Equal(t, "AM", m.Cycles()[0].ShiftType)
	assert.Equal(t, 1, m.Cycles()[0].Generation)
	assert.Equal(t, 2, m.Cycles()[0].PoolSize)

	// full round robin: every analyst serves before anyone repeats
	sunday3, _, err := m.PlanWeekendAssignmentForDate("2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, "a2", sunday3)
}

func TestManager_TwoAnalystPerpetualCycle(t *testing.T) {
	cal := testCalendar(t)
	state, err := NewState("core_v1", "AM", "2025-06-01", testAnalysts("a1", "a2"), WeekendHistory{}, cal)
	require.NoError(t, err)
	m := NewManager(state, cal, zerolog.Nop())

	sundays := []string{"2025-06-01", "2025-06-08", "2025-06-15", "2025-06-22"}
	for _, date := range sundays {
		analyst, pattern, err := m.PlanWeekendAssignmentForDate(date)
		require.NoError(t, err)
		assert.Equal(t, "a1", analyst, "sunday %s", date)
		assert.Equal(t, domain.PatternSunThu, pattern)
	}

	saturdays := []string{"2025-06-28"}
	for _, date := range saturdays {
		analyst, _, err := m.PlanWeekendAssignmentForDate(date)
		require.NoError(t, err)
		assert.Equal(t, "a2", analyst, "saturday %s", date)
	}

	assert.Greater(t, m.State().CycleGeneration, 0)
}

func TestManager_ShouldAnalystWork(t *testing.T) {
	cal := testCalendar(t)
	state, err := NewState("core_v1", "AM", "2025-06-01", testAnalysts("a1", "a2", "a3"), WeekendHistory{}, cal)
	require.NoError(t, err)
	m := NewManager(state, cal, zerolog.Nop())

	t.Run("week one analyst follows SUN_THU", func(t *testing.T) {
		works, err := m.ShouldAnalystWork("a1", "2025-06-01") // Sunday
		require.NoError(t, err)
		assert.True(t, works)

		works, err = m.ShouldAnalystWork("a1", "2025-06-05") // Thursday
		require.NoError(t, err)
		assert.True(t, works)

		works, err = m.ShouldAnalystWork("a1", "2025-06-06") // Friday comp-off
		require.NoError(t, err)
		assert.False(t, works)
	})

	t.Run("week two analyst follows TUE_SAT", func(t *testing.T) {
		works, err := m.ShouldAnalystWork("a2", "2025-06-02") // Monday comp-off
		require.NoError(t, err)
		assert.False(t, works)

		works, err = m.ShouldAnalystWork("a2", "2025-06-07") // Saturday
		require.NoError(t, err)
		assert.True(t, works)
	})

	t.Run("pool analyst works regular weekdays", func(t *testing.T) {
		works, err := m.ShouldAnalystWork("a3", "2025-06-02") // Monday
		require.NoError(t, err)
		assert.True(t, works)

		works, err = m.ShouldAnalystWork("a3", "2025-06-07") // Saturday
		require.NoError(t, err)
		assert.False(t, works)
	})
}

func TestManager_PatternBeforeSlotWeek(t *testing.T) {
	cal := testCalendar(t)
	state, err := NewState("core_v1", "AM", "2025-06-08", testAnalysts("a1", "a2"), WeekendHistory{}, cal)
	require.NoError(t, err)
	m := NewManager(state, cal, zerolog.Nop())

	pattern, err := m.PatternFor("a1", "2025-06-06")
	require.NoError(t, err)
	assert.Equal(t, domain.PatternRegular, pattern)
}

func TestManager_Substitute(t *testing.T) {
	cal := testCalendar(t)
	state, err := NewState("core_v1", "AM", "2025-06-01", testAnalysts("a1", "a2", "a3"), WeekendHistory{}, cal)
	require.NoError(t, err)
	m := NewManager(state, cal, zerolog.Nop())

	require.NoError(t, m.SubstituteWeekendAnalyst("2025-06-01", "a3"))

	analyst, pattern, err := m.PlanWeekendAssignmentForDate("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, "a3", analyst)
	assert.Equal(t, domain.PatternSunThu, pattern)

	// substitute inherits the remaining pattern week
	works, err := m.ShouldAnalystWork("a3", "2025-06-02")
	require.NoError(t, err)
	assert.True(t, works)

	// the replaced analyst falls back to regular weekdays
	pattern, err = m.PatternFor("a1", "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, domain.PatternRegular, pattern)

	assert.Empty(t, m.AvailableCandidates())
	assert.Equal(t, []string{"a1"}, m.State().CompletedPool)
}

func TestManager_SubstituteWeekdayRejected(t *testing.T) {
	cal := testCalendar(t)
	state, err := NewState("core_v1", "AM", "2025-06-01", testAnalysts("a1", "a2"), WeekendHistory{}, cal)
	require.NoError(t, err)
	m := NewManager(state, cal, zerolog.Nop())

	err = m.SubstituteWeekendAnalyst("2025-06-04", "a2")
	require.Error(t, err)
	assert.Equal(t, domain.KindDataIntegrity, domain.KindOf(err))
}

func TestPlanAMToPMRotation(t *testing.T) {
	cal := testCalendar(t)
	source := testAnalysts("a1", "a2", "a3")

	t.Run("balances across the window", func(t *testing.T) {
		plan, err := PlanAMToPMRotation(cal, "2025-06-02", "2025-06-06", source, 1, nil, nil, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"a1"}, plan["2025-06-02"])
		assert.Equal(t, []string{"a2"}, plan["2025-06-03"])
		assert.Equal(t, []string{"a3"}, plan["2025-06-04"])
		assert.Equal(t, []string{"a1"}, plan["2025-06-05"])
		assert.Equal(t, []string{"a2"}, plan["2025-06-06"])
	})

	t.Run("prior rotation history levels the load", func(t *testing.T) {
		history := map[string]int{"a1": 5}
		plan, err := PlanAMToPMRotation(cal, "2025-06-02", "2025-06-06", source, 1, history, nil, nil)
		require.NoError(t, err)

		for date, ids := range plan {
			assert.NotContains(t, ids, "a1", "a1 is over-served and must sit out %s", date)
		}
	})

	t.Run("skips weekends and absentees", func(t *testing.T) {
		absences := absence.NewIndex(nil, []domain.Absence{
			{ID: "ab1", AnalystID: "a1", Date: "2025-06-02", Kind: "SICK"},
		})
		plan, err := PlanAMToPMRotation(cal, "2025-06-01", "2025-06-08", source, 1, nil, absences, nil)
		require.NoError(t, err)

		assert.NotContains(t, plan, "2025-06-01")
		assert.NotContains(t, plan, "2025-06-07")
		assert.NotContains(t, plan, "2025-06-08")
		assert.NotContains(t, plan["2025-06-02"], "a1")
	})

	t.Run("skips analysts on weekend duty", func(t *testing.T) {
		onDuty := func(analystID, date string) bool { return analystID == "a1" }
		plan, err := PlanAMToPMRotation(cal, "2025-06-02", "2025-06-03", source, 2, nil, nil, onDuty)
		require.NoError(t, err)

		assert.Equal(t, []string{"a2", "a3"}, plan["2025-06-02"])
		assert.True(t, plan.RotatedTo("a2", "2025-06-02"))
		assert.False(t, plan.RotatedTo("a1", "2025-06-02"))
	})

	t.Run("zero capacity plans nothing", func(t *testing.T) {
		plan, err := PlanAMToPMRotation(cal, "2025-06-02", "2025-06-06", source, 0, nil, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, plan)
	})
}

func TestGapAllowed(t *testing.T) {
	cases := []struct {
		name    string
		gap     int
		allowed bool
	}{
		{"back-to-back pattern boundary", 1, true},
		{"sun to sat hand-off", 6, true},
		{"one week apart", 7, false},
		{"twelve days", 12, false},
		{"minimum gap", 13, true},
		{"beyond minimum", 20, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, GapAllowed(tc.gap, 13))
		})
	}
}
