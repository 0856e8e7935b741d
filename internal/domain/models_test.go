package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekendPattern_WorksOn(t *testing.T) {
	tests := []struct {
		name     string
		pattern  WeekendPattern
		weekday  time.Weekday
		expected bool
	}{
		{name: "SUN_THU works Sunday", pattern: PatternSunThu, weekday: time.Sunday, expected: true},
		{name: "SUN_THU works Thursday", pattern: PatternSunThu, weekday: time.Thursday, expected: true},
		{name: "SUN_THU off Friday", pattern: PatternSunThu, weekday: time.Friday, expected: false},
		{name: "SUN_THU off Saturday", pattern: PatternSunThu, weekday: time.Saturday, expected: false},
		{name: "TUE_SAT works Tuesday", pattern: PatternTueSat, weekday: time.Tuesday, expected: true},
		{name: "TUE_SAT works Saturday", pattern: PatternTueSat, weekday: time.Saturday, expected: true},
		{name: "TUE_SAT off Monday", pattern: PatternTueSat, weekday: time.Monday, expected: false},
		{name: "TUE_SAT off Sunday", pattern: PatternTueSat, weekday: time.Sunday, expected: false},
		{name: "REGULAR works Monday", pattern: PatternRegular, weekday: time.Monday, expected: true},
		{name: "REGULAR works Friday", pattern: PatternRegular, weekday: time.Friday, expected: true},
		{name: "REGULAR off Saturday", pattern: PatternRegular, weekday: time.Saturday, expected: false},
		{name: "REGULAR off Sunday", pattern: PatternRegular, weekday: time.Sunday, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.pattern.WorksOn(tt.weekday))
		})
	}
}

func TestWeekendPattern_CompOffWeekday(t *testing.T) {
	assert.Equal(t, time.Friday, PatternSunThu.CompOffWeekday())
	assert.Equal(t, time.Monday, PatternTueSat.CompOffWeekday())
	assert.Equal(t, time.Weekday(-1), PatternRegular.CompOffWeekday())
}

func TestSeverity_Weight(t *testing.T) {
	assert.Equal(t, 1.0, SeverityCritical.Weight())
	assert.Equal(t, 0.7, SeverityHigh.Weight())
	assert.Equal(t, 0.4, SeverityMedium.Weight())
	assert.Equal(t, 0.1, SeverityLow.Weight())
	assert.Equal(t, 0.0, Severity("UNKNOWN").Weight())
}

func TestConstraintType_IsHard(t *testing.T) {
	assert.True(t, ConstraintBlackoutDate.IsHard())
	assert.False(t, ConstraintUnavailableScreener.IsHard())
	assert.False(t, ConstraintPreferredScreener.IsHard())
	assert.False(t, ConstraintMinScreenerDays.IsHard())
	assert.False(t, ConstraintMaxScreenerDays.IsHard())
}

func TestSchedulingConstraint_Covers(t *testing.T) {
	c := SchedulingConstraint{StartDate: "2026-02-05", EndDate: "2026-02-10"}

	assert.False(t, c.Covers("2026-02-04"))
	assert.True(t, c.Covers("2026-02-05"))
	assert.True(t, c.Covers("2026-02-07"))
	assert.True(t, c.Covers("2026-02-10"))
	assert.False(t, c.Covers("2026-02-11"))
}

func TestSchedule_Key(t *testing.T) {
	s := Schedule{AnalystID: "a-1", Date: "2026-02-01", ShiftType: "AM"}
	assert.Equal(t, "a-1|2026-02-01|AM", s.Key())
}

func TestCompOffBalance_Available(t *testing.T) {
	b := CompOffBalance{Earned: 5, Used: 2}
	assert.Equal(t, 3, b.Available())

	empty := CompOffBalance{}
	assert.Equal(t, 0, empty.Available())
}

func TestDefaultAlgorithmConfig(t *testing.T) {
	cfg := DefaultAlgorithmConfig()

	assert.Equal(t, StrategyGreedy, cfg.OptimizationStrategy)
	assert.Equal(t, ScreenerRoundRobin, cfg.ScreenerAssignmentStrategy)
	assert.Equal(t, WeekendFairnessOptimized, cfg.WeekendRotationStrategy)
	assert.Equal(t, 1, cfg.MaxIterations)
	assert.Equal(t, 1.0, cfg.FairnessWeight)
	assert.Equal(t, 0.0, cfg.EfficiencyWeight)
	assert.Equal(t, 0.0, cfg.ConstraintWeight)
	assert.Equal(t, 13, cfg.MinWeekendGapDays)
	assert.Equal(t, 5, cfg.MaxConsecutiveWorkDays)
	assert.Equal(t, 0.0, cfg.RandomizationFactor)
}

func TestAlgorithmConfig_WithDefaults(t *testing.T) {
	t.Run("empty config gets all defaults", func(t *testing.T) {
		cfg := AlgorithmConfig{}.WithDefaults()
		assert.Equal(t, DefaultAlgorithmConfig(), cfg)
	})

	t.Run("hill climbing defaults to 1000 iterations", func(t *testing.T) {
		cfg := AlgorithmConfig{OptimizationStrategy: StrategyHillClimbing}.WithDefaults()
		assert.Equal(t, 1000, cfg.MaxIterations)
	})

	t.Run("explicit values survive", func(t *testing.T) {
		cfg := AlgorithmConfig{
			MaxIterations:     50,
			MinWeekendGapDays: 14,
			FairnessWeight:    0.5,
			ConstraintWeight:  0.5,
		}.WithDefaults()
		assert.Equal(t, 50, cfg.MaxIterations)
		assert.Equal(t, 14, cfg.MinWeekendGapDays)
		assert.Equal(t, 0.5, cfg.FairnessWeight)
		assert.Equal(t, 0.5, cfg.ConstraintWeight)
	})
}
