package statistics

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftops/rosterd/internal/domain"
	"github.com/shiftops/rosterd/internal/events"
	"github.com/shiftops/rosterd/internal/modules/roster"
	"github.com/shiftops/rosterd/internal/modules/rotation"
	"github.com/shiftops/rosterd/internal/modules/schedule"
)

type serviceFixture struct {
	service   *Service
	bus       *events.Bus
	rosterDB  *sql.DB
	rotations *rotation.Repository
	genLog    *schedule.GenerationLogRepository
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	log := zerolog.Nop()
	rosterDB := openSchemaDB(t, "roster_schema.sql")
	cacheDB := openSchemaDB(t, "cache_schema.sql")

	bus := events.NewBus(log)
	rotations := rotation.NewRepository(rosterDB, log)
	genLog := schedule.NewGenerationLogRepository(rosterDB, log)

	service := NewService(
		schedule.NewRepository(rosterDB, log),
		rotations,
		genLog,
		roster.NewAnalystRepository(rosterDB, log),
		NewReportCache(cacheDB, log),
		bus,
		log,
	)

	return &serviceFixture{
		service:   service,
		bus:       bus,
		rosterDB:  rosterDB,
		rotations: rotations,
		genLog:    genLog,
	}
}

func (f *serviceFixture) seedAnalyst(t *testing.T, id, name, regionID string) {
	t.Helper()
	_, err := f.rosterDB.Exec(
		`INSERT INTO analysts (id, display_name, email, region_id, shift_affiliation, active)
		 VALUES (?, ?, ?, ?, 'AM', 1)`,
		id, name, id+"@example.com", regionID,
	)
	require.NoError(t, err)
}

func (f *serviceFixture) seedScheduleRow(t *testing.T, analystID, date, shiftType string, screener bool, scheduleType domain.ScheduleType) {
	t.Helper()
	_, err := f.rosterDB.Exec(
		`INSERT INTO schedules (analyst_id, date, shift_type, is_screener, region_id, type)
		 VALUES (?, ?, ?, ?, 'apac', ?)`,
		analystID, date, shiftType, screener, string(scheduleType),
	)
	require.NoError(t, err)
}

func TestService_RotationReportTalliesRangeAndPools(t *testing.T) {
	f := newServiceFixture(t)

	f.seedAnalyst(t, "a1", "Priya Sharma", "apac")
	f.seedAnalyst(t, "a2", "Ben Okafor", "apac")

	f.seedScheduleRow(t, "a1", "2026-02-01", "AM", true, domain.ScheduleTypeNew) // Sunday, screener
	f.seedScheduleRow(t, "a1", "2026-02-02", "AM", false, domain.ScheduleTypeNew)
	f.seedScheduleRow(t, "a1", "2026-02-03", "PM", false, domain.ScheduleTypeAMToPMRotation)
	f.seedScheduleRow(t, "a2", "2026-02-02", "AM", false, domain.ScheduleTypeNew)
	f.seedScheduleRow(t, "zz", "2026-02-02", "AM", false, domain.ScheduleTypeNew) // not on the roster
	f.seedScheduleRow(t, "a1", "2026-03-01", "AM", false, domain.ScheduleTypeNew) // outside the range

	require.NoError(t, f.rotations.Save(&domain.RotationState{
		AlgorithmName:   domain.CoreAlgorithmName,
		ShiftType:       "AM",
		Week1Analyst:    "a1",
		Week1StartDate:  "2026-02-01",
		Week2Analyst:    "a2",
		Week2StartDate:  "2026-02-03",
		AvailablePool:   []string{"a2"},
		CompletedPool:   []string{"a1"},
		CycleGeneration: 1,
	}))

	report, err := f.service.RotationReport("apac", "2026-02-01", "2026-02-28")
	require.NoError(t, err)

	require.Len(t, report.Analysts, 2)
	assert.Equal(t, AnalystRotationStats{
		AnalystID:    "a1",
		DisplayName:  "Priya Sharma",
		TotalDays:    3,
		WeekendDays:  1,
		ScreenerDays: 1,
		RotationDays: 1,
	}, report.Analysts[0])
	assert.Equal(t, AnalystRotationStats{
		AnalystID:   "a2",
		DisplayName: "Ben Okafor",
		TotalDays:   1,
	}, report.Analysts[1])

	require.Len(t, report.Pools, 1)
	pool := report.Pools[0]
	assert.Equal(t, "AM", pool.ShiftType)
	assert.Equal(t, "a1", pool.Week1Analyst)
	assert.Equal(t, "2026-02-01", pool.Week1StartDate)
	assert.Equal(t, "a2", pool.Week2Analyst)
	assert.Equal(t, []string{"a2"}, pool.UpcomingOrder)
	assert.Equal(t, 1, pool.CompletedCount)
	assert.Equal(t, 1, pool.CycleGeneration)
}

func TestService_RotationReportServesCacheUntilGenerationCompletes(t *testing.T) {
	f := newServiceFixture(t)

	f.seedAnalyst(t, "a1", "Priya Sharma", "apac")
	f.seedScheduleRow(t, "a1", "2026-02-02", "AM", false, domain.ScheduleTypeNew)

	first, err := f.service.RotationReport("apac", "2026-02-01", "2026-02-07")
	require.NoError(t, err)
	require.Len(t, first.Analysts, 1)
	assert.Equal(t, 1, first.Analysts[0].TotalDays)

	// New rows stay invisible while the cached report is fresh.
	f.seedScheduleRow(t, "a1", "2026-02-03", "AM", false, domain.ScheduleTypeNew)
	second, err := f.service.RotationReport("apac", "2026-02-01", "2026-02-07")
	require.NoError(t, err)
	require.Len(t, second.Analysts, 1)
	assert.Equal(t, 1, second.Analysts[0].TotalDays)

	// A completed generation run clears the cache.
	f.bus.Emit("schedule", &events.GenerationCompletedData{RunID: "run-x", RegionID: "apac"})

	third, err := f.service.RotationReport("apac", "2026-02-01", "2026-02-07")
	require.NoError(t, err)
	require.Len(t, third.Analysts, 1)
	assert.Equal(t, 2, third.Analysts[0].TotalDays)
}

func TestService_RotationReportRejectsBadRanges(t *testing.T) {
	f := newServiceFixture(t)

	cases := []struct {
		name     string
		regionID string
		start    string
		end      string
	}{
		{"missing region", "", "2026-02-01", "2026-02-07"},
		{"bad start date", "apac", "02/01/2026", "2026-02-07"},
		{"bad end date", "apac", "2026-02-01", "next week"},
		{"inverted range", "apac", "2026-02-07", "2026-02-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report, err := f.service.RotationReport(tc.regionID, tc.start, tc.end)
			require.Error(t, err)
			assert.Equal(t, domain.KindConfig, domain.KindOf(err))
			assert.Nil(t, report)
		})
	}
}

func TestService_FairnessHistorySkipsFailedRuns(t *testing.T) {
	f := newServiceFixture(t)

	insert := func(runID string, status domain.GenerationStatus, score float64) {
		require.NoError(t, f.genLog.Insert(domain.GenerationLog{
			RunID:              runID,
			Performer:          "system",
			AlgorithmName:      domain.CoreAlgorithmName,
			StartDate:          "2026-02-01",
			EndDate:            "2026-02-14",
			Status:             status,
			FairnessScore:      score,
			SchedulesGenerated: 50,
			Metadata:           map[string]string{"region_id": "apac"},
		}))
	}
	insert("run-1", domain.GenerationSuccess, 0.95)
	insert("run-2", domain.GenerationFailed, 0)
	insert("run-3", domain.GenerationPartial, 0.7)

	points, err := f.service.FairnessHistory(0)
	require.NoError(t, err)
	require.Len(t, points, 2)

	byRun := make(map[string]FairnessPoint, len(points))
	for _, p := range points {
		byRun[p.RunID] = p
	}
	require.NotContains(t, byRun, "run-2")
	assert.Equal(t, domain.GenerationSuccess, byRun["run-1"].Status)
	assert.InDelta(t, 0.95, byRun["run-1"].FairnessScore, 1e-9)
	assert.Equal(t, "apac", byRun["run-1"].RegionID)
	assert.Equal(t, domain.GenerationPartial, byRun["run-3"].Status)
	assert.Equal(t, 50, byRun["run-3"].SchedulesGenerated)

	// The second read comes from the cache and carries the same runs.
	again, err := f.service.FairnessHistory(0)
	require.NoError(t, err)
	require.Len(t, again, 2)
	for i := range again {
		assert.Equal(t, points[i].RunID, again[i].RunID)
		assert.True(t, points[i].CreatedAt.Equal(again[i].CreatedAt))
	}
}

func TestService_FairnessHistoryRejectsNegativeLimit(t *testing.T) {
	f := newServiceFixture(t)

	points, err := f.service.FairnessHistory(-1)
	require.Error(t, err)
	assert.Equal(t, domain.KindConfig, domain.KindOf(err))
	assert.Nil(t, points)
}
