package schedule

import (
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftops/rosterd/internal/domain"
)

func upsertOne(t *testing.T, repo *Repository, s domain.Schedule, overwrite bool) bool {
	t.Helper()
	tx, err := repo.db.Begin()
	require.NoError(t, err)
	ok, err := repo.UpsertTx(tx, s, overwrite)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return ok
}

func TestRepository_GetByRegionRangeOrder(t *testing.T) {
	db := openSchemaDB(t, "roster_schema.sql")
	repo := NewRepository(db, zerolog.Nop())

	rows := []domain.Schedule{
		{AnalystID: "a2", Date: "2026-02-03", ShiftType: "AM", RegionID: "apac", Type: domain.ScheduleTypeNew},
		{AnalystID: "a1", Date: "2026-02-03", ShiftType: "PM", RegionID: "apac", Type: domain.ScheduleTypeNew},
		{AnalystID: "a1", Date: "2026-02-02", ShiftType: "AM", RegionID: "apac", Type: domain.ScheduleTypeNew},
		{AnalystID: "a1", Date: "2026-02-03", ShiftType: "AM", RegionID: "apac", Type: domain.ScheduleTypeNew},
		{AnalystID: "a9", Date: "2026-02-03", ShiftType: "AM", RegionID: "emea", Type: domain.ScheduleTypeNew},
	}
	for _, s := range rows {
		assert.True(t, upsertOne(t, repo, s, false))
	}

	got, err := repo.GetByRegionRange("apac", "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "2026-02-02", got[0].Date)
	assert.Equal(t, "a1", got[1].AnalystID)
	assert.Equal(t, "a2", got[2].AnalystID)
	assert.Equal(t, "PM", got[3].ShiftType)

	count, err := repo.CountByRegionRange("apac", "2026-02-01", "2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	mine, err := repo.GetByAnalystRange("a1", "2026-02-03", "2026-02-03")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "AM", mine[0].ShiftType)
	assert.Equal(t, "PM", mine[1].ShiftType)
}

func TestRepository_UpsertPreservesExistingWithoutOverwrite(t *testing.T) {
	db := openSchemaDB(t, "roster_schema.sql")
	repo := NewRepository(db, zerolog.Nop())

	original := domain.Schedule{
		AnalystID: "a1", Date: "2026-02-02", ShiftType: "AM",
		RegionID: "apac", Type: domain.ScheduleTypeNew, IsScreener: true,
	}
	assert.True(t, upsertOne(t, repo, original, false))

	// same key again: skipped, existing row untouched
	clashing := original
	clashing.IsScreener = false
	assert.False(t, upsertOne(t, repo, clashing, false))

	got, err := repo.GetByAnalystRange("a1", "2026-02-02", "2026-02-02")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsScreener)
}

func TestRepository_UpsertOverwriteReplacesAndClearsOtherShift(t *testing.T) {
	db := openSchemaDB(t, "roster_schema.sql")
	repo := NewRepository(db, zerolog.Nop())

	assert.True(t, upsertOne(t, repo, domain.Schedule{
		AnalystID: "a1", Date: "2026-02-02", ShiftType: "PM",
		RegionID: "apac", Type: domain.ScheduleTypeNew,
	}, false))

	assert.True(t, upsertOne(t, repo, domain.Schedule{
		AnalystID: "a1", Date: "2026-02-02", ShiftType: "AM",
		RegionID: "apac", Type: domain.ScheduleTypeNew,
	}, true))

	got, err := repo.GetByAnalystRange("a1", "2026-02-02", "2026-02-02")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AM", got[0].ShiftType)
}

func TestRepository_UpsertOverwriteReportsOnlyRealChanges(t *testing.T) {
	db := openSchemaDB(t, "roster_schema.sql")
	repo := NewRepository(db, zerolog.Nop())

	s := domain.Schedule{
		AnalystID: "a1", Date: "2026-02-02", ShiftType: "AM",
		RegionID: "apac", Type: domain.ScheduleTypeNew,
	}
	assert.True(t, upsertOne(t, repo, s, true))

	// rewriting the identical row is not a change
	assert.False(t, upsertOne(t, repo, s, true))

	s.IsScreener = true
	assert.True(t, upsertOne(t, repo, s, true))

	got, err := repo.GetByAnalystRange("a1", "2026-02-02", "2026-02-02")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsScreener)
}

func TestRepository_DeleteMissingRow(t *testing.T) {
	db := openSchemaDB(t, "roster_schema.sql")
	repo := NewRepository(db, zerolog.Nop())

	assert.True(t, upsertOne(t, repo, domain.Schedule{
		AnalystID: "a1", Date: "2026-02-02", ShiftType: "AM",
		RegionID: "apac", Type: domain.ScheduleTypeNew,
	}, false))

	require.NoError(t, repo.Delete("a1", "2026-02-02", "AM"))
	err := repo.Delete("a1", "2026-02-02", "AM")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerationLogRepository_InsertAndGet(t *testing.T) {
	db := openSchemaDB(t, "roster_schema.sql")
	repo := NewGenerationLogRepository(db, zerolog.Nop())

	entry := domain.GenerationLog{
		RunID:              "run-1",
		Performer:          "tester",
		AlgorithmName:      domain.CoreAlgorithmName,
		StartDate:          "2026-02-01",
		EndDate:            "2026-02-14",
		SchedulesGenerated: 50,
		ConflictsDetected:  1,
		FairnessScore:      0.97,
		ExecutionTimeMs:    12,
		Status:             domain.GenerationSuccess,
		Metadata:           map[string]string{"region_id": "apac", "rows_written": "50"},
	}
	require.NoError(t, repo.Insert(entry))

	got, err := repo.GetByRunID("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tester", got.Performer)
	assert.Equal(t, domain.GenerationSuccess, got.Status)
	assert.Equal(t, 50, got.SchedulesGenerated)
	assert.Equal(t, 1, got.ConflictsDetected)
	assert.InDelta(t, 0.97, got.FairnessScore, 1e-9)
	assert.Equal(t, "apac", got.Metadata["region_id"])
	assert.Empty(t, got.ErrorMessage)
	assert.False(t, got.CreatedAt.IsZero())

	missing, err := repo.GetByRunID("run-none")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGenerationLogRepository_ListNewestFirst(t *testing.T) {
	db := openSchemaDB(t, "roster_schema.sql")
	repo := NewGenerationLogRepository(db, zerolog.Nop())

	_, err := db.Exec(
		`INSERT INTO generation_log (run_id, performer, algorithm_name, start_date, end_date, status, created_at)
		 VALUES ('run-old', 'tester', 'core_v1', '2026-01-01', '2026-01-07', 'SUCCESS', datetime('now', '-1 hour'))`)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(domain.GenerationLog{
		RunID: "run-new", Performer: "tester", AlgorithmName: domain.CoreAlgorithmName,
		StartDate: "2026-02-01", EndDate: "2026-02-07", Status: domain.GenerationFailed,
		ErrorMessage: "region does not exist",
	}))

	entries, err := repo.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run-new", entries[0].RunID)
	assert.Equal(t, "region does not exist", entries[0].ErrorMessage)
	assert.Equal(t, "run-old", entries[1].RunID)

	limited, err := repo.List(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "run-new", limited[0].RunID)
}

func TestGenerationLogRepository_PruneOlderThan(t *testing.T) {
	db := openSchemaDB(t, "roster_schema.sql")
	repo := NewGenerationLogRepository(db, zerolog.Nop())

	_, err := db.Exec(
		`INSERT INTO generation_log (run_id, performer, algorithm_name, start_date, end_date, status, created_at)
		 VALUES ('run-stale', 'tester', 'core_v1', '2025-10-01', '2025-10-07', 'SUCCESS', datetime('now', '-100 days'))`)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(domain.GenerationLog{
		RunID: "run-fresh", Performer: "tester", AlgorithmName: domain.CoreAlgorithmName,
		StartDate: "2026-02-01", EndDate: "2026-02-07", Status: domain.GenerationSuccess,
	}))

	pruned, err := repo.PruneOlderThan(90)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	entries, err := repo.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-fresh", entries[0].RunID)

	skipped, err := repo.PruneOlderThan(0)
	require.NoError(t, err)
	assert.Zero(t, skipped)
}
