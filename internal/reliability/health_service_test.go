package reliability

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHealthService(t *testing.T) (*DatabaseHealthService, *BackupService, *RestoreService) {
	t.Helper()

	dataDir := t.TempDir()
	databases := newTestDatabases(t, dataDir)
	backups := NewBackupService(databases, dataDir, filepath.Join(dataDir, "backups"), nil, zerolog.Nop())
	restores := NewRestoreService(nil, dataDir, zerolog.Nop())
	health := NewDatabaseHealthService(databases, backups, restores, zerolog.Nop())
	return health, backups, restores
}

func TestDatabaseHealthService_HealthyDatabasesPass(t *testing.T) {
	health, _, _ := newTestHealthService(t)

	require.NoError(t, health.CheckAndRecover(context.Background()))
}

func TestDatabaseHealthService_GetMetrics(t *testing.T) {
	health, _, _ := newTestHealthService(t)

	metrics := health.GetMetrics()
	require.Len(t, metrics, 3)
	for name, stats := range metrics {
		assert.Greater(t, stats.SizeBytes, int64(0), "database %s should have a size", name)
		assert.Greater(t, stats.PageCount, int64(0), "database %s should have pages", name)
	}
}

func TestDatabaseHealthService_StageRestoreUsesLatestBackup(t *testing.T) {
	health, backups, restores := newTestHealthService(t)

	// Without any backup there is nothing to stage.
	err := health.stageRestore("roster")
	require.Error(t, err)
	assert.False(t, restores.CheckPendingRestore())

	require.NoError(t, backups.DailyBackup())

	require.NoError(t, health.stageRestore("roster"))
	assert.True(t, restores.CheckPendingRestore())

	marker, err := restores.PendingRestore()
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, []string{"roster"}, marker.Databases)
}

func TestDatabaseHealthService_StageRestoreWithoutBackupServices(t *testing.T) {
	dataDir := t.TempDir()
	databases := newTestDatabases(t, dataDir)
	health := NewDatabaseHealthService(databases, nil, nil, zerolog.Nop())

	err := health.stageRestore("roster")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
