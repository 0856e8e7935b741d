package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftops/rosterd/internal/config"
	"github.com/shiftops/rosterd/internal/di"
	"github.com/shiftops/rosterd/internal/scheduler"
)

func newTestServer(t *testing.T) (*Server, *di.Container) {
	t.Helper()

	cfg := &config.Config{
		DataDir:  t.TempDir(),
		Port:     0,
		LogLevel: "info",
		Engine: config.EngineConfig{
			MinWeekendGapDays:      13,
			MaxConsecutiveWorkDays: 5,
			MaxScreenerDaysDefault: 10,
			MinScreenerDaysDefault: 2,
			HolidayCompCredit:      true,
			GenerationDeadlineSecs: 120,
		},
		Retention: config.RetentionConfig{GenerationLogDays: 180},
	}
	log := zerolog.Nop()

	container, jobs, err := di.Wire(cfg, log)
	require.NoError(t, err)
	t.Cleanup(container.Close)

	sched := scheduler.New(container.EventBus, log)

	srv := New(Config{
		Log:       log,
		Config:    cfg,
		Port:      0,
		DevMode:   true,
		Container: container,
		Jobs:      jobs,
		Scheduler: sched,
	})

	return srv, container
}

func doRequest(t *testing.T, srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestServer_HandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "rosterd", body["service"])
}

func TestServer_ModuleRoutesMounted(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := []byte(`{"id":"emea","name":"EMEA","timezone":"Europe/Athens","active":true}`)
	rec := doRequest(t, srv, http.MethodPost, "/api/roster/regions", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/roster/regions?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "emea")

	// Each module mounts under /api
	for _, path := range []string{
		"/api/compoff/balances",
		"/api/schedule/generation-log",
		"/api/rotation/statistics",
		"/api/vacations?start=2026-01-01&end=2026-12-31",
		"/api/absences?start=2026-01-01&end=2026-12-31",
	} {
		rec := doRequest(t, srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestServer_SystemStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/system/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Len(t, status.Databases, 3)
	assert.Equal(t, "ok", status.Databases["roster"])
	assert.False(t, status.PendingRestore)
	assert.GreaterOrEqual(t, status.Goroutines, 1)
}

func TestServer_DatabaseStats(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/system/databases", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats DatabaseStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats.Databases, 3)
	for _, db := range stats.Databases {
		assert.True(t, db.Healthy, db.Name)
		assert.Greater(t, db.SizeMB, 0.0, db.Name)
	}
	assert.Greater(t, stats.TotalSizeMB, 0.0)
}

func TestServer_BackupListAndTrigger(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/system/backups", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var backups BackupsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &backups))
	assert.Empty(t, backups.Daily)
	assert.Empty(t, backups.Weekly)
	assert.Empty(t, backups.Cloud)

	rec = doRequest(t, srv, http.MethodPost, "/api/system/backups/daily", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/system/backups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &backups))
	require.Len(t, backups.Daily, 1)
	assert.Equal(t, 2, backups.Daily[0].Databases)
}

func TestServer_RestoreEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/system/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pending PendingRestoreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	assert.False(t, pending.Pending)
	assert.Nil(t, pending.Restore)

	// Staging from the cloud is not configured in this setup
	rec = doRequest(t, srv, http.MethodPost, "/api/system/restore/rosterd-backup-2026-01-01-000000.tar.gz", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")

	// Cancel without a staged restore is a no-op
	rec = doRequest(t, srv, http.MethodDelete, "/api/system/restore", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_JobTriggers(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/system/jobs/generation-log-prune", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "success")

	// Cloud backup is not configured, so the trigger reports an error status
	rec = doRequest(t, srv, http.MethodPost, "/api/system/jobs/cloud-backup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
}

func TestServer_DiskUsage(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/system/disk", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var disk DiskUsageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &disk))
	assert.Greater(t, disk.TotalMB, 0.0)
}
