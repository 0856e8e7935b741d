// Package server provides the HTTP server and routing for rosterd.
package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/shiftops/rosterd/internal/di"
	"github.com/shiftops/rosterd/internal/reliability"
	"github.com/shiftops/rosterd/internal/scheduler"
	"github.com/shiftops/rosterd/internal/version"
)

// SystemHandlers exposes system status, database health, backups and restore
// staging over HTTP.
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	container *di.Container
	jobs      *di.JobInstances
	sched     *scheduler.Scheduler
	startTime time.Time
}

// NewSystemHandlers creates the system handlers
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	container *di.Container,
	jobs *di.JobInstances,
	sched *scheduler.Scheduler,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		container: container,
		jobs:      jobs,
		sched:     sched,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers all system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/databases", h.HandleDatabaseStats)
		r.Get("/disk", h.HandleDiskUsage)

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", h.HandleListBackups)
			r.Post("/daily", h.HandleTriggerDailyBackup)
			r.Post("/weekly", h.HandleTriggerWeeklyBackup)
		})

		r.Route("/restore", func(r chi.Router) {
			r.Get("/", h.HandlePendingRestore)
			r.Post("/{backup}", h.HandleStageRestore)
			r.Delete("/", h.HandleCancelRestore)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/daily-maintenance", h.HandleTriggerDailyMaintenance)
			r.Post("/weekly-maintenance", h.HandleTriggerWeeklyMaintenance)
			r.Post("/cloud-backup", h.HandleTriggerCloudBackup)
			r.Post("/generation-log-prune", h.HandleTriggerGenerationLogPrune)
		})
	})
}

// SystemStatusResponse is the payload for GET /api/system/status
type SystemStatusResponse struct {
	Status         string            `json:"status"`
	Version        string            `json:"version"`
	UptimeSecs     int64             `json:"uptime_secs"`
	Goroutines     int               `json:"goroutines"`
	CPUPercent     float64           `json:"cpu_percent"`
	MemoryPercent  float64           `json:"memory_percent"`
	MemoryUsedMB   float64           `json:"memory_used_mb"`
	Databases      map[string]string `json:"databases"`
	PendingRestore bool              `json:"pending_restore"`
}

// HandleSystemStatus returns process and database status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuAvg, memPercent, memUsedMB := h.getSystemStats()

	// Status polling pings; the full integrity check belongs to the daily job
	status := "healthy"
	databases := make(map[string]string, len(h.container.Databases))
	for name, db := range h.container.Databases {
		if err := db.Conn().PingContext(r.Context()); err != nil {
			databases[name] = "unreachable"
			status = "degraded"
			continue
		}
		databases[name] = "ok"
	}

	pending := false
	if h.container.RestoreService != nil {
		pending = h.container.RestoreService.CheckPendingRestore()
	}

	h.writeJSON(w, SystemStatusResponse{
		Status:         status,
		Version:        version.Version,
		UptimeSecs:     int64(time.Since(h.startTime).Seconds()),
		Goroutines:     runtime.NumGoroutine(),
		CPUPercent:     cpuAvg,
		MemoryPercent:  memPercent,
		MemoryUsedMB:   memUsedMB,
		Databases:      databases,
		PendingRestore: pending,
	})
}

// DatabaseStatusInfo describes one database for GET /api/system/databases
type DatabaseStatusInfo struct {
	Name          string  `json:"name"`
	Profile       string  `json:"profile"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	FreelistPages int64   `json:"freelist_pages"`
	Healthy       bool    `json:"healthy"`
	Error         string  `json:"error,omitempty"`
}

// DatabaseStatsResponse is the payload for GET /api/system/databases
type DatabaseStatsResponse struct {
	Databases   []DatabaseStatusInfo `json:"databases"`
	TotalSizeMB float64              `json:"total_size_mb"`
	LastChecked string               `json:"last_checked"`
}

// HandleDatabaseStats returns per-database stats with a quick health check
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	names := h.container.BackupService.GetDatabaseNames(true)
	infos := make([]DatabaseStatusInfo, 0, len(names))
	totalSizeMB := 0.0

	for _, name := range names {
		db := h.container.Databases[name]
		info := DatabaseStatusInfo{
			Name:    name,
			Profile: string(db.Profile()),
			Healthy: true,
		}

		if stats, err := db.GetStats(); err == nil {
			info.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			info.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
			info.PageCount = stats.PageCount
			info.FreelistPages = stats.FreelistCount
			totalSizeMB += info.SizeMB
		} else {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to collect database stats")
		}

		if err := db.QuickCheck(r.Context()); err != nil {
			info.Healthy = false
			info.Error = err.Error()
		}

		infos = append(infos, info)
	}

	h.writeJSON(w, DatabaseStatsResponse{
		Databases:   infos,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	})
}

// DiskUsageResponse is the payload for GET /api/system/disk
type DiskUsageResponse struct {
	DataDirMB float64 `json:"data_dir_mb"`
	BackupsMB float64 `json:"backups_mb"`
	TotalMB   float64 `json:"total_mb"`
}

// HandleDiskUsage returns disk usage of the data and backup directories
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting disk usage")

	backupsDir := filepath.Join(h.dataDir, "backups")
	backupsSize := h.getDirSize(backupsDir)
	dataSize := h.getDirSize(h.dataDir)

	h.writeJSON(w, DiskUsageResponse{
		DataDirMB: dataSize - backupsSize,
		BackupsMB: backupsSize,
		TotalMB:   dataSize,
	})
}

// BackupsResponse is the payload for GET /api/system/backups
type BackupsResponse struct {
	Daily  []reliability.SnapshotInfo `json:"daily"`
	Weekly []reliability.SnapshotInfo `json:"weekly"`
	Cloud  []reliability.BackupInfo   `json:"cloud,omitempty"`
}

// HandleListBackups lists local snapshots and, when configured, cloud archives
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	daily, err := h.container.BackupService.ListSnapshots("daily")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	weekly, err := h.container.BackupService.ListSnapshots("weekly")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := BackupsResponse{Daily: daily, Weekly: weekly}

	if h.container.S3BackupService != nil {
		cloud, err := h.container.S3BackupService.ListBackups(r.Context())
		if err != nil {
			// Local listings are still useful when the remote store is down
			h.log.Warn().Err(err).Msg("Failed to list cloud backups")
		} else {
			response.Cloud = cloud
		}
	}

	h.writeJSON(w, response)
}

// HandleTriggerDailyBackup snapshots the durable databases immediately
// POST /api/system/backups/daily
func (h *SystemHandlers) HandleTriggerDailyBackup(w http.ResponseWriter, r *http.Request) {
	h.log.Info().Msg("Manual daily backup triggered")

	if err := h.container.BackupService.DailyBackup(); err != nil {
		h.log.Error().Err(err).Msg("Manual daily backup failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Daily backup completed",
	})
}

// HandleTriggerWeeklyBackup snapshots all databases immediately
// POST /api/system/backups/weekly
func (h *SystemHandlers) HandleTriggerWeeklyBackup(w http.ResponseWriter, r *http.Request) {
	h.log.Info().Msg("Manual weekly backup triggered")

	if err := h.container.BackupService.WeeklyBackup(); err != nil {
		h.log.Error().Err(err).Msg("Manual weekly backup failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Weekly backup completed",
	})
}

// PendingRestoreResponse is the payload for GET /api/system/restore
type PendingRestoreResponse struct {
	Pending bool                       `json:"pending"`
	Restore *reliability.RestoreMarker `json:"restore,omitempty"`
}

// HandlePendingRestore reports the staged restore, if any
func (h *SystemHandlers) HandlePendingRestore(w http.ResponseWriter, r *http.Request) {
	marker, err := h.container.RestoreService.PendingRestore()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, PendingRestoreResponse{
		Pending: marker != nil,
		Restore: marker,
	})
}

// HandleStageRestore downloads a cloud archive and stages it for the next
// startup
// POST /api/system/restore/{backup}
func (h *SystemHandlers) HandleStageRestore(w http.ResponseWriter, r *http.Request) {
	backupName := chi.URLParam(r, "backup")

	h.log.Warn().Str("backup", backupName).Msg("Restore staging requested")

	if err := h.container.RestoreService.StageRestore(r.Context(), backupName); err != nil {
		h.log.Error().Err(err).Str("backup", backupName).Msg("Failed to stage restore")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Restore staged; restart the service to apply",
	})
}

// HandleCancelRestore discards a staged restore
// DELETE /api/system/restore
func (h *SystemHandlers) HandleCancelRestore(w http.ResponseWriter, r *http.Request) {
	if err := h.container.RestoreService.CancelPendingRestore(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": "Staged restore cancelled",
	})
}

// HandleTriggerDailyMaintenance runs the daily maintenance job immediately
// POST /api/system/jobs/daily-maintenance
func (h *SystemHandlers) HandleTriggerDailyMaintenance(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.jobs.DailyMaintenance, "Daily maintenance")
}

// HandleTriggerWeeklyMaintenance runs the weekly maintenance job immediately
// POST /api/system/jobs/weekly-maintenance
func (h *SystemHandlers) HandleTriggerWeeklyMaintenance(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.jobs.WeeklyMaintenance, "Weekly maintenance")
}

// HandleTriggerCloudBackup runs the cloud backup job immediately
// POST /api/system/jobs/cloud-backup
func (h *SystemHandlers) HandleTriggerCloudBackup(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil || h.jobs.CloudBackup == nil {
		h.writeJSON(w, map[string]string{
			"status":  "error",
			"message": "Cloud backup is not configured",
		})
		return
	}
	h.triggerJob(w, h.jobs.CloudBackup, "Cloud backup")
}

// HandleTriggerGenerationLogPrune runs the generation log prune job immediately
// POST /api/system/jobs/generation-log-prune
func (h *SystemHandlers) HandleTriggerGenerationLogPrune(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.jobs.GenerationLogPrune, "Generation log prune")
}

// triggerJob runs one registered job through the scheduler so the usual
// lifecycle events and logs fire.
func (h *SystemHandlers) triggerJob(w http.ResponseWriter, job scheduler.Job, label string) {
	if job == nil || h.sched == nil {
		h.writeJSON(w, map[string]string{
			"status":  "error",
			"message": label + " job not registered",
		})
		return
	}

	h.log.Info().Str("job", job.Name()).Msg("Manual job trigger")

	if err := h.sched.RunNow(job); err != nil {
		h.log.Error().Err(err).Str("job", job.Name()).Msg("Manual job run failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": label + " completed",
	})
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats returns CPU usage, RAM usage percent and RAM used in MB.
// The CPU sample interval is 100ms to keep status responses fast.
func (h *SystemHandlers) getSystemStats() (float64, float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0, 0
	}

	return cpuAvg, memStat.UsedPercent, float64(memStat.Used) / 1024 / 1024
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
