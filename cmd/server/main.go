// Package main is the entry point for rosterd, the work-schedule generation
// service. It wires the 3-database architecture (roster, ledger, cache),
// starts the HTTP API and the background maintenance scheduler, and handles
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shiftops/rosterd/internal/config"
	"github.com/shiftops/rosterd/internal/di"
	"github.com/shiftops/rosterd/internal/reliability"
	"github.com/shiftops/rosterd/internal/scheduler"
	"github.com/shiftops/rosterd/internal/server"
	"github.com/shiftops/rosterd/internal/version"
	"github.com/shiftops/rosterd/pkg/logger"
)

func main() {
	// Load configuration first to get the log level
	cfg, err := config.Load()
	if err != nil {
		// Use a fallback logger so the configuration error still gets logged
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("version", version.Version).Msg("Starting rosterd")

	// Check for a pending restore BEFORE opening any database. Restores are
	// staged by the restore service and applied on the next startup so a
	// running process never has its connections swapped underneath it.
	restoreSvc := reliability.NewRestoreService(nil, cfg.DataDir, log)
	if restoreSvc.CheckPendingRestore() {
		log.Warn().Msg("Pending restore detected, executing staged restore")
		if err := restoreSvc.ExecuteStagedRestore(); err != nil {
			log.Fatal().Err(err).Msg("Failed to execute staged restore")
		}
		log.Info().Msg("Restore applied, proceeding with normal startup")
	}

	// Wire databases, repositories, services and jobs
	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Register background maintenance on the cron scheduler
	sched := scheduler.New(container.EventBus, log)
	if err := sched.AddJob(cfg.Cron.DailyMaintenance, jobs.DailyMaintenance); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule daily maintenance")
	}
	if err := sched.AddJob(cfg.Cron.WeeklyMaintenance, jobs.WeeklyMaintenance); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule weekly maintenance")
	}
	if jobs.CloudBackup != nil {
		if err := sched.AddJob(cfg.Cron.CloudBackup, jobs.CloudBackup); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule cloud backup")
		}
	}
	if err := sched.AddJob(cfg.Cron.GenerationLogPrune, jobs.GenerationLogPrune); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule generation log prune")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
		Jobs:      jobs,
		Scheduler: sched,
	})

	// Start the server in a goroutine so shutdown signals are handled below
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Give in-flight requests up to 10 seconds to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the scheduler after the server so manual job triggers drain first
	sched.Stop()

	log.Info().Msg("rosterd stopped")
}
