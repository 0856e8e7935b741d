package reliability

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/database"
)

// DatabaseHealthService checks database integrity and drives recovery.
// Recovery is tiered: a WAL checkpoint first, then staging the most recent
// local snapshot for restore on the next startup. Connections are never
// swapped while the process is serving.
type DatabaseHealthService struct {
	databases map[string]*database.DB
	backups   *BackupService
	restores  *RestoreService
	log       zerolog.Logger
}

// NewDatabaseHealthService creates a new health service
func NewDatabaseHealthService(
	databases map[string]*database.DB,
	backups *BackupService,
	restores *RestoreService,
	log zerolog.Logger,
) *DatabaseHealthService {
	return &DatabaseHealthService{
		databases: databases,
		backups:   backups,
		restores:  restores,
		log:       log.With().Str("service", "db_health").Logger(),
	}
}

// CheckAndRecover runs a full integrity check on every database and attempts
// recovery for any that fail. Databases left unhealthy (including those with
// a restore staged for the next startup) are reported in the returned error.
func (s *DatabaseHealthService) CheckAndRecover(ctx context.Context) error {
	var unhealthy []string

	for _, name := range s.databaseNames() {
		db := s.databases[name]

		err := db.HealthCheck(ctx)
		if err == nil {
			s.log.Debug().Str("database", name).Msg("Database healthy")
			continue
		}

		s.log.Error().
			Str("database", name).
			Err(err).
			Msg("Database health check failed")

		if werr := s.attemptWALRecovery(ctx, name, db); werr == nil {
			s.log.Info().
				Str("database", name).
				Msg("Database recovered via WAL checkpoint")
			continue
		}

		if serr := s.stageRestore(name); serr != nil {
			s.log.Error().
				Str("database", name).
				Err(serr).
				Msg("Failed to stage restore for unhealthy database")
		} else {
			s.log.Warn().
				Str("database", name).
				Msg("Restore staged from local backup; restart required to apply")
		}
		unhealthy = append(unhealthy, name)
	}

	if len(unhealthy) > 0 {
		return fmt.Errorf("databases unhealthy: %s", strings.Join(unhealthy, ", "))
	}
	return nil
}

// attemptWALRecovery forces a WAL restart checkpoint and re-checks integrity.
// This clears failures caused by a wedged or oversized WAL without touching
// the live connection.
func (s *DatabaseHealthService) attemptWALRecovery(ctx context.Context, name string, db *database.DB) error {
	s.log.Warn().
		Str("database", name).
		Msg("Attempting WAL checkpoint recovery")

	if err := db.WALCheckpoint("RESTART"); err != nil {
		return fmt.Errorf("wal checkpoint failed: %w", err)
	}

	return db.HealthCheck(ctx)
}

// stageRestore locates the most recent verified local snapshot and stages it
// for restore on the next startup.
func (s *DatabaseHealthService) stageRestore(name string) error {
	if s.backups == nil || s.restores == nil {
		return fmt.Errorf("restore staging not configured")
	}

	backupPath, err := s.backups.RestoreFromBackup(name)
	if err != nil {
		return err
	}

	return s.restores.StageDatabaseFile(name, backupPath)
}

// GetMetrics returns size and page statistics for every database.
func (s *DatabaseHealthService) GetMetrics() map[string]*database.Stats {
	metrics := make(map[string]*database.Stats, len(s.databases))
	for _, name := range s.databaseNames() {
		stats, err := s.databases[name].GetStats()
		if err != nil {
			s.log.Warn().
				Str("database", name).
				Err(err).
				Msg("Failed to collect database stats")
			continue
		}
		metrics[name] = stats
	}
	return metrics
}

func (s *DatabaseHealthService) databaseNames() []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
