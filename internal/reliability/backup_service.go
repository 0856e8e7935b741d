// Package reliability provides database backups, health recovery, cloud
// archival and the background maintenance jobs that run them.
package reliability

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/database"
	"github.com/shiftops/rosterd/internal/events"
)

// Local snapshot retention. Cloud retention is configured separately.
const (
	dailyRetentionDays   = 30
	weeklyRetentionWeeks = 12
)

// BackupService manages tiered local snapshots (daily/weekly) of the
// rosterd databases using VACUUM INTO.
type BackupService struct {
	databases map[string]*database.DB
	dataDir   string
	backupDir string
	bus       *events.Bus
	log       zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(
	databases map[string]*database.DB,
	dataDir string,
	backupDir string,
	bus *events.Bus,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases: databases,
		dataDir:   dataDir,
		backupDir: backupDir,
		bus:       bus,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// GetDatabaseNames returns the managed database names in sorted order.
// The cache database is rebuildable and can be excluded.
func (s *BackupService) GetDatabaseNames(includeCache bool) []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		if !includeCache && name == "cache" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DailyBackup snapshots the durable databases (roster, ledger) into
// backups/daily/YYYY-MM-DD and rotates snapshots past retention.
func (s *BackupService) DailyBackup() error {
	s.log.Info().Msg("Starting daily backup")
	startTime := time.Now()

	date := time.Now().Format("2006-01-02")
	dailyDir := filepath.Join(s.backupDir, "daily", date)
	if err := os.MkdirAll(dailyDir, 0755); err != nil {
		return fmt.Errorf("failed to create daily backup directory: %w", err)
	}

	backed := 0
	for _, dbName := range s.GetDatabaseNames(false) {
		backupPath := filepath.Join(dailyDir, dbName+".db")

		if err := s.BackupDatabase(dbName, backupPath); err != nil {
			s.log.Error().
				Str("database", dbName).
				Err(err).
				Msg("Failed to backup database")
			continue
		}

		if err := s.verifyBackup(backupPath); err != nil {
			s.log.Error().
				Str("database", dbName).
				Err(err).
				Msg("Backup verification failed")
			os.Remove(backupPath)
			continue
		}
		backed++
	}
	if backed == 0 {
		return fmt.Errorf("daily backup produced no verified snapshots")
	}

	if err := s.rotateDailyBackups(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate daily backups")
	}

	duration := time.Since(startTime)
	s.emitCompleted("daily", backed, duration)
	s.log.Info().
		Dur("duration_ms", duration).
		Str("backup_dir", dailyDir).
		Int("databases", backed).
		Msg("Daily backup completed successfully")

	return nil
}

// WeeklyBackup snapshots every database, cache included, into
// backups/weekly/YYYY-Www.
func (s *BackupService) WeeklyBackup() error {
	s.log.Info().Msg("Starting weekly backup")
	startTime := time.Now()

	year, week := time.Now().ISOWeek()
	weekDir := filepath.Join(s.backupDir, "weekly", fmt.Sprintf("%04d-W%02d", year, week))
	if err := os.MkdirAll(weekDir, 0755); err != nil {
		return fmt.Errorf("failed to create weekly backup directory: %w", err)
	}

	backed := 0
	for _, dbName := range s.GetDatabaseNames(true) {
		backupPath := filepath.Join(weekDir, dbName+".db")

		if err := s.BackupDatabase(dbName, backupPath); err != nil {
			s.log.Error().
				Str("database", dbName).
				Err(err).
				Msg("Failed to backup database")
			continue
		}

		if err := s.verifyBackup(backupPath); err != nil {
			s.log.Error().
				Str("database", dbName).
				Err(err).
				Msg("Backup verification failed")
			os.Remove(backupPath)
			continue
		}
		backed++
	}
	if backed == 0 {
		return fmt.Errorf("weekly backup produced no verified snapshots")
	}

	if err := s.rotateWeeklyBackups(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate weekly backups")
	}

	duration := time.Since(startTime)
	s.emitCompleted("weekly", backed, duration)
	s.log.Info().
		Dur("duration_ms", duration).
		Str("backup_dir", weekDir).
		Int("databases", backed).
		Msg("Weekly backup completed successfully")

	return nil
}

// BackupDatabase snapshots a single database to backupPath via VACUUM INTO.
// The snapshot is a fresh compact file without WAL siblings.
func (s *BackupService) BackupDatabase(dbName, backupPath string) error {
	db, ok := s.databases[dbName]
	if !ok {
		return fmt.Errorf("database %s not found", dbName)
	}

	s.log.Debug().
		Str("database", dbName).
		Str("backup_path", backupPath).
		Msg("Backing up database")

	if err := db.BackupTo(backupPath); err != nil {
		return err
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	s.log.Debug().
		Str("database", dbName).
		Float64("size_mb", float64(info.Size())/1024/1024).
		Msg("Backup created")

	return nil
}

// verifyBackup opens the snapshot and runs an integrity check
func (s *BackupService) verifyBackup(backupPath string) error {
	return verifyDatabaseFile(backupPath)
}

// rotateDailyBackups deletes daily snapshot directories past retention
func (s *BackupService) rotateDailyBackups() error {
	dailyDir := filepath.Join(s.backupDir, "daily")
	cutoff := time.Now().AddDate(0, 0, -dailyRetentionDays)

	entries, err := os.ReadDir(dailyDir)
	if err != nil {
		return fmt.Errorf("failed to read daily backup directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dirDate, err := time.Parse("2006-01-02", entry.Name())
		if err != nil {
			s.log.Warn().
				Str("dir", entry.Name()).
				Msg("Failed to parse date from directory name")
			continue
		}

		if dirDate.Before(cutoff) {
			path := filepath.Join(dailyDir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().
					Str("path", path).
					Err(err).
					Msg("Failed to delete old daily backup")
			} else {
				s.log.Debug().
					Str("path", path).
					Msg("Deleted old daily backup")
			}
		}
	}

	return nil
}

// rotateWeeklyBackups deletes weekly snapshot directories past retention
func (s *BackupService) rotateWeeklyBackups() error {
	weeklyDir := filepath.Join(s.backupDir, "weekly")
	cutoff := time.Now().AddDate(0, 0, -weeklyRetentionWeeks*7)

	entries, err := os.ReadDir(weeklyDir)
	if err != nil {
		return fmt.Errorf("failed to read weekly backup directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(weeklyDir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().
					Str("path", path).
					Err(err).
					Msg("Failed to delete old weekly backup")
			} else {
				s.log.Debug().
					Str("path", path).
					Msg("Deleted old weekly backup")
			}
		}
	}

	return nil
}

// RestoreFromBackup returns the path of the most recent local snapshot of a
// database, searching daily then weekly tiers. The auto-recovery path uses
// this to stage a restore.
func (s *BackupService) RestoreFromBackup(dbName string) (string, error) {
	s.log.Warn().
		Str("database", dbName).
		Msg("Searching for backup to restore")

	for _, tier := range []string{"daily", "weekly"} {
		backupPath := s.findMostRecentBackup(filepath.Join(s.backupDir, tier), dbName+".db")
		if backupPath != "" {
			s.log.Info().
				Str("backup", backupPath).
				Str("tier", tier).
				Msg("Found backup")
			return backupPath, nil
		}
	}

	return "", fmt.Errorf("no backup found for %s", dbName)
}

// findMostRecentBackup searches a backup tier for the newest file with the
// given basename
func (s *BackupService) findMostRecentBackup(baseDir, filename string) string {
	var mostRecent string
	var mostRecentTime time.Time

	if err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Base(path) == filename && info.ModTime().After(mostRecentTime) {
			mostRecent = path
			mostRecentTime = info.ModTime()
		}
		return nil
	}); err != nil {
		s.log.Warn().Err(err).Str("base_dir", baseDir).Msg("Error walking directory for backup search")
	}

	return mostRecent
}

// SnapshotInfo describes one local snapshot directory.
type SnapshotInfo struct {
	Name      string    `json:"name"` // "2026-08-25" or "2026-W35"
	Databases int       `json:"databases"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ListSnapshots returns the snapshot directories of one tier ("daily" or
// "weekly"), newest name first.
func (s *BackupService) ListSnapshots(tier string) ([]SnapshotInfo, error) {
	tierDir := filepath.Join(s.backupDir, tier)

	entries, err := os.ReadDir(tierDir)
	if os.IsNotExist(err) {
		return []SnapshotInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s backups: %w", tier, err)
	}

	snapshots := make([]SnapshotInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info := SnapshotInfo{Name: entry.Name()}
		if fi, err := entry.Info(); err == nil {
			info.CreatedAt = fi.ModTime()
		}

		files, err := os.ReadDir(filepath.Join(tierDir, entry.Name()))
		if err != nil {
			s.log.Warn().Err(err).Str("snapshot", entry.Name()).Msg("Failed to read snapshot directory")
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			info.Databases++
			if fi, err := f.Info(); err == nil {
				info.SizeBytes += fi.Size()
			}
		}

		snapshots = append(snapshots, info)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Name > snapshots[j].Name
	})

	return snapshots, nil
}

func (s *BackupService) emitCompleted(kind string, databases int, duration time.Duration) {
	if s.bus == nil {
		return
	}
	s.bus.Emit("reliability", &events.BackupCompletedData{
		Kind:       kind,
		Databases:  databases,
		DurationMs: duration.Milliseconds(),
	})
}

// CopyFile copies a file from src to dst
func CopyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, input, 0644)
}
