package reliability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const restoreMarkerFilename = ".restore-pending"

// RestoreService stages database restores. Staged files are applied on the
// next startup, before any database connection is opened, so a running
// process never has a database file swapped underneath it.
type RestoreService struct {
	s3Backups  *S3BackupService
	dataDir    string
	stagingDir string
	log        zerolog.Logger
}

// RestoreMarker records what was staged and where it came from
type RestoreMarker struct {
	Source    string    `json:"source"`
	StagedAt  time.Time `json:"staged_at"`
	Databases []string  `json:"databases"`
}

// NewRestoreService creates a new restore service. The S3 backup service is
// optional; without one only local staging is available.
func NewRestoreService(s3Backups *S3BackupService, dataDir string, log zerolog.Logger) *RestoreService {
	return &RestoreService{
		s3Backups:  s3Backups,
		dataDir:    dataDir,
		stagingDir: filepath.Join(dataDir, "restore-staging"),
		log:        log.With().Str("service", "restore").Logger(),
	}
}

// StageDatabaseFile stages a single database file (a local backup snapshot)
// for restore on the next startup.
func (s *RestoreService) StageDatabaseFile(dbName, sourcePath string) error {
	if err := verifyDatabaseFile(sourcePath); err != nil {
		return fmt.Errorf("refusing to stage corrupt backup %s: %w", sourcePath, err)
	}

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	stagedPath := filepath.Join(s.stagingDir, dbName+".db")
	if err := CopyFile(sourcePath, stagedPath); err != nil {
		return fmt.Errorf("failed to copy backup into staging: %w", err)
	}

	if err := s.updateMarker("local:"+sourcePath, dbName); err != nil {
		return err
	}

	s.log.Info().
		Str("database", dbName).
		Str("source", sourcePath).
		Msg("Staged database for restore on next startup")

	return nil
}

// StageRestore downloads a cloud backup archive, verifies it and stages
// every database it contains.
func (s *RestoreService) StageRestore(ctx context.Context, backupName string) error {
	if s.s3Backups == nil {
		return fmt.Errorf("cloud backups are not configured")
	}

	s.log.Info().Str("backup", backupName).Msg("Staging restore from cloud backup")

	if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	metadata, err := s.s3Backups.DownloadAndExtract(ctx, backupName, s.stagingDir)
	if err != nil {
		// A partial download must not be applied at the next startup.
		s.clearStaging()
		return err
	}

	names := make([]string, 0, len(metadata.Databases))
	for _, db := range metadata.Databases {
		if err := verifyDatabaseFile(filepath.Join(s.stagingDir, db.Filename)); err != nil {
			s.clearStaging()
			return fmt.Errorf("staged %s failed integrity check: %w", db.Name, err)
		}
		names = append(names, db.Name)
	}

	marker := RestoreMarker{
		Source:    "s3:" + backupName,
		StagedAt:  time.Now().UTC(),
		Databases: names,
	}
	if err := s.writeMarker(marker); err != nil {
		s.clearStaging()
		return err
	}

	s.log.Info().
		Str("backup", backupName).
		Strs("databases", names).
		Msg("Restore staged; restart to apply")

	return nil
}

// CheckPendingRestore reports whether a staged restore is waiting.
func (s *RestoreService) CheckPendingRestore() bool {
	_, err := os.Stat(filepath.Join(s.stagingDir, restoreMarkerFilename))
	return err == nil
}

// PendingRestore returns the marker of the staged restore, if any.
func (s *RestoreService) PendingRestore() (*RestoreMarker, error) {
	data, err := os.ReadFile(filepath.Join(s.stagingDir, restoreMarkerFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var marker RestoreMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("failed to parse restore marker: %w", err)
	}
	return &marker, nil
}

// CancelPendingRestore discards any staged restore.
func (s *RestoreService) CancelPendingRestore() error {
	if !s.CheckPendingRestore() {
		return nil
	}
	s.log.Info().Msg("Discarding staged restore")
	return os.RemoveAll(s.stagingDir)
}

// ExecuteStagedRestore moves staged database files into place. Call this at
// startup before opening any database. WAL and SHM siblings of replaced
// databases are removed so stale journal pages cannot shadow the restored
// file.
func (s *RestoreService) ExecuteStagedRestore() error {
	marker, err := s.PendingRestore()
	if err != nil {
		return err
	}
	if marker == nil {
		return fmt.Errorf("no staged restore found")
	}

	s.log.Warn().
		Str("source", marker.Source).
		Time("staged_at", marker.StagedAt).
		Strs("databases", marker.Databases).
		Msg("Applying staged restore")

	for _, name := range marker.Databases {
		filename := name + ".db"
		stagedPath := filepath.Join(s.stagingDir, filename)
		targetPath := filepath.Join(s.dataDir, filename)

		if err := verifyDatabaseFile(stagedPath); err != nil {
			return fmt.Errorf("staged %s failed integrity check: %w", name, err)
		}

		os.Remove(targetPath + "-wal")
		os.Remove(targetPath + "-shm")

		if err := os.Rename(stagedPath, targetPath); err != nil {
			// Rename can fail across filesystems; fall back to a copy.
			if copyErr := CopyFile(stagedPath, targetPath); copyErr != nil {
				return fmt.Errorf("failed to move staged %s into place: %w", name, copyErr)
			}
		}

		s.log.Info().Str("database", name).Msg("Restored database from staged backup")
	}

	s.clearStaging()
	return nil
}

func (s *RestoreService) writeMarker(marker RestoreMarker) error {
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.stagingDir, restoreMarkerFilename), data, 0644); err != nil {
		return fmt.Errorf("failed to write restore marker: %w", err)
	}
	return nil
}

// updateMarker merges a database into the existing marker, if any
func (s *RestoreService) updateMarker(source, dbName string) error {
	marker, err := s.PendingRestore()
	if err != nil {
		return err
	}
	if marker == nil {
		marker = &RestoreMarker{}
	}

	found := false
	for _, name := range marker.Databases {
		if name == dbName {
			found = true
			break
		}
	}
	if !found {
		marker.Databases = append(marker.Databases, dbName)
	}
	if marker.Source != "" && !strings.Contains(marker.Source, source) {
		marker.Source += "," + source
	} else if marker.Source == "" {
		marker.Source = source
	}
	marker.StagedAt = time.Now().UTC()

	return s.writeMarker(*marker)
}

func (s *RestoreService) clearStaging() {
	if err := os.RemoveAll(s.stagingDir); err != nil {
		s.log.Warn().Err(err).Msg("Failed to clean restore staging directory")
	}
}

// verifyDatabaseFile opens a database file read-only and checks integrity
func verifyDatabaseFile(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
