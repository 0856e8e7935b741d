package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiftops/rosterd/internal/events"
	"github.com/shiftops/rosterd/internal/version"
)

// Archive naming: rosterd-backup-2006-01-02-150405.tar.gz
const (
	backupArchivePrefix   = "rosterd-backup-"
	backupArchiveSuffix   = ".tar.gz"
	backupTimestampLayout = "2006-01-02-150405"
	metadataFilename      = "backup-metadata.json"
	minCloudBackupsKept   = 3
)

// S3BackupService archives all databases into a tar.gz and ships it to an
// S3-compatible store.
type S3BackupService struct {
	s3      *S3Client
	backups *BackupService
	dataDir string
	bus     *events.Bus
	log     zerolog.Logger
}

// BackupMetadata describes an uploaded backup archive
type BackupMetadata struct {
	Timestamp      time.Time          `json:"timestamp"`
	FormatVersion  string             `json:"format_version"`
	RosterdVersion string             `json:"rosterd_version"`
	Databases      []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes a single database file inside an archive
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo summarizes an archive stored in the bucket
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewS3BackupService creates a new cloud backup service
func NewS3BackupService(
	s3 *S3Client,
	backups *BackupService,
	dataDir string,
	bus *events.Bus,
	log zerolog.Logger,
) *S3BackupService {
	return &S3BackupService{
		s3:      s3,
		backups: backups,
		dataDir: dataDir,
		bus:     bus,
		log:     log.With().Str("service", "s3_backup").Logger(),
	}
}

// Client returns the underlying S3 client (for use by handlers)
func (s *S3BackupService) Client() *S3Client {
	return s.s3
}

// CreateAndUploadBackup snapshots every database into a staging directory,
// wraps them with a metadata manifest in a tar.gz and uploads the archive.
func (s *S3BackupService) CreateAndUploadBackup(ctx context.Context) error {
	s.log.Info().Msg("Starting cloud backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, "s3-staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	dbNames := s.backups.GetDatabaseNames(true)
	metadata := BackupMetadata{
		Timestamp:      time.Now().UTC(),
		FormatVersion:  "1.0.0",
		RosterdVersion: version.Version,
		Databases:      make([]DatabaseMetadata, 0, len(dbNames)),
	}

	archiveMembers := make([]string, 0, len(dbNames)+1)
	for _, dbName := range dbNames {
		dbFilename := dbName + ".db"
		dbPath := filepath.Join(stagingDir, dbFilename)

		s.log.Debug().Str("database", dbName).Msg("Staging database snapshot")

		if err := s.backups.BackupDatabase(dbName, dbPath); err != nil {
			return fmt.Errorf("failed to backup %s: %w", dbName, err)
		}

		info, err := os.Stat(dbPath)
		if err != nil {
			return fmt.Errorf("failed to stat %s snapshot: %w", dbName, err)
		}

		checksum, err := fileChecksum(dbPath)
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", dbName, err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      dbName,
			Filename:  dbFilename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		archiveMembers = append(archiveMembers, dbFilename)
	}

	metadataPath := filepath.Join(stagingDir, metadataFilename)
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	archiveMembers = append(archiveMembers, metadataFilename)

	archiveName := backupArchivePrefix + time.Now().Format(backupTimestampLayout) + backupArchiveSuffix
	archivePath := filepath.Join(stagingDir, archiveName)

	if err := createArchive(archivePath, stagingDir, archiveMembers); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.s3.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}

	duration := time.Since(startTime)
	if s.bus != nil {
		s.bus.Emit("reliability", &events.BackupCompletedData{
			Kind:       "s3",
			Databases:  len(dbNames),
			SizeBytes:  archiveInfo.Size(),
			DurationMs: duration.Milliseconds(),
		})
	}

	s.log.Info().
		Dur("duration_ms", duration).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Cloud backup completed successfully")

	return nil
}

// ListBackups lists the archives in the bucket, newest first.
func (s *S3BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.s3.List(ctx, backupArchivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list cloud backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := time.Now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		filename := *obj.Key

		timestamp, ok := parseArchiveTimestamp(filename)
		if !ok {
			s.log.Warn().Str("filename", filename).Msg("Skipping object with unrecognized backup name")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		backups = append(backups, BackupInfo{
			Filename:  filename,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes archives older than retentionDays while always
// keeping the newest three. A retention of 0 keeps everything.
func (s *S3BackupService) RotateOldBackups(ctx context.Context, retentionDays int) error {
	s.log.Info().Int("retention_days", retentionDays).Msg("Starting cloud backup rotation")

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) <= minCloudBackupsKept || retentionDays == 0 {
		s.log.Info().Int("count", len(backups)).Msg("Nothing to rotate")
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	deleted := 0
	for i, backup := range backups {
		if i < minCloudBackupsKept {
			continue
		}
		if !backup.Timestamp.Before(cutoff) {
			continue
		}

		if err := s.s3.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().
				Err(err).
				Str("filename", backup.Filename).
				Msg("Failed to delete old backup")
			continue
		}

		s.log.Info().
			Str("filename", backup.Filename).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Cloud backup rotation completed")

	return nil
}

// DownloadAndExtract fetches an archive, unpacks it into destDir and verifies
// every database file against the manifest checksums.
func (s *S3BackupService) DownloadAndExtract(ctx context.Context, backupName, destDir string) (*BackupMetadata, error) {
	if _, ok := parseArchiveTimestamp(backupName); !ok {
		return nil, fmt.Errorf("unrecognized backup name: %s", backupName)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	archivePath := filepath.Join(destDir, backupName)
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	size, err := s.s3.Download(ctx, backupName, archiveFile)
	closeErr := archiveFile.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close archive file: %w", closeErr)
	}

	s.log.Info().
		Str("archive", backupName).
		Int64("size_bytes", size).
		Msg("Downloaded backup archive")

	if err := extractArchive(archivePath, destDir); err != nil {
		return nil, fmt.Errorf("failed to extract archive: %w", err)
	}
	os.Remove(archivePath)

	metadata, err := readMetadata(filepath.Join(destDir, metadataFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup metadata: %w", err)
	}

	for _, db := range metadata.Databases {
		path := filepath.Join(destDir, db.Filename)
		checksum, err := fileChecksum(path)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum extracted %s: %w", db.Name, err)
		}
		if checksum != db.Checksum {
			return nil, fmt.Errorf("checksum mismatch for %s: got %s want %s", db.Name, checksum, db.Checksum)
		}
	}

	return metadata, nil
}

// parseArchiveTimestamp extracts the timestamp from an archive filename
func parseArchiveTimestamp(filename string) (time.Time, bool) {
	if !strings.HasPrefix(filename, backupArchivePrefix) || !strings.HasSuffix(filename, backupArchiveSuffix) {
		return time.Time{}, false
	}

	timestampStr := strings.TrimPrefix(filename, backupArchivePrefix)
	timestampStr = strings.TrimSuffix(timestampStr, backupArchiveSuffix)

	timestamp, err := time.Parse(backupTimestampLayout, timestampStr)
	if err != nil {
		return time.Time{}, false
	}
	return timestamp, true
}

// fileChecksum returns the SHA256 of a file as "sha256:<hex>"
func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// writeMetadata writes the backup manifest as indented JSON
func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// readMetadata parses a backup manifest
func readMetadata(path string) (*BackupMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var metadata BackupMetadata
	if err := json.NewDecoder(file).Decode(&metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}

// createArchive writes the named members of sourceDir into a tar.gz
func createArchive(archivePath, sourceDir string, members []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, name := range members {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, name), name); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
	}

	return nil
}

// addFileToArchive appends a single file to a tar stream
func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}

// extractArchive unpacks a tar.gz into destDir. Entry names are flattened to
// their basename so a crafted archive cannot write outside destDir.
func extractArchive(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		outPath := filepath.Join(destDir, filepath.Base(header.Name))
		outFile, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", outPath, err)
		}

		if _, err := io.Copy(outFile, tarReader); err != nil {
			outFile.Close()
			return fmt.Errorf("failed to extract %s: %w", header.Name, err)
		}
		if err := outFile.Close(); err != nil {
			return err
		}
	}

	return nil
}
