package reliability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArchiveTimestamp(t *testing.T) {
	ts, ok := parseArchiveTimestamp("rosterd-backup-2026-03-15-021502.tar.gz")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 15, 2, 15, 2, 0, time.UTC), ts)

	cases := []string{
		"rosterd-backup-.tar.gz",
		"rosterd-backup-yesterday.tar.gz",
		"other-backup-2026-03-15-021502.tar.gz",
		"rosterd-backup-2026-03-15-021502.zip",
		"rosterd-backup-2026-13-40-021502.tar.gz",
	}
	for _, name := range cases {
		_, ok := parseArchiveTimestamp(name)
		assert.False(t, ok, "expected %s to be rejected", name)
	}
}

func TestArchiveRoundTripPreservesContents(t *testing.T) {
	srcDir := t.TempDir()

	payloads := map[string][]byte{
		"roster.db": []byte("roster payload"),
		"ledger.db": []byte("ledger payload with more bytes"),
	}
	for name, data := range payloads {
		require.NoError(t, os.WriteFile(filepath.Join(srcDir, name), data, 0644))
	}

	metadata := BackupMetadata{
		Timestamp:      time.Date(2026, 3, 15, 2, 15, 2, 0, time.UTC),
		FormatVersion:  "1.0.0",
		RosterdVersion: "v0.9.0",
		Databases: []DatabaseMetadata{
			{Name: "roster", Filename: "roster.db", SizeBytes: 14},
			{Name: "ledger", Filename: "ledger.db", SizeBytes: 30},
		},
	}
	require.NoError(t, writeMetadata(filepath.Join(srcDir, metadataFilename), metadata))

	archivePath := filepath.Join(srcDir, "rosterd-backup-2026-03-15-021502.tar.gz")
	members := []string{"roster.db", "ledger.db", metadataFilename}
	require.NoError(t, createArchive(archivePath, srcDir, members))

	destDir := t.TempDir()
	require.NoError(t, extractArchive(archivePath, destDir))

	for name, want := range payloads {
		got, err := os.ReadFile(filepath.Join(destDir, name))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	extracted, err := readMetadata(filepath.Join(destDir, metadataFilename))
	require.NoError(t, err)
	assert.Equal(t, "v0.9.0", extracted.RosterdVersion)
	assert.Len(t, extracted.Databases, 2)
	assert.True(t, extracted.Timestamp.Equal(metadata.Timestamp))
}

func TestFileChecksumIsStableAndPrefixed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, []byte("checksum me"), 0644))

	first, err := fileChecksum(path)
	require.NoError(t, err)
	assert.Contains(t, first, "sha256:")

	second, err := fileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(path, []byte("different"), 0644))
	third, err := fileChecksum(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}
