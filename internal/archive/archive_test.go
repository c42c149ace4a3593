package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_CopiesFilesIntoPerRunDirectory(t *testing.T) {
	logDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "JobA.log"), []byte("hello"), 0o644))

	require.NoError(t, Archive(logDir, "20260102030405", 1, 0))

	dest := filepath.Join(logDir, "archive", "20260102030405.1")
	contents, err := os.ReadFile(filepath.Join(dest, "JobA.log"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(contents))
}

func TestArchive_DoesNotRecurseIntoTheArchiveDirectoryItself(t *testing.T) {
	logDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "JobA.log"), []byte("run1"), 0o644))
	require.NoError(t, Archive(logDir, "20260102030405", 1, 0))

	require.NoError(t, os.WriteFile(filepath.Join(logDir, "JobA.log"), []byte("run2"), 0o644))
	require.NoError(t, Archive(logDir, "20260102030406", 1, 0))

	entries, err := os.ReadDir(filepath.Join(logDir, "archive"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestArchive_PrunesOldestBeyondRetention(t *testing.T) {
	logDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "JobA.log"), []byte("x"), 0o644))

	batchNumbers := []string{"20260101000000", "20260102000000", "20260103000000"}
	for _, bn := range batchNumbers {
		require.NoError(t, Archive(logDir, bn, 1, 2))
	}

	entries, err := os.ReadDir(filepath.Join(logDir, "archive"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"20260102000000.1", "20260103000000.1"}, names)
}

func TestArchive_ZeroRetentionKeepsEverything(t *testing.T) {
	logDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "JobA.log"), []byte("x"), 0o644))

	require.NoError(t, Archive(logDir, "20260101000000", 1, 0))
	require.NoError(t, Archive(logDir, "20260102000000", 1, 0))

	entries, err := os.ReadDir(filepath.Join(logDir, "archive"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPrune_RejectsMalformedBatchNumberPrefix(t *testing.T) {
	archiveRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(archiveRoot, "not-a-batch-number.1"), 0o755))

	err := prune(archiveRoot, 1)
	assert.Error(t, err)
}
