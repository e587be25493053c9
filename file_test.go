package pak

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchiveFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.pak")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	files := sampleFiles()
	path := writeArchiveFile(t, buildArchive(t, files,
		CreateWithCompression(CompressionLZ4),
		CreateWithKey(testKey),
		CreateWithIndexEncryption(true)))

	af, err := Open(path, testKey)
	require.NoError(t, err)
	require.Equal(t, len(files), af.Len())
	assert.Contains(t, af.SourceID(), "file:")

	for i, f := range files {
		got, err := af.ReadEntry(i)
		require.NoError(t, err)
		assert.Equal(t, f.data, got, f.name)
	}

	require.NoError(t, af.Close())
	require.NoError(t, af.Close())

	_, err = af.ReadEntry(0)
	require.ErrorIs(t, err, ErrIO, "reads after Close")
}

func TestOpenFileErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.pak"), nil)
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = Open(dir, nil)
	require.ErrorIs(t, err, ErrFormat)

	garbage := filepath.Join(dir, "garbage.pak")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a container"), 0o644))
	_, err = Open(garbage, nil)
	require.ErrorIs(t, err, ErrFormat)
	assert.Contains(t, err.Error(), garbage)

	encrypted := writeArchiveFile(t, buildArchive(t, sampleFiles(),
		CreateWithKey(testKey), CreateWithIndexEncryption(true)))
	_, err = Open(encrypted, nil)
	require.ErrorIs(t, err, ErrKeyRequired)
	_, err = Open(encrypted, otherKey)
	require.ErrorIs(t, err, ErrInvalidKey)
	require.ErrorIs(t, err, ErrIntegrity)
}
