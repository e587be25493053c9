package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRegular(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.bin"), make([]byte, 100), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { root.Close() })

	got, err := ReadRegular(root, "small.txt", 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	got, err = ReadRegular(root, "small.txt", 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = ReadRegular(root, "big.bin", 99)
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = ReadRegular(root, "sub", 0)
	require.Error(t, err)

	_, err = ReadRegular(root, "missing", 0)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = ReadRegular(root, "../escape", 0)
	require.Error(t, err)

	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink("small.txt", filepath.Join(dir, "link.txt")))
		_, err = ReadRegular(root, "link.txt", 0)
		require.Error(t, err)
	}
}
