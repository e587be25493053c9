package pak

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/pak/testutil"
)

type testFile struct {
	name string
	data []byte
}

var (
	testKey  = Key(bytes.Repeat([]byte{0x42}, KeySize))
	otherKey = Key(bytes.Repeat([]byte{0x24}, KeySize))
)

func randomBytes(seed byte, n int) []byte {
	b := make([]byte, n)
	_, _ = rand.NewChaCha8([32]byte{seed}).Read(b)
	return b
}

// sampleFiles mixes compressible, incompressible, empty, and non-ASCII
// named content.
func sampleFiles() []testFile {
	return []testFile{
		{"Engine/Config/Base.ini", []byte(strings.Repeat("[Core.System]\nPaths=../../../Engine/Content\n", 120))},
		{"Content/Textures/noise.bin", randomBytes(1, 3000)},
		{"Content/empty.txt", nil},
		{"Content/Maps/Level 01.umap", bytes.Repeat([]byte{0x00, 0x01, 0x02, 0x03, 0xAA}, 2000)},
		{"Content/Localization/données.txt", []byte(strings.Repeat("bonjour ", 100))},
	}
}

func buildArchive(t testing.TB, files []testFile, opts ...CreateOption) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, opts...)
	require.NoError(t, err)
	for _, f := range files {
		require.NoError(t, w.Add(f.name, f.data))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func openArchive(t testing.TB, data []byte, key Key, opts ...Option) (*Archive, *testutil.MockByteSource) {
	t.Helper()
	src := testutil.NewMockByteSource(data)
	a, err := New(src, key, opts...)
	require.NoError(t, err)
	return a, src
}
