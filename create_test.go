package pak

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("b.txt", "bravo")
	write("a/nested/file.txt", "nested content nested content nested content")
	write("a/empty", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "emptydir"), 0o755))
	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink(filepath.Join(dir, "b.txt"), filepath.Join(dir, "link.txt")))
	}

	var buf bytes.Buffer
	err := Create(context.Background(), dir, &buf,
		CreateWithCompression(CompressionZstd),
		CreateWithKey(testKey),
		CreateWithIndexEncryption(true),
		CreateWithPayloadEncryption(true))
	require.NoError(t, err)

	a, _ := openArchive(t, buf.Bytes(), testKey)
	var names []string
	for _, e := range a.All() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a/empty", "a/nested/file.txt", "b.txt"}, names)

	got, err := a.ReadFile("a/nested/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "nested content nested content nested content", string(got))
}

func TestCreateLimits(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"1", "2", "3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}

	err := Create(context.Background(), dir, &bytes.Buffer{}, CreateWithMaxFiles(2))
	require.ErrorIs(t, err, ErrTooManyFiles)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "big"), bytes.Repeat([]byte("x"), 100), 0o644))
	err = Create(context.Background(), dir, &bytes.Buffer{}, CreateWithMaxFileSize(10))
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Create(ctx, dir, &bytes.Buffer{})
	require.ErrorIs(t, err, context.Canceled)

	err = Create(context.Background(), filepath.Join(dir, "missing"), &bytes.Buffer{})
	require.Error(t, err)
}

func TestNewWriterValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []CreateOption
		wantErr error
	}{
		{name: "unsupported version", opts: []CreateOption{CreateWithVersion(8)}, wantErr: ErrFormat},
		{name: "negative version", opts: []CreateOption{CreateWithVersion(-1)}, wantErr: ErrFormat},
		{name: "compression before v3", opts: []CreateOption{CreateWithVersion(2), CreateWithCompression(CompressionZlib)}},
		{name: "payload encryption before v3", opts: []CreateOption{CreateWithVersion(2), CreateWithKey(testKey), CreateWithPayloadEncryption(true)}},
		{name: "index encryption before v4", opts: []CreateOption{CreateWithVersion(3), CreateWithKey(testKey), CreateWithIndexEncryption(true)}},
		{name: "encryption without key", opts: []CreateOption{CreateWithIndexEncryption(true)}, wantErr: ErrKeyRequired},
		{name: "short key", opts: []CreateOption{CreateWithKey(Key{1}), CreateWithPayloadEncryption(true)}, wantErr: ErrMalformedKey},
		{name: "unknown codec", opts: []CreateOption{CreateWithCompression(Compression(0x40))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewWriter(&bytes.Buffer{}, tt.opts...)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWriterLifecycle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriter(&buf, CreateWithVersion(5), CreateWithMaxFiles(2))
	require.NoError(t, err)

	require.Error(t, w.Add("", []byte("x")))
	require.Error(t, w.Add("nul\x00name", []byte("x")))
	require.NoError(t, w.Add("one", []byte("1")))
	require.NoError(t, w.Add("two", []byte("2")))
	require.ErrorIs(t, w.Add("three", []byte("3")), ErrTooManyFiles)
	require.Error(t, w.AddDeleted("one"), "delete records need version 6")
	assert.Equal(t, 2, w.Len())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Add("late", nil), ErrWriterClosed)

	a, _ := openArchive(t, buf.Bytes(), nil)
	assert.EqualValues(t, 5, a.Version())
	assert.Equal(t, 2, a.Len())
}

type failingWriter struct{ n int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n <= 0 {
		return 0, errors.New("disk full")
	}
	f.n--
	return len(p), nil
}

func TestWriterPropagatesWriteErrors(t *testing.T) {
	t.Parallel()

	w, err := NewWriter(&failingWriter{n: 1})
	require.NoError(t, err)
	require.Error(t, w.Add("a", []byte("payload")))
	require.Error(t, w.Add("b", []byte("payload")), "write errors are sticky")
	require.Error(t, w.Close())
}

func TestWriterSkipCompression(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("compressible "), 200)
	a, _ := openArchive(t, buildArchive(t, []testFile{
		{"movie.bk2", content},
		{"small.txt", []byte("tiny tiny tiny tiny")},
		{"level.umap", content},
	},
		CreateWithCompression(CompressionZstd),
		CreateWithSkipCompression(DefaultSkipCompression(64)),
	), nil)

	entries := a.Entries()
	assert.Equal(t, CompressionNone, entries[0].Compression, "known media extension")
	assert.Equal(t, CompressionNone, entries[1].Compression, "below minimum size")
	assert.Equal(t, CompressionZstd, entries[2].Compression)
	assert.Less(t, entries[2].Size, entries[2].UncompressedSize)
}

func TestWriterLayout(t *testing.T) {
	t.Parallel()

	for _, v := range []int32{3, 4, 5, 7} {
		content := bytes.Repeat([]byte("block "), 1000)
		a, src := openArchive(t, buildArchive(t, []testFile{
			{"first", []byte("x")},
			{"second", content},
		},
			CreateWithVersion(v),
			CreateWithCompression(CompressionZlib),
			CreateWithBlockSize(2048),
			CreateWithKey(testKey),
			CreateWithPayloadEncryption(true),
		), testKey)

		e, err := a.Entry(1)
		require.NoError(t, err)
		require.Len(t, e.Blocks, 3, "version %d", v)
		assert.EqualValues(t, 2048, e.BlockSize)
		assert.Equal(t, a.reader.DataOffset(&e), e.Blocks[0].Start, "blocks follow the record header")
		for i := 1; i < len(e.Blocks); i++ {
			assert.Zero(t, (e.Blocks[i].Start-e.Blocks[0].Start)%16, "encrypted blocks are 16-byte aligned")
		}
		assert.Less(t, e.Blocks[2].End, src.Size())
	}
}

func TestWriterUnicodeNames(t *testing.T) {
	t.Parallel()

	files := []testFile{
		{"Content/日本語/テクスチャ.uasset", []byte("utf-16 name")},
		{"Content/ascii.txt", []byte("single byte name")},
	}
	for _, v := range []int32{1, 4, 7} {
		a, _ := openArchive(t, buildArchive(t, files, CreateWithVersion(v), CreateWithMountPoint("../../../Game/")), nil)
		assert.Equal(t, "../../../Game/", a.MountPoint())
		for i, f := range files {
			e, err := a.Entry(i)
			require.NoError(t, err)
			assert.Equal(t, f.name, e.Name)
			got, err := a.ReadFile(f.name)
			require.NoError(t, err)
			assert.Equal(t, f.data, got)
		}
	}
}
