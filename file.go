package pak

import (
	"fmt"
	"os"
	"path/filepath"
)

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so we cache the size at construction.
type fileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// newFileSource creates a fileSource from an open file.
func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, f.Name(), err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFormat, f.Name())
	}
	return &fileSource{file: f, size: info.Size(), sourceID: fileSourceID(f.Name(), info)}, nil
}

// ReadAt implements io.ReaderAt.
func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (s *fileSource) Size() int64 {
	return s.size
}

// SourceID returns a stable identifier for the file content.
func (s *fileSource) SourceID() string {
	return s.sourceID
}

func fileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}

// ArchiveFile wraps an Archive with its underlying file handle.
// Close must be called to release file resources.
type ArchiveFile struct {
	*Archive
	file *os.File
}

// Close closes the underlying file. Reads after Close fail with ErrIO.
func (af *ArchiveFile) Close() error {
	if af.file == nil {
		return nil
	}
	err := af.file.Close()
	af.file = nil
	return err
}

// Open opens the container at path and reads its index.
//
// key may be nil for archives without encrypted content. The returned
// ArchiveFile must be closed to release the file handle.
func Open(path string, key Key, opts ...Option) (*ArchiveFile, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	source, err := newFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	a, err := New(source, key, opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &ArchiveFile{Archive: a, file: f}, nil
}
