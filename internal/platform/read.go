// Package platform wraps OS-specific file access used when packing
// directories.
package platform

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrSymlink is returned when a path names a symbolic link.
var ErrSymlink = errors.New("symbolic links not supported")

// ErrTooLarge is returned when a file exceeds the read limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// ReadRegular reads the regular file name under root without following
// symlinks. Files larger than maxSize fail with ErrTooLarge; zero means
// no limit. The size is checked again after reading so a file that grows
// while being read is rejected.
func ReadRegular(root *os.Root, name string, maxSize int64) ([]byte, error) {
	f, err := openNoFollow(root, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", name)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%s: %w (%d > %d)", name, ErrTooLarge, info.Size(), maxSize)
	}
	r := io.Reader(f)
	if maxSize > 0 {
		r = io.LimitReader(f, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%s: %w", name, ErrTooLarge)
	}
	return data, nil
}
