package disk

import (
	"cmp"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type cachedFile struct {
	path    string
	size    int64
	modTime time.Time
}

type cachedFiles []cachedFile

// scan lists the cached files under root, ignoring in-flight temp files.
func scan(root string) (cachedFiles, error) {
	var files cachedFiles
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		files = append(files, cachedFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return files, err
}

func (files cachedFiles) total() int64 {
	var n int64
	for _, f := range files {
		n += f.size
	}
	return n
}

// evict removes the oldest files until at most target bytes remain.
func (files cachedFiles) evict(target int64) (freed, remaining int64, err error) {
	remaining = files.total()
	if remaining <= target {
		return 0, remaining, nil
	}
	slices.SortFunc(files, func(a, b cachedFile) int {
		if c := a.modTime.Compare(b.modTime); c != 0 {
			return c
		}
		return cmp.Compare(a.path, b.path)
	})
	for _, f := range files {
		if remaining <= target {
			break
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return freed, remaining, err
		}
		remaining -= f.size
		freed += f.size
	}
	return freed, remaining, nil
}
