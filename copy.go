package pak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/pak/internal/pathutil"
)

// ProgressEvent reports one entry handled by CopyAll.
type ProgressEvent struct {
	Name    string // entry name
	Bytes   int64  // decoded bytes written; zero when skipped
	Skipped bool   // destination existed and overwrite was off
	Done    int    // entries handled so far, this one included
	Total   int    // entries selected for extraction
}

// ProgressFunc receives progress updates.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)

// CopyStats summarizes a CopyAll run.
type CopyStats struct {
	Files   int   // entries written
	Skipped int   // entries whose destination already existed
	Bytes   int64 // decoded bytes written
}

// WriteEntryTo writes the decoded content of entry i to w.
func (a *Archive) WriteEntryTo(i int, w io.Writer) (int64, error) {
	content, err := a.ReadEntry(i)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(content)
	return int64(n), err
}

// CopyFile extracts the first entry named name to destPath.
//
// The destination's parent directory must exist. The file is written to a
// temporary file and renamed into place. Unless CopyWithOverwrite is set,
// an existing destination fails with fs.ErrExist.
func (a *Archive) CopyFile(name, destPath string, opts ...CopyOption) error {
	i, ok := a.byName[name]
	if !ok {
		return &fs.PathError{Op: "copyfile", Path: name, Err: ErrNotFound}
	}
	return a.CopyEntry(i, destPath, opts...)
}

// CopyEntry extracts entry i to destPath with the same rules as CopyFile.
func (a *Archive) CopyEntry(i int, destPath string, opts ...CopyOption) error {
	cfg := copyConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.overwrite {
		if _, err := os.Stat(destPath); err == nil {
			return &fs.PathError{Op: "copyfile", Path: destPath, Err: fs.ErrExist}
		}
	}
	content, err := a.ReadEntry(i)
	if err != nil {
		return err
	}
	return writeFileAtomic(destPath, content, cfg.overwrite)
}

// CopyAll extracts entries into destDir, recreating their directory
// structure.
//
// Delete records are skipped, and for duplicate names only the first entry
// is written. Every selected name must be a valid fs path, and no name may
// also be the directory of another; otherwise no file is written and the
// error matches fs.ErrInvalid. Entries are
// extracted in parallel (see CopyWithWorkers). Existing files are skipped
// unless CopyWithOverwrite is set.
func (a *Archive) CopyAll(ctx context.Context, destDir string, opts ...CopyOption) (CopyStats, error) {
	cfg := copyConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	entries, err := a.collectCopyEntries(cfg.prefix)
	if err != nil {
		return CopyStats{}, err
	}
	workers := cfg.workers
	if workers <= 0 {
		workers = defaultCopyWorkers
	}

	var (
		files, skipped, done atomic.Int64
		written              atomic.Int64
		progressMu           sync.Mutex
	)
	report := func(ev ProgressEvent) {
		if cfg.progress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		ev.Done = int(done.Add(1))
		ev.Total = len(entries)
		cfg.progress(ev)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, i := range entries {
		if gctx.Err() != nil {
			break
		}
		e := &a.entries[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dest := filepath.Join(destDir, filepath.FromSlash(e.Name))
			if !cfg.overwrite {
				if _, err := os.Lstat(dest); err == nil {
					skipped.Add(1)
					report(ProgressEvent{Name: e.Name, Skipped: true})
					return nil
				}
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("create directory for %s: %w", e.Name, err)
			}
			content, err := a.read(e)
			if err != nil {
				return fmt.Errorf("extract %s: %w", e.Name, err)
			}
			if err := writeFileAtomic(dest, content, cfg.overwrite); err != nil {
				return err
			}
			files.Add(1)
			written.Add(int64(len(content)))
			a.log().Debug("entry extracted", "name", e.Name, "bytes", len(content))
			report(ProgressEvent{Name: e.Name, Bytes: int64(len(content))})
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	stats := CopyStats{Files: int(files.Load()), Skipped: int(skipped.Load()), Bytes: written.Load()}
	return stats, err
}

// collectCopyEntries returns the indexes CopyAll extracts, validating names.
// A name that is also the parent directory of another name is rejected.
func (a *Archive) collectCopyEntries(prefix string) ([]int, error) {
	dirPrefix := pathutil.DirPrefix(prefix)
	if dirPrefix != "" && !pathutil.IsFile(prefix) {
		return nil, &fs.PathError{Op: "copy", Path: prefix, Err: fs.ErrInvalid}
	}
	seen := make(map[string]struct{}, len(a.entries))
	var out []int //nolint:prealloc // size unknown until filtering
	for i := range a.entries {
		e := &a.entries[i]
		if e.Deleted || !strings.HasPrefix(e.Name, dirPrefix) {
			continue
		}
		if _, dup := seen[e.Name]; dup {
			continue
		}
		seen[e.Name] = struct{}{}
		if !pathutil.IsFile(e.Name) {
			return nil, &fs.PathError{Op: "copy", Path: e.Name, Err: fs.ErrInvalid}
		}
		out = append(out, i)
	}
	for name := range seen {
		for dir := pathutil.Dir(name); dir != "."; dir = pathutil.Dir(dir) {
			if _, conflict := seen[dir]; conflict {
				return nil, &fs.PathError{Op: "copy", Path: dir, Err: fs.ErrInvalid}
			}
		}
	}
	return out, nil
}

// writeFileAtomic writes content to destPath through a temp file and rename.
func writeFileAtomic(destPath string, content []byte, overwrite bool) error {
	dir := filepath.Dir(destPath)
	tmp, err := os.CreateTemp(dir, ".pak-")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	// os.Rename fails on Windows when the destination exists. Never replace
	// a directory with a file.
	if overwrite {
		if info, err := os.Stat(destPath); err == nil && info.IsDir() {
			return &fs.PathError{Op: "copyfile", Path: destPath, Err: errors.New("is a directory")}
		}
		_ = os.Remove(destPath)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("renaming to destination: %w", err)
	}
	success = true
	return nil
}
