package pak

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/meigma/pak/internal/platform"
)

// Create builds a container from the contents of dir and writes it to w.
//
// Create walks dir recursively in lexical order, adding every regular
// file under its slash-separated path relative to dir. Empty directories
// are not preserved. Symbolic links are skipped. Each file is read into
// memory before it is encoded.
//
// The context can be used for cancellation of long-running archive creation.
func Create(ctx context.Context, dir string, w io.Writer, opts ...CreateOption) error {
	pw, err := NewWriter(w, opts...)
	if err != nil {
		return err
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return err
	}
	defer root.Close()

	pw.log().Info("creating archive", "dir", dir,
		"version", pw.cfg.version,
		"compression", pw.cfg.compression.String())

	err = fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			pw.log().Debug("skipped symlink", "path", path)
			return nil
		}
		if !d.Type().IsRegular() {
			pw.log().Debug("skipped irregular file", "path", path, "type", d.Type().String())
			return nil
		}
		content, err := platform.ReadRegular(root, filepath.FromSlash(path), pw.cfg.maxFileSize)
		if err != nil {
			if errors.Is(err, platform.ErrSymlink) {
				pw.log().Debug("skipped symlink", "path", path)
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		return pw.Add(path, content)
	})
	if err != nil {
		return err
	}
	return pw.Close()
}
