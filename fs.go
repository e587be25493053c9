package pak

import (
	"bytes"
	"io"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/meigma/pak/internal/pathutil"
)

// dirTree is the directory view synthesized from entry names. Only live
// entries with valid fs paths appear; the first entry wins for duplicates,
// and a file whose name is also a directory prefix is hidden.
type dirTree struct {
	files map[string]int
	dirs  map[string][]fs.DirEntry
}

func (a *Archive) dirs() *dirTree {
	a.treeOnce.Do(func() {
		a.tree = buildDirTree(a.entries)
	})
	return a.tree
}

func buildDirTree(entries []Entry) *dirTree {
	t := &dirTree{files: make(map[string]int), dirs: make(map[string][]fs.DirEntry)}
	children := map[string]map[string]*fileInfo{".": {}}
	add := func(dir string, info *fileInfo) {
		m, ok := children[dir]
		if !ok {
			m = make(map[string]*fileInfo)
			children[dir] = m
		}
		if prev, exists := m[info.name]; !exists || (info.IsDir() && !prev.IsDir()) {
			m[info.name] = info
		}
	}
	for i := range entries {
		e := &entries[i]
		if e.Deleted || !pathutil.IsFile(e.Name) {
			continue
		}
		if _, dup := t.files[e.Name]; dup {
			continue
		}
		t.files[e.Name] = i
		add(pathutil.Dir(e.Name), newFileInfo(e))
		for dir := pathutil.Dir(e.Name); dir != "."; dir = pathutil.Dir(dir) {
			add(pathutil.Dir(dir), newDirInfo(dir))
		}
	}
	// A name used both as a file and as a directory is a directory here.
	for name := range t.files {
		if _, isDir := children[name]; isDir {
			delete(t.files, name)
		}
	}
	for dir, m := range children {
		list := make([]fs.DirEntry, 0, len(m))
		for _, info := range m {
			list = append(list, info)
		}
		slices.SortFunc(list, func(x, y fs.DirEntry) int {
			return strings.Compare(x.Name(), y.Name())
		})
		t.dirs[dir] = list
	}
	return t
}

// Open implements fs.FS. Files are read, verified, and decoded in full
// before Open returns.
func (a *Archive) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	t := a.dirs()
	if i, ok := t.files[name]; ok {
		content, err := a.read(&a.entries[i])
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &bytesFile{Reader: bytes.NewReader(content), info: newFileInfo(&a.entries[i])}, nil
	}
	if list, ok := t.dirs[name]; ok {
		return &openDir{info: newDirInfo(name), entries: list}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS without reading entry content.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	t := a.dirs()
	if i, ok := t.files[name]; ok {
		return newFileInfo(&a.entries[i]), nil
	}
	if _, ok := t.dirs[name]; ok {
		return newDirInfo(name), nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadDir implements fs.ReadDirFS.
//
// Directories are synthesized from entry names; the container does not
// store them.
func (a *Archive) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	list, ok := a.dirs().dirs[name]
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	return slices.Clone(list), nil
}

// fileInfo implements fs.FileInfo and fs.DirEntry.
type fileInfo struct {
	name string
	size int64
	mode fs.FileMode
}

func newFileInfo(e *Entry) *fileInfo {
	return &fileInfo{name: pathutil.Base(e.Name), size: e.UncompressedSize, mode: 0o444}
}

func newDirInfo(name string) *fileInfo {
	return &fileInfo{name: pathutil.Base(name), mode: fs.ModeDir | 0o555}
}

func (fi *fileInfo) Name() string               { return fi.name }
func (fi *fileInfo) Size() int64                { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode          { return fi.mode }
func (fi *fileInfo) ModTime() time.Time         { return time.Time{} }
func (fi *fileInfo) IsDir() bool                { return fi.mode.IsDir() }
func (fi *fileInfo) Sys() any                   { return nil }
func (fi *fileInfo) Type() fs.FileMode          { return fi.mode.Type() }
func (fi *fileInfo) Info() (fs.FileInfo, error) { return fi, nil }

// bytesFile serves decoded content as an fs.File. It also backs cache
// writes.
type bytesFile struct {
	*bytes.Reader
	info *fileInfo
}

func newBytesFile(name string, content []byte) *bytesFile {
	return &bytesFile{
		Reader: bytes.NewReader(content),
		info:   &fileInfo{name: pathutil.Base(name), size: int64(len(content)), mode: 0o444},
	}
}

func (f *bytesFile) Stat() (fs.FileInfo, error) { return f.info, nil }

func (f *bytesFile) Close() error { return nil }

// openDir implements fs.ReadDirFile for synthetic directories.
type openDir struct {
	info    *fileInfo
	entries []fs.DirEntry
	offset  int
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) { return d.info, nil }

func (d *openDir) Close() error { return nil }

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return slices.Clone(rest), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return slices.Clone(rest[:n]), nil
}
