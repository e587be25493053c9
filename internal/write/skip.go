package write

import (
	"path"
	"strings"
)

// SkipCompressionFunc returns true when a file should be stored uncompressed.
// It is called once per file and should be inexpensive.
type SkipCompressionFunc func(name string, size int64) bool

// DefaultSkipCompression returns a SkipCompressionFunc that skips small files
// and known already-compressed formats, including engine media containers.
func DefaultSkipCompression(minSize int64) SkipCompressionFunc {
	return func(name string, size int64) bool {
		if minSize > 0 && size < minSize {
			return true
		}
		_, ok := defaultSkipCompressionExts[strings.ToLower(path.Ext(name))]
		return ok
	}
}

// ShouldSkip checks if any predicate returns true for the given file.
func ShouldSkip(name string, size int64, predicates []SkipCompressionFunc) bool {
	for _, fn := range predicates {
		if fn != nil && fn(name, size) {
			return true
		}
	}
	return false
}

var defaultSkipCompressionExts = map[string]struct{}{
	".7z":    {},
	".bik":   {},
	".bk2":   {},
	".bnk":   {},
	".gz":    {},
	".jpg":   {},
	".jpeg":  {},
	".mp3":   {},
	".mp4":   {},
	".ogg":   {},
	".opus":  {},
	".pak":   {},
	".png":   {},
	".ubulk": {},
	".ucas":  {},
	".utoc":  {},
	".webm":  {},
	".wem":   {},
	".zip":   {},
	".zst":   {},
}
