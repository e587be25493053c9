// Package pathutil provides helpers for the slash-separated entry names
// stored in a container index.
package pathutil

import (
	"io/fs"
	"strings"
)

// IsFile reports whether name can be exposed as a file path: a valid
// fs.FS path naming something other than the root.
func IsFile(name string) bool {
	return name != "." && fs.ValidPath(name)
}

// DirPrefix converts a directory path to the prefix its descendants share.
// For "" and "." it returns "" so that every name matches.
func DirPrefix(dir string) string {
	if dir == "" || dir == "." {
		return ""
	}
	return dir + "/"
}

// Base returns the last element of a slash-separated path.
// If path is empty or ".", it returns ".".
func Base(path string) string {
	if path == "" || path == "." {
		return "."
	}
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Dir returns all but the last element of a slash-separated path, or "."
// when there is no parent.
func Dir(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return "."
}
