package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFile(t *testing.T) {
	t.Parallel()

	valid := []string{"a", "a/b.txt", "Content/Maps/Level 01.umap", "données.txt"}
	invalid := []string{"", ".", "/abs", "../up", "a/../b", "a//b", "a/", `a\b/..`}
	for _, name := range valid {
		assert.True(t, IsFile(name), name)
	}
	for _, name := range invalid {
		assert.False(t, IsFile(name), name)
	}
}

func TestDirPrefix(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", DirPrefix(""))
	assert.Equal(t, "", DirPrefix("."))
	assert.Equal(t, "Content/", DirPrefix("Content"))
	assert.Equal(t, "Content/Maps/", DirPrefix("Content/Maps"))
}

func TestBaseDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path, base, dir string
	}{
		{"file.txt", "file.txt", "."},
		{"a/b/c.txt", "c.txt", "a/b"},
		{"a/b", "b", "a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.base, Base(tt.path), tt.path)
		assert.Equal(t, tt.dir, Dir(tt.path), tt.path)
	}
	assert.Equal(t, ".", Base(""))
	assert.Equal(t, ".", Base("."))
	assert.Equal(t, "dir", Base("a/dir/"))
}
