package localtree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWalk_Nested(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "b.txt"), "hello")
	writeFile(t, filepath.Join(dir, "a", "c", "d.txt"), "nested!")

	entries, err := Walk(dir)
	require.NoError(t, err)

	var rels []string
	for _, e := range entries {
		rels = append(rels, filepath.ToSlash(e.Rel))
	}
	assert.Equal(t, []string{"a", "a/b.txt", "a/c", "a/c/d.txt"}, rels)

	assert.True(t, entries[0].IsDir)
	assert.True(t, entries[1].IsRegular())
	assert.Equal(t, int64(5), entries[1].Size)
	assert.Equal(t, filepath.Join(dir, "a", "c", "d.txt"), entries[3].Path)

	sum := Summarize(entries)
	assert.Equal(t, Summary{Files: 2, Dirs: 2, Bytes: 12}, sum)
}

func TestWalk_SymlinksNotFollowed(t *testing.T) {
	dir := t.TempDir()
	target := t.TempDir()
	writeFile(t, filepath.Join(target, "secret.txt"), "x")
	writeFile(t, filepath.Join(dir, "real.txt"), "y")
	if err := os.Symlink(target, filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	entries, err := Walk(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "link", entries[0].Rel)
	assert.True(t, entries[0].IsSymlink)
	assert.False(t, entries[0].IsRegular())
	assert.Equal(t, 1, Summarize(entries).Symlinks)
}

func TestWalk_EmptyAndInvalidRoots(t *testing.T) {
	entries, err := Walk(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = Walk(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "f")
	writeFile(t, file, "z")
	_, err = Walk(file)
	assert.ErrorContains(t, err, "not a directory")
}

func TestDiff(t *testing.T) {
	before := []Entry{
		{Rel: "a", IsDir: true},
		{Rel: "a/b.txt", Size: 5},
		{Rel: "gone.txt", Size: 1},
	}
	after := []Entry{
		{Rel: "a", IsDir: true},
		{Rel: "a/b.txt", Size: 6},
		{Rel: "new.txt", Size: 2},
	}

	changes := Diff(before, after)
	require.Len(t, changes, 3)
	assert.Equal(t, Change{Rel: "a/b.txt", Type: "modified", OldSize: 5, NewSize: 6}, changes[0])
	assert.Equal(t, Change{Rel: "gone.txt", Type: "deleted", OldSize: 1}, changes[1])
	assert.Equal(t, Change{Rel: "new.txt", Type: "created", NewSize: 2}, changes[2])

	assert.Empty(t, Diff(after, after))
}
