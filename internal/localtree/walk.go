// Package localtree enumerates a local directory tree for transfers.
package localtree

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Entry records one filesystem object found under a walk root.
type Entry struct {
	// Path is the full local path.
	Path string `json:"path"`
	// Rel is relative to the walk root, using the host separator.
	Rel       string      `json:"rel"`
	Size      int64       `json:"size"`
	ModTime   time.Time   `json:"mod_time"`
	Mode      os.FileMode `json:"mode"`
	IsDir     bool        `json:"is_dir"`
	IsSymlink bool        `json:"is_symlink"`
}

// IsRegular reports whether the entry is a plain file.
func (e Entry) IsRegular() bool {
	return e.Mode.IsRegular()
}

// Walk returns every entry under root in lexical order, root excluded.
// Symlinks are reported but never followed.
func Walk(root string) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		entries = append(entries, Entry{
			Path:      path,
			Rel:       rel,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			Mode:      info.Mode(),
			IsDir:     d.IsDir(),
			IsSymlink: d.Type()&fs.ModeSymlink != 0,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return entries, nil
}

// Summary totals a walk.
type Summary struct {
	Files    int
	Dirs     int
	Symlinks int
	Bytes    int64
}

// Summarize counts the entries by kind.
func Summarize(entries []Entry) Summary {
	var s Summary
	for _, e := range entries {
		switch {
		case e.IsSymlink:
			s.Symlinks++
		case e.IsDir:
			s.Dirs++
		case e.IsRegular():
			s.Files++
			s.Bytes += e.Size
		}
	}
	return s
}

// Change is a difference between two trees.
type Change struct {
	Rel     string `json:"rel"`
	Type    string `json:"type"` // "created", "modified", "deleted"
	OldSize int64  `json:"old_size,omitempty"`
	NewSize int64  `json:"new_size,omitempty"`
}

// Diff compares two walks by relative path, kind and size. Modification
// times are ignored since a transfer stamps its own.
func Diff(before, after []Entry) []Change {
	old := index(before)
	cur := index(after)

	var changes []Change
	for rel, a := range cur {
		b, ok := old[rel]
		if !ok {
			changes = append(changes, Change{Rel: rel, Type: "created", NewSize: a.Size})
			continue
		}
		if a.IsDir != b.IsDir || (!a.IsDir && a.Size != b.Size) {
			changes = append(changes, Change{Rel: rel, Type: "modified", OldSize: b.Size, NewSize: a.Size})
		}
	}
	for rel, b := range old {
		if _, ok := cur[rel]; !ok {
			changes = append(changes, Change{Rel: rel, Type: "deleted", OldSize: b.Size})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Rel < changes[j].Rel
	})
	return changes
}

func index(entries []Entry) map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[filepath.ToSlash(e.Rel)] = e
	}
	return m
}
