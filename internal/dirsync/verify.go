package dirsync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aguxez/adbx/internal/localtree"
)

// Verify pulls remote into a scratch directory and compares its regular
// files with those under local by relative path and size. Symlinks and
// directories are not compared. In the result, "created" marks a file only
// the device has and "deleted" a file the device lacks.
func Verify(c Client, local, remote string, opts Options) ([]localtree.Change, error) {
	info, err := os.Stat(local)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", local, err)
	}

	scratch, err := os.MkdirTemp("", "adbx-verify-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	mirrorOpts := Options{Logger: opts.Logger, Now: opts.Now}

	if !info.IsDir() {
		mirror := filepath.Join(scratch, "file")
		if _, err := Pull(c, remote, mirror, mirrorOpts); err != nil && !errors.Is(err, ErrRemoteNotFound) {
			return nil, err
		}
		name := filepath.Base(local)
		want, err := fileEntry(local, name)
		if err != nil {
			return nil, err
		}
		got, err := fileEntry(mirror, name)
		if err != nil {
			return nil, err
		}
		return localtree.Diff(want, got), nil
	}

	want, err := regularFiles(local)
	if err != nil {
		return nil, err
	}

	mirror := filepath.Join(scratch, "tree")
	var got []localtree.Entry
	_, err = Pull(c, remote, mirror, mirrorOpts)
	switch {
	case errors.Is(err, ErrRemoteNotFound):
	case err != nil:
		return nil, err
	default:
		if got, err = regularFiles(mirror); err != nil {
			return nil, err
		}
	}

	changes := localtree.Diff(want, got)
	opts.Logger.Debug().
		Str("local", local).
		Str("remote", remote).
		Int("files", len(want)).
		Int("changes", len(changes)).
		Msg("verified")
	return changes, nil
}

// VerifyReport verifies the pair a finished transfer describes. A lone
// file transfer is checked at its resolved source and destination.
func VerifyReport(c Client, r *Report, opts Options) ([]localtree.Change, error) {
	if len(r.Dirs) == 0 && len(r.Files) == 1 {
		return Verify(c, r.Files[0].Local, r.Files[0].Remote, opts)
	}
	return Verify(c, r.Local, r.Remote, opts)
}

func regularFiles(root string) ([]localtree.Entry, error) {
	entries, err := localtree.Walk(root)
	if err != nil {
		return nil, err
	}
	files := entries[:0]
	for _, e := range entries {
		if e.IsRegular() {
			files = append(files, e)
		}
	}
	return files, nil
}

// fileEntry describes one file as a single-entry walk, or none when the
// file does not exist.
func fileEntry(p, rel string) ([]localtree.Entry, error) {
	info, err := os.Lstat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	return []localtree.Entry{{
		Path:    p,
		Rel:     rel,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Mode:    info.Mode(),
		IsDir:   info.IsDir(),
	}}, nil
}
