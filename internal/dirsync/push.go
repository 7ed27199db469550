package dirsync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aguxez/adbx/internal/localtree"
	"github.com/aguxez/adbx/internal/remotepath"
	"github.com/aguxez/adbx/internal/syncproto"
)

// Push copies a local file or directory to remote. A file pushed onto an
// existing remote directory lands inside it under its base name.
func Push(c Client, local, remote string, opts Options) (*Report, error) {
	info, err := os.Stat(local)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", local, err)
	}
	if info.IsDir() {
		return PushTree(c, local, remote, opts)
	}

	report := &Report{Direction: DirectionPush, Local: local, Remote: remote, StartedAt: opts.now()}

	st, err := statRemote(c, remote)
	if err != nil {
		return nil, fmt.Errorf("failed to stat remote %s: %w", remote, err)
	}
	dest := remote
	if st.FileType() == syncproto.TypeDirectory {
		dest = remotepath.Join(remote, filepath.Base(local))
	}

	res, err := pushFile(c, local, dest, opts)
	if err != nil {
		return report, err
	}
	report.Files = append(report.Files, *res)
	report.Elapsed = opts.now().Sub(report.StartedAt)
	return report, nil
}

// PushTree copies every regular file under localRoot to the same relative
// path under remoteRoot. Symlinks are skipped. Remote parent directories are
// created by the server as files arrive, so directories are only recorded in
// the report unless Options.MakeDirs asks for explicit creation.
func PushTree(c Client, localRoot, remoteRoot string, opts Options) (*Report, error) {
	report := &Report{Direction: DirectionPush, Local: localRoot, Remote: remoteRoot, StartedAt: opts.now()}

	st, err := statRemote(c, remoteRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat remote %s: %w", remoteRoot, err)
	}
	if t := st.FileType(); t != syncproto.TypeDirectory && t != syncproto.TypeOther {
		return nil, fmt.Errorf("%s is a %s: %w", remoteRoot, t, ErrNotDirectory)
	}

	entries, err := localtree.Walk(localRoot)
	if err != nil {
		return nil, err
	}
	sum := localtree.Summarize(entries)
	opts.Logger.Debug().
		Str("root", localRoot).
		Int("files", sum.Files).
		Int("dirs", sum.Dirs).
		Int("symlinks", sum.Symlinks).
		Int64("bytes", sum.Bytes).
		Msg("local tree")

	maker, canMkdir := c.(DirMaker)
	if opts.MakeDirs && canMkdir && !st.Exists() {
		if err := maker.Mkdir(remoteRoot); err != nil {
			return report, err
		}
	}

	for _, e := range entries {
		dest := remotepath.Join(remoteRoot, filepath.ToSlash(e.Rel))

		switch {
		case e.IsSymlink:
			opts.Logger.Debug().Str("path", e.Path).Msg("skipping symlink")
			report.Skipped = append(report.Skipped, e.Path)

		case e.IsDir:
			if opts.MakeDirs && canMkdir {
				if err := maker.Mkdir(dest); err != nil {
					return report, err
				}
			}
			report.Dirs = append(report.Dirs, dest)

		case e.IsRegular():
			res, err := pushFile(c, e.Path, dest, opts)
			if err != nil {
				report.Elapsed = opts.now().Sub(report.StartedAt)
				return report, err
			}
			report.Files = append(report.Files, *res)

		default:
			report.Skipped = append(report.Skipped, e.Path)
		}
	}

	report.Elapsed = opts.now().Sub(report.StartedAt)
	return report, nil
}

func pushFile(c Client, local, remote string, opts Options) (*FileResult, error) {
	f, err := os.Open(local)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", local, err)
	}
	defer f.Close()

	d := newDigester(opts.Checksum)
	start := opts.now()
	n, err := c.Push(d.reader(f), remote)
	if err != nil {
		return nil, err
	}

	opts.Logger.Info().Str("local", local).Str("remote", remote).Int64("bytes", n).Msg("pushed file")
	return &FileResult{
		Local:    local,
		Remote:   remote,
		Bytes:    n,
		Duration: opts.now().Sub(start),
		Digest:   d.sum(),
	}, nil
}
