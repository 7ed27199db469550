package dirsync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aguxez/adbx/internal/remotepath"
	"github.com/aguxez/adbx/internal/syncproto"
)

// FileItem pairs a remote file with its local destination.
type FileItem struct {
	Remote string `json:"remote"`
	Local  string `json:"local"`
	Size   uint32 `json:"size"`
}

// Plan is the full work list of a directory pull, built before any local
// filesystem change.
type Plan struct {
	// Dirs are local directories to create, parents first.
	Dirs  []string
	Files []FileItem
	// Skipped lists remote entries that are neither files nor directories.
	Skipped []string
}

// Pull copies a remote file or directory to local.
//
// A remote file is written to local, or inside local when local is an
// existing directory. A remote directory is mirrored at local.
func Pull(c Client, remote, local string, opts Options) (*Report, error) {
	st, err := statRemote(c, remote)
	if err != nil {
		return nil, fmt.Errorf("failed to stat remote %s: %w", remote, err)
	}
	if !st.Exists() {
		return nil, fmt.Errorf("%s: %w", remote, ErrRemoteNotFound)
	}
	if st.FileType() == syncproto.TypeDirectory {
		return PullTree(c, remote, local, opts)
	}

	report := &Report{Direction: DirectionPull, Local: local, Remote: remote, StartedAt: opts.now()}
	dest := ResolveLocal(remote, local)
	res, err := pullFile(c, FileItem{Remote: remote, Local: dest, Size: st.Size}, opts)
	if err != nil {
		return report, err
	}
	report.Files = append(report.Files, *res)
	report.Elapsed = opts.now().Sub(report.StartedAt)
	return report, nil
}

// ResolveLocal picks the destination of a single-file pull: inside local
// when it is an existing directory, otherwise local itself.
func ResolveLocal(remote, local string) string {
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return filepath.Join(local, remotepath.Base(remote))
	}
	return local
}

// PullTree mirrors the remote directory remoteRoot at localRoot. The remote
// tree is enumerated completely first, then every directory is created, then
// every file is received in order.
func PullTree(c Client, remoteRoot, localRoot string, opts Options) (*Report, error) {
	if info, err := os.Stat(localRoot); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", localRoot, ErrLocalNotDirectory)
	}

	report := &Report{Direction: DirectionPull, Local: localRoot, Remote: remoteRoot, StartedAt: opts.now()}

	plan, err := BuildPlan(c, remoteRoot, localRoot)
	if err != nil {
		return nil, err
	}
	report.Skipped = plan.Skipped

	for _, dir := range plan.Dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return report, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		report.Dirs = append(report.Dirs, dir)
	}

	for _, item := range plan.Files {
		res, err := pullFile(c, item, opts)
		if err != nil {
			report.Elapsed = opts.now().Sub(report.StartedAt)
			return report, err
		}
		report.Files = append(report.Files, *res)
	}

	report.Elapsed = opts.now().Sub(report.StartedAt)
	return report, nil
}

// BuildPlan enumerates remoteRoot depth first with LIST. The first
// directory in the plan is localRoot itself.
func BuildPlan(c Client, remoteRoot, localRoot string) (*Plan, error) {
	plan := &Plan{Dirs: []string{localRoot}}
	if err := walkRemote(c, plan, remoteRoot, localRoot); err != nil {
		return nil, err
	}
	return plan, nil
}

func walkRemote(c Client, plan *Plan, remoteDir, localDir string) error {
	dents, err := c.List(remoteDir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", remoteDir, err)
	}

	for _, d := range dents {
		if d.IsDotEntry() {
			continue
		}
		remote := remotepath.Join(remoteDir, d.Name)
		local := filepath.Join(localDir, d.Name)

		switch d.FileType() {
		case syncproto.TypeDirectory:
			plan.Dirs = append(plan.Dirs, local)
			if err := walkRemote(c, plan, remote, local); err != nil {
				return err
			}
		case syncproto.TypeFile:
			plan.Files = append(plan.Files, FileItem{Remote: remote, Local: local, Size: d.Size})
		default:
			plan.Skipped = append(plan.Skipped, remote)
		}
	}
	return nil
}

func pullFile(c Client, item FileItem, opts Options) (*FileResult, error) {
	sink, err := openSink(item.Local, opts.Atomic)
	if err != nil {
		return nil, err
	}

	d := newDigester(opts.Checksum)
	start := opts.now()
	n, err := c.Pull(item.Remote, d.writer(sink))
	if err != nil {
		sink.abort()
		return nil, err
	}
	if err := sink.commit(); err != nil {
		return nil, err
	}

	opts.Logger.Info().Str("remote", item.Remote).Str("local", item.Local).Int64("bytes", n).Msg("pulled file")
	return &FileResult{
		Local:    item.Local,
		Remote:   item.Remote,
		Bytes:    n,
		Duration: opts.now().Sub(start),
		Digest:   d.sum(),
	}, nil
}
