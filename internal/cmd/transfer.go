package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aguxez/adbx/internal/adb"
	"github.com/aguxez/adbx/internal/dirsync"
	"github.com/aguxez/adbx/internal/journal"
	"github.com/aguxez/adbx/internal/localtree"
)

var (
	pushMkdir    bool
	pushChecksum bool
	pullChecksum bool
	pullNoAtomic bool
	verify       bool
)

var pushCmd = &cobra.Command{
	Use:   "push <local> <remote>",
	Short: "Copy a local file or directory to the device",
	Long: `Copy a local file or directory to the device.

A file pushed onto an existing remote directory lands inside it. A directory
is mirrored under the remote path; symlinks are skipped. Remote paths must
stay inside sync.sandbox_root (default /data/local/tmp).

Examples:
  adbx push app.apk /data/local/tmp/
  adbx push --mkdir ./assets /data/local/tmp/assets`,
	Args: cobra.ExactArgs(2),
	RunE: runPush,
}

var pullCmd = &cobra.Command{
	Use:   "pull <remote> <local>",
	Short: "Copy a remote file or directory from the device",
	Long: `Copy a remote file or directory from the device.

A file pulled onto an existing local directory lands inside it. A directory
is listed completely before anything is written locally. Files are written to
a temporary name and renamed once complete unless --no-atomic is given.

Examples:
  adbx pull /sdcard/DCIM/photo.jpg .
  adbx pull /data/local/tmp/out ./out`,
	Args: cobra.ExactArgs(2),
	RunE: runPull,
}

func init() {
	pushCmd.Flags().BoolVar(&pushMkdir, "mkdir", false, "create every remote directory explicitly, including empty ones")
	pushCmd.Flags().BoolVar(&pushChecksum, "checksum", false, "record a BLAKE3 digest of every file")
	pullCmd.Flags().BoolVar(&pullChecksum, "checksum", false, "record a BLAKE3 digest of every file")
	pullCmd.Flags().BoolVar(&pullNoAtomic, "no-atomic", false, "write directly to the destination files")
	for _, c := range []*cobra.Command{pushCmd, pullCmd} {
		c.Flags().BoolVar(&verify, "verify", false, "pull the result back and compare file names and sizes")
	}

	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	opts := transferOptions()
	opts.Checksum = cfg.Sync.Checksum || pushChecksum
	opts.MakeDirs = pushMkdir

	return runTransfer(cmd, func(sess *adb.Session) (*dirsync.Report, error) {
		return dirsync.Push(sess, args[0], args[1], opts)
	})
}

func runPull(cmd *cobra.Command, args []string) error {
	opts := transferOptions()
	opts.Checksum = cfg.Sync.Checksum || pullChecksum
	opts.Atomic = cfg.Sync.AtomicPull && !pullNoAtomic

	return runTransfer(cmd, func(sess *adb.Session) (*dirsync.Report, error) {
		return dirsync.Pull(sess, args[0], args[1], opts)
	})
}

func transferOptions() dirsync.Options {
	return dirsync.Options{Logger: logger}
}

// runTransfer opens a session, runs fn, records the outcome in the journal
// and prints the report.
func runTransfer(cmd *cobra.Command, fn func(*adb.Session) (*dirsync.Report, error)) error {
	progress := progressPrinter()
	var extra []adb.Option
	if progress != nil {
		extra = append(extra, adb.WithProgress(progress))
	}

	sess, err := openSession(cmd.Context(), extra...)
	if err != nil {
		return err
	}
	defer sess.Close()

	report, err := fn(sess)
	clearProgress(progress)
	saveJournal(report, sess.Serial(), err)
	if err != nil {
		if report != nil && len(report.Files) > 0 {
			_, _ = fmt.Fprintf(stderr, "%d file(s) transferred before the failure.\n", len(report.Files))
		}
		return err
	}

	if err := render(stdout, report, func(w io.Writer) error {
		dirsync.PrintSummary(w, report)
		return nil
	}); err != nil {
		return err
	}

	if !verify {
		return nil
	}
	changes, err := dirsync.VerifyReport(sess, report, transferOptions())
	if err != nil {
		return fmt.Errorf("failed to verify transfer: %w", err)
	}
	if len(changes) > 0 {
		for _, c := range changes {
			_, _ = fmt.Fprintf(stderr, "  %s: %s\n", c.Rel, describeChange(c))
		}
		return fmt.Errorf("verification found %d difference(s)", len(changes))
	}
	_, _ = fmt.Fprintln(stderr, "Verified.")
	return nil
}

func describeChange(c localtree.Change) string {
	switch c.Type {
	case "created":
		return "only on device"
	case "deleted":
		return "missing on device"
	default:
		return fmt.Sprintf("size differs (local %s, device %s)",
			humanize.IBytes(uint64(c.OldSize)), humanize.IBytes(uint64(c.NewSize)))
	}
}

func saveJournal(report *dirsync.Report, serial string, err error) {
	if !cfg.Journal.Enabled || report == nil {
		return
	}
	store, serr := journal.NewStore(cfg.Journal.Dir)
	if serr != nil {
		logger.Warn().Err(serr).Msg("transfer journal unavailable")
		return
	}
	rec := journal.NewRecord(report, serial, err)
	if serr := store.Save(rec); serr != nil {
		logger.Warn().Err(serr).Msg("failed to record transfer")
		return
	}
	logger.Debug().Str("id", rec.ID).Str("status", rec.Status).Msg("transfer recorded")
}
