package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aguxez/adbx/internal/protocol"
	"github.com/aguxez/adbx/internal/remotepath"
	"github.com/aguxez/adbx/internal/syncproto"
)

var lsAll bool

var statCmd = &cobra.Command{
	Use:   "stat <remote>",
	Short: "Show metadata of a remote path",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

var lsCmd = &cobra.Command{
	Use:   "ls <remote>",
	Short: "List a remote directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runLs,
}

func init() {
	lsCmd.Flags().BoolVarP(&lsAll, "all", "a", false, "include . and ..")

	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(lsCmd)
}

// entry is the printable form of a STAT record or LIST entry.
type entry struct {
	Name    string             `json:"name" yaml:"name"`
	Path    string             `json:"path" yaml:"path"`
	Type    syncproto.FileType `json:"type" yaml:"type"`
	Mode    string             `json:"mode" yaml:"mode"`
	Size    uint32             `json:"size" yaml:"size"`
	ModTime time.Time          `json:"mtime" yaml:"mtime"`
}

func newEntry(name, p string, mode, size, mtime uint32) entry {
	return entry{
		Name:    name,
		Path:    p,
		Type:    syncproto.FileTypeOf(mode),
		Mode:    fmt.Sprintf("%#o", mode&0o7777),
		Size:    size,
		ModTime: time.Unix(int64(mtime), 0).UTC(),
	}
}

func runStat(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	p := args[0]
	st, err := sess.Stat(p)
	if err != nil && !errors.Is(err, protocol.ErrEndOfStream) {
		return fmt.Errorf("failed to stat %s: %w", p, err)
	}
	if err != nil || !st.Exists() {
		return fmt.Errorf("%s: no such file or directory", p)
	}

	e := newEntry(remotepath.Base(p), p, st.Mode, st.Size, st.MTime)
	return render(stdout, e, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s\n  type:  %s\n  mode:  %s\n  size:  %d (%s)\n  mtime: %s\n",
			e.Path, e.Type, e.Mode, e.Size, humanize.IBytes(uint64(e.Size)), e.ModTime.Format(time.RFC3339))
		return err
	})
}

func runLs(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	dir := args[0]
	dents, err := sess.List(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	entries := []entry{}
	for _, d := range dents {
		if d.IsDotEntry() && !lsAll {
			continue
		}
		entries = append(entries, newEntry(d.Name, remotepath.Join(dir, d.Name), d.Mode, d.Size, d.MTime))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return render(stdout, entries, func(out io.Writer) error {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "MODE\tSIZE\tMODIFIED\tNAME")
		for _, e := range entries {
			name := e.Name
			if e.Type == syncproto.TypeDirectory {
				name += "/"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.Mode, humanize.IBytes(uint64(e.Size)), e.ModTime.Format("2006-01-02 15:04"), name)
		}
		return w.Flush()
	})
}
