package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/aguxez/adbx/internal/dirsync"
	"github.com/aguxez/adbx/internal/journal"
)

var (
	pruneOlderThan time.Duration
	pruneAll       bool
)

var transfersCmd = &cobra.Command{
	Use:   "transfers",
	Short: "List recorded push and pull transfers",
	Long: `List the transfers recorded in the journal, newest first.

Records live in ~/.adbx/transfers unless journal.dir says otherwise.`,
	Args: cobra.NoArgs,
	RunE: runTransfers,
}

var transfersPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old transfer records",
	Args:  cobra.NoArgs,
	RunE:  runTransfersPrune,
}

func init() {
	transfersPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 30*24*time.Hour, "delete records that started before this long ago")
	transfersPruneCmd.Flags().BoolVarP(&pruneAll, "all", "a", false, "delete every record")

	transfersCmd.AddCommand(transfersPruneCmd)
	rootCmd.AddCommand(transfersCmd)
}

func runTransfers(cmd *cobra.Command, args []string) error {
	store, err := journal.NewStore(cfg.Journal.Dir)
	if err != nil {
		return fmt.Errorf("failed to access transfer journal: %w", err)
	}

	records, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list transfers: %w", err)
	}

	return render(stdout, records, func(out io.Writer) error {
		if len(records) == 0 {
			_, err := fmt.Fprintf(out, "No recorded transfers in %s.\n", store.Dir())
			return err
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tDIRECTION\tSTATUS\tFILES\tSIZE\tSTARTED\tSOURCE\tDESTINATION")
		_, _ = fmt.Fprintln(w, "--\t---------\t------\t-----\t----\t-------\t------\t-----------")
		for _, rec := range records {
			src, dst := rec.Local, rec.Remote
			if rec.Direction == dirsync.DirectionPull {
				src, dst = rec.Remote, rec.Local
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				shortID(rec.ID),
				rec.Direction,
				rec.Status,
				rec.Files,
				humanize.IBytes(uint64(rec.Bytes)),
				humanize.Time(rec.StartedAt),
				src,
				dst,
			)
		}
		return w.Flush()
	})
}

func runTransfersPrune(cmd *cobra.Command, args []string) error {
	store, err := journal.NewStore(cfg.Journal.Dir)
	if err != nil {
		return fmt.Errorf("failed to access transfer journal: %w", err)
	}

	cutoff := time.Now().Add(-pruneOlderThan)
	if pruneAll {
		cutoff = time.Now().Add(time.Hour)
	}

	removed, err := store.Prune(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune transfers: %w", err)
	}

	if removed == 0 {
		_, _ = fmt.Fprintln(stdout, "No transfers to remove.")
	} else {
		_, _ = fmt.Fprintf(stdout, "Removed %d transfer record(s) from %s.\n", removed, store.Dir())
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
