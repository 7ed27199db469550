package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the adb server protocol version",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

type versionResult struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Version  int    `json:"version" yaml:"version"`
}

func runVersion(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	v, err := sess.Version()
	if err != nil {
		return fmt.Errorf("failed to query server version: %w", err)
	}

	res := versionResult{Endpoint: sess.Endpoint().String(), Version: v}
	return render(stdout, res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "adb server %s: protocol version %d (0x%04x)\n", res.Endpoint, v, v)
		return err
	})
}
