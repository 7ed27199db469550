package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell <command> [args...]",
	Short: "Run a shell command on the device",
	Long: `Run a command through the device shell in raw mode and copy its output
to stdout. Arguments are joined with spaces, so quote anything the device
shell should see as one word.

Examples:
  adbx shell ls -l /sdcard
  adbx -s emulator-5554 shell 'echo $PATH'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runShell,
}

func init() {
	shellCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	command := strings.Join(args, " ")
	n, err := sess.Shell(command, stdout)
	if err != nil {
		return fmt.Errorf("shell command failed: %w", err)
	}
	logger.Debug().Str("cmd", command).Int64("bytes", n).Msg("shell done")
	return nil
}
