package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aguxez/adbx/internal/adb"
	"github.com/aguxez/adbx/internal/config"
)

var devicesLong bool

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List attached devices",
	Long: `List the devices known to the adb server.

Text output prints the server listing unchanged. JSON and YAML output parse
it into serial, state and the optional product, model, device, devpath and
transport id fields.

Examples:
  adbx devices
  adbx devices -l --json`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

var trackDevicesCmd = &cobra.Command{
	Use:   "track-devices",
	Short: "Print the device list every time it changes",
	Long: `Stream device list updates from the adb server until it closes the
connection or the command is interrupted. Structured output prints one
document per update.`,
	Args: cobra.NoArgs,
	RunE: runTrackDevices,
}

func init() {
	devicesCmd.Flags().BoolVarP(&devicesLong, "long", "l", false, "include product, model, device and transport id")

	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(trackDevicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	list, err := sess.Devices(devicesLong)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	return render(stdout, list, func(w io.Writer) error {
		return printDeviceText(w, list)
	})
}

func printDeviceText(w io.Writer, list *adb.DeviceList) error {
	if _, err := fmt.Fprintln(w, "List of devices attached"); err != nil {
		return err
	}
	_, err := io.WriteString(w, list.Raw)
	return err
}

func runTrackDevices(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	err = sess.TrackDevices(func(list *adb.DeviceList) error {
		if cfg.Output.Format == config.FormatText {
			if err := printDeviceText(stdout, list); err != nil {
				return err
			}
			_, err := fmt.Fprintln(stdout)
			return err
		}
		return render(stdout, list, nil)
	})
	if err != nil {
		return fmt.Errorf("device tracking stopped: %w", err)
	}
	return nil
}
