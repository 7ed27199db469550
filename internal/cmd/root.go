package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aguxez/adbx/internal/adb"
	"github.com/aguxez/adbx/internal/config"
	"github.com/aguxez/adbx/internal/logging"
	"github.com/aguxez/adbx/internal/metrics"
	"github.com/aguxez/adbx/internal/transport"
)

var (
	cfgFile string
	debug   bool

	// Loaded by PersistentPreRunE for every subcommand.
	cfg      *config.Config
	logger   zerolog.Logger
	recorder *metrics.Recorder

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "adbx",
	Short: "adbx - Android debug bridge client",
	Long: `adbx talks to a running adb server to list devices, run shell
commands and move files.

List attached devices:
  adbx devices -l

Run a command:
  adbx shell getprop ro.build.version.release

Copy files:
  adbx push ./build /data/local/tmp/build
  adbx pull /data/local/tmp/build ./out`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadRuntime,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if werr := writeMetrics(); werr != nil && err == nil {
		err = werr
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.adbx/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.String("socket", "", "adb server endpoint (unix:<path>, tcp:<host>[:port])")
	pf.StringP("serial", "s", "", "target device serial")
	pf.StringP("output", "o", "", "output format: text, json or yaml")
	pf.Bool("json", false, "shorthand for --output json")
	pf.String("metrics-file", "", "write Prometheus metrics to this file on exit")
}

func loadRuntime(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := loaded.ApplyFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to apply flags: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	cfg = loaded
	logger = logging.Configure(logging.ProfileRuntime, cfg.Log.Level)
	recorder = nil
	if cfg.Metrics.Textfile != "" {
		recorder = metrics.NewRecorder()
	}
	logger.Debug().
		Str("endpoint", cfg.Server.Endpoint).
		Str("serial", cfg.Device.Serial).
		Str("output", cfg.Output.Format).
		Msg("configuration loaded")
	return nil
}

// openSession dials the configured server with the configured options.
func openSession(ctx context.Context, extra ...adb.Option) (*adb.Session, error) {
	endpoint, err := transport.ParseEndpoint(cfg.Server.Endpoint)
	if err != nil {
		return nil, err
	}
	mode, err := cfg.Sync.Mode()
	if err != nil {
		return nil, err
	}

	opts := []adb.Option{
		adb.WithSerial(cfg.Device.Serial),
		adb.WithStructuredOutput(cfg.Output.Format != config.FormatText),
		adb.WithDialTimeout(cfg.Server.DialTimeout),
		adb.WithFileMode(mode),
		adb.WithSandboxRoot(cfg.Sync.SandboxRoot),
		adb.WithLogger(logger),
		adb.WithMetrics(recorder),
	}
	return adb.New(ctx, endpoint, append(opts, extra...)...)
}

func writeMetrics() error {
	if recorder == nil || cfg == nil || cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		return err
	}
	logger.Debug().Str("path", cfg.Metrics.Textfile).Msg("metrics written")
	return nil
}
