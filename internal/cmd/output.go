package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/aguxez/adbx/internal/adb"
	"github.com/aguxez/adbx/internal/config"
)

// render writes v in the configured format, or calls text for text output.
func render(w io.Writer, v any, text func(io.Writer) error) error {
	switch cfg.Output.Format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

// progressPrinter returns a progress callback that redraws one status line
// on stderr, or nil when stderr is not a terminal or output is structured.
func progressPrinter() func(adb.Progress) {
	if cfg.Output.Format != config.FormatText {
		return nil
	}
	f, ok := stderr.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}

	return func(p adb.Progress) {
		_, _ = fmt.Fprintf(f, "\r\033[K%s %s %s", p.Direction, p.Path, humanize.IBytes(uint64(p.Bytes)))
	}
}

// clearProgress erases the status line drawn by progressPrinter.
func clearProgress(fn func(adb.Progress)) {
	if fn != nil {
		_, _ = fmt.Fprint(stderr, "\r\033[K")
	}
}
