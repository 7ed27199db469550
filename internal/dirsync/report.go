package dirsync

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"
)

// Transfer directions.
const (
	DirectionPush = "push"
	DirectionPull = "pull"
)

// FileResult records one transferred file.
type FileResult struct {
	Local    string        `json:"local" yaml:"local"`
	Remote   string        `json:"remote" yaml:"remote"`
	Bytes    int64         `json:"bytes" yaml:"bytes"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Digest   string        `json:"digest,omitempty" yaml:"digest,omitempty"`
}

// Report summarizes a transfer.
type Report struct {
	Direction string        `json:"direction" yaml:"direction"`
	Local     string        `json:"local" yaml:"local"`
	Remote    string        `json:"remote" yaml:"remote"`
	Dirs      []string      `json:"dirs,omitempty" yaml:"dirs,omitempty"`
	Files     []FileResult  `json:"files" yaml:"files"`
	Skipped   []string      `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
}

// TotalBytes sums the bytes of every file.
func (r *Report) TotalBytes() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.Bytes
	}
	return n
}

const maxDisplayFiles = 20

// PrintSummary prints a human-readable transfer summary to the writer.
func PrintSummary(w io.Writer, r *Report) {
	if r == nil {
		return
	}

	if len(r.Files) == 0 && len(r.Dirs) == 0 {
		_, _ = fmt.Fprintln(w, "Nothing transferred.")
		return
	}

	arrow := "→"
	from, to := r.Local, r.Remote
	if r.Direction == DirectionPull {
		from, to = r.Remote, r.Local
	}
	_, _ = fmt.Fprintf(w, "%s %s %s %s\n", capitalize(r.Direction), from, arrow, to)
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 40))

	for i, f := range r.Files {
		if i == maxDisplayFiles {
			_, _ = fmt.Fprintf(w, "  (+%d more files)\n", len(r.Files)-maxDisplayFiles)
			break
		}
		name := f.Remote
		if r.Direction == DirectionPull {
			name = f.Local
		}
		line := fmt.Sprintf("  %-50s %10s", name, humanize.IBytes(uint64(f.Bytes)))
		if f.Digest != "" {
			line += "  " + f.Digest[:16]
		}
		_, _ = fmt.Fprintln(w, line)
	}

	rate := ""
	if secs := r.Elapsed.Seconds(); secs > 0 {
		rate = fmt.Sprintf(", %s/s", humanize.IBytes(uint64(float64(r.TotalBytes())/secs)))
	}
	_, _ = fmt.Fprintf(w, "%s in %s (%s, %d dirs%s)\n",
		pluralFiles(len(r.Files)), r.Elapsed.Round(time.Millisecond),
		humanize.IBytes(uint64(r.TotalBytes())), len(r.Dirs), rate)
	if len(r.Skipped) > 0 {
		_, _ = fmt.Fprintf(w, "Skipped %d symlinks or special files\n", len(r.Skipped))
	}
}

func pluralFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// digester hashes bytes as they pass through when enabled.
type digester struct {
	h hash.Hash
}

func newDigester(enabled bool) *digester {
	if !enabled {
		return &digester{}
	}
	return &digester{h: blake3.New()}
}

func (d *digester) reader(r io.Reader) io.Reader {
	if d.h == nil {
		return r
	}
	return io.TeeReader(r, d.h)
}

func (d *digester) writer(w io.Writer) io.Writer {
	if d.h == nil {
		return w
	}
	return io.MultiWriter(w, d.h)
}

func (d *digester) sum() string {
	if d.h == nil {
		return ""
	}
	return hex.EncodeToString(d.h.Sum(nil))
}
