package adb

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/aguxez/adbx/internal/metrics"
	"github.com/aguxez/adbx/internal/remotepath"
	"github.com/aguxez/adbx/internal/syncproto"
	"github.com/aguxez/adbx/internal/transport"
)

// DefaultDialTimeout bounds connection establishment.
const DefaultDialTimeout = 5 * time.Second

// Option configures a Session.
type Option func(*options)

type options struct {
	serial      string
	structured  bool
	dialTimeout time.Duration
	fileMode    os.FileMode
	sandboxRoot string
	logger      zerolog.Logger
	recorder    *metrics.Recorder
	onProgress  func(Progress)
	now         func() time.Time
}

func defaultOptions() options {
	return options{
		dialTimeout: DefaultDialTimeout,
		fileMode:    syncproto.DefaultFileMode,
		sandboxRoot: remotepath.DefaultSandboxRoot,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
}

func (o options) transportOptions() transport.Options {
	return transport.Options{DialTimeout: o.dialTimeout}
}

// WithSerial pins every device command to the device with this serial.
// Without it the server picks the only attached device.
func WithSerial(serial string) Option {
	return func(o *options) {
		o.serial = serial
	}
}

// WithStructuredOutput makes listing commands parse the server text.
func WithStructuredOutput(enabled bool) Option {
	return func(o *options) {
		o.structured = enabled
	}
}

// WithDialTimeout sets the connect timeout. Zero disables it.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithFileMode sets the permission bits sent with every push.
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) {
		o.fileMode = mode.Perm()
	}
}

// WithSandboxRoot restricts push, mkdir and list paths to root. An empty
// root lifts the restriction.
func WithSandboxRoot(root string) Option {
	return func(o *options) {
		o.sandboxRoot = root
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics reports requests, reconnects and transfers to r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithProgress registers a callback invoked as file bytes move.
func WithProgress(fn func(Progress)) Option {
	return func(o *options) {
		o.onProgress = fn
	}
}

// WithClock overrides the time source for push modification times.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
