// Package adb is the client session for the adb server host protocol.
//
// A Session owns one Transport and tracks what that connection has been
// used for. Host queries and shell commands consume the connection, and
// entering sync mode is one-way, so every operation first reconnects when
// the previous one left the connection unusable. That is not a retry: a
// failed operation is surfaced to the caller unchanged.
//
// A Session must not be shared across goroutines.
package adb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aguxez/adbx/internal/protocol"
	"github.com/aguxez/adbx/internal/remotepath"
	"github.com/aguxez/adbx/internal/syncproto"
	"github.com/aguxez/adbx/internal/transport"
)

// Session is a connection to the adb server plus its negotiated state.
type Session struct {
	t         transport.Transport
	opts      options
	validator *remotepath.Validator
	id        string
	log       zerolog.Logger

	// Connection-pinned state, cleared together by Reconnect.
	deviceSelected bool
	syncMode       bool
	spent          bool
}

// New dials endpoint and returns a Session.
func New(ctx context.Context, endpoint transport.Endpoint, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	t, err := transport.New(ctx, endpoint, o.transportOptions())
	if err != nil {
		return nil, protocol.Wrap("connect", err)
	}

	s, err := newSession(t, o)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return s, nil
}

// NewWithTransport wraps an already connected Transport.
func NewWithTransport(t transport.Transport, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newSession(t, o)
}

func newSession(t transport.Transport, o options) (*Session, error) {
	v, err := remotepath.NewValidator(o.sandboxRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to configure path validation: %w", err)
	}

	id := uuid.New().String()
	s := &Session{
		t:         t,
		opts:      o,
		validator: v,
		id:        id,
		log:       o.logger.With().Str("session", id[:8]).Logger(),
	}
	s.log.Debug().
		Str("endpoint", t.Endpoint().String()).
		Str("serial", o.serial).
		Str("sandbox", v.Root()).
		Msg("session opened")
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Serial returns the pinned device serial, or "" for any device.
func (s *Session) Serial() string {
	return s.opts.serial
}

// Structured reports whether listings are parsed.
func (s *Session) Structured() bool {
	return s.opts.structured
}

// Endpoint returns the server endpoint.
func (s *Session) Endpoint() transport.Endpoint {
	return s.t.Endpoint()
}

// Close releases the connection.
func (s *Session) Close() error {
	s.log.Debug().Msg("session closed")
	return s.t.Close()
}

// Reconnect re-establishes the connection and clears the device-selected,
// sync-mode and spent flags in one step.
func (s *Session) Reconnect() error {
	s.deviceSelected = false
	s.syncMode = false
	s.spent = false
	s.opts.recorder.RecordReconnect()

	if err := s.t.Reconnect(); err != nil {
		s.spent = true
		return protocol.Wrap("reconnect", err)
	}
	s.log.Debug().Msg("reconnected")
	return nil
}

// prepare reconnects when the previous operation left the connection
// unusable for a new request.
func (s *Session) prepare() error {
	if s.spent || s.syncMode {
		return s.Reconnect()
	}
	return nil
}

// SendCommand issues a host command on a fresh connection and returns its
// payload when waitForResponse is set. The server closes the connection
// after answering, so the Session is marked spent either way.
func (s *Session) SendCommand(cmd protocol.Command, waitForResponse bool) ([]byte, error) {
	if err := s.prepare(); err != nil {
		return nil, err
	}

	payload, err := protocol.SendCommand(s.t, cmd, waitForResponse)
	s.spent = true
	s.opts.recorder.RecordRequest(cmd.String(), err)
	if err != nil {
		s.log.Debug().Err(err).Str("command", cmd.String()).Msg("host command failed")
		return nil, err
	}
	s.log.Debug().Str("command", cmd.String()).Int("bytes", len(payload)).Msg("host command")
	return payload, nil
}

// selectDevice issues the transport selection at most once per connection.
func (s *Session) selectDevice() error {
	if s.deviceSelected {
		return nil
	}

	cmd := protocol.SelectDevice(s.opts.serial)
	err := protocol.SendRequest(s.t, cmd)
	s.opts.recorder.RecordRequest(cmd.String(), err)
	if err != nil {
		s.spent = true
		return fmt.Errorf("failed to select device: %w", err)
	}

	s.deviceSelected = true
	s.log.Debug().Str("command", cmd.String()).Msg("device selected")
	return nil
}

// deviceRequest prepares the connection, selects the device and sends cmd.
func (s *Session) deviceRequest(cmd protocol.Command) error {
	if err := s.prepare(); err != nil {
		return err
	}
	if err := s.selectDevice(); err != nil {
		return err
	}

	err := protocol.SendRequest(s.t, cmd)
	s.opts.recorder.RecordRequest(cmd.String(), err)
	if err != nil {
		s.spent = true
		return err
	}
	return nil
}

// openSync switches the connection into sync mode. The returned Conn serves
// exactly one request.
func (s *Session) openSync() (*syncproto.Conn, error) {
	if err := s.deviceRequest(protocol.Sync); err != nil {
		return nil, fmt.Errorf("failed to enter sync mode: %w", err)
	}
	s.syncMode = true

	c := syncproto.NewConn(s.t)
	c.SetClock(s.opts.now)
	return c, nil
}
