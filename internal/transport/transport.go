// Package transport owns the byte stream to the adb server.
//
// A Transport is pure byte plumbing: it knows nothing about request framing
// or the sync sub-protocol and never retries. Two implementations share the
// contract, UnixTransport and TCPTransport; New picks one from an Endpoint.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// Compile-time interface checks.
var (
	_ Transport = (*UnixTransport)(nil)
	_ Transport = (*TCPTransport)(nil)
)

// Transport is a single reconnectable stream connection.
type Transport interface {
	// WriteAll writes every byte of p or fails.
	WriteAll(p []byte) error
	// ReadExact reads exactly n bytes.
	ReadExact(n int) ([]byte, error)
	// ReadFull fills buf completely.
	ReadFull(buf []byte) error
	// Read performs one read; short reads are allowed and io.EOF with zero
	// bytes means the peer closed the connection.
	Read(buf []byte) (int, error)
	// Reconnect drops the socket and dials the same endpoint again.
	Reconnect() error
	// Close releases the socket.
	Close() error
	// Endpoint returns the configured endpoint.
	Endpoint() Endpoint
}

// Options configures dialing.
type Options struct {
	// DialTimeout bounds connection establishment. Zero means no timeout.
	DialTimeout time.Duration
}

// New dials endpoint and returns the matching Transport implementation.
func New(ctx context.Context, endpoint Endpoint, opts Options) (Transport, error) {
	switch endpoint.Network {
	case NetworkUnix:
		return DialUnix(ctx, endpoint.Address, opts)
	case NetworkTCP:
		return DialTCP(ctx, endpoint.Address, opts)
	default:
		return nil, fmt.Errorf("unsupported network %q", endpoint.Network)
	}
}

// stream holds the connection shared by both implementations.
type stream struct {
	endpoint Endpoint
	dialer   net.Dialer
	conn     net.Conn
}

func (s *stream) dial(ctx context.Context) error {
	conn, err := s.dialer.DialContext(ctx, s.endpoint.Network, s.endpoint.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.endpoint, err)
	}
	s.conn = conn
	return nil
}

func (s *stream) WriteAll(p []byte) error {
	if s.conn == nil {
		return net.ErrClosed
	}
	for len(p) > 0 {
		n, err := s.conn.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func (s *stream) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := s.ReadFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *stream) ReadFull(buf []byte) error {
	if s.conn == nil {
		return net.ErrClosed
	}
	_, err := io.ReadFull(s.conn, buf)
	return err
}

func (s *stream) Read(buf []byte) (int, error) {
	if s.conn == nil {
		return 0, net.ErrClosed
	}
	return s.conn.Read(buf)
}

func (s *stream) Reconnect() error {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	return s.dial(context.Background())
}

func (s *stream) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *stream) Endpoint() Endpoint {
	return s.endpoint
}

// UnixTransport speaks to the server over a Unix-domain socket.
type UnixTransport struct {
	stream
}

// DialUnix connects to the socket at path.
func DialUnix(ctx context.Context, path string, opts Options) (*UnixTransport, error) {
	t := &UnixTransport{stream{
		endpoint: Endpoint{Network: NetworkUnix, Address: path},
		dialer:   net.Dialer{Timeout: opts.DialTimeout},
	}}
	if err := t.dial(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Path returns the socket path.
func (t *UnixTransport) Path() string {
	return t.endpoint.Address
}

// TCPTransport speaks to the server over TCP.
type TCPTransport struct {
	stream
}

// DialTCP connects to addr ("host:port").
func DialTCP(ctx context.Context, addr string, opts Options) (*TCPTransport, error) {
	t := &TCPTransport{stream{
		endpoint: Endpoint{Network: NetworkTCP, Address: addr},
		dialer:   net.Dialer{Timeout: opts.DialTimeout},
	}}
	if err := t.dial(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Addr returns the "host:port" the transport dials.
func (t *TCPTransport) Addr() string {
	return t.endpoint.Address
}
