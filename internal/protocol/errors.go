package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is matched by every TransportError.
	ErrTransport = errors.New("protocol: transport failure")

	// ErrEndOfStream reports a DONE sentinel. Record iterators treat it as
	// normal termination; single-record reads (STAT) surface it to the caller.
	ErrEndOfStream = errors.New("protocol: end of stream")

	// ErrRequestTooLong is returned before any I/O when a service string does
	// not fit the 4-hex-digit length header.
	ErrRequestTooLong = errors.New("protocol: request too long")
)

// TransportError wraps a failure of the underlying connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ServerError carries the message of a FAIL response or record.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server rejected request: %s", e.Message)
}

// MalformedError reports a protocol contract violation: an unexpected tag,
// invalid hex, invalid UTF-8 or a short record.
type MalformedError struct {
	Context string
	Detail  string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed response (%s): %s", e.Context, e.Detail)
}

// Malformed builds a MalformedError.
func Malformed(context, format string, args ...any) error {
	return &MalformedError{Context: context, Detail: fmt.Sprintf(format, args...)}
}

// Wrap converts a raw I/O error into a TransportError. Errors that already
// belong to this package pass through untouched.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

// IsServerError reports whether err is a FAIL response and returns its message.
func IsServerError(err error) (string, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Message, true
	}
	return "", false
}
