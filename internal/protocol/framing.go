package protocol

import (
	"fmt"
	"unicode/utf8"
)

// Stream is the subset of a transport the framing layer needs.
type Stream interface {
	WriteAll(p []byte) error
	ReadFull(buf []byte) error
}

// EncodeRequest frames a service string as "%04x%s".
func EncodeRequest(cmd Command) ([]byte, error) {
	service := cmd.String()
	if len(service) > MaxRequestLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrRequestTooLong, len(service))
	}
	return []byte(fmt.Sprintf("%04x%s", len(service), service)), nil
}

// SendRequest writes cmd and consumes its status. A FAIL status is returned
// as a *ServerError carrying the server's message.
func SendRequest(s Stream, cmd Command) error {
	req, err := EncodeRequest(cmd)
	if err != nil {
		return err
	}
	if err := s.WriteAll(req); err != nil {
		return Wrap("write request", err)
	}

	var tag [StatusLen]byte
	if err := s.ReadFull(tag[:]); err != nil {
		return Wrap("read status", err)
	}
	kind, err := DecodeStatus(tag)
	if err != nil {
		return err
	}
	if kind == StatusOkay {
		return nil
	}

	msg, err := ReadHexString(s, "fail message")
	if err != nil {
		return err
	}
	return &ServerError{Message: msg}
}

// SendCommand sends cmd and, when waitForResponse is set, reads the
// hex-length-prefixed payload that follows OKAY.
func SendCommand(s Stream, cmd Command, waitForResponse bool) ([]byte, error) {
	if err := SendRequest(s, cmd); err != nil {
		return nil, err
	}
	if !waitForResponse {
		return nil, nil
	}
	return ReadHexPayload(s)
}

// ReadHexLength reads and decodes one 4-hex-digit length header.
func ReadHexLength(s Stream) (int, error) {
	var hdr [HexLengthLen]byte
	if err := s.ReadFull(hdr[:]); err != nil {
		return 0, Wrap("read length", err)
	}
	return ParseHexLength(hdr)
}

// ReadHexPayload reads a hex length header followed by that many bytes.
func ReadHexPayload(s Stream) ([]byte, error) {
	n, err := ReadHexLength(s)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, n)
	if n > 0 {
		if err := s.ReadFull(payload); err != nil {
			return nil, Wrap("read payload", err)
		}
	}
	return payload, nil
}

// ReadHexString reads a hex-prefixed payload that must be valid UTF-8.
func ReadHexString(s Stream, context string) (string, error) {
	payload, err := ReadHexPayload(s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(payload) {
		return "", Malformed(context, "payload is not valid UTF-8")
	}
	return string(payload), nil
}
