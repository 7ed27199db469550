package adb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aguxez/adbx/internal/device"
	"github.com/aguxez/adbx/internal/protocol"
)

// shellReadSize is the buffer for draining streamed output.
const shellReadSize = 4096

// DeviceList is the answer to a devices query or one track-devices update.
type DeviceList struct {
	// Raw is the server text, always kept.
	Raw string `json:"-" yaml:"-"`
	// Devices is the parsed form. It is nil in raw output mode.
	Devices []device.Device `json:"devices" yaml:"devices"`
}

// Version returns the server's protocol version.
func (s *Session) Version() (int, error) {
	payload, err := s.SendCommand(protocol.Version, true)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(payload), 16, 32)
	if err != nil {
		return 0, protocol.Malformed("version", "payload %q is not hex", payload)
	}
	return int(v), nil
}

// Devices lists attached devices. long selects the detailed listing that
// carries product, model, device and transport id.
func (s *Session) Devices(long bool) (*DeviceList, error) {
	cmd := protocol.Devices
	if long {
		cmd = protocol.DevicesLong
	}
	payload, err := s.SendCommand(cmd, true)
	if err != nil {
		return nil, err
	}
	return s.deviceList(string(payload)), nil
}

func (s *Session) deviceList(raw string) *DeviceList {
	list := &DeviceList{Raw: raw}
	if s.opts.structured {
		list.Devices = device.ParseList(raw)
		if list.Devices == nil {
			list.Devices = []device.Device{}
		}
	}
	return list
}

// TrackDevices streams device list updates to fn until the server closes
// the connection or fn returns an error, which is passed back.
func (s *Session) TrackDevices(fn func(*DeviceList) error) error {
	if err := s.prepare(); err != nil {
		return err
	}

	err := protocol.SendRequest(s.t, protocol.TrackDevices)
	s.spent = true
	s.opts.recorder.RecordRequest(protocol.TrackDevices.String(), err)
	if err != nil {
		return err
	}

	for {
		raw, err := protocol.ReadHexString(s.t, "device snapshot")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		s.log.Debug().Int("bytes", len(raw)).Msg("device snapshot")
		if err := fn(s.deviceList(raw)); err != nil {
			return err
		}
	}
}

// Shell runs cmd on the device and copies its output to w until the device
// closes the stream. It returns the number of bytes copied.
func (s *Session) Shell(cmd string, w io.Writer) (int64, error) {
	if err := s.deviceRequest(protocol.ShellExec(cmd)); err != nil {
		return 0, err
	}
	s.spent = true

	var total int64
	buf := make([]byte, shellReadSize)
	for {
		n, err := s.t.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("failed to write shell output: %w", werr)
			}
			total += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, protocol.Wrap("read shell output", err)
		}
	}

	s.log.Debug().Str("cmd", cmd).Int64("bytes", total).Msg("shell finished")
	return total, nil
}

// ShellOutput runs cmd and returns its output as a string.
func (s *Session) ShellOutput(cmd string) (string, error) {
	var buf bytes.Buffer
	if _, err := s.Shell(cmd, &buf); err != nil {
		return buf.String(), err
	}
	return buf.String(), nil
}

// Mkdir creates a remote directory and its parents with "mkdir -p". The
// path must pass the sandbox policy.
func (s *Session) Mkdir(p string) error {
	if err := s.validator.Validate(p); err != nil {
		return err
	}
	out, err := s.ShellOutput("mkdir -p " + shellQuote(p))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", p, err)
	}
	if msg := strings.TrimSpace(out); msg != "" {
		return fmt.Errorf("failed to create %s: %s", p, msg)
	}
	return nil
}

// shellQuote wraps s in single quotes for the device shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
