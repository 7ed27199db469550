// Package device parses the adb server's device listing.
package device

import (
	"fmt"
	"strconv"
	"strings"
)

// State is the connection state the server reports for a device.
type State int

const (
	StateConnecting   State = iota // no response from the device yet
	StateAuthorizing               // authorizing with vendor keys
	StateUnauthorized              // waiting for the user to accept the key
	StateNoPerm                    // insufficient permissions on the host
	StateDetached                  // USB device detached from the server
	StateOffline
	StateBootloader // fastboot or fastbootd
	StateDevice     // adbd running on the full OS
	StateHost
	StateRecovery
	StateSideload
	StateRescue
)

var stateNames = [...]string{
	StateConnecting:   "connecting",
	StateAuthorizing:  "authorizing",
	StateUnauthorized: "unauthorized",
	StateNoPerm:       "noperm",
	StateDetached:     "detached",
	StateOffline:      "offline",
	StateBootloader:   "bootloader",
	StateDevice:       "device",
	StateHost:         "host",
	StateRecovery:     "recovery",
	StateSideload:     "sideload",
	StateRescue:       "rescue",
}

// ParseState maps a state keyword to a State.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown device state %q", s)
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the keyword in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a keyword.
func (s *State) UnmarshalText(b []byte) error {
	st, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Device is one parsed line of the listing.
type Device struct {
	Serial      string  `json:"serial" yaml:"serial"`
	State       State   `json:"state" yaml:"state"`
	Product     *string `json:"product,omitempty" yaml:"product,omitempty"`
	Model       *string `json:"model,omitempty" yaml:"model,omitempty"`
	Device      *string `json:"device,omitempty" yaml:"device,omitempty"`
	DevPath     *string `json:"devpath,omitempty" yaml:"devpath,omitempty"`
	TransportID *uint64 `json:"transport_id,omitempty" yaml:"transport_id,omitempty"`
}

const (
	keyProduct     = "product:"
	keyModel       = "model:"
	keyDevice      = "device:"
	keyTransportID = "transport_id:"
)

var knownKeys = []string{keyProduct, keyModel, keyDevice, keyTransportID}

func isKeyToken(tok string) bool {
	for _, k := range knownKeys {
		if strings.HasPrefix(tok, k) {
			return true
		}
	}
	return false
}

// Parse parses one listing line:
//
//	serial WS state [devpath] [product:X] [model:X] [device:X] [transport_id:N]
//
// The optional fields are consumed in that fixed order; tokens after the
// last recognized field are ignored.
func Parse(line string) (Device, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return Device{}, fmt.Errorf("device line %q: missing serial or state", line)
	}

	d := Device{Serial: tokens[0]}
	st, err := ParseState(tokens[1])
	if err != nil {
		return Device{}, fmt.Errorf("device line %q: %w", line, err)
	}
	d.State = st

	rest := tokens[2:]
	if len(rest) > 0 && !isKeyToken(rest[0]) {
		d.DevPath = strPtr(rest[0])
		rest = rest[1:]
	}

	targets := []struct {
		key string
		dst **string
	}{
		{keyProduct, &d.Product},
		{keyModel, &d.Model},
		{keyDevice, &d.Device},
	}
	for _, tgt := range targets {
		if len(rest) == 0 {
			break
		}
		if v, ok := value(rest[0], tgt.key); ok {
			*tgt.dst = strPtr(v)
			rest = rest[1:]
		}
	}

	if len(rest) > 0 {
		if v, ok := value(rest[0], keyTransportID); ok {
			if id, err := strconv.ParseUint(v, 10, 64); err == nil {
				d.TransportID = &id
			}
		}
	}

	return d, nil
}

// value returns the non-empty value of a "key:value" token.
func value(tok, key string) (string, bool) {
	if !strings.HasPrefix(tok, key) {
		return "", false
	}
	v := tok[len(key):]
	if v == "" {
		return "", false
	}
	return v, true
}

// ParseList parses a whole listing, dropping lines that do not match.
func ParseList(text string) []Device {
	var devices []Device
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d, err := Parse(line)
		if err != nil {
			continue
		}
		devices = append(devices, d)
	}
	return devices
}

func strPtr(s string) *string {
	return &s
}
