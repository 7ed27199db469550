// Package protocol owns the text-framed host protocol.
//
// Ownership boundary:
// - host service commands and their request strings
// - %04x request framing and OKAY/FAIL status decoding
// - the error kinds shared with the sync codec
package protocol

import "fmt"

// CommandKind tags a host Command.
type CommandKind int

const (
	CmdVersion CommandKind = iota
	CmdDevices
	CmdDevicesLong
	CmdShellExec
	CmdSync
	CmdTransportAny
	CmdTransportSerial
	CmdTrackDevices
)

// Command is one host service request.
type Command struct {
	Kind CommandKind
	// Arg is the shell command line or device serial, depending on Kind.
	Arg string
}

var (
	Version      = Command{Kind: CmdVersion}
	Devices      = Command{Kind: CmdDevices}
	DevicesLong  = Command{Kind: CmdDevicesLong}
	Sync         = Command{Kind: CmdSync}
	TransportAny = Command{Kind: CmdTransportAny}
	TrackDevices = Command{Kind: CmdTrackDevices}
)

// ShellExec runs cmd on the selected device without a pty.
func ShellExec(cmd string) Command {
	return Command{Kind: CmdShellExec, Arg: cmd}
}

// TransportSerial pins the connection to the device with the given serial.
func TransportSerial(serial string) Command {
	return Command{Kind: CmdTransportSerial, Arg: serial}
}

// String renders the service string sent on the wire.
func (c Command) String() string {
	switch c.Kind {
	case CmdVersion:
		return "host:version"
	case CmdDevices:
		return "host:devices"
	case CmdDevicesLong:
		return "host:devices-l"
	case CmdShellExec:
		return "shell,raw:" + c.Arg
	case CmdSync:
		return "sync:"
	case CmdTransportAny:
		return "host:transport-any"
	case CmdTransportSerial:
		return "host:transport:" + c.Arg
	case CmdTrackDevices:
		return "host:track-devices"
	default:
		return fmt.Sprintf("unknown-command(%d)", int(c.Kind))
	}
}

// SelectDevice returns the transport selection command for serial; an
// empty serial selects any single attached device.
func SelectDevice(serial string) Command {
	if serial == "" {
		return TransportAny
	}
	return TransportSerial(serial)
}
