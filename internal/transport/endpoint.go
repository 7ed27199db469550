package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	NetworkUnix = "unix"
	NetworkTCP  = "tcp"

	// DefaultPort is the adb server's well-known TCP port.
	DefaultPort = 5037
)

// Endpoint names where the server listens.
type Endpoint struct {
	Network string
	Address string
}

func (e Endpoint) String() string {
	return e.Network + ":" + e.Address
}

// ParseEndpoint accepts:
//   - "unix:/var/run/adb.sock"
//   - "tcp:127.0.0.1:5037" or "tcp:localhost" (default port)
//   - "/var/run/adb.sock" (anything containing a slash is a socket path)
//   - "127.0.0.1:5037"
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("endpoint cannot be empty")
	}

	switch {
	case strings.HasPrefix(raw, "unix:"):
		path := strings.TrimPrefix(raw, "unix:")
		if path == "" {
			return Endpoint{}, fmt.Errorf("unix endpoint %q has no socket path", raw)
		}
		return Endpoint{Network: NetworkUnix, Address: path}, nil
	case strings.HasPrefix(raw, "tcp:"):
		return parseTCP(strings.TrimPrefix(raw, "tcp:"))
	case strings.Contains(raw, "/"):
		return Endpoint{Network: NetworkUnix, Address: raw}, nil
	default:
		return parseTCP(raw)
	}
}

func parseTCP(hostport string) (Endpoint, error) {
	if hostport == "" {
		return Endpoint{}, fmt.Errorf("tcp endpoint has no host")
	}
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		// No port given: the whole string is the host.
		host = strings.Trim(hostport, "[]")
		port = strconv.Itoa(DefaultPort)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil || n == 0 {
		return Endpoint{}, fmt.Errorf("invalid tcp port %q", port)
	}
	return Endpoint{Network: NetworkTCP, Address: net.JoinHostPort(host, port)}, nil
}
