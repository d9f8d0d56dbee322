package transport

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultPort is the daemon's registered TCP port.
const DefaultPort = "6600"

// FromAddress picks a transport for addr:
//
//	tcp://host:port, host:port, host   TCP (port defaults to 6600)
//	tls://host:port                    TCP wrapped in TLS
//	unix:///run/mpd/socket, /abs/path  Unix socket
//	ws://host/path, wss://host/path    WebSocket bridge
func FromAddress(addr string, opts Options) (Transport, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrAddressRequired
	}
	if strings.HasPrefix(addr, "/") {
		return NewUnix(addr, opts), nil
	}
	if !strings.Contains(addr, "://") {
		return NewTCP(withDefaultPort(addr), opts), nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("transport: parse address %q: %w", addr, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "tcp":
		if u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrAddressRequired, addr)
		}
		return NewTCP(withDefaultPort(u.Host), opts), nil
	case "tls":
		if u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrAddressRequired, addr)
		}
		return NewTLS(withDefaultPort(u.Host), opts), nil
	case "unix":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			return nil, fmt.Errorf("%w: %q", ErrAddressRequired, addr)
		}
		return NewUnix(path, opts), nil
	case "ws", "wss":
		if u.Host == "" {
			return nil, fmt.Errorf("%w: %q", ErrAddressRequired, addr)
		}
		return NewWebSocket(addr, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func withDefaultPort(hostport string) string {
	if _, _, err := net.SplitHostPort(hostport); err == nil {
		return hostport
	}
	host := strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]")
	return net.JoinHostPort(host, DefaultPort)
}
