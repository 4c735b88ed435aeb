// Package validate checks the host/port pair tunerwatch connects to.
//
// Only private-network and loopback IPv4 literals are accepted as hosts;
// the tuner server is expected to live on the local network. Ports are
// plain decimal integers in 1-65535.
package validate

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

var (
	ErrHostRequired = errors.New("host is required")
	ErrInvalidHost  = errors.New("host must be a private IPv4 address")
	ErrPortRequired = errors.New("port is required")
	ErrInvalidPort  = errors.New("port must be an integer between 1 and 65535")
)

// Host reports whether host is a private or loopback IPv4 literal.
func Host(host string) error {
	if host == "" {
		return ErrHostRequired
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || !addr.Is4() {
		return fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	if !addr.IsPrivate() && !addr.IsLoopback() {
		return fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	return nil
}

// Port parses port and reports whether it is a usable TCP port.
func Port(port string) (int, error) {
	if port == "" {
		return 0, ErrPortRequired
	}
	for _, r := range port {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPort, port)
		}
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, port)
	}
	return n, nil
}

// Endpoint validates a host and port pair. Both must be valid before any
// connection attempt is made.
func Endpoint(host, port string) error {
	if err := Host(host); err != nil {
		return err
	}
	_, err := Port(port)
	return err
}

// SplitHostPort splits a "host:port" entry as typed by the operator and
// validates both halves.
func SplitHostPort(input string) (host, port string, err error) {
	input = strings.TrimSpace(input)
	idx := strings.LastIndexByte(input, ':')
	if idx < 0 {
		return "", "", fmt.Errorf("%w: %q", ErrPortRequired, input)
	}
	host, port = input[:idx], input[idx+1:]
	if err := Endpoint(host, port); err != nil {
		return "", "", err
	}
	return host, port, nil
}
