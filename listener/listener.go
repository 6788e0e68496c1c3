// Package listener deals with the endpoint of an engine plugin: the
// host side allocates a port for it, the plugin side finds out where
// it is supposed to listen.
package listener

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Environment variables carrying the endpoint into the plugin process
const (
	EnvAddress = "ENGINE_PLUGIN_ADDRESS"
	EnvPort    = "ENGINE_PLUGIN_PORT"
)

var (
	ErrNoEndpoint = errors.New("No endpoint specified")
)

// Endpoint is the address and port a plugin listens to
type Endpoint struct {
	Address string
	Port    int
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// Listen creates a new TCP listener on the endpoint
func (e Endpoint) Listen() (net.Listener, error) {
	return net.Listen("tcp", e.String())
}

// FromArgs extracts the endpoint from the "--address" and "--port"
// arguments that the host appends to the plugin command line. Both
// "--port N" and "--port=N" forms are accepted
func FromArgs(args []string) (Endpoint, error) {
	var ep Endpoint
	var havePort bool
	for i := 0; i < len(args); i++ {
		name, value, inline := strings.Cut(args[i], "=")
		if name != "--address" && name != "--port" {
			continue
		}
		if !inline {
			if i+1 >= len(args) {
				return Endpoint{}, fmt.Errorf("missing value for %s", name)
			}
			i++
			value = args[i]
		}

		switch name {
		case "--address":
			ep.Address = value
		case "--port":
			port, err := parsePort(value)
			if err != nil {
				return Endpoint{}, err
			}
			ep.Port = port
			havePort = true
		}
	}

	if !havePort {
		return Endpoint{}, ErrNoEndpoint
	}
	return ep, nil
}

// FromEnv reads the endpoint from the environment variables set by
// the host
func FromEnv() (Endpoint, error) {
	portString := os.Getenv(EnvPort)
	if portString == "" {
		return Endpoint{}, ErrNoEndpoint
	}
	port, err := parsePort(portString)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{Address: os.Getenv(EnvAddress), Port: port}, nil
}

// Allocate asks the OS for a currently free TCP port on address.
// The port is released before returning, so there is a window in
// which somebody else may grab it
func Allocate(address string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(address, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()

	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address %s", l.Addr())
	}
	return addr.Port, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("failed to parse '%s' as port: %s", s, err)
	}
	return int(port), nil
}
