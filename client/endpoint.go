package client

import (
	"errors"
	"net"
	"strconv"
)

// DefaultPort is the port the server listens for CLI connections on.
const DefaultPort = 9090

var ErrNoHost = errors.New("no server host provided")

// Credentials are only needed when the server has password protection
// enabled.
type Credentials struct {
	Username string
	Password string
}

// Endpoint is the address of a single server. A Conn keeps its Endpoint
// while it is connected.
type Endpoint struct {
	Host        string
	Port        int
	Credentials *Credentials
}

// Addr returns the host:port to dial.
func (e Endpoint) Addr() string {
	port := e.Port
	if port == 0 {
		port = DefaultPort
	}

	return net.JoinHostPort(e.Host, strconv.Itoa(port))
}

func (e Endpoint) String() string {
	return e.Addr()
}

// Validate checks the endpoint can be dialled.
func (e Endpoint) Validate() error {
	if e.Host == "" {
		return ErrNoHost
	}

	return nil
}
