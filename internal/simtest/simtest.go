// Package simtest starts simulated servers for tests.
package simtest

import (
	"context"
	"net"
	"strconv"

	"github.com/luma/squeeze/client"
	"github.com/luma/squeeze/transport"
)

// Server is a simulator listening on a free local port.
type Server struct {
	*transport.Simulator

	TCP      *transport.TCP
	Endpoint client.Endpoint
}

// Start starts a simulator with players on 127.0.0.1. The server stops when
// ctx is cancelled or Close is called.
func Start(ctx context.Context, options transport.SimulatorOptions, players ...transport.SimPlayer) (*Server, error) {
	sim := transport.NewSimulator(options)
	for _, p := range players {
		sim.AddPlayer(p)
	}

	tcp, err := transport.NewSimulatorServer(ctx, sim, transport.Options{Host: "127.0.0.1"})
	if err != nil {
		return nil, err
	}

	addr, err := tcp.Addr()
	if err != nil {
		tcp.Close()
		return nil, err
	}

	host, p, err := net.SplitHostPort(addr.String())
	if err != nil {
		tcp.Close()
		return nil, err
	}

	port, err := strconv.Atoi(p)
	if err != nil {
		tcp.Close()
		return nil, err
	}

	endpoint := client.Endpoint{Host: host, Port: port}
	if options.Username != "" {
		endpoint.Credentials = &client.Credentials{Username: options.Username, Password: options.Password}
	}

	return &Server{Simulator: sim, TCP: tcp, Endpoint: endpoint}, nil
}

func (s *Server) Close() error {
	return s.TCP.Close()
}
