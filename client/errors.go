package client

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected is returned for requests made without an open
	// connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned when connecting, or changing the
	// endpoint, while a connection is open.
	ErrAlreadyConnected = errors.New("already connected")
)

// ConnectionError is returned when the connection could not be opened or
// failed while in use.
type ConnectionError struct {
	Op    string
	Addr  string
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// AuthenticationError is returned when the server rejects the login. It is
// not worth retrying with the same credentials.
type AuthenticationError struct {
	Username string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("login rejected for user '%s', check username and password", e.Username)
}

// RequestTimeoutError is returned when the server does not reply in time.
type RequestTimeoutError struct {
	Command string
	After   time.Duration
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("no reply to '%s' within %s", e.Command, e.After)
}

// Timeout lets callers treat the error like a net.Error timeout.
func (e *RequestTimeoutError) Timeout() bool {
	return true
}

// ProtocolError is returned when a reply does not echo the command that was
// sent. The connection is out of step with the server and gets closed.
type ProtocolError struct {
	Sent     string
	Received string
	Cause    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected reply to '%s': '%s': %v", e.Sent, e.Received, e.Cause)
}

func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether err means reconnecting is pointless.
func IsFatal(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr) || errors.Is(err, ErrNoHost)
}
