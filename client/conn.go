package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/luma/squeeze/protocol"
)

const (
	DefaultDialTimeout = 2 * time.Second
	DefaultReadTimeout = 1 * time.Second

	// MaskedPassword is what the server replies in place of the password
	// when a login succeeds.
	MaskedPassword = "******"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Ready
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Options struct {
	// DialTimeout bounds opening the connection.
	DialTimeout time.Duration

	// ReadTimeout bounds waiting for the reply to a request.
	ReadTimeout time.Duration

	// Redial reconnects, and logs in again, before a request when the
	// connection was closed by an earlier failure.
	Redial bool

	Log *zap.Logger
}

// Conn is a connection to the CLI port of a server. Requests are
// synchronous and a Conn only ever has one request in flight, concurrent
// callers queue behind each other.
type Conn struct {
	mu sync.Mutex

	endpoint Endpoint

	conn   net.Conn
	reader *protocol.LineReader

	state atomic.Int32

	// authErr is kept once the server rejected our credentials so Redial
	// does not retry them.
	authErr error

	dialTimeout time.Duration
	readTimeout time.Duration
	redial      bool

	log *zap.Logger
}

func NewConn(endpoint Endpoint, options Options) *Conn {
	c := &Conn{
		endpoint:    endpoint,
		dialTimeout: options.DialTimeout,
		readTimeout: options.ReadTimeout,
		redial:      options.Redial,
		log:         options.Log,
	}

	if c.dialTimeout <= 0 {
		c.dialTimeout = DefaultDialTimeout
	}

	if c.readTimeout <= 0 {
		c.readTimeout = DefaultReadTimeout
	}

	if c.log == nil {
		c.log = zap.NewNop()
	}

	return c
}

// Endpoint returns the server this connection talks to.
func (c *Conn) Endpoint() Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.endpoint
}

// SetEndpoint points the connection at another server. It fails with
// ErrAlreadyConnected while connected, Close first.
func (c *Conn) SetEndpoint(endpoint Endpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return ErrAlreadyConnected
	}

	c.endpoint = endpoint
	c.authErr = nil

	return nil
}

func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) IsConnected() bool {
	return c.State() != Disconnected
}

// Connect opens the connection without logging in.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}

	c.setState(Ready)

	return nil
}

// Open connects and, if the endpoint carries credentials, logs in.
func (c *Conn) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.openLocked(ctx)
}

// Login authenticates the connection. Any reply other than the masked
// password is an AuthenticationError and closes the connection.
func (c *Conn) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loginLocked(ctx, username, password)
}

// Request sends cmd and returns the decoded reply.
func (c *Conn) Request(ctx context.Context, cmd *protocol.Command) (*protocol.Response, error) {
	payload, err := c.request(ctx, cmd)
	if err != nil {
		return nil, err
	}

	return protocol.NewResponse(cmd, payload)
}

// RequestRaw sends cmd and returns the reply payload as received, without
// unescaping it.
func (c *Conn) RequestRaw(ctx context.Context, cmd *protocol.Command) (string, error) {
	payload, err := c.request(ctx, cmd)
	if err != nil {
		return "", err
	}

	return strings.Join(payload, " "), nil
}

// Ping reports whether the server answers a trivial request.
func (c *Conn) Ping(ctx context.Context) bool {
	_, err := c.Request(ctx, protocol.NewQuery("version"))
	if err != nil {
		c.log.Debug("Ping failed", zap.Error(err))
		return false
	}

	return true
}

// ReadLine waits up to timeout for a line pushed by the server. It returns
// an empty line and no error when nothing arrived in time.
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return "", c.notConnected("read")
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		c.closeLocked()
		return "", &ConnectionError{Op: "read", Addr: c.endpoint.Addr(), Cause: err}
	}

	line, err := c.reader.ReadLine()
	if err != nil {
		if protocol.IsTimeout(err) {
			return "", nil
		}

		c.closeLocked()
		return "", &ConnectionError{Op: "read", Addr: c.endpoint.Addr(), Cause: err}
	}

	return line, nil
}

// Close closes the connection. Closing a closed connection does nothing.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeLocked()
}

func (c *Conn) request(ctx context.Context, cmd *protocol.Command) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureLocked(ctx); err != nil {
		return nil, err
	}

	wire := cmd.Encode()

	line, err := c.roundTripLocked(ctx, wire)
	if err != nil {
		return nil, err
	}

	payload, err := protocol.StripEcho(cmd, line)
	if err != nil {
		c.log.Warn("Reply does not match request, closing connection",
			zap.String("sent", wire),
			zap.String("received", line))

		c.closeLocked()
		return nil, &ProtocolError{Sent: wire, Received: line, Cause: err}
	}

	return payload, nil
}

func (c *Conn) ensureLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	if !c.redial {
		return c.notConnected("request")
	}

	if c.authErr != nil {
		return c.authErr
	}

	c.log.Info("Reconnecting", zap.String("addr", c.endpoint.Addr()))
	return c.openLocked(ctx)
}

func (c *Conn) openLocked(ctx context.Context) error {
	if err := c.connectLocked(ctx); err != nil {
		return err
	}

	if creds := c.endpoint.Credentials; creds != nil {
		return c.loginLocked(ctx, creds.Username, creds.Password)
	}

	c.setState(Ready)

	return nil
}

func (c *Conn) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return ErrAlreadyConnected
	}

	if err := c.endpoint.Validate(); err != nil {
		return err
	}

	addr := c.endpoint.Addr()
	c.setState(Connecting)

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.setState(Disconnected)
		return &ConnectionError{Op: "dial", Addr: addr, Cause: err}
	}

	c.conn = conn
	c.reader = protocol.NewLineReader(conn)

	c.log.Debug("Connected", zap.String("addr", addr))

	return nil
}

func (c *Conn) loginLocked(ctx context.Context, username, password string) error {
	if c.conn == nil {
		return c.notConnected("login")
	}

	c.setState(Authenticating)

	cmd := protocol.NewCommand("login", username, password)

	line, err := c.roundTripLocked(ctx, cmd.Encode())
	if err != nil {
		// The server hangs up on bad credentials instead of replying.
		if errors.Is(err, io.EOF) {
			return c.rejectLocked(username)
		}

		return err
	}

	tokens := protocol.Fields(line)
	if len(tokens) < 2 || tokens[0] != "login" || tokens[len(tokens)-1] != MaskedPassword {
		return c.rejectLocked(username)
	}

	c.authErr = nil
	c.setState(Ready)

	return nil
}

func (c *Conn) rejectLocked(username string) error {
	c.log.Warn("Login rejected", zap.String("username", username))

	c.closeLocked()
	c.authErr = &AuthenticationError{Username: username}

	return c.authErr
}

// roundTripLocked writes a line and reads the next line, bounded by the
// read timeout or the context deadline, whichever comes first.
func (c *Conn) roundTripLocked(ctx context.Context, wire string) (string, error) {
	if c.conn == nil {
		return "", c.notConnected("request")
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	timeout := c.readTimeout
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
		timeout = time.Until(d)
	}

	if err := c.conn.SetDeadline(deadline); err != nil {
		c.closeLocked()
		return "", &ConnectionError{Op: "request", Addr: c.endpoint.Addr(), Cause: err}
	}

	if err := protocol.WriteLine(c.conn, wire); err != nil {
		c.closeLocked()
		return "", &ConnectionError{Op: "write", Addr: c.endpoint.Addr(), Cause: err}
	}

	line, err := c.reader.ReadLine()
	if err != nil {
		// Whatever the failure, a late reply would be read as the reply to
		// the next request, so the connection cannot be reused.
		c.closeLocked()

		if protocol.IsTimeout(err) {
			return "", &RequestTimeoutError{Command: wire, After: timeout}
		}

		return "", &ConnectionError{Op: "read", Addr: c.endpoint.Addr(), Cause: err}
	}

	if err := c.conn.SetDeadline(time.Time{}); err != nil {
		c.log.Debug("Failed to clear deadline", zap.Error(err))
	}

	return line, nil
}

func (c *Conn) setState(state State) {
	if old := State(c.state.Swap(int32(state))); old != state {
		c.log.Debug("State changed", zap.Stringer("from", old), zap.Stringer("to", state))
	}
}

func (c *Conn) closeLocked() error {
	c.setState(Disconnected)

	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.reader = nil

	c.log.Debug("Connection closed", zap.String("addr", c.endpoint.Addr()))

	return err
}

func (c *Conn) notConnected(op string) error {
	return &ConnectionError{Op: op, Addr: c.endpoint.Addr(), Cause: ErrNotConnected}
}
