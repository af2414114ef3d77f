package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/luma/squeeze/client"
	"github.com/luma/squeeze/protocol"
)

const (
	DefaultRetryDelay  = 5 * time.Second
	DefaultReadTimeout = 1 * time.Second
)

var (
	ErrAlreadyRunning = errors.New("subscriber is already running")

	errStopped = errors.New("subscriber stopped")
)

type State int32

const (
	Idle State = iota
	Connecting
	Subscribing
	Listening
	Erroring
	Stopped

	// Failed means the server rejected the credentials. The subscriber
	// does not retry.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Subscribing:
		return "subscribing"
	case Listening:
		return "listening"
	case Erroring:
		return "erroring"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Connector opens and logs in a connection for the subscriber.
type Connector func(ctx context.Context) (*client.Conn, error)

type Options struct {
	// RetryDelay is how long to wait between connection attempts.
	RetryDelay time.Duration

	// ReadTimeout bounds each wait for a notification, and so how long a
	// Stop can take to be noticed.
	ReadTimeout time.Duration

	DialTimeout time.Duration

	// ListenAll asks for every notification even when handlers are
	// registered for specific categories.
	ListenAll bool

	// Connector replaces the default dial and login.
	Connector Connector

	Log *zap.Logger
}

// Subscriber keeps a connection of its own to the server, subscribes to
// the categories of the registered handlers and dispatches every
// notification it receives. It reconnects forever while the server is
// unreachable and raises the synthetic ServerConnect and ServerError
// events when the connection comes and goes.
type Subscriber struct {
	endpoint client.Endpoint
	registry *Registry

	retryDelay  time.Duration
	readTimeout time.Duration
	listenAll   bool
	connector   Connector

	running  atomic.Bool
	state    atomic.Int32
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu   sync.Mutex
	conn *client.Conn
	err  error

	log *zap.Logger
}

func NewSubscriber(endpoint client.Endpoint, registry *Registry, options Options) *Subscriber {
	s := &Subscriber{
		endpoint:    endpoint,
		registry:    registry,
		retryDelay:  options.RetryDelay,
		readTimeout: options.ReadTimeout,
		listenAll:   options.ListenAll,
		connector:   options.Connector,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		log:         options.Log,
	}

	if s.retryDelay <= 0 {
		s.retryDelay = DefaultRetryDelay
	}

	if s.readTimeout <= 0 {
		s.readTimeout = DefaultReadTimeout
	}

	if s.log == nil {
		s.log = zap.NewNop()
	}

	if s.connector == nil {
		dialTimeout := options.DialTimeout
		s.connector = func(ctx context.Context) (*client.Conn, error) {
			conn := client.NewConn(endpoint, client.Options{
				DialTimeout: dialTimeout,
				ReadTimeout: s.readTimeout,
				Log:         s.log.Named("conn"),
			})

			if err := conn.Open(ctx); err != nil {
				conn.Close()
				return nil, err
			}

			return conn, nil
		}
	}

	return s
}

func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// Err returns the error that made the subscriber give up, if any.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Start runs the subscriber on a goroutine of its own.
func (s *Subscriber) Start(ctx context.Context) {
	go func() {
		if err := s.Run(ctx); err != nil {
			s.log.Error("Subscriber failed", zap.Error(err))
		}
	}()
}

// Stop asks the subscriber to close its connection and return. It takes
// effect within one read timeout, a stopped subscriber never restarts.
func (s *Subscriber) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Done is closed once Run has returned.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until Run has returned.
func (s *Subscriber) Wait() {
	<-s.done
}

// Run connects, subscribes and dispatches notifications until Stop is
// called or ctx is cancelled. It only returns an error if the server
// rejected the credentials.
func (s *Subscriber) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	defer close(s.done)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()

	s.setState(Connecting)

	for {
		if s.stopping() {
			return s.shutdown()
		}

		switch s.State() {
		case Connecting:
			if err := s.connect(ctx); err != nil {
				if errors.Is(err, errStopped) {
					return s.shutdown()
				}

				return s.fail(err)
			}

			s.dispatch(SyntheticEvent(ServerConnect))
			s.setState(Subscribing)

		case Subscribing:
			if err := s.subscribe(ctx); err != nil {
				s.log.Warn("Failed to subscribe", zap.Error(err))
				s.setState(Erroring)
				continue
			}

			s.setState(Listening)

		case Listening:
			line, err := s.currentConn().ReadLine(s.readTimeout)
			if err != nil {
				s.log.Warn("Lost connection to server", zap.Error(err))
				s.setState(Erroring)
				continue
			}

			if line == "" {
				continue
			}

			s.handleLine(line)

		case Erroring:
			s.closeConn()
			s.dispatch(SyntheticEvent(ServerError))
			s.setState(Connecting)
		}
	}
}

// connect retries until a connection is open, the subscriber is stopped or
// the server rejects the credentials.
func (s *Subscriber) connect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if s.stopping() {
			return errStopped
		}

		conn, err := s.connector(ctx)
		if err == nil {
			s.mu.Lock()
			s.conn = conn
			s.mu.Unlock()

			s.log.Info("Connected to server",
				zap.String("addr", s.endpoint.Addr()),
				zap.Int("attempt", attempt))

			return nil
		}

		if client.IsFatal(err) {
			return err
		}

		s.log.Warn("Failed to connect to server, retrying",
			zap.String("addr", s.endpoint.Addr()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", s.retryDelay),
			zap.Error(err))

		select {
		case <-s.stop:
			return errStopped
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cmd := protocol.NewCommand("listen")

	if categories := s.registry.Categories(); len(categories) > 0 && !s.listenAll {
		cmd = protocol.NewCommand("subscribe", strings.Join(categories, ","))
	}

	s.log.Info("Subscribing", zap.String("command", cmd.String()))

	_, err := s.currentConn().Request(ctx, cmd)
	return err
}

func (s *Subscriber) handleLine(line string) {
	ev, err := ParseEvent(line)
	if err != nil {
		s.log.Warn("Dropping malformed notification",
			zap.String("line", line),
			zap.Error(err))
		return
	}

	s.dispatch(ev)
}

func (s *Subscriber) dispatch(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Handler panicked",
				zap.String("event", ev.Line),
				zap.Any("panic", r))
		}
	}()

	if !s.registry.Dispatch(ev) {
		s.log.Debug("No handler for notification", zap.String("event", ev.Line))
	}
}

func (s *Subscriber) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Subscriber) shutdown() error {
	s.closeConn()
	s.setState(Stopped)

	s.log.Info("Subscriber stopped")

	return nil
}

func (s *Subscriber) fail(err error) error {
	s.closeConn()

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	s.setState(Failed)

	return err
}

func (s *Subscriber) currentConn() *client.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn
}

func (s *Subscriber) closeConn() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return
	}

	if err := conn.Close(); err != nil {
		s.log.Debug("Failed to close connection cleanly", zap.Error(err))
	}
}

func (s *Subscriber) setState(state State) {
	s.state.Store(int32(state))
}
