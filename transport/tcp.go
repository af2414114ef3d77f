package transport

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrNotStarted = errors.New("server has not been started")

// Handler handles the lines clients send. Replies are written with
// Session.Send.
type Handler interface {
	HandleLine(session *Session, line string)
}

type HandlerFunc func(session *Session, line string)

func (f HandlerFunc) HandleLine(session *Session, line string) {
	f(session, line)
}

// TCP is a server speaking the line based CLI protocol.
type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup
	closeOnce  sync.Once

	addr         string
	reuseport    bool
	numListeners int

	handler Handler

	mu        sync.Mutex
	listeners []net.Listener
	sessions  map[*Session]struct{}

	nextID   atomic.Uint64
	accepted atomic.Int64

	log   *zap.Logger
	trace bool
}

func NewTCP(options Options) *TCP {
	numListeners := 1
	if options.Reuseport && options.NumListeners > 1 {
		numListeners = options.NumListeners
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		reuseport:    options.Reuseport,
		numListeners: numListeners,
		listeners:    make([]net.Listener, 0, numListeners),
		sessions:     make(map[*Session]struct{}),
		handler:      options.Handler,
		log:          log,
		trace:        options.Trace,
	}
}

// Start binds every listener and starts accepting connections. It returns
// once the server is listening.
func (t *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	t.cancel = cancel

	t.log.Info("Starting tcp listeners",
		zap.String("addr", t.addr),
		zap.Int("count", t.numListeners))

	addr := t.addr
	for i := 0; i < t.numListeners; i++ {
		listener, err := t.listen(addr)
		if err != nil {
			cancel()
			return multierr.Append(err, t.closeListeners())
		}

		// Further listeners share whatever port the first one got
		addr = listener.Addr().String()

		t.mu.Lock()
		t.listeners = append(t.listeners, listener)
		t.mu.Unlock()
	}

	for i, listener := range t.listeners {
		t.stopWaiter.Add(1)

		go func(listener net.Listener, log *zap.Logger) {
			defer t.stopWaiter.Done()

			if err := t.acceptLoop(ctx, listener, log); err != nil {
				log.Error("Failed to accept", zap.Error(err))
			}
		}(listener, t.log.Named("listener").With(zap.Int("listener", i)))
	}

	go func() {
		<-ctx.Done()
		t.Close()
	}()

	return nil
}

// Addr returns the address the server listens on.
func (t *TCP) Addr() (net.Addr, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.listeners) == 0 {
		return nil, ErrNotStarted
	}

	return t.listeners[0].Addr(), nil
}

// Accepted returns how many connections were accepted so far.
func (t *TCP) Accepted() int64 {
	return t.accepted.Load()
}

// Sessions returns the connected clients.
func (t *TCP) Sessions() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessions := make([]*Session, 0, len(t.sessions))
	for s := range t.sessions {
		sessions = append(sessions, s)
	}

	return sessions
}

// Broadcast sends line to every client that wants notifications of
// category, and returns how many did.
func (t *TCP) Broadcast(category, line string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	sent := 0
	for s := range t.sessions {
		if s.Wants(category) {
			s.Send(line)
			sent++
		}
	}

	return sent
}

// Disconnect closes every client connection but keeps listening.
func (t *TCP) Disconnect() error {
	var err error

	for _, s := range t.Sessions() {
		err = multierr.Append(err, s.Close())
	}

	return err
}

// Close immediately closes all listeners and connections, and waits for
// their loops to exit.
func (t *TCP) Close() error {
	var err error

	t.closeOnce.Do(func() {
		t.log.Info("Stopping TCP server")

		if t.cancel != nil {
			t.cancel()
		}

		err = multierr.Combine(t.closeListeners(), t.Disconnect())

		t.stopWaiter.Wait()
		t.log.Info("TCP server stopped")
	})

	return err
}

func (t *TCP) listen(addr string) (net.Listener, error) {
	if t.reuseport {
		return reuseport.Listen("tcp", addr)
	}

	return net.Listen("tcp", addr)
}

func (t *TCP) closeListeners() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var err error
	for _, listener := range t.listeners {
		if cerr := listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}

	return err
}

func (t *TCP) acceptLoop(ctx context.Context, listener net.Listener, log *zap.Logger) error {
	var loopWaiter sync.WaitGroup

	defer func() {
		log.Info("Waiting for read/write loops to stop")
		loopWaiter.Wait()
		log.Info("Listener stopped")
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				return nil
			}

			return err
		}

		id := t.nextID.Add(1)
		t.accepted.Add(1)

		session := newSession(id, conn, t.log.Named("session").With(
			zap.Uint64("session", id),
			zap.String("remote", conn.RemoteAddr().String()),
		), t.trace)

		t.addSession(session)

		loopWaiter.Add(1)
		go func() {
			defer loopWaiter.Done()
			defer t.removeSession(session)

			session.serve(ctx, t.handler)
		}()
	}
}

func (t *TCP) addSession(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[s] = struct{}{}
}

func (t *TCP) removeSession(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.sessions, s)
}
