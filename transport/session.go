package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/squeeze/protocol"
)

// WriteQueueSize is how many lines can wait to be written to a client
// before further lines are dropped.
const WriteQueueSize = 127

type outgoing struct {
	line   string
	hangup bool
}

// Session is a single client connection. Lines are read and handled in
// order by the read loop, replies and notifications are written by the
// write loop.
type Session struct {
	id   uint64
	conn net.Conn

	writeQueue chan outgoing
	closeOnce  sync.Once
	done       chan struct{}

	mu            sync.Mutex
	listening     bool
	categories    map[string]struct{}
	authenticated bool

	log   *zap.Logger
	trace bool
}

func newSession(id uint64, conn net.Conn, log *zap.Logger, trace bool) *Session {
	return &Session{
		id:         id,
		conn:       conn,
		writeQueue: make(chan outgoing, WriteQueueSize),
		done:       make(chan struct{}),
		log:        log,
		trace:      trace,
	}
}

func (s *Session) ID() uint64 {
	return s.id
}

func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// Send queues line to be written to the client.
func (s *Session) Send(line string) {
	s.enqueue(outgoing{line: line})
}

// Hangup closes the connection once every line queued before it was
// written.
func (s *Session) Hangup() {
	s.enqueue(outgoing{hangup: true})
}

// Listen turns delivery of every notification on or off.
func (s *Session) Listen(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listening = on
	if !on {
		s.categories = nil
	}
}

// Subscribe limits notifications to the given categories.
func (s *Session) Subscribe(categories []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listening = false
	s.categories = make(map[string]struct{}, len(categories))
	for _, c := range categories {
		if c = strings.TrimSpace(c); c != "" {
			s.categories[c] = struct{}{}
		}
	}
}

func (s *Session) IsListening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listening
}

// Wants reports whether a notification of category should be sent to the
// client.
func (s *Session) Wants(category string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listening {
		return true
	}

	_, ok := s.categories[category]
	return ok
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.authenticated
}

func (s *Session) SetAuthenticated(authenticated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authenticated = authenticated
}

// Close closes the connection straight away, dropping queued lines.
func (s *Session) Close() error {
	var err error

	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})

	return err
}

func (s *Session) isRunning() bool {
	select {
	case <-s.done:
		return false

	default:
		return true
	}
}

func (s *Session) enqueue(out outgoing) {
	if !s.isRunning() {
		return
	}

	select {
	case s.writeQueue <- out:
	default:
		s.log.Warn("Write queue is full, dropping line", zap.String("line", out.line))
	}
}

// serve runs the read and write loops until the client goes away, the
// session is closed or ctx is cancelled.
func (s *Session) serve(ctx context.Context, handler Handler) {
	var loopWaiter sync.WaitGroup

	loopWaiter.Add(2)

	go func() {
		defer loopWaiter.Done()
		s.readLoop(handler)
	}()

	go func() {
		defer loopWaiter.Done()
		s.writeLoop(ctx)
	}()

	loopWaiter.Wait()
}

func (s *Session) readLoop(handler Handler) {
	log := s.log.Named("readLoop")

	defer func() {
		// Whoever stops first takes the other loop down with it
		s.Close()
		log.Debug("Read loop exited")
	}()

	reader := protocol.NewLineReader(s.conn)

	for {
		line, err := reader.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn("Failed to read client line", zap.Error(err))
			}

			return
		}

		if s.trace {
			log.Debug("Received", zap.String("line", line))
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		handler.HandleLine(s, line)
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	log := s.log.Named("writeLoop")

	defer func() {
		s.Close()
		log.Debug("Write loop exited")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.done:
			return

		case out := <-s.writeQueue:
			if out.hangup {
				log.Debug("Hanging up")
				return
			}

			if s.trace {
				log.Debug("Sending", zap.String("line", out.line))
			}

			if err := protocol.WriteLine(s.conn, out.line); err != nil {
				log.Warn("Failed to write line",
					zap.String("line", out.line),
					zap.Error(err))
				return
			}
		}
	}
}
