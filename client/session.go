// Package client implements the chat client: a session that lazily connects to
// the relay server, sends parsed user input and stores what other peers send.
package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/chat/message"
)

// ErrDial is returned when the server cannot be reached. The message being
// sent is dropped.
var ErrDial = errors.New("unable to connect")

// maxLineLength bounds a single input line.
const maxLineLength = 1024 * 1024

// Session owns at most one live connection to the server, shared by the
// sender and the receiver started when the connection was dialed.
type Session struct {
	addr string
	opts options

	mu   sync.Mutex
	conn net.Conn

	outMu sync.Mutex
	tasks errgroup.Group
}

// NewSession returns a Session for the server at addr (host:port).
// No connection is made until the first message is sent.
func NewSession(addr string, opt ...Option) *Session {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	return &Session{addr: addr, opts: opts}
}

// Run greets the server, then sends every message parsed from input until the
// quit command, end of input, or ctx is canceled. It returns after the send
// queue is drained and the receiver has stopped.
func (s *Session) Run(ctx context.Context, input io.Reader) error {
	queue := make(chan message.Message, s.opts.queueSize)
	if s.opts.username != "" {
		queue <- message.NewText("Hello from " + s.opts.username)
	}

	s.tasks.Go(func() error {
		defer close(queue)
		return s.readInput(ctx, input, queue)
	})

	s.tasks.Go(func() error {
		s.sendLoop(ctx, queue)
		s.Close()
		return nil
	})

	return s.tasks.Wait()
}

func (s *Session) readInput(ctx context.Context, input io.Reader, queue chan<- message.Message) error {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	for scanner.Scan() {
		msgs, err := ParseCommand(scanner.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			s.printf("error: %v\n", err)
			continue
		}

		for _, m := range msgs {
			select {
			case queue <- m:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return errors.Wrap(scanner.Err(), "read input")
}

func (s *Session) sendLoop(ctx context.Context, queue <-chan message.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-queue:
			if !ok {
				return
			}

			s.printf(">>> %s\n", outboundSummary(m))
			if err := s.Send(ctx, m); err != nil {
				s.opts.logger.Warn("message not sent", "kind", m.Kind(), "error", err)
				s.printf("error: %v\n", err)
			}
		}
	}
}

func outboundSummary(m message.Message) string {
	switch m := m.(type) {
	case message.Image:
		return fmt.Sprintf("Sending image: %s.%s", m.Name, m.Ext)
	case message.File:
		return fmt.Sprintf("Sending file: %s", m.Name)
	default:
		return m.String()
	}
}

// Send writes m to the server, dialing first if there is no live connection.
// A failed write drops the connection so the next Send dials again.
func (s *Session) Send(ctx context.Context, m message.Message) error {
	data, err := s.opts.codec.Encode(m)
	if err != nil {
		return err
	}

	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}

	if _, err := conn.Write(data); err != nil {
		s.drop(conn)
		return errors.Wrap(err, "send")
	}
	return nil
}

// connection returns the live connection, dialing and starting its receiver
// if there is none.
func (s *Session) connection(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}

	conn, err := s.opts.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, errors.Wrapf(ErrDial, "%s: %v", s.addr, err)
	}
	s.opts.logger.Info("connected", "addr", s.addr)

	s.conn = conn
	s.tasks.Go(func() error {
		s.receive(conn)
		return nil
	})

	return conn, nil
}

// drop closes conn and forgets it if it is still the live connection.
func (s *Session) drop(conn net.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()

	_ = conn.Close()
}

// Connected reports whether the session holds a live connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Close drops the live connection, which stops its receiver.
func (s *Session) Close() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		s.drop(conn)
	}
}

// Wait blocks until every receiver started by Send has stopped.
func (s *Session) Wait() error {
	return s.tasks.Wait()
}

// receive handles inbound messages on conn until the first read failure.
// It does not reconnect; the next Send does.
func (s *Session) receive(conn net.Conn) {
	reader := bufio.NewReader(conn)

	for {
		m, err := s.opts.codec.Decode(reader)
		if err != nil {
			s.opts.logger.Info("disconnecting reply reader", "addr", s.addr, "error", err)
			return
		}
		s.handle(m)
	}
}

func (s *Session) handle(m message.Message) {
	switch m := m.(type) {
	case message.Text:
		s.printf("<<< %s\n", m.Body)
	case message.Image:
		path, err := s.opts.store.SaveImage(m.Name, m.Ext, m.Data)
		s.report(m, path, err)
	case message.File:
		path, err := s.opts.store.SaveFile(m.Name, m.Data)
		s.report(m, path, err)
	}
}

func (s *Session) report(m message.Message, path string, err error) {
	if err != nil {
		s.opts.logger.Warn("unable to store payload", "kind", m.Kind(), "error", err)
		s.printf("<<< %s error: %v\n", m, err)
		return
	}
	s.printf("<<< %s -> %s\n", m, path)
}

func (s *Session) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.opts.out, format, args...)
}
