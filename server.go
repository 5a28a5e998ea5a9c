package chat

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/chat/message"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("server closed")

const maxAcceptBackoff = time.Second

// Server accepts chat peers, reads their messages and rebroadcasts every
// message to all connected peers.
type Server struct {
	listener    net.Listener
	logger      Logger
	opts        options
	registry    *Registry
	distributor *Distributor

	mu       sync.Mutex
	shutdown bool
}

// New creates a Server listening on addr (host:port).
// Returns an error if the address cannot be bound.
func New(addr string, opt ...Option) (*Server, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	checkOptions(&opts)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}

	registry := NewRegistry()

	return &Server{
		listener:    listener,
		logger:      opts.logger,
		opts:        opts,
		registry:    registry,
		distributor: NewDistributor(registry, opts.codec, opts.logger, opts.queueSize, opts.writeTimeout),
	}, nil
}

// Serve runs the accept loop, the distributor, the deregistration handler and
// one reader per peer until ctx is canceled or Close is called. It waits for
// all of them before returning.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("server started", "addr", s.Addr())

	group, child := errgroup.WithContext(ctx)
	deregister := make(chan *peer)

	group.Go(func() error {
		return s.distributor.Run(child)
	})

	group.Go(func() error {
		s.deregisterLoop(child, deregister)
		return nil
	})

	group.Go(func() error {
		<-child.Done()
		_ = s.Close()
		return nil
	})

	group.Go(func() error {
		return s.acceptLoop(child, group, deregister)
	})

	err := group.Wait()
	s.logger.Info("server stopped", "addr", s.Addr())

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context, group *errgroup.Group, deregister chan<- *peer) error {
	var backoff time.Duration

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isShutdown() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return errors.Wrap(err, "accept")
			}

			backoff = nextBackoff(backoff)
			s.logger.Error("accept error", "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ErrServerClosed
			}
			continue
		}
		backoff = 0

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		p := newPeer(conn, &s.opts)
		if !s.admit(p) {
			_ = conn.Close()
			return ErrServerClosed
		}

		group.Go(func() error {
			s.serveReader(ctx, p, deregister)
			return nil
		})
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > maxAcceptBackoff {
		d = maxAcceptBackoff
	}
	return d
}

// admit registers p unless the server is shutting down.
func (s *Server) admit(p *peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return false
	}

	count := s.registry.Register(p.addr, p)
	s.logger.Info("peer connected", "conn_id", p.id, "addr", p.addr, "peers", count)
	return true
}

func (s *Server) serveReader(ctx context.Context, p *peer, deregister chan<- *peer) {
	err := p.readLoop(ctx, s.distributor.Submit)

	switch {
	case errors.Is(err, message.ErrMalformedPayload):
		s.logger.Warn("malformed payload, dropping peer", "conn_id", p.id, "addr", p.addr, "error", err)
	case errors.Is(err, ErrConnectionClosed):
		s.logger.Debug("peer closed connection", "conn_id", p.id, "addr", p.addr)
	default:
		s.logger.Debug("peer read failed", "conn_id", p.id, "addr", p.addr, "error", err)
	}

	select {
	case deregister <- p:
	case <-ctx.Done():
		s.registry.DeregisterStream(p.addr, p)
	}
}

func (s *Server) deregisterLoop(ctx context.Context, deregister <-chan *peer) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-deregister:
			count := s.registry.DeregisterStream(p.addr, p)
			s.logger.Info("peer disconnected", "conn_id", p.id, "addr", p.addr, "peers", count)
		}
	}
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// Close stops accepting peers and closes every connected peer.
// Serve returns once all tasks have finished. Safe to call multiple times.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	err := s.listener.Close()
	s.registry.CloseAll()
	return err
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Peers returns the number of connected peers.
func (s *Server) Peers() int {
	return s.registry.Len()
}

// Broadcast queues m for delivery to every connected peer, as if a peer had sent it.
func (s *Server) Broadcast(ctx context.Context, m message.Message) error {
	return s.distributor.Submit(ctx, m)
}
