package chat

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/Zereker/chat/message"
)

// readBufferSize is the size of the buffered reader in front of each peer socket.
const readBufferSize = 64 * 1024

// peer is the server side of one client connection. Its reader decodes
// inbound frames and submits them to the distributor.
type peer struct {
	id      string
	addr    string
	rawConn net.Conn
	reader  *bufio.Reader
	limiter *rate.Limiter
	logger  Logger

	opts *options
}

func newPeer(conn net.Conn, opts *options) *peer {
	p := &peer{
		id:      uuid.NewString(),
		addr:    conn.RemoteAddr().String(),
		rawConn: conn,
		reader:  bufio.NewReaderSize(conn, readBufferSize),
		logger:  opts.logger,
		opts:    opts,
	}

	if opts.rateLimit > 0 {
		p.limiter = rate.NewLimiter(opts.rateLimit, opts.rateBurst)
	}

	return p
}

// Write implements Stream.
func (p *peer) Write(b []byte) (int, error) {
	return p.rawConn.Write(b)
}

// SetWriteDeadline lets the distributor bound writes to this peer.
func (p *peer) SetWriteDeadline(t time.Time) error {
	return p.rawConn.SetWriteDeadline(t)
}

// Close implements Stream.
func (p *peer) Close() error {
	return p.rawConn.Close()
}

// readLoop decodes frames until the connection fails, submitting each message
// with submit. It always returns a non-nil error describing why reading
// stopped and closes the connection before returning.
func (p *peer) readLoop(ctx context.Context, submit func(context.Context, message.Message) error) error {
	defer p.rawConn.Close()

	for {
		if p.opts.idleTimeout > 0 {
			_ = p.rawConn.SetReadDeadline(time.Now().Add(p.opts.idleTimeout))
		}

		m, err := p.opts.codec.Decode(p.reader)
		if err != nil {
			return err
		}

		if p.limiter != nil && !p.limiter.Allow() {
			p.logger.Warn("rate limit exceeded, message dropped", "conn_id", p.id, "addr", p.addr, "kind", m.Kind())
			continue
		}

		p.logMessage(m)

		if err := submit(ctx, m); err != nil {
			return errors.Wrap(err, "submit")
		}
	}
}

func (p *peer) logMessage(m message.Message) {
	switch m := m.(type) {
	case message.Text:
		p.logger.Info("message", "conn_id", p.id, "addr", p.addr, "text", m.Body)
	case message.Image:
		p.logger.Info("message", "conn_id", p.id, "addr", p.addr, "image", m.Name, "ext", m.Ext, "bytes", len(m.Data))
	case message.File:
		p.logger.Info("message", "conn_id", p.id, "addr", p.addr, "file", m.Name, "bytes", len(m.Data))
	}
}
