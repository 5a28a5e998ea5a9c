package client

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/Zereker/chat"
)

// Dialer opens the connection to the server. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

const (
	defaultDialTimeout  = 10 * time.Second
	defaultQueueSize    = 16
	defaultMaxFrameSize = 64 * 1024 * 1024
)

type options struct {
	dialer    Dialer
	codec     chat.Codec
	logger    chat.Logger
	out       io.Writer
	store     *Store
	username  string
	queueSize int
}

// Option configures a Session.
type Option func(*options)

func checkOptions(opts *options) {
	if opts.dialer == nil {
		opts.dialer = &net.Dialer{Timeout: defaultDialTimeout}
	}
	if opts.codec == nil {
		opts.codec = chat.FrameCodec{MaxFrameSize: defaultMaxFrameSize}
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.out == nil {
		opts.out = os.Stdout
	}
	if opts.store == nil {
		opts.store = NewStore(DefaultImagesDir, DefaultFilesDir)
	}
	if opts.queueSize <= 0 {
		opts.queueSize = defaultQueueSize
	}
}

// DialerOption sets how the session connects to the server.
func DialerOption(d Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// CodecOption sets the frame codec.
func CodecOption(c chat.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// LoggerOption sets the logger for connection and persistence errors.
func LoggerOption(l chat.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// OutputOption sets where chat lines are displayed. Defaults to stdout.
func OutputOption(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// StoreOption sets where received images and files are written.
func StoreOption(s *Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// UsernameOption sets the name announced in the greeting.
func UsernameOption(name string) Option {
	return func(o *options) {
		o.username = name
	}
}

// QueueSizeOption sets how many parsed messages may wait for the sender.
func QueueSizeOption(size int) Option {
	return func(o *options) {
		o.queueSize = size
	}
}
