package chat

import (
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	// defaultQueueSize is the default capacity of the distributor queue.
	defaultQueueSize = 64
	// defaultMaxFrameSize is the default limit for a single inbound frame (64MB).
	defaultMaxFrameSize = 64 * 1024 * 1024
	// defaultWriteTimeout bounds a single broadcast write to one peer.
	defaultWriteTimeout = 10 * time.Second
)

// options holds the configuration for a Server.
type options struct {
	codec  Codec
	logger Logger

	queueSize    int           // capacity of the distributor queue
	maxFrameSize int           // maximum size of a single inbound frame, <0 disables the limit
	writeTimeout time.Duration // deadline for one broadcast write
	idleTimeout  time.Duration // read deadline per frame, 0 waits forever

	rateLimit rate.Limit // inbound frames per second per peer, 0 disables limiting
	rateBurst int
}

// Option is a function that configures a Server.
type Option func(*options)

// checkOptions fills in defaults.
func checkOptions(opts *options) {
	if opts.queueSize <= 0 {
		opts.queueSize = defaultQueueSize
	}

	if opts.maxFrameSize == 0 {
		opts.maxFrameSize = defaultMaxFrameSize
	}

	if opts.writeTimeout <= 0 {
		opts.writeTimeout = defaultWriteTimeout
	}

	if opts.codec == nil {
		opts.codec = FrameCodec{MaxFrameSize: opts.maxFrameSize}
	}

	if opts.rateLimit > 0 && opts.rateBurst <= 0 {
		opts.rateBurst = 1
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
}

// CodecOption replaces the frame codec. When set, MaxFrameSizeOption has no effect.
func CodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// QueueSizeOption sets how many decoded messages may wait for the distributor.
func QueueSizeOption(size int) Option {
	return func(o *options) {
		o.queueSize = size
	}
}

// MaxFrameSizeOption limits the declared length of inbound frames.
// A negative size removes the limit.
func MaxFrameSizeOption(size int) Option {
	return func(o *options) {
		o.maxFrameSize = size
	}
}

// WriteTimeoutOption bounds each broadcast write to a single peer.
func WriteTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = timeout
	}
}

// IdleTimeoutOption disconnects peers that send nothing for the given duration.
// Zero, the default, never times out.
func IdleTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = timeout
	}
}

// RateLimitOption limits each peer to limit frames per second with the given
// burst. Frames over the limit are dropped.
func RateLimitOption(limit float64, burst int) Option {
	return func(o *options) {
		o.rateLimit = rate.Limit(limit)
		o.rateBurst = burst
	}
}

// LoggerOption sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
