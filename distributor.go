package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/chat/message"
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Distributor is the single task that fans every submitted message out to all
// registered peers, the sender included. Messages are processed strictly in
// submission order.
type Distributor struct {
	registry     *Registry
	codec        Codec
	logger       Logger
	writeTimeout time.Duration

	queue chan message.Message
}

// NewDistributor returns a Distributor writing to the streams in registry.
// queueSize bounds the number of pending messages.
func NewDistributor(registry *Registry, codec Codec, logger Logger, queueSize int, writeTimeout time.Duration) *Distributor {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = defaultLogger()
	}

	return &Distributor{
		registry:     registry,
		codec:        codec,
		logger:       logger,
		writeTimeout: writeTimeout,
		queue:        make(chan message.Message, queueSize),
	}
}

// Submit queues m for broadcast, blocking until there is room or ctx is done.
// A nil message is refused with message.ErrUnknownKind.
func (d *Distributor) Submit(ctx context.Context, m message.Message) error {
	if m == nil {
		return errors.Wrap(message.ErrUnknownKind, "nil message")
	}

	select {
	case d.queue <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run broadcasts queued messages until ctx is canceled.
func (d *Distributor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-d.queue:
			d.Broadcast(m)
		}
	}
}

// Broadcast encodes m once and writes the frame to every registered stream.
// A failed write is logged and skipped; it does not deregister the peer.
// It returns the number of successful writes.
func (d *Distributor) Broadcast(m message.Message) int {
	data, err := d.codec.Encode(m)
	if err != nil {
		d.logger.Error("encode failed", "type", fmt.Sprintf("%T", m), "error", err)
		return 0
	}

	delivered := 0
	for _, t := range d.registry.Targets() {
		if err := d.write(t.Stream, data); err != nil {
			d.logger.Warn("broadcast write failed", "addr", t.Addr, "error", err)
			continue
		}
		delivered++
	}

	d.logger.Debug("broadcast", "kind", m.Kind(), "bytes", len(data), "delivered", delivered)
	return delivered
}

func (d *Distributor) write(s Stream, data []byte) error {
	if dl, ok := s.(writeDeadliner); ok && d.writeTimeout > 0 {
		_ = dl.SetWriteDeadline(time.Now().Add(d.writeTimeout))
	}
	return writeFull(s, data)
}
