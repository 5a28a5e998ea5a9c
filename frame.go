// Package chat implements a broadcast chat relay over TCP: a length-prefixed
// frame transport, a registry of connected peers, a single-writer broadcast
// distributor, and a server that accepts peers and wires them together.
package chat

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/Zereker/chat/message"
)

// HeaderSize is the size of the big-endian frame length prefix.
const HeaderSize = 4

// Errors returned by frame operations.
var (
	// ErrConnectionClosed is returned when the peer closes before a complete frame is read.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrFrameTooLarge is returned when a declared frame length exceeds the configured limit.
	// It is a malformed payload.
	ErrFrameTooLarge = errors.Wrap(message.ErrMalformedPayload, "frame too large")
)

// WriteFrame writes payload prefixed with its length as a single write.
// A short write is an error.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return errors.Wrapf(ErrFrameTooLarge, "%d bytes", len(payload))
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	return writeFull(w, buf)
}

func writeFull(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil {
		return errors.Wrap(err, "write frame")
	}
	if n != len(buf) {
		return errors.Wrapf(io.ErrShortWrite, "wrote %d of %d bytes", n, len(buf))
	}
	return nil
}

// ReadFrame reads exactly one frame and returns its payload. maxSize limits the
// declared length; zero or negative means no limit.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, readError(err, "read frame header")
	}

	n := binary.BigEndian.Uint32(header[:])
	if maxSize > 0 && uint64(n) > uint64(maxSize) {
		return nil, errors.Wrapf(ErrFrameTooLarge, "%d bytes, limit %d", n, maxSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, readError(err, "read frame payload")
	}

	return payload, nil
}

func readError(err error, op string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrapf(ErrConnectionClosed, "%s: %v", op, err)
	}
	return errors.Wrap(err, op)
}

// Codec turns messages into frames and back.
// Decode reads exactly the bytes of one frame from r, which lets it sit
// directly on top of a TCP stream.
type Codec interface {
	// Decode reads one frame from r and decodes the message it carries.
	Decode(r io.Reader) (message.Message, error)
	// Encode returns the complete framed bytes for m.
	Encode(m message.Message) ([]byte, error)
}

// FrameCodec is the Codec used by the chat server and client.
type FrameCodec struct {
	// MaxFrameSize limits inbound frames; zero means no limit.
	MaxFrameSize int
}

// Decode implements Codec.
func (c FrameCodec) Decode(r io.Reader) (message.Message, error) {
	payload, err := ReadFrame(r, c.MaxFrameSize)
	if err != nil {
		return nil, err
	}
	return message.Decode(payload)
}

// Encode implements Codec.
func (c FrameCodec) Encode(m message.Message) ([]byte, error) {
	payload, err := message.Encode(m)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, errors.Wrapf(ErrFrameTooLarge, "%d bytes", len(payload))
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	return append(buf, payload...), nil
}

// WriteMessage encodes m with c and writes it to w.
func WriteMessage(w io.Writer, c Codec, m message.Message) error {
	data, err := c.Encode(m)
	if err != nil {
		return err
	}
	return writeFull(w, data)
}
