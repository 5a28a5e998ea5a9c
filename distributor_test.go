package chat

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/chat/message"
)

func discardLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDistributor(r *Registry) *Distributor {
	return NewDistributor(r, FrameCodec{}, discardLogger(), 8, time.Second)
}

func TestDistributor_BroadcastIncludesSender(t *testing.T) {
	r := NewRegistry()
	a, b, c := &mockStream{}, &mockStream{}, &mockStream{}
	r.Register("A", a)
	r.Register("B", b)
	r.Register("C", c)

	d := newTestDistributor(r)
	if n := d.Broadcast(message.Text{Body: "hi"}); n != 3 {
		t.Errorf("delivered = %d, want 3", n)
	}

	want, _ := FrameCodec{}.Encode(message.Text{Body: "hi"})
	for name, s := range map[string]*mockStream{"A": a, "B": b, "C": c} {
		if !bytes.Equal(s.bytes(), want) {
			t.Errorf("peer %s received %v, want %v", name, s.bytes(), want)
		}
	}
}

func TestDistributor_PartialFailure(t *testing.T) {
	r := NewRegistry()
	a, b, c := &mockStream{}, &mockStream{err: errors.New("broken pipe")}, &mockStream{}
	r.Register("A", a)
	r.Register("B", b)
	r.Register("C", c)

	d := newTestDistributor(r)
	if n := d.Broadcast(message.Text{Body: "hi"}); n != 2 {
		t.Errorf("delivered = %d, want 2", n)
	}

	if len(a.bytes()) == 0 || len(c.bytes()) == 0 {
		t.Error("healthy peers did not receive the message")
	}

	if r.Len() != 3 {
		t.Errorf("registry size = %d, want 3; write failures must not deregister", r.Len())
	}
}

// deadlineStream records the write deadlines it is given.
type deadlineStream struct {
	mockStream
	deadlines []time.Time
}

func (s *deadlineStream) SetWriteDeadline(t time.Time) error {
	s.deadlines = append(s.deadlines, t)
	return nil
}

func TestDistributor_SetsWriteDeadline(t *testing.T) {
	r := NewRegistry()
	s := &deadlineStream{}
	r.Register("A", s)

	d := newTestDistributor(r)
	d.Broadcast(message.Text{Body: "x"})

	if len(s.deadlines) != 1 {
		t.Fatalf("deadlines set = %d, want 1", len(s.deadlines))
	}
	if time.Until(s.deadlines[0]) <= 0 {
		t.Error("write deadline is not in the future")
	}
}

// badCodec fails every encode.
type badCodec struct{ FrameCodec }

func (badCodec) Encode(message.Message) ([]byte, error) {
	return nil, errors.New("cannot encode")
}

func TestDistributor_EncodeFailure(t *testing.T) {
	r := NewRegistry()
	s := &mockStream{}
	r.Register("A", s)

	d := NewDistributor(r, badCodec{}, discardLogger(), 1, 0)
	if n := d.Broadcast(message.Text{Body: "x"}); n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}
	if len(s.bytes()) != 0 {
		t.Error("stream written despite encode failure")
	}
}

func TestDistributor_RunFIFO(t *testing.T) {
	r := NewRegistry()
	s := &mockStream{}
	r.Register("A", s)

	d := newTestDistributor(r)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	bodies := []string{"first", "second", "third"}
	for _, body := range bodies {
		if err := d.Submit(ctx, message.Text{Body: body}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	var want bytes.Buffer
	for _, body := range bodies {
		_ = WriteMessage(&want, FrameCodec{}, message.Text{Body: body})
	}

	deadline := time.Now().Add(5 * time.Second)
	for !bytes.Equal(s.bytes(), want.Bytes()) {
		if time.Now().After(deadline) {
			t.Fatalf("stream = %v, want %v", s.bytes(), want.Bytes())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to return")
	}
}

func TestDistributor_SubmitCanceled(t *testing.T) {
	d := NewDistributor(NewRegistry(), FrameCodec{}, discardLogger(), 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Submit(ctx, message.Text{Body: "fills the queue"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	cancel()
	if err := d.Submit(ctx, message.Text{Body: "blocked"}); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDistributor_BroadcastUnencodable(t *testing.T) {
	r := NewRegistry()
	s := &mockStream{}
	r.Register("A", s)

	d := newTestDistributor(r)
	for _, m := range []message.Message{nil, message.Text{Body: "caf\xe9"}} {
		if n := d.Broadcast(m); n != 0 {
			t.Errorf("Broadcast(%#v) delivered = %d, want 0", m, n)
		}
	}
	if len(s.bytes()) != 0 {
		t.Error("stream written for an unencodable message")
	}
}

func TestDistributor_SubmitNil(t *testing.T) {
	d := newTestDistributor(NewRegistry())

	err := d.Submit(context.Background(), nil)
	if !errors.Is(err, message.ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
	if len(d.queue) != 0 {
		t.Error("nil message was queued")
	}
}
