package chat

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"

	"github.com/Zereker/chat/message"
)

func TestFrame_RoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 64*1024 + 1, 300 * 1024} {
		payload := bytes.Repeat([]byte{0x5A}, size)

		var buf bytes.Buffer
		if err := WriteFrame(&buf, payload); err != nil {
			t.Fatalf("WriteFrame(%d) failed: %v", size, err)
		}

		if buf.Len() != HeaderSize+size {
			t.Fatalf("frame length = %d, want %d", buf.Len(), HeaderSize+size)
		}

		got, err := ReadFrame(&buf, 0)
		if err != nil {
			t.Fatalf("ReadFrame(%d) failed: %v", size, err)
		}

		if !bytes.Equal(got, payload) {
			t.Errorf("payload of size %d changed in transit", size)
		}
	}
}

func TestFrame_Header(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("abc")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	want := []byte{0, 0, 0, 3, 'a', 'b', 'c'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("frame = %v, want %v", buf.Bytes(), want)
	}
}

func TestFrame_Sequential(t *testing.T) {
	var buf bytes.Buffer
	for _, s := range []string{"one", "", "three"} {
		if err := WriteFrame(&buf, []byte(s)); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	for _, want := range []string{"one", "", "three"} {
		got, err := ReadFrame(&buf, 0)
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		if string(got) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}

	if _, err := ReadFrame(&buf, 0); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("expected ErrConnectionClosed at end of stream, got %v", err)
	}
}

func TestReadFrame_Truncated(t *testing.T) {
	cases := map[string][]byte{
		"empty":          {},
		"partial header": {0, 0},
		"partial body":   {0, 0, 0, 5, 'a', 'b'},
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(input), 0)
			if !errors.Is(err, ErrConnectionClosed) {
				t.Errorf("expected ErrConnectionClosed, got %v", err)
			}
		})
	}
}

func TestReadFrame_TooLarge(t *testing.T) {
	input := []byte{0, 0, 4, 1}

	_, err := ReadFrame(bytes.NewReader(input), 1024)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
	if !errors.Is(err, message.ErrMalformedPayload) {
		t.Errorf("expected frame size violation to be a malformed payload, got %v", err)
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestReadFrame_ReadError(t *testing.T) {
	boom := errors.New("boom")

	_, err := ReadFrame(errReader{err: boom}, 0)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped read error, got %v", err)
	}
	if errors.Is(err, ErrConnectionClosed) {
		t.Error("read error must not be reported as a clean close")
	}
}

// shortWriter accepts at most n bytes per call without reporting an error.
type shortWriter struct{ n int }

func (w shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.n {
		return w.n, nil
	}
	return len(p), nil
}

func TestWriteFrame_ShortWrite(t *testing.T) {
	err := WriteFrame(shortWriter{n: 2}, []byte("hello"))
	if !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("expected io.ErrShortWrite, got %v", err)
	}
}

func TestFrameCodec(t *testing.T) {
	codec := FrameCodec{}
	msg := message.Text{Body: "hi"}

	data, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	payload, _ := message.Encode(msg)
	var want bytes.Buffer
	_ = WriteFrame(&want, payload)
	if !bytes.Equal(data, want.Bytes()) {
		t.Errorf("Encode = %v, want %v", data, want.Bytes())
	}

	got, err := codec.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !message.Equal(got, msg) {
		t.Errorf("Decode = %#v, want %#v", got, msg)
	}
}

func TestFrameCodec_MalformedPayload(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteFrame(&buf, []byte{9, 9, 9, 9})

	_, err := FrameCodec{}.Decode(&buf)
	if !errors.Is(err, message.ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestWriteMessage(t *testing.T) {
	var buf bytes.Buffer
	codec := FrameCodec{}

	if err := WriteMessage(&buf, codec, message.File{Name: "a.txt", Data: []byte("x")}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	got, err := codec.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !message.Equal(got, message.File{Name: "a.txt", Data: []byte("x")}) {
		t.Errorf("got %#v", got)
	}
}
