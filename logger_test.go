package chat

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/Zereker/chat/message"
)

func TestLogger_Interface(t *testing.T) {
	var _ Logger = slog.Default()
}

func TestDefaultLogger(t *testing.T) {
	if defaultLogger() != slog.Default() {
		t.Error("defaultLogger did not return slog.Default()")
	}
}

func TestNewLogger_Verbosity(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, 0)
	logger.Debug("hidden")
	logger.Info("shown", "peers", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message logged at default verbosity")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "peers=2") {
		t.Errorf("info message missing: %q", out)
	}

	buf.Reset()
	logger = NewLogger(&buf, 5)
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("debug message not logged with -v")
	}
}

// mockLogger records the last call for assertions.
type mockLogger struct {
	warnCalled bool
	lastMsg    string
	lastArgs   []any
}

func (l *mockLogger) Debug(msg string, args ...any) { l.record(msg, args) }
func (l *mockLogger) Info(msg string, args ...any)  { l.record(msg, args) }
func (l *mockLogger) Error(msg string, args ...any) { l.record(msg, args) }

func (l *mockLogger) Warn(msg string, args ...any) {
	l.warnCalled = true
	l.record(msg, args)
}

func (l *mockLogger) record(msg string, args []any) {
	l.lastMsg = msg
	l.lastArgs = args
}

func TestDistributor_LogsWriteFailure(t *testing.T) {
	logger := &mockLogger{}
	r := NewRegistry()
	r.Register("10.0.0.9:1", &mockStream{err: errors.New("broken pipe")})

	d := NewDistributor(r, FrameCodec{}, logger, 1, 0)
	d.Broadcast(message.Text{Body: "hi"})

	if !logger.warnCalled {
		t.Error("write failure was not logged")
	}
}
