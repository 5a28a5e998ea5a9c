package client

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/Zereker/chat/message"
)

// Reserved input tokens.
const (
	CommandQuit  = ".quit"
	CommandFile  = ".file"
	CommandImage = ".image"
)

var (
	// ErrQuit is returned by ParseCommand for the quit token.
	ErrQuit = errors.New("quit")
	// ErrMissingPath is returned when a file or image command names no path.
	ErrMissingPath = errors.New("no path given")
	// ErrInvalidInput is returned for a line that is not valid UTF-8.
	ErrInvalidInput = errors.New("input is not valid utf-8")
)

// ParseCommand turns one input line into the messages it produces.
// Blank lines produce nothing. ".file" and ".image" produce one message per
// path, read eagerly; any failure discards the whole line. Every other line
// is sent as a single Text. Lines that are not valid UTF-8 are rejected.
func ParseCommand(line string) ([]message.Message, error) {
	if !utf8.ValidString(line) {
		return nil, ErrInvalidInput
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case CommandQuit:
		return nil, ErrQuit
	case CommandFile:
		return buildEach(fields[0], fields[1:], func(path string) (message.Message, error) {
			return message.NewFile(path)
		})
	case CommandImage:
		return buildEach(fields[0], fields[1:], func(path string) (message.Message, error) {
			return message.NewImage(path)
		})
	default:
		return []message.Message{message.NewText(line)}, nil
	}
}

func buildEach(cmd string, paths []string, build func(string) (message.Message, error)) ([]message.Message, error) {
	if len(paths) == 0 {
		return nil, errors.Wrap(ErrMissingPath, cmd)
	}

	msgs := make([]message.Message, 0, len(paths))
	for _, path := range paths {
		m, err := build(path)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
