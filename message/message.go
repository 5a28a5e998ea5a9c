// Package message defines the chat message variants exchanged between
// clients and the relay server, and their binary wire encoding.
package message

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Kind is the wire discriminant of a Message.
type Kind uint32

const (
	KindText Kind = iota
	KindImage
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Errors returned while building or decoding messages.
var (
	// ErrMalformedPayload is returned when bytes do not form a valid encoded message.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnknownKind is returned when encoding a value that is not one of the message variants.
	ErrUnknownKind = errors.New("unknown message kind")
	// ErrFileRead is returned when a file named on an outgoing command cannot be read.
	ErrFileRead = errors.New("unable to read file")
	// ErrInvalidName is returned when a path has no usable name or extension.
	ErrInvalidName = errors.New("invalid file name")
	// ErrUnrecognizedImageFormat is returned for extensions outside the raster format table.
	ErrUnrecognizedImageFormat = errors.New("unrecognized image format")
	// ErrImageDecode is returned when a blob cannot be decoded as its declared format.
	ErrImageDecode = errors.New("invalid image")
)

// Message is one of Text, Image or File.
type Message interface {
	Kind() Kind
	String() string

	sealed()
}

// Text is a plain chat line.
type Text struct {
	Body string
}

// Image carries a raster image with its name stem and extension.
type Image struct {
	Name string
	Ext  string
	Data []byte
}

// File carries an arbitrary file.
type File struct {
	Name string
	Data []byte
}

func (Text) Kind() Kind  { return KindText }
func (Image) Kind() Kind { return KindImage }
func (File) Kind() Kind  { return KindFile }

func (Text) sealed()  {}
func (Image) sealed() {}
func (File) sealed()  {}

func (m Text) String() string  { return m.Body }
func (m Image) String() string { return fmt.Sprintf("image: %s.%s", m.Name, m.Ext) }
func (m File) String() string  { return fmt.Sprintf("file: %s", m.Name) }

// NewText returns a text message.
func NewText(body string) Text {
	return Text{Body: body}
}

// NewFile reads path and returns a File message named after its base name.
func NewFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrapf(ErrFileRead, "%s: %v", path, err)
	}

	name := filepath.Base(path)
	if !utf8.ValidString(name) {
		return File{}, errors.Wrapf(ErrInvalidName, "%q: name is not valid utf-8", path)
	}

	return File{Name: name, Data: data}, nil
}

// NewImage reads path and returns an Image message. The extension must be a
// recognized raster format and the content must decode as that format.
func NewImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, errors.Wrapf(ErrFileRead, "%s: %v", path, err)
	}

	base := filepath.Base(path)
	if !utf8.ValidString(base) {
		return Image{}, errors.Wrapf(ErrInvalidName, "%q: name is not valid utf-8", path)
	}
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if ext == "" {
		return Image{}, errors.Wrapf(ErrInvalidName, "%s: no extension", path)
	}
	if name == "" {
		return Image{}, errors.Wrapf(ErrInvalidName, "%s: no name", path)
	}

	if _, err := DecodeImage(data, ext); err != nil {
		return Image{}, errors.Wrap(err, path)
	}

	return Image{Name: name, Ext: ext, Data: data}, nil
}
