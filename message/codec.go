package message

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Wire layout, little-endian, compatible with bincode's default enum encoding:
//
//	u32 kind
//	Text:  str body
//	Image: str name, str ext, bytes data
//	File:  str name, bytes data
//
// where str and bytes are a u64 length followed by that many bytes.
const (
	kindSize   = 4
	lengthSize = 8
)

// Encode serializes m into its wire form.
// Strings that are not valid UTF-8 are refused with ErrMalformedPayload,
// since Decode would refuse them too.
func Encode(m Message) ([]byte, error) {
	switch m := m.(type) {
	case Text:
		if err := checkUTF8("body", m.Body); err != nil {
			return nil, err
		}
		buf := make([]byte, 0, kindSize+lengthSize+len(m.Body))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(KindText))
		buf = appendField(buf, []byte(m.Body))
		return buf, nil
	case Image:
		if err := checkUTF8("name", m.Name); err != nil {
			return nil, err
		}
		if err := checkUTF8("ext", m.Ext); err != nil {
			return nil, err
		}
		buf := make([]byte, 0, kindSize+3*lengthSize+len(m.Name)+len(m.Ext)+len(m.Data))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(KindImage))
		buf = appendField(buf, []byte(m.Name))
		buf = appendField(buf, []byte(m.Ext))
		buf = appendField(buf, m.Data)
		return buf, nil
	case File:
		if err := checkUTF8("name", m.Name); err != nil {
			return nil, err
		}
		buf := make([]byte, 0, kindSize+2*lengthSize+len(m.Name)+len(m.Data))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(KindFile))
		buf = appendField(buf, []byte(m.Name))
		buf = appendField(buf, m.Data)
		return buf, nil
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%T", m)
	}
}

func checkUTF8(field, s string) error {
	if !utf8.ValidString(s) {
		return errors.Wrapf(ErrMalformedPayload, "%s is not valid utf-8", field)
	}
	return nil
}

func appendField(buf, field []byte) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(field)))
	return append(buf, field...)
}

// Decode parses a wire-encoded message. Any layout violation, including
// trailing bytes, yields an error wrapping ErrMalformedPayload.
func Decode(b []byte) (Message, error) {
	d := decoder{buf: b}

	kind, err := d.kind()
	if err != nil {
		return nil, err
	}

	var m Message
	switch kind {
	case KindText:
		body, err := d.str("body")
		if err != nil {
			return nil, err
		}
		m = Text{Body: body}
	case KindImage:
		name, err := d.str("name")
		if err != nil {
			return nil, err
		}
		ext, err := d.str("ext")
		if err != nil {
			return nil, err
		}
		data, err := d.bytes("data")
		if err != nil {
			return nil, err
		}
		m = Image{Name: name, Ext: ext, Data: data}
	case KindFile:
		name, err := d.str("name")
		if err != nil {
			return nil, err
		}
		data, err := d.bytes("data")
		if err != nil {
			return nil, err
		}
		m = File{Name: name, Data: data}
	default:
		return nil, errors.Wrapf(ErrMalformedPayload, "unknown kind %d", uint32(kind))
	}

	if len(d.buf) != 0 {
		return nil, errors.Wrapf(ErrMalformedPayload, "%d trailing bytes", len(d.buf))
	}

	return m, nil
}

// Equal reports whether a and b are the same variant with equal fields. Nil
// and empty byte slices compare equal.
func Equal(a, b Message) bool {
	switch a := a.(type) {
	case Text:
		b, ok := b.(Text)
		return ok && a == b
	case Image:
		b, ok := b.(Image)
		return ok && a.Name == b.Name && a.Ext == b.Ext && bytes.Equal(a.Data, b.Data)
	case File:
		b, ok := b.(File)
		return ok && a.Name == b.Name && bytes.Equal(a.Data, b.Data)
	default:
		return false
	}
}

type decoder struct {
	buf []byte
}

func (d *decoder) kind() (Kind, error) {
	if len(d.buf) < kindSize {
		return 0, errors.Wrap(ErrMalformedPayload, "truncated kind")
	}
	k := binary.LittleEndian.Uint32(d.buf)
	d.buf = d.buf[kindSize:]
	return Kind(k), nil
}

func (d *decoder) bytes(field string) ([]byte, error) {
	if len(d.buf) < lengthSize {
		return nil, errors.Wrapf(ErrMalformedPayload, "truncated %s length", field)
	}
	n := binary.LittleEndian.Uint64(d.buf)
	d.buf = d.buf[lengthSize:]

	if n > uint64(len(d.buf)) {
		return nil, errors.Wrapf(ErrMalformedPayload, "%s length %d exceeds %d remaining bytes", field, n, len(d.buf))
	}

	if n == 0 {
		return nil, nil
	}

	out := make([]byte, n)
	copy(out, d.buf[:n])
	d.buf = d.buf[n:]
	return out, nil
}

func (d *decoder) str(field string) (string, error) {
	b, err := d.bytes(field)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.Wrapf(ErrMalformedPayload, "%s is not valid utf-8", field)
	}
	return string(b), nil
}
