// Package codec serializes fixed-shape records to and from opaque byte buffers.
//
// A record is an ordered sequence of fields joined by the '|' delimiter.
// Byte fields are written verbatim and may not contain the delimiter.
// Numeric fields are fixed-width 8-byte big-endian integers; they are read by
// position, never by splitting, so their bytes may contain 0x7C freely.
//
// Layout of a session record (course, room, start_time, status):
//
//	CS101 | R-12 | 00 00 00 00 65 53 f1 00 | active
package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/roach88/campusledger/internal/failure"
)

// Delimiter separates fields within a record.
const Delimiter byte = '|'

// Uint64Width is the encoded size of a numeric field.
const Uint64Width = 8

// FieldType identifies how a field is laid out.
type FieldType uint8

const (
	// Bytes is a variable-length field terminated by the delimiter or end of buffer.
	Bytes FieldType = iota
	// Uint64 is an 8-byte big-endian integer.
	Uint64
)

func (t FieldType) String() string {
	switch t {
	case Bytes:
		return "bytes"
	case Uint64:
		return "uint64"
	default:
		return "unknown"
	}
}

// Shape is the ordered field layout of a record.
type Shape []FieldType

// Text returns a shape of n byte fields.
func Text(n int) Shape {
	s := make(Shape, n)
	for i := range s {
		s[i] = Bytes
	}
	return s
}

// Encode joins fields according to the shape.
//
// Returns ShapeMismatch if len(fields) differs from the shape, and Format if a
// numeric field is not exactly 8 bytes or a byte field contains the delimiter.
func (s Shape) Encode(fields [][]byte) ([]byte, error) {
	if len(fields) != len(s) {
		return nil, failure.ShapeMismatch(len(s), len(fields))
	}

	size := len(s) - 1
	if size < 0 {
		size = 0
	}
	for _, f := range fields {
		size += len(f)
	}

	buf := make([]byte, 0, size)
	for i, f := range fields {
		switch s[i] {
		case Uint64:
			if len(f) != Uint64Width {
				return nil, failure.Format("field %d: numeric field must be %d bytes, got %d", i, Uint64Width, len(f))
			}
		default:
			if bytes.IndexByte(f, Delimiter) >= 0 {
				return nil, failure.Format("field %d: contains delimiter %q", i, Delimiter)
			}
		}
		if i > 0 {
			buf = append(buf, Delimiter)
		}
		buf = append(buf, f...)
	}
	return buf, nil
}

// Decode splits buf according to the shape.
//
// Returns ShapeMismatch if buf holds fewer or more fields than the shape, and
// Format if a numeric field is truncated or not followed by a delimiter.
// Returned fields alias buf.
func (s Shape) Decode(buf []byte) ([][]byte, error) {
	fields := make([][]byte, 0, len(s))
	pos := 0

	for i, t := range s {
		if i > 0 {
			if pos >= len(buf) {
				return nil, failure.ShapeMismatch(len(s), i)
			}
			if buf[pos] != Delimiter {
				return nil, failure.Format("field %d: expected delimiter at offset %d", i, pos)
			}
			pos++
		}

		switch t {
		case Uint64:
			if pos+Uint64Width > len(buf) {
				return nil, failure.Format("field %d: numeric field truncated (%d of %d bytes)", i, len(buf)-pos, Uint64Width)
			}
			fields = append(fields, buf[pos:pos+Uint64Width])
			pos += Uint64Width
		default:
			end := bytes.IndexByte(buf[pos:], Delimiter)
			if end < 0 {
				end = len(buf) - pos
			}
			fields = append(fields, buf[pos:pos+end])
			pos += end
		}
	}

	if pos != len(buf) {
		if buf[pos] == Delimiter {
			extra := bytes.Count(buf[pos:], []byte{Delimiter})
			return nil, failure.ShapeMismatch(len(s), len(s)+extra)
		}
		return nil, failure.Format("trailing %d bytes after last field", len(buf)-pos)
	}

	return fields, nil
}

// Decode splits buf into n byte fields.
func Decode(buf []byte, n int) ([][]byte, error) {
	return Text(n).Decode(buf)
}

// Encode joins byte fields with the delimiter.
func Encode(fields ...[]byte) ([]byte, error) {
	return Text(len(fields)).Encode(fields)
}

// PutUint64 encodes v as an 8-byte big-endian field.
func PutUint64(v uint64) []byte {
	b := make([]byte, Uint64Width)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// GetUint64 decodes an 8-byte big-endian field.
func GetUint64(b []byte) (uint64, error) {
	if len(b) != Uint64Width {
		return 0, failure.Format("numeric field must be %d bytes, got %d", Uint64Width, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
