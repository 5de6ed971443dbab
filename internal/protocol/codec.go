package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"go.uber.org/multierr"
)

const (
	// HeaderSize covers the kind and the payload length.
	HeaderSize = 8
	// MaxPayload bounds the declared payload length of a single frame.
	MaxPayload = 16 << 20
)

var byteOrder = binary.LittleEndian

// Frame is one length-prefixed message. A zero Frame is the no-op produced
// by an all-zero buffer.
type Frame struct {
	Kind  Kind
	Items []any
}

func NewFrame(kind Kind, items ...any) Frame {
	if items == nil {
		items = []any{}
	}
	return Frame{Kind: kind, Items: items}
}

func (f Frame) Noop() bool { return f.Kind == KindNone }

// Encode lays out kind, payload length and payload. Empty items produce an
// empty payload.
//
// Items travel as gob, which does not tell a nil slice or map from an empty
// one: both decode as nil of the same type, at the top level and inside
// structs. Receivers must treat nil and empty alike.
func Encode(kind Kind, items []any) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("encode: invalid kind %d", kind)
	}
	var payload bytes.Buffer
	if len(items) > 0 {
		if err := gob.NewEncoder(&payload).Encode(items); err != nil {
			return nil, fmt.Errorf("encode %s: %w", kind, err)
		}
	}
	if payload.Len() > MaxPayload {
		return nil, fmt.Errorf("encode %s: payload of %d bytes exceeds limit", kind, payload.Len())
	}

	out := make([]byte, HeaderSize+payload.Len())
	byteOrder.PutUint32(out[0:4], uint32(kind))
	byteOrder.PutUint32(out[4:8], uint32(payload.Len()))
	copy(out[HeaderSize:], payload.Bytes())
	return out, nil
}

// Decode reads the first frame in buf. A buffer of only zero bytes decodes
// to the no-op frame.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, &FrameError{Reason: "shorter than header", Len: len(buf)}
	}
	if allZero(buf) {
		return Frame{}, nil
	}
	kind, size, err := readHeader(buf)
	if err != nil {
		return Frame{}, err
	}
	if size > len(buf)-HeaderSize {
		return Frame{}, &FrameError{Reason: fmt.Sprintf("declared payload %d exceeds %d available", size, len(buf)-HeaderSize), Len: len(buf)}
	}
	return decodeBody(kind, buf[HeaderSize:HeaderSize+size])
}

// DecodeAll slices buf into consecutive frames. rest is an incomplete
// trailing frame the caller should prepend to its next read. A frame with an
// undecodable payload is skipped; a header that cannot be trusted discards
// everything after it.
func DecodeAll(buf []byte) (frames []Frame, rest []byte, err error) {
	for len(buf) >= HeaderSize {
		if allZero(buf[:HeaderSize]) {
			buf = buf[HeaderSize:]
			continue
		}
		kind, size, herr := readHeader(buf)
		if herr != nil {
			return frames, nil, multierr.Append(err, herr)
		}
		if len(buf)-HeaderSize < size {
			break
		}
		f, derr := decodeBody(kind, buf[HeaderSize:HeaderSize+size])
		if derr != nil {
			err = multierr.Append(err, derr)
		} else {
			frames = append(frames, f)
		}
		buf = buf[HeaderSize+size:]
	}
	return frames, buf, err
}

func readHeader(buf []byte) (Kind, int, error) {
	kind := Kind(int32(byteOrder.Uint32(buf[0:4])))
	size := int64(int32(byteOrder.Uint32(buf[4:8])))
	if !kind.Valid() {
		return 0, 0, &FrameError{Reason: fmt.Sprintf("unknown kind %d", kind), Len: len(buf)}
	}
	if size < 0 || size > MaxPayload {
		return 0, 0, &FrameError{Reason: fmt.Sprintf("declared payload %d out of range", size), Len: len(buf)}
	}
	return kind, int(size), nil
}

func decodeBody(kind Kind, payload []byte) (Frame, error) {
	items := []any{}
	if len(payload) > 0 {
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&items); err != nil {
			return Frame{}, &FrameError{Reason: fmt.Sprintf("%s payload: %v", kind, err), Len: len(payload) + HeaderSize}
		}
	}
	return Frame{Kind: kind, Items: items}, nil
}

func allZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
