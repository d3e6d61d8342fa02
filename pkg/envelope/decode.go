// Package envelope decodes the binary message envelopes streamed by the
// concierge service over the websocket binary channel.
//
// Each inbound binary message is a fully self-contained value in a compact
// map/array serialization (MessagePack-compatible tag space): a two-element
// array of [resumption token, payload map]. Decode walks the byte buffer with
// a hand-rolled recursive descent so that malformed input is rejected with a
// precise *FormatError instead of a panic, and so the caller gets the offset
// where decoding stopped.
package envelope

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// FormatError reports a malformed binary envelope. The session drops the
// offending message and continues; a FormatError is never fatal.
type FormatError struct {
	// Offset is the byte offset where decoding failed.
	Offset int

	// Reason describes what was wrong at that offset.
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("envelope: invalid data at offset %d: %s", e.Offset, e.Reason)
}

func formatErrf(offset int, format string, args ...any) *FormatError {
	return &FormatError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// Decode decodes one value starting at offset and returns the decoded value
// together with the offset of the first byte after it.
//
// Decoded Go types:
//
//	nil            -> nil
//	boolean        -> bool
//	integer        -> int64 (uint64 only when the value exceeds MaxInt64)
//	float          -> float64
//	string         -> string
//	binary blob    -> []byte
//	array          -> []any
//	map            -> map[string]any (string keys only)
//
// Unknown tags, truncated input, declared lengths exceeding the remaining
// buffer and non-string map keys all return a *FormatError.
func Decode(data []byte, offset int) (any, int, error) {
	if offset < 0 || offset >= len(data) {
		return nil, offset, formatErrf(offset, "no data")
	}

	c := data[offset]
	off := offset + 1

	// Fixed-form tags carry their size class in the tag's low bits.
	switch {
	case msgpcode.IsFixedNum(c):
		return int64(int8(c)), off, nil
	case msgpcode.IsFixedString(c):
		return decodeString(data, off, int(c&msgpcode.FixedStrMask))
	case msgpcode.IsFixedArray(c):
		return decodeArray(data, off, int(c&msgpcode.FixedArrayMask))
	case msgpcode.IsFixedMap(c):
		return decodeMap(data, off, int(c&msgpcode.FixedMapMask))
	}

	switch c {
	case msgpcode.Nil:
		return nil, off, nil
	case msgpcode.False:
		return false, off, nil
	case msgpcode.True:
		return true, off, nil

	case msgpcode.Uint8:
		b, off, err := take(data, off, 1)
		if err != nil {
			return nil, off, err
		}
		return int64(b[0]), off, nil
	case msgpcode.Uint16:
		b, off, err := take(data, off, 2)
		if err != nil {
			return nil, off, err
		}
		return int64(binary.BigEndian.Uint16(b)), off, nil
	case msgpcode.Uint32:
		b, off, err := take(data, off, 4)
		if err != nil {
			return nil, off, err
		}
		return int64(binary.BigEndian.Uint32(b)), off, nil
	case msgpcode.Uint64:
		b, off, err := take(data, off, 8)
		if err != nil {
			return nil, off, err
		}
		u := binary.BigEndian.Uint64(b)
		if u > math.MaxInt64 {
			return u, off, nil
		}
		return int64(u), off, nil

	case msgpcode.Int8:
		b, off, err := take(data, off, 1)
		if err != nil {
			return nil, off, err
		}
		return int64(int8(b[0])), off, nil
	case msgpcode.Int16:
		b, off, err := take(data, off, 2)
		if err != nil {
			return nil, off, err
		}
		return int64(int16(binary.BigEndian.Uint16(b))), off, nil
	case msgpcode.Int32:
		b, off, err := take(data, off, 4)
		if err != nil {
			return nil, off, err
		}
		return int64(int32(binary.BigEndian.Uint32(b))), off, nil
	case msgpcode.Int64:
		b, off, err := take(data, off, 8)
		if err != nil {
			return nil, off, err
		}
		return int64(binary.BigEndian.Uint64(b)), off, nil

	case msgpcode.Float:
		b, off, err := take(data, off, 4)
		if err != nil {
			return nil, off, err
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), off, nil
	case msgpcode.Double:
		b, off, err := take(data, off, 8)
		if err != nil {
			return nil, off, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), off, nil

	case msgpcode.Str8:
		n, off, err := takeLen(data, off, 1)
		if err != nil {
			return nil, off, err
		}
		return decodeString(data, off, n)
	case msgpcode.Str16:
		n, off, err := takeLen(data, off, 2)
		if err != nil {
			return nil, off, err
		}
		return decodeString(data, off, n)
	case msgpcode.Str32:
		n, off, err := takeLen(data, off, 4)
		if err != nil {
			return nil, off, err
		}
		return decodeString(data, off, n)

	case msgpcode.Bin8:
		n, off, err := takeLen(data, off, 1)
		if err != nil {
			return nil, off, err
		}
		return decodeBin(data, off, n)
	case msgpcode.Bin16:
		n, off, err := takeLen(data, off, 2)
		if err != nil {
			return nil, off, err
		}
		return decodeBin(data, off, n)
	case msgpcode.Bin32:
		n, off, err := takeLen(data, off, 4)
		if err != nil {
			return nil, off, err
		}
		return decodeBin(data, off, n)

	case msgpcode.Array16:
		n, off, err := takeLen(data, off, 2)
		if err != nil {
			return nil, off, err
		}
		return decodeArray(data, off, n)
	case msgpcode.Array32:
		n, off, err := takeLen(data, off, 4)
		if err != nil {
			return nil, off, err
		}
		return decodeArray(data, off, n)

	case msgpcode.Map16:
		n, off, err := takeLen(data, off, 2)
		if err != nil {
			return nil, off, err
		}
		return decodeMap(data, off, n)
	case msgpcode.Map32:
		n, off, err := takeLen(data, off, 4)
		if err != nil {
			return nil, off, err
		}
		return decodeMap(data, off, n)
	}

	return nil, offset, formatErrf(offset, "unrecognized tag 0x%02x", c)
}

// take returns n raw bytes starting at off.
func take(data []byte, off, n int) ([]byte, int, error) {
	if n > len(data)-off {
		return nil, off, formatErrf(off, "need %d bytes, %d remain", n, len(data)-off)
	}
	return data[off : off+n], off + n, nil
}

// takeLen reads a big-endian length prefix of size 1, 2 or 4 bytes.
func takeLen(data []byte, off, size int) (int, int, error) {
	b, off, err := take(data, off, size)
	if err != nil {
		return 0, off, err
	}
	switch size {
	case 1:
		return int(b[0]), off, nil
	case 2:
		return int(binary.BigEndian.Uint16(b)), off, nil
	default:
		n := binary.BigEndian.Uint32(b)
		if uint64(n) > uint64(math.MaxInt32) {
			return 0, off, formatErrf(off-size, "length %d too large", n)
		}
		return int(n), off, nil
	}
}

func decodeString(data []byte, off, n int) (any, int, error) {
	b, off, err := take(data, off, n)
	if err != nil {
		return nil, off, err
	}
	return string(b), off, nil
}

func decodeBin(data []byte, off, n int) (any, int, error) {
	b, off, err := take(data, off, n)
	if err != nil {
		return nil, off, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, off, nil
}

func decodeArray(data []byte, off, n int) (any, int, error) {
	// Every element occupies at least one byte, so a declared count larger
	// than the remaining buffer can never be satisfied.
	if n > len(data)-off {
		return nil, off, formatErrf(off, "array length %d exceeds remaining %d bytes", n, len(data)-off)
	}
	arr := make([]any, 0, n)
	var (
		v   any
		err error
	)
	for i := 0; i < n; i++ {
		v, off, err = Decode(data, off)
		if err != nil {
			return nil, off, err
		}
		arr = append(arr, v)
	}
	return arr, off, nil
}

func decodeMap(data []byte, off, n int) (any, int, error) {
	// Each entry needs at least two bytes (key tag + value tag).
	if n > (len(data)-off)/2 {
		return nil, off, formatErrf(off, "map length %d exceeds remaining %d bytes", n, len(data)-off)
	}
	m := make(map[string]any, n)
	for i := 0; i < n; i++ {
		keyOff := off
		k, next, err := Decode(data, off)
		if err != nil {
			return nil, next, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, keyOff, formatErrf(keyOff, "map key is %T, want string", k)
		}
		v, next, err := Decode(data, next)
		if err != nil {
			return nil, next, err
		}
		m[key] = v
		off = next
	}
	return m, off, nil
}
