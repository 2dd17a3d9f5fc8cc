package archive

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/value"
)

// encodeEvent serializes an event to the binary format persisted (zstd
// compressed) under its id in the events column family: id(8) +
// timestamp_ns(8) + name (u32-length-prefixed) + attribute count(u32) +
// attributes (name, value)* + data (value.Encode).
func encodeEvent(e event.Event) []byte {
	buf := make([]byte, 0, 64)
	buf = appendU64(buf, e.ID)
	buf = appendU64(buf, uint64(e.Timestamp.UnixNano()))
	buf = appendString(buf, e.Name)
	buf = appendU32(buf, uint32(len(e.Attributes)))
	for name, v := range e.Attributes {
		buf = appendString(buf, name)
		buf = value.Encode(buf, v)
	}
	buf = value.Encode(buf, e.Data)
	return buf
}

// decodeEvent is the inverse of encodeEvent.
func decodeEvent(data []byte) (event.Event, error) {
	var e event.Event
	id, rest, err := readU64(data)
	if err != nil {
		return e, err
	}
	tsNanos, rest, err := readU64(rest)
	if err != nil {
		return e, err
	}
	name, rest, err := readString(rest)
	if err != nil {
		return e, err
	}
	attrCount, rest, err := readU32(rest)
	if err != nil {
		return e, err
	}
	attrs := make(map[string]value.Value, attrCount)
	for i := uint32(0); i < attrCount; i++ {
		var attrName string
		attrName, rest, err = readString(rest)
		if err != nil {
			return e, err
		}
		var v value.Value
		var n int
		v, n, err = value.Decode(rest)
		if err != nil {
			return e, err
		}
		rest = rest[n:]
		attrs[attrName] = v
	}
	data0, n, err := value.Decode(rest)
	if err != nil {
		return e, err
	}
	_ = n
	e.ID = id
	e.Timestamp = time.Unix(0, int64(tsNanos)).UTC()
	e.Name = name
	e.Attributes = attrs
	e.Data = data0
	return e, nil
}

func appendU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendU64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func appendString(dst []byte, s string) []byte {
	dst = appendU32(dst, uint32(len(s)))
	return append(dst, s...)
}

func readU32(src []byte) (uint32, []byte, error) {
	if len(src) < 4 {
		return 0, nil, fmt.Errorf("archive: short read for u32")
	}
	return binary.LittleEndian.Uint32(src), src[4:], nil
}

func readU64(src []byte) (uint64, []byte, error) {
	if len(src) < 8 {
		return 0, nil, fmt.Errorf("archive: short read for u64")
	}
	return binary.LittleEndian.Uint64(src), src[8:], nil
}

func readString(src []byte) (string, []byte, error) {
	n, rest, err := readU32(src)
	if err != nil {
		return "", nil, err
	}
	if uint32(len(rest)) < n {
		return "", nil, fmt.Errorf("archive: short read for string")
	}
	return string(rest[:n]), rest[n:], nil
}
