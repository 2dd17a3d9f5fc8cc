package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"time"
)

// Binary value format: [tag:1][payload...], little-endian, length-prefixed
// variable parts. Scalars are fixed width; strings carry a u32 length
// prefix and addresses are 16 raw bytes; containers carry a u32 element
// count followed by each encoded element in turn. This is the encoding the
// equality index keys its values by and the one used for event payloads
// persisted by the archive collaborator.

// Encode appends the binary encoding of v to dst and returns the result.
func Encode(dst []byte, v Value) []byte {
	dst = append(dst, byte(v.tag))
	switch v.tag {
	case None:
		// no payload
	case Bool:
		if v.b {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	case Int:
		dst = appendU64(dst, uint64(v.i))
	case Count:
		dst = appendU64(dst, v.u)
	case Real:
		dst = appendU64(dst, math.Float64bits(v.f))
	case Duration:
		dst = appendU64(dst, uint64(v.dur))
	case Timestamp:
		dst = appendU64(dst, uint64(v.ts.UnixNano()))
	case String:
		dst = appendBytes(dst, []byte(v.s))
	case Address:
		b := v.addr.As16()
		dst = append(dst, b[:]...)
	case Subnet:
		b := v.subnet.Addr().As16()
		dst = append(dst, b[:]...)
		dst = append(dst, byte(v.subnet.Bits()))
	case Port:
		dst = appendU16(dst, v.port.Number)
		dst = append(dst, byte(v.port.Proto))
	case Record, Vector, Set:
		dst = appendU32(dst, uint32(len(v.elems)))
		for _, e := range v.elems {
			dst = Encode(dst, e)
		}
	case Table:
		dst = appendU32(dst, uint32(len(v.table)))
		for _, e := range v.table {
			dst = Encode(dst, e.Key)
			dst = Encode(dst, e.Val)
		}
	default:
		panic(fmt.Sprintf("value: unhandled tag %v in Encode", v.tag))
	}
	return dst
}

// Decode reads one Value from the front of src and returns it along with
// the number of bytes consumed.
func Decode(src []byte) (Value, int, error) {
	if len(src) < 1 {
		return Value{}, 0, fmt.Errorf("value: decode: empty buffer")
	}
	tag := Tag(src[0])
	rest := src[1:]
	consumed := 1
	switch tag {
	case None:
		return Value{tag: None}, consumed, nil
	case Bool:
		if len(rest) < 1 {
			return Value{}, 0, fmt.Errorf("value: decode bool: short buffer")
		}
		return Value{tag: Bool, b: rest[0] != 0}, consumed + 1, nil
	case Int:
		u, n, err := readU64(rest)
		return Value{tag: Int, i: int64(u)}, consumed + n, err
	case Count:
		u, n, err := readU64(rest)
		return Value{tag: Count, u: u}, consumed + n, err
	case Real:
		u, n, err := readU64(rest)
		return Value{tag: Real, f: math.Float64frombits(u)}, consumed + n, err
	case Duration:
		u, n, err := readU64(rest)
		return Value{tag: Duration, dur: time.Duration(u)}, consumed + n, err
	case Timestamp:
		u, n, err := readU64(rest)
		return Value{tag: Timestamp, ts: time.Unix(0, int64(u)).UTC()}, consumed + n, err
	case String:
		b, n, err := readBytes(rest)
		return Value{tag: String, s: string(b)}, consumed + n, err
	case Address:
		if len(rest) < 16 {
			return Value{}, 0, fmt.Errorf("value: decode address: short buffer")
		}
		var b [16]byte
		copy(b[:], rest[:16])
		return Value{tag: Address, addr: netip.AddrFrom16(b).Unmap()}, consumed + 16, nil
	case Subnet:
		if len(rest) < 17 {
			return Value{}, 0, fmt.Errorf("value: decode subnet: short buffer")
		}
		var b [16]byte
		copy(b[:], rest[:16])
		bits := int(rest[16])
		addr := netip.AddrFrom16(b).Unmap()
		p, err := addr.Prefix(bits)
		if err != nil {
			return Value{}, 0, fmt.Errorf("value: decode subnet: %w", err)
		}
		return Value{tag: Subnet, subnet: p}, consumed + 17, nil
	case Port:
		if len(rest) < 3 {
			return Value{}, 0, fmt.Errorf("value: decode port: short buffer")
		}
		num := binary.LittleEndian.Uint16(rest[:2])
		proto := Proto(rest[2])
		return Value{tag: Port, port: PortSpec{Number: num, Proto: proto}}, consumed + 3, nil
	case Record, Vector, Set:
		if len(rest) < 4 {
			return Value{}, 0, fmt.Errorf("value: decode container: short buffer")
		}
		count := binary.LittleEndian.Uint32(rest[:4])
		off := 4
		elems := make([]Value, 0, count)
		for i := uint32(0); i < count; i++ {
			e, n, err := Decode(rest[off:])
			if err != nil {
				return Value{}, 0, err
			}
			elems = append(elems, e)
			off += n
		}
		return Value{tag: tag, elems: elems}, consumed + off, nil
	case Table:
		if len(rest) < 4 {
			return Value{}, 0, fmt.Errorf("value: decode table: short buffer")
		}
		count := binary.LittleEndian.Uint32(rest[:4])
		off := 4
		entries := make([]TableEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			k, n, err := Decode(rest[off:])
			if err != nil {
				return Value{}, 0, err
			}
			off += n
			v, n2, err := Decode(rest[off:])
			if err != nil {
				return Value{}, 0, err
			}
			off += n2
			entries = append(entries, TableEntry{Key: k, Val: v})
		}
		return Value{tag: Table, table: entries}, consumed + off, nil
	default:
		return Value{}, 0, fmt.Errorf("value: decode: unknown tag %d", tag)
	}
}

func appendU16(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
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

func appendBytes(dst []byte, b []byte) []byte {
	dst = appendU32(dst, uint32(len(b)))
	return append(dst, b...)
}

func readU64(src []byte) (uint64, int, error) {
	if len(src) < 8 {
		return 0, 0, fmt.Errorf("value: decode: short buffer for u64")
	}
	return binary.LittleEndian.Uint64(src[:8]), 8, nil
}

func readBytes(src []byte) ([]byte, int, error) {
	if len(src) < 4 {
		return nil, 0, fmt.Errorf("value: decode: short buffer for length prefix")
	}
	n := binary.LittleEndian.Uint32(src[:4])
	if uint32(len(src)-4) < n {
		return nil, 0, fmt.Errorf("value: decode: short buffer for %d bytes", n)
	}
	return src[4 : 4+n], 4 + int(n), nil
}
