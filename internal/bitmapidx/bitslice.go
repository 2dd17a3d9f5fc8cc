package bitmapidx

import (
	"fmt"

	"github.com/evidex/evidex/internal/bitstream"
)

// bitslice is the shared binary-decomposition engine behind the arithmetic,
// address, and port-number bitmap-index strategies: one bitstream
// per bit of a fixed-width key, most-significant bit first. lookup
// composes these per-bit bitstreams with the standard range-to-bitslice
// algorithm: sweep the key from the MSB down, tracking an "equal so far"
// prefix mask and accumulating an "already less" mask whenever a 1-bit in
// the key meets a 0-bit in the index.
type bitslice struct {
	width         int
	slices        []bitstream.Bitstream
	length        uint64
	checkpointLen uint64
}

func newBitslice(width int) *bitslice {
	return &bitslice{width: width, slices: make([]bitstream.Bitstream, width)}
}

func (bs *bitslice) padTo(target uint64) {
	if target <= bs.length {
		return
	}
	n := target - bs.length
	for i := range bs.slices {
		bs.slices[i].Append(n, false)
	}
	bs.length = target
}

// pushBack appends one bit to every column, bits[i] at column i, after
// padding any gap between the current length and id with false — this is
// how equal bit length across sibling bitmaps is maintained in the face
// of non-contiguous ids.
func (bs *bitslice) pushBack(bits []bool, id uint64) error {
	if len(bits) != bs.width {
		return fmt.Errorf("bitmapidx: bitslice width mismatch: got %d bits, want %d", len(bits), bs.width)
	}
	bs.padTo(id)
	for i, b := range bits {
		bs.slices[i].Append(1, b)
	}
	bs.length = id + 1
	return nil
}

func (bs *bitslice) append(n uint64, bit bool) {
	for i := range bs.slices {
		bs.slices[i].Append(n, bit)
	}
	bs.length += n
}

func (bs *bitslice) size() uint64 { return bs.length }

func (bs *bitslice) appended() uint64 { return bs.length - bs.checkpointLen }

func (bs *bitslice) checkpoint() { bs.checkpointLen = bs.length }

func (bs *bitslice) empty() bool {
	for _, s := range bs.slices {
		if !s.Empty() {
			return false
		}
	}
	return true
}

func ones(length uint64) bitstream.Bitstream {
	b := bitstream.New(0)
	b.Append(length, true)
	return b
}

// equal returns the ids whose stored key bit-for-bit matches bits.
func (bs *bitslice) equal(bits []bool) bitstream.Bitstream {
	eq := ones(bs.length)
	for i, b := range bits {
		if b {
			eq = bitstream.And(eq, bs.slices[i])
		} else {
			eq = bitstream.And(eq, bs.slices[i].Not())
		}
	}
	return eq
}

// less returns (ids strictly less than bits, ids equal to bits).
func (bs *bitslice) less(bits []bool) (lt, eq bitstream.Bitstream) {
	lt = bitstream.New(bs.length)
	eq = ones(bs.length)
	for i, b := range bits {
		if b {
			lt = bitstream.Or(lt, bitstream.And(eq, bs.slices[i].Not()))
			eq = bitstream.And(eq, bs.slices[i])
		} else {
			eq = bitstream.And(eq, bs.slices[i].Not())
		}
	}
	return lt, eq
}

// prefixMask masks the k most-significant bits of bits and matches them
// against the stored key, ignoring the remaining width-k bits entirely —
// this realizes subnet membership ("mask the first k bits of the address
// slice and compare with the subnet prefix").
func (bs *bitslice) prefixMask(bits []bool, k int) bitstream.Bitstream {
	eq := ones(bs.length)
	for i := 0; i < k && i < len(bits); i++ {
		if bits[i] {
			eq = bitstream.And(eq, bs.slices[i])
		} else {
			eq = bitstream.And(eq, bs.slices[i].Not())
		}
	}
	return eq
}

func (bs *bitslice) marshal() ([]byte, error) {
	out := appendU32(nil, uint32(len(bs.slices)))
	for _, s := range bs.slices {
		b, err := s.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = appendU32(out, uint32(len(b)))
		out = append(out, b...)
	}
	return out, nil
}

func (bs *bitslice) unmarshal(data []byte) (int, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("bitmapidx: bitslice: short buffer")
	}
	count := readU32(data)
	off := 4
	slices := make([]bitstream.Bitstream, count)
	var length uint64
	for i := uint32(0); i < count; i++ {
		if len(data[off:]) < 4 {
			return 0, fmt.Errorf("bitmapidx: bitslice: short slice header")
		}
		n := readU32(data[off:])
		off += 4
		if len(data[off:]) < int(n) {
			return 0, fmt.Errorf("bitmapidx: bitslice: short slice payload")
		}
		var s bitstream.Bitstream
		if err := s.UnmarshalBinary(data[off : off+int(n)]); err != nil {
			return 0, err
		}
		off += int(n)
		slices[i] = s
		length = s.Len()
	}
	bs.width = int(count)
	bs.slices = slices
	bs.length = length
	bs.checkpointLen = length
	return off, nil
}
