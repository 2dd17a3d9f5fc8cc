package bitmapidx

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/evidex/evidex/internal/bitstream"
	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
)

// equalityIndex is the per-distinct-value bitstream strategy for strings,
// interned names, and other opaque tags (also reused for bool, whose
// cardinality of 2 makes it a degenerate case of the same strategy).
type equalityIndex struct {
	valueType value.Tag
	slices    map[string]*bitstream.Bitstream
	length    uint64
	checkLen  uint64
}

func newEquality(t value.Tag) *equalityIndex {
	return &equalityIndex{valueType: t, slices: make(map[string]*bitstream.Bitstream)}
}

func (e *equalityIndex) ValueType() value.Tag { return e.valueType }

func (e *equalityIndex) key(v value.Value) string { return string(value.Encode(nil, v)) }

func (e *equalityIndex) PushBack(v value.Value, id uint64) error {
	if value.Which(v) != e.valueType {
		return fmt.Errorf("bitmapidx: equality: value type %v does not match index type %v", value.Which(v), e.valueType)
	}
	for _, s := range e.slices {
		s.Append(id-e.length, false)
	}
	e.length = id
	k := e.key(v)
	s, ok := e.slices[k]
	if !ok {
		nb := bitstream.New(e.length)
		s = &nb
		e.slices[k] = s
	}
	s.Append(1, true)
	for other, s2 := range e.slices {
		if other != k {
			s2.Append(1, false)
		}
	}
	e.length++
	return nil
}

func (e *equalityIndex) Append(n uint64, bit bool) {
	for _, s := range e.slices {
		s.Append(n, bit)
	}
	e.length += n
}

func (e *equalityIndex) Size() uint64     { return e.length }
func (e *equalityIndex) Appended() uint64 { return e.length - e.checkLen }
func (e *equalityIndex) Checkpoint()      { e.checkLen = e.length }

func (e *equalityIndex) Empty() bool {
	for _, s := range e.slices {
		if !s.Empty() {
			return false
		}
	}
	return true
}

func (e *equalityIndex) Lookup(op expr.Op, v value.Value) (bitstream.Bitstream, bool) {
	if value.Which(v) != e.valueType {
		return bitstream.Bitstream{}, false
	}
	s, ok := e.slices[e.key(v)]
	switch op {
	case expr.Equal:
		if !ok {
			return bitstream.New(e.length), true
		}
		return finalize(s.Clone()), true
	case expr.NotEqual:
		if !ok {
			return finalize(ones(e.length)), true
		}
		return finalize(s.Not()), true
	default:
		return bitstream.Bitstream{}, false
	}
}

func (e *equalityIndex) MarshalBinary() ([]byte, error) {
	keys := make([]string, 0, len(e.slices))
	for k := range e.slices {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := appendU64(nil, e.length)
	out = appendU32(out, uint32(len(keys)))
	for _, k := range keys {
		out = appendU32(out, uint32(len(k)))
		out = append(out, k...)
		b, err := e.slices[k].MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = appendU32(out, uint32(len(b)))
		out = append(out, b...)
	}
	return out, nil
}

func (e *equalityIndex) UnmarshalBinary(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("bitmapidx: equality: short buffer")
	}
	e.length = readU64(data)
	data = data[8:]
	count := readU32(data)
	data = data[4:]
	e.slices = make(map[string]*bitstream.Bitstream, count)
	for i := uint32(0); i < count; i++ {
		if len(data) < 4 {
			return fmt.Errorf("bitmapidx: equality: short key header")
		}
		klen := readU32(data)
		data = data[4:]
		if uint32(len(data)) < klen {
			return fmt.Errorf("bitmapidx: equality: short key")
		}
		k := string(data[:klen])
		data = data[klen:]
		if len(data) < 4 {
			return fmt.Errorf("bitmapidx: equality: short slice header")
		}
		slen := readU32(data)
		data = data[4:]
		if uint32(len(data)) < slen {
			return fmt.Errorf("bitmapidx: equality: short slice")
		}
		var s bitstream.Bitstream
		if err := s.UnmarshalBinary(data[:slen]); err != nil {
			return err
		}
		data = data[slen:]
		e.slices[k] = &s
	}
	e.checkLen = e.length
	return nil
}

func appendU64(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func readU64(src []byte) uint64 { return binary.LittleEndian.Uint64(src[:8]) }
