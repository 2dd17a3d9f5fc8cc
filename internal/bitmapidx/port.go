package bitmapidx

import (
	"fmt"

	"github.com/evidex/evidex/internal/bitstream"
	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
)

const portNumberWidth = 16

// portIndex composes a 16-bit number bitslice with a small per-proto
// equality index: looking up a port literal like 53/udp intersects
// the number-equality mask with the proto-equality mask, while a bare
// number query (proto = unknown) matches on the number alone. The proto
// side is keyed as a Count value since equalityIndex keys on an encoded
// value.Value and Proto has no first-class Value tag of its own.
type portIndex struct {
	number *bitslice
	proto  *equalityIndex
}

func newPortIndex() *portIndex {
	return &portIndex{number: newBitslice(portNumberWidth), proto: newEquality(value.Count)}
}

func (p *portIndex) ValueType() value.Tag { return value.Port }

func portNumberBits(n uint16) []bool {
	bits := make([]bool, portNumberWidth)
	for i := 0; i < portNumberWidth; i++ {
		bits[i] = (n>>(uint(portNumberWidth-1-i)))&1 == 1
	}
	return bits
}

func protoKey(proto value.Proto) value.Value { return value.CountValue(uint64(proto)) }

func (p *portIndex) PushBack(v value.Value, id uint64) error {
	port, ok := value.AsPort(v)
	if !ok {
		return fmt.Errorf("bitmapidx: port: expected port, got %v", value.Which(v))
	}
	if err := p.number.pushBack(portNumberBits(port.Number), id); err != nil {
		return err
	}
	return p.proto.PushBack(protoKey(port.Proto), id)
}

func (p *portIndex) Append(n uint64, bit bool) {
	p.number.append(n, bit)
	p.proto.Append(n, bit)
}

func (p *portIndex) Size() uint64     { return p.number.size() }
func (p *portIndex) Appended() uint64 { return p.number.appended() }
func (p *portIndex) Checkpoint() {
	p.number.checkpoint()
	p.proto.Checkpoint()
}
func (p *portIndex) Empty() bool { return p.number.empty() }

func (p *portIndex) Lookup(op expr.Op, v value.Value) (bitstream.Bitstream, bool) {
	port, ok := value.AsPort(v)
	if !ok {
		return bitstream.Bitstream{}, false
	}
	if op != expr.Equal && op != expr.NotEqual {
		return bitstream.Bitstream{}, false
	}
	result := p.number.equal(portNumberBits(port.Number))
	if port.Proto != value.ProtoUnknown {
		if protoEq, ok := p.proto.Lookup(expr.Equal, protoKey(port.Proto)); ok {
			result = bitstream.And(result, protoEq)
		}
	}
	if op == expr.NotEqual {
		return finalize(result.Not()), true
	}
	return finalize(result), true
}

func (p *portIndex) MarshalBinary() ([]byte, error) {
	numBody, err := p.number.marshal()
	if err != nil {
		return nil, err
	}
	protoBody, err := p.proto.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := appendU32(nil, uint32(len(numBody)))
	out = append(out, numBody...)
	out = appendU32(out, uint32(len(protoBody)))
	out = append(out, protoBody...)
	return out, nil
}

func (p *portIndex) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("bitmapidx: port: short buffer")
	}
	numLen := readU32(data)
	data = data[4:]
	if uint32(len(data)) < numLen {
		return fmt.Errorf("bitmapidx: port: short number body")
	}
	if _, err := p.number.unmarshal(data[:numLen]); err != nil {
		return err
	}
	data = data[numLen:]
	if len(data) < 4 {
		return fmt.Errorf("bitmapidx: port: short proto header")
	}
	protoLen := readU32(data)
	data = data[4:]
	if uint32(len(data)) < protoLen {
		return fmt.Errorf("bitmapidx: port: short proto body")
	}
	p.proto = newEquality(value.Count)
	return p.proto.UnmarshalBinary(data[:protoLen])
}
