package bitmapidx

import (
	"fmt"
	"net/netip"

	"github.com/evidex/evidex/internal/bitstream"
	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
)

const addressWidth = 128

// addressIndex is the 128-bit bitslice strategy shared by address and
// subnet values. IPv4 addresses are stored IPv4-mapped (the
// standard ::ffff:0:0/96 prefix) so a single bitslice serves both
// families; subnet membership is a prefixMask lookup over the first
// Bits() columns of the queried prefix.
type addressIndex struct {
	bs *bitslice
}

func newAddressIndex() *addressIndex {
	return &addressIndex{bs: newBitslice(addressWidth)}
}

func (a *addressIndex) ValueType() value.Tag { return value.Address }

func addressBits(addr netip.Addr) []bool {
	b16 := addr.As16()
	bits := make([]bool, addressWidth)
	for i := 0; i < 16; i++ {
		for j := 0; j < 8; j++ {
			bits[i*8+j] = (b16[i]>>(7-uint(j)))&1 == 1
		}
	}
	return bits
}

func (a *addressIndex) PushBack(v value.Value, id uint64) error {
	switch value.Which(v) {
	case value.Address:
		addr, _ := value.AsAddress(v)
		return a.bs.pushBack(addressBits(addr), id)
	case value.Subnet:
		subnet, _ := value.AsSubnet(v)
		return a.bs.pushBack(addressBits(subnet.Addr()), id)
	default:
		return fmt.Errorf("bitmapidx: address: expected address or subnet, got %v", value.Which(v))
	}
}

func (a *addressIndex) Append(n uint64, bit bool) { a.bs.append(n, bit) }
func (a *addressIndex) Size() uint64              { return a.bs.size() }
func (a *addressIndex) Appended() uint64          { return a.bs.appended() }
func (a *addressIndex) Checkpoint()               { a.bs.checkpoint() }
func (a *addressIndex) Empty() bool               { return a.bs.empty() }

// subnetPrefixBits returns the mapped address bits of p's network address
// and the prefix width in the 128-bit IPv4-mapped space (IPv4 prefix
// widths are offset by 96).
func subnetPrefixBits(p netip.Prefix) ([]bool, int) {
	bits := addressBits(p.Addr())
	width := p.Bits()
	if p.Addr().Is4() {
		width += 96
	}
	return bits, width
}

func (a *addressIndex) Lookup(op expr.Op, v value.Value) (bitstream.Bitstream, bool) {
	switch value.Which(v) {
	case value.Address:
		addr, _ := value.AsAddress(v)
		bits := addressBits(addr)
		switch op {
		case expr.Equal:
			return finalize(a.bs.equal(bits)), true
		case expr.NotEqual:
			return finalize(a.bs.equal(bits).Not()), true
		default:
			return bitstream.Bitstream{}, false
		}
	case value.Subnet:
		subnet, _ := value.AsSubnet(v)
		bits, width := subnetPrefixBits(subnet)
		switch op {
		case expr.In, expr.Equal:
			return finalize(a.bs.prefixMask(bits, width)), true
		case expr.NotIn, expr.NotEqual:
			return finalize(a.bs.prefixMask(bits, width).Not()), true
		default:
			return bitstream.Bitstream{}, false
		}
	default:
		return bitstream.Bitstream{}, false
	}
}

func (a *addressIndex) MarshalBinary() ([]byte, error) { return a.bs.marshal() }

func (a *addressIndex) UnmarshalBinary(data []byte) error {
	_, err := a.bs.unmarshal(data)
	return err
}
