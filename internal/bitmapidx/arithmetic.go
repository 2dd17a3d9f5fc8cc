package bitmapidx

import (
	"fmt"
	"math"
	"time"

	"github.com/evidex/evidex/internal/bitstream"
	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
)

const arithmeticWidth = 64

// arithmeticIndex is the binary-decomposed strategy for int, count, real,
// duration, and timestamp: one bitstream per bit of a 64-bit
// order-preserving key, most-significant bit first. granularity, when
// coarser than one nanosecond, truncates timestamp/duration values to
// whole units of itself before encoding — event_meta_index's timestamp_ column uses this with a
// granularity of one second; data-index timestamp fields default to
// full nanosecond precision.
type arithmeticIndex struct {
	valueType    value.Tag
	granularity  time.Duration // 0 or 1 means full precision
	bs           *bitslice
}

func newArithmetic(t value.Tag, granularity time.Duration) *arithmeticIndex {
	return &arithmeticIndex{valueType: t, granularity: granularity, bs: newBitslice(arithmeticWidth)}
}

// NewArithmetic constructs the arithmetic strategy directly with an
// explicit granularity, for callers that need coarser-than-native
// precision — event_meta_index's timestamp column, for instance, buckets
// to whole seconds rather than nanoseconds.
func NewArithmetic(t value.Tag, granularity time.Duration) (Index, error) {
	switch t {
	case value.Int, value.Count, value.Real, value.Duration, value.Timestamp:
		return newArithmetic(t, granularity), nil
	default:
		return nil, fmt.Errorf("bitmapidx: arithmetic: unsupported type %v", t)
	}
}

func (a *arithmeticIndex) ValueType() value.Tag { return a.valueType }

// orderedKey maps v to a uint64 whose natural unsigned ordering matches v's
// semantic ordering: signed integers and timestamps/durations flip the
// sign bit; IEEE-754 reals use the standard monotonic bit-flip trick.
func (a *arithmeticIndex) orderedKey(v value.Value) (uint64, error) {
	switch a.valueType {
	case value.Int:
		i, ok := value.AsInt(v)
		if !ok {
			return 0, fmt.Errorf("bitmapidx: arithmetic: expected int, got %v", value.Which(v))
		}
		return uint64(i) ^ 0x8000000000000000, nil
	case value.Count:
		u, ok := value.AsCount(v)
		if !ok {
			return 0, fmt.Errorf("bitmapidx: arithmetic: expected count, got %v", value.Which(v))
		}
		return u, nil
	case value.Real:
		f, ok := value.AsReal(v)
		if !ok {
			return 0, fmt.Errorf("bitmapidx: arithmetic: expected real, got %v", value.Which(v))
		}
		return orderedFloatBits(f), nil
	case value.Duration:
		d, ok := value.AsDuration(v)
		if !ok {
			return 0, fmt.Errorf("bitmapidx: arithmetic: expected duration, got %v", value.Which(v))
		}
		return uint64(a.quantize(int64(d))) ^ 0x8000000000000000, nil
	case value.Timestamp:
		ts, ok := value.AsTimestamp(v)
		if !ok {
			return 0, fmt.Errorf("bitmapidx: arithmetic: expected timestamp, got %v", value.Which(v))
		}
		return uint64(a.quantize(ts.UnixNano())) ^ 0x8000000000000000, nil
	default:
		return 0, fmt.Errorf("bitmapidx: arithmetic: unsupported type %v", a.valueType)
	}
}

func (a *arithmeticIndex) quantize(nanos int64) int64 {
	if a.granularity <= time.Nanosecond {
		return nanos
	}
	return nanos / int64(a.granularity)
}

func orderedFloatBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&0x8000000000000000 != 0 {
		return ^bits
	}
	return bits | 0x8000000000000000
}

func keyBits(key uint64, width int) []bool {
	bits := make([]bool, width)
	for i := 0; i < width; i++ {
		bits[i] = (key>>(uint(width-1-i)))&1 == 1
	}
	return bits
}

func (a *arithmeticIndex) PushBack(v value.Value, id uint64) error {
	key, err := a.orderedKey(v)
	if err != nil {
		return err
	}
	return a.bs.pushBack(keyBits(key, arithmeticWidth), id)
}

func (a *arithmeticIndex) Append(n uint64, bit bool) { a.bs.append(n, bit) }
func (a *arithmeticIndex) Size() uint64              { return a.bs.size() }
func (a *arithmeticIndex) Appended() uint64          { return a.bs.appended() }
func (a *arithmeticIndex) Checkpoint()               { a.bs.checkpoint() }
func (a *arithmeticIndex) Empty() bool               { return a.bs.empty() }

func (a *arithmeticIndex) Lookup(op expr.Op, v value.Value) (bitstream.Bitstream, bool) {
	if value.Which(v) != a.valueType {
		return bitstream.Bitstream{}, false
	}
	key, err := a.orderedKey(v)
	if err != nil {
		return bitstream.Bitstream{}, false
	}
	bits := keyBits(key, arithmeticWidth)

	switch op {
	case expr.Equal:
		return finalize(a.bs.equal(bits)), true
	case expr.NotEqual:
		return finalize(a.bs.equal(bits).Not()), true
	case expr.Less:
		lt, _ := a.bs.less(bits)
		return finalize(lt), true
	case expr.LessEqual:
		lt, eq := a.bs.less(bits)
		return finalize(bitstream.Or(lt, eq)), true
	case expr.Greater:
		lt, eq := a.bs.less(bits)
		return finalize(bitstream.Or(lt, eq).Not()), true
	case expr.GreaterEqual:
		lt, _ := a.bs.less(bits)
		return finalize(lt.Not()), true
	default:
		return bitstream.Bitstream{}, false
	}
}

func (a *arithmeticIndex) MarshalBinary() ([]byte, error) {
	out := appendU64(nil, uint64(a.granularity))
	body, err := a.bs.marshal()
	if err != nil {
		return nil, err
	}
	return append(out, body...), nil
}

func (a *arithmeticIndex) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("bitmapidx: arithmetic: short buffer")
	}
	a.granularity = time.Duration(readU64(data))
	_, err := a.bs.unmarshal(data[8:])
	return err
}
