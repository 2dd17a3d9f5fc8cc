// Package bitmapidx implements the four bitmap-index strategies:
// equality (strings, names, opaque tags), arithmetic (binary-decomposed
// int/count/real/duration/timestamp), address (128-bit bitslice,
// IPv4-mapped), and port (a 16-bit number bitslice plus a per-protocol
// equality index). Each strategy maps
// typed values to bitstream.Bitstream and composes per-bit slices to
// answer relational lookups without ever materializing a full scan.
package bitmapidx

import (
	"encoding/binary"
	"fmt"

	"github.com/evidex/evidex/internal/bitstream"
	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
)

// Index is the common capability set every bitmap-index strategy
// implements.
type Index interface {
	// ValueType is the runtime type every value ever pushed into this
	// index must have — fixed for the file's lifetime.
	ValueType() value.Tag

	// PushBack sets the bit at position id in the bitstream(s) associated
	// with v, padding any id gap since the last call with false.
	PushBack(v value.Value, id uint64) error

	// Lookup evaluates op against v and returns (result, true) when the
	// (op, type) pair is supported, or (zero, false) otherwise — the
	// caller falls back to full-scan revalidation (unsupported_op).
	Lookup(op expr.Op, v value.Value) (bitstream.Bitstream, bool)

	// Append bulk-appends n bits of the given value to every underlying
	// bitstream, used to align a freshly loaded index to the current id
	// frontier.
	Append(n uint64, bit bool)

	Size() uint64
	Appended() uint64
	Checkpoint()
	Empty() bool

	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// StrategyTag identifies the encoding on disk, per the archive-blob format
// ("payload for a bitmap index is (strategy_tag: u8, ...)").
type StrategyTag uint8

const (
	StrategyEquality StrategyTag = iota
	StrategyArithmetic
	StrategyAddress
	StrategyPort
)

// New constructs the bitmap-index strategy appropriate for t, per the
// strategy table. Container types have no bitmap-index strategy:
// the core does not index vector/set/table fields (preserved open
// question), so New returns an error for them.
func New(t value.Tag) (Index, error) {
	switch t {
	case value.String, value.Bool:
		return newEquality(t), nil
	case value.Int, value.Count, value.Real, value.Duration, value.Timestamp:
		return newArithmetic(t, 1), nil
	case value.Address, value.Subnet:
		return newAddressIndex(), nil
	case value.Port:
		return newPortIndex(), nil
	default:
		return nil, fmt.Errorf("bitmapidx: no index strategy for type %v", t)
	}
}

// StrategyOf reports which strategy New would construct for t.
func StrategyOf(t value.Tag) (StrategyTag, bool) {
	switch t {
	case value.String, value.Bool:
		return StrategyEquality, true
	case value.Int, value.Count, value.Real, value.Duration, value.Timestamp:
		return StrategyArithmetic, true
	case value.Address, value.Subnet:
		return StrategyAddress, true
	case value.Port:
		return StrategyPort, true
	default:
		return 0, false
	}
}

// Archive blob format: magic(4) + version(u16) + payload, where the
// payload for a bitmap index is (strategy_tag:u8, value_type:u8, body...)
// and body is the strategy's MarshalBinary output. The envelope itself
// carries no bit_length or slice_count field.

var archiveMagic = [4]byte{'v', 'b', 'm', 'i'}

const archiveVersion uint16 = 1

// Archive wraps idx's MarshalBinary output in the framed, versioned
// envelope persisted to a `.idx` file.
func Archive(idx Index) ([]byte, error) {
	tag, ok := StrategyOf(idx.ValueType())
	if !ok {
		return nil, fmt.Errorf("bitmapidx: archive: unindexable type %v", idx.ValueType())
	}
	body, err := idx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("bitmapidx: archive: %w", err)
	}
	out := make([]byte, 0, 4+2+1+1+len(body))
	out = append(out, archiveMagic[:]...)
	out = appendU16(out, archiveVersion)
	out = append(out, byte(tag))
	out = append(out, byte(idx.ValueType()))
	out = append(out, body...)
	return out, nil
}

// Unarchive parses the framed envelope written by Archive, validating the
// magic and version, and constructing a fresh Index of the recorded type.
// A magic/version mismatch is reported as a *CorruptError so the caller
// can quarantine the file as a corrupt index.
func Unarchive(data []byte) (Index, error) {
	if len(data) < 4+2+1+1 {
		return nil, &CorruptError{Reason: "short buffer"}
	}
	if [4]byte(data[:4]) != archiveMagic {
		return nil, &CorruptError{Reason: "bad magic"}
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != archiveVersion {
		return nil, &CorruptError{Reason: fmt.Sprintf("unsupported version %d", version)}
	}
	tag := StrategyTag(data[6])
	vt := value.Tag(data[7])
	idx, err := New(vt)
	if err != nil {
		return nil, &CorruptError{Reason: err.Error()}
	}
	if got, _ := StrategyOf(vt); got != tag {
		return nil, &CorruptError{Reason: "strategy/type mismatch"}
	}
	if err := idx.UnmarshalBinary(data[8:]); err != nil {
		return nil, &CorruptError{Reason: err.Error()}
	}
	return idx, nil
}

// CorruptError reports that an archived bitmap-index blob failed its
// magic/version check, reported as a corrupt_index error.
type CorruptError struct {
	Reason string
}

func (e *CorruptError) Error() string { return "bitmapidx: corrupt index: " + e.Reason }

// PeekValueType checks the magic and reads just the one-byte value type
// (byte 7 of the envelope) of an archived blob without fully decoding it, as event_data_index.scan() does when
// populating its files_ registry.
func PeekValueType(data []byte) (value.Tag, error) {
	if len(data) < 8 {
		return 0, &CorruptError{Reason: "short buffer"}
	}
	if [4]byte(data[:4]) != archiveMagic {
		return 0, &CorruptError{Reason: "bad magic"}
	}
	return value.Tag(data[7]), nil
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

func readU32(src []byte) uint32 { return binary.LittleEndian.Uint32(src[:4]) }
