// Package value implements the typed tagged-union domain value and its
// structural counterpart, the schema Type, shared by every layer above the
// bitmap-index library.
package value

import (
	"fmt"
	"net/netip"
	"sort"
	"time"
)

// Tag identifies the active variant of a Value. The set is closed: no new
// tag is added without a corresponding bitmap-index strategy in package
// bitmapidx.
type Tag uint8

const (
	None Tag = iota
	Bool
	Int
	Count
	Real
	Duration
	Timestamp
	String
	Address
	Subnet
	Port
	Record
	Vector
	Set
	Table
)

func (t Tag) String() string {
	switch t {
	case None:
		return "none"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Count:
		return "count"
	case Real:
		return "real"
	case Duration:
		return "duration"
	case Timestamp:
		return "timestamp"
	case String:
		return "string"
	case Address:
		return "address"
	case Subnet:
		return "subnet"
	case Port:
		return "port"
	case Record:
		return "record"
	case Vector:
		return "vector"
	case Set:
		return "set"
	case Table:
		return "table"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// IsContainer reports whether t holds nested values rather than a scalar.
func IsContainer(t Tag) bool {
	switch t {
	case Record, Vector, Set, Table:
		return true
	default:
		return false
	}
}

// Proto is the transport protocol tag carried by a Port value.
type Proto uint8

const (
	ProtoUnknown Proto = iota
	ProtoTCP
	ProtoUDP
	ProtoICMP
)

func (p Proto) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	case ProtoICMP:
		return "icmp"
	default:
		return "unknown"
	}
}

// PortSpec is a 16-bit port number paired with a protocol tag.
type PortSpec struct {
	Number uint16
	Proto  Proto
}

func (p PortSpec) String() string { return fmt.Sprintf("%d/%s", p.Number, p.Proto) }

// TableEntry is one key/value pair of a Table value.
type TableEntry struct {
	Key Value
	Val Value
}

// Value is a closed tagged union. Only the field(s) matching tag are
// meaningful; the zero Value is None. Container payloads (record, vector,
// set) are stored as an owned slice; table entries as an owned slice of
// pairs. Because Go slices are themselves a heap indirection, the
// recursive arms are naturally boxed and Value stays small on the stack.
type Value struct {
	tag    Tag
	b      bool
	i      int64
	u      uint64
	f      float64
	dur    time.Duration
	ts     time.Time
	s      string
	addr   netip.Addr
	subnet netip.Prefix
	port   PortSpec
	elems  []Value
	table  []TableEntry
}

// Which returns the active variant tag.
func Which(v Value) Tag { return v.tag }

func NoneValue() Value { return Value{tag: None} }

func BoolValue(b bool) Value { return Value{tag: Bool, b: b} }

func IntValue(i int64) Value { return Value{tag: Int, i: i} }

func CountValue(u uint64) Value { return Value{tag: Count, u: u} }

func RealValue(f float64) Value { return Value{tag: Real, f: f} }

func DurationValue(d time.Duration) Value { return Value{tag: Duration, dur: d} }

func TimestampValue(t time.Time) Value { return Value{tag: Timestamp, ts: t.UTC()} }

func StringValue(s string) Value { return Value{tag: String, s: s} }

func AddressValue(a netip.Addr) Value { return Value{tag: Address, addr: a} }

func SubnetValue(p netip.Prefix) Value { return Value{tag: Subnet, subnet: p} }

func PortValue(p PortSpec) Value { return Value{tag: Port, port: p} }

// RecordValue constructs an ordered-field record value.
func RecordValue(fields ...Value) Value {
	return Value{tag: Record, elems: append([]Value(nil), fields...)}
}

// VectorValue constructs a homogeneous ordered sequence.
func VectorValue(elems ...Value) Value {
	return Value{tag: Vector, elems: append([]Value(nil), elems...)}
}

// SetValue constructs an order-insensitive, duplicate-free collection. The
// caller's slice is deduplicated and sorted by Compare so that two sets
// built from the same members, in any order, are structurally Equal.
func SetValue(elems ...Value) Value {
	uniq := append([]Value(nil), elems...)
	sort.Slice(uniq, func(i, j int) bool { return Compare(uniq[i], uniq[j]) < 0 })
	out := uniq[:0]
	for i, e := range uniq {
		if i == 0 || Compare(out[len(out)-1], e) != 0 {
			out = append(out, e)
		}
	}
	return Value{tag: Set, elems: out}
}

// TableValue constructs a mapping value from key/value pairs.
func TableValue(entries ...TableEntry) Value {
	return Value{tag: Table, table: append([]TableEntry(nil), entries...)}
}

// Getters. Each returns ok=false if v is not of the matching tag.

func AsBool(v Value) (bool, bool)             { return v.b, v.tag == Bool }
func AsInt(v Value) (int64, bool)             { return v.i, v.tag == Int }
func AsCount(v Value) (uint64, bool)          { return v.u, v.tag == Count }
func AsReal(v Value) (float64, bool)          { return v.f, v.tag == Real }
func AsDuration(v Value) (time.Duration, bool) { return v.dur, v.tag == Duration }
func AsTimestamp(v Value) (time.Time, bool)   { return v.ts, v.tag == Timestamp }
func AsString(v Value) (string, bool)         { return v.s, v.tag == String }
func AsAddress(v Value) (netip.Addr, bool)    { return v.addr, v.tag == Address }
func AsSubnet(v Value) (netip.Prefix, bool)   { return v.subnet, v.tag == Subnet }
func AsPort(v Value) (PortSpec, bool)         { return v.port, v.tag == Port }

// AsElems returns the ordered member slice of a record, vector, or set value.
func AsElems(v Value) ([]Value, bool) {
	switch v.tag {
	case Record, Vector, Set:
		return v.elems, true
	default:
		return nil, false
	}
}

func AsTable(v Value) ([]TableEntry, bool) { return v.table, v.tag == Table }

// Visitor dispatches on the active variant of a Value. Implementations
// exhaustively cover every tag; this plays the role the source's
// double-dispatch visitor base class plays over the AST (see package expr).
type Visitor interface {
	VisitNone()
	VisitBool(bool)
	VisitInt(int64)
	VisitCount(uint64)
	VisitReal(float64)
	VisitDuration(time.Duration)
	VisitTimestamp(time.Time)
	VisitString(string)
	VisitAddress(netip.Addr)
	VisitSubnet(netip.Prefix)
	VisitPort(PortSpec)
	VisitRecord([]Value)
	VisitVector([]Value)
	VisitSet([]Value)
	VisitTable([]TableEntry)
}

// Accept dispatches vis against v's active variant.
func Accept(v Value, vis Visitor) {
	switch v.tag {
	case None:
		vis.VisitNone()
	case Bool:
		vis.VisitBool(v.b)
	case Int:
		vis.VisitInt(v.i)
	case Count:
		vis.VisitCount(v.u)
	case Real:
		vis.VisitReal(v.f)
	case Duration:
		vis.VisitDuration(v.dur)
	case Timestamp:
		vis.VisitTimestamp(v.ts)
	case String:
		vis.VisitString(v.s)
	case Address:
		vis.VisitAddress(v.addr)
	case Subnet:
		vis.VisitSubnet(v.subnet)
	case Port:
		vis.VisitPort(v.port)
	case Record:
		vis.VisitRecord(v.elems)
	case Vector:
		vis.VisitVector(v.elems)
	case Set:
		vis.VisitSet(v.elems)
	case Table:
		vis.VisitTable(v.table)
	default:
		panic(fmt.Sprintf("value: unhandled tag %v in Accept", v.tag))
	}
}

// Equal reports structural equality: same tag, same payload, recursively
// for containers.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// Compare returns a total order over Value consistent first with the
// variant tag, then with the payload. Containers compare element-wise.
func Compare(a, b Value) int {
	if a.tag != b.tag {
		if a.tag < b.tag {
			return -1
		}
		return 1
	}
	switch a.tag {
	case None:
		return 0
	case Bool:
		return boolCompare(a.b, b.b)
	case Int:
		return int64Compare(a.i, b.i)
	case Count:
		return uint64Compare(a.u, b.u)
	case Real:
		return float64Compare(a.f, b.f)
	case Duration:
		return int64Compare(int64(a.dur), int64(b.dur))
	case Timestamp:
		return int64Compare(a.ts.UnixNano(), b.ts.UnixNano())
	case String:
		return stringCompare(a.s, b.s)
	case Address:
		return a.addr.Compare(b.addr)
	case Subnet:
		if c := a.subnet.Addr().Compare(b.subnet.Addr()); c != 0 {
			return c
		}
		return int64Compare(int64(a.subnet.Bits()), int64(b.subnet.Bits()))
	case Port:
		if c := int64Compare(int64(a.port.Number), int64(b.port.Number)); c != 0 {
			return c
		}
		return int64Compare(int64(a.port.Proto), int64(b.port.Proto))
	case Record, Vector, Set:
		return elemsCompare(a.elems, b.elems)
	case Table:
		return tableCompare(a.table, b.table)
	default:
		return 0
	}
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func int64Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func uint64Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func float64Compare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func stringCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func elemsCompare(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return int64Compare(int64(len(a)), int64(len(b)))
}

func tableCompare(a, b []TableEntry) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i].Key, b[i].Key); c != 0 {
			return c
		}
		if c := Compare(a[i].Val, b[i].Val); c != 0 {
			return c
		}
	}
	return int64Compare(int64(len(a)), int64(len(b)))
}

// String renders v in the textual form accepted by package expr's parser,
// so that constant folding and pretty-printing round-trip.
func (v Value) String() string {
	switch v.tag {
	case None:
		return "none"
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	case Int:
		return fmt.Sprintf("%+d", v.i)
	case Count:
		return fmt.Sprintf("%d", v.u)
	case Real:
		return fmt.Sprintf("%g", v.f)
	case Duration:
		return v.dur.String()
	case Timestamp:
		return v.ts.Format(time.RFC3339Nano)
	case String:
		return fmt.Sprintf("%q", v.s)
	case Address:
		return v.addr.String()
	case Subnet:
		return v.subnet.String()
	case Port:
		return v.port.String()
	case Record:
		return containerString("<", v.elems, ">")
	case Vector:
		return containerString("[", v.elems, "]")
	case Set:
		return containerString("{", v.elems, "}")
	case Table:
		s := "{"
		for i, e := range v.table {
			if i > 0 {
				s += ", "
			}
			s += e.Key.String() + " -> " + e.Val.String()
		}
		return s + "}"
	default:
		return "?"
	}
}

func containerString(open string, elems []Value, close string) string {
	s := open
	for i, e := range elems {
		if i > 0 {
			s += ", "
		}
		s += e.String()
	}
	return s + close
}
