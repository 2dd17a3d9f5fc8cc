package value

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWhichAndGetters(t *testing.T) {
	v := CountValue(42)
	require.Equal(t, Count, Which(v))
	u, ok := AsCount(v)
	require.True(t, ok)
	require.Equal(t, uint64(42), u)

	_, ok = AsInt(v)
	require.False(t, ok)
}

func TestEqualAndCompare(t *testing.T) {
	a := RecordValue(CountValue(1), StringValue("ok"))
	b := RecordValue(CountValue(1), StringValue("ok"))
	c := RecordValue(CountValue(2), StringValue("ok"))

	require.True(t, Equal(a, b))
	require.False(t, Equal(a, c))
	require.Less(t, Compare(a, c), 0)
}

func TestSetValueDeduplicatesAndOrders(t *testing.T) {
	s := SetValue(CountValue(3), CountValue(1), CountValue(1), CountValue(2))
	elems, ok := AsElems(s)
	require.True(t, ok)
	require.Len(t, elems, 3)
	for i, want := range []uint64{1, 2, 3} {
		got, _ := AsCount(elems[i])
		require.Equal(t, want, got)
	}
}

func TestIsContainer(t *testing.T) {
	require.True(t, IsContainer(Record))
	require.True(t, IsContainer(Vector))
	require.True(t, IsContainer(Set))
	require.True(t, IsContainer(Table))
	require.False(t, IsContainer(Count))
	require.False(t, IsContainer(String))
}

func TestVisitorDispatch(t *testing.T) {
	var got Tag = None
	v := PortValue(PortSpec{Number: 53, Proto: ProtoUDP})
	Accept(v, &recordingVisitor{onPort: func(PortSpec) { got = Port }})
	require.Equal(t, Port, got)
}

type recordingVisitor struct {
	onPort func(PortSpec)
}

func (r *recordingVisitor) VisitNone()                 {}
func (r *recordingVisitor) VisitBool(bool)              {}
func (r *recordingVisitor) VisitInt(int64)              {}
func (r *recordingVisitor) VisitCount(uint64)           {}
func (r *recordingVisitor) VisitReal(float64)           {}
func (r *recordingVisitor) VisitDuration(time.Duration) {}
func (r *recordingVisitor) VisitTimestamp(time.Time)    {}
func (r *recordingVisitor) VisitString(string)          {}
func (r *recordingVisitor) VisitAddress(netip.Addr)     {}
func (r *recordingVisitor) VisitSubnet(netip.Prefix)    {}
func (r *recordingVisitor) VisitPort(p PortSpec)        { r.onPort(p) }
func (r *recordingVisitor) VisitRecord([]Value)         {}
func (r *recordingVisitor) VisitVector([]Value)         {}
func (r *recordingVisitor) VisitSet([]Value)            {}
func (r *recordingVisitor) VisitTable([]TableEntry)     {}

func TestCodecRoundTrip(t *testing.T) {
	addr := netip.MustParseAddr("192.168.1.1")
	subnet := netip.MustParsePrefix("10.0.0.0/8")
	ts := time.Unix(1_700_000_000, 123).UTC()

	values := []Value{
		NoneValue(),
		BoolValue(true),
		IntValue(-42),
		CountValue(42),
		RealValue(3.5),
		DurationValue(5 * time.Second),
		TimestampValue(ts),
		StringValue("hello"),
		AddressValue(addr),
		SubnetValue(subnet),
		PortValue(PortSpec{Number: 65535, Proto: ProtoTCP}),
		RecordValue(CountValue(1), StringValue("ok")),
		VectorValue(CountValue(1), CountValue(2)),
		SetValue(CountValue(2), CountValue(1)),
		TableValue(TableEntry{Key: StringValue("k"), Val: CountValue(1)}),
	}

	for _, v := range values {
		buf := Encode(nil, v)
		got, n, err := Decode(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.True(t, Equal(v, got), "round trip mismatch for %v", v)
	}
}

func TestTypeOf(t *testing.T) {
	v := RecordValue(CountValue(1), VectorValue(StringValue("a")))
	ty := TypeOf(v)
	require.Equal(t, Record, ty.Kind)
	require.Len(t, ty.Fields, 2)
	require.Equal(t, Count, ty.Fields[0].Type.Kind)
	require.Equal(t, Vector, ty.Fields[1].Type.Kind)
	require.True(t, TypeEqual(ty, ty))
}
