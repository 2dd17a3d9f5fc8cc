package bitstream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetAppend(t *testing.T) {
	b := New(1)
	require.False(t, b.Get(0))
	b.Append(3, false)
	b.Set(3)
	require.Equal(t, uint64(4), b.Len())
	require.True(t, b.Get(3))
	require.False(t, b.Get(0))
}

func TestAndOrNot(t *testing.T) {
	a := New(0)
	a.Append(5, false)
	a.Set(1)
	a.Set(3)

	b := New(0)
	b.Append(5, false)
	b.Set(3)
	b.Set(4)

	and := And(a, b)
	require.Equal(t, []uint64{3}, and.Iterator())

	or := Or(a, b)
	require.Equal(t, []uint64{1, 3, 4}, or.Iterator())

	not := a.Not()
	require.Equal(t, []uint64{0, 2, 4}, not.Iterator())
}

func TestAndTakesShorterLength(t *testing.T) {
	a := New(0)
	a.Append(10, false)
	a.Set(7)
	b := New(0)
	b.Append(5, false)
	b.Set(3)

	got := And(a, b)
	require.Equal(t, uint64(5), got.Len())
}

func TestMarshalRoundTrip(t *testing.T) {
	a := New(0)
	a.Append(10, false)
	a.Set(2)
	a.Set(9)

	buf, err := a.MarshalBinary()
	require.NoError(t, err)

	var got Bitstream
	require.NoError(t, got.UnmarshalBinary(buf))
	require.Equal(t, a.Len(), got.Len())
	require.Equal(t, a.Iterator(), got.Iterator())
}

func TestNullBitstreamIsZeroCost(t *testing.T) {
	b := New(100)
	require.Equal(t, RepNull, b.Kind())
	require.True(t, b.Empty())
	require.Equal(t, uint64(100), b.Len())
}
