package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOffsetStringRoundTrip(t *testing.T) {
	o := Offset{0, 3, 1}
	require.Equal(t, "0,3,1", o.String())

	parsed, err := ParseOffset(o.String())
	require.NoError(t, err)
	require.True(t, o.Equal(parsed))
}

func TestParseOffsetEmptyString(t *testing.T) {
	o, err := ParseOffset("")
	require.NoError(t, err)
	require.Equal(t, Offset{}, o)
}

func TestParseOffsetRejectsNegativeAndNonNumeric(t *testing.T) {
	_, err := ParseOffset("0,-1")
	require.Error(t, err)

	_, err = ParseOffset("0,x")
	require.Error(t, err)
}

func TestOffsetLess(t *testing.T) {
	require.True(t, Offset{0, 1}.Less(Offset{0, 2}))
	require.True(t, Offset{0}.Less(Offset{0, 0}))
	require.False(t, Offset{1}.Less(Offset{0, 9}))
}

func TestOffsetChild(t *testing.T) {
	o := Offset{0, 1}
	child := o.Child(2)
	require.Equal(t, Offset{0, 1, 2}, child)
	require.Equal(t, Offset{0, 1}, o, "Child must not mutate the receiver")
}
