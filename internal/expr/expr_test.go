package expr

import (
	"testing"

	"github.com/evidex/evidex/internal/value"
	"github.com/stretchr/testify/require"
)

func TestParsePredicateAndReprint(t *testing.T) {
	n, err := Parse("x.y.z == 42")
	require.NoError(t, err)

	pred, ok := n.(Predicate)
	require.True(t, ok)
	key, ok := pred.LHS.(KeyExtractor)
	require.True(t, ok)
	require.Equal(t, []string{"x", "y", "z"}, key.Path)
	require.Equal(t, Equal, pred.Op)
	c, ok := pred.RHS.(Constant)
	require.True(t, ok)
	u, _ := value.AsCount(c.Value)
	require.Equal(t, uint64(42), u)

	require.Equal(t, "x.y.z == 42", n.String())
}

func TestParseConjunctionWithTypeExtractor(t *testing.T) {
	n, err := Parse("x == 42 && :port == 53/udp")
	require.NoError(t, err)

	conj, ok := n.(Conjunction)
	require.True(t, ok)
	require.Len(t, conj.Exprs, 2)

	pred2, ok := conj.Exprs[1].(Predicate)
	require.True(t, ok)
	te, ok := pred2.LHS.(TypeExtractor)
	require.True(t, ok)
	require.Equal(t, value.Port, te.Type)

	c, ok := pred2.RHS.(Constant)
	require.True(t, ok)
	p, _ := value.AsPort(c.Value)
	require.Equal(t, uint16(53), p.Number)
	require.Equal(t, value.ProtoUDP, p.Proto)
}

func TestParseSubnetMembership(t *testing.T) {
	n, err := Parse("10.0.0.0/8 ni :addr")
	require.NoError(t, err)

	pred, ok := n.(Predicate)
	require.True(t, ok)
	c, ok := pred.LHS.(Constant)
	require.True(t, ok)
	require.Equal(t, value.Subnet, value.Which(c.Value))
	require.Equal(t, NotIn, pred.Op)
	te, ok := pred.RHS.(TypeExtractor)
	require.True(t, ok)
	require.Equal(t, value.Address, te.Type)
}

func TestParseUnknownTypeNameIsSyntaxError(t *testing.T) {
	_, err := Parse(":foo == -42")
	require.Error(t, err)
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
}

func TestNormalizeMovesConstantToRHS(t *testing.T) {
	n, err := Parse("10.0.0.0/8 ni :addr")
	require.NoError(t, err)

	norm := Normalize(n)
	pred, ok := norm.(Predicate)
	require.True(t, ok)
	_, lhsIsExtractor := pred.LHS.(TypeExtractor)
	require.True(t, lhsIsExtractor)
	require.Equal(t, In, pred.Op)
	rhsConst, ok := pred.RHS.(Constant)
	require.True(t, ok)
	require.Equal(t, value.Subnet, value.Which(rhsConst.Value))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n, err := Parse("x == 42 && :port == 53/udp")
	require.NoError(t, err)

	once := Normalize(n)
	twice := Normalize(once)
	require.Equal(t, once.String(), twice.String())
}

func TestNormalizeCollapsesSingleton(t *testing.T) {
	n := Conjunction{Exprs: []Node{Predicate{LHS: KeyExtractor{Path: []string{"x"}}, Op: Equal, RHS: Constant{Value: value.CountValue(1)}}}}
	got := Normalize(n)
	_, isConj := got.(Conjunction)
	require.False(t, isConj)
	_, isPred := got.(Predicate)
	require.True(t, isPred)
}

func TestValidateRejectsEmptyCombinator(t *testing.T) {
	err := Validate(Conjunction{})
	require.Error(t, err)
	var semErr *SemanticError
	require.ErrorAs(t, err, &semErr)
}

func TestValidateRejectsTypeMismatch(t *testing.T) {
	p := Predicate{LHS: TypeExtractor{Type: value.Port}, Op: Equal, RHS: Constant{Value: value.CountValue(1)}}
	err := Validate(p)
	require.Error(t, err)
}

func TestValidateAcceptsMembershipWithContainerRHS(t *testing.T) {
	p := Predicate{
		LHS: KeyExtractor{Path: []string{"x"}},
		Op:  In,
		RHS: Constant{Value: value.SetValue(value.CountValue(1), value.CountValue(2))},
	}
	require.NoError(t, Validate(p))
}

func TestValidateNormalizeAgree(t *testing.T) {
	n, err := Parse("10.0.0.0/8 ni :addr")
	require.NoError(t, err)
	require.NoError(t, Validate(n))
	require.NoError(t, Validate(Normalize(n)))
}
