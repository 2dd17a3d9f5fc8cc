package query

import (
	"testing"
	"time"

	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkEvent(name string, fields ...value.Value) event.Event {
	return event.Event{ID: 1, Name: name, Timestamp: time.Now(), Data: value.RecordValue(fields...)}
}

func TestCompilePredicateOffsetExtractor(t *testing.T) {
	off, err := event.ParseOffset("0")
	require.NoError(t, err)
	ast := expr.Predicate{LHS: expr.OffsetExtractor{Offset: off}, Op: expr.Equal, RHS: expr.Constant{Value: value.CountValue(42)}}

	ev, err := Compile(ast)
	require.NoError(t, err)

	assert.True(t, ev.Eval(mkEvent("t", value.CountValue(42))))
	assert.False(t, ev.Eval(mkEvent("t", value.CountValue(7))))
}

func TestCompilePredicateConstantOnLHS(t *testing.T) {
	ast := expr.Predicate{LHS: expr.Constant{Value: value.CountValue(10)}, Op: expr.Less, RHS: expr.NameExtractor{}}
	// Constant on LHS, extractor (name) on RHS is nonsensical for a string
	// name, but the compiler must still commute without panicking; this
	// predicate simply never matches since the types differ.
	ev, err := Compile(ast)
	require.NoError(t, err)
	assert.False(t, ev.Eval(mkEvent("t")))
}

func TestCompileNameExtractor(t *testing.T) {
	ast := expr.Predicate{LHS: expr.NameExtractor{}, Op: expr.Equal, RHS: expr.Constant{Value: value.StringValue("dns_query")}}
	ev, err := Compile(ast)
	require.NoError(t, err)
	assert.True(t, ev.Eval(mkEvent("dns_query")))
	assert.False(t, ev.Eval(mkEvent("tcp_flow")))
}

func TestCompileConjunction(t *testing.T) {
	off, _ := event.ParseOffset("0")
	p1 := expr.Predicate{LHS: expr.OffsetExtractor{Offset: off}, Op: expr.Equal, RHS: expr.Constant{Value: value.CountValue(80)}}
	p2 := expr.Predicate{LHS: expr.NameExtractor{}, Op: expr.Equal, RHS: expr.Constant{Value: value.StringValue("flow")}}
	ast := expr.Conjunction{Exprs: []expr.Node{p1, p2}}

	ev, err := Compile(ast)
	require.NoError(t, err)
	assert.True(t, ev.Eval(mkEvent("flow", value.CountValue(80))))
	assert.False(t, ev.Eval(mkEvent("flow", value.CountValue(443))))
	assert.False(t, ev.Eval(mkEvent("other", value.CountValue(80))))
}

func TestCompileDisjunction(t *testing.T) {
	off, _ := event.ParseOffset("0")
	p1 := expr.Predicate{LHS: expr.OffsetExtractor{Offset: off}, Op: expr.Equal, RHS: expr.Constant{Value: value.CountValue(80)}}
	p2 := expr.Predicate{LHS: expr.OffsetExtractor{Offset: off}, Op: expr.Equal, RHS: expr.Constant{Value: value.CountValue(443)}}
	ast := expr.Disjunction{Exprs: []expr.Node{p1, p2}}

	ev, err := Compile(ast)
	require.NoError(t, err)
	assert.True(t, ev.Eval(mkEvent("flow", value.CountValue(80))))
	assert.True(t, ev.Eval(mkEvent("flow", value.CountValue(443))))
	assert.False(t, ev.Eval(mkEvent("flow", value.CountValue(22))))
}

func TestCompileNegation(t *testing.T) {
	ast := expr.Negation{Expr: expr.Predicate{LHS: expr.NameExtractor{}, Op: expr.Equal, RHS: expr.Constant{Value: value.StringValue("dns_query")}}}
	ev, err := Compile(ast)
	require.NoError(t, err)
	assert.False(t, ev.Eval(mkEvent("dns_query")))
	assert.True(t, ev.Eval(mkEvent("tcp_flow")))
}

func TestCompileTypeExtractorExistential(t *testing.T) {
	ast := expr.Predicate{LHS: expr.TypeExtractor{Type: value.String}, Op: expr.Equal, RHS: expr.Constant{Value: value.StringValue("GET")}}
	ev, err := Compile(ast)
	require.NoError(t, err)
	assert.True(t, ev.Eval(mkEvent("flow", value.CountValue(80), value.StringValue("GET"))))
	assert.False(t, ev.Eval(mkEvent("flow", value.CountValue(80), value.StringValue("POST"))))
}

func TestCompileTypeExtractorDescendsIntoNestedRecord(t *testing.T) {
	ast := expr.Predicate{LHS: expr.TypeExtractor{Type: value.Count}, Op: expr.Equal, RHS: expr.Constant{Value: value.CountValue(53)}}
	ev, err := Compile(ast)
	require.NoError(t, err)

	inner := value.RecordValue(value.CountValue(53))
	assert.True(t, ev.Eval(mkEvent("dns", value.StringValue("example.com"), inner)))
}

func TestCompileAbsentFieldYieldsFalse(t *testing.T) {
	off, _ := event.ParseOffset("5")
	ast := expr.Predicate{LHS: expr.OffsetExtractor{Offset: off}, Op: expr.Equal, RHS: expr.Constant{Value: value.CountValue(1)}}
	ev, err := Compile(ast)
	require.NoError(t, err)
	assert.False(t, ev.Eval(mkEvent("t", value.CountValue(1))))
}

func TestCompileAttributeExtractor(t *testing.T) {
	ast := expr.Predicate{LHS: expr.AttributeExtractor{Name: "sensitive"}, Op: expr.Equal, RHS: expr.Constant{Value: value.BoolValue(true)}}
	ev, err := Compile(ast)
	require.NoError(t, err)

	e := mkEvent("t")
	e.Attributes = map[string]value.Value{"sensitive": value.BoolValue(true)}
	assert.True(t, ev.Eval(e))

	assert.False(t, ev.Eval(mkEvent("t")))
}

func TestCompileRejectsTwoExtractors(t *testing.T) {
	ast := expr.Predicate{LHS: expr.NameExtractor{}, Op: expr.Equal, RHS: expr.TimestampExtractor{}}
	_, err := Compile(ast)
	require.Error(t, err)
}
