package actor

import (
	"testing"
	"time"

	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
	"github.com/stretchr/testify/require"
)

func mkEvent(id uint64, name string, fields ...value.Value) event.Event {
	return event.Event{ID: id, Name: name, Timestamp: time.Now(), Data: value.RecordValue(fields...)}
}

func namePredicate(name string) expr.Predicate {
	return expr.Predicate{LHS: expr.NameExtractor{}, Op: expr.Equal, RHS: expr.Constant{Value: value.StringValue(name)}}
}

func offsetPredicate(t *testing.T, path string, v value.Value) expr.Predicate {
	off, err := event.ParseOffset(path)
	require.NoError(t, err)
	return expr.Predicate{LHS: expr.OffsetExtractor{Offset: off}, Op: expr.Equal, RHS: expr.Constant{Value: v}}
}

func TestIndexPairIndexAndLookupByName(t *testing.T) {
	dir := t.TempDir()
	p, err := NewIndexPair(dir)
	require.NoError(t, err)
	defer p.Shutdown()

	require.NoError(t, p.Index(mkEvent(1, "dns_query", value.StringValue("a.com"))))
	require.NoError(t, p.Index(mkEvent(2, "tcp_flow", value.CountValue(443))))

	result, ok := p.Lookup(namePredicate("dns_query"))
	require.True(t, ok)
	require.True(t, result.Get(1))
	require.False(t, result.Get(2))
}

func TestIndexPairConjunctionAcrossMetaAndData(t *testing.T) {
	dir := t.TempDir()
	p, err := NewIndexPair(dir)
	require.NoError(t, err)
	defer p.Shutdown()

	require.NoError(t, p.Index(mkEvent(1, "dns_query", value.CountValue(53))))
	require.NoError(t, p.Index(mkEvent(2, "dns_query", value.CountValue(80))))

	ast := expr.Conjunction{Exprs: []expr.Node{
		namePredicate("dns_query"),
		offsetPredicate(t, "0", value.CountValue(53)),
	}}

	result, ok := p.Lookup(ast)
	require.True(t, ok)
	require.True(t, result.Get(1))
	require.False(t, result.Get(2))
}

func TestIndexPairLookupUnsupportedFallsBack(t *testing.T) {
	dir := t.TempDir()
	p, err := NewIndexPair(dir)
	require.NoError(t, err)
	defer p.Shutdown()

	require.NoError(t, p.Index(mkEvent(1, "dns_query", value.CountValue(53))))

	// A predicate over an offset that was never indexed reports not-found,
	// signalling the caller to fall back to full-scan revalidation.
	off, err := event.ParseOffset("9")
	require.NoError(t, err)
	pred := expr.Predicate{LHS: expr.OffsetExtractor{Offset: off}, Op: expr.Equal, RHS: expr.Constant{Value: value.CountValue(1)}}

	_, ok := p.Lookup(pred)
	require.False(t, ok)
}

func TestIndexPairSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	p, err := NewIndexPair(dir)
	require.NoError(t, err)

	require.NoError(t, p.Index(mkEvent(1, "alert", value.StringValue("high"))))
	require.NoError(t, p.Save())
	p.Shutdown()

	reloaded, err := NewIndexPair(dir)
	require.NoError(t, err)
	defer reloaded.Shutdown()
	require.NoError(t, reloaded.Scan())

	pred := namePredicate("alert")
	require.NoError(t, reloaded.LoadAST(pred))
	result, ok := reloaded.Lookup(pred)
	require.True(t, ok)
	require.True(t, result.Get(1))
}
