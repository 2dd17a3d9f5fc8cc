package eventidx

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkEvent(id uint64, name string, ts time.Time, fields ...value.Value) event.Event {
	return event.Event{ID: id, Name: name, Timestamp: ts, Data: value.RecordValue(fields...)}
}

func TestMetaIndexIndexAndLookup(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMetaIndex(dir)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Index(mkEvent(1, "dns_query", base)))
	require.NoError(t, m.Index(mkEvent(2, "tcp_flow", base.Add(time.Minute))))

	pred := expr.Predicate{LHS: expr.NameExtractor{}, Op: expr.Equal, RHS: expr.Constant{Value: value.StringValue("dns_query")}}
	result, ok := m.Lookup(pred)
	require.True(t, ok)
	assert.True(t, result.Get(1))
	assert.False(t, result.Get(2))
	assert.False(t, result.Get(0), "id 0 must always read false (I2)")
}

func TestMetaIndexSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMetaIndex(dir)
	require.NoError(t, err)

	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, m.Index(mkEvent(1, "alert", base)))
	require.NoError(t, m.Save())

	reloaded, err := NewMetaIndex(dir)
	require.NoError(t, err)
	require.NoError(t, reloaded.Scan())

	pred := expr.Predicate{LHS: expr.NameExtractor{}, Op: expr.Equal, RHS: expr.Constant{Value: value.StringValue("alert")}}
	require.NoError(t, reloaded.Load(pred))
	result, ok := reloaded.Lookup(pred)
	require.True(t, ok)
	assert.True(t, result.Get(1))
}

func TestDataIndexIndexAndLookupByOffset(t *testing.T) {
	dir := t.TempDir()
	d := NewDataIndex(dir)

	e1 := mkEvent(1, "flow", time.Now(), value.CountValue(80), value.StringValue("GET"))
	e2 := mkEvent(2, "flow", time.Now(), value.CountValue(443), value.StringValue("POST"))
	require.NoError(t, d.Index(e1))
	require.NoError(t, d.Index(e2))

	off, err := event.ParseOffset("0")
	require.NoError(t, err)
	pred := expr.Predicate{LHS: expr.OffsetExtractor{Offset: off}, Op: expr.Equal, RHS: expr.Constant{Value: value.CountValue(80)}}
	result, ok := d.Lookup(pred)
	require.True(t, ok)
	assert.True(t, result.Get(1))
	assert.False(t, result.Get(2))
}

func TestDataIndexLookupByType(t *testing.T) {
	dir := t.TempDir()
	d := NewDataIndex(dir)

	e1 := mkEvent(1, "flow", time.Now(), value.CountValue(80), value.StringValue("GET"))
	require.NoError(t, d.Index(e1))

	pred := expr.Predicate{LHS: expr.TypeExtractor{Type: value.String}, Op: expr.Equal, RHS: expr.Constant{Value: value.StringValue("GET")}}
	result, ok := d.Lookup(pred)
	require.True(t, ok)
	assert.True(t, result.Get(1))
}

func TestDataIndexNestedRecord(t *testing.T) {
	dir := t.TempDir()
	d := NewDataIndex(dir)

	inner := value.RecordValue(value.CountValue(53))
	e := mkEvent(1, "dns", time.Now(), value.StringValue("example.com"), inner)
	require.NoError(t, d.Index(e))

	off, err := event.ParseOffset("1,0")
	require.NoError(t, err)
	pred := expr.Predicate{LHS: expr.OffsetExtractor{Offset: off}, Op: expr.Equal, RHS: expr.Constant{Value: value.CountValue(53)}}
	result, ok := d.Lookup(pred)
	require.True(t, ok)
	assert.True(t, result.Get(1))
}

func TestDataIndexEmptyRecordIsNoop(t *testing.T) {
	dir := t.TempDir()
	d := NewDataIndex(dir)
	e := event.Event{ID: 1, Name: "empty", Timestamp: time.Now(), Data: value.RecordValue()}
	require.NoError(t, d.Index(e))
	assert.Empty(t, d.offsets)
}

func TestDataIndexSaveAndScan(t *testing.T) {
	dir := t.TempDir()
	d := NewDataIndex(dir)
	e := mkEvent(1, "flow", time.Now(), value.CountValue(80))
	require.NoError(t, d.Index(e))
	require.NoError(t, d.Save())

	entries := filepath.Join(dir, "@0.idx")
	_, err := filepath.Abs(entries)
	require.NoError(t, err)

	reloaded := NewDataIndex(dir)
	require.NoError(t, reloaded.Scan())
	off, err := event.ParseOffset("0")
	require.NoError(t, err)
	pred := expr.Predicate{LHS: expr.OffsetExtractor{Offset: off}, Op: expr.Equal, RHS: expr.Constant{Value: value.CountValue(80)}}
	require.NoError(t, reloaded.Load(pred))
	result, ok := reloaded.Lookup(pred)
	require.True(t, ok)
	assert.True(t, result.Get(1))
}
