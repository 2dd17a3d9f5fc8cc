package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/evidex/evidex/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaExtractOrdersFieldsPositionally(t *testing.T) {
	s := Schema{
		Name: "dns_query",
		Fields: []Field{
			{Name: "query", TypeName: "string"},
			{Name: "qtype", TypeName: "count"},
		},
	}
	rec := s.Extract(map[string]interface{}{"query": "example.com", "qtype": float64(53)})
	elems, ok := value.AsElems(rec)
	require.True(t, ok)
	require.Len(t, elems, 2)

	s0, ok := value.AsString(elems[0])
	require.True(t, ok)
	assert.Equal(t, "example.com", s0)

	c1, ok := value.AsCount(elems[1])
	require.True(t, ok)
	assert.Equal(t, uint64(53), c1)
}

func TestSchemaExtractMissingFieldYieldsNone(t *testing.T) {
	s := Schema{Name: "t", Fields: []Field{{Name: "absent", TypeName: "string"}}}
	rec := s.Extract(map[string]interface{}{})
	elems, _ := value.AsElems(rec)
	require.Len(t, elems, 1)
	assert.Equal(t, value.None, value.Which(elems[0]))
}

func TestSchemaExtractTypeMismatchYieldsNone(t *testing.T) {
	s := Schema{Name: "t", Fields: []Field{{Name: "n", TypeName: "count"}}}
	rec := s.Extract(map[string]interface{}{"n": "not-a-number"})
	elems, _ := value.AsElems(rec)
	assert.Equal(t, value.None, value.Which(elems[0]))
}

func TestParsePort(t *testing.T) {
	v, ok := parsePort("53/udp")
	require.True(t, ok)
	p, ok := value.AsPort(v)
	require.True(t, ok)
	assert.Equal(t, uint16(53), p.Number)
	assert.Equal(t, value.ProtoUDP, p.Proto)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(Schema{Name: "a"}, Schema{Name: "b"})
	assert.Len(t, r, 2)
	_, ok := r["a"]
	assert.True(t, ok)
}

func TestLoadSchemasReadsTOMLFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dns_query.toml"), []byte(`
name = "dns_query"

[[fields]]
name = "query"
type = "string"

[[fields]]
name = "qtype"
type = "count"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	registry, err := LoadSchemas(dir)
	require.NoError(t, err)
	require.Len(t, registry, 1)

	s, ok := registry["dns_query"]
	require.True(t, ok)
	require.Len(t, s.Fields, 2)
	assert.Equal(t, "query", s.Fields[0].Name)
	assert.Equal(t, "string", s.Fields[0].TypeName)
}

func TestLoadSchemasRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.toml"), []byte(`
name = "bad"

[[fields]]
name = "x"
type = "not-a-real-type"
`), 0o644))

	_, err := LoadSchemas(dir)
	assert.Error(t, err)
}
