package ingest

import (
	"testing"

	"github.com/evidex/evidex/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEventUsesRegisteredSchema(t *testing.T) {
	registry := NewRegistry(Schema{
		Name:   "dns_query",
		Fields: []Field{{Name: "query", TypeName: "string"}},
	})
	rec := Record{
		Line:      1,
		Name:      "dns_query",
		Timestamp: "2026-01-02T03:04:05Z",
		Fields:    map[string]interface{}{"query": "example.com"},
		Attributes: map[string]interface{}{"sensitive": true},
	}

	e, err := ExtractEvent(rec, registry)
	require.NoError(t, err)
	assert.Equal(t, "dns_query", e.Name)
	elems, _ := value.AsElems(e.Data)
	require.Len(t, elems, 1)
	s, _ := value.AsString(elems[0])
	assert.Equal(t, "example.com", s)

	sensitive, ok := value.AsBool(e.Attributes["sensitive"])
	require.True(t, ok)
	assert.True(t, sensitive)
}

func TestExtractEventUnknownNameErrors(t *testing.T) {
	registry := NewRegistry()
	_, err := ExtractEvent(Record{Line: 3, Name: "unknown"}, registry)
	assert.Error(t, err)
}

func TestExtractEventBadTimestampErrors(t *testing.T) {
	registry := NewRegistry(Schema{Name: "t"})
	_, err := ExtractEvent(Record{Line: 2, Name: "t", Timestamp: "not-a-time"}, registry)
	assert.Error(t, err)
}
