package ingest

import (
	"fmt"
	"time"

	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/value"
)

// ExtractEvent converts one decoded telemetry Record into an event.Event
// using the schema registered under the record's name. Unlike the
// a fixed wire shape, the id is left zero: the pipeline's
// collector assigns it once the record's position in stream order is
// known, so ids stay monotonic with input order even though multiple
// workers extract records concurrently.
func ExtractEvent(rec Record, registry Registry) (event.Event, error) {
	schema, ok := registry[rec.Name]
	if !ok {
		return event.Event{}, fmt.Errorf("ingest: line %d: no schema registered for event %q", rec.Line, rec.Name)
	}

	ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		return event.Event{}, fmt.Errorf("ingest: line %d: bad timestamp %q: %w", rec.Line, rec.Timestamp, err)
	}

	e := event.Event{
		Name:      rec.Name,
		Timestamp: ts,
		Data:      schema.Extract(rec.Fields),
	}
	if len(rec.Attributes) > 0 {
		e.Attributes = make(map[string]value.Value, len(rec.Attributes))
		for name, raw := range rec.Attributes {
			e.Attributes[name] = inferValue(raw)
		}
	}
	return e, nil
}

// inferValue converts an untyped JSON scalar to a value.Value by its
// dynamic Go type. It is used only for schema-level attribute tags,
// which unlike a record's data fields carry no declared type — a
// looser JSON-shape-driven mapping is acceptable there since attributes
// are never bitmap-indexed, only read during full-scan evaluation.
func inferValue(raw interface{}) value.Value {
	switch v := raw.(type) {
	case bool:
		return value.BoolValue(v)
	case string:
		return value.StringValue(v)
	case float64:
		if v == float64(int64(v)) {
			return value.IntValue(int64(v))
		}
		return value.RealValue(v)
	default:
		return value.NoneValue()
	}
}

// LineStats tracks statistics about processed telemetry lines, the
// generic analogue of a per-ledger LedgerStats type.
type LineStats struct {
	TotalLines    int
	TotalEvents   int
	ExtractErrors int
}

// NewLineStats creates a new stats tracker.
func NewLineStats() *LineStats {
	return &LineStats{}
}
