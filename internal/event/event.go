// Package event defines the Event record and its Offset addressing scheme,
// the units that the meta and data indexes (package eventidx) key on.
package event

import (
	"time"

	"github.com/evidex/evidex/internal/value"
)

// Event is (id, name, timestamp, data). Id 0 is reserved and never denotes
// a real event; every bitmap index pre-fills position 0 with false.
// Attributes carries schema-level tags (e.g. a "sensitive" or "deprecated"
// marker on the event type itself, as opposed to a field on Data) that
// attribute_extractor reads; it is never indexed, only evaluated during
// full-scan revalidation.
type Event struct {
	ID         uint64
	Name       string
	Timestamp  time.Time
	Data       value.Value // always a Record value (or the zero Value for an empty record)
	Attributes map[string]value.Value
}

// Empty reports whether e carries no data fields, the boundary case where
// indexing an empty-record event must succeed without creating any bitmap.
func (e Event) Empty() bool {
	if value.Which(e.Data) != value.Record {
		return true
	}
	elems, _ := value.AsElems(e.Data)
	return len(elems) == 0
}
