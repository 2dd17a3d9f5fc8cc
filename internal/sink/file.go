package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/value"
	"github.com/google/uuid"
)

// FileSink renders the sink protocol as newline-delimited JSON, the shape
// designed for an out-of-scope HTTP front end's `GET /?query=...`
// response body. Each line is one matched event; Done writes a final
// summary line and closes the file.
type FileSink struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// NewFile opens (creating or truncating) path for line-delimited JSON
// output.
func NewFile(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", path, err)
	}
	return &FileSink{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

func (s *FileSink) Create() error { return nil }

// eventJSON is the line-delimited record shape: id, name, timestamp,
// the data record's fields rendered positionally, and attributes.
type eventJSON struct {
	ID         uint64                 `json:"id"`
	Name       string                 `json:"name"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       []interface{}          `json:"data"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

func (s *FileSink) Push(e event.Event) error {
	fields, _ := value.AsElems(e.Data)
	data := make([]interface{}, len(fields))
	for i, f := range fields {
		data[i] = toJSON(f)
	}
	var attrs map[string]interface{}
	if len(e.Attributes) > 0 {
		attrs = make(map[string]interface{}, len(e.Attributes))
		for name, v := range e.Attributes {
			attrs[name] = toJSON(v)
		}
	}
	rec := eventJSON{ID: e.ID, Name: e.Name, Timestamp: e.Timestamp, Data: data, Attributes: attrs}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sink: marshal event %d: %w", e.ID, err)
	}
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("sink: write event %d: %w", e.ID, err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("sink: write event %d: %w", e.ID, err)
	}
	return nil
}

type summaryJSON struct {
	ID      uuid.UUID     `json:"id"`
	Done    bool          `json:"done"`
	Runtime time.Duration `json:"runtime_ns"`
}

func (s *FileSink) Done(id uuid.UUID, done bool, runtime time.Duration) error {
	b, err := json.Marshal(summaryJSON{ID: id, Done: done, Runtime: runtime})
	if err != nil {
		return fmt.Errorf("sink: marshal summary: %w", err)
	}
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("sink: write summary: %w", err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("sink: write summary: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("sink: flush %s: %w", s.path, err)
	}
	return s.f.Close()
}

// jsonVisitor converts a value.Value to a plain interface{} tree that
// encoding/json can render, using the Visitor double-dispatch package
// value already defines for this kind of exhaustive tag switch.
type jsonVisitor struct{ out interface{} }

func toJSON(v value.Value) interface{} {
	jv := &jsonVisitor{}
	value.Accept(v, jv)
	return jv.out
}

func (j *jsonVisitor) VisitNone()                { j.out = nil }
func (j *jsonVisitor) VisitBool(b bool)           { j.out = b }
func (j *jsonVisitor) VisitInt(i int64)           { j.out = i }
func (j *jsonVisitor) VisitCount(u uint64)        { j.out = u }
func (j *jsonVisitor) VisitReal(f float64)        { j.out = f }
func (j *jsonVisitor) VisitDuration(d time.Duration) { j.out = d.String() }
func (j *jsonVisitor) VisitTimestamp(t time.Time) { j.out = t.Format(time.RFC3339Nano) }
func (j *jsonVisitor) VisitString(s string)       { j.out = s }
func (j *jsonVisitor) VisitAddress(a netip.Addr)  { j.out = a.String() }
func (j *jsonVisitor) VisitSubnet(p netip.Prefix) { j.out = p.String() }
func (j *jsonVisitor) VisitPort(p value.PortSpec) { j.out = p.String() }
func (j *jsonVisitor) VisitRecord(elems []value.Value) { j.out = toJSONSlice(elems) }
func (j *jsonVisitor) VisitVector(elems []value.Value) { j.out = toJSONSlice(elems) }
func (j *jsonVisitor) VisitSet(elems []value.Value)    { j.out = toJSONSlice(elems) }
func (j *jsonVisitor) VisitTable(entries []value.TableEntry) {
	out := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		out[fmt.Sprint(toJSON(e.Key))] = toJSON(e.Val)
	}
	j.out = out
}

func toJSONSlice(elems []value.Value) []interface{} {
	out := make([]interface{}, len(elems))
	for i, e := range elems {
		out[i] = toJSON(e)
	}
	return out
}
