package ingest

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/evidex/evidex/internal/value"
)

// Field describes one ordered, named, typed member of a record schema.
// Field order becomes the positional depth-first offset the meta/data
// indexes and the query evaluator's offset extractor address by (see
// package query's resolveKeyPath and event.Offset): schema-driven
// extraction is what lets a JSON telemetry record, which carries no
// wire-level field order of its own, become an ordered record value.
type Field struct {
	Name     string `toml:"name"`
	TypeName string `toml:"type"` // one of: bool, int, count, real, duration, timestamp, string, address, subnet, port
}

// Schema names one telemetry record shape: the event name it applies to
// and its ordered field list. It is the generic analogue of the fixed,
// compiled-in shape a fixed-schema event extractor would work against.
type Schema struct {
	Name   string  `toml:"name"`
	Fields []Field `toml:"fields"`
}

var typeNames = map[string]value.Tag{
	"bool":      value.Bool,
	"int":       value.Int,
	"count":     value.Count,
	"real":      value.Real,
	"duration":  value.Duration,
	"timestamp": value.Timestamp,
	"string":    value.String,
	"address":   value.Address,
	"subnet":    value.Subnet,
	"port":      value.Port,
}

// LoadSchemas reads every *.toml file in dir as a Schema and returns them
// keyed by name in a Registry.
func LoadSchemas(dir string) (Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read schema dir %s: %w", dir, err)
	}
	var schemas []Schema
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		var s Schema
		if _, err := toml.DecodeFile(path, &s); err != nil {
			return nil, fmt.Errorf("ingest: decode schema %s: %w", path, err)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("ingest: schema %s has no name", path)
		}
		for _, f := range s.Fields {
			if _, ok := typeNames[f.TypeName]; !ok {
				return nil, fmt.Errorf("ingest: schema %s: field %s has unknown type %q", path, f.Name, f.TypeName)
			}
		}
		schemas = append(schemas, s)
	}
	return NewRegistry(schemas...), nil
}

// Registry maps an event name to the schema used to extract its data
// record, supporting a telemetry stream that carries more than one
// record shape (e.g. "dns_query" next to "tcp_flow").
type Registry map[string]Schema

// NewRegistry builds a Registry from a list of schemas, keyed by name.
func NewRegistry(schemas ...Schema) Registry {
	r := make(Registry, len(schemas))
	for _, s := range schemas {
		r[s.Name] = s
	}
	return r
}

// Extract converts a raw decoded JSON object into a Record value
// following the schema's field order. A field missing from the object,
// or one whose JSON value cannot be coerced to its declared type,
// becomes value.NoneValue() rather than an extraction error — per the
// empty-record boundary case, an event must still index successfully
// even when some of its fields are absent or malformed.
func (s Schema) Extract(obj map[string]interface{}) value.Value {
	fields := make([]value.Value, len(s.Fields))
	for i, f := range s.Fields {
		raw, ok := obj[f.Name]
		if !ok {
			fields[i] = value.NoneValue()
			continue
		}
		v, ok := coerce(raw, typeNames[f.TypeName])
		if !ok {
			fields[i] = value.NoneValue()
			continue
		}
		fields[i] = v
	}
	return value.RecordValue(fields...)
}

func coerce(raw interface{}, tag value.Tag) (value.Value, bool) {
	switch tag {
	case value.Bool:
		b, ok := raw.(bool)
		return value.BoolValue(b), ok
	case value.Int:
		n, ok := raw.(float64)
		return value.IntValue(int64(n)), ok
	case value.Count:
		n, ok := raw.(float64)
		if !ok || n < 0 {
			return value.Value{}, false
		}
		return value.CountValue(uint64(n)), true
	case value.Real:
		n, ok := raw.(float64)
		return value.RealValue(n), ok
	case value.Duration:
		switch v := raw.(type) {
		case string:
			d, err := time.ParseDuration(v)
			return value.DurationValue(d), err == nil
		case float64:
			return value.DurationValue(time.Duration(int64(v))), true
		default:
			return value.Value{}, false
		}
	case value.Timestamp:
		switch v := raw.(type) {
		case string:
			t, err := time.Parse(time.RFC3339Nano, v)
			return value.TimestampValue(t), err == nil
		case float64:
			return value.TimestampValue(time.Unix(0, int64(v)).UTC()), true
		default:
			return value.Value{}, false
		}
	case value.String:
		s, ok := raw.(string)
		return value.StringValue(s), ok
	case value.Address:
		s, ok := raw.(string)
		if !ok {
			return value.Value{}, false
		}
		a, err := netip.ParseAddr(s)
		return value.AddressValue(a), err == nil
	case value.Subnet:
		s, ok := raw.(string)
		if !ok {
			return value.Value{}, false
		}
		p, err := netip.ParsePrefix(s)
		return value.SubnetValue(p), err == nil
	case value.Port:
		s, ok := raw.(string)
		if !ok {
			return value.Value{}, false
		}
		return parsePort(s)
	default:
		// Record/Vector/Set/Table fields are not extracted from a flat
		// JSON telemetry record in this iteration; see container-value
		// indexing open question.
		return value.Value{}, false
	}
}

func parsePort(s string) (value.Value, bool) {
	numStr, proto, found := strings.Cut(s, "/")
	n, err := strconv.ParseUint(numStr, 10, 16)
	if err != nil {
		return value.Value{}, false
	}
	p := value.PortSpec{Number: uint16(n)}
	if found {
		switch proto {
		case "tcp":
			p.Proto = value.ProtoTCP
		case "udp":
			p.Proto = value.ProtoUDP
		case "icmp":
			p.Proto = value.ProtoICMP
		default:
			p.Proto = value.ProtoUnknown
		}
	}
	return value.PortValue(p), true
}
