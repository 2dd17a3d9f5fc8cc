// Package expr implements the query expression AST: extractors, constants,
// predicates, and boolean combinators, together with a hand-written
// recursive-descent parser and the validator that applies the five
// normalization rules before an AST is handed to the event indexes
// (package eventidx) or the query evaluator (package query).
package expr

import (
	"strings"

	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/value"
)

// Node is any AST node. The double-dispatch visitor base class of the
// source collapses, in Go, to a closed set of concrete node types plus an
// exhaustive type switch at each traversal site (see Normalize, and
// package eventidx's loader/querier dispatch).
type Node interface {
	Node()
	String() string
}

// Extractor is the sub-interface of Node implemented by every extractor
// variant, letting callers that only care "is this side an extractor"
// narrow without a type switch over all seven variants.
type Extractor interface {
	Node
	extractor()
}

// NameExtractor pulls an event's interned schema name.
type NameExtractor struct{}

func (NameExtractor) Node()        {}
func (NameExtractor) extractor()   {}
func (NameExtractor) String() string { return "name" }

// TimestampExtractor pulls an event's timestamp.
type TimestampExtractor struct{}

func (TimestampExtractor) Node()          {}
func (TimestampExtractor) extractor()     {}
func (TimestampExtractor) String() string { return "time" }

// IDExtractor pulls an event's id.
type IDExtractor struct{}

func (IDExtractor) Node()          {}
func (IDExtractor) extractor()     {}
func (IDExtractor) String() string { return "id" }

// KeyExtractor pulls a named field reached by a dotted path, e.g. "x.y.z".
type KeyExtractor struct {
	Path []string
}

func (KeyExtractor) Node()      {}
func (KeyExtractor) extractor() {}
func (k KeyExtractor) String() string { return strings.Join(k.Path, ".") }

// TypeExtractor matches every field in an event whose runtime type is T,
// written ":type" in the surface syntax (e.g. ":port", ":addr").
type TypeExtractor struct {
	Type value.Tag
}

func (TypeExtractor) Node()      {}
func (TypeExtractor) extractor() {}
func (t TypeExtractor) String() string { return ":" + typeExtractorName(t.Type) }

// OffsetExtractor pulls the field at a specific record offset, written
// "@0,3,1" in the surface syntax.
type OffsetExtractor struct {
	Offset event.Offset
}

func (OffsetExtractor) Node()      {}
func (OffsetExtractor) extractor() {}
func (o OffsetExtractor) String() string { return "@" + o.Offset.String() }

// AttributeExtractor pulls a named, schema-level attribute (e.g. a tag set
// on the event type itself rather than on a specific field).
type AttributeExtractor struct {
	Name string
}

func (AttributeExtractor) Node()      {}
func (AttributeExtractor) extractor() {}
func (a AttributeExtractor) String() string { return "#" + a.Name }

// Constant wraps a literal value operand.
type Constant struct {
	Value value.Value
}

func (Constant) Node()          {}
func (c Constant) String() string { return c.Value.String() }

// IsConstant reports whether n is a Constant node.
func IsConstant(n Node) bool { _, ok := n.(Constant); return ok }

// IsExtractor reports whether n is any extractor variant.
func IsExtractor(n Node) bool { _, ok := n.(Extractor); return ok }

// Predicate binds an operator between two operands, each either an
// extractor or a constant. The validator accepts two constants or two
// extractors; query.Compile reports those shapes as a TypeMismatchError.
type Predicate struct {
	LHS Node
	Op  Op
	RHS Node
}

func (Predicate) Node() {}
func (p Predicate) String() string {
	return p.LHS.String() + " " + p.Op.String() + " " + p.RHS.String()
}

// Negation logically inverts its operand.
type Negation struct {
	Expr Node
}

func (Negation) Node()          {}
func (n Negation) String() string { return "!(" + n.Expr.String() + ")" }

// Conjunction is the logical AND of two or more operands (after
// normalization, never zero or one — see normalization rule 5).
type Conjunction struct {
	Exprs []Node
}

func (Conjunction) Node() {}
func (c Conjunction) String() string {
	return joinNodes(c.Exprs, " && ")
}

// Disjunction is the logical OR of two or more operands.
type Disjunction struct {
	Exprs []Node
}

func (Disjunction) Node() {}
func (d Disjunction) String() string {
	return joinNodes(d.Exprs, " || ")
}

func joinNodes(nodes []Node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}

func typeExtractorName(t value.Tag) string {
	switch t {
	case value.Bool:
		return "bool"
	case value.Int:
		return "int"
	case value.Count:
		return "count"
	case value.Real:
		return "real"
	case value.Duration:
		return "duration"
	case value.Timestamp:
		return "time"
	case value.String:
		return "string"
	case value.Address:
		return "addr"
	case value.Subnet:
		return "subnet"
	case value.Port:
		return "port"
	case value.Record:
		return "record"
	case value.Vector:
		return "vector"
	case value.Set:
		return "set"
	case value.Table:
		return "table"
	default:
		return "none"
	}
}
