// Package query implements the compiled expression evaluator (bottom-up
// closure over an event) and the actor-style query protocol that drives
// index-backed prefiltering followed by full-scan revalidation, grounded
// on the Query actor's storage-agnostic evaluator (internal/query/engine.go)
// and its index-lookup-then-fetch two-phase shape.
package query

import (
	"fmt"
	"strconv"

	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
)

// Evaluator is a compiled expression: a boolean closure over an event plus
// the source AST it was compiled from, kept for diagnostics.
type Evaluator struct {
	root expr.Node
	eval func(event.Event) bool
}

// Compile walks ast bottom-up and produces an Evaluator. ast is expected
// to already have passed expr.Validate.
func Compile(ast expr.Node) (*Evaluator, error) {
	fn, err := compileNode(ast)
	if err != nil {
		return nil, err
	}
	return &Evaluator{root: ast, eval: fn}, nil
}

// Eval reports whether e matches the compiled expression.
func (c *Evaluator) Eval(e event.Event) bool { return c.eval(e) }

func (c *Evaluator) String() string { return c.root.String() }

func compileNode(n expr.Node) (func(event.Event) bool, error) {
	switch t := n.(type) {
	case expr.Predicate:
		return compilePredicate(t)
	case expr.Negation:
		inner, err := compileNode(t.Expr)
		if err != nil {
			return nil, err
		}
		return func(e event.Event) bool { return !inner(e) }, nil
	case expr.Conjunction:
		fns, err := compileAll(t.Exprs)
		if err != nil {
			return nil, err
		}
		return func(e event.Event) bool {
			for _, fn := range fns {
				if !fn(e) {
					return false
				}
			}
			return true
		}, nil
	case expr.Disjunction:
		fns, err := compileAll(t.Exprs)
		if err != nil {
			return nil, err
		}
		return func(e event.Event) bool {
			for _, fn := range fns {
				if fn(e) {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, &TypeMismatchError{Detail: fmt.Sprintf("cannot compile node of type %T", n)}
	}
}

func compileAll(nodes []expr.Node) ([]func(event.Event) bool, error) {
	fns := make([]func(event.Event) bool, len(nodes))
	for i, n := range nodes {
		fn, err := compileNode(n)
		if err != nil {
			return nil, err
		}
		fns[i] = fn
	}
	return fns, nil
}

func compilePredicate(p expr.Predicate) (func(event.Event) bool, error) {
	ext, extOnLHS, other, ok := splitOperands(p)
	if !ok {
		return nil, &TypeMismatchError{Detail: "predicate has no extractor operand: " + p.String()}
	}
	constant, ok := other.(expr.Constant)
	if !ok {
		return nil, &TypeMismatchError{Detail: "predicate has no constant operand: " + p.String()}
	}
	op := p.Op
	if !extOnLHS {
		op = op.Commute()
	}
	constVal := constant.Value

	if te, ok := ext.(expr.TypeExtractor); ok {
		return compileTypeExtractor(te, op, constVal), nil
	}

	resolve := extractorResolver(ext)
	return func(e event.Event) bool {
		v, ok := resolve(e)
		if !ok {
			return false
		}
		return evalOp(op, v, constVal)
	}, nil
}

// splitOperands identifies which side of p is the extractor and returns
// the other side untouched (still an expr.Node, expected to be a
// Constant by the time the validator has run).
func splitOperands(p expr.Predicate) (ext expr.Extractor, extOnLHS bool, other expr.Node, ok bool) {
	if e, isExt := p.LHS.(expr.Extractor); isExt {
		return e, true, p.RHS, true
	}
	if e, isExt := p.RHS.(expr.Extractor); isExt {
		return e, false, p.LHS, true
	}
	return nil, false, nil, false
}

func extractorResolver(ext expr.Extractor) func(event.Event) (value.Value, bool) {
	switch e := ext.(type) {
	case expr.NameExtractor:
		return func(ev event.Event) (value.Value, bool) { return value.StringValue(ev.Name), true }
	case expr.TimestampExtractor:
		return func(ev event.Event) (value.Value, bool) { return value.TimestampValue(ev.Timestamp), true }
	case expr.IDExtractor:
		return func(ev event.Event) (value.Value, bool) { return value.CountValue(ev.ID), true }
	case expr.KeyExtractor:
		return func(ev event.Event) (value.Value, bool) { return resolveKeyPath(ev.Data, e.Path) }
	case expr.OffsetExtractor:
		return func(ev event.Event) (value.Value, bool) { return resolveOffset(ev.Data, e.Offset) }
	case expr.AttributeExtractor:
		return func(ev event.Event) (value.Value, bool) {
			v, ok := ev.Attributes[e.Name]
			return v, ok
		}
	default:
		return func(event.Event) (value.Value, bool) { return value.Value{}, false }
	}
}

// resolveOffset descends into ev.Data following a positional field-index
// path, mirroring event_data_index's depth-first record addressing.
func resolveOffset(data value.Value, off event.Offset) (value.Value, bool) {
	cur := data
	for _, idx := range off {
		elems, ok := value.AsElems(cur)
		if !ok || idx < 0 || idx >= len(elems) {
			return value.Value{}, false
		}
		cur = elems[idx]
	}
	return cur, true
}

// resolveKeyPath resolves a dotted key path against a record with no
// carried field-name schema: each path segment is expected to be the
// decimal string of its positional index (see DESIGN.md for this
// deliberate simplification).
func resolveKeyPath(data value.Value, path []string) (value.Value, bool) {
	cur := data
	for _, seg := range path {
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return value.Value{}, false
		}
		elems, ok := value.AsElems(cur)
		if !ok || idx < 0 || idx >= len(elems) {
			return value.Value{}, false
		}
		cur = elems[idx]
	}
	return cur, true
}

// compileTypeExtractor realizes ":T op constant" as an existential check
// over every non-container scalar field of type T reachable in the
// record, matching event_data_index's type-extractor querier which
// OR-reduces across every offset registered for that type.
func compileTypeExtractor(te expr.TypeExtractor, op expr.Op, constVal value.Value) func(event.Event) bool {
	return func(ev event.Event) bool {
		matched := false
		walkScalars(ev.Data, func(v value.Value) {
			if matched || value.Which(v) != te.Type {
				return
			}
			if evalOp(op, v, constVal) {
				matched = true
			}
		})
		return matched
	}
}

// walkScalars visits every non-container leaf value in v depth-first,
// recursing into nested records but skipping vector/set/table fields
// (the core does not index containers).
func walkScalars(v value.Value, fn func(value.Value)) {
	switch value.Which(v) {
	case value.Record:
		elems, _ := value.AsElems(v)
		for _, e := range elems {
			walkScalars(e, fn)
		}
	case value.Vector, value.Set, value.Table:
		// containers are not descended into for field-level matching.
	default:
		fn(v)
	}
}
