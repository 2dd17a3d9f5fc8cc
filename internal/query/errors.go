package query

import "fmt"

// TypeMismatchError reports a predicate whose operands the compiler
// could not reconcile with a supported shape (e.g. neither operand is a
// constant, or an extractor appears on both sides). expr.Validate accepts
// both of those shapes, so this error is how the compiler rejects them.
type TypeMismatchError struct {
	Detail string
}

func (e *TypeMismatchError) Error() string { return "query: type mismatch: " + e.Detail }

// UnsupportedOpError reports an (op, type) pair the row evaluator has no
// defined behavior for. This is never fatal: the caller treats it
// as "unknown" and falls back to full-scan revalidation.
type UnsupportedOpError struct {
	Op   fmt.Stringer
	Type fmt.Stringer
}

func (e *UnsupportedOpError) Error() string {
	return fmt.Sprintf("query: unsupported op %s for type %s", e.Op, e.Type)
}
