package expr

import "fmt"

// SyntaxError reports that an expression string could not be parsed at all.
// It surfaces to callers as "(query, parse, failure)".
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expr: syntax error at position %d in %q: %s", e.Pos, e.Input, e.Msg)
}

// SemanticError reports that an expression parsed but failed a validator
// check: an ill-typed predicate, an empty combinator, or a malformed
// membership test. It surfaces with the same "(query, parse, failure)"
// shape as SyntaxError — the caller does not distinguish the two kinds.
type SemanticError struct {
	Node Node
	Msg  string
}

func (e *SemanticError) Error() string {
	if e.Node == nil {
		return fmt.Sprintf("expr: semantic error: %s", e.Msg)
	}
	return fmt.Sprintf("expr: semantic error in %q: %s", e.Node.String(), e.Msg)
}

func syntaxErrorf(input string, pos int, format string, args ...any) error {
	return &SyntaxError{Input: input, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func semanticErrorf(n Node, format string, args ...any) error {
	return &SemanticError{Node: n, Msg: fmt.Sprintf(format, args...)}
}
