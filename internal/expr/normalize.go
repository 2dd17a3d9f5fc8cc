package expr

import "github.com/evidex/evidex/internal/value"

// Normalize applies normalization rules 1, 2, and 5:
//
//  1. at most one side of a predicate is a constant; if so, it is moved to
//     the RHS (operands are swapped and the operator commuted so meaning
//     is preserved — e.g. "subnet ni :addr" becomes ":addr in subnet").
//  2. "!=" is left exactly as written; it is never rewritten to a negated
//     "==", so the bitmap-index layer can implement it directly.
//  5. a singleton conjunction/disjunction collapses to its (normalized)
//     child; an empty one is left untouched for Validate to reject.
//
// Normalize is idempotent: Normalize(Normalize(n)) produces the same tree
// as Normalize(n).
func Normalize(n Node) Node {
	switch t := n.(type) {
	case Predicate:
		lhs, rhs, op := t.LHS, t.RHS, t.Op
		if IsConstant(lhs) && !IsConstant(rhs) {
			lhs, rhs, op = rhs, lhs, op.Commute()
		}
		return Predicate{LHS: lhs, Op: op, RHS: rhs}

	case Negation:
		return Negation{Expr: Normalize(t.Expr)}

	case Conjunction:
		return normalizeCombinator(t.Exprs, func(exprs []Node) Node { return Conjunction{Exprs: exprs} })

	case Disjunction:
		return normalizeCombinator(t.Exprs, func(exprs []Node) Node { return Disjunction{Exprs: exprs} })

	default:
		return n
	}
}

func normalizeCombinator(exprs []Node, build func([]Node) Node) Node {
	if len(exprs) == 1 {
		return Normalize(exprs[0])
	}
	if len(exprs) == 0 {
		return build(nil)
	}
	normalized := make([]Node, len(exprs))
	for i, e := range exprs {
		normalized[i] = Normalize(e)
	}
	return build(normalized)
}

// Validate checks rules 2-5 (rule 1 is a canonicalization, not a
// correctness constraint — Validate accepts a predicate whose constant
// sits on either side) and reports the first violation found. Validate is
// side-effect-free: Validate(Normalize(a)) always agrees with Validate(a).
func Validate(n Node) error {
	switch t := n.(type) {
	case Predicate:
		return validatePredicate(t)

	case Negation:
		return Validate(t.Expr)

	case Conjunction:
		return validateCombinator(t.Exprs)

	case Disjunction:
		return validateCombinator(t.Exprs)

	case Constant, Extractor:
		return nil

	default:
		return semanticErrorf(n, "unrecognized node type %T", n)
	}
}

func validateCombinator(exprs []Node) error {
	if len(exprs) == 0 {
		return semanticErrorf(nil, "empty combinator is not allowed")
	}
	for _, e := range exprs {
		if err := Validate(e); err != nil {
			return err
		}
	}
	return nil
}

func validatePredicate(p Predicate) error {
	if !isOperand(p.LHS) {
		return semanticErrorf(p, "left operand %T is neither an extractor nor a constant", p.LHS)
	}
	if !isOperand(p.RHS) {
		return semanticErrorf(p, "right operand %T is neither an extractor nor a constant", p.RHS)
	}

	if p.Op.IsMembership() {
		if err := validateMembership(p); err != nil {
			return err
		}
	}

	if te, ok := p.LHS.(TypeExtractor); ok {
		if err := checkTypeExtractorPair(p, te, p.RHS); err != nil {
			return err
		}
	}
	if te, ok := p.RHS.(TypeExtractor); ok {
		if err := checkTypeExtractorPair(p, te, p.LHS); err != nil {
			return err
		}
	}
	return nil
}

func isOperand(n Node) bool {
	return IsConstant(n) || IsExtractor(n)
}

// checkTypeExtractorPair enforces rule 4: type_extractor(T) is valid only
// when the opposite operand may have type T. The opposite operand is
// checked when it is a Constant (its type is then known exactly); when it
// is itself an extractor, the check is skipped (extractors carry no static
// type), and when it is a subnet/address constant paired via in/ni with an
// address type_extractor, that is explicitly the valid membership shape of
// end-to-end scenario 3.
func checkTypeExtractorPair(p Predicate, te TypeExtractor, other Node) error {
	c, ok := other.(Constant)
	if !ok {
		return nil
	}
	if p.Op.IsMembership() && te.Type == value.Address && value.Which(c.Value) == value.Subnet {
		return nil
	}
	if value.Which(c.Value) != te.Type {
		return semanticErrorf(p, "type extractor %s does not match operand of type %s", te.String(), value.Which(c.Value))
	}
	return nil
}

func validateMembership(p Predicate) error {
	rhsConst, rhsIsConst := p.RHS.(Constant)
	lhsConst, lhsIsConst := p.LHS.(Constant)

	if rhsIsConst && value.IsContainer(value.Which(rhsConst.Value)) {
		return nil
	}
	if lhsIsConst && value.IsContainer(value.Which(lhsConst.Value)) {
		return nil
	}
	if rhsIsConst && value.Which(rhsConst.Value) == value.Subnet {
		return nil
	}
	if lhsIsConst && value.Which(lhsConst.Value) == value.Subnet {
		return nil
	}
	if rhsIsConst && value.Which(rhsConst.Value) == value.Address {
		return nil
	}
	if lhsIsConst && value.Which(lhsConst.Value) == value.Address {
		return nil
	}
	if !rhsIsConst && !lhsIsConst {
		// both sides are extractors; cannot statically rule this out.
		return nil
	}
	return semanticErrorf(p, "in/ni requires a container, subnet, or address operand")
}
