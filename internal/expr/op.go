package expr

// Op is a predicate's relational or arithmetic operator.
type Op uint8

const (
	Equal Op = iota
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
	In
	NotIn
	Plus
	Minus
	Match
	NotMatch
)

func (o Op) String() string {
	switch o {
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case Less:
		return "<"
	case LessEqual:
		return "<="
	case Greater:
		return ">"
	case GreaterEqual:
		return ">="
	case In:
		return "in"
	case NotIn:
		return "ni"
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Match:
		return "~"
	case NotMatch:
		return "!~"
	default:
		return "?"
	}
}

// Negate returns the operator such that `!(a OP b) == a Negate(OP) b` holds
// for the six relational comparison operators; it is undefined (returns o
// unchanged) for the non-comparison operators (in/ni/+/-/~/!~), matching
// the normalization rule that `!=` is preserved, never rewritten.
func (o Op) Negate() Op {
	switch o {
	case Equal:
		return NotEqual
	case NotEqual:
		return Equal
	case Less:
		return GreaterEqual
	case LessEqual:
		return Greater
	case Greater:
		return LessEqual
	case GreaterEqual:
		return Less
	case Match:
		return NotMatch
	case NotMatch:
		return Match
	case In:
		return NotIn
	case NotIn:
		return In
	default:
		return o
	}
}

// Commute returns the operator that holds when the two operands of a
// relational predicate are swapped (used when the validator moves a
// constant from the LHS to the RHS).
func (o Op) Commute() Op {
	switch o {
	case Less:
		return Greater
	case LessEqual:
		return GreaterEqual
	case Greater:
		return Less
	case GreaterEqual:
		return LessEqual
	case In:
		return NotIn
	case NotIn:
		return In
	default:
		return o
	}
}

// IsRelational reports whether o is one of the six comparison operators
// that Negate defines.
func (o Op) IsRelational() bool {
	switch o {
	case Equal, NotEqual, Less, LessEqual, Greater, GreaterEqual:
		return true
	default:
		return false
	}
}

// IsMembership reports whether o is in/ni, which require a container or
// subnet/address operand per normalization rule 3.
func (o Op) IsMembership() bool { return o == In || o == NotIn }
