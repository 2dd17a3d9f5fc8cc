package query

import (
	"regexp"

	"github.com/evidex/evidex/internal/expr"
	"github.com/evidex/evidex/internal/value"
)

// evalOp applies op to (left, right), both already resolved to concrete
// values. It never errors: a genuinely unsupported (op, type) combination
// evaluates to false, matching the "unsupported_op is never fatal" rule
// at the row-evaluation layer (the bitmap layer's unsupported_op signals a
// full-scan fallback one level up, in the compiled predicate closure).
func evalOp(op expr.Op, left, right value.Value) bool {
	switch op {
	case expr.Equal:
		return value.Equal(left, right)
	case expr.NotEqual:
		return !value.Equal(left, right)
	case expr.Less:
		return value.Which(left) == value.Which(right) && value.Compare(left, right) < 0
	case expr.LessEqual:
		return value.Which(left) == value.Which(right) && value.Compare(left, right) <= 0
	case expr.Greater:
		return value.Which(left) == value.Which(right) && value.Compare(left, right) > 0
	case expr.GreaterEqual:
		return value.Which(left) == value.Which(right) && value.Compare(left, right) >= 0
	case expr.In:
		return membership(left, right)
	case expr.NotIn:
		return !membership(left, right)
	case expr.Match:
		return matches(left, right)
	case expr.NotMatch:
		return !matches(left, right)
	default:
		return false
	}
}

func membership(left, right value.Value) bool {
	switch value.Which(right) {
	case value.Set, value.Vector:
		elems, _ := value.AsElems(right)
		for _, e := range elems {
			if value.Equal(left, e) {
				return true
			}
		}
		return false
	case value.Table:
		entries, _ := value.AsTable(right)
		for _, e := range entries {
			if value.Equal(left, e.Key) {
				return true
			}
		}
		return false
	case value.Subnet:
		addr, ok := value.AsAddress(left)
		if !ok {
			return false
		}
		subnet, _ := value.AsSubnet(right)
		return subnet.Contains(addr)
	default:
		return false
	}
}

func matches(left, right value.Value) bool {
	pattern, ok := value.AsString(right)
	if !ok {
		return false
	}
	target, ok := value.AsString(left)
	if !ok {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(target)
}
