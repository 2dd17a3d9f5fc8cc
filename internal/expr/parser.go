package expr

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/evidex/evidex/internal/event"
	"github.com/evidex/evidex/internal/value"
)

// Parse parses a query expression string into a raw (non-normalized) AST.
// Parse returns a *SyntaxError for anything the grammar cannot accept,
// including an unknown type-extractor name (end-to-end scenario 6).
func Parse(input string) (Node, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, syntaxErrorf(input, p.posOf(p.pos), "unexpected trailing input %q", p.toks[p.pos].text)
	}
	return n, nil
}

// tokKind enumerates the lexical token categories.
type tokKind uint8

const (
	tokWord tokKind = iota
	tokString
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokOpSym
	tokEOF
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type parser struct {
	input string
	toks  []token
	pos   int
}

func (p *parser) posOf(i int) int {
	if i < len(p.toks) {
		return p.toks[i].pos
	}
	return len(p.input)
}

func (p *parser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF, pos: len(p.input)}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) parseOr() (Node, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	exprs := []Node{lhs}
	for p.peek().kind == tokOr {
		p.next()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, rhs)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return Disjunction{Exprs: exprs}, nil
}

func (p *parser) parseAnd() (Node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	exprs := []Node{lhs}
	for p.peek().kind == tokAnd {
		p.next()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, rhs)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return Conjunction{Exprs: exprs}, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().kind == tokNot {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Negation{Expr: inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, syntaxErrorf(p.input, p.posOf(p.pos), "expected ')'")
		}
		p.next()
		return inner, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (Node, error) {
	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, err := p.parseOp()
	if err != nil {
		return nil, err
	}
	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return Predicate{LHS: lhs, Op: op, RHS: rhs}, nil
}

func (p *parser) parseOp() (Op, error) {
	t := p.peek()
	switch t.kind {
	case tokOpSym:
		p.next()
		switch t.text {
		case "==":
			return Equal, nil
		case "!=":
			return NotEqual, nil
		case "<":
			return Less, nil
		case "<=":
			return LessEqual, nil
		case ">":
			return Greater, nil
		case ">=":
			return GreaterEqual, nil
		case "~":
			return Match, nil
		case "!~":
			return NotMatch, nil
		}
	case tokWord:
		switch t.text {
		case "in":
			p.next()
			return In, nil
		case "ni":
			p.next()
			return NotIn, nil
		case "+":
			p.next()
			return Plus, nil
		case "-":
			p.next()
			return Minus, nil
		}
	}
	return 0, syntaxErrorf(p.input, p.posOf(p.pos), "expected an operator, got %q", t.text)
}

func (p *parser) parseOperand() (Node, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.next()
		return Constant{Value: value.StringValue(t.text)}, nil
	case tokWord:
		p.next()
		return classifyWord(p.input, t)
	default:
		return nil, syntaxErrorf(p.input, p.posOf(p.pos), "expected an operand, got %q", t.text)
	}
}

// classifyWord turns a bare lexical word into an extractor or a constant,
// trying, in order: the special-form prefixes (':' type, '@' offset, '#'
// attribute), the keyword extractors (name/time/id), boolean literals,
// port/subnet/address literals, duration and timestamp literals, signed
// and unsigned integer literals, real literals, and finally a dotted key
// path.
func classifyWord(input string, t token) (Node, error) {
	w := t.text
	switch {
	case strings.HasPrefix(w, ":"):
		tag, ok := typeNameToTag(w[1:])
		if !ok {
			return nil, syntaxErrorf(input, t.pos, "unknown type name %q", w[1:])
		}
		return TypeExtractor{Type: tag}, nil

	case strings.HasPrefix(w, "@"):
		off, err := event.ParseOffset(w[1:])
		if err != nil {
			return nil, syntaxErrorf(input, t.pos, "invalid offset %q", w[1:])
		}
		return OffsetExtractor{Offset: off}, nil

	case strings.HasPrefix(w, "#"):
		return AttributeExtractor{Name: w[1:]}, nil
	}

	switch w {
	case "name":
		return NameExtractor{}, nil
	case "time", "timestamp":
		return TimestampExtractor{}, nil
	case "id":
		return IDExtractor{}, nil
	case "true":
		return Constant{Value: value.BoolValue(true)}, nil
	case "false":
		return Constant{Value: value.BoolValue(false)}, nil
	}

	if port, ok := parsePortLiteral(w); ok {
		return Constant{Value: value.PortValue(port)}, nil
	}
	if prefix, err := netip.ParsePrefix(w); err == nil {
		return Constant{Value: value.SubnetValue(prefix)}, nil
	}
	if addr, err := netip.ParseAddr(w); err == nil {
		return Constant{Value: value.AddressValue(addr)}, nil
	}
	if d, ok := parseDurationLiteral(w); ok {
		return Constant{Value: value.DurationValue(d)}, nil
	}
	if ts, ok := parseTimestampLiteral(w); ok {
		return Constant{Value: value.TimestampValue(ts)}, nil
	}
	if u, ok := parseUintLiteral(w); ok {
		return Constant{Value: value.CountValue(u)}, nil
	}
	if i, ok := parseIntLiteral(w); ok {
		return Constant{Value: value.IntValue(i)}, nil
	}
	if f, ok := parseRealLiteral(w); ok {
		return Constant{Value: value.RealValue(f)}, nil
	}

	path := strings.Split(w, ".")
	for _, seg := range path {
		if seg == "" {
			return nil, syntaxErrorf(input, t.pos, "invalid key path %q", w)
		}
	}
	return KeyExtractor{Path: path}, nil
}

func typeNameToTag(name string) (value.Tag, bool) {
	switch name {
	case "bool":
		return value.Bool, true
	case "int":
		return value.Int, true
	case "count":
		return value.Count, true
	case "real":
		return value.Real, true
	case "duration":
		return value.Duration, true
	case "time", "timestamp":
		return value.Timestamp, true
	case "string":
		return value.String, true
	case "addr", "address":
		return value.Address, true
	case "subnet":
		return value.Subnet, true
	case "port":
		return value.Port, true
	case "record":
		return value.Record, true
	case "vector":
		return value.Vector, true
	case "set":
		return value.Set, true
	case "table":
		return value.Table, true
	default:
		return 0, false
	}
}

func parsePortLiteral(w string) (value.PortSpec, bool) {
	idx := strings.IndexByte(w, '/')
	if idx < 0 {
		return value.PortSpec{}, false
	}
	numPart, protoPart := w[:idx], w[idx+1:]
	n, err := strconv.ParseUint(numPart, 10, 16)
	if err != nil {
		return value.PortSpec{}, false
	}
	var proto value.Proto
	switch protoPart {
	case "tcp":
		proto = value.ProtoTCP
	case "udp":
		proto = value.ProtoUDP
	case "icmp":
		proto = value.ProtoICMP
	case "unknown":
		proto = value.ProtoUnknown
	default:
		return value.PortSpec{}, false
	}
	return value.PortSpec{Number: uint16(n), Proto: proto}, true
}

func parseDurationLiteral(w string) (time.Duration, bool) {
	if w == "" {
		return 0, false
	}
	c := w[len(w)-1]
	if c != 's' && c != 'm' && c != 'h' && c != 'd' {
		return 0, false
	}
	d, err := time.ParseDuration(w)
	if err != nil {
		return 0, false
	}
	return d, true
}

func parseTimestampLiteral(w string) (time.Time, bool) {
	if !strings.Contains(w, "T") {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, w)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseUintLiteral(w string) (uint64, bool) {
	if w == "" || w[0] == '+' || w[0] == '-' {
		return 0, false
	}
	u, err := strconv.ParseUint(w, 10, 64)
	if err != nil {
		return 0, false
	}
	return u, true
}

func parseIntLiteral(w string) (int64, bool) {
	if w == "" || (w[0] != '+' && w[0] != '-') {
		return 0, false
	}
	i, err := strconv.ParseInt(w, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

func parseRealLiteral(w string) (float64, bool) {
	if !strings.ContainsAny(w, ".eE") {
		return 0, false
	}
	f, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// lex tokenizes input into the stream parsePredicate et al. consume.
func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	n := len(input)
	for i < n {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '!' && i+1 < n && input[i+1] == '~':
			toks = append(toks, token{kind: tokOpSym, text: "!~", pos: i})
			i += 2
		case c == '!' && i+1 < n && input[i+1] == '=':
			toks = append(toks, token{kind: tokOpSym, text: "!=", pos: i})
			i += 2
		case c == '!':
			toks = append(toks, token{kind: tokNot, text: "!", pos: i})
			i++
		case c == '&' && i+1 < n && input[i+1] == '&':
			toks = append(toks, token{kind: tokAnd, text: "&&", pos: i})
			i += 2
		case c == '|' && i+1 < n && input[i+1] == '|':
			toks = append(toks, token{kind: tokOr, text: "||", pos: i})
			i += 2
		case c == '=' && i+1 < n && input[i+1] == '=':
			toks = append(toks, token{kind: tokOpSym, text: "==", pos: i})
			i += 2
		case c == '<' && i+1 < n && input[i+1] == '=':
			toks = append(toks, token{kind: tokOpSym, text: "<=", pos: i})
			i += 2
		case c == '<':
			toks = append(toks, token{kind: tokOpSym, text: "<", pos: i})
			i++
		case c == '>' && i+1 < n && input[i+1] == '=':
			toks = append(toks, token{kind: tokOpSym, text: ">=", pos: i})
			i += 2
		case c == '>':
			toks = append(toks, token{kind: tokOpSym, text: ">", pos: i})
			i++
		case c == '~':
			toks = append(toks, token{kind: tokOpSym, text: "~", pos: i})
			i++
		case c == '"':
			s, consumed, err := lexString(input[i:])
			if err != nil {
				return nil, syntaxErrorf(input, i, "%s", err.Error())
			}
			toks = append(toks, token{kind: tokString, text: s, pos: i})
			i += consumed
		default:
			start := i
			for i < n && !isWordBreak(input[i]) {
				i++
			}
			if i == start {
				return nil, syntaxErrorf(input, i, "unexpected character %q", input[i])
			}
			toks = append(toks, token{kind: tokWord, text: input[start:i], pos: start})
		}
	}
	return toks, nil
}

func isWordBreak(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '!', '&', '|', '<', '>', '=', '~', '"':
		return true
	default:
		return false
	}
}

func lexString(s string) (string, int, error) {
	// s[0] == '"'
	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c == '"' {
			return b.String(), i + 1, nil
		}
		if c == '\\' && i+1 < len(s) {
			b.WriteByte(s[i+1])
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, fmt.Errorf("unterminated string literal")
}
