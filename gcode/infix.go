package gcode

import (
	"math"
	"strconv"
	"strings"

	"github.com/krustylabs/krusty-host/kerrors"
	"github.com/krustylabs/krusty-host/mathx"
)

// constants is the supplemental table of named numeric literals
// available to infix expressions, beyond plain number tokens.
var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// tokKind enumerates the infix lexer's token classes.
type tokKind int

const (
	tokNumber tokKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokEOF
)

type infixToken struct {
	kind tokKind
	text string
	pos  int
}

// infixLexer splits an expression string into tokens. Identifiers are
// resolved against constants at parse time, not here.
type infixLexer struct {
	s   string
	pos int
}

func newInfixLexer(s string) *infixLexer { return &infixLexer{s: s} }

func (l *infixLexer) next() infixToken {
	for l.pos < len(l.s) && isSpace(l.s[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.s) {
		return infixToken{kind: tokEOF, pos: l.pos}
	}
	start := l.pos
	c := l.s[l.pos]
	switch c {
	case '(':
		l.pos++
		return infixToken{kind: tokLParen, text: "(", pos: start}
	case ')':
		l.pos++
		return infixToken{kind: tokRParen, text: ")", pos: start}
	case '+', '-', '*', '/', '^':
		l.pos++
		return infixToken{kind: tokOp, text: string(c), pos: start}
	}
	if isDigit(c) || c == '.' {
		for l.pos < len(l.s) && (isDigit(l.s[l.pos]) || l.s[l.pos] == '.') {
			l.pos++
		}
		return infixToken{kind: tokNumber, text: l.s[start:l.pos], pos: start}
	}
	if isAlpha(c) {
		for l.pos < len(l.s) && (isAlpha(l.s[l.pos]) || isDigit(l.s[l.pos]) || l.s[l.pos] == '_') {
			l.pos++
		}
		return infixToken{kind: tokIdent, text: l.s[start:l.pos], pos: start}
	}
	l.pos++
	return infixToken{kind: tokOp, text: string(c), pos: start}
}

// InfixParser evaluates expressions from the infix sublanguage using
// Pratt (precedence-climbing) parsing: binary + - (binding power 1,2),
// * / (3,4), right-associative ^ (5,4), and unary +/- at binding power
// 100.
type InfixParser struct {
	lex  *infixLexer
	cur  infixToken
	text string
}

// NewInfixParser returns a parser over expr.
func NewInfixParser(expr string) *InfixParser {
	p := &InfixParser{lex: newInfixLexer(expr), text: expr}
	p.cur = p.lex.next()
	return p
}

func (p *InfixParser) advance() infixToken {
	t := p.cur
	p.cur = p.lex.next()
	return t
}

// Evaluate parses and evaluates the full expression, returning an
// error if any trailing tokens remain or a syntax error is found.
func (p *InfixParser) Evaluate() (float64, error) {
	v, err := p.parseExpr(0)
	if err != nil {
		return 0, err
	}
	if p.cur.kind != tokEOF {
		return 0, p.errAt(p.cur.pos, "unexpected trailing token %q", p.cur.text)
	}
	return v, nil
}

func (p *InfixParser) errAt(pos int, format string, args ...interface{}) error {
	span := mathx.Span{Start: pos, End: len(p.text)}
	return kerrors.NewParseError(span, format, args...)
}

// binding returns (left, right) binding power for a binary operator,
// or ok=false if op is not a binary operator.
func binding(op string) (left, right int, ok bool) {
	switch op {
	case "+", "-":
		return 1, 2, true
	case "*", "/":
		return 3, 4, true
	case "^":
		return 5, 4, true // right-associative: right bp < left bp
	default:
		return 0, 0, false
	}
}

const unaryBindingPower = 100

func (p *InfixParser) parseExpr(minBP int) (float64, error) {
	lhs, err := p.parsePrefix()
	if err != nil {
		return 0, err
	}
	for {
		if p.cur.kind != tokOp {
			break
		}
		lbp, rbp, ok := binding(p.cur.text)
		if !ok || lbp < minBP {
			break
		}
		op := p.advance()
		rhs, err := p.parseExpr(rbp)
		if err != nil {
			return 0, err
		}
		lhs, err = applyOp(op.text, lhs, rhs)
		if err != nil {
			return 0, p.errAt(op.pos, "%s", err.Error())
		}
	}
	return lhs, nil
}

func (p *InfixParser) parsePrefix() (float64, error) {
	switch p.cur.kind {
	case tokOp:
		if p.cur.text == "+" || p.cur.text == "-" {
			op := p.advance()
			v, err := p.parseExpr(unaryBindingPower)
			if err != nil {
				return 0, err
			}
			if op.text == "-" {
				return -v, nil
			}
			return v, nil
		}
		return 0, p.errAt(p.cur.pos, "unexpected operator %q", p.cur.text)
	case tokNumber:
		t := p.advance()
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return 0, p.errAt(t.pos, "invalid number %q", t.text)
		}
		return v, nil
	case tokIdent:
		t := p.advance()
		v, ok := constants[strings.ToLower(t.text)]
		if !ok {
			return 0, p.errAt(t.pos, "unknown identifier %q", t.text)
		}
		return v, nil
	case tokLParen:
		p.advance()
		v, err := p.parseExpr(0)
		if err != nil {
			return 0, err
		}
		if p.cur.kind != tokRParen {
			return 0, p.errAt(p.cur.pos, "expected closing parenthesis")
		}
		p.advance()
		return v, nil
	default:
		return 0, p.errAt(p.cur.pos, "unexpected end of expression")
	}
}

func applyOp(op string, a, b float64) (float64, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		return a / b, nil
	case "^":
		return math.Pow(a, b), nil
	default:
		return 0, kerrors.NewParseError(mathx.Span{}, "unknown operator %q", op)
	}
}
