// Package expr parses and evaluates the arithmetic used in top-level
// selectors such as "price*qty@total".
//
// Grammar:
//
//	expr    := term (("+" | "-") term)*
//	term    := unary (("*" | "/") unary)*
//	unary   := "-" unary | "+" unary | primary
//	primary := number | column | "(" expr ")"
//
// Operands are runs of characters other than + - * / ( ). An operand
// starting with a digit or "." is a number; anything else names a column.
// There are no functions and no string literals.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/restsql/internal/ir"
)

// Node is a sealed interface over expression tree nodes.
type Node interface {
	node() // Sealed - only types in this package implement it
	String() string
}

// Number is a numeric literal.
type Number struct {
	Value ir.Value // ir.Int or ir.Float
}

func (Number) node() {}

func (n Number) String() string { return ir.Format(n.Value) }

// Column references a column of the current row.
type Column struct {
	Name string
}

func (Column) node() {}

func (c Column) String() string { return c.Name }

// Unary is a sign applied to an operand.
type Unary struct {
	Op      byte // '-' or '+'
	Operand Node
}

func (Unary) node() {}

func (u Unary) String() string { return "(" + string(u.Op) + u.Operand.String() + ")" }

// Binary is an arithmetic operation.
type Binary struct {
	Op   byte // one of + - * /
	L, R Node
}

func (Binary) node() {}

func (b Binary) String() string {
	return "(" + b.L.String() + " " + string(b.Op) + " " + b.R.String() + ")"
}

// SyntaxError reports an unparseable expression.
type SyntaxError struct {
	Source  string
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expression %q at %d: %s", e.Source, e.Pos, e.Message)
}

// IsOperator reports whether c is one of the four arithmetic operators.
func IsOperator(c byte) bool {
	return c == '+' || c == '-' || c == '*' || c == '/'
}

// HasOperator reports whether s contains an arithmetic operator, which is
// what marks a selector as an expression.
func HasOperator(s string) bool {
	return strings.ContainsAny(s, "+-*/")
}

type tokenKind int

const (
	tkEOF tokenKind = iota
	tkOperand
	tkOp
	tkLParen
	tkRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(src string) []token {
	var toks []token
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		if text := strings.TrimSpace(src[start:end]); text != "" {
			toks = append(toks, token{kind: tkOperand, text: text, pos: start})
		}
		start = -1
	}
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case IsOperator(c):
			flush(i)
			toks = append(toks, token{kind: tkOp, text: string(c), pos: i})
		case c == '(':
			flush(i)
			toks = append(toks, token{kind: tkLParen, text: "(", pos: i})
		case c == ')':
			flush(i)
			toks = append(toks, token{kind: tkRParen, text: ")", pos: i})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(src))
	return append(toks, token{kind: tkEOF, pos: len(src)})
}

type parser struct {
	src  string
	toks []token
	pos  int
}

// Parse parses src into an expression tree.
func Parse(src string) (Node, error) {
	p := &parser{src: src, toks: lex(src)}
	n, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if tk := p.peek(); tk.kind != tkEOF {
		return nil, p.errorf(tk, "unexpected %q", tk.text)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tk := p.toks[p.pos]
	if tk.kind != tkEOF {
		p.pos++
	}
	return tk
}

func (p *parser) errorf(tk token, format string, args ...any) error {
	return &SyntaxError{Source: p.src, Pos: tk.pos, Message: fmt.Sprintf(format, args...)}
}

// binPrec returns the binding power of a binary operator.
func binPrec(op string) int {
	switch op {
	case "+", "-":
		return 1
	case "*", "/":
		return 2
	default:
		return -1
	}
}

// parseBinary is precedence climbing: operators at or above minPrec bind
// here, and the right operand is parsed one level higher so that equal
// precedence associates to the left.
func (p *parser) parseBinary(minPrec int) (Node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tk := p.peek()
		if tk.kind != tkOp {
			return lhs, nil
		}
		prec := binPrec(tk.text)
		if prec < minPrec {
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		lhs = Binary{Op: tk.text[0], L: lhs, R: rhs}
	}
}

func (p *parser) parseUnary() (Node, error) {
	tk := p.peek()
	if tk.kind == tkOp && (tk.text == "-" || tk.text == "+") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{Op: tk.text[0], Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tk := p.next()
	switch tk.kind {
	case tkOperand:
		return operand(tk.text), nil
	case tkLParen:
		n, err := p.parseBinary(0)
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tkRParen {
			return nil, p.errorf(closing, "expected ')'")
		}
		return n, nil
	case tkEOF:
		return nil, p.errorf(tk, "unexpected end of expression")
	default:
		return nil, p.errorf(tk, "unexpected %q", tk.text)
	}
}

func operand(text string) Node {
	if c := text[0]; (c >= '0' && c <= '9') || c == '.' {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return Number{Value: ir.Int(n)}
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return Number{Value: ir.Float(f)}
		}
	}
	return Column{Name: text}
}

// Columns returns the distinct column names referenced by n, in order of
// first appearance.
func Columns(n Node) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case Column:
			if !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v.Name)
			}
		case Unary:
			walk(v.Operand)
		case Binary:
			walk(v.L)
			walk(v.R)
		}
	}
	walk(n)
	return out
}
