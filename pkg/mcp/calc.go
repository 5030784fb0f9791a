package mcp

import (
	"fmt"
	"strconv"
	"strings"
)

// Evaluate computes a basic arithmetic expression. Input is vetted by
// charset before parsing, so anything outside digits, operators,
// parentheses, dots and spaces is rejected without evaluation.
func Evaluate(expression string) (float64, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return 0, fmt.Errorf("%w: empty expression", ErrBadExpression)
	}
	for _, r := range expression {
		if !strings.ContainsRune("0123456789+-*/.() ", r) {
			return 0, fmt.Errorf("%w: illegal character %q", ErrBadExpression, r)
		}
	}

	p := &exprParser{input: expression}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("%w: trailing input at %d", ErrBadExpression, p.pos)
	}
	return v, nil
}

// exprParser is a recursive-descent parser over +, -, *, / and
// parentheses with standard precedence.
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseExpr handles + and -.
func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

// parseTerm handles * and /.
func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("%w: division by zero", ErrBadExpression)
			}
			left /= right
		default:
			return left, nil
		}
	}
}

// parseFactor handles numbers, unary minus and parentheses.
func (p *exprParser) parseFactor() (float64, error) {
	switch p.peek() {
	case '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrBadExpression)
		}
		p.pos++
		return v, nil
	case '-':
		p.pos++
		v, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parseNumber()
}

func (p *exprParser) parseNumber() (float64, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("%w: expected number at %d", ErrBadExpression, start)
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadExpression, p.input[start:p.pos])
	}
	return v, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
