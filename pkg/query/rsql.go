package query

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dhis2-sre/update-manager/internal/errdef"
)

// Node is a node of a parsed RSQL expression.
type Node interface {
	node()
}

type LogicalOperator string

const (
	And LogicalOperator = "AND"
	Or  LogicalOperator = "OR"
)

// Logical combines its children with either AND or OR.
type Logical struct {
	Operator LogicalOperator
	Children []Node
}

// Comparison compares the field named by Selector to its arguments.
type Comparison struct {
	Selector  string
	Operator  string
	Arguments []string
}

func (Logical) node()    {}
func (Comparison) node() {}

var operators = map[string]bool{
	"==":    true,
	"!=":    true,
	"=lt=":  true,
	"=le=":  true,
	"=gt=":  true,
	"=ge=":  true,
	"<":     true,
	"<=":    true,
	">":     true,
	">=":    true,
	"=in=":  true,
	"=out=": true,
}

// Parse parses an RSQL expression. The grammar is
//
//	or         = and *( "," and )
//	and        = constraint *( ";" constraint )
//	constraint = "(" or ")" / selector operator arguments
//	arguments  = "(" value *( "," value ) ")" / value
//	value      = unreserved-string / single-quoted / double-quoted
func Parse(expression string) (Node, error) {
	p := &parser{input: expression}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected character %q", p.peek())
	}
	return node, nil
}

// maxDepth limits the nesting of parenthesized expressions.
const maxDepth = 32

type parser struct {
	input string
	pos   int
	depth int
}

func (p *parser) errorf(format string, a ...any) error {
	return errdef.NewBadRequest("invalid filter %q at position %d: %s", p.input, p.pos, fmt.Sprintf(format, a...))
}

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *parser) peek() byte {
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.peek())) {
		p.pos++
	}
}

func (p *parser) parseOr() (Node, error) {
	return p.parseLogical(Or, ',', p.parseAnd)
}

func (p *parser) parseAnd() (Node, error) {
	return p.parseLogical(And, ';', p.parseConstraint)
}

func (p *parser) parseLogical(operator LogicalOperator, separator byte, next func() (Node, error)) (Node, error) {
	node, err := next()
	if err != nil {
		return nil, err
	}

	children := []Node{node}
	for {
		p.skipSpace()
		if p.eof() || p.peek() != separator {
			break
		}
		p.pos++

		node, err := next()
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}

	if len(children) == 1 {
		return children[0], nil
	}
	return Logical{Operator: operator, Children: children}, nil
}

func (p *parser) parseConstraint() (Node, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("unexpected end of filter")
	}

	if p.peek() == '(' {
		if p.depth == maxDepth {
			return nil, errdef.NewBadRequest("invalid filter at position %d: nested deeper than %d levels", p.pos, maxDepth)
		}
		p.pos++
		p.depth++
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.depth--
		p.skipSpace()
		if p.eof() || p.peek() != ')' {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return node, nil
	}

	selector := p.readUnreserved()
	if selector == "" {
		return nil, p.errorf("expected a field name")
	}

	p.skipSpace()
	operator, err := p.readOperator()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	arguments, err := p.readArguments()
	if err != nil {
		return nil, err
	}

	isList := operator == "=in=" || operator == "=out="
	if !isList && len(arguments) != 1 {
		return nil, p.errorf("operator %s takes exactly one argument", operator)
	}

	return Comparison{Selector: selector, Operator: operator, Arguments: arguments}, nil
}

func isReserved(c byte) bool {
	return strings.IndexByte(`"'();,=!~<>`, c) >= 0 || unicode.IsSpace(rune(c))
}

func (p *parser) readUnreserved() string {
	start := p.pos
	for !p.eof() && !isReserved(p.peek()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) readOperator() (string, error) {
	rest := p.input[p.pos:]
	for _, candidate := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if strings.HasPrefix(rest, candidate) {
			p.pos += len(candidate)
			return candidate, nil
		}
	}

	if strings.HasPrefix(rest, "=") {
		end := strings.IndexByte(rest[1:], '=')
		if end > 0 {
			candidate := strings.ToLower(rest[:end+2])
			if operators[candidate] {
				p.pos += len(candidate)
				return candidate, nil
			}
			return "", p.errorf("unknown operator %q", candidate)
		}
	}
	return "", p.errorf("expected an operator")
}

func (p *parser) readArguments() ([]string, error) {
	if p.eof() {
		return nil, p.errorf("expected an argument")
	}

	if p.peek() != '(' {
		value, err := p.readValue()
		if err != nil {
			return nil, err
		}
		return []string{value}, nil
	}

	p.pos++
	var values []string
	for {
		p.skipSpace()
		value, err := p.readValue()
		if err != nil {
			return nil, err
		}
		values = append(values, value)

		p.skipSpace()
		if p.eof() {
			return nil, p.errorf("missing closing parenthesis of argument list")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return values, nil
		default:
			return nil, p.errorf("unexpected character %q in argument list", p.peek())
		}
	}
}

func (p *parser) readValue() (string, error) {
	if p.eof() {
		return "", p.errorf("expected an argument")
	}

	quote := p.peek()
	if quote != '\'' && quote != '"' {
		value := p.readUnreserved()
		if value == "" {
			return "", p.errorf("expected an argument")
		}
		return value, nil
	}

	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		p.pos++
		switch {
		case c == '\\' && !p.eof():
			b.WriteByte(p.peek())
			p.pos++
		case c == quote:
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	return "", p.errorf("unterminated quoted argument")
}
