package query

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dhis2-sre/update-manager/internal/errdef"
)

type Type int

const (
	String Type = iota
	// Enum values are stored lower case and compared case-insensitively.
	Enum
	Number
	Bool
	// Time values are given as milliseconds since the epoch.
	Time
)

// Field describes how a field name used in filters and sort parameters maps to SQL.
type Field struct {
	// Column is the SQL expression the arguments are compared to.
	Column string
	Type   Type
	// Subquery wraps the comparison, it contains a single %s verb for it. Negated comparisons
	// negate the whole subquery so "tag!=x" matches entities without tag x.
	Subquery string
	// Keyed fields are selected with a suffix like attribute.<key>. The key is bound to the first
	// placeholder of Subquery or Column.
	Keyed bool
}

// Fields maps lower case field names to their SQL representation.
type Fields map[string]Field

func (f Fields) names() string {
	names := make([]string, 0, len(f))
	for name, field := range f {
		if field.Keyed {
			name += ".<key>"
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

func (f Fields) lookup(selector string) (Field, string, error) {
	if field, ok := f[strings.ToLower(selector)]; ok && !field.Keyed {
		return field, "", nil
	}

	// keys like attribute names are case-sensitive
	prefix, key, found := strings.Cut(selector, ".")
	if field, ok := f[strings.ToLower(prefix)]; ok && field.Keyed && found && key != "" {
		return field, key, nil
	}

	return Field{}, "", errdef.NewBadRequest("filtering by field %q is not supported, supported fields are %s", selector, f.names())
}

// Where translates an RSQL filter into a SQL condition with ? placeholders and its arguments. An
// empty filter results in an empty condition.
func Where(filter string, fields Fields) (string, []any, error) {
	if strings.TrimSpace(filter) == "" {
		return "", nil, nil
	}

	node, err := Parse(filter)
	if err != nil {
		return "", nil, err
	}

	return translate(node, fields)
}

func translate(node Node, fields Fields) (string, []any, error) {
	switch n := node.(type) {
	case Logical:
		conditions := make([]string, 0, len(n.Children))
		var args []any
		for _, child := range n.Children {
			condition, childArgs, err := translate(child, fields)
			if err != nil {
				return "", nil, err
			}
			conditions = append(conditions, condition)
			args = append(args, childArgs...)
		}
		return "(" + strings.Join(conditions, " "+string(n.Operator)+" ") + ")", args, nil
	case Comparison:
		return comparison(n, fields)
	}
	return "", nil, fmt.Errorf("unknown filter node %T", node)
}

var sqlOperators = map[string]string{
	"==":    "=",
	"!=":    "=",
	"=lt=":  "<",
	"<":     "<",
	"=le=":  "<=",
	"<=":    "<=",
	"=gt=":  ">",
	">":     ">",
	"=ge=":  ">=",
	">=":    ">=",
	"=in=":  "IN",
	"=out=": "IN",
}

func comparison(c Comparison, fields Fields) (string, []any, error) {
	field, key, err := fields.lookup(c.Selector)
	if err != nil {
		return "", nil, err
	}

	negated := c.Operator == "!=" || c.Operator == "=out="
	values, err := convert(c, field)
	if err != nil {
		return "", nil, err
	}

	var args []any
	if field.Keyed {
		args = append(args, key)
	}

	column := field.Column
	operator := sqlOperators[c.Operator]
	var condition string
	switch {
	case operator == "IN":
		condition = column + " IN ?"
		args = append(args, values)
	case operator == "=" && isWildcard(field, values[0]):
		condition = "LOWER(" + column + ") LIKE ?"
		args = append(args, likePattern(values[0].(string)))
	default:
		condition = column + " " + operator + " ?"
		args = append(args, values[0])
	}

	if field.Subquery != "" {
		condition = fmt.Sprintf(field.Subquery, condition)
	}
	if negated {
		condition = "NOT (" + condition + ")"
	}
	return condition, args, nil
}

func isWildcard(field Field, value any) bool {
	s, ok := value.(string)
	return ok && field.Type == String && strings.Contains(s, "*")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `%`)

func likePattern(value string) string {
	return likeEscaper.Replace(strings.ToLower(value))
}

func convert(c Comparison, field Field) ([]any, error) {
	values := make([]any, 0, len(c.Arguments))
	for _, argument := range c.Arguments {
		value, err := convertValue(argument, field.Type)
		if err != nil {
			return nil, errdef.NewBadRequest("invalid value %q of field %q: %v", argument, c.Selector, err)
		}
		values = append(values, value)
	}
	return values, nil
}

func convertValue(argument string, t Type) (any, error) {
	switch t {
	case Enum:
		return strings.ToLower(argument), nil
	case Number:
		return strconv.ParseInt(argument, 10, 64)
	case Bool:
		return strconv.ParseBool(argument)
	case Time:
		millis, err := strconv.ParseInt(argument, 10, 64)
		if err != nil {
			return nil, err
		}
		return time.UnixMilli(millis), nil
	}
	return argument, nil
}
