package templating

import (
	"regexp"
	"strings"

	"github.com/CTAG07/acfget/pkg/fields"
)

// ExprKind is the shape of a conditional expression.
type ExprKind uint8

const (
	// ExprInvalid never matches.
	ExprInvalid ExprKind = iota
	// ExprTruthy is a bare FIELD.
	ExprTruthy
	// ExprNot is "not FIELD".
	ExprNot
	// ExprCompare is "FIELD OP LITERAL".
	ExprCompare
)

// Comparison operators.
const (
	OpEq          = "=="
	OpNe          = "!="
	OpGe          = ">="
	OpLe          = "<="
	OpGt          = ">"
	OpLt          = "<"
	OpContains    = "contains"
	OpNotContains = "!contains"
)

// Operand is the right-hand side of a comparison: either a literal value or a
// reference to another field written as {path}.
type Operand struct {
	Value fields.Value
	Ref   string
}

// Expr is a parsed conditional expression.
type Expr struct {
	Kind  ExprKind
	Field string
	Op    string
	Right Operand
	Raw   string
}

var (
	notExprRe     = regexp.MustCompile(`(?i)^not\s+([a-zA-Z0-9_.\-]+)$`)
	fieldExprRe   = regexp.MustCompile(`^([a-zA-Z0-9_.\-]+)$`)
	compareExprRe = regexp.MustCompile(`(?is)^([a-zA-Z0-9_.\-]+)\s*(==|!=|>=|<=|>|<|contains|!contains)\s*(.+)$`)
	fieldRefRe    = regexp.MustCompile(`^\{([^}]+)\}$`)
)

// ParseExpr parses the text between "{@if " and the closing brace. Anything
// that matches none of the three forms yields an ExprInvalid, which always
// evaluates to false.
func ParseExpr(s string) Expr {
	s = strings.TrimSpace(s)
	if m := notExprRe.FindStringSubmatch(s); m != nil {
		return Expr{Kind: ExprNot, Field: fields.NormalizeName(m[1]), Raw: s}
	}
	if m := fieldExprRe.FindStringSubmatch(s); m != nil {
		return Expr{Kind: ExprTruthy, Field: fields.NormalizeName(m[1]), Raw: s}
	}
	if m := compareExprRe.FindStringSubmatch(s); m != nil {
		return Expr{
			Kind:  ExprCompare,
			Field: fields.NormalizeName(m[1]),
			Op:    strings.ToLower(m[2]),
			Right: ParseLiteral(m[3]),
			Raw:   s,
		}
	}
	return Expr{Kind: ExprInvalid, Raw: s}
}

// ParseLiteral interprets the right operand of a comparison: a quoted string,
// a {path} field reference, null, true, false, a number, or else the bare text.
func ParseLiteral(s string) Operand {
	s = strings.TrimSpace(s)
	if n := len(s); n >= 2 && (s[0] == '"' || s[0] == '\'') && s[n-1] == s[0] {
		return Operand{Value: fields.String(s[1 : n-1])}
	}
	if m := fieldRefRe.FindStringSubmatch(s); m != nil {
		return Operand{Ref: fields.NormalizeName(m[1])}
	}
	switch strings.ToLower(s) {
	case "null":
		return Operand{Value: fields.Null{}}
	case "true":
		return Operand{Value: fields.Bool(true)}
	case "false":
		return Operand{Value: fields.Bool(false)}
	}
	if f, ok := fields.ToFloat(fields.String(s)); ok {
		return Operand{Value: fields.Number(f)}
	}
	return Operand{Value: fields.String(s)}
}

// Compare applies op to two resolved values. When both sides look numeric
// they are compared as numbers, otherwise as strings. contains tests list
// membership for a list left operand and substring containment otherwise.
func Compare(op string, left, right fields.Value) bool {
	switch op {
	case OpContains:
		return contains(left, right)
	case OpNotContains:
		return !contains(left, right)
	}

	if l, ok := fields.ToFloat(left); ok {
		if r, ok := fields.ToFloat(right); ok {
			switch op {
			case OpEq:
				return l == r
			case OpNe:
				return l != r
			case OpGe:
				return l >= r
			case OpLe:
				return l <= r
			case OpGt:
				return l > r
			case OpLt:
				return l < r
			}
			return false
		}
	}

	l, r := operandString(left), operandString(right)
	switch op {
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	case OpGe:
		return l >= r
	case OpLe:
		return l <= r
	case OpGt:
		return l > r
	case OpLt:
		return l < r
	}
	return false
}

func contains(left, right fields.Value) bool {
	needle := fields.Stringify(right)
	if list, ok := left.(fields.List); ok {
		for _, item := range list {
			if fields.Stringify(item) == needle {
				return true
			}
		}
		return false
	}
	return strings.Contains(operandString(left), needle)
}

// operandString is the text form of a comparison operand. Lists are joined
// with "," so they can be compared against literal strings.
func operandString(v fields.Value) string {
	if list, ok := v.(fields.List); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = fields.Stringify(item)
		}
		return strings.Join(parts, ",")
	}
	return fields.Stringify(v)
}
