package fields

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Value is the dynamic result type threaded through path resolution. The set
// of implementations is closed: Null, String, Number, Bool, *Entity, List and
// Record.
type Value interface {
	isValue()
}

// Null is the absence of a value after resolution.
type Null struct{}

// String is a text scalar.
type String string

// Number is a numeric scalar. Integer ids are carried exactly up to 2^53.
type Number float64

// Bool is a boolean scalar.
type Bool bool

// List is an ordered sequence of values.
type List []Value

// Record is a string-keyed associative value, such as a repeater row or a
// formatted image array. Key order carries no meaning.
type Record map[string]Value

// Entity is a structured object (post, term or user) with native attributes.
// Custom fields of an entity are not stored here; they are fetched through a
// Source scoped to Ref.
type Entity struct {
	Ref   Ref
	Attrs Record
}

func (Null) isValue()    {}
func (String) isValue()  {}
func (Number) isValue()  {}
func (Bool) isValue()    {}
func (List) isValue()    {}
func (Record) isValue()  {}
func (*Entity) isValue() {}

// Attr returns a native attribute of the entity.
func (e *Entity) Attr(name string) (Value, bool) {
	if e == nil || e.Attrs == nil {
		return nil, false
	}
	v, ok := e.Attrs[name]
	return v, ok
}

// Label is the human-readable name of the entity: the title of a post, the
// name of a term, the display name of a user.
func (e *Entity) Label() string {
	var key string
	switch e.Ref.Kind {
	case RefPost:
		key = "post_title"
	case RefTerm:
		key = "name"
	case RefUser:
		key = "display_name"
	default:
		return ""
	}
	if v, ok := e.Attr(key); ok {
		return Stringify(v)
	}
	return ""
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// OrNull maps a nil Value to Null.
func OrNull(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}

// Truthy is false for Null, false, the empty string and empty lists/records.
// Everything else, including the number 0 and the string "0", is true.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(t)
	case String:
		return t != ""
	case List:
		return len(t) > 0
	case Record:
		return len(t) > 0
	case *Entity:
		return t != nil
	default:
		return true
	}
}

// FormatNumber renders a number the way PHP casts a float to string for
// ordinary magnitudes: integers without a fractional part, otherwise the
// shortest representation.
func FormatNumber(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return ""
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Stringify converts any Value to its plain text form. Entities render their
// label, records prefer a "url" then a "guid" string, and lists join their
// scalar and entity members with ", ".
func Stringify(v Value) string {
	switch t := v.(type) {
	case nil, Null:
		return ""
	case String:
		return string(t)
	case Number:
		return FormatNumber(float64(t))
	case Bool:
		if t {
			return "1"
		}
		return ""
	case *Entity:
		if t == nil {
			return ""
		}
		return t.Label()
	case Record:
		if u, ok := t["url"].(String); ok {
			return string(u)
		}
		if g, ok := t["guid"].(String); ok {
			return string(g)
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, memberString(t[k]))
		}
		return strings.Join(parts, ", ")
	case List:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, memberString(item))
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// memberString stringifies a member of a joined collection. Nested lists and
// records collapse to the empty string.
func memberString(v Value) string {
	switch v.(type) {
	case List, Record:
		return ""
	}
	return Stringify(v)
}

// LooksNumeric reports whether v is a number or a string PHP would accept as
// numeric (optional surrounding whitespace, sign, decimals, exponent).
func LooksNumeric(v Value) bool {
	_, ok := ToFloat(v)
	return ok
}

// ToFloat converts numbers and numeric strings to float64.
func ToFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case Number:
		return float64(t), true
	case String:
		return parseNumeric(string(t))
	}
	return 0, false
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// ParseFloat accepts forms PHP does not: hex, underscores, inf and nan.
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			continue
		}
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FromAny converts decoded Go data (JSON, YAML or database scalars) into a
// Value. Unknown types become Null.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null{}
	case Value:
		return t
	case string:
		return String(t)
	case []byte:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Number(t)
	case int32:
		return Number(t)
	case int64:
		return Number(t)
	case uint64:
		return Number(t)
	case float32:
		return Number(t)
	case float64:
		return Number(t)
	case []any:
		out := make(List, 0, len(t))
		for _, item := range t {
			out = append(out, FromAny(item))
		}
		return out
	case map[string]any:
		out := make(Record, len(t))
		for k, item := range t {
			out[k] = FromAny(item)
		}
		return out
	case map[any]any:
		out := make(Record, len(t))
		for k, item := range t {
			out[Stringify(FromAny(k))] = FromAny(item)
		}
		return out
	}
	return Null{}
}
