package wpstore

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/CTAG07/acfget/pkg/fields"
)

var errNotSerialized = errors.New("not a serialized value")

// looksSerialized is a cheap check for PHP serialize() output.
func looksSerialized(s string) bool {
	s = strings.TrimSpace(s)
	if s == "N;" {
		return true
	}
	if len(s) < 4 || s[1] != ':' {
		return false
	}
	switch s[0] {
	case 'a':
		return s[len(s)-1] == '}'
	case 's', 'i', 'd', 'b':
		return s[len(s)-1] == ';'
	}
	return false
}

// unserialize decodes the scalar and array subset of PHP's serialize format.
// Arrays with keys 0..n-1 in order become Lists, all others Records.
func unserialize(s string) (fields.Value, error) {
	d := &phpDecoder{s: strings.TrimSpace(s)}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.s) {
		return nil, fmt.Errorf("trailing data at offset %d", d.pos)
	}
	return v, nil
}

type phpDecoder struct {
	s   string
	pos int
}

func (d *phpDecoder) errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", d.pos, fmt.Sprintf(format, args...))
}

func (d *phpDecoder) expect(lit string) error {
	if !strings.HasPrefix(d.s[d.pos:], lit) {
		return d.errorf("expected %q", lit)
	}
	d.pos += len(lit)
	return nil
}

// until returns the text up to the next occurrence of delim and skips it.
func (d *phpDecoder) until(delim byte) (string, error) {
	end := strings.IndexByte(d.s[d.pos:], delim)
	if end < 0 {
		return "", d.errorf("missing %q", delim)
	}
	out := d.s[d.pos : d.pos+end]
	d.pos += end + 1
	return out, nil
}

func (d *phpDecoder) value() (fields.Value, error) {
	if d.pos >= len(d.s) {
		return nil, d.errorf("unexpected end of input")
	}
	switch d.s[d.pos] {
	case 'N':
		if err := d.expect("N;"); err != nil {
			return nil, err
		}
		return fields.Null{}, nil
	case 'b':
		if err := d.expect("b:"); err != nil {
			return nil, err
		}
		raw, err := d.until(';')
		if err != nil {
			return nil, err
		}
		return fields.Bool(raw == "1"), nil
	case 'i':
		if err := d.expect("i:"); err != nil {
			return nil, err
		}
		raw, err := d.until(';')
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, d.errorf("bad integer %q", raw)
		}
		return fields.Number(n), nil
	case 'd':
		if err := d.expect("d:"); err != nil {
			return nil, err
		}
		raw, err := d.until(';')
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fields.Null{}, nil
		}
		return fields.Number(f), nil
	case 's':
		return d.str()
	case 'a':
		return d.array()
	}
	return nil, errNotSerialized
}

// str decodes s:<byte length>:"<bytes>";
func (d *phpDecoder) str() (fields.Value, error) {
	if err := d.expect("s:"); err != nil {
		return nil, err
	}
	raw, err := d.until(':')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, d.errorf("bad string length %q", raw)
	}
	if err = d.expect(`"`); err != nil {
		return nil, err
	}
	if d.pos+n > len(d.s) {
		return nil, d.errorf("string length %d overruns input", n)
	}
	out := d.s[d.pos : d.pos+n]
	d.pos += n
	if err = d.expect(`";`); err != nil {
		return nil, err
	}
	return fields.String(out), nil
}

func (d *phpDecoder) array() (fields.Value, error) {
	if err := d.expect("a:"); err != nil {
		return nil, err
	}
	raw, err := d.until(':')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, d.errorf("bad array length %q", raw)
	}
	if err = d.expect("{"); err != nil {
		return nil, err
	}

	keys := make([]string, 0, n)
	vals := make([]fields.Value, 0, n)
	sequential := true
	for i := 0; i < n; i++ {
		k, err := d.value()
		if err != nil {
			return nil, err
		}
		var key string
		switch t := k.(type) {
		case fields.Number:
			key = fields.FormatNumber(float64(t))
			if int(t) != i {
				sequential = false
			}
		case fields.String:
			key = string(t)
			sequential = false
		default:
			return nil, d.errorf("unsupported array key")
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}
	if err = d.expect("}"); err != nil {
		return nil, err
	}

	if sequential {
		return fields.List(vals), nil
	}
	rec := make(fields.Record, n)
	for i, k := range keys {
		rec[k] = vals[i]
	}
	return rec, nil
}

// orderedValues returns the values of a record with numeric keys in key
// order. Non-numeric keys sort after numeric ones, by name.
func orderedValues(rec fields.Record) fields.List {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	out := make(fields.List, len(keys))
	for i, k := range keys {
		out[i] = rec[k]
	}
	return out
}

// serialize encodes v in PHP's serialize format. Whole numbers become
// integers, Entities are written as their id.
func serialize(v fields.Value) string {
	var b strings.Builder
	writeSerialized(&b, v)
	return b.String()
}

func writeSerialized(b *strings.Builder, v fields.Value) {
	switch t := v.(type) {
	case nil, fields.Null:
		b.WriteString("N;")
	case fields.Bool:
		if t {
			b.WriteString("b:1;")
		} else {
			b.WriteString("b:0;")
		}
	case fields.Number:
		f := float64(t)
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			fmt.Fprintf(b, "i:%d;", int64(f))
		} else {
			fmt.Fprintf(b, "d:%s;", strconv.FormatFloat(f, 'g', -1, 64))
		}
	case fields.String:
		fmt.Fprintf(b, "s:%d:\"%s\";", len(t), string(t))
	case *fields.Entity:
		if t == nil {
			b.WriteString("N;")
			return
		}
		fmt.Fprintf(b, "i:%d;", t.Ref.ID)
	case fields.List:
		fmt.Fprintf(b, "a:%d:{", len(t))
		for i, item := range t {
			fmt.Fprintf(b, "i:%d;", i)
			writeSerialized(b, item)
		}
		b.WriteString("}")
	case fields.Record:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(b, "a:%d:{", len(t))
		for _, k := range keys {
			if n, err := strconv.ParseInt(k, 10, 64); err == nil && strconv.FormatInt(n, 10) == k {
				fmt.Fprintf(b, "i:%d;", n)
			} else {
				writeSerialized(b, fields.String(k))
			}
			writeSerialized(b, t[k])
		}
		b.WriteString("}")
	default:
		b.WriteString("N;")
	}
}
