package wpstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/wp"
)

// optionPrefix is prepended to the names of option-page fields.
const optionPrefix = "options_"

// decodeMeta turns a stored meta string into a Value. Serialized PHP arrays
// and JSON arrays or objects are decoded; everything else stays a string.
func decodeMeta(raw string) fields.Value {
	if looksSerialized(raw) {
		if v, err := unserialize(raw); err == nil {
			return v
		}
	}
	if t := strings.TrimSpace(raw); len(t) > 1 && (t[0] == '[' || t[0] == '{') {
		var x any
		if err := json.Unmarshal([]byte(t), &x); err == nil {
			return fields.FromAny(x)
		}
	}
	return fields.String(raw)
}

// rawMetaString reads one meta value of ref. For the options reference key
// names an option directly.
func (s *Store) rawMetaString(ctx context.Context, ref fields.Ref, key string) (string, bool) {
	var (
		value sql.NullString
		err   error
	)
	if ref.Kind == fields.RefOption {
		err = s.stmtOption.QueryRowContext(ctx, key).Scan(&value)
	} else {
		stmt, ok := s.stmtMeta[ref.Kind]
		if !ok {
			return "", false
		}
		err = stmt.QueryRowContext(ctx, ref.ID, key).Scan(&value)
	}
	if err != nil {
		s.absent(ctx, err, "meta", "ref", ref.String(), "key", key)
		return "", false
	}
	return value.String, true
}

// RawMeta returns the decoded, unformatted meta value of key. For the options
// reference it reads the site option named key.
func (s *Store) RawMeta(ctx context.Context, ref fields.Ref, key string) (fields.Value, bool) {
	raw, ok := s.rawMetaString(ctx, ref, key)
	if !ok {
		return nil, false
	}
	return decodeMeta(raw), true
}

// fieldMeta reads the stored value of an ACF field: meta on objects, the
// "options_" prefixed option on the options page.
func (s *Store) fieldMeta(ctx context.Context, ref fields.Ref, name string) (fields.Value, bool) {
	if ref.Kind == fields.RefOption {
		name = optionPrefix + name
	}
	return s.RawMeta(ctx, ref, name)
}

// escapeLike escapes LIKE wildcards with '!'.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

// fieldMetaPrefixed returns every field meta of ref whose key starts with
// prefix, keyed by the rest of the key. Keys of hidden meta ("_" prefixed)
// never match because prefix is a field name.
func (s *Store) fieldMetaPrefixed(ctx context.Context, ref fields.Ref, prefix string) (map[string]fields.Value, bool) {
	var (
		rows *sql.Rows
		err  error
	)
	strip := prefix
	if ref.Kind == fields.RefOption {
		strip = optionPrefix + prefix
		rows, err = s.stmtOptionLike.QueryContext(ctx, escapeLike(strip)+"%")
	} else {
		stmt, ok := s.stmtMetaLike[ref.Kind]
		if !ok {
			return nil, false
		}
		rows, err = stmt.QueryContext(ctx, ref.ID, escapeLike(strip)+"%")
	}
	if err != nil {
		s.absent(ctx, err, "meta scan", "ref", ref.String(), "prefix", prefix)
		return nil, false
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	out := make(map[string]fields.Value)
	for rows.Next() {
		var key string
		var value sql.NullString
		if err = rows.Scan(&key, &value); err != nil {
			s.absent(ctx, err, "meta scan", "ref", ref.String(), "prefix", prefix)
			return nil, false
		}
		rest := strings.TrimPrefix(key, strip)
		if _, seen := out[rest]; !seen {
			out[rest] = decodeMeta(value.String)
		}
	}
	if err = rows.Err(); err != nil {
		s.absent(ctx, err, "meta scan", "ref", ref.String(), "prefix", prefix)
		return nil, false
	}
	return out, len(out) > 0
}

type scalarStrategy struct {
	name    string
	resolve func(s *Store, ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.Value, bool)
}

// scalarStrategies are tried in order; the first present result wins.
var scalarStrategies = []scalarStrategy{
	{"acf", (*Store).acfScalar},
	{"native", (*Store).nativeScalar},
}

// Scalar returns a custom field value, formatted by its definition when
// formatted is set, falling back to native attributes of the object.
func (s *Store) Scalar(ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.Value, bool) {
	if ref.IsZero() {
		return nil, false
	}
	for _, st := range scalarStrategies {
		if v, ok := st.resolve(s, ctx, name, ref, formatted); ok {
			return v, true
		}
	}
	return nil, false
}

func (s *Store) acfScalar(ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.Value, bool) {
	raw, ok := s.fieldMeta(ctx, ref, name)
	if !ok {
		return nil, false
	}
	if !formatted {
		return raw, true
	}
	def, ok := s.fieldDef(ctx, name, ref)
	if !ok {
		return raw, true
	}
	if def.Kind() == fields.KindRepeater {
		if rows, ok := s.GroupRows(ctx, name, ref, true); ok {
			return rows, true
		}
	}
	return wp.Format(ctx, s, def, raw), true
}

func (s *Store) nativeScalar(ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.Value, bool) {
	return wp.Native(ctx, s, ref, name, formatted)
}
