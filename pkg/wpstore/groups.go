package wpstore

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/wp"
)

type groupStrategy struct {
	name string
	rows func(s *Store, ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.List, bool)
}

// groupStrategies are tried in order; the first present result wins.
var groupStrategies = []groupStrategy{
	{"definition", (*Store).rowsByDefinition},
	{"stored-array", (*Store).rowsFromArray},
	{"count-scan", (*Store).rowsByCount},
	{"probe", (*Store).rowsByProbe},
}

// GroupRows returns the rows of a repeater or flexible content field as
// Records keyed by sub field name.
func (s *Store) GroupRows(ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.List, bool) {
	if ref.IsZero() {
		return nil, false
	}
	for _, st := range groupStrategies {
		if rows, ok := st.rows(s, ctx, name, ref, formatted); ok {
			s.logger.DebugContext(ctx, "group rows resolved", "field", name, "ctx", ref.String(), "strategy", st.name, "rows", len(rows))
			return rows, true
		}
	}
	return nil, false
}

// rowCount reads the row count ACF stores under the field name itself.
func (s *Store) rowCount(ctx context.Context, name string, ref fields.Ref) (int, bool) {
	v, ok := s.fieldMeta(ctx, ref, name)
	if !ok {
		return 0, false
	}
	// Flexible content stores the list of layouts instead of a count.
	if list, ok := v.(fields.List); ok {
		for _, layout := range list {
			if _, ok := layout.(fields.String); !ok {
				return 0, false
			}
		}
		return len(list), true
	}
	n, ok := fields.ToFloat(v)
	if !ok || n < 0 {
		return 0, false
	}
	return int(n), true
}

// rowsByDefinition reads count rows with the sub field names of the field's
// definition. Nested repeaters are read recursively.
func (s *Store) rowsByDefinition(ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.List, bool) {
	def, ok := s.fieldDef(ctx, name, ref)
	if !ok || def.Kind() != fields.KindRepeater || len(def.SubFields) == 0 {
		return nil, false
	}
	return s.definedRows(ctx, def, name, ref, formatted)
}

func (s *Store) definedRows(ctx context.Context, def wp.FieldDef, prefix string, ref fields.Ref, formatted bool) (fields.List, bool) {
	count, ok := s.rowCount(ctx, prefix, ref)
	if !ok {
		return nil, false
	}
	layouts, _ := s.fieldMeta(ctx, ref, prefix)
	layoutList, _ := layouts.(fields.List)

	rows := make(fields.List, 0, count)
	for i := 0; i < count; i++ {
		rowPrefix := prefix + "_" + strconv.Itoa(i) + "_"
		row := make(fields.Record, len(def.SubFields)+1)
		if i < len(layoutList) {
			row["acf_fc_layout"] = layoutList[i]
		}
		for _, sub := range def.SubFields {
			key := rowPrefix + sub.Name
			if sub.Kind() == fields.KindRepeater && len(sub.SubFields) > 0 {
				if nested, ok := s.definedRows(ctx, sub, key, ref, formatted); ok {
					row[sub.Name] = nested
					continue
				}
			}
			v, ok := s.fieldMeta(ctx, ref, key)
			if !ok {
				row[sub.Name] = fields.Null{}
				continue
			}
			if formatted {
				v = wp.Format(ctx, s, sub, v)
			}
			row[sub.Name] = v
		}
		rows = append(rows, row)
	}
	return rows, true
}

// rowsFromArray accepts rows stored as a serialized or JSON array of records.
func (s *Store) rowsFromArray(ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.List, bool) {
	v, ok := s.fieldMeta(ctx, ref, name)
	if !ok {
		return nil, false
	}
	var items fields.List
	switch t := v.(type) {
	case fields.List:
		items = t
	case fields.Record:
		items = orderedValues(t)
	default:
		return nil, false
	}

	var def wp.FieldDef
	if formatted {
		def, _ = s.fieldDef(ctx, name, ref)
	}
	rows := make(fields.List, 0, len(items))
	for _, item := range items {
		row, ok := item.(fields.Record)
		if !ok {
			return nil, false
		}
		if formatted {
			row = wp.FormatRow(ctx, s, def, row)
		}
		rows = append(rows, row)
	}
	return rows, true
}

// rowsByCount reads count rows whose sub field names are discovered from the
// stored keys. Without a definition any numeric meta looks like a count, so
// the count is only believed once row 0 is found, and the scan stops at the
// first missing row or after MaxRowProbes rows.
func (s *Store) rowsByCount(ctx context.Context, name string, ref fields.Ref, _ bool) (fields.List, bool) {
	count, ok := s.rowCount(ctx, name, ref)
	if !ok {
		return nil, false
	}
	if count == 0 {
		return fields.List{}, true
	}
	count = min(count, s.config.MaxRowProbes)

	var rows fields.List
	for i := 0; i < count; i++ {
		row, ok := s.scanRow(ctx, name, ref, i)
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, false
	}
	return rows, true
}

// rowsByProbe scans rows from index 0 until the first index with no stored
// keys, up to the configured probe ceiling.
func (s *Store) rowsByProbe(ctx context.Context, name string, ref fields.Ref, _ bool) (fields.List, bool) {
	var rows fields.List
	for i := 0; i < s.config.MaxRowProbes; i++ {
		row, ok := s.scanRow(ctx, name, ref, i)
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, false
	}
	return rows, true
}

// scanRow collects the keys "<name>_<i>_<sub>" of one row. Keys belonging to
// nested rows ("<sub>_<j>_<x>") are left out.
func (s *Store) scanRow(ctx context.Context, name string, ref fields.Ref, i int) (fields.Record, bool) {
	found, ok := s.fieldMetaPrefixed(ctx, ref, name+"_"+strconv.Itoa(i)+"_")
	row := make(fields.Record, len(found))
	if !ok {
		return row, false
	}
	subs := make([]string, 0, len(found))
	for sub := range found {
		subs = append(subs, sub)
	}
	sort.Strings(subs)
	for _, sub := range subs {
		if sub == "" || isNestedRowKey(sub, found) {
			continue
		}
		row[sub] = found[sub]
	}
	return row, true
}

// isNestedRowKey reports whether key looks like "<parent>_<j>_<x>" for a
// parent key that is also present.
func isNestedRowKey(key string, siblings map[string]fields.Value) bool {
	parts := strings.Split(key, "_")
	for j := 1; j < len(parts)-1; j++ {
		if _, err := strconv.Atoi(parts[j]); err != nil {
			continue
		}
		if _, ok := siblings[strings.Join(parts[:j], "_")]; ok {
			return true
		}
	}
	return false
}

// RelationItems returns the objects a relational field points to as
// entities, or their ids when formatting is off. A single stored id becomes a
// one-element list.
func (s *Store) RelationItems(ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.List, bool) {
	if ref.IsZero() {
		return nil, false
	}
	v, ok := s.fieldMeta(ctx, ref, name)
	if !ok {
		return nil, false
	}
	ids := wp.IDs(v)
	items := make(fields.List, 0, len(ids))
	if !formatted {
		for _, id := range ids {
			items = append(items, fields.Number(id))
		}
		return items, true
	}

	kind := fields.RefPost
	if def, ok := s.fieldDef(ctx, name, ref); ok {
		switch def.Type {
		case "user":
			kind = fields.RefUser
		case "taxonomy":
			kind = fields.RefTerm
		}
	}
	for _, id := range ids {
		if e, ok := s.Entity(ctx, fields.Ref{Kind: kind, ID: id}); ok {
			items = append(items, e)
		}
	}
	return items, true
}
