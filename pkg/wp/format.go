package wp

import (
	"context"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/CTAG07/acfget/pkg/fields"
)

// Format converts a stored field value into the shape ACF returns when
// formatting is on, driven by the field type and its return format. Values of
// types with no special handling are returned unchanged.
func Format(ctx context.Context, lk Lookup, def FieldDef, v fields.Value) fields.Value {
	if fields.IsNull(v) {
		return fields.Null{}
	}

	switch def.Type {
	case "image":
		return formatMedia(ctx, lk, v, def.ReturnFormat, true)
	case "file":
		return formatMedia(ctx, lk, v, def.ReturnFormat, false)
	case "gallery":
		ids := IDs(v)
		out := make(fields.List, 0, len(ids))
		for _, id := range ids {
			if img := formatMedia(ctx, lk, fields.Number(id), def.ReturnFormat, true); !fields.IsNull(img) {
				out = append(out, img)
			}
		}
		return out
	case "true_false":
		return fields.Bool(isOn(v))
	case "number", "range":
		if n, ok := fields.ToFloat(v); ok {
			return fields.Number(n)
		}
		return fields.Null{}
	case "checkbox":
		if list, ok := v.(fields.List); ok {
			return list
		}
		if s := fields.Stringify(v); s != "" {
			return fields.List{fields.String(s)}
		}
		return fields.List{}
	case "relationship":
		return relations(ctx, lk, v, def, fields.RefPost, true)
	case "post_object", "page_link":
		return relations(ctx, lk, v, def, fields.RefPost, def.Multiple)
	case "taxonomy":
		_, isList := v.(fields.List)
		return relations(ctx, lk, v, def, fields.RefTerm, isList || def.Multiple)
	case "user":
		return relations(ctx, lk, v, def, fields.RefUser, def.Multiple)
	case "link":
		if s, ok := v.(fields.String); ok && def.ReturnFormat != "url" {
			return fields.Record{"url": s, "title": fields.String(""), "target": fields.String("")}
		}
		return v
	}
	return v
}

// FormatRow formats every key of a group row with the matching sub field
// definition.
func FormatRow(ctx context.Context, lk Lookup, def FieldDef, row fields.Record) fields.Record {
	out := make(fields.Record, len(row))
	for k, v := range row {
		if sub, ok := def.Sub(k); ok {
			out[k] = Format(ctx, lk, sub, v)
			continue
		}
		out[k] = v
	}
	return out
}

func formatMedia(ctx context.Context, lk Lookup, v fields.Value, returnFormat string, isImage bool) fields.Value {
	if _, ok := v.(fields.Record); ok {
		return v
	}
	n, ok := fields.ToFloat(v)
	if !ok {
		return v
	}
	id := int64(n)
	att, ok := lk.Attachment(ctx, id)
	if !ok {
		return fields.Null{}
	}

	switch returnFormat {
	case "url":
		return fields.String(att.URL)
	case "id":
		return fields.Number(id)
	}
	rec := fields.Record{
		"ID":       fields.Number(id),
		"id":       fields.Number(id),
		"url":      fields.String(att.URL),
		"title":    fields.String(att.Title),
		"filename": fields.String(path.Base(att.URL)),
	}
	if isImage {
		rec["alt"] = fields.String(att.Alt)
	}
	return rec
}

// relations expands stored ids into entities of kind. With the "id" return
// format the ids themselves are kept. Missing objects are skipped.
func relations(ctx context.Context, lk Lookup, v fields.Value, def FieldDef, kind fields.RefKind, multiple bool) fields.Value {
	ids := IDs(v)
	out := make(fields.List, 0, len(ids))
	for _, id := range ids {
		if def.ReturnFormat == "id" {
			out = append(out, fields.Number(id))
			continue
		}
		ref := fields.Ref{Kind: kind, ID: id}
		if def.Type == "page_link" {
			if link, ok := lk.Permalink(ctx, ref); ok {
				out = append(out, fields.String(link))
			}
			continue
		}
		if e, ok := lk.Entity(ctx, ref); ok {
			out = append(out, e)
		}
	}
	if multiple {
		return out
	}
	if len(out) == 0 {
		return fields.Null{}
	}
	return out[0]
}

// IDs extracts object ids from a stored relation value: a single id, a list
// of ids, a map keyed by position, or a comma separated string.
func IDs(v fields.Value) []int64 {
	switch t := v.(type) {
	case fields.Number:
		if t > 0 {
			return []int64{int64(t)}
		}
	case fields.String:
		var ids []int64
		for _, part := range strings.Split(string(t), ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil && id > 0 {
				ids = append(ids, id)
			}
		}
		return ids
	case *fields.Entity:
		if t != nil {
			return []int64{t.Ref.ID}
		}
	case fields.List:
		var ids []int64
		for _, item := range t {
			ids = append(ids, IDs(item)...)
		}
		return ids
	case fields.Record:
		if id, ok := t["ID"]; ok {
			return IDs(id)
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.Atoi(keys[i])
			b, _ := strconv.Atoi(keys[j])
			return a < b
		})
		var ids []int64
		for _, k := range keys {
			ids = append(ids, IDs(t[k])...)
		}
		return ids
	}
	return nil
}

func isOn(v fields.Value) bool {
	switch t := v.(type) {
	case fields.Bool:
		return bool(t)
	case fields.Number:
		return t != 0
	case fields.String:
		s := strings.TrimSpace(string(t))
		return s != "" && s != "0"
	}
	return false
}
