package fields

import (
	"context"
	"io"
	"log/slog"
	"strconv"
)

// Aliases maps convenience names to the native attribute they stand for.
var Aliases = map[string]string{
	"title":     "post_title",
	"content":   "post_content",
	"excerpt":   "post_excerpt",
	"slug":      "post_name",
	"date":      "post_date",
	"modified":  "post_modified",
	"author":    "post_author",
	"type":      "post_type",
	"status":    "post_status",
	"permalink": "permalink",
}

// Alias returns the canonical lookup name for a field name.
func Alias(name string) string {
	if a, ok := Aliases[name]; ok {
		return a
	}
	return name
}

// Resolver walks dotted paths against a Source. It holds no per-call state,
// so a single Resolver can serve concurrent renders.
type Resolver struct {
	src    Source
	logger *slog.Logger
}

// NewResolver creates a Resolver over src. Logging is discarded until
// SetLogger is called.
func NewResolver(src Source) *Resolver {
	return &Resolver{
		src:    src,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger used for debug tracing of retrieval decisions.
func (r *Resolver) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Source returns the underlying field data source.
func (r *Resolver) Source() Source {
	return r.src
}

// Resolve evaluates path against ref. The result is Null when any part of the
// path cannot be resolved.
func (r *Resolver) Resolve(ctx context.Context, path Path, ref Ref, formatted bool) Value {
	if len(path.Segments) == 0 {
		return Null{}
	}
	v := r.Root(ctx, path.Head(), ref, formatted, path.Mode)
	for _, seg := range path.Tail() {
		v = r.Step(ctx, v, seg, formatted)
	}
	return v
}

// ResolveString parses s in auto mode and resolves it.
func (r *Resolver) ResolveString(ctx context.Context, s string, ref Ref, formatted bool) Value {
	path, ok := ParsePath(s, ModeAuto)
	if !ok {
		return Null{}
	}
	return r.Resolve(ctx, path, ref, formatted)
}

// Root retrieves the first segment of a path. A repeater hint or a field
// declared as a repeater is read as group rows, a relation hint or a
// relation-like field as relation items; everything else, and any group or
// relation lookup that comes back empty-handed, goes through Scalar.
func (r *Resolver) Root(ctx context.Context, name string, ref Ref, formatted bool, mode Mode) Value {
	if ref.IsZero() {
		return Null{}
	}

	kind := KindUnknown
	if mode == ModeAuto {
		kind = r.src.FieldKind(ctx, name, ref)
	}

	switch {
	case mode == ModeRepeater || kind == KindRepeater:
		if rows, ok := r.src.GroupRows(ctx, name, ref, formatted); ok {
			return rows
		}
		r.logger.DebugContext(ctx, "group rows absent, falling back to scalar", "field", name, "ctx", ref.String())
	case mode == ModeRelation || kind == KindRelation:
		if items, ok := r.src.RelationItems(ctx, name, ref, formatted); ok {
			return items
		}
		r.logger.DebugContext(ctx, "relation items absent, falling back to scalar", "field", name, "ctx", ref.String())
	}

	if v, ok := r.src.Scalar(ctx, Alias(name), ref, formatted); ok {
		return OrNull(v)
	}
	return Null{}
}

// Step applies one path segment to v. Lists are broadcast: the result has the
// same length as v and element i is Step(v[i], seg), unless seg is a numeric
// index.
func (r *Resolver) Step(ctx context.Context, v Value, seg string, formatted bool) Value {
	switch t := v.(type) {
	case *Entity:
		if t == nil {
			return Null{}
		}
		if seg == "permalink" {
			if link, ok := r.src.Permalink(ctx, t.Ref); ok {
				return String(link)
			}
			return Null{}
		}
		if attr, ok := t.Attr(seg); ok {
			return OrNull(attr)
		}
		if attr, ok := r.src.EntityAttribute(ctx, t, seg, formatted); ok {
			return OrNull(attr)
		}
		return Null{}
	case List:
		if idx, err := strconv.Atoi(seg); err == nil {
			if idx < 0 || idx >= len(t) {
				return Null{}
			}
			return OrNull(t[idx])
		}
		out := make(List, len(t))
		for i, item := range t {
			out[i] = r.Step(ctx, item, seg, formatted)
		}
		return out
	case Record:
		if item, ok := t[seg]; ok {
			return OrNull(item)
		}
		return Null{}
	}
	return Null{}
}
