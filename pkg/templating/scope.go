package templating

import (
	"context"

	"github.com/CTAG07/acfget/pkg/fields"
)

// scope is one frame of the binding chain a template is evaluated in. Names
// are looked up in a frame's explicit vars first, then among the attributes of
// the row the frame iterates, before moving out to the enclosing frame.
type scope struct {
	parent *scope
	vars   fields.Record
	row    fields.Value
}

// rowScope opens a frame for the index'th (1-based) row of a loop. The row
// itself is bound as value whatever its kind, so {@value.name} reaches into a
// record row and {@value} of an entity row renders its title.
func rowScope(parent *scope, row fields.Value, index int) *scope {
	row = fields.OrNull(row)
	return &scope{
		parent: parent,
		row:    row,
		vars: fields.Record{
			"i":     fields.Number(index),
			"value": row,
		},
	}
}

// baseScope binds the context defaults: the id, title and permalink of the
// context post, and its featured image.
func (r *renderer) baseScope(ctx context.Context) *scope {
	vars := fields.Record{}
	if r.ref.Kind != fields.RefPost {
		return &scope{vars: vars}
	}

	id := fields.Number(r.ref.ID)
	vars["ID"] = id
	vars["post_id"] = id
	vars["thumbnail_id"] = fields.String("")
	vars["featured_image_url"] = fields.String("")

	if title, ok := r.src.Scalar(ctx, "post_title", r.ref, true); ok {
		vars["post_title"] = fields.OrNull(title)
	}
	if link, ok := r.src.Permalink(ctx, r.ref); ok {
		vars["permalink"] = fields.String(link)
	}
	if thumb, ok := r.src.Scalar(ctx, "thumbnail_id", r.ref, false); ok {
		if n, ok := fields.ToFloat(thumb); ok && n > 0 {
			vars["thumbnail_id"] = fields.Number(n)
			if att, ok := r.src.Attachment(ctx, int64(n)); ok {
				vars["featured_image_url"] = fields.String(att.URL)
			}
		}
	}
	return &scope{vars: vars}
}

// lookup searches the chain from the innermost frame outwards.
func (r *renderer) lookup(ctx context.Context, sc *scope, name string) (fields.Value, bool) {
	for f := sc; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return fields.OrNull(v), true
		}
		if f.row == nil {
			continue
		}
		if v, ok := r.rowAttr(ctx, f.row, name); ok {
			return fields.OrNull(v), true
		}
	}
	return nil, false
}

func (r *renderer) rowAttr(ctx context.Context, row fields.Value, name string) (fields.Value, bool) {
	switch t := row.(type) {
	case fields.Record:
		v, ok := t[name]
		return v, ok
	case *fields.Entity:
		if t == nil {
			return nil, false
		}
		switch {
		case name == "permalink":
			if link, ok := r.src.Permalink(ctx, t.Ref); ok {
				return fields.String(link), true
			}
			return nil, false
		case name == "ID" || (name == "post_id" && t.Ref.Kind == fields.RefPost) ||
			(name == "term_id" && t.Ref.Kind == fields.RefTerm):
			return fields.Number(t.Ref.ID), true
		}
		if v, ok := t.Attr(fields.Alias(name)); ok {
			return v, true
		}
		return r.src.EntityAttribute(ctx, t, name, true)
	}
	return nil, false
}
