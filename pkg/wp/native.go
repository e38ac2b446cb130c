package wp

import (
	"context"
	"strings"

	"github.com/CTAG07/acfget/pkg/fields"
)

var userAliases = map[string]string{
	"name":     "display_name",
	"email":    "user_email",
	"login":    "user_login",
	"url":      "user_url",
	"nicename": "user_nicename",
}

// Native resolves name against the built-in attributes of the object ref
// points to. It is consulted after custom fields. Posts additionally expose
// permalink, the featured image id (thumbnail_id) and the featured image
// itself (featured_image, post_thumbnail, thumbnail), formatted as an image
// record or left as the raw id. Options fall back to the raw site option.
func Native(ctx context.Context, lk Lookup, ref fields.Ref, name string, formatted bool) (fields.Value, bool) {
	switch ref.Kind {
	case fields.RefOption:
		return lk.RawMeta(ctx, ref, name)
	case fields.RefNone:
		return nil, false
	}

	if name == "permalink" {
		if link, ok := lk.Permalink(ctx, ref); ok {
			return fields.String(link), true
		}
		return nil, false
	}

	if ref.Kind == fields.RefPost {
		switch name {
		case "thumbnail_id", "_thumbnail_id":
			return thumbnailID(ctx, lk, ref)
		case "featured_image", "post_thumbnail", "thumbnail":
			id, ok := thumbnailID(ctx, lk, ref)
			if !ok || !formatted {
				return id, ok
			}
			img := formatMedia(ctx, lk, id, "array", true)
			return img, !fields.IsNull(img)
		}
	}

	e, ok := lk.Entity(ctx, ref)
	if !ok {
		return nil, false
	}

	var candidates []string
	switch ref.Kind {
	case fields.RefPost:
		candidates = []string{name, "post_" + name}
	case fields.RefTerm:
		candidates = []string{name, "term_" + name}
	case fields.RefUser:
		if strings.Contains(name, "pass") || name == "user_activation_key" {
			return nil, false
		}
		if alias, ok := userAliases[name]; ok {
			name = alias
		}
		candidates = []string{name, "user_" + name}
	case fields.RefComment:
		candidates = []string{name, "comment_" + name}
	}
	for _, c := range candidates {
		if v, ok := e.Attr(c); ok {
			return v, true
		}
	}
	return nil, false
}

func thumbnailID(ctx context.Context, lk Lookup, ref fields.Ref) (fields.Value, bool) {
	v, ok := lk.RawMeta(ctx, ref, "_thumbnail_id")
	if !ok {
		return nil, false
	}
	n, ok := fields.ToFloat(v)
	if !ok || n <= 0 {
		return nil, false
	}
	return fields.Number(n), true
}

// EntityAttribute resolves attr on an entity: first its native attributes,
// then the scalar lookup scoped to the entity's own reference.
func EntityAttribute(ctx context.Context, src fields.Source, e *fields.Entity, attr string, formatted bool) (fields.Value, bool) {
	if e == nil {
		return nil, false
	}
	if v, ok := e.Attr(attr); ok {
		return v, true
	}
	return src.Scalar(ctx, attr, e.Ref, formatted)
}
