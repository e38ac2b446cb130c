package fields

import "context"

// FieldKind is the declared storage shape of a custom field, used to pick a
// retrieval strategy when a path is resolved in auto mode.
type FieldKind uint8

const (
	KindUnknown FieldKind = iota
	KindOther
	KindRepeater
	KindRelation
)

func (k FieldKind) String() string {
	switch k {
	case KindOther:
		return "other"
	case KindRepeater:
		return "repeater"
	case KindRelation:
		return "relation"
	}
	return "unknown"
}

// KindFromType maps an ACF-style field type name to a FieldKind.
func KindFromType(fieldType string) FieldKind {
	switch fieldType {
	case "":
		return KindUnknown
	case "repeater", "flexible_content":
		return KindRepeater
	case "relationship", "post_object", "page_link", "taxonomy", "user":
		return KindRelation
	}
	return KindOther
}

// Attachment is the canonical description of a media item.
type Attachment struct {
	ID    int64
	URL   string
	Alt   string
	Title string
}

// Source is the field data collaborator the resolver and the template engine
// consume. Lookups never fail loudly: a missing field, a missing object or a
// storage error are all reported as absent (false).
type Source interface {
	// Scalar returns the value of a named field, falling back to native
	// attributes of the referenced object.
	Scalar(ctx context.Context, name string, ref Ref, formatted bool) (Value, bool)

	// GroupRows returns the rows of a repeatable field group as Records.
	GroupRows(ctx context.Context, name string, ref Ref, formatted bool) (List, bool)

	// RelationItems returns the items of a relational field. A single related
	// item is returned as a one-element list.
	RelationItems(ctx context.Context, name string, ref Ref, formatted bool) (List, bool)

	// EntityAttribute returns a native attribute of e, or the custom field of
	// that name scoped to the entity's own reference.
	EntityAttribute(ctx context.Context, e *Entity, attr string, formatted bool) (Value, bool)

	// FieldKind reports the declared kind of a field for auto retrieval.
	FieldKind(ctx context.Context, name string, ref Ref) FieldKind

	// Permalink returns the public URL of a post, term or user.
	Permalink(ctx context.Context, ref Ref) (string, bool)

	// Attachment looks up a media item by id.
	Attachment(ctx context.Context, id int64) (Attachment, bool)
}
