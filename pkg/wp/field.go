package wp

import (
	"context"

	"github.com/CTAG07/acfget/pkg/fields"
)

// FieldDef is an ACF field definition.
type FieldDef struct {
	Key          string     `yaml:"key" json:"key"`
	Name         string     `yaml:"name" json:"name"`
	Type         string     `yaml:"type" json:"type"`
	ReturnFormat string     `yaml:"return_format" json:"return_format"`
	Multiple     bool       `yaml:"multiple" json:"multiple"`
	SubFields    []FieldDef `yaml:"sub_fields" json:"sub_fields"`
}

// Kind maps the definition's type to a retrieval kind.
func (d FieldDef) Kind() fields.FieldKind {
	return fields.KindFromType(d.Type)
}

// Sub returns the sub field definition with the given name.
func (d FieldDef) Sub(name string) (FieldDef, bool) {
	for _, sf := range d.SubFields {
		if sf.Name == name {
			return sf, true
		}
	}
	return FieldDef{}, false
}

// SubNames lists the names of the sub fields in declaration order.
func (d FieldDef) SubNames() []string {
	names := make([]string, 0, len(d.SubFields))
	for _, sf := range d.SubFields {
		if sf.Name != "" {
			names = append(names, sf.Name)
		}
	}
	return names
}

// Lookup is the storage access that formatting and native fallbacks need.
type Lookup interface {
	// Entity loads the post, term, user or comment ref points to.
	Entity(ctx context.Context, ref fields.Ref) (*fields.Entity, bool)

	// Attachment loads a media item by id.
	Attachment(ctx context.Context, id int64) (fields.Attachment, bool)

	// Permalink builds the public URL of ref.
	Permalink(ctx context.Context, ref fields.Ref) (string, bool)

	// RawMeta reads an unformatted meta value of ref, or a site option when
	// ref is the options reference.
	RawMeta(ctx context.Context, ref fields.Ref, key string) (fields.Value, bool)
}
