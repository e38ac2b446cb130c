package wpstore

import (
	"context"
	"database/sql"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/wp"
)

// maxSubFieldDepth bounds how many levels of nested group fields are loaded.
const maxSubFieldDepth = 4

// fieldDef finds the definition of the field name as used on ref. The field
// key stored next to the value ("_<name>") is preferred; without one the
// first top-level field with that name is used.
func (s *Store) fieldDef(ctx context.Context, name string, ref fields.Ref) (wp.FieldDef, bool) {
	keyName := "_" + name
	if ref.Kind == fields.RefOption {
		keyName = "_" + optionPrefix + name
	}
	if key, ok := s.rawMetaString(ctx, ref, keyName); ok && key != "" {
		if def, ok := s.loadField(ctx, s.stmtFieldByKey.QueryRowContext(ctx, key), 0); ok {
			return def, true
		}
	}
	return s.loadField(ctx, s.stmtFieldByName.QueryRowContext(ctx, name), 0)
}

// loadField scans an acf-field post and loads its sub fields.
func (s *Store) loadField(ctx context.Context, row *sql.Row, depth int) (wp.FieldDef, bool) {
	var (
		id       int64
		key      string
		name     string
		settings string
	)
	if err := row.Scan(&id, &key, &name, &settings); err != nil {
		s.absent(ctx, err, "field definition")
		return wp.FieldDef{}, false
	}
	def := parseFieldSettings(key, name, settings)
	if def.Kind() == fields.KindRepeater && depth < maxSubFieldDepth {
		def.SubFields = s.subFields(ctx, id, depth+1)
	}
	return def, true
}

func (s *Store) subFields(ctx context.Context, parentID int64, depth int) []wp.FieldDef {
	rows, err := s.stmtSubFields.QueryContext(ctx, parentID)
	if err != nil {
		s.absent(ctx, err, "sub fields", "parent", parentID)
		return nil
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	type pending struct {
		id  int64
		def wp.FieldDef
	}
	var found []pending
	for rows.Next() {
		var (
			id       int64
			key      string
			name     string
			settings string
		)
		if err = rows.Scan(&id, &key, &name, &settings); err != nil {
			s.absent(ctx, err, "sub fields", "parent", parentID)
			return nil
		}
		found = append(found, pending{id: id, def: parseFieldSettings(key, name, settings)})
	}
	if err = rows.Err(); err != nil {
		s.absent(ctx, err, "sub fields", "parent", parentID)
		return nil
	}

	// Nested definitions are loaded after the cursor is released.
	defs := make([]wp.FieldDef, len(found))
	for i, f := range found {
		if f.def.Kind() == fields.KindRepeater && depth < maxSubFieldDepth {
			f.def.SubFields = s.subFields(ctx, f.id, depth+1)
		}
		defs[i] = f.def
	}
	return defs
}

// parseFieldSettings reads the serialized settings array of an acf-field post.
func parseFieldSettings(key, name, settings string) wp.FieldDef {
	def := wp.FieldDef{Key: key, Name: name}
	v, err := unserialize(settings)
	if err != nil {
		return def
	}
	rec, ok := v.(fields.Record)
	if !ok {
		return def
	}
	def.Type = fields.Stringify(rec["type"])
	def.ReturnFormat = fields.Stringify(rec["return_format"])
	if def.Type == "taxonomy" {
		switch fields.Stringify(rec["field_type"]) {
		case "checkbox", "multi_select":
			def.Multiple = true
		}
	} else {
		def.Multiple = fields.Truthy(rec["multiple"]) && fields.Stringify(rec["multiple"]) != "0"
	}
	return def
}
