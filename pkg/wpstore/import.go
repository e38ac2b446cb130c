package wpstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/fixture"
	"github.com/CTAG07/acfget/pkg/wp"
)

// ImportFixture writes a fixture document into the database with ACF storage
// conventions, so the same content can be served by either source. Field
// definitions are inserted last so their generated ids never collide with
// the fixture's own object ids.
func ImportFixture(ctx context.Context, w *Writer, doc fixture.Document) error {
	defs := make(map[string]wp.FieldDef, len(doc.Fields))
	for _, def := range doc.Fields {
		defs[def.Name] = def
	}

	setFields := func(ref fields.Ref, values map[string]any) error {
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			norm := fields.NormalizeName(name)
			if err := w.SetField(ctx, ref, defs[norm], norm, fields.FromAny(values[name])); err != nil {
				return fmt.Errorf("failed to import field %s of %s: %w", norm, ref.String(), err)
			}
		}
		return nil
	}

	for _, p := range doc.Posts {
		if p.Type == "" {
			p.Type = "post"
		}
		if p.Status == "" {
			p.Status = "publish"
		}
		if err := w.InsertPost(ctx, p.Post); err != nil {
			return err
		}
		ref := fields.PostRef(p.ID)
		if p.Thumbnail > 0 {
			if err := w.SetMeta(ctx, ref, "_thumbnail_id", strconv.FormatInt(p.Thumbnail, 10)); err != nil {
				return err
			}
		}
		if err := setFields(ref, p.Fields); err != nil {
			return err
		}
	}
	for _, t := range doc.Terms {
		if err := w.InsertTerm(ctx, t.Term); err != nil {
			return err
		}
		if err := setFields(fields.TermRef(t.ID), t.Fields); err != nil {
			return err
		}
	}
	for _, u := range doc.Users {
		if err := w.InsertUser(ctx, u.User); err != nil {
			return err
		}
		if err := setFields(fields.UserRef(u.ID), u.Fields); err != nil {
			return err
		}
	}
	for _, c := range doc.Comments {
		if err := w.InsertComment(ctx, c.Comment); err != nil {
			return err
		}
		if err := setFields(fields.CommentRef(c.ID), c.Fields); err != nil {
			return err
		}
	}
	for _, a := range doc.Attachments {
		if err := w.InsertPost(ctx, wp.Post{ID: a.ID, Title: a.Title, GUID: a.URL, Type: "attachment", Status: "inherit"}); err != nil {
			return err
		}
		ref := fields.PostRef(a.ID)
		if err := w.SetMeta(ctx, ref, "_wp_attached_file", a.URL); err != nil {
			return err
		}
		if a.Alt != "" {
			if err := w.SetMeta(ctx, ref, "_wp_attachment_image_alt", a.Alt); err != nil {
				return err
			}
		}
	}
	if err := setFields(fields.Option, doc.Options); err != nil {
		return err
	}

	for _, def := range doc.Fields {
		if _, err := w.InsertFieldDef(ctx, def, 0); err != nil {
			return err
		}
	}
	return nil
}
