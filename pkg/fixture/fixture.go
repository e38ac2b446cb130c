// Package fixture implements a fields.Source over an in-memory object graph
// loaded from YAML. It is used for local template development and tests.
package fixture

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/wp"
)

// Document is the YAML layout of a fixture file.
type Document struct {
	SiteURL     string         `yaml:"site_url"`
	Fields      []wp.FieldDef  `yaml:"fields"`
	Posts       []Post         `yaml:"posts"`
	Terms       []Term         `yaml:"terms"`
	Users       []User         `yaml:"users"`
	Comments    []Comment      `yaml:"comments"`
	Options     map[string]any `yaml:"options"`
	Attachments []Attachment   `yaml:"attachments"`
}

type Post struct {
	wp.Post   `yaml:",inline"`
	Thumbnail int64          `yaml:"thumbnail"`
	Fields    map[string]any `yaml:"fields"`
}

type Term struct {
	wp.Term `yaml:",inline"`
	Fields  map[string]any `yaml:"fields"`
}

type User struct {
	wp.User `yaml:",inline"`
	Fields  map[string]any `yaml:"fields"`
}

type Comment struct {
	wp.Comment `yaml:",inline"`
	Fields     map[string]any `yaml:"fields"`
}

type Attachment struct {
	ID    int64  `yaml:"id"`
	URL   string `yaml:"url"`
	Alt   string `yaml:"alt"`
	Title string `yaml:"title"`
}

// Store is an immutable fields.Source built from a Document. It is safe for
// concurrent use.
type Store struct {
	links       wp.Links
	defs        map[string]wp.FieldDef
	posts       map[int64]Post
	terms       map[int64]Term
	users       map[int64]User
	comments    map[int64]Comment
	attachments map[int64]fields.Attachment
	values      map[fields.Ref]fields.Record
}

// Load reads and parses a fixture file.
func Load(path string) (*Store, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	return New(doc), nil
}

// LoadDocument reads and decodes a fixture file without building a Store.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	var doc Document
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return doc, nil
}

// Parse builds a Store from YAML.
func Parse(data []byte) (*Store, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return New(doc), nil
}

// New builds a Store from a decoded Document. Objects sharing an id replace
// earlier ones.
func New(doc Document) *Store {
	s := &Store{
		links:       wp.Links{SiteURL: doc.SiteURL},
		defs:        make(map[string]wp.FieldDef, len(doc.Fields)),
		posts:       make(map[int64]Post, len(doc.Posts)),
		terms:       make(map[int64]Term, len(doc.Terms)),
		users:       make(map[int64]User, len(doc.Users)),
		comments:    make(map[int64]Comment, len(doc.Comments)),
		attachments: make(map[int64]fields.Attachment, len(doc.Attachments)),
		values:      make(map[fields.Ref]fields.Record),
	}
	for _, d := range doc.Fields {
		s.defs[d.Name] = d
	}
	for _, p := range doc.Posts {
		if p.Type == "" {
			p.Type = "post"
		}
		if p.Status == "" {
			p.Status = "publish"
		}
		s.posts[p.ID] = p
		s.values[fields.PostRef(p.ID)] = record(p.Fields)
	}
	for _, t := range doc.Terms {
		s.terms[t.ID] = t
		s.values[fields.TermRef(t.ID)] = record(t.Fields)
	}
	for _, u := range doc.Users {
		s.users[u.ID] = u
		s.values[fields.UserRef(u.ID)] = record(u.Fields)
	}
	for _, c := range doc.Comments {
		s.comments[c.ID] = c
		s.values[fields.CommentRef(c.ID)] = record(c.Fields)
	}
	s.values[fields.Option] = record(doc.Options)
	for _, a := range doc.Attachments {
		s.attachments[a.ID] = fields.Attachment{ID: a.ID, URL: a.URL, Alt: a.Alt, Title: a.Title}
	}
	return s
}

func record(m map[string]any) fields.Record {
	rec := make(fields.Record, len(m))
	for k, v := range m {
		rec[fields.NormalizeName(k)] = fields.FromAny(v)
	}
	return rec
}

func (s *Store) custom(ref fields.Ref, name string) (fields.Value, bool) {
	v, ok := s.values[ref][name]
	return v, ok
}

// Scalar returns the custom field, formatted by its definition when one
// exists, and otherwise the native attribute.
func (s *Store) Scalar(ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.Value, bool) {
	if v, ok := s.custom(ref, name); ok {
		if def, ok := s.defs[name]; ok && formatted {
			return wp.Format(ctx, s, def, v), true
		}
		return v, true
	}
	return wp.Native(ctx, s, ref, name, formatted)
}

// GroupRows returns the records of a list-valued field. Items that are not
// records are skipped.
func (s *Store) GroupRows(ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.List, bool) {
	v, ok := s.custom(ref, name)
	if !ok {
		return nil, false
	}
	list, ok := v.(fields.List)
	if !ok {
		return nil, false
	}
	def := s.defs[name]
	rows := make(fields.List, 0, len(list))
	for _, item := range list {
		row, ok := item.(fields.Record)
		if !ok {
			continue
		}
		if formatted {
			row = wp.FormatRow(ctx, s, def, row)
		}
		rows = append(rows, row)
	}
	return rows, true
}

// RelationItems returns the entities a relation field points to, or their
// ids when formatting is off.
func (s *Store) RelationItems(ctx context.Context, name string, ref fields.Ref, formatted bool) (fields.List, bool) {
	v, ok := s.custom(ref, name)
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
	switch s.defs[name].Type {
	case "user":
		kind = fields.RefUser
	case "taxonomy":
		kind = fields.RefTerm
	}
	for _, id := range ids {
		if e, ok := s.Entity(ctx, fields.Ref{Kind: kind, ID: id}); ok {
			items = append(items, e)
		}
	}
	return items, true
}

// EntityAttribute resolves attr on e, falling back to the fields of e's own
// reference.
func (s *Store) EntityAttribute(ctx context.Context, e *fields.Entity, attr string, formatted bool) (fields.Value, bool) {
	return wp.EntityAttribute(ctx, s, e, attr, formatted)
}

// FieldKind reports the kind of the field definition called name.
func (s *Store) FieldKind(_ context.Context, name string, _ fields.Ref) fields.FieldKind {
	if def, ok := s.defs[name]; ok {
		return def.Kind()
	}
	return fields.KindUnknown
}

// Permalink builds the public URL of the object ref points to.
func (s *Store) Permalink(_ context.Context, ref fields.Ref) (string, bool) {
	switch ref.Kind {
	case fields.RefPost:
		if p, ok := s.posts[ref.ID]; ok {
			return s.links.Post(p.Post), true
		}
	case fields.RefTerm:
		if t, ok := s.terms[ref.ID]; ok {
			return s.links.Term(t.Term), true
		}
	case fields.RefUser:
		if u, ok := s.users[ref.ID]; ok {
			return s.links.Author(u.User), true
		}
	case fields.RefComment:
		if c, ok := s.comments[ref.ID]; ok {
			if p, ok := s.posts[c.PostID]; ok {
				return s.links.Post(p.Post) + "#comment-" + strconv.FormatInt(c.ID, 10), true
			}
		}
	}
	return "", false
}

// Attachment returns the media item with the given id.
func (s *Store) Attachment(_ context.Context, id int64) (fields.Attachment, bool) {
	a, ok := s.attachments[id]
	return a, ok
}

// Entity returns the post, term, user or comment ref points to.
func (s *Store) Entity(_ context.Context, ref fields.Ref) (*fields.Entity, bool) {
	switch ref.Kind {
	case fields.RefPost:
		if p, ok := s.posts[ref.ID]; ok {
			return p.Entity(), true
		}
	case fields.RefTerm:
		if t, ok := s.terms[ref.ID]; ok {
			return t.Entity(), true
		}
	case fields.RefUser:
		if u, ok := s.users[ref.ID]; ok {
			return u.Entity(), true
		}
	case fields.RefComment:
		if c, ok := s.comments[ref.ID]; ok {
			return c.Entity(), true
		}
	}
	return nil, false
}

// RawMeta returns the stored value of key without formatting. The featured
// image of a post is read from its thumbnail.
func (s *Store) RawMeta(_ context.Context, ref fields.Ref, key string) (fields.Value, bool) {
	if ref.Kind == fields.RefPost && key == "_thumbnail_id" {
		if p, ok := s.posts[ref.ID]; ok && p.Thumbnail > 0 {
			return fields.Number(p.Thumbnail), true
		}
		return nil, false
	}
	return s.custom(ref, key)
}
