package wpstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/wp"
)

// Writer inserts WordPress rows and ACF field data into a database created
// by SetupSchema. It backs fixture imports and tests; live sites are written
// by WordPress itself.
type Writer struct {
	db     *sql.DB
	prefix string
}

// NewWriter returns a Writer for the tables with the given prefix.
func NewWriter(db *sql.DB, tablePrefix string) (*Writer, error) {
	if !validPrefix(tablePrefix) {
		return nil, fmt.Errorf("invalid table prefix %q", tablePrefix)
	}
	return &Writer{db: db, prefix: tablePrefix}, nil
}

func (w *Writer) table(name string) string {
	return w.prefix + name
}

// InsertPost inserts or replaces a post row.
func (w *Writer) InsertPost(ctx context.Context, p wp.Post) error {
	_, err := w.db.ExecContext(ctx, `INSERT OR REPLACE INTO `+w.table("posts")+` (`+postColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		p.ID, p.Author, p.Date, p.Content, p.Title, p.Excerpt, p.Status, p.Slug, p.Modified, p.Parent,
		p.GUID, p.MenuOrder, p.Type, p.MimeType, p.CommentCount)
	if err != nil {
		return fmt.Errorf("failed to insert post %d: %w", p.ID, err)
	}
	return nil
}

// InsertTerm inserts a term and its taxonomy row. A zero TaxonomyID reuses
// the term id.
func (w *Writer) InsertTerm(ctx context.Context, t wp.Term) error {
	if t.TaxonomyID == 0 {
		t.TaxonomyID = t.ID
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO `+w.table("terms")+` (term_id, name, slug) VALUES (?, ?, ?);`,
		t.ID, t.Name, t.Slug); err != nil {
		return fmt.Errorf("failed to insert term %d: %w", t.ID, err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO `+w.table("term_taxonomy")+`
	(term_taxonomy_id, term_id, taxonomy, description, parent, count) VALUES (?, ?, ?, ?, ?, ?);`,
		t.TaxonomyID, t.ID, t.Taxonomy, t.Description, t.Parent, t.Count); err != nil {
		return fmt.Errorf("failed to insert taxonomy of term %d: %w", t.ID, err)
	}
	return tx.Commit()
}

// InsertUser inserts or replaces a user row.
func (w *Writer) InsertUser(ctx context.Context, u wp.User) error {
	_, err := w.db.ExecContext(ctx, `INSERT OR REPLACE INTO `+w.table("users")+`
	(ID, user_login, user_nicename, user_email, user_url, user_registered, display_name) VALUES (?, ?, ?, ?, ?, ?, ?);`,
		u.ID, u.Login, u.Nicename, u.Email, u.URL, u.Registered, u.DisplayName)
	if err != nil {
		return fmt.Errorf("failed to insert user %d: %w", u.ID, err)
	}
	return nil
}

// InsertComment inserts or replaces a comment row.
func (w *Writer) InsertComment(ctx context.Context, c wp.Comment) error {
	if c.Approved == "" {
		c.Approved = "1"
	}
	_, err := w.db.ExecContext(ctx, `INSERT OR REPLACE INTO `+w.table("comments")+`
	(comment_ID, comment_post_ID, comment_author, comment_author_email, comment_author_url, comment_date,
	comment_content, comment_approved, comment_parent, user_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		c.ID, c.PostID, c.Author, c.AuthorEmail, c.AuthorURL, c.Date, c.Content, c.Approved, c.Parent, c.UserID)
	if err != nil {
		return fmt.Errorf("failed to insert comment %d: %w", c.ID, err)
	}
	return nil
}

// SetOption stores a site option, replacing any previous value.
func (w *Writer) SetOption(ctx context.Context, name, value string) error {
	_, err := w.db.ExecContext(ctx, `INSERT INTO `+w.table("options")+` (option_name, option_value) VALUES (?, ?)
	ON CONFLICT(option_name) DO UPDATE SET option_value = excluded.option_value;`, name, value)
	if err != nil {
		return fmt.Errorf("failed to set option %s: %w", name, err)
	}
	return nil
}

// SetMeta stores one meta value of ref, replacing earlier values of key. For
// the options reference key is the option name.
func (w *Writer) SetMeta(ctx context.Context, ref fields.Ref, key, value string) error {
	if ref.Kind == fields.RefOption {
		return w.SetOption(ctx, key, value)
	}
	var mt metaTable
	for _, t := range metaTables {
		if t.kind == ref.Kind {
			mt = t
		}
	}
	if mt.table == "" || ref.ID <= 0 {
		return fmt.Errorf("cannot store meta on %q", ref.String())
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	table := w.table(mt.table)
	if _, err = tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+mt.column+` = ? AND meta_key = ?;`, ref.ID, key); err != nil {
		return fmt.Errorf("failed to clear meta %s: %w", key, err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO `+table+` (`+mt.column+`, meta_key, meta_value) VALUES (?, ?, ?);`,
		ref.ID, key, value); err != nil {
		return fmt.Errorf("failed to insert meta %s: %w", key, err)
	}
	return tx.Commit()
}

// InsertFieldDef stores def and its sub fields as acf-field posts under
// parent and returns the id of the new post.
func (w *Writer) InsertFieldDef(ctx context.Context, def wp.FieldDef, parent int64) (int64, error) {
	settings := fields.Record{"type": fields.String(def.Type)}
	if def.ReturnFormat != "" {
		settings["return_format"] = fields.String(def.ReturnFormat)
	}
	if def.Multiple {
		settings["multiple"] = fields.Number(1)
		if def.Type == "taxonomy" {
			settings["field_type"] = fields.String("multi_select")
		}
	}
	res, err := w.db.ExecContext(ctx, `INSERT INTO `+w.table("posts")+`
	(post_type, post_status, post_name, post_excerpt, post_title, post_content, post_parent) VALUES ('acf-field', 'publish', ?, ?, ?, ?, ?);`,
		def.Key, def.Name, def.Name, serialize(settings), parent)
	if err != nil {
		return 0, fmt.Errorf("failed to insert field %s: %w", def.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read id of field %s: %w", def.Name, err)
	}
	for i, sub := range def.SubFields {
		subID, err := w.InsertFieldDef(ctx, sub, id)
		if err != nil {
			return 0, err
		}
		if _, err = w.db.ExecContext(ctx, `UPDATE `+w.table("posts")+` SET menu_order = ? WHERE ID = ?;`, i, subID); err != nil {
			return 0, fmt.Errorf("failed to order field %s: %w", sub.Name, err)
		}
	}
	return id, nil
}

// SetField stores v under name the way ACF does: the field key in
// "_<name>", repeater rows as "<name>_<i>_<sub>" with the row count (or the
// flexible content layouts) in "<name>", arrays serialized.
func (w *Writer) SetField(ctx context.Context, ref fields.Ref, def wp.FieldDef, name string, v fields.Value) error {
	key := name
	if ref.Kind == fields.RefOption {
		key = optionPrefix + name
	}
	if def.Key != "" {
		if err := w.SetMeta(ctx, ref, "_"+key, def.Key); err != nil {
			return err
		}
	}
	return w.setValue(ctx, ref, def, key, v)
}

func (w *Writer) setValue(ctx context.Context, ref fields.Ref, def wp.FieldDef, key string, v fields.Value) error {
	rows, ok := recordRows(v)
	if !ok || (def.Type != "" && def.Kind() != fields.KindRepeater) {
		return w.SetMeta(ctx, ref, key, metaString(v))
	}

	layouts := make(fields.List, 0, len(rows))
	for i, row := range rows {
		if layout, ok := row["acf_fc_layout"]; ok {
			layouts = append(layouts, fields.String(fields.Stringify(layout)))
		}
		subs := make([]string, 0, len(row))
		for sub := range row {
			subs = append(subs, sub)
		}
		sort.Strings(subs)
		for _, sub := range subs {
			if sub == "acf_fc_layout" {
				continue
			}
			subDef, _ := def.Sub(sub)
			if err := w.setValue(ctx, ref, subDef, fmt.Sprintf("%s_%d_%s", key, i, sub), row[sub]); err != nil {
				return err
			}
		}
	}
	if len(layouts) == len(rows) && len(rows) > 0 {
		return w.SetMeta(ctx, ref, key, serialize(layouts))
	}
	return w.SetMeta(ctx, ref, key, fields.FormatNumber(float64(len(rows))))
}

// recordRows reports whether v is a non-empty list of records.
func recordRows(v fields.Value) ([]fields.Record, bool) {
	list, ok := v.(fields.List)
	if !ok || len(list) == 0 {
		return nil, false
	}
	rows := make([]fields.Record, 0, len(list))
	for _, item := range list {
		row, ok := item.(fields.Record)
		if !ok {
			return nil, false
		}
		rows = append(rows, row)
	}
	return rows, true
}

// metaString converts a value to its stored meta form.
func metaString(v fields.Value) string {
	switch t := v.(type) {
	case nil, fields.Null:
		return ""
	case fields.Bool:
		if t {
			return "1"
		}
		return "0"
	case fields.List, fields.Record:
		return serialize(t)
	case *fields.Entity:
		if t == nil {
			return ""
		}
		return fmt.Sprintf("%d", t.Ref.ID)
	}
	return fields.Stringify(v)
}
