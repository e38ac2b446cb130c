// Package wpstore implements a fields.Source over a WordPress database with
// Advanced Custom Fields storage conventions: field values in the meta
// tables, field keys in "_<name>" meta, repeater rows in
// "<name>_<i>_<sub>" meta, option fields as "options_<name>" options and
// field definitions as acf-field posts.
package wpstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/wp"
)

// Config holds the storage options of a Store.
type Config struct {
	// TablePrefix is prepended to every table name.
	TablePrefix string `json:"table_prefix" validate:"max=64"`

	// SiteURL is the base of generated permalinks and attachment URLs.
	SiteURL string `json:"site_url" validate:"omitempty,url"`

	// MaxRowProbes bounds the raw row scan of a group field that has no
	// definition, whether or not a row count is stored.
	MaxRowProbes int `json:"max_row_probes" validate:"gte=1,lte=10000"`
}

// DefaultConfig returns the standard WordPress table layout.
func DefaultConfig() Config {
	return Config{
		TablePrefix:  "wp_",
		SiteURL:      "http://localhost",
		MaxRowProbes: 100,
	}
}

// Store reads field data from a WordPress database. It holds prepared
// statements over db and is safe for concurrent use.
type Store struct {
	db     *sql.DB
	config Config
	links  wp.Links
	logger *slog.Logger
	stmts  []*sql.Stmt

	stmtPost        *sql.Stmt
	stmtTerm        *sql.Stmt
	stmtUser        *sql.Stmt
	stmtComment     *sql.Stmt
	stmtOption      *sql.Stmt
	stmtOptionLike  *sql.Stmt
	stmtFieldByKey  *sql.Stmt
	stmtFieldByName *sql.Stmt
	stmtSubFields   *sql.Stmt
	stmtMeta        map[fields.RefKind]*sql.Stmt
	stmtMetaLike    map[fields.RefKind]*sql.Stmt
}

type metaTable struct {
	kind   fields.RefKind
	table  string
	column string
	id     string
}

var metaTables = []metaTable{
	{fields.RefPost, "postmeta", "post_id", "meta_id"},
	{fields.RefTerm, "termmeta", "term_id", "meta_id"},
	{fields.RefUser, "usermeta", "user_id", "umeta_id"},
	{fields.RefComment, "commentmeta", "comment_id", "meta_id"},
}

const postColumns = `ID, post_author, post_date, post_content, post_title, post_excerpt, post_status,
	post_name, post_modified, post_parent, guid, menu_order, post_type, post_mime_type, comment_count`

// NewStore prepares every statement the store needs. The database schema
// must already exist.
func NewStore(db *sql.DB, config Config) (*Store, error) {
	if !validPrefix(config.TablePrefix) {
		return nil, fmt.Errorf("invalid table prefix %q", config.TablePrefix)
	}
	if config.MaxRowProbes <= 0 {
		config.MaxRowProbes = DefaultConfig().MaxRowProbes
	}

	s := &Store{
		db:           db,
		config:       config,
		links:        wp.Links{SiteURL: config.SiteURL},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		stmtMeta:     make(map[fields.RefKind]*sql.Stmt, len(metaTables)),
		stmtMetaLike: make(map[fields.RefKind]*sql.Stmt, len(metaTables)),
	}
	p := config.TablePrefix

	var err error
	prepare := func(query string) *sql.Stmt {
		if err != nil {
			return nil
		}
		var stmt *sql.Stmt
		if stmt, err = db.Prepare(query); err != nil {
			err = fmt.Errorf("failed to prepare %q: %w", query, err)
			return nil
		}
		s.stmts = append(s.stmts, stmt)
		return stmt
	}

	s.stmtPost = prepare(`SELECT ` + postColumns + ` FROM ` + p + `posts WHERE ID = ?;`)
	s.stmtTerm = prepare(`SELECT t.term_id, t.name, t.slug, tt.term_taxonomy_id, tt.taxonomy, tt.description, tt.parent, tt.count
	FROM ` + p + `terms t JOIN ` + p + `term_taxonomy tt ON tt.term_id = t.term_id
	WHERE t.term_id = ? ORDER BY tt.term_taxonomy_id LIMIT 1;`)
	s.stmtUser = prepare(`SELECT ID, user_login, user_nicename, user_email, user_url, user_registered, display_name
	FROM ` + p + `users WHERE ID = ?;`)
	s.stmtComment = prepare(`SELECT comment_ID, comment_post_ID, comment_author, comment_author_email, comment_author_url,
	comment_date, comment_content, comment_approved, comment_parent, user_id
	FROM ` + p + `comments WHERE comment_ID = ?;`)
	s.stmtOption = prepare(`SELECT option_value FROM ` + p + `options WHERE option_name = ? LIMIT 1;`)
	s.stmtOptionLike = prepare(`SELECT option_name, option_value FROM ` + p + `options WHERE option_name LIKE ? ESCAPE '!';`)

	const fieldCols = `ID, post_name, post_excerpt, post_content`
	s.stmtFieldByKey = prepare(`SELECT ` + fieldCols + ` FROM ` + p + `posts
	WHERE post_type = 'acf-field' AND post_name = ? ORDER BY ID LIMIT 1;`)
	s.stmtFieldByName = prepare(`SELECT f.ID, f.post_name, f.post_excerpt, f.post_content FROM ` + p + `posts f
	LEFT JOIN ` + p + `posts parent ON parent.ID = f.post_parent
	WHERE f.post_type = 'acf-field' AND f.post_excerpt = ? AND (parent.post_type IS NULL OR parent.post_type <> 'acf-field')
	ORDER BY f.ID LIMIT 1;`)
	s.stmtSubFields = prepare(`SELECT ` + fieldCols + ` FROM ` + p + `posts
	WHERE post_type = 'acf-field' AND post_parent = ? ORDER BY menu_order, ID;`)

	for _, mt := range metaTables {
		table := p + mt.table
		s.stmtMeta[mt.kind] = prepare(`SELECT meta_value FROM ` + table + `
	WHERE ` + mt.column + ` = ? AND meta_key = ? ORDER BY ` + mt.id + ` LIMIT 1;`)
		s.stmtMetaLike[mt.kind] = prepare(`SELECT meta_key, meta_value FROM ` + table + `
	WHERE ` + mt.column + ` = ? AND meta_key LIKE ? ESCAPE '!' ORDER BY ` + mt.id + `;`)
	}

	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// SetLogger sets the logger used for storage errors.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Close releases the prepared statements. The database handle is owned by
// the caller.
func (s *Store) Close() {
	for _, stmt := range s.stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	s.stmts = nil
}

// absent logs unexpected storage errors. A missing row is not an error.
func (s *Store) absent(ctx context.Context, err error, what string, args ...any) {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return
	}
	s.logger.ErrorContext(ctx, "field lookup failed", append([]any{"what", what, "error", err}, args...)...)
}

// Entity loads the post, term, user or comment ref points to.
func (s *Store) Entity(ctx context.Context, ref fields.Ref) (*fields.Entity, bool) {
	switch ref.Kind {
	case fields.RefPost:
		if p, ok := s.post(ctx, ref.ID); ok {
			return p.Entity(), true
		}
	case fields.RefTerm:
		if t, ok := s.term(ctx, ref.ID); ok {
			return t.Entity(), true
		}
	case fields.RefUser:
		if u, ok := s.user(ctx, ref.ID); ok {
			return u.Entity(), true
		}
	case fields.RefComment:
		if c, ok := s.comment(ctx, ref.ID); ok {
			return c.Entity(), true
		}
	}
	return nil, false
}

func (s *Store) post(ctx context.Context, id int64) (wp.Post, bool) {
	var p wp.Post
	err := s.stmtPost.QueryRowContext(ctx, id).Scan(&p.ID, &p.Author, &p.Date, &p.Content, &p.Title, &p.Excerpt,
		&p.Status, &p.Slug, &p.Modified, &p.Parent, &p.GUID, &p.MenuOrder, &p.Type, &p.MimeType, &p.CommentCount)
	if err != nil {
		s.absent(ctx, err, "post", "id", id)
		return wp.Post{}, false
	}
	return p, true
}

func (s *Store) term(ctx context.Context, id int64) (wp.Term, bool) {
	var t wp.Term
	err := s.stmtTerm.QueryRowContext(ctx, id).Scan(&t.ID, &t.Name, &t.Slug, &t.TaxonomyID, &t.Taxonomy,
		&t.Description, &t.Parent, &t.Count)
	if err != nil {
		s.absent(ctx, err, "term", "id", id)
		return wp.Term{}, false
	}
	return t, true
}

func (s *Store) user(ctx context.Context, id int64) (wp.User, bool) {
	var u wp.User
	err := s.stmtUser.QueryRowContext(ctx, id).Scan(&u.ID, &u.Login, &u.Nicename, &u.Email, &u.URL,
		&u.Registered, &u.DisplayName)
	if err != nil {
		s.absent(ctx, err, "user", "id", id)
		return wp.User{}, false
	}
	return u, true
}

func (s *Store) comment(ctx context.Context, id int64) (wp.Comment, bool) {
	var c wp.Comment
	err := s.stmtComment.QueryRowContext(ctx, id).Scan(&c.ID, &c.PostID, &c.Author, &c.AuthorEmail, &c.AuthorURL,
		&c.Date, &c.Content, &c.Approved, &c.Parent, &c.UserID)
	if err != nil {
		s.absent(ctx, err, "comment", "id", id)
		return wp.Comment{}, false
	}
	return c, true
}

// Permalink builds the public URL of a post, term, user or comment.
func (s *Store) Permalink(ctx context.Context, ref fields.Ref) (string, bool) {
	switch ref.Kind {
	case fields.RefPost:
		if p, ok := s.post(ctx, ref.ID); ok {
			return s.links.Post(p), true
		}
	case fields.RefTerm:
		if t, ok := s.term(ctx, ref.ID); ok {
			return s.links.Term(t), true
		}
	case fields.RefUser:
		if u, ok := s.user(ctx, ref.ID); ok {
			return s.links.Author(u), true
		}
	case fields.RefComment:
		if c, ok := s.comment(ctx, ref.ID); ok {
			if p, ok := s.post(ctx, c.PostID); ok {
				return fmt.Sprintf("%s#comment-%d", s.links.Post(p), c.ID), true
			}
		}
	}
	return "", false
}

// Attachment loads an attachment post. Its URL is the uploaded file under
// wp-content/uploads when "_wp_attached_file" is set, else the guid.
func (s *Store) Attachment(ctx context.Context, id int64) (fields.Attachment, bool) {
	p, ok := s.post(ctx, id)
	if !ok || p.Type != "attachment" {
		return fields.Attachment{}, false
	}
	att := fields.Attachment{ID: p.ID, URL: p.GUID, Title: p.Title}
	ref := fields.PostRef(id)
	if file, ok := s.rawMetaString(ctx, ref, "_wp_attached_file"); ok && file != "" {
		if strings.Contains(file, "://") {
			att.URL = file
		} else {
			att.URL = strings.TrimRight(s.config.SiteURL, "/") + "/wp-content/uploads/" + strings.TrimLeft(file, "/")
		}
	}
	if alt, ok := s.rawMetaString(ctx, ref, "_wp_attachment_image_alt"); ok {
		att.Alt = alt
	}
	return att, att.URL != ""
}

// EntityAttribute resolves attr on e: its native attributes first, then the
// fields stored against e's own reference.
func (s *Store) EntityAttribute(ctx context.Context, e *fields.Entity, attr string, formatted bool) (fields.Value, bool) {
	return wp.EntityAttribute(ctx, s, e, attr, formatted)
}

// FieldKind reports the kind of the field definition name resolves to on ref.
func (s *Store) FieldKind(ctx context.Context, name string, ref fields.Ref) fields.FieldKind {
	if def, ok := s.fieldDef(ctx, name, ref); ok {
		return def.Kind()
	}
	return fields.KindUnknown
}
