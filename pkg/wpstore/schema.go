package wpstore

import (
	"database/sql"
	"fmt"
	"strings"
)

// SetupSchema creates the subset of the WordPress tables the store reads,
// using SQLite column types. It is meant for local databases and tests; live
// MySQL installations already carry the full schema. It is idempotent.
func SetupSchema(db *sql.DB, tablePrefix string) error {
	if !validPrefix(tablePrefix) {
		return fmt.Errorf("invalid table prefix %q", tablePrefix)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS {p}posts (
    ID INTEGER PRIMARY KEY,
    post_author INTEGER NOT NULL DEFAULT 0,
    post_date TEXT NOT NULL DEFAULT '',
    post_content TEXT NOT NULL DEFAULT '',
    post_title TEXT NOT NULL DEFAULT '',
    post_excerpt TEXT NOT NULL DEFAULT '',
    post_status TEXT NOT NULL DEFAULT 'publish',
    post_name TEXT NOT NULL DEFAULT '',
    post_modified TEXT NOT NULL DEFAULT '',
    post_parent INTEGER NOT NULL DEFAULT 0,
    guid TEXT NOT NULL DEFAULT '',
    menu_order INTEGER NOT NULL DEFAULT 0,
    post_type TEXT NOT NULL DEFAULT 'post',
    post_mime_type TEXT NOT NULL DEFAULT '',
    comment_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS {p}posts_type_name ON {p}posts (post_type, post_name);
CREATE INDEX IF NOT EXISTS {p}posts_parent ON {p}posts (post_parent);

CREATE TABLE IF NOT EXISTS {p}postmeta (
    meta_id INTEGER PRIMARY KEY,
    post_id INTEGER NOT NULL DEFAULT 0,
    meta_key TEXT,
    meta_value TEXT
);
CREATE INDEX IF NOT EXISTS {p}postmeta_post_key ON {p}postmeta (post_id, meta_key);

CREATE TABLE IF NOT EXISTS {p}terms (
    term_id INTEGER PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    slug TEXT NOT NULL DEFAULT '',
    term_group INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS {p}term_taxonomy (
    term_taxonomy_id INTEGER PRIMARY KEY,
    term_id INTEGER NOT NULL DEFAULT 0,
    taxonomy TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    parent INTEGER NOT NULL DEFAULT 0,
    count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS {p}term_taxonomy_term ON {p}term_taxonomy (term_id);

CREATE TABLE IF NOT EXISTS {p}termmeta (
    meta_id INTEGER PRIMARY KEY,
    term_id INTEGER NOT NULL DEFAULT 0,
    meta_key TEXT,
    meta_value TEXT
);
CREATE INDEX IF NOT EXISTS {p}termmeta_term_key ON {p}termmeta (term_id, meta_key);

CREATE TABLE IF NOT EXISTS {p}users (
    ID INTEGER PRIMARY KEY,
    user_login TEXT NOT NULL DEFAULT '',
    user_pass TEXT NOT NULL DEFAULT '',
    user_nicename TEXT NOT NULL DEFAULT '',
    user_email TEXT NOT NULL DEFAULT '',
    user_url TEXT NOT NULL DEFAULT '',
    user_registered TEXT NOT NULL DEFAULT '',
    user_activation_key TEXT NOT NULL DEFAULT '',
    user_status INTEGER NOT NULL DEFAULT 0,
    display_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS {p}usermeta (
    umeta_id INTEGER PRIMARY KEY,
    user_id INTEGER NOT NULL DEFAULT 0,
    meta_key TEXT,
    meta_value TEXT
);
CREATE INDEX IF NOT EXISTS {p}usermeta_user_key ON {p}usermeta (user_id, meta_key);

CREATE TABLE IF NOT EXISTS {p}comments (
    comment_ID INTEGER PRIMARY KEY,
    comment_post_ID INTEGER NOT NULL DEFAULT 0,
    comment_author TEXT NOT NULL DEFAULT '',
    comment_author_email TEXT NOT NULL DEFAULT '',
    comment_author_url TEXT NOT NULL DEFAULT '',
    comment_date TEXT NOT NULL DEFAULT '',
    comment_content TEXT NOT NULL DEFAULT '',
    comment_approved TEXT NOT NULL DEFAULT '1',
    comment_parent INTEGER NOT NULL DEFAULT 0,
    user_id INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS {p}commentmeta (
    meta_id INTEGER PRIMARY KEY,
    comment_id INTEGER NOT NULL DEFAULT 0,
    meta_key TEXT,
    meta_value TEXT
);
CREATE INDEX IF NOT EXISTS {p}commentmeta_comment_key ON {p}commentmeta (comment_id, meta_key);

CREATE TABLE IF NOT EXISTS {p}options (
    option_id INTEGER PRIMARY KEY,
    option_name TEXT NOT NULL UNIQUE,
    option_value TEXT NOT NULL DEFAULT '',
    autoload TEXT NOT NULL DEFAULT 'yes'
);
`

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, stmt := range strings.Split(strings.ReplaceAll(schema, "{p}", tablePrefix), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err = tx.Exec(stmt); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// validPrefix reports whether p is safe to splice into table names.
func validPrefix(p string) bool {
	for i := 0; i < len(p); i++ {
		c := p[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}
