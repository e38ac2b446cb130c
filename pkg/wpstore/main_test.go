package wpstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/wp"
)

// setupTestStore creates a SQLite database with the WordPress schema and
// returns a Writer to seed it and a Store reading it.
func setupTestStore(t *testing.T, config Config) (*Writer, *Store) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db, config.TablePrefix); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}
	w, err := NewWriter(db, config.TablePrefix)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	s, err := NewStore(db, config)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)
	return w, s
}

// seedBasics inserts a small graph: two posts, a page, a category, an author,
// a comment and an image attachment.
func seedBasics(t *testing.T, w *Writer) {
	t.Helper()
	ctx := context.Background()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	must(w.InsertPost(ctx, wp.Post{ID: 10, Title: "Hello World", Slug: "hello-world", Type: "post", Status: "publish", Author: 2}))
	must(w.InsertPost(ctx, wp.Post{ID: 11, Title: "Second", Slug: "second", Type: "post", Status: "publish"}))
	must(w.InsertPost(ctx, wp.Post{ID: 12, Title: "About", Slug: "about", Type: "page", Status: "publish"}))
	must(w.InsertPost(ctx, wp.Post{ID: 50, Title: "Logo", Type: "attachment", Status: "inherit", GUID: "http://example.test/logo-guid.png"}))
	must(w.SetMeta(ctx, fields.PostRef(50), "_wp_attached_file", "2024/01/logo.png"))
	must(w.SetMeta(ctx, fields.PostRef(50), "_wp_attachment_image_alt", "Our logo"))
	must(w.SetMeta(ctx, fields.PostRef(10), "_thumbnail_id", "50"))
	must(w.InsertTerm(ctx, wp.Term{ID: 15, Name: "News", Slug: "news", Taxonomy: "category"}))
	must(w.InsertUser(ctx, wp.User{ID: 2, Login: "ada", Nicename: "ada", Email: "ada@example.test", DisplayName: "Ada L."}))
	must(w.InsertComment(ctx, wp.Comment{ID: 9, PostID: 10, Author: "Bob", Content: "Nice"}))
}

func testConfig() Config {
	c := DefaultConfig()
	c.SiteURL = "http://example.test"
	return c
}
