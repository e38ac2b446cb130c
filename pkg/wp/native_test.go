package wp

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/CTAG07/acfget/pkg/fields"
)

func TestNative(t *testing.T) {
	ctx := context.Background()
	lk := newMemLookup()

	testCases := []struct {
		name      string
		ref       fields.Ref
		field     string
		formatted bool
		want      fields.Value
		wantOK    bool
	}{
		{"post column", fields.PostRef(10), "post_title", true, fields.String("Hello"), true},
		{"post prefix", fields.PostRef(10), "title", true, fields.String("Hello"), true},
		{"post ID", fields.PostRef(10), "ID", true, fields.Number(10), true},
		{"post permalink", fields.PostRef(11), "permalink", true, fields.String("http://example.test/second/"), true},
		{"thumbnail id", fields.PostRef(10), "thumbnail_id", true, fields.Number(50), true},
		{"featured image raw", fields.PostRef(10), "featured_image", false, fields.Number(50), true},
		{"no thumbnail", fields.PostRef(11), "thumbnail_id", true, nil, false},
		{"term prefix", fields.TermRef(15), "id", true, fields.Number(15), true},
		{"term name", fields.TermRef(15), "name", true, fields.String("News"), true},
		{"user alias", fields.UserRef(2), "email", true, fields.String("ada@example.test"), true},
		{"user name alias", fields.UserRef(2), "name", true, fields.String("Ada L."), true},
		{"user password hidden", fields.UserRef(2), "user_pass", true, nil, false},
		{"user activation key hidden", fields.UserRef(2), "user_activation_key", true, nil, false},
		{"option", fields.Option, "blogname", true, fields.String("Example"), true},
		{"missing option", fields.Option, "nope", true, nil, false},
		{"missing post", fields.PostRef(99), "post_title", true, nil, false},
		{"no ref", fields.Ref{}, "post_title", true, nil, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Native(ctx, lk, tc.ref, tc.field, tc.formatted)
			if ok != tc.wantOK {
				t.Fatalf("Native() ok = %v, want %v", ok, tc.wantOK)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Native() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNativeFeaturedImageFormatted(t *testing.T) {
	got, ok := Native(context.Background(), newMemLookup(), fields.PostRef(10), "post_thumbnail", true)
	if !ok {
		t.Fatal("Native(post_thumbnail) should be found")
	}
	rec, isRec := got.(fields.Record)
	if !isRec {
		t.Fatalf("Native(post_thumbnail) = %#v, want an image record", got)
	}
	if fields.Stringify(rec["alt"]) != "Our logo" || fields.Stringify(rec) != "http://example.test/uploads/logo.png" {
		t.Errorf("unexpected image record %#v", rec)
	}
}

func TestLinks(t *testing.T) {
	l := Links{SiteURL: "https://example.test/"}

	testCases := []struct {
		name string
		got  string
		want string
	}{
		{"home", l.Home(), "https://example.test/"},
		{"post", l.Post(Post{ID: 1, Slug: "hello", Status: "publish", Type: "post"}), "https://example.test/hello/"},
		{"post default type", l.Post(Post{ID: 1, Slug: "hello"}), "https://example.test/hello/"},
		{"page", l.Post(Post{ID: 2, Slug: "about", Type: "page"}), "https://example.test/about/"},
		{"custom type", l.Post(Post{ID: 3, Slug: "tesla", Type: "car"}), "https://example.test/car/tesla/"},
		{"draft", l.Post(Post{ID: 4, Slug: "wip", Status: "draft"}), "https://example.test/?p=4"},
		{"draft page", l.Post(Post{ID: 5, Status: "draft", Type: "page"}), "https://example.test/?page_id=5"},
		{"no slug", l.Post(Post{ID: 6}), "https://example.test/?p=6"},
		{"escaped slug", l.Post(Post{ID: 7, Slug: "a b"}), "https://example.test/a%20b/"},
		{"attachment guid", l.Post(Post{ID: 8, Type: "attachment", GUID: "https://cdn.test/x.png"}), "https://cdn.test/x.png"},
		{"attachment no guid", l.Post(Post{ID: 9, Type: "attachment"}), "https://example.test/?attachment_id=9"},
		{"category", l.Term(Term{ID: 1, Slug: "news", Taxonomy: "category"}), "https://example.test/category/news/"},
		{"tag", l.Term(Term{ID: 2, Slug: "go", Taxonomy: "post_tag"}), "https://example.test/tag/go/"},
		{"custom taxonomy", l.Term(Term{ID: 3, Slug: "red", Taxonomy: "color"}), "https://example.test/color/red/"},
		{"no taxonomy", l.Term(Term{ID: 4}), "https://example.test/?term_id=4"},
		{"author", l.Author(User{ID: 2, Nicename: "ada"}), "https://example.test/author/ada/"},
		{"author no nicename", l.Author(User{ID: 3}), "https://example.test/?author=3"},
	}
	for _, tc := range testCases {
		if tc.got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, tc.got, tc.want)
		}
	}
}
