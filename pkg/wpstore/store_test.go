package wpstore

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/wp"
)

func TestNewStoreRejectsBadPrefix(t *testing.T) {
	if _, err := NewStore(nil, Config{TablePrefix: "wp_; DROP TABLE x"}); err == nil {
		t.Fatal("NewStore() expected an error for an unsafe prefix")
	}
}

func TestStoreEntityAndPermalink(t *testing.T) {
	w, s := setupTestStore(t, testConfig())
	seedBasics(t, w)
	ctx := context.Background()

	t.Run("post entity", func(t *testing.T) {
		e, ok := s.Entity(ctx, fields.PostRef(10))
		if !ok {
			t.Fatal("Entity(post 10) not found")
		}
		if got := fields.Stringify(e); got != "Hello World" {
			t.Errorf("Stringify(post) = %q, want %q", got, "Hello World")
		}
	})

	t.Run("missing post", func(t *testing.T) {
		if _, ok := s.Entity(ctx, fields.PostRef(999)); ok {
			t.Error("Entity(post 999) should be absent")
		}
	})

	testCases := []struct {
		ref  fields.Ref
		want string
	}{
		{fields.PostRef(10), "http://example.test/hello-world/"},
		{fields.PostRef(12), "http://example.test/about/"},
		{fields.TermRef(15), "http://example.test/category/news/"},
		{fields.UserRef(2), "http://example.test/author/ada/"},
		{fields.CommentRef(9), "http://example.test/hello-world/#comment-9"},
	}
	for _, tc := range testCases {
		t.Run("permalink "+tc.ref.String(), func(t *testing.T) {
			got, ok := s.Permalink(ctx, tc.ref)
			if !ok || got != tc.want {
				t.Errorf("Permalink(%s) = %q, %v; want %q", tc.ref.String(), got, ok, tc.want)
			}
		})
	}
}

func TestStoreAttachment(t *testing.T) {
	w, s := setupTestStore(t, testConfig())
	seedBasics(t, w)
	ctx := context.Background()

	att, ok := s.Attachment(ctx, 50)
	if !ok {
		t.Fatal("Attachment(50) not found")
	}
	want := fields.Attachment{ID: 50, URL: "http://example.test/wp-content/uploads/2024/01/logo.png", Alt: "Our logo", Title: "Logo"}
	if diff := cmp.Diff(want, att); diff != "" {
		t.Errorf("Attachment mismatch (-want +got):\n%s", diff)
	}

	if _, ok := s.Attachment(ctx, 10); ok {
		t.Error("a regular post must not be returned as an attachment")
	}
}

func TestStoreScalar(t *testing.T) {
	w, s := setupTestStore(t, testConfig())
	seedBasics(t, w)
	ctx := context.Background()

	mustSet := func(ref fields.Ref, def wp.FieldDef, name string, v fields.Value) {
		t.Helper()
		if def.Key != "" {
			if _, err := w.InsertFieldDef(ctx, def, 0); err != nil {
				t.Fatalf("InsertFieldDef() error = %v", err)
			}
		}
		if err := w.SetField(ctx, ref, def, name, v); err != nil {
			t.Fatalf("SetField(%s) error = %v", name, err)
		}
	}
	mustSet(fields.PostRef(10), wp.FieldDef{}, "subtitle", fields.String("A greeting"))
	mustSet(fields.PostRef(10), wp.FieldDef{Key: "field_logo", Name: "logo", Type: "image", ReturnFormat: "array"}, "logo", fields.Number(50))
	mustSet(fields.PostRef(10), wp.FieldDef{Key: "field_flag", Name: "flag", Type: "true_false"}, "flag", fields.Bool(false))
	mustSet(fields.Option, wp.FieldDef{}, "phone", fields.String("555-0100"))
	mustSet(fields.TermRef(15), wp.FieldDef{}, "color", fields.String("red"))
	if err := w.SetOption(ctx, "blogname", "Example"); err != nil {
		t.Fatalf("SetOption() error = %v", err)
	}

	testCases := []struct {
		name      string
		field     string
		ref       fields.Ref
		formatted bool
		want      fields.Value
		present   bool
	}{
		{"custom field", "subtitle", fields.PostRef(10), true, fields.String("A greeting"), true},
		{"native title", "title", fields.PostRef(10), true, fields.String("Hello World"), true},
		{"native column name", "post_name", fields.PostRef(10), true, fields.String("hello-world"), true},
		{"native permalink", "permalink", fields.PostRef(11), true, fields.String("http://example.test/second/"), true},
		{"thumbnail id", "thumbnail_id", fields.PostRef(10), true, fields.Number(50), true},
		{"raw image id", "logo", fields.PostRef(10), false, fields.String("50"), true},
		{"formatted image", "logo", fields.PostRef(10), true, fields.Record{
			"ID": fields.Number(50), "id": fields.Number(50), "alt": fields.String("Our logo"),
			"url":      fields.String("http://example.test/wp-content/uploads/2024/01/logo.png"),
			"title":    fields.String("Logo"),
			"filename": fields.String("logo.png"),
		}, true},
		{"formatted true_false", "flag", fields.PostRef(10), true, fields.Bool(false), true},
		{"option field", "phone", fields.Option, true, fields.String("555-0100"), true},
		{"raw option fallback", "blogname", fields.Option, true, fields.String("Example"), true},
		{"term field", "color", fields.TermRef(15), true, fields.String("red"), true},
		{"term native", "name", fields.TermRef(15), true, fields.String("News"), true},
		{"user alias", "email", fields.UserRef(2), true, fields.String("ada@example.test"), true},
		{"user password blocked", "user_pass", fields.UserRef(2), true, nil, false},
		{"comment native", "content", fields.CommentRef(9), true, fields.String("Nice"), true},
		{"missing field", "nope", fields.PostRef(10), true, nil, false},
		{"none context", "title", fields.Ref{}, true, nil, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := s.Scalar(ctx, tc.field, tc.ref, tc.formatted)
			if ok != tc.present {
				t.Fatalf("Scalar(%s) present = %v, want %v", tc.field, ok, tc.present)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Scalar(%s) mismatch (-want +got):\n%s", tc.field, diff)
			}
		})
	}
}

func TestStoreFieldKind(t *testing.T) {
	w, s := setupTestStore(t, testConfig())
	seedBasics(t, w)
	ctx := context.Background()

	defs := []wp.FieldDef{
		{Key: "field_team", Name: "team", Type: "repeater", SubFields: []wp.FieldDef{{Key: "field_team_name", Name: "name", Type: "text"}}},
		{Key: "field_related", Name: "related", Type: "relationship"},
		{Key: "field_price", Name: "price", Type: "number"},
	}
	for _, def := range defs {
		if _, err := w.InsertFieldDef(ctx, def, 0); err != nil {
			t.Fatalf("InsertFieldDef() error = %v", err)
		}
	}

	testCases := []struct {
		name string
		want fields.FieldKind
	}{
		{"team", fields.KindRepeater},
		{"related", fields.KindRelation},
		{"price", fields.KindOther},
		{"unknown", fields.KindUnknown},
		// Sub fields are not top-level definitions.
		{"name", fields.KindUnknown},
	}
	for _, tc := range testCases {
		if got := s.FieldKind(ctx, tc.name, fields.PostRef(10)); got != tc.want {
			t.Errorf("FieldKind(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestStoreTablePrefix(t *testing.T) {
	config := testConfig()
	config.TablePrefix = "site2_"
	w, s := setupTestStore(t, config)
	ctx := context.Background()

	if err := w.InsertPost(ctx, wp.Post{ID: 1, Title: "Prefixed", Slug: "prefixed", Type: "post", Status: "publish"}); err != nil {
		t.Fatalf("InsertPost() error = %v", err)
	}
	got, ok := s.Scalar(ctx, "title", fields.PostRef(1), true)
	if !ok || got != fields.String("Prefixed") {
		t.Errorf("Scalar(title) = %#v, %v", got, ok)
	}
}
