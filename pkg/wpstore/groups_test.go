package wpstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/wp"
)

func TestGroupRowsStrategies(t *testing.T) {
	w, s := setupTestStore(t, testConfig())
	seedBasics(t, w)
	ctx := context.Background()
	post := fields.PostRef(10)

	setMeta := func(key, value string) {
		t.Helper()
		if err := w.SetMeta(ctx, post, key, value); err != nil {
			t.Fatalf("SetMeta(%s) error = %v", key, err)
		}
	}

	// Definition-driven: sub fields come from the field group, images are formatted.
	team := wp.FieldDef{Key: "field_team", Name: "team", Type: "repeater", SubFields: []wp.FieldDef{
		{Key: "field_team_name", Name: "name", Type: "text"},
		{Key: "field_team_photo", Name: "photo", Type: "image", ReturnFormat: "url"},
	}}
	if _, err := w.InsertFieldDef(ctx, team, 0); err != nil {
		t.Fatalf("InsertFieldDef() error = %v", err)
	}
	setMeta("_team", "field_team")
	setMeta("team", "2")
	setMeta("team_0_name", "Ada")
	setMeta("team_0_photo", "50")
	setMeta("team_1_name", "Bob")

	// Stored array: the rows live in one JSON value.
	setMeta("legacy", `[{"label":"one"},{"label":"two"}]`)

	// Count-driven: no definition, sub names come from the stored keys.
	setMeta("items", "2")
	setMeta("items_0_label", "x")
	setMeta("items_1_label", "y")
	setMeta("items_1_extra", "z")

	// Probe: neither definition nor count.
	setMeta("loose_0_a", "first")
	setMeta("loose_1_a", "second")
	setMeta("loose_3_a", "after a gap")

	testCases := []struct {
		name      string
		formatted bool
		want      fields.List
	}{
		{"team", true, fields.List{
			fields.Record{"name": fields.String("Ada"), "photo": fields.String("http://example.test/wp-content/uploads/2024/01/logo.png")},
			fields.Record{"name": fields.String("Bob"), "photo": fields.Null{}},
		}},
		{"team", false, fields.List{
			fields.Record{"name": fields.String("Ada"), "photo": fields.String("50")},
			fields.Record{"name": fields.String("Bob"), "photo": fields.Null{}},
		}},
		{"legacy", true, fields.List{
			fields.Record{"label": fields.String("one")},
			fields.Record{"label": fields.String("two")},
		}},
		{"items", true, fields.List{
			fields.Record{"label": fields.String("x")},
			fields.Record{"label": fields.String("y"), "extra": fields.String("z")},
		}},
		{"loose", true, fields.List{
			fields.Record{"a": fields.String("first")},
			fields.Record{"a": fields.String("second")},
		}},
	}
	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s formatted=%v", tc.name, tc.formatted), func(t *testing.T) {
			got, ok := s.GroupRows(ctx, tc.name, post, tc.formatted)
			if !ok {
				t.Fatalf("GroupRows(%s) absent", tc.name)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("GroupRows(%s) mismatch (-want +got):\n%s", tc.name, diff)
			}
		})
	}

	t.Run("missing group", func(t *testing.T) {
		if rows, ok := s.GroupRows(ctx, "nothing", post, true); ok {
			t.Errorf("GroupRows(nothing) = %v, want absent", rows)
		}
	})

	t.Run("zero count is an empty group", func(t *testing.T) {
		setMeta("empty", "0")
		rows, ok := s.GroupRows(ctx, "empty", post, true)
		if !ok || len(rows) != 0 {
			t.Errorf("GroupRows(empty) = %v, %v; want an empty present list", rows, ok)
		}
	})
}

func TestGroupRowsNested(t *testing.T) {
	w, s := setupTestStore(t, testConfig())
	seedBasics(t, w)
	ctx := context.Background()

	sections := wp.FieldDef{Key: "field_sections", Name: "sections", Type: "repeater", SubFields: []wp.FieldDef{
		{Key: "field_sections_title", Name: "title", Type: "text"},
		{Key: "field_sections_links", Name: "links", Type: "repeater", SubFields: []wp.FieldDef{
			{Key: "field_sections_links_url", Name: "url", Type: "url"},
		}},
	}}
	if _, err := w.InsertFieldDef(ctx, sections, 0); err != nil {
		t.Fatalf("InsertFieldDef() error = %v", err)
	}
	value := fields.List{
		fields.Record{"title": fields.String("Docs"), "links": fields.List{
			fields.Record{"url": fields.String("https://a.test")},
			fields.Record{"url": fields.String("https://b.test")},
		}},
	}
	if err := w.SetField(ctx, fields.PostRef(10), sections, "sections", value); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}

	got, ok := s.GroupRows(ctx, "sections", fields.PostRef(10), true)
	if !ok {
		t.Fatal("GroupRows(sections) absent")
	}
	if diff := cmp.Diff(value, got); diff != "" {
		t.Errorf("GroupRows(sections) mismatch (-want +got):\n%s", diff)
	}

	t.Run("scan without definition skips nested row keys", func(t *testing.T) {
		row, ok := s.scanRow(ctx, "sections", fields.PostRef(10), 0)
		if !ok {
			t.Fatal("scanRow() found nothing")
		}
		want := fields.Record{"title": fields.String("Docs"), "links": fields.String("2")}
		if diff := cmp.Diff(want, row); diff != "" {
			t.Errorf("scanRow mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestGroupRowsFlexibleContent(t *testing.T) {
	w, s := setupTestStore(t, testConfig())
	seedBasics(t, w)
	ctx := context.Background()

	blocks := wp.FieldDef{Key: "field_blocks", Name: "blocks", Type: "flexible_content", SubFields: []wp.FieldDef{
		{Key: "field_blocks_heading", Name: "heading", Type: "text"},
	}}
	if _, err := w.InsertFieldDef(ctx, blocks, 0); err != nil {
		t.Fatalf("InsertFieldDef() error = %v", err)
	}
	value := fields.List{
		fields.Record{"acf_fc_layout": fields.String("hero"), "heading": fields.String("Welcome")},
		fields.Record{"acf_fc_layout": fields.String("text"), "heading": fields.String("More")},
	}
	if err := w.SetField(ctx, fields.PostRef(11), blocks, "blocks", value); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}

	got, ok := s.GroupRows(ctx, "blocks", fields.PostRef(11), true)
	if !ok {
		t.Fatal("GroupRows(blocks) absent")
	}
	if diff := cmp.Diff(value, got); diff != "" {
		t.Errorf("GroupRows(blocks) mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupRowsProbeCeiling(t *testing.T) {
	config := testConfig()
	config.MaxRowProbes = 3
	w, s := setupTestStore(t, config)
	seedBasics(t, w)
	ctx := context.Background()

	faker := gofakeit.New(7)
	for i := 0; i < 5; i++ {
		if err := w.SetMeta(ctx, fields.PostRef(10), fmt.Sprintf("many_%d_word", i), faker.Word()); err != nil {
			t.Fatalf("SetMeta() error = %v", err)
		}
	}

	rows, ok := s.GroupRows(ctx, "many", fields.PostRef(10), true)
	if !ok {
		t.Fatal("GroupRows(many) absent")
	}
	if len(rows) != 3 {
		t.Errorf("GroupRows(many) returned %d rows, want the probe ceiling of 3", len(rows))
	}
}

func TestGroupRowsStoredCountIsChecked(t *testing.T) {
	config := testConfig()
	config.MaxRowProbes = 3
	w, s := setupTestStore(t, config)
	seedBasics(t, w)
	ctx := context.Background()
	post := fields.PostRef(10)

	meta := map[string]string{
		// A scalar field that happens to be numeric.
		"views": "20000",
		// The count claims more rows than are stored.
		"short":       "4",
		"short_0_tag": "a",
		"short_1_tag": "b",
		// The count is over the ceiling.
		"long": "5",
	}
	for i := 0; i < 5; i++ {
		meta[fmt.Sprintf("long_%d_tag", i)] = fmt.Sprint(i)
	}
	for key, value := range meta {
		if err := w.SetMeta(ctx, post, key, value); err != nil {
			t.Fatalf("SetMeta(%s) error = %v", key, err)
		}
	}

	t.Run("numeric scalar is not a group", func(t *testing.T) {
		if rows, ok := s.GroupRows(ctx, "views", post, true); ok {
			t.Errorf("GroupRows(views) = %d rows, want absent", len(rows))
		}
	})

	testCases := []struct {
		name string
		want fields.List
	}{
		{"short", fields.List{
			fields.Record{"tag": fields.String("a")},
			fields.Record{"tag": fields.String("b")},
		}},
		{"long", fields.List{
			fields.Record{"tag": fields.String("0")},
			fields.Record{"tag": fields.String("1")},
			fields.Record{"tag": fields.String("2")},
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := s.GroupRows(ctx, tc.name, post, true)
			if !ok {
				t.Fatalf("GroupRows(%s) absent", tc.name)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("GroupRows(%s) mismatch (-want +got):\n%s", tc.name, diff)
			}
		})
	}
}

func TestRelationItems(t *testing.T) {
	w, s := setupTestStore(t, testConfig())
	seedBasics(t, w)
	ctx := context.Background()

	related := wp.FieldDef{Key: "field_related", Name: "related", Type: "relationship"}
	authors := wp.FieldDef{Key: "field_authors", Name: "authors", Type: "user", Multiple: true}
	for _, def := range []wp.FieldDef{related, authors} {
		if _, err := w.InsertFieldDef(ctx, def, 0); err != nil {
			t.Fatalf("InsertFieldDef() error = %v", err)
		}
	}
	post := fields.PostRef(10)
	if err := w.SetField(ctx, post, related, "related", fields.List{fields.String("11"), fields.String("999"), fields.String("12")}); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if err := w.SetField(ctx, post, authors, "authors", fields.List{fields.Number(2)}); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if err := w.SetMeta(ctx, post, "single", "12"); err != nil {
		t.Fatalf("SetMeta() error = %v", err)
	}

	labels := func(items fields.List) []string {
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = fields.Stringify(item)
		}
		return out
	}

	t.Run("entities skip missing objects", func(t *testing.T) {
		items, ok := s.RelationItems(ctx, "related", post, true)
		if !ok {
			t.Fatal("RelationItems(related) absent")
		}
		if diff := cmp.Diff([]string{"Second", "About"}, labels(items)); diff != "" {
			t.Errorf("RelationItems mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unformatted ids", func(t *testing.T) {
		items, _ := s.RelationItems(ctx, "related", post, false)
		want := fields.List{fields.Number(11), fields.Number(999), fields.Number(12)}
		if diff := cmp.Diff(want, items); diff != "" {
			t.Errorf("RelationItems mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("user field", func(t *testing.T) {
		items, _ := s.RelationItems(ctx, "authors", post, true)
		if diff := cmp.Diff([]string{"Ada L."}, labels(items)); diff != "" {
			t.Errorf("RelationItems mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("single id is a one element list", func(t *testing.T) {
		items, _ := s.RelationItems(ctx, "single", post, true)
		if diff := cmp.Diff([]string{"About"}, labels(items)); diff != "" {
			t.Errorf("RelationItems mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing field", func(t *testing.T) {
		if _, ok := s.RelationItems(ctx, "nope", post, true); ok {
			t.Error("RelationItems(nope) should be absent")
		}
	})
}
