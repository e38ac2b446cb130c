package fields

import "testing"

func TestResolveContext(t *testing.T) {
	amb := Ambient{CurrentPostID: 10, QueriedTermID: 15, LoggedInUserID: 2}

	testCases := []struct {
		name  string
		kind  string
		rawID string
		amb   Ambient
		want  Ref
	}{
		{"post ambient", "post", "", amb, PostRef(10)},
		{"empty kind is post", "", "", amb, PostRef(10)},
		{"unknown kind is post", "widget", "7", amb, PostRef(7)},
		{"term ambient", "term", "", amb, TermRef(15)},
		{"user ambient", "user", "", amb, UserRef(2)},
		{"comment without id", "comment", "", amb, Ref{}},
		{"option", "option", "42", amb, Option},
		{"options plural", "OPTIONS", "", amb, Option},
		{"explicit post", "post", "12", amb, PostRef(12)},
		{"explicit term", "term", "3", amb, TermRef(3)},
		{"explicit user", "user", " 9 ", amb, UserRef(9)},
		{"explicit comment", "comment", "4", amb, CommentRef(4)},
		{"prefixed id wins over kind", "post", "term_8", amb, TermRef(8)},
		{"prefixed user", "term", "user_5", amb, UserRef(5)},
		{"bad prefixed id", "post", "term_x", amb, Ref{}},
		{"leading digits", "post", "12abc", amb, PostRef(12)},
		{"non numeric", "post", "abc", amb, Ref{}},
		{"zero", "post", "0", amb, Ref{}},
		{"negative", "post", "-3", amb, Ref{}},
		{"no ambient post", "post", "", Ambient{}, Ref{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveContext(tc.kind, tc.rawID, tc.amb); got != tc.want {
				t.Errorf("ResolveContext(%q, %q) = %+v, want %+v", tc.kind, tc.rawID, got, tc.want)
			}
		})
	}
}

func TestRefStringRoundTrip(t *testing.T) {
	refs := []Ref{PostRef(12), TermRef(15), UserRef(2), CommentRef(9), Option}
	for _, ref := range refs {
		got, ok := ParseRef(ref.String())
		if !ok || got != ref {
			t.Errorf("ParseRef(%q) = (%+v, %v), want %+v", ref.String(), got, ok, ref)
		}
	}
	if s := (Ref{}).String(); s != "" {
		t.Errorf("zero Ref String() = %q, want empty", s)
	}
	if _, ok := ParseRef(""); ok {
		t.Error("ParseRef(\"\") should fail")
	}
	if _, ok := ParseRef("abc"); ok {
		t.Error("ParseRef(\"abc\") should fail")
	}
}

func TestParsePath(t *testing.T) {
	p, ok := ParsePath(" team-members . .photo.url ", ModeRepeater)
	if !ok {
		t.Fatal("ParsePath() should succeed")
	}
	if p.String() != "team_members.photo.url" {
		t.Errorf("path = %q", p.String())
	}
	if p.Head() != "team_members" || len(p.Tail()) != 2 || p.Mode != ModeRepeater {
		t.Errorf("unexpected path %+v", p)
	}
	if _, ok := ParsePath(" . . ", ModeAuto); ok {
		t.Error("ParsePath() of only dots should fail")
	}
}

func TestParseMode(t *testing.T) {
	testCases := map[string]Mode{
		"repeater":     ModeRepeater,
		" Relation ":   ModeRelation,
		"relationship": ModeRelation,
		"":             ModeAuto,
		"gallery":      ModeAuto,
	}
	for in, want := range testCases {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestKindFromType(t *testing.T) {
	testCases := map[string]FieldKind{
		"":                 KindUnknown,
		"text":             KindOther,
		"image":            KindOther,
		"repeater":         KindRepeater,
		"flexible_content": KindRepeater,
		"relationship":     KindRelation,
		"post_object":      KindRelation,
		"taxonomy":         KindRelation,
		"user":             KindRelation,
	}
	for in, want := range testCases {
		if got := KindFromType(in); got != want {
			t.Errorf("KindFromType(%q) = %v, want %v", in, got, want)
		}
	}
}
