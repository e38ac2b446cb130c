package templating

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/CTAG07/acfget/pkg/fields"
)

func TestParseTemplateTree(t *testing.T) {
	tpl, diags := ParseTemplate("Hi {@first-name|upper}! {@each team}{@name}{@if role == Lead}*{@elseif role}-{@else}?{@/if}{@/each}{@team_count}", 0)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(tpl.Nodes) != 5 {
		t.Fatalf("got %d top-level nodes, want 5: %#v", len(tpl.Nodes), tpl.Nodes)
	}

	if text, ok := tpl.Nodes[0].(*TextNode); !ok || text.Text != "Hi " {
		t.Errorf("node 0 = %#v, want text %q", tpl.Nodes[0], "Hi ")
	}
	tok, ok := tpl.Nodes[1].(*TokenNode)
	if !ok || tok.Path != "first_name" || len(tok.Pipes) != 1 || tok.Pipes[0].Name != "upper" {
		t.Errorf("node 1 = %#v, want token first_name|upper", tpl.Nodes[1])
	}
	loop, ok := tpl.Nodes[3].(*LoopNode)
	if !ok || loop.Path != "team" || len(loop.Body) != 2 {
		t.Fatalf("node 3 = %#v, want each team with two children", tpl.Nodes[3])
	}
	cond, ok := loop.Body[1].(*CondNode)
	if !ok || len(cond.Branches) != 2 || !cond.HasElse {
		t.Fatalf("loop child = %#v, want if/elseif/else", loop.Body[1])
	}
	if cond.Branches[0].Expr.Kind != ExprCompare || cond.Branches[1].Expr.Kind != ExprTruthy {
		t.Errorf("unexpected branch expressions %+v", cond.Branches)
	}
	if count, ok := tpl.Nodes[4].(*CountNode); !ok || count.Name != "team" {
		t.Errorf("node 4 = %#v, want count of team", tpl.Nodes[4])
	}
}

func TestParseTemplateDiagnostics(t *testing.T) {
	testCases := []struct {
		name      string
		src       string
		maxDepth  int
		wantDiags []int
	}{
		{"clean", "{@a}{@if b}c{@/if}", 0, nil},
		{"stray close", "x{@/each}", 0, []int{1}},
		{"stray else", "{@else}", 0, []int{0}},
		{"unterminated each", "{@each a}b", 0, []int{0}},
		{"unterminated if", "ab{@if c}d{@else}e", 0, []int{2, 10}},
		{"inner diagnostics not repeated", "{@if a}{@/each}", 0, []int{0, 7}},
		{"too deep", "{@if a}{@each b}c{@/each}{@/if}", 1, []int{7, 17}},
		{"malformed marker ignored", "{@ }{@|x}{@each}", 0, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tpl, diags := ParseTemplate(tc.src, tc.maxDepth)
			var offsets []int
			for _, d := range diags {
				offsets = append(offsets, d.Offset)
			}
			if diff := cmp.Diff(tc.wantDiags, offsets); diff != "" {
				t.Errorf("diagnostic offsets mismatch (-want +got):\n%s", diff)
			}
			if tpl.Source != tc.src {
				t.Errorf("Source = %q, want %q", tpl.Source, tc.src)
			}
		})
	}
}

func TestParseTemplateKeepsTextOfBadMarkers(t *testing.T) {
	src := "a{@/if}b{@each x}c"
	tpl, _ := ParseTemplate(src, 0)
	if len(tpl.Nodes) != 1 {
		t.Fatalf("got %d nodes, want a single merged text node", len(tpl.Nodes))
	}
	if text := tpl.Nodes[0].(*TextNode).Text; text != src {
		t.Errorf("text = %q, want %q", text, src)
	}
}

func TestParseTemplateManyUnclosedBlocks(t *testing.T) {
	testCases := []struct {
		name   string
		opener string
	}{
		{"if", "{@if a}"},
		{"each", "{@each a}"},
		{"mixed", "{@if a}{@each b}"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := strings.Repeat(tc.opener, 40)
			type result struct {
				tpl   *Template
				diags []Diagnostic
			}
			done := make(chan result, 1)
			go func() {
				tpl, diags := ParseTemplate(src, 0)
				done <- result{tpl, diags}
			}()

			var res result
			select {
			case res = <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("ParseTemplate() did not finish within 2s")
			}

			if len(res.tpl.Nodes) != 1 {
				t.Fatalf("got %d nodes, want a single text node", len(res.tpl.Nodes))
			}
			if text := res.tpl.Nodes[0].(*TextNode).Text; text != src {
				t.Errorf("text = %q, want the source", text)
			}
			if want := strings.Count(src, "{@"); len(res.diags) != want {
				t.Errorf("got %d diagnostics, want %d", len(res.diags), want)
			}
			for _, d := range res.diags {
				if !strings.HasPrefix(d.Message, "unterminated") {
					t.Errorf("diagnostic %v, want unterminated", d)
				}
			}
		})
	}
}

func TestCountShorthand(t *testing.T) {
	testCases := []struct {
		src       string
		wantCount bool
	}{
		{"{@rows_count}", true},
		{"{@rows-count}", true},
		{"{@rows_count|raw}", false},
		{"{@_count}", false},
		{"{@counter}", false},
	}
	for _, tc := range testCases {
		tpl, _ := ParseTemplate(tc.src, 0)
		_, isCount := tpl.Nodes[0].(*CountNode)
		if isCount != tc.wantCount {
			t.Errorf("ParseTemplate(%q) count node = %v, want %v", tc.src, isCount, tc.wantCount)
		}
	}
}

func TestParseExpr(t *testing.T) {
	testCases := []struct {
		in   string
		want Expr
	}{
		{"featured", Expr{Kind: ExprTruthy, Field: "featured", Raw: "featured"}},
		{"not is-new", Expr{Kind: ExprNot, Field: "is_new", Raw: "not is-new"}},
		{"NOT x", Expr{Kind: ExprNot, Field: "x", Raw: "NOT x"}},
		{"price >= 10", Expr{Kind: ExprCompare, Field: "price", Op: OpGe, Right: Operand{Value: fields.Number(10)}, Raw: "price >= 10"}},
		{"name == 'A B'", Expr{Kind: ExprCompare, Field: "name", Op: OpEq, Right: Operand{Value: fields.String("A B")}, Raw: "name == 'A B'"}},
		{"tags CONTAINS red", Expr{Kind: ExprCompare, Field: "tags", Op: OpContains, Right: Operand{Value: fields.String("red")}, Raw: "tags CONTAINS red"}},
		{"a != {b.c}", Expr{Kind: ExprCompare, Field: "a", Op: OpNe, Right: Operand{Ref: "b.c"}, Raw: "a != {b.c}"}},
		{"a < b c", Expr{Kind: ExprCompare, Field: "a", Op: OpLt, Right: Operand{Value: fields.String("b c")}, Raw: "a < b c"}},
		{"a ~ b", Expr{Kind: ExprInvalid, Raw: "a ~ b"}},
		{"", Expr{Kind: ExprInvalid, Raw: ""}},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, ParseExpr(tc.in)); diff != "" {
				t.Errorf("ParseExpr(%q) mismatch (-want +got):\n%s", tc.in, diff)
			}
		})
	}
}

func TestParseLiteral(t *testing.T) {
	testCases := []struct {
		in   string
		want Operand
	}{
		{`"quoted"`, Operand{Value: fields.String("quoted")}},
		{`'single'`, Operand{Value: fields.String("single")}},
		{"null", Operand{Value: fields.Null{}}},
		{"TRUE", Operand{Value: fields.Bool(true)}},
		{"false", Operand{Value: fields.Bool(false)}},
		{"-2.5", Operand{Value: fields.Number(-2.5)}},
		{"{other-field}", Operand{Ref: "other_field"}},
		{"plain", Operand{Value: fields.String("plain")}},
		{`"mismatched'`, Operand{Value: fields.String(`"mismatched'`)}},
	}
	for _, tc := range testCases {
		if diff := cmp.Diff(tc.want, ParseLiteral(tc.in)); diff != "" {
			t.Errorf("ParseLiteral(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestCompare(t *testing.T) {
	list := fields.List{fields.String("red"), fields.Number(2)}
	testCases := []struct {
		name  string
		op    string
		left  fields.Value
		right fields.Value
		want  bool
	}{
		{"numeric equal across types", OpEq, fields.String("10"), fields.Number(10), true},
		{"numeric not string order", OpGt, fields.String("10"), fields.String("9"), true},
		{"string order", OpLt, fields.String("apple"), fields.String("banana"), true},
		{"string equal", OpEq, fields.String("a"), fields.String("a"), true},
		{"string not equal", OpNe, fields.String("a"), fields.String("b"), true},
		{"null equals empty", OpEq, fields.Null{}, fields.String(""), true},
		{"bool true equals 1", OpEq, fields.Bool(true), fields.String("1"), true},
		{"le", OpLe, fields.Number(3), fields.Number(3), true},
		{"list contains", OpContains, list, fields.String("red"), true},
		{"list contains number", OpContains, list, fields.String("2"), true},
		{"list missing", OpContains, list, fields.String("re"), false},
		{"substring", OpContains, fields.String("hello world"), fields.String("lo w"), true},
		{"not contains", OpNotContains, fields.String("abc"), fields.String("z"), true},
		{"list joined for equality", OpEq, list, fields.String("red,2"), true},
		{"unknown op", "~", fields.Number(1), fields.Number(1), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compare(tc.op, tc.left, tc.right); got != tc.want {
				t.Errorf("Compare(%q, %#v, %#v) = %v, want %v", tc.op, tc.left, tc.right, got, tc.want)
			}
		})
	}
}
