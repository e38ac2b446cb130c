package templating

import (
	"fmt"
	"strings"

	"github.com/CTAG07/acfget/pkg/fields"
)

// Node is an element of a parsed template.
type Node interface {
	node()
}

// TextNode is literal output.
type TextNode struct {
	Text string
}

// TokenNode is a {@path|pipe|pipe:arg} placeholder.
type TokenNode struct {
	Pos   int
	Raw   string
	Path  string
	Pipes []Pipe
}

// CountNode is the {@name_count} shorthand.
type CountNode struct {
	Pos  int
	Raw  string
	Name string
}

// LoopNode is an {@each path}...{@/each} block.
type LoopNode struct {
	Pos  int
	Path string
	Body []Node
}

// Branch is one guarded body of a conditional.
type Branch struct {
	Expr Expr
	Body []Node
}

// CondNode is an {@if}...{@elseif}...{@else}...{@/if} block.
type CondNode struct {
	Pos      int
	Branches []Branch
	Else     []Node
	HasElse  bool
}

func (*TextNode) node()  {}
func (*TokenNode) node() {}
func (*CountNode) node() {}
func (*LoopNode) node()  {}
func (*CondNode) node()  {}

// Diagnostic describes a marker the parser could not place in the tree. The
// marker is kept in the output as literal text.
type Diagnostic struct {
	Offset  int    `json:"offset"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("offset %d: %s", d.Offset, d.Message)
}

// Template is a parsed template body.
type Template struct {
	Source string
	Nodes  []Node
}

// ParseTemplate parses src into a tree of nodes. Loops and conditionals nest
// up to maxDepth levels. Unterminated blocks, stray closing markers and
// directives beyond the depth limit are reported and kept as literal text.
func ParseTemplate(src string, maxDepth int) (*Template, []Diagnostic) {
	if maxDepth <= 0 {
		maxDepth = DefaultConfig().MaxNestingDepth
	}
	p := &parser{items: lex(src), maxDepth: maxDepth, unclosed: make(map[blockKey]bool)}
	nodes, _ := p.parseNodes(0, nil)
	return &Template{Source: src, Nodes: nodes}, p.diags
}

type itemKind uint8

const (
	itemText itemKind = iota
	itemToken
	itemEachOpen
	itemEachClose
	itemIfOpen
	itemElseif
	itemElse
	itemIfClose
)

type item struct {
	kind  itemKind
	pos   int
	raw   string
	arg   string
	pipes string
}

type parser struct {
	items    []item
	pos      int
	maxDepth int
	diags    []Diagnostic
	// unclosed holds the openers already found to have no closing marker.
	// Parsing depends only on the position and depth, so a failed opener is
	// not parsed again when an enclosing block rewinds over it.
	unclosed map[blockKey]bool
}

type blockKey struct {
	item  int
	depth int
}

func (p *parser) report(it item, format string, args ...any) {
	p.diags = append(p.diags, Diagnostic{Offset: it.pos, Message: fmt.Sprintf(format, args...)})
}

// parseNodes consumes items until one satisfies stop, which is consumed and
// returned. A nil item means the input ran out first.
func (p *parser) parseNodes(depth int, stop func(itemKind) bool) ([]Node, *item) {
	var nodes []Node
	for p.pos < len(p.items) {
		it := p.items[p.pos]
		p.pos++
		if stop != nil && stop(it.kind) {
			return nodes, &it
		}

		switch it.kind {
		case itemText:
			nodes = appendText(nodes, it.raw)
		case itemToken:
			nodes = append(nodes, newTokenNode(it))
		case itemEachOpen:
			if depth >= p.maxDepth {
				p.report(it, "nesting deeper than %d levels", p.maxDepth)
				nodes = appendText(nodes, it.raw)
				continue
			}
			key, resume, mark := blockKey{p.pos - 1, depth}, p.pos, len(p.diags)
			var body []Node
			var end *item
			if !p.unclosed[key] {
				body, end = p.parseNodes(depth+1, isEachClose)
			}
			if end == nil {
				p.pos, p.diags = resume, p.diags[:mark]
				p.unclosed[key] = true
				p.report(it, "unterminated {@each %s}", it.arg)
				nodes = appendText(nodes, it.raw)
				continue
			}
			nodes = append(nodes, &LoopNode{Pos: it.pos, Path: it.arg, Body: body})
		case itemIfOpen:
			if depth >= p.maxDepth {
				p.report(it, "nesting deeper than %d levels", p.maxDepth)
				nodes = appendText(nodes, it.raw)
				continue
			}
			key, resume, mark := blockKey{p.pos - 1, depth}, p.pos, len(p.diags)
			var cond *CondNode
			ok := false
			if !p.unclosed[key] {
				cond, ok = p.parseCond(it, depth)
			}
			if !ok {
				p.pos, p.diags = resume, p.diags[:mark]
				p.unclosed[key] = true
				p.report(it, "unterminated {@if %s}", it.arg)
				nodes = appendText(nodes, it.raw)
				continue
			}
			nodes = append(nodes, cond)
		default:
			p.report(it, "unexpected %s", it.raw)
			nodes = appendText(nodes, it.raw)
		}
	}
	return nodes, nil
}

func (p *parser) parseCond(open item, depth int) (*CondNode, bool) {
	node := &CondNode{Pos: open.pos}
	expr := ParseExpr(open.arg)
	for {
		body, end := p.parseNodes(depth+1, isBranchEnd)
		if end == nil {
			return nil, false
		}
		node.Branches = append(node.Branches, Branch{Expr: expr, Body: body})

		switch end.kind {
		case itemIfClose:
			return node, true
		case itemElseif:
			expr = ParseExpr(end.arg)
		case itemElse:
			body, end = p.parseNodes(depth+1, isIfClose)
			if end == nil {
				return nil, false
			}
			node.Else = body
			node.HasElse = true
			return node, true
		}
	}
}

func isEachClose(k itemKind) bool { return k == itemEachClose }
func isIfClose(k itemKind) bool   { return k == itemIfClose }
func isBranchEnd(k itemKind) bool {
	return k == itemElseif || k == itemElse || k == itemIfClose
}

func appendText(nodes []Node, s string) []Node {
	if s == "" {
		return nodes
	}
	if n := len(nodes); n > 0 {
		if t, ok := nodes[n-1].(*TextNode); ok {
			t.Text += s
			return nodes
		}
	}
	return append(nodes, &TextNode{Text: s})
}

func newTokenNode(it item) Node {
	path := fields.NormalizeName(it.arg)
	if it.pipes == "" && strings.HasSuffix(path, "_count") && len(path) > len("_count") {
		return &CountNode{Pos: it.pos, Raw: it.raw, Name: strings.TrimSuffix(path, "_count")}
	}
	return &TokenNode{Pos: it.pos, Raw: it.raw, Path: path, Pipes: ParsePipes(it.pipes)}
}

// lex splits src into literal text and marker items. A "{@" that does not
// start a well-formed marker is literal text.
func lex(src string) []item {
	var items []item
	text := 0
	for i := 0; i < len(src); {
		j := strings.Index(src[i:], "{@")
		if j < 0 {
			break
		}
		start := i + j
		it, ok := lexMarker(src, start)
		if !ok {
			i = start + 2
			continue
		}
		if start > text {
			items = append(items, item{kind: itemText, pos: text, raw: src[text:start]})
		}
		items = append(items, it)
		i = start + len(it.raw)
		text = i
	}
	if text < len(src) {
		items = append(items, item{kind: itemText, pos: text, raw: src[text:]})
	}
	return items
}

func lexMarker(src string, start int) (item, bool) {
	rest := src[start+2:]
	fixed := func(kind itemKind, tag string) (item, bool) {
		return item{kind: kind, pos: start, raw: "{@" + tag}, true
	}

	switch {
	case strings.HasPrefix(rest, "/each}"):
		return fixed(itemEachClose, "/each}")
	case strings.HasPrefix(rest, "/if}"):
		return fixed(itemIfClose, "/if}")
	case strings.HasPrefix(rest, "else}"):
		return fixed(itemElse, "else}")
	case hasKeyword(rest, "elseif"):
		if expr, n, ok := scanExpr(rest[len("elseif"):]); ok {
			return item{kind: itemElseif, pos: start, raw: src[start : start+2+len("elseif")+n], arg: expr}, true
		}
	case hasKeyword(rest, "if"):
		if expr, n, ok := scanExpr(rest[len("if"):]); ok {
			return item{kind: itemIfOpen, pos: start, raw: src[start : start+2+len("if")+n], arg: expr}, true
		}
	case hasKeyword(rest, "each"):
		if path, n, ok := scanEachPath(rest[len("each"):]); ok {
			return item{kind: itemEachOpen, pos: start, raw: src[start : start+2+len("each")+n], arg: path}, true
		}
	}

	path, pipes, n, ok := scanToken(rest)
	if !ok {
		return item{}, false
	}
	return item{kind: itemToken, pos: start, raw: src[start : start+2+n], arg: path, pipes: pipes}, true
}

func hasKeyword(s, kw string) bool {
	return len(s) > len(kw) && strings.HasPrefix(s, kw) && isSpace(s[len(kw)])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isPathChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c == '_' || c == '.' || c == '-'
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func scanPath(s string, i int) int {
	for i < len(s) && isPathChar(s[i]) {
		i++
	}
	return i
}

// scanEachPath matches `\s+path\s*}` and returns the path and bytes consumed.
func scanEachPath(s string) (string, int, bool) {
	i := skipSpace(s, 0)
	if i == 0 {
		return "", 0, false
	}
	start := i
	i = scanPath(s, i)
	if i == start {
		return "", 0, false
	}
	path := s[start:i]
	i = skipSpace(s, i)
	if i >= len(s) || s[i] != '}' {
		return "", 0, false
	}
	return path, i + 1, true
}

// scanExpr matches `\s+expr}` where expr may itself contain balanced braces
// (field references) and quoted strings.
func scanExpr(s string) (string, int, bool) {
	i := skipSpace(s, 0)
	if i == 0 {
		return "", 0, false
	}
	start := i
	depth := 0
	for i < len(s) {
		switch c := s[i]; c {
		case '"', '\'':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return "", 0, false
			}
			i += end + 2
			continue
		case '{':
			depth++
		case '}':
			if depth == 0 {
				expr := strings.TrimSpace(s[start:i])
				if expr == "" {
					return "", 0, false
				}
				return expr, i + 1, true
			}
			depth--
		}
		i++
	}
	return "", 0, false
}

// scanToken matches `\s*path\s*(\|[^}]+)?}`.
func scanToken(s string) (path, pipes string, n int, ok bool) {
	i := skipSpace(s, 0)
	start := i
	i = scanPath(s, i)
	if i == start {
		return "", "", 0, false
	}
	path = s[start:i]
	i = skipSpace(s, i)
	if i >= len(s) {
		return "", "", 0, false
	}
	switch s[i] {
	case '}':
		return path, "", i + 1, true
	case '|':
		end := strings.IndexByte(s[i:], '}')
		if end <= 1 {
			return "", "", 0, false
		}
		return path, s[i+1 : i+end], i + end + 1, true
	}
	return "", "", 0, false
}
