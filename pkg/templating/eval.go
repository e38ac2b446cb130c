package templating

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/CTAG07/acfget/pkg/fields"
)

// renderer carries the per-render state: the context reference, a snapshot of
// the engine settings and the output formatter.
type renderer struct {
	res      *fields.Resolver
	src      fields.Source
	ref      fields.Ref
	fallback FallbackPolicy
	fmt      *formatter
	logger   *slog.Logger
}

func (r *renderer) render(ctx context.Context, sb *strings.Builder, nodes []Node, sc *scope) {
	for _, n := range nodes {
		if ctx.Err() != nil {
			return
		}
		switch t := n.(type) {
		case *TextNode:
			sb.WriteString(t.Text)
		case *TokenNode:
			sb.WriteString(r.fmt.apply(ctx, r.value(ctx, sc, t.Path), t.Pipes))
		case *CountNode:
			sb.WriteString(r.count(ctx, sc, t))
		case *LoopNode:
			r.loop(ctx, sb, t, sc)
		case *CondNode:
			r.cond(ctx, sb, t, sc)
		}
	}
}

// value resolves a token path. The first segment is looked up in the scope
// chain and the rest is stepped from there; a name bound nowhere in the chain
// is resolved against the render context.
func (r *renderer) value(ctx context.Context, sc *scope, raw string) fields.Value {
	if raw == "post_id" {
		raw = "ID"
	}
	path, ok := fields.ParsePath(raw, fields.ModeAuto)
	if !ok {
		return fields.Null{}
	}
	if v, ok := r.lookup(ctx, sc, path.Head()); ok {
		for _, seg := range path.Tail() {
			v = r.res.Step(ctx, v, seg, true)
		}
		return v
	}
	return r.res.Resolve(ctx, path, r.ref, true)
}

func (r *renderer) count(ctx context.Context, sc *scope, n *CountNode) string {
	if v, ok := r.lookup(ctx, sc, n.Name+"_count"); ok {
		return r.fmt.apply(ctx, v, nil)
	}
	if list, ok := r.value(ctx, sc, n.Name).(fields.List); ok {
		return strconv.Itoa(len(list))
	}
	return "0"
}

func (r *renderer) loop(ctx context.Context, sb *strings.Builder, n *LoopNode, sc *scope) {
	list, ok := r.res.ResolveString(ctx, n.Path, r.ref, true).(fields.List)
	if !ok || len(list) == 0 {
		r.logger.DebugContext(ctx, "loop source is empty or not a list", "path", n.Path, "offset", n.Pos)
		return
	}
	for i, row := range list {
		r.render(ctx, sb, n.Body, rowScope(sc, row, i+1))
	}
}

func (r *renderer) cond(ctx context.Context, sb *strings.Builder, n *CondNode, sc *scope) {
	for _, b := range n.Branches {
		if r.eval(ctx, sc, b.Expr) {
			r.render(ctx, sb, b.Body, sc)
			return
		}
	}
	if n.HasElse {
		r.render(ctx, sb, n.Else, sc)
		return
	}

	last := n.Branches[len(n.Branches)-1]
	switch r.fallback {
	case FallbackLastBlock:
		r.render(ctx, sb, last.Body, sc)
	case FallbackLastElseif:
		if len(n.Branches) > 1 {
			r.render(ctx, sb, last.Body, sc)
		}
	}
}

// eval decides a conditional branch. Field operands, including {field}
// references on the right, resolve through the scope chain like tokens do, so
// the current row's bindings win over fields of the render context.
func (r *renderer) eval(ctx context.Context, sc *scope, e Expr) bool {
	switch e.Kind {
	case ExprTruthy:
		return fields.Truthy(r.value(ctx, sc, e.Field))
	case ExprNot:
		return !fields.Truthy(r.value(ctx, sc, e.Field))
	case ExprCompare:
		left := r.value(ctx, sc, e.Field)
		right := fields.OrNull(e.Right.Value)
		if e.Right.Ref != "" {
			right = r.value(ctx, sc, e.Right.Ref)
		}
		return Compare(e.Op, left, right)
	}
	r.logger.DebugContext(ctx, "unrecognized condition", "expr", e.Raw)
	return false
}
