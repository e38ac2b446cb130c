package templating

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CTAG07/acfget/pkg/fields"
)

// Params are the attributes of a render request. The zero value renders the
// current post with formatted values and the configured separator.
type Params struct {
	Field  string  `json:"field"`
	Type   string  `json:"type"`
	Ctx    string  `json:"ctx"`
	ID     string  `json:"id"`
	Format string  `json:"format"`
	As     string  `json:"as"`
	Attr   string  `json:"attr"`
	Alt    string  `json:"alt"`
	Title  string  `json:"title"`
	Sep    *string `json:"sep,omitempty"`
	Limit  string  `json:"limit"`
}

// ParamsFromMap builds Params from raw attribute strings. Unknown keys are
// ignored and missing ones keep their defaults.
func ParamsFromMap(m map[string]string) Params {
	p := Params{Ctx: "post", Format: "1"}
	for k, v := range m {
		switch strings.ToLower(k) {
		case "field":
			p.Field = v
		case "type":
			p.Type = v
		case "ctx":
			p.Ctx = v
		case "id":
			p.ID = v
		case "format":
			p.Format = v
		case "as":
			p.As = v
		case "attr":
			p.Attr = v
		case "alt":
			p.Alt = v
		case "title":
			p.Title = v
		case "sep":
			sep := v
			p.Sep = &sep
		case "limit":
			p.Limit = v
		}
	}
	return p
}

// UnmarshalJSON accepts attribute values as strings, numbers or booleans.
func (p *Params) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	m := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		m[k] = fields.Stringify(fields.FromAny(v))
	}
	*p = ParamsFromMap(m)
	return nil
}

// Formatted reports whether field values should be returned formatted.
func (p Params) Formatted() bool {
	return p.Format == "" || p.Format == "1"
}

// Request is a single render call.
type Request struct {
	Params  Params
	Body    *string
	Ambient fields.Ambient
}

// Engine renders field values and templates against a Source.
// All methods are concurrent-safe.
type Engine struct {
	logger   *slog.Logger
	config   *Config
	loc      *time.Location
	src      fields.Source
	resolver *fields.Resolver
	mu       sync.RWMutex
}

// NewEngine creates an Engine over src. A nil logger discards output and a
// nil config uses DefaultConfig.
func NewEngine(logger *slog.Logger, src fields.Source, config *Config) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if src == nil {
		return nil, fmt.Errorf("nil field source")
	}

	e := &Engine{logger: logger}
	e.setSource(src)
	if config == nil {
		config = DefaultConfig()
	}
	if err := e.SetConfig(config); err != nil {
		return nil, err
	}
	logger.Info("Render engine initialized", "fallback", config.Fallback, "locale", config.Locale)
	return e, nil
}

// SetConfig applies a new configuration. The previous configuration stays in
// effect if the timezone cannot be loaded.
func (e *Engine) SetConfig(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.Fallback == "" {
		cfg.Fallback = FallbackLastElseif
	}
	if cfg.MaxNestingDepth <= 0 {
		cfg.MaxNestingDepth = DefaultConfig().MaxNestingDepth
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = &cfg
	e.loc = loc
	return nil
}

// GetConfig returns a copy of the current configuration.
func (e *Engine) GetConfig() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.config
}

// SetSource swaps the field data source, e.g. after a fixture reload.
func (e *Engine) SetSource(src fields.Source) {
	if src == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setSource(src)
}

func (e *Engine) setSource(src fields.Source) {
	e.src = src
	e.resolver = fields.NewResolver(src)
	e.resolver.SetLogger(e.logger)
}

// Parse parses a template body with the configured nesting limit.
func (e *Engine) Parse(body string) (*Template, []Diagnostic) {
	return ParseTemplate(body, e.GetConfig().MaxNestingDepth)
}

// Resolve evaluates a single field path against ref.
func (e *Engine) Resolve(ctx context.Context, path string, ref fields.Ref, formatted bool) fields.Value {
	e.mu.RLock()
	res := e.resolver
	e.mu.RUnlock()
	return res.ResolveString(ctx, path, ref, formatted)
}

func (e *Engine) newRenderer(ref fields.Ref) (*renderer, Config) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &renderer{
		res:      e.resolver,
		src:      e.src,
		ref:      ref,
		fallback: e.config.Fallback,
		fmt:      newFormatter(e.src, e.loc, e.config.Locale),
		logger:   e.logger,
	}, *e.config
}

// Render resolves the requested field and renders it, through the body
// template when one is given. It never fails: anything that cannot be
// resolved renders as the empty string.
func (e *Engine) Render(ctx context.Context, req Request) string {
	p := req.Params
	if strings.TrimSpace(p.Field) == "" && req.Body == nil {
		return ""
	}

	ref := fields.ResolveContext(p.Ctx, p.ID, req.Ambient)
	r, cfg := e.newRenderer(ref)

	var value fields.Value = fields.Null{}
	if path, ok := fields.ParsePath(p.Field, fields.ParseMode(p.Type)); ok {
		value = r.res.Resolve(ctx, path, ref, p.Formatted())
	}

	if req.Body != nil {
		tpl, diags := ParseTemplate(strings.TrimSpace(*req.Body), cfg.MaxNestingDepth)
		e.logDiagnostics(ctx, diags)

		var sb strings.Builder
		base := r.baseScope(ctx)
		if list, ok := value.(fields.List); ok {
			for i, row := range applyLimit(list, p.Limit) {
				r.render(ctx, &sb, tpl.Nodes, rowScope(base, row, i+1))
			}
		} else {
			r.render(ctx, &sb, tpl.Nodes, rowScope(base, value, 1))
		}
		return sb.String()
	}

	sep := cfg.DefaultSeparator
	if p.Sep != nil {
		sep = *p.Sep
	}
	return r.fmt.renderValue(ctx, value, p, sep)
}

// RenderTemplate renders an already parsed template once, with root as the
// current row.
func (e *Engine) RenderTemplate(ctx context.Context, tpl *Template, ref fields.Ref, root fields.Value) string {
	if tpl == nil {
		return ""
	}
	r, _ := e.newRenderer(ref)
	var sb strings.Builder
	r.render(ctx, &sb, tpl.Nodes, rowScope(r.baseScope(ctx), fields.OrNull(root), 1))
	return sb.String()
}

func (e *Engine) logDiagnostics(ctx context.Context, diags []Diagnostic) {
	if len(diags) == 0 {
		return
	}
	sort.Slice(diags, func(i, j int) bool { return diags[i].Offset < diags[j].Offset })
	for _, d := range diags {
		e.logger.DebugContext(ctx, "template marker kept as text", "offset", d.Offset, "reason", d.Message)
	}
}
