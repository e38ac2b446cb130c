package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"

	"github.com/CTAG07/acfget/pkg/fields"
	"github.com/CTAG07/acfget/pkg/templating"
)

// RenderAPI serves field and template renders.
type RenderAPI struct {
	engine   *templating.Engine
	library  *TemplateLibrary
	stats    *StatsAPI
	cm       *ConfigManager
	minifier *minify.M
	logger   *slog.Logger
}

// renderBody is the JSON envelope of a POST render. The invocation attributes
// sit at the top level next to these keys.
type renderBody struct {
	Template     *string        `json:"template"`
	TemplateName string         `json:"template_name"`
	Ambient      fields.Ambient `json:"ambient"`
}

// parseResponse reports the diagnostics of a template body.
type parseResponse struct {
	Valid       bool                    `json:"valid"`
	Diagnostics []templating.Diagnostic `json:"diagnostics"`
}

func NewRenderAPI(engine *templating.Engine, library *TemplateLibrary, stats *StatsAPI, cm *ConfigManager, logger *slog.Logger) *RenderAPI {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	return &RenderAPI{
		engine:   engine,
		library:  library,
		stats:    stats,
		cm:       cm,
		minifier: m,
		logger:   logger,
	}
}

// RegisterRoutes sets up the routing for all /api/render endpoints.
func (a *RenderAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/render", a.handleRender)
	mux.HandleFunc("/api/render/parse", a.handleParse)
}

func (a *RenderAPI) handleRender(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "render") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'render' scope")
		return
	}

	var req templating.Request
	switch r.Method {
	case http.MethodGet:
		req = requestFromQuery(r)
	case http.MethodPost:
		var err error
		if req, err = a.requestFromBody(r); err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.Is(err, errTemplateNotFound):
				respondWithError(w, http.StatusNotFound, err.Error())
			case errors.As(err, &tooLarge):
				respondWithBodyError(w, err)
			default:
				respondWithError(w, http.StatusBadRequest, err.Error())
			}
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	start := time.Now()
	out := a.engine.Render(r.Context(), req)
	elapsed := time.Since(start)

	if a.cm.Get().Server.MinifyHTML && strings.Contains(out, "<") {
		if minified, err := a.minifier.String("text/html", out); err == nil {
			out = minified
		} else {
			a.logger.Warn("Failed to minify render output", "error", err)
		}
	}

	if a.stats != nil {
		if err := a.stats.LogRender(r.Context(), req, len(out), elapsed); err != nil {
			a.logger.Warn("Failed to record render stats", "error", err)
		}
	}
	a.logger.Debug("Rendered", "field", req.Params.Field, "ctx", req.Params.Ctx, "id", req.Params.ID,
		"template", req.Body != nil, "bytes", len(out), "elapsed", elapsed)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// requestFromQuery reads a self-closing render from query parameters. The
// ambient ids are read from post_id, term_id and user_id.
func requestFromQuery(r *http.Request) templating.Request {
	q := r.URL.Query()
	attrs := make(map[string]string, len(q))
	for k := range q {
		attrs[k] = q.Get(k)
	}
	amb := fields.Ambient{
		CurrentPostID:  queryInt(q.Get("post_id")),
		QueriedTermID:  queryInt(q.Get("term_id")),
		LoggedInUserID: queryInt(q.Get("user_id")),
	}
	return templating.Request{Params: templating.ParamsFromMap(attrs), Ambient: amb}
}

func queryInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (a *RenderAPI) requestFromBody(r *http.Request) (templating.Request, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return templating.Request{}, fmt.Errorf("failed to read request body: %w", err)
	}
	var body renderBody
	if err = json.Unmarshal(data, &body); err != nil {
		return templating.Request{}, errors.New("invalid JSON request body")
	}
	var params templating.Params
	if err = json.Unmarshal(data, &params); err != nil {
		return templating.Request{}, errors.New("invalid JSON request body")
	}

	req := templating.Request{Params: params, Body: body.Template, Ambient: body.Ambient}
	if body.TemplateName != "" && req.Body == nil {
		tpl, err := a.library.Get(body.TemplateName)
		if err != nil {
			return templating.Request{}, err
		}
		req.Body = &tpl
	}
	return req, nil
}

// handleParse checks a template body and returns its diagnostics.
func (a *RenderAPI) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "render") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'render' scope")
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, a.check(string(body)))
}

func (a *RenderAPI) check(body string) parseResponse {
	_, diags := a.engine.Parse(body)
	if diags == nil {
		diags = []templating.Diagnostic{}
	}
	return parseResponse{Valid: len(diags) == 0, Diagnostics: diags}
}
