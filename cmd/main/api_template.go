package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CTAG07/acfget/pkg/templating"
)

// TemplateAPI manages the saved template library.
type TemplateAPI struct {
	library *TemplateLibrary
	render  *RenderAPI
	engine  *templating.Engine
	logger  *slog.Logger
}

// NewTemplateAPI creates a new instance of the TemplateAPI.
func NewTemplateAPI(library *TemplateLibrary, render *RenderAPI, engine *templating.Engine, logger *slog.Logger) *TemplateAPI {
	return &TemplateAPI{
		library: library,
		render:  render,
		engine:  engine,
		logger:  logger,
	}
}

// RegisterRoutes sets up the routing for all /api/templates endpoints.
func (t *TemplateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/templates/preview", t.handlePreview)
	mux.HandleFunc("/api/templates", t.handleList)
	mux.HandleFunc("/api/templates/", t.handleFile)
}

// handleList returns the names of all saved templates.
func (t *TemplateAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "templates:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:read' scope")
		return
	}
	names, err := t.library.Names()
	if err != nil {
		t.logger.Error("Failed to list templates", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}
	respondWithJSON(w, http.StatusOK, names)
}

// handlePreview renders a saved template with the query's render attributes.
func (t *TemplateAPI) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "templates:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:read' scope")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'name' is required")
		return
	}
	body, err := t.library.Get(name)
	if err != nil {
		if errors.Is(err, errTemplateNotFound) {
			respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template '%s' not found", name))
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := requestFromQuery(r)
	req.Body = &body
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, t.engine.Render(r.Context(), req))
}

// handleFile manages CRUD operations for a single saved template.
func (t *TemplateAPI) handleFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/templates/"), "/")
	if name == "" {
		respondWithError(w, http.StatusNotFound, "Not Found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !hasScope(r, "templates:read") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:read' scope")
			return
		}
		body, err := t.library.Get(name)
		if err != nil {
			t.respondLibraryError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, body)

	case http.MethodPut:
		if !hasScope(r, "templates:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:write' scope")
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		if err := t.library.Put(name, string(body)); err != nil {
			t.respondLibraryError(w, err)
			return
		}
		t.logger.Info("Template saved via API", "name", name)
		respondWithJSON(w, http.StatusOK, t.render.check(string(body)))

	case http.MethodDelete:
		if !hasScope(r, "templates:write") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'templates:write' scope")
			return
		}
		if err := t.library.Delete(name); err != nil {
			t.respondLibraryError(w, err)
			return
		}
		t.logger.Info("Template deleted via API", "name", name)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (t *TemplateAPI) respondLibraryError(w http.ResponseWriter, err error) {
	if errors.Is(err, errTemplateNotFound) {
		respondWithError(w, http.StatusNotFound, "Template not found")
		return
	}
	if errors.Is(err, errInvalidTemplateName) {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	t.logger.Error("Template library operation failed", "error", err)
	respondWithError(w, http.StatusInternalServerError, err.Error())
}
