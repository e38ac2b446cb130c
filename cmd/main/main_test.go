package main

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CTAG07/acfget/pkg/fixture"
	"github.com/CTAG07/acfget/pkg/templating"
)

const testFixture = `
site_url: http://example.test/
fields:
  - {key: field_price, name: price, type: number}
  - {key: field_tags, name: tags, type: checkbox}
posts:
  - id: 10
    title: Hello & Welcome
    slug: hello
    fields:
      price: 1234.5
      tags: [red, blue]
  - {id: 11, title: Second, slug: second}
options:
  phone: 555-0100
`

type testServer struct {
	server  *Server
	handler http.Handler
	cm      *ConfigManager
	db      *sql.DB
	engine  *templating.Engine
	library *TemplateLibrary
	actions chan string
}

// setupTestServer wires a full API server over a temp directory: config file,
// SQLite database, fixture source and template library.
func setupTestServer(tb testing.TB) *testServer {
	tb.Helper()
	dir := tb.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fixturePath := filepath.Join(dir, "fixture.yaml")
	if err := os.WriteFile(fixturePath, []byte(testFixture), 0o644); err != nil {
		tb.Fatalf("failed to write fixture: %v", err)
	}

	cm, err := NewConfigManager(filepath.Join(dir, "config.json"))
	if err != nil {
		tb.Fatalf("failed to create config manager: %v", err)
	}
	cm.SetLogger(logger)

	db, err := initDB(filepath.Join(dir, "acfget.db"))
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}
	tb.Cleanup(func() {
		_ = db.Close()
	})
	if err = setupAuthSchema(db); err != nil {
		tb.Fatalf("failed to setup auth schema: %v", err)
	}
	if err = setupStatsSchema(db); err != nil {
		tb.Fatalf("failed to setup stats schema: %v", err)
	}

	src, err := fixture.Load(fixturePath)
	if err != nil {
		tb.Fatalf("failed to load fixture: %v", err)
	}
	engine, err := templating.NewEngine(logger, src, templating.DefaultConfig())
	if err != nil {
		tb.Fatalf("failed to create engine: %v", err)
	}
	cm.SetEngine(engine)

	library, err := NewTemplateLibrary(filepath.Join(dir, "templates"))
	if err != nil {
		tb.Fatalf("failed to create template library: %v", err)
	}

	actions := make(chan string, 1)
	server := NewServer(cm, logger, db, engine, library, actions)
	return &testServer{
		server:  server,
		handler: server.Handler(),
		cm:      cm,
		db:      db,
		engine:  engine,
		library: library,
		actions: actions,
	}
}

// do sends one request through the full handler chain. An empty key sends no
// auth header.
func (ts *testServer) do(method, target, body, key string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if key != "" {
		req.Header.Set(authHeader, key)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// createKey creates an API key and returns the raw key.
func (ts *testServer) createKey(tb testing.TB, masterKey string, scopes ...string) CreateKeyResponse {
	tb.Helper()
	payload, _ := json.Marshal(CreateKeyRequest{Scopes: scopes, Description: "test"})
	rec := ts.do(http.MethodPost, "/api/auth/keys", string(payload), masterKey)
	if rec.Code != http.StatusCreated {
		tb.Fatalf("create key: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp CreateKeyResponse
	decodeJSON(tb, rec, &resp)
	return resp
}

func decodeJSON(tb testing.TB, rec *httptest.ResponseRecorder, v any) {
	tb.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		tb.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)
	ts.createKey(t, "", "*")

	rec := ts.do(http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("GET /api/health = %d %q, want 200 ok without a key", rec.Code, rec.Body.String())
	}

	rec = ts.do(http.MethodPost, "/api/health", "", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, HEAD" {
		t.Errorf("POST /api/health = %d (Allow %q), want 405", rec.Code, rec.Header().Get("Allow"))
	}
}

func TestGetClientIP(t *testing.T) {
	testCases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"remote addr without port", nil, "192.0.2.1", "192.0.2.1"},
		{"real ip wins", map[string]string{"X-Real-Ip": "198.51.100.7", "X-Forwarded-For": "203.0.113.1"}, "192.0.2.1:1", "198.51.100.7"},
		{"first forwarded", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "192.0.2.1:1", "203.0.113.1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tc.want {
				t.Errorf("getClientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResponseCompression(t *testing.T) {
	ts := setupTestServer(t)
	long := strings.Repeat("acf ", 600)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(body))
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send(`{"template":"` + long + `","ambient":{"post_id":10}}`)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("large render = %d, Content-Encoding %q, want gzip", rec.Code, rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("failed to decompress: %v", err)
	}
	if string(got) != long {
		t.Errorf("decompressed body has %d bytes, want %d", len(got), len(long))
	}

	rec = send(`{"template":"short","ambient":{"post_id":10}}`)
	if rec.Header().Get("Content-Encoding") != "" || rec.Body.String() != "short" {
		t.Errorf("small render was compressed: %q", rec.Header().Get("Content-Encoding"))
	}
}

func TestNewCompressionWrapper(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	payload := strings.Repeat("x", 4096)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, payload)
	})

	testCases := []struct {
		name     string
		cfg      CompressionConfig
		wantGzip bool
	}{
		{"disabled", CompressionConfig{Enabled: false, Level: "best"}, false},
		{"level none", CompressionConfig{Enabled: true, Level: "none"}, false},
		{"fastest", CompressionConfig{Enabled: true, Level: "fastest", MinSize: 512}, true},
		{"best", CompressionConfig{Enabled: true, Level: "best"}, true},
		{"above payload", CompressionConfig{Enabled: true, Level: "default", MinSize: 8192}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			rec := httptest.NewRecorder()
			newCompressionWrapper(tc.cfg, logger)(h).ServeHTTP(rec, req)
			if gotGzip := rec.Header().Get("Content-Encoding") == "gzip"; gotGzip != tc.wantGzip {
				t.Errorf("compressed = %v, want %v", gotGzip, tc.wantGzip)
			}
		})
	}
}
