package main

import (
	"net/http"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/CTAG07/acfget/pkg/templating"
)

func TestServerConfigAPI(t *testing.T) {
	ts := setupTestServer(t)

	var cfg Config
	decodeJSON(t, ts.do(http.MethodGet, "/api/server/config", "", ""), &cfg)
	if cfg.Server.ApiAddr != "localhost:7380" || cfg.Store.Driver != "fixture" {
		t.Fatalf("GET config = %+v, want defaults", cfg.Server)
	}

	rec := ts.do(http.MethodPut, "/api/server/config",
		`{"template_config":{"locale":"de_DE","timezone":"Europe/Berlin","default_separator":" | "}}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT config = %d %q", rec.Code, rec.Body.String())
	}
	live := ts.engine.GetConfig()
	if live.Locale != "de_DE" || live.Timezone != "Europe/Berlin" || live.DefaultSeparator != " | " {
		t.Errorf("engine config = %+v, want the update applied", live)
	}
	if live.MaxNestingDepth != templating.DefaultConfig().MaxNestingDepth {
		t.Errorf("omitted max_nesting_depth changed to %d", live.MaxNestingDepth)
	}
	if got := ts.cm.Get().Server.ApiAddr; got != "localhost:7380" {
		t.Errorf("omitted server section changed, api_addr = %q", got)
	}
	if rec = ts.do(http.MethodGet, "/api/render?field=tags&post_id=10", "", ""); rec.Body.String() != "red | blue" {
		t.Errorf("render after update = %q, want the new separator", rec.Body.String())
	}
	saved, err := os.ReadFile(ts.cm.configPath)
	if err != nil || !strings.Contains(string(saved), `"Europe/Berlin"`) {
		t.Errorf("config file not rewritten: %v", err)
	}

	testCases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"template_config":`},
		{"depth out of range", `{"template_config":{"max_nesting_depth":0}}`},
		{"unknown fallback", `{"template_config":{"conditional_fallback":"sometimes"}}`},
		{"bad timezone", `{"template_config":{"timezone":"Mars/Olympus"}}`},
		{"bad address", `{"server_config":{"api_addr":"no port"}}`},
		{"bad driver", `{"store_config":{"driver":"postgres"}}`},
		{"mysql without dsn", `{"store_config":{"driver":"mysql"}}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := ts.do(http.MethodPut, "/api/server/config", tc.body, ""); rec.Code != http.StatusBadRequest {
				t.Errorf("PUT %s = %d, want 400", tc.body, rec.Code)
			}
		})
	}

	after := ts.cm.Get()
	if after.Server.ApiAddr != "localhost:7380" || after.Store.Driver != "fixture" || after.Templates.Timezone != "Europe/Berlin" {
		t.Errorf("rejected updates leaked into the live config: %+v %+v %+v", after.Server, after.Store, after.Templates)
	}
	if ts.engine.GetConfig().Timezone != "Europe/Berlin" {
		t.Errorf("rejected timezone reached the engine")
	}

	if rec = ts.do(http.MethodDelete, "/api/server/config", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE config = %d, want 405", rec.Code)
	}
}

func TestServerVersion(t *testing.T) {
	ts := setupTestServer(t)

	var info VersionInfo
	decodeJSON(t, ts.do(http.MethodGet, "/api/server/version", "", ""), &info)
	if info.Version != Version || info.Commit != Commit || info.BuildDate != BuildDate {
		t.Errorf("version = %+v", info)
	}
	if info.GoVersion != runtime.Version() || info.StoreDriver != "fixture" {
		t.Errorf("runtime info = %+v", info)
	}
}

func TestServerActions(t *testing.T) {
	ts := setupTestServer(t)

	for path, want := range map[string]string{
		"/api/server/restart":  actionRestart,
		"/api/server/shutdown": actionShutdown,
	} {
		rec := ts.do(http.MethodPost, path, "", "")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("POST %s = %d, want 202", path, rec.Code)
		}
		select {
		case got := <-ts.actions:
			if got != want {
				t.Errorf("POST %s sent %q, want %q", path, got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("POST %s sent no action", path)
		}

		if rec = ts.do(http.MethodGet, path, "", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s = %d, want 405", path, rec.Code)
		}
	}
}

func TestServerActionPending(t *testing.T) {
	ts := setupTestServer(t)

	if rec := ts.do(http.MethodPost, "/api/server/restart", "", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("first restart = %d, want 202", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/api/server/shutdown", "", ""); rec.Code != http.StatusConflict {
		t.Errorf("second action while one is pending = %d, want 409", rec.Code)
	}
	if got := <-ts.actions; got != actionRestart {
		t.Errorf("pending action = %q, want %q", got, actionRestart)
	}
}
