package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
)

const (
	actionShutdown = "shutdown"
	actionRestart  = "restart"
)

// ServerAPI holds the dependencies for the main application API handlers.
type ServerAPI struct {
	cm         *ConfigManager
	actionChan chan string
	logger     *slog.Logger
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildDate   string `json:"build_date"`
	GoVersion   string `json:"go_version"`
	StoreDriver string `json:"store_driver"`
}

// NewServerAPI creates a new instance of the ServerAPI.
func NewServerAPI(cm *ConfigManager, actionChan chan string, logger *slog.Logger) *ServerAPI {
	return &ServerAPI{
		cm:         cm,
		actionChan: actionChan,
		logger:     logger,
	}
}

// RegisterRoutes sets up the routing for all /api/server endpoints.
func (a *ServerAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/server/config", a.handleConfig)
	mux.HandleFunc("/api/server/version", a.handleVersion)
	mux.HandleFunc("/api/server/shutdown", a.handleShutdown)
	mux.HandleFunc("/api/server/restart", a.handleRestart)
}

// handleConfig gets or updates the configuration. Template settings apply to
// the live engine at once; server and store settings need a restart.
func (a *ServerAPI) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !hasScope(r, "server:config") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'server:config' scope")
			return
		}
		respondWithJSON(w, http.StatusOK, a.cm.Get())
	case http.MethodPut:
		if !hasScope(r, "server:config") {
			respondWithError(w, http.StatusForbidden, "Forbidden: requires 'server:config' scope")
			return
		}
		// Start from a copy of the current config so omitted sections keep
		// their values and a rejected update leaves the live one untouched.
		current := a.cm.Get()
		server, templates, store := *current.Server, *current.Templates, *current.Store
		newConfig := Config{Server: &server, Templates: &templates, Store: &store}
		if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		if err := a.cm.Update(newConfig); err != nil {
			a.logger.Warn("Rejected configuration update", "error", err)
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		a.logger.Info("Configuration updated via API. Server and store changes take effect after a restart.")
		respondWithJSON(w, http.StatusOK, a.cm.Get())
	default:
		w.Header().Set("Allow", "GET, PUT")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleVersion returns the application's build information.
func (a *ServerAPI) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "stats:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'stats:read' scope")
		return
	}

	respondWithJSON(w, http.StatusOK, VersionInfo{
		Version:     Version,
		Commit:      Commit,
		BuildDate:   BuildDate,
		GoVersion:   runtime.Version(),
		StoreDriver: a.cm.Get().Store.Driver,
	})
}

func (a *ServerAPI) handleShutdown(w http.ResponseWriter, r *http.Request) {
	a.handleAction(w, r, actionShutdown, "Server is shutting down...")
}

func (a *ServerAPI) handleRestart(w http.ResponseWriter, r *http.Request) {
	a.handleAction(w, r, actionRestart, "Server is restarting...")
}

// handleAction hands the action to the run loop. Only one action may be
// pending at a time.
func (a *ServerAPI) handleAction(w http.ResponseWriter, r *http.Request, action, message string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !hasScope(r, "server:control") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'server:control' scope")
		return
	}

	select {
	case a.actionChan <- action:
		a.logger.Warn("Server action requested via API", "action", action)
		respondWithJSON(w, http.StatusAccepted, map[string]string{"message": message})
	default:
		respondWithError(w, http.StatusConflict, "Another server action is already pending")
	}
}

// handleHealthCheck reports liveness. It is served without authentication.
func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
