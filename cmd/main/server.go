package main

import (
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/CTAG07/acfget/pkg/templating"
)

// Server wires the API handlers together behind one mux.
type Server struct {
	cm          *ConfigManager
	db          *sql.DB
	logger      *slog.Logger
	engine      *templating.Engine
	library     *TemplateLibrary
	authAPI     *AuthAPI
	renderAPI   *RenderAPI
	templateAPI *TemplateAPI
	statsAPI    *StatsAPI
	serverAPI   *ServerAPI
	mux         *http.ServeMux
	compress    func(http.Handler) http.Handler
}

func NewServer(cm *ConfigManager, logger *slog.Logger, db *sql.DB, engine *templating.Engine, library *TemplateLibrary, actionChan chan string) *Server {
	statsAPI := NewStatsAPI(db, logger)
	renderAPI := NewRenderAPI(engine, library, statsAPI, cm, logger)

	server := &Server{
		cm:          cm,
		db:          db,
		logger:      logger,
		engine:      engine,
		library:     library,
		authAPI:     NewAuthAPI(db, logger),
		renderAPI:   renderAPI,
		templateAPI: NewTemplateAPI(library, renderAPI, engine, logger),
		statsAPI:    statsAPI,
		serverAPI:   NewServerAPI(cm, actionChan, logger),
		mux:         http.NewServeMux(),
	}
	server.compress = newCompressionWrapper(cm.Get().Server.Compression, logger)

	apiMux := http.NewServeMux()
	server.authAPI.RegisterRoutes(apiMux)
	server.renderAPI.RegisterRoutes(apiMux)
	server.templateAPI.RegisterRoutes(apiMux)
	server.statsAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)

	// Everything but the health check passes through authentication.
	server.mux.HandleFunc("/api/health", handleHealthCheck)
	server.mux.Handle("/api/", server.authAPI.Authenticate(apiMux))

	return server
}

// Handler returns the root handler with body limits, response compression and
// request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.compress(s.limitBody(s.mux)))
}

// newCompressionWrapper builds the gzip middleware for cfg. Compression changes
// apply on restart.
func newCompressionWrapper(cfg CompressionConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	passthrough := func(h http.Handler) http.Handler { return h }
	if !cfg.Enabled || cfg.Level == "none" {
		return passthrough
	}

	level := gzip.DefaultCompression
	switch cfg.Level {
	case "fastest":
		level = gzip.BestSpeed
	case "best":
		level = gzip.BestCompression
	}

	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(cfg.MinSize),
		gzhttp.CompressionLevel(level),
	)
	if err != nil {
		logger.Warn("Response compression disabled", "error", err)
		return passthrough
	}
	return func(h http.Handler) http.Handler { return wrapper(h) }
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limit := s.cm.Get().Server.MaxBodyBytes; limit > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// readBody reads the whole request body. A body over the configured limit is
// answered with 413, any other read failure with 400.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err == nil {
		return body, true
	}
	respondWithBodyError(w, err)
	return nil, false
}

func respondWithBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request body: %v", err))
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote_addr", getClientIP(r),
			"elapsed", time.Since(start))
	})
}

func getClientIP(r *http.Request) string {
	// X-Real-Ip is set by proxies such as nginx.
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}

	// The first entry of X-Forwarded-For is the original client.
	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		ips := strings.Split(forwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
