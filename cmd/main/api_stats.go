package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/CTAG07/acfget/pkg/templating"
)

const statsSchema = `
CREATE TABLE IF NOT EXISTS render_stats (
    field         TEXT    NOT NULL,
    ctx           TEXT    NOT NULL,
    templated     INTEGER NOT NULL,
    hits          INTEGER NOT NULL DEFAULT 1,
    total_bytes   INTEGER NOT NULL DEFAULT 0,
    total_micros  INTEGER NOT NULL DEFAULT 0,
    first_seen    DATETIME NOT NULL,
    last_seen     DATETIME NOT NULL,
    PRIMARY KEY (field, ctx, templated)
);
`

// FieldStats is one row of the per-field render counters.
type FieldStats struct {
	Field        string    `json:"field"`
	Ctx          string    `json:"ctx"`
	Templated    bool      `json:"templated"`
	Hits         int64     `json:"hits"`
	TotalBytes   int64     `json:"total_bytes"`
	AvgLatencyUs int64     `json:"avg_latency_us"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}

// RenderSummary provides a high-level overview of all renders served.
type RenderSummary struct {
	TotalRenders   int64 `json:"total_renders"`
	TemplateRender int64 `json:"template_renders"`
	UniqueFields   int64 `json:"unique_fields"`
	TotalBytes     int64 `json:"total_bytes"`
}

// StatsAPI records and serves render counters.
type StatsAPI struct {
	db     *sql.DB
	logger *slog.Logger
}

func setupStatsSchema(db *sql.DB) error {
	_, err := db.Exec(statsSchema)
	return err
}

func NewStatsAPI(db *sql.DB, logger *slog.Logger) *StatsAPI {
	return &StatsAPI{
		db:     db,
		logger: logger,
	}
}

func (s *StatsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stats/summary", s.handleSummary)
	mux.HandleFunc("/api/stats/top_fields", s.handleTopFields)
}

// LogRender counts one render of the request's field. Template renders with
// no field are counted under an empty field name.
func (s *StatsAPI) LogRender(ctx context.Context, req templating.Request, n int, elapsed time.Duration) error {
	now := time.Now()
	templated := 0
	if req.Body != nil {
		templated = 1
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO render_stats (field, ctx, templated, total_bytes, total_micros, first_seen, last_seen)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(field, ctx, templated) DO UPDATE SET
            hits = hits + 1,
            total_bytes = total_bytes + excluded.total_bytes,
            total_micros = total_micros + excluded.total_micros,
            last_seen = excluded.last_seen
    `, req.Params.Field, req.Params.Ctx, templated, n, elapsed.Microseconds(), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert render_stats: %w", err)
	}
	return nil
}

// Summary aggregates every counter row.
func (s *StatsAPI) Summary(ctx context.Context) (RenderSummary, error) {
	var summary RenderSummary
	err := s.db.QueryRowContext(ctx, `
        SELECT COALESCE(SUM(hits), 0),
               COALESCE(SUM(CASE WHEN templated = 1 THEN hits ELSE 0 END), 0),
               COUNT(DISTINCT CASE WHEN field <> '' THEN field END),
               COALESCE(SUM(total_bytes), 0)
        FROM render_stats
    `).Scan(&summary.TotalRenders, &summary.TemplateRender, &summary.UniqueFields, &summary.TotalBytes)
	if err != nil {
		return RenderSummary{}, fmt.Errorf("failed to summarize render_stats: %w", err)
	}
	return summary, nil
}

// TopFields returns the most rendered fields, busiest first.
func (s *StatsAPI) TopFields(ctx context.Context, limit int) ([]FieldStats, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT field, ctx, templated, hits, total_bytes, total_micros, first_seen, last_seen
        FROM render_stats ORDER BY hits DESC, field LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top fields: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	results := make([]FieldStats, 0)
	for rows.Next() {
		var fs FieldStats
		var micros int64
		if err = rows.Scan(&fs.Field, &fs.Ctx, &fs.Templated, &fs.Hits, &fs.TotalBytes, &micros, &fs.FirstSeen, &fs.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan render_stats row: %w", err)
		}
		if fs.Hits > 0 {
			fs.AvgLatencyUs = micros / fs.Hits
		}
		results = append(results, fs)
	}
	return results, rows.Err()
}

func (s *StatsAPI) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "stats:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'stats:read' scope")
		return
	}
	summary, err := s.Summary(r.Context())
	if err != nil {
		s.logger.Error("Failed to query render summary", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (s *StatsAPI) handleTopFields(w http.ResponseWriter, r *http.Request) {
	if !hasScope(r, "stats:read") {
		respondWithError(w, http.StatusForbidden, "Forbidden: requires 'stats:read' scope")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			respondWithError(w, http.StatusBadRequest, "Query parameter 'limit' must be between 1 and 1000")
			return
		}
		limit = n
	}
	results, err := s.TopFields(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to query top fields", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, results)
}
