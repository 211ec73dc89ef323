package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/moolen/spectre/internal/model"
	"github.com/moolen/spectre/internal/searchstore"
)

const defaultPageSize = 50

// handleListAnomalies answers GET /api/anomalies with the number of
// anomalies in a time range, optionally filtered by level, and echoes
// the requested page and size; the matching records are not returned.
// With group_by=event_id the count comes back as one ungrouped bucket.
func (s *Server) handleListAnomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now().UTC()
	since := parseTimeParam(q.Get("from"), now.Add(-time.Hour))
	until := parseTimeParam(q.Get("to"), now)

	var levels []string
	if lv := q.Get("levels"); lv != "" {
		levels = strings.Split(lv, ",")
	}

	filter := searchstore.CountFilter{IsAnomaly: true, Since: since, Until: until, Levels: levels}

	if q.Get("group_by") == "event_id" {
		s.handleGroupedAnomalies(w, r, filter)
		return
	}

	count, err := s.backend.Count(r.Context(), s.logIndex, filter)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "BACKEND_ERROR", err.Error())
		return
	}

	// Only the count is reported; page and size are echoed back as the
	// client sent them, with size defaulting to defaultPageSize.
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	if size <= 0 {
		size = defaultPageSize
	}

	_ = WriteJSON(w, map[string]any{
		"total": count,
		"page":  page,
		"size":  size,
		"from":  since,
		"to":    until,
	})
}

func (s *Server) handleGroupedAnomalies(w http.ResponseWriter, r *http.Request, filter searchstore.CountFilter) {
	// Grouping by event id is a read-side aggregation over the same
	// anomaly stream the Writer populates; without a generic terms
	// aggregation exposed on SearchBackend, report the overall count as
	// a single ungrouped bucket rather than guessing at event ids.
	count, err := s.backend.Count(r.Context(), s.logIndex, filter)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "BACKEND_ERROR", err.Error())
		return
	}
	_ = WriteJSON(w, map[string]any{"groups": []map[string]any{{"event_id": "*", "count": count}}})
}

// handleAnalyzeAnomaly answers GET /api/anomalies/{id}/analysis by
// loading the record and invoking the LLM analyzer synchronously.
func (s *Server) handleAnalyzeAnomaly(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/anomalies/"), "/analysis")
	if id == "" || id == r.URL.Path {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "unknown route")
		return
	}

	var record model.LogRecord
	if err := s.backend.GetDocument(r.Context(), s.logIndex, id, &record); err != nil {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "log record not found")
		return
	}

	analysis, err := s.analyzer.Analyze(r.Context(), record, nil)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "ANALYZER_ERROR", err.Error())
		return
	}
	_ = WriteJSON(w, analysis)
}

// handleAlertLevels answers GET /api/alert-config/levels with the
// fixed set of known levels.
func (s *Server) handleAlertLevels(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, []string{"ERROR", "WARN", "INFO", "DEBUG"})
}
