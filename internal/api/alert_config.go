package api

import (
	"encoding/json"
	"net/http"

	"github.com/moolen/spectre/internal/model"
)

// alertConfigIndex mirrors pipeline.AlertConfigIndex; duplicated as a
// constant here rather than imported to avoid an api->pipeline
// dependency for a single string (the API layer must not depend on
// the scheduler's package to stay a read-mostly collaborator).
const alertConfigIndex = "alert_config"

// handleAlertConfig answers GET/PUT /api/alert-config, sharing the
// same backend document the Alerter reads and partially writes
// (last_alert_time). Last-write-wins between this endpoint and the
// Alerter is acceptable per the concurrency model.
func (s *Server) handleAlertConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getAlertConfig(w, r)
	case http.MethodPut:
		s.putAlertConfig(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method "+r.Method+" not allowed")
	}
}

func (s *Server) getAlertConfig(w http.ResponseWriter, r *http.Request) {
	var cfg model.AlertConfig
	if err := s.backend.GetDocument(r.Context(), alertConfigIndex, model.AlertConfigDocID, &cfg); err != nil {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "alert config not found")
		return
	}
	_ = WriteJSON(w, cfg)
}

func (s *Server) putAlertConfig(w http.ResponseWriter, r *http.Request) {
	var cfg model.AlertConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := s.backend.UpsertDocument(r.Context(), alertConfigIndex, model.AlertConfigDocID, cfg); err != nil {
		WriteError(w, http.StatusBadGateway, "BACKEND_ERROR", err.Error())
		return
	}
	_ = WriteJSON(w, cfg)
}
