// Package api implements the thin, read-mostly HTTP layer for
// browsing anomalies and managing alert configuration. It never
// mutates the pipeline's template catalog or cursor; it only queries
// the same search backend the pipeline writes to, plus the single
// AlertConfig document (sharing last-write-wins semantics with the
// Alerter on that one document, per the concurrency model).
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moolen/spectre/internal/llm"
	"github.com/moolen/spectre/internal/logging"
	"github.com/moolen/spectre/internal/searchstore"
)

var serverLog = logging.GetLogger("api.server")

// Server is a lifecycle.Component wrapping a standard library HTTP
// server, mirroring this codebase's existing apiserver construction:
// a bare http.ServeMux, no external router.
type Server struct {
	port     int
	logIndex string
	backend  searchstore.SearchBackend
	analyzer *llm.Analyzer
	router   *http.ServeMux
	server   *http.Server
}

// NewServer builds a Server listening on port, querying logIndex-* for
// anomalies via backend, and using analyzer for on-demand root-cause
// analysis requests.
func NewServer(port int, logIndex string, backend searchstore.SearchBackend, analyzer *llm.Analyzer) *Server {
	s := &Server{
		port:     port,
		logIndex: logIndex,
		backend:  backend,
		analyzer: analyzer,
		router:   http.NewServeMux(),
	}
	s.registerHandlers()
	return s
}

// Name identifies this component to the lifecycle manager.
func (s *Server) Name() string { return "api-server" }

func (s *Server) registerHandlers() {
	s.router.HandleFunc("/api/anomalies", s.corsMiddleware(s.withMethod(http.MethodGet, s.handleListAnomalies)))
	s.router.HandleFunc("/api/anomalies/", s.corsMiddleware(s.withMethod(http.MethodGet, s.handleAnalyzeAnomaly)))
	s.router.HandleFunc("/api/alert-config", s.corsMiddleware(s.handleAlertConfig))
	s.router.HandleFunc("/api/alert-config/levels", s.corsMiddleware(s.withMethod(http.MethodGet, s.handleAlertLevels)))
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverLog.ErrorWithErr("api server stopped unexpectedly", err)
		}
	}()
	serverLog.InfoWithFields("api server started", logging.Field("port", s.port))
	return nil
}

// Stop gracefully shuts the HTTP server down within ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
