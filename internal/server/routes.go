package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Article generation
	mux.HandleFunc("/api/write", s.app.WriteHandler.WriteHandler)           // POST - synchronous generation
	mux.HandleFunc("/api/write-async", s.app.WriteHandler.WriteAsyncHandler) // POST - fire-and-forget job

	// API routes - Jobs
	mux.HandleFunc("/api/jobs/stats", s.app.JobHandler.GetJobStatsHandler)
	mux.HandleFunc("/api/jobs/errors", s.app.JobHandler.GetRecentErrorsHandler)
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // /api/jobs/{id} and subpaths

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/api/shutdown", s.shutdownHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// shutdownHandler requests a graceful process shutdown
func (s *Server) shutdownHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.shutdownChan == nil {
		http.Error(w, "Shutdown not available", http.StatusServiceUnavailable)
		return
	}

	s.app.Logger.Info().Msg("Shutdown requested via HTTP")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"shutting down"}`))

	s.shutdownOnce.Do(func() { close(s.shutdownChan) })
}

// handleJobRoutes routes job-detail requests to the appropriate handler
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/jobs/{id}/cancel
	if strings.HasSuffix(path, "/cancel") {
		s.app.JobHandler.CancelJobHandler(w, r)
		return
	}

	// GET /api/jobs/{id}
	s.app.JobHandler.GetJobHandler(w, r)
}
