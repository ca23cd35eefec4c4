package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/services/jobs"
)

// JobHandler serves job status, listing, cancellation, and scheduler stats
type JobHandler struct {
	storage interfaces.JobStorage
	manager *jobs.Manager
	logger  arbor.ILogger
}

func NewJobHandler(storage interfaces.JobStorage, manager *jobs.Manager, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		storage: storage,
		manager: manager,
		logger:  logger,
	}
}

// GetJobHandler returns one job's status, with the remaining-time estimate
// for running jobs. GET /api/jobs/{id} or /api/jobs/{id}/status
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := jobIDFromPath(strings.TrimSuffix(r.URL.Path, "/status"))
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.storage.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "job not found: "+jobID)
		return
	}

	response := map[string]any{
		"job": job,
	}
	if remaining := job.EstimatedRemaining(time.Now()); remaining > 0 {
		response["estimated_remaining_seconds"] = remaining.Seconds()
	}
	WriteJSON(w, http.StatusOK, response)
}

// ListJobsHandler lists jobs with optional status filter and paging.
// GET /api/jobs?status=&limit=&offset=
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !models.ValidJobStatus(status) {
		WriteError(w, http.StatusBadRequest, "invalid status filter: "+status)
		return
	}

	list, err := h.storage.ListJobs(r.Context(), &interfaces.JobListOptions{
		Status: status,
		Limit:  QueryInt(r, "limit", 50),
		Offset: QueryInt(r, "offset", 0),
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  list,
		"count": len(list),
	})
}

// CancelJobHandler cancels a pending or running job.
// POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	jobID := jobIDFromPath(strings.TrimSuffix(r.URL.Path, "/cancel"))
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	if err := h.manager.Cancel(r.Context(), jobID); err != nil {
		if strings.Contains(err.Error(), "not found") {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": "cancelling",
	})
}

// GetJobStatsHandler reports scheduler counters. GET /api/jobs/stats
func (h *JobHandler) GetJobStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats, err := h.manager.Stats(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// GetRecentErrorsHandler lists the most recent failed jobs.
// GET /api/jobs/errors?limit=
func (h *JobHandler) GetRecentErrorsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	failed, err := h.storage.RecentErrors(r.Context(), QueryInt(r, "limit", 20))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  failed,
		"count": len(failed),
	})
}

// jobIDFromPath extracts the job ID segment from /api/jobs/{id}
func jobIDFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/jobs/")
	if trimmed == path {
		return ""
	}
	return strings.Trim(trimmed, "/")
}
