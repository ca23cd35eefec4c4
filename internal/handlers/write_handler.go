package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/jobs"
)

// WriteHandler serves article generation requests, synchronously or as
// fire-and-forget jobs.
type WriteHandler struct {
	manager  *jobs.Manager
	executor jobs.Executor
	logger   arbor.ILogger
}

func NewWriteHandler(manager *jobs.Manager, executor jobs.Executor, logger arbor.ILogger) *WriteHandler {
	return &WriteHandler{
		manager:  manager,
		executor: executor,
		logger:   logger,
	}
}

// WriteHandler runs the full pipeline synchronously and returns the finished
// article. The request blocks until completion or the per-job timeout.
func (h *WriteHandler) WriteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	config, ok := h.decodeConfig(w, r)
	if !ok {
		return
	}
	config.Normalize()

	jobID := uuid.New().String()
	timeout := time.Duration(config.MaxDurationMinutes) * time.Minute

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	h.logger.Info().
		Str("job_id", jobID).
		Str("keyword", config.PrimaryKeyword).
		Msg("Synchronous write starting")

	start := time.Now()
	ec, err := h.executor.Execute(ctx, jobID, config, nil)
	if err != nil {
		status := http.StatusInternalServerError
		if ctx.Err() == context.DeadlineExceeded {
			status = http.StatusGatewayTimeout
		} else if isValidationFailure(err) {
			status = http.StatusBadRequest
		}
		WriteError(w, status, err.Error())
		return
	}

	response := map[string]any{
		"job_id":           jobID,
		"status":           string(models.JobStatusCompleted),
		"duration_seconds": time.Since(start).Seconds(),
		"quality_report":   ec.QualityReport,
		"html":             ec.FinalHTML,
	}
	if ec.StorageResult != nil {
		response["article_id"] = ec.StorageResult.ArticleID
		response["mirror_path"] = ec.StorageResult.MirrorPath
	}
	WriteJSON(w, http.StatusOK, response)
}

// WriteAsyncHandler persists a pending job and returns immediately with the
// polling location.
func (h *WriteHandler) WriteAsyncHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	config, ok := h.decodeConfig(w, r)
	if !ok {
		return
	}

	job, err := h.manager.Submit(r.Context(), config)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"status":      string(job.Status),
		"polling_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (h *WriteHandler) decodeConfig(w http.ResponseWriter, r *http.Request) (*models.JobConfig, bool) {
	var config models.JobConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}
	if missing := config.MissingFields(); len(missing) > 0 {
		WriteError(w, http.StatusBadRequest,
			"missing required fields: "+strings.Join(missing, ", "))
		return nil, false
	}
	return &config, true
}

func isValidationFailure(err error) bool {
	classified := pipeline.Classify(err)
	return classified.Category == pipeline.CategoryValidation
}
