package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// Executor runs the full pipeline for one claimed job
type Executor interface {
	// Execute runs every stage and returns the finished execution context
	Execute(ctx context.Context, jobID string, config *models.JobConfig, progress pipeline.ProgressCallback) (*pipeline.Context, error)

	// TotalStages reports the registered stage count for progress math
	TotalStages() int
}

// Stats is a point-in-time scheduler snapshot
type Stats struct {
	StatusCounts       map[models.JobStatus]int `json:"status_counts"`
	Running            int                      `json:"running"`
	AverageDurationSec float64                  `json:"average_duration_seconds"`
	CompletedTotal     int                      `json:"completed_total"`
}

// Manager is the fire-and-forget job scheduler. Submission persists a pending
// job and returns immediately; a ticker claims pending jobs up to the
// concurrency limit and runs each through the pipeline with its own timeout.
type Manager struct {
	storage  interfaces.JobStorage
	executor Executor
	events   interfaces.EventService
	notifier *Notifier
	config   *common.JobsConfig
	logger   arbor.ILogger

	mu          sync.Mutex
	cancels     map[string]context.CancelFunc
	avgDuration float64
	completed   int

	cron *cron.Cron
	done chan struct{}
	wg   sync.WaitGroup
}

func NewManager(
	storage interfaces.JobStorage,
	executor Executor,
	eventService interfaces.EventService,
	notifier *Notifier,
	config *common.JobsConfig,
	logger arbor.ILogger,
) *Manager {
	return &Manager{
		storage:  storage,
		executor: executor,
		events:   eventService,
		notifier: notifier,
		config:   config,
		logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
		done:     make(chan struct{}),
	}
}

// Submit validates and persists a new pending job. The scheduler picks it up
// on its next tick.
func (m *Manager) Submit(ctx context.Context, config *models.JobConfig) (*models.Job, error) {
	if missing := config.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	job, err := models.NewJob(config)
	if err != nil {
		return nil, err
	}
	job.TotalStages = m.executor.TotalStages()

	if err := m.storage.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	m.events.Publish(interfaces.Event{
		Type:  "job.created",
		JobID: job.ID,
		Payload: map[string]any{
			"primary_keyword": config.PrimaryKeyword,
			"priority":        job.Priority,
		},
	})

	m.logger.Info().
		Str("job_id", job.ID).
		Str("keyword", config.PrimaryKeyword).
		Int("priority", job.Priority).
		Msg("Job submitted")

	return job, nil
}

// Start launches the scheduler tick loop and the retention sweep
func (m *Manager) Start() {
	interval := common.Duration(m.config.SchedulerInterval, 5*time.Second)

	m.cron = cron.New()
	if _, err := m.cron.AddFunc("@hourly", m.sweep); err != nil {
		m.logger.Error().Err(err).Msg("Failed to schedule retention sweep")
	}
	m.cron.Start()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.done:
				return
			case <-ticker.C:
				m.tick()
			}
		}
	}()

	m.logger.Info().
		Dur("interval", interval).
		Int("max_concurrent", m.config.MaxConcurrent).
		Msg("Job scheduler started")
}

// Stop halts scheduling, cancels running jobs, and waits for them to settle
func (m *Manager) Stop(ctx context.Context) {
	close(m.done)
	if m.cron != nil {
		m.cron.Stop()
	}

	m.mu.Lock()
	for jobID, cancel := range m.cancels {
		m.logger.Warn().Str("job_id", jobID).Msg("Cancelling job for shutdown")
		cancel()
	}
	m.mu.Unlock()

	settled := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(settled)
	}()

	select {
	case <-settled:
		m.logger.Info().Msg("Job scheduler stopped")
	case <-ctx.Done():
		m.logger.Warn().Msg("Job scheduler shutdown timed out")
	}
}

// tick claims pending jobs up to spare capacity and launches them
func (m *Manager) tick() {
	m.mu.Lock()
	running := len(m.cancels)
	m.mu.Unlock()

	capacity := m.config.MaxConcurrent - running
	if capacity <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	claimed, err := m.storage.ClaimPending(ctx, capacity)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to claim pending jobs")
		return
	}

	for _, job := range claimed {
		job := job
		m.wg.Add(1)
		common.SafeGo(m.logger, "job:"+job.ID, func() {
			defer m.wg.Done()
			m.run(job)
		})
	}
}

// run executes one claimed job end to end
func (m *Manager) run(job *models.Job) {
	config, err := models.JobConfigFromJob(job)
	if err != nil {
		m.finalize(job.ID, func(j *models.Job) { j.MarkFailed(err.Error()) }, "job.failed")
		return
	}

	timeout := time.Duration(config.MaxDurationMinutes) * time.Minute
	if timeout <= 0 {
		timeout = time.Duration(m.config.MaxDurationMinutes) * time.Minute
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	m.mu.Lock()
	m.cancels[job.ID] = cancel
	m.mu.Unlock()
	defer func() {
		cancel()
		m.mu.Lock()
		delete(m.cancels, job.ID)
		m.mu.Unlock()
	}()

	m.logger.Info().
		Str("job_id", job.ID).
		Str("keyword", config.PrimaryKeyword).
		Dur("timeout", timeout).
		Msg("Job starting")

	// Parallel stages report completion concurrently; the lock keeps the
	// counter and its checkpoint ordered so progress never goes backwards.
	total := m.executor.TotalStages()
	var progressMu sync.Mutex
	completed := 0
	progress := func(stageName string, stageNum int, done bool) {
		if !done {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		completed++
		if err := m.storage.UpdateProgress(context.Background(), job.ID, stageName, completed, total); err != nil {
			m.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Progress checkpoint failed")
		}
		m.events.Publish(interfaces.Event{
			Type:  "job.progress",
			JobID: job.ID,
			Payload: map[string]any{
				"stage":            stageName,
				"stage_num":        stageNum,
				"stages_completed": completed,
				"total_stages":     total,
			},
		})
	}

	ec, runErr := m.executor.Execute(ctx, job.ID, config, progress)
	switch {
	case runErr == nil:
		m.complete(job.ID, ec)
	case errors.Is(runErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		m.finalize(job.ID, func(j *models.Job) { j.MarkTimeout() }, "job.timeout")
	case errors.Is(runErr, context.Canceled):
		m.finalize(job.ID, func(j *models.Job) { j.MarkCancelled() }, "job.cancelled")
	default:
		m.finalize(job.ID, func(j *models.Job) { j.MarkFailed(runErr.Error()) }, "job.failed")
	}
}

// complete records the successful result and updates the duration average
func (m *Manager) complete(jobID string, ec *pipeline.Context) {
	articleID, mirrorPath := "", ""
	if ec.StorageResult != nil {
		articleID = ec.StorageResult.ArticleID
		mirrorPath = ec.StorageResult.MirrorPath
	}

	result, err := resultSummary(articleID, mirrorPath, ec.QualityReport)
	if err != nil {
		m.finalize(jobID, func(j *models.Job) { j.MarkFailed(err.Error()) }, "job.failed")
		return
	}

	job := m.finalize(jobID, func(j *models.Job) { j.MarkCompleted(result) }, "job.completed")
	if job != nil {
		m.recordDuration(job.DurationSeconds)
	}
}

// finalize applies a terminal transition via compare-and-set, publishes the
// terminal event, and fires the completion webhook. Cancelled jobs never
// trigger the webhook. Returns the updated job, nil when the transition lost
// the race.
func (m *Manager) finalize(jobID string, apply func(*models.Job), eventType string) *models.Job {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	applied, err := m.storage.UpdateStatusIf(ctx, jobID,
		[]models.JobStatus{models.JobStatusPending, models.JobStatusRunning}, apply)
	if err != nil {
		m.logger.Error().Str("job_id", jobID).Err(err).Msg("Terminal transition failed")
		return nil
	}
	if !applied {
		m.logger.Warn().Str("job_id", jobID).Str("event", eventType).
			Msg("Terminal transition skipped, job already settled")
		return nil
	}

	job, err := m.storage.GetJob(ctx, jobID)
	if err != nil {
		m.logger.Error().Str("job_id", jobID).Err(err).Msg("Failed to reload finalized job")
		return nil
	}

	m.events.Publish(interfaces.Event{
		Type:  eventType,
		JobID: jobID,
		Payload: map[string]any{
			"status":           string(job.Status),
			"duration_seconds": job.DurationSeconds,
			"error":            job.ErrorMessage,
		},
	})

	m.logger.Info().
		Str("job_id", jobID).
		Str("status", string(job.Status)).
		Float64("duration_seconds", job.DurationSeconds).
		Msg("Job finished")

	if job.Status != models.JobStatusCancelled {
		m.notifier.Notify(job)
	}
	return job
}

// Cancel stops a pending or running job. Pending jobs transition directly;
// running jobs are cancelled cooperatively through their context.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	job, err := m.storage.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	switch job.Status {
	case models.JobStatusPending:
		applied, err := m.storage.UpdateStatusIf(ctx, jobID,
			[]models.JobStatus{models.JobStatusPending},
			func(j *models.Job) { j.MarkCancelled() })
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("job %s is no longer pending", jobID)
		}
		m.events.Publish(interfaces.Event{Type: "job.cancelled", JobID: jobID})
		return nil

	case models.JobStatusRunning:
		m.mu.Lock()
		cancel, ok := m.cancels[jobID]
		m.mu.Unlock()
		if !ok {
			return fmt.Errorf("job %s is running on another instance", jobID)
		}
		cancel()
		return nil

	default:
		return fmt.Errorf("job %s is already %s", jobID, job.Status)
	}
}

// Stats reports scheduler and job-store counters
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	counts, err := m.storage.CountJobsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return &Stats{
		StatusCounts:       counts,
		Running:            len(m.cancels),
		AverageDurationSec: m.avgDuration,
		CompletedTotal:     m.completed,
	}, nil
}

// recordDuration folds one completion into the moving average
func (m *Manager) recordDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
	m.avgDuration += (seconds - m.avgDuration) / float64(m.completed)
}

// sweep deletes terminal jobs past the retention window
func (m *Manager) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -m.config.RetentionDays)
	deleted, err := m.storage.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		m.logger.Error().Err(err).Msg("Retention sweep failed")
		return
	}
	if deleted > 0 {
		m.logger.Info().Int("deleted", deleted).Str("cutoff", cutoff.Format(time.RFC3339)).Msg("Retention sweep completed")
	}
}
