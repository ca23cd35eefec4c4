package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// JobStorage implements the JobStorage interface over Badger. Claim and
// compare-and-set operations are serialized through a process-local mutex,
// which is sufficient for the single-instance deployment model.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	mu sync.Mutex
}

func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(_ context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(_ context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListJobs(_ context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("")

	if opts != nil {
		if opts.Status != "" {
			query = query.And("Status").Eq(models.JobStatus(opts.Status))
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
	}
	query = query.SortBy("CreatedAt").Reverse()

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) CountJobsByStatus(_ context.Context) (map[models.JobStatus]int, error) {
	counts := make(map[models.JobStatus]int)
	for _, status := range []models.JobStatus{
		models.JobStatusPending, models.JobStatusRunning, models.JobStatusCompleted,
		models.JobStatusFailed, models.JobStatusCancelled, models.JobStatusTimeout,
	} {
		n, err := s.db.Store().Count(&models.Job{}, badgerhold.Where("Status").Eq(status))
		if err != nil {
			return nil, fmt.Errorf("failed to count jobs: %w", err)
		}
		counts[status] = int(n)
	}
	return counts, nil
}

func (s *JobStorage) ClaimPending(_ context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []models.Job
	if err := s.db.Store().Find(&pending, badgerhold.Where("Status").Eq(models.JobStatusPending)); err != nil {
		return nil, fmt.Errorf("failed to find pending jobs: %w", err)
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority < pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	var claimed []*models.Job
	for i := range pending {
		if len(claimed) >= limit {
			break
		}
		job := pending[i]
		job.MarkRunning()
		if err := s.db.Store().Update(job.ID, &job); err != nil {
			s.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to claim job, skipping")
			continue
		}
		claimed = append(claimed, &job)
	}
	return claimed, nil
}

func (s *JobStorage) UpdateStatusIf(_ context.Context, jobID string, expected []models.JobStatus, apply func(*models.Job)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, fmt.Errorf("job not found: %s", jobID)
		}
		return false, fmt.Errorf("failed to get job: %w", err)
	}

	matched := false
	for _, status := range expected {
		if job.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	apply(&job)
	if err := s.db.Store().Update(jobID, &job); err != nil {
		return false, fmt.Errorf("failed to update job: %w", err)
	}
	return true, nil
}

func (s *JobStorage) UpdateProgress(_ context.Context, jobID, stageName string, stagesCompleted, totalStages int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	job.CurrentStage = stageName
	job.StagesCompleted = stagesCompleted
	job.TotalStages = totalStages
	if totalStages > 0 {
		job.ProgressPercent = float64(stagesCompleted) / float64(totalStages) * 100
	}

	if err := s.db.Store().Update(jobID, &job); err != nil {
		return fmt.Errorf("failed to checkpoint progress: %w", err)
	}
	return nil
}

func (s *JobStorage) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("ID").Ne("")); err != nil {
		return 0, fmt.Errorf("failed to scan jobs: %w", err)
	}

	deleted := 0
	for i := range jobs {
		job := &jobs[i]
		if !job.Status.IsTerminal() || job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		if err := s.db.Store().Delete(job.ID, &models.Job{}); err != nil {
			s.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to delete expired job")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *JobStorage) RecentErrors(_ context.Context, limit int) ([]*models.Job, error) {
	query := badgerhold.Where("Status").Eq(models.JobStatusFailed).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to find failed jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}
