package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/scriptor/internal/models"
)

// JobListOptions filters and pages job listings
type JobListOptions struct {
	Status string
	Limit  int
	Offset int
}

// JobStorage persists pipeline jobs
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)
	CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error)

	// ClaimPending atomically selects up to limit pending jobs ordered by
	// (priority ASC, created_at ASC) and marks them running. A job already
	// claimed by a concurrent worker is skipped.
	ClaimPending(ctx context.Context, limit int) ([]*models.Job, error)

	// UpdateStatusIf performs a compare-and-set status transition. Returns
	// false when the job was not in any of the expected states.
	UpdateStatusIf(ctx context.Context, jobID string, expected []models.JobStatus, apply func(*models.Job)) (bool, error)

	// UpdateProgress checkpoints stage progress on the job record
	UpdateProgress(ctx context.Context, jobID string, stageName string, stagesCompleted, totalStages int) error

	// DeleteTerminalBefore removes terminal jobs completed before the cutoff
	// and returns the number deleted.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)

	// RecentErrors returns the most recent failed jobs, newest first
	RecentErrors(ctx context.Context, limit int) ([]*models.Job, error)
}

// StoreRequest is the storage hook input for a finished article
type StoreRequest struct {
	JobID            string
	ValidatedArticle map[string]any
	HTMLContent      string
	StorageType      string // "database", "mirror", or "both"
}

// StoreResult describes the persistence outcome
type StoreResult struct {
	Success    bool   `json:"success"`
	ArticleID  string `json:"article_id,omitempty"`
	MirrorPath string `json:"mirror_path,omitempty"`
	Embedded   bool   `json:"embedded"`
	Error      string `json:"error,omitempty"`
}

// ArticleStore is the storage hook for finished articles
type ArticleStore interface {
	Store(ctx context.Context, req *StoreRequest) (*StoreResult, error)
}
