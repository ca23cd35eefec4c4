package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a pipeline job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusTimeout   JobStatus = "timeout"
)

// IsTerminal returns true if the status is a terminal state
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled, JobStatusTimeout:
		return true
	}
	return false
}

// ValidJobStatus reports whether a status filter string is a known status
func ValidJobStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted,
		JobStatusFailed, JobStatusCancelled, JobStatusTimeout:
		return true
	}
	return false
}

// Job priorities. Lower values schedule first.
const (
	PriorityHigh   = 1
	PriorityNormal = 2
	PriorityLow    = 3
)

// JobConfig is the immutable submission payload for one article generation
type JobConfig struct {
	PrimaryKeyword string `json:"primary_keyword" validate:"required"`
	CompanyURL     string `json:"company_url" validate:"required"`

	Language  string `json:"language,omitempty"`   // BCP-47-ish short code, default "en"
	Country   string `json:"country,omitempty"`    // Target market, default "US"
	WordCount int    `json:"word_count,omitempty"` // Target article length, default 1500

	ContentInstruction string   `json:"content_generation_instruction,omitempty"`
	ReviewPrompts      []string `json:"review_prompts,omitempty"`
	SitemapURLs        []string `json:"sitemap_urls,omitempty"`   // Explicit linking candidates (may include XML sitemap URLs)
	BatchSiblings      []string `json:"batch_siblings,omitempty"` // Other articles generated in the same batch
	UseGraphics        bool     `json:"use_graphics,omitempty"`   // Graphics mode instead of photo-style images

	CompanyData map[string]string `json:"company_data,omitempty"` // Company attribute overrides

	Priority           int    `json:"priority,omitempty"` // 1..3, default 2
	CallbackURL        string `json:"callback_url,omitempty"`
	MaxDurationMinutes int    `json:"max_duration_minutes,omitempty"` // Default 30
}

// Normalize fills defaulted fields in place
func (c *JobConfig) Normalize() {
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Country == "" {
		c.Country = "US"
	}
	if c.WordCount <= 0 {
		c.WordCount = 1500
	}
	if c.Priority < PriorityHigh || c.Priority > PriorityLow {
		c.Priority = PriorityNormal
	}
	if c.MaxDurationMinutes <= 0 {
		c.MaxDurationMinutes = 30
	}
}

// MissingFields returns the names of required fields that are absent
func (c *JobConfig) MissingFields() []string {
	var missing []string
	if c.PrimaryKeyword == "" {
		missing = append(missing, "primary_keyword")
	}
	if c.CompanyURL == "" {
		missing = append(missing, "company_url")
	}
	return missing
}

// Job is the persistent record of one pipeline execution
type Job struct {
	ID       string    `json:"id" badgerhold:"key"`
	Status   JobStatus `json:"status" badgerholdIndex:"Status"`
	Priority int       `json:"priority"`

	Config string `json:"config"` // Serialized JobConfig
	Result string `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at" badgerholdIndex:"CreatedAt"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	CurrentStage    string  `json:"current_stage,omitempty"`
	ProgressPercent float64 `json:"progress_percent"`
	StagesCompleted int     `json:"stages_completed"`
	TotalStages     int     `json:"total_stages"`

	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`
	CallbackURL  string `json:"callback_url,omitempty"`
}

// NewJob creates a pending job from a normalized config
func NewJob(config *JobConfig) (*Job, error) {
	config.Normalize()
	data, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize job config: %w", err)
	}

	return &Job{
		ID:          uuid.New().String(),
		Status:      JobStatusPending,
		Priority:    config.Priority,
		Config:      string(data),
		CreatedAt:   time.Now(),
		CallbackURL: config.CallbackURL,
	}, nil
}

// JobConfigFromJob deserializes the job's stored config
func JobConfigFromJob(job *Job) (*JobConfig, error) {
	var config JobConfig
	if err := json.Unmarshal([]byte(job.Config), &config); err != nil {
		return nil, fmt.Errorf("failed to deserialize job config: %w", err)
	}
	return &config, nil
}

// MarkRunning transitions the job to running
func (j *Job) MarkRunning() {
	j.Status = JobStatusRunning
	now := time.Now()
	j.StartedAt = &now
}

// MarkCompleted transitions the job to completed and records the duration
func (j *Job) MarkCompleted(result string) {
	j.Status = JobStatusCompleted
	now := time.Now()
	j.CompletedAt = &now
	j.Result = result
	j.ProgressPercent = 100
	if j.StartedAt != nil {
		j.DurationSeconds = now.Sub(*j.StartedAt).Seconds()
	}
}

// MarkFailed transitions the job to failed. The error message is truncated
// to 1000 characters before persisting.
func (j *Job) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	now := time.Now()
	j.CompletedAt = &now
	if len(errMsg) > 1000 {
		errMsg = errMsg[:1000]
	}
	j.ErrorMessage = errMsg
	if j.StartedAt != nil {
		j.DurationSeconds = now.Sub(*j.StartedAt).Seconds()
	}
}

// MarkCancelled transitions the job to cancelled
func (j *Job) MarkCancelled() {
	j.Status = JobStatusCancelled
	now := time.Now()
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationSeconds = now.Sub(*j.StartedAt).Seconds()
	}
}

// MarkTimeout transitions the job to timeout
func (j *Job) MarkTimeout() {
	j.Status = JobStatusTimeout
	now := time.Now()
	j.CompletedAt = &now
	j.ErrorMessage = "job exceeded max duration"
	if j.StartedAt != nil {
		j.DurationSeconds = now.Sub(*j.StartedAt).Seconds()
	}
}

// EstimatedRemaining estimates remaining execution time for a running job
// from elapsed time and progress. Returns 0 when no estimate is possible.
func (j *Job) EstimatedRemaining(now time.Time) time.Duration {
	if j.Status != JobStatusRunning || j.StartedAt == nil || j.ProgressPercent <= 0 {
		return 0
	}
	elapsed := now.Sub(*j.StartedAt)
	remaining := float64(elapsed) * (100 - j.ProgressPercent) / j.ProgressPercent
	if remaining < 0 {
		return 0
	}
	return time.Duration(remaining)
}
