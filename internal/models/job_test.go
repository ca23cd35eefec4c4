package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobConfigNormalize(t *testing.T) {
	config := &JobConfig{
		PrimaryKeyword: "zero trust security architecture",
		CompanyURL:     "https://cyberguard.tech",
	}
	config.Normalize()

	assert.Equal(t, "en", config.Language)
	assert.Equal(t, "US", config.Country)
	assert.Equal(t, 1500, config.WordCount)
	assert.Equal(t, PriorityNormal, config.Priority)
	assert.Equal(t, 30, config.MaxDurationMinutes)
}

func TestJobConfigMissingFields(t *testing.T) {
	config := &JobConfig{}
	assert.Equal(t, []string{"primary_keyword", "company_url"}, config.MissingFields())

	config.PrimaryKeyword = "ai cybersecurity"
	assert.Equal(t, []string{"company_url"}, config.MissingFields())

	config.CompanyURL = "https://example.com"
	assert.Empty(t, config.MissingFields())
}

func TestJobLifecycle(t *testing.T) {
	config := &JobConfig{
		PrimaryKeyword: "cloud security compliance",
		CompanyURL:     "https://cyberguard.tech",
		CallbackURL:    "https://hooks.example.com/done",
	}
	job, err := NewJob(config)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, "https://hooks.example.com/done", job.CallbackURL)
	assert.False(t, job.Status.IsTerminal())

	// Config round-trips
	restored, err := JobConfigFromJob(job)
	require.NoError(t, err)
	assert.Equal(t, "cloud security compliance", restored.PrimaryKeyword)

	job.MarkRunning()
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	job.MarkCompleted(`{"ok":true}`)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.True(t, job.Status.IsTerminal())
	assert.Equal(t, float64(100), job.ProgressPercent)
	require.NotNil(t, job.CompletedAt)
}

func TestJobMarkFailedTruncatesError(t *testing.T) {
	job, err := NewJob(&JobConfig{PrimaryKeyword: "k", CompanyURL: "https://x.io"})
	require.NoError(t, err)
	job.MarkRunning()

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'e'
	}
	job.MarkFailed(string(long))

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Len(t, job.ErrorMessage, 1000)
}

func TestEstimatedRemaining(t *testing.T) {
	job, err := NewJob(&JobConfig{PrimaryKeyword: "k", CompanyURL: "https://x.io"})
	require.NoError(t, err)

	// No estimate before running
	assert.Zero(t, job.EstimatedRemaining(time.Now()))

	start := time.Now().Add(-time.Minute)
	job.Status = JobStatusRunning
	job.StartedAt = &start
	job.ProgressPercent = 25

	// elapsed 60s at 25% -> ~180s remaining
	remaining := job.EstimatedRemaining(time.Now())
	assert.InDelta(t, 180, remaining.Seconds(), 2)
}

func TestValidJobStatus(t *testing.T) {
	for _, s := range []string{"pending", "running", "completed", "failed", "cancelled", "timeout"} {
		assert.True(t, ValidJobStatus(s), s)
	}
	assert.False(t, ValidJobStatus("paused"))
	assert.False(t, ValidJobStatus(""))
}
