package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/events"
)

type memStorage struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newMemStorage() *memStorage {
	return &memStorage{jobs: make(map[string]*models.Job)}
}

func (s *memStorage) SaveJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *memStorage) GetJob(_ context.Context, jobID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	copied := *job
	return &copied, nil
}

func (s *memStorage) ListJobs(_ context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, job := range s.jobs {
		if opts.Status == "" || string(job.Status) == opts.Status {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memStorage) CountJobsByStatus(_ context.Context) (map[models.JobStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func (s *memStorage) ClaimPending(_ context.Context, limit int) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*models.Job
	for _, job := range s.jobs {
		if job.Status == models.JobStatusPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority < pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	if len(pending) > limit {
		pending = pending[:limit]
	}
	var claimed []*models.Job
	for _, job := range pending {
		job.MarkRunning()
		copied := *job
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (s *memStorage) UpdateStatusIf(_ context.Context, jobID string, expected []models.JobStatus, apply func(*models.Job)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false, fmt.Errorf("job not found: %s", jobID)
	}
	for _, status := range expected {
		if job.Status == status {
			apply(job)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStorage) UpdateProgress(_ context.Context, jobID, stageName string, stagesCompleted, totalStages int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job not found: %s", jobID)
	}
	job.CurrentStage = stageName
	job.StagesCompleted = stagesCompleted
	job.TotalStages = totalStages
	job.ProgressPercent = float64(stagesCompleted) / float64(totalStages) * 100
	return nil
}

func (s *memStorage) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, job := range s.jobs {
		if job.Status.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memStorage) RecentErrors(_ context.Context, limit int) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, job := range s.jobs {
		if job.Status == models.JobStatusFailed {
			copied := *job
			out = append(out, &copied)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeExecutor struct {
	total int
	err   error
	block bool
}

func (f *fakeExecutor) Execute(ctx context.Context, jobID string, config *models.JobConfig, progress pipeline.ProgressCallback) (*pipeline.Context, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}

	for i := 0; i < f.total; i++ {
		progress(fmt.Sprintf("stage_%02d", i), i, true)
	}

	ec := pipeline.NewContext(jobID, config)
	ec.StorageResult = &interfaces.StoreResult{
		Success:   true,
		ArticleID: "art-" + jobID,
	}
	ec.QualityReport = map[string]any{"warnings": []string{}}
	return ec, nil
}

func (f *fakeExecutor) TotalStages() int { return f.total }

// fanOutExecutor reports every stage completion from its own goroutine,
// the way the parallel pipeline phase does.
type fanOutExecutor struct {
	total int
}

func (f *fanOutExecutor) Execute(_ context.Context, jobID string, config *models.JobConfig, progress pipeline.ProgressCallback) (*pipeline.Context, error) {
	var wg sync.WaitGroup
	for i := 0; i < f.total; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			progress(fmt.Sprintf("stage_%02d", n), n, true)
		}(i)
	}
	wg.Wait()

	ec := pipeline.NewContext(jobID, config)
	ec.StorageResult = &interfaces.StoreResult{Success: true, ArticleID: "art-" + jobID}
	ec.QualityReport = map[string]any{}
	return ec, nil
}

func (f *fanOutExecutor) TotalStages() int { return f.total }

func testManager(t *testing.T, executor Executor) (*Manager, *memStorage) {
	t.Helper()
	storage := newMemStorage()
	logger := common.GetLogger()
	manager := NewManager(
		storage,
		executor,
		events.NewService(logger),
		NewNotifier(time.Second, logger),
		&common.JobsConfig{
			MaxConcurrent:      2,
			SchedulerInterval:  "5s",
			RetentionDays:      7,
			MaxDurationMinutes: 30,
		},
		logger,
	)
	return manager, storage
}

func submitJob(t *testing.T, m *Manager) *models.Job {
	t.Helper()
	job, err := m.Submit(context.Background(), &models.JobConfig{
		PrimaryKeyword: "zero trust",
		CompanyURL:     "https://acme.com",
	})
	require.NoError(t, err)
	return job
}

func TestSubmitRejectsIncompleteConfig(t *testing.T) {
	manager, _ := testManager(t, &fakeExecutor{total: 13})

	_, err := manager.Submit(context.Background(), &models.JobConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary_keyword")
}

func TestSubmitPersistsPendingJob(t *testing.T) {
	manager, storage := testManager(t, &fakeExecutor{total: 13})

	job := submitJob(t, manager)
	stored, err := storage.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, stored.Status)
	assert.Equal(t, 13, stored.TotalStages)
	assert.Equal(t, models.PriorityNormal, stored.Priority)
}

func TestTickRunsJobToCompletion(t *testing.T) {
	manager, storage := testManager(t, &fakeExecutor{total: 13})

	job := submitJob(t, manager)
	manager.tick()
	manager.wg.Wait()

	stored, err := storage.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, float64(100), stored.ProgressPercent)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(stored.Result), &result))
	assert.Equal(t, "art-"+job.ID, result["article_id"])
}

func TestProgressSurvivesConcurrentStageCompletions(t *testing.T) {
	manager, storage := testManager(t, &fanOutExecutor{total: 13})

	job := submitJob(t, manager)
	manager.tick()
	manager.wg.Wait()

	stored, err := storage.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, 13, stored.StagesCompleted)
	assert.Equal(t, float64(100), stored.ProgressPercent)
}

func TestStartSchedulesRetentionSweep(t *testing.T) {
	manager, _ := testManager(t, &fakeExecutor{total: 13})

	manager.Start()
	defer manager.Stop(context.Background())

	assert.Len(t, manager.cron.Entries(), 1)
}

func TestTickHonorsConcurrencyLimit(t *testing.T) {
	manager, storage := testManager(t, &fakeExecutor{total: 13})

	for i := 0; i < 5; i++ {
		submitJob(t, manager)
	}
	manager.tick()
	manager.wg.Wait()

	counts, err := storage.CountJobsByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.JobStatusCompleted])
	assert.Equal(t, 3, counts[models.JobStatusPending])
}

func TestRunMarksFailureWithMessage(t *testing.T) {
	manager, storage := testManager(t, &fakeExecutor{total: 13, err: errors.New("generator unavailable")})

	job := submitJob(t, manager)
	manager.tick()
	manager.wg.Wait()

	stored, err := storage.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "generator unavailable")
}

func TestRunMarksTimeout(t *testing.T) {
	manager, storage := testManager(t, &fakeExecutor{total: 13, err: context.DeadlineExceeded})

	job := submitJob(t, manager)
	manager.tick()
	manager.wg.Wait()

	stored, err := storage.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusTimeout, stored.Status)
}

func TestCancelPendingJob(t *testing.T) {
	manager, storage := testManager(t, &fakeExecutor{total: 13})

	job := submitJob(t, manager)
	require.NoError(t, manager.Cancel(context.Background(), job.ID))

	stored, err := storage.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, stored.Status)

	// A second cancel is rejected
	assert.Error(t, manager.Cancel(context.Background(), job.ID))
}

func TestCancelRunningJobCooperatively(t *testing.T) {
	manager, storage := testManager(t, &fakeExecutor{total: 13, block: true})

	job := submitJob(t, manager)
	manager.tick()

	// Wait for the job to register its cancel func
	require.Eventually(t, func() bool {
		manager.mu.Lock()
		defer manager.mu.Unlock()
		_, ok := manager.cancels[job.ID]
		return ok
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, manager.Cancel(context.Background(), job.ID))
	manager.wg.Wait()

	stored, err := storage.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, stored.Status)
}

func TestCancelUnknownJob(t *testing.T) {
	manager, _ := testManager(t, &fakeExecutor{total: 13})
	assert.Error(t, manager.Cancel(context.Background(), "no-such-job"))
}

func TestStatsTracksAverageDuration(t *testing.T) {
	manager, _ := testManager(t, &fakeExecutor{total: 13})

	manager.recordDuration(10)
	manager.recordDuration(20)

	stats, err := manager.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CompletedTotal)
	assert.InDelta(t, 15.0, stats.AverageDurationSec, 0.001)
}

func TestSweepDeletesOldTerminalJobs(t *testing.T) {
	manager, storage := testManager(t, &fakeExecutor{total: 13})

	old := submitJob(t, manager)
	fresh := submitJob(t, manager)

	past := time.Now().AddDate(0, 0, -10)
	storage.mu.Lock()
	storage.jobs[old.ID].Status = models.JobStatusCompleted
	storage.jobs[old.ID].CompletedAt = &past
	storage.mu.Unlock()

	manager.sweep()

	_, err := storage.GetJob(context.Background(), old.ID)
	assert.Error(t, err)
	_, err = storage.GetJob(context.Background(), fresh.ID)
	assert.NoError(t, err)
}

func TestNotifierDeliversPayload(t *testing.T) {
	received := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewNotifier(time.Second, common.GetLogger())
	job := &models.Job{
		ID:          "job-9",
		Status:      models.JobStatusCompleted,
		Result:      `{"article_id":"art-9"}`,
		CallbackURL: server.URL,
	}
	notifier.Notify(job)

	select {
	case payload := <-received:
		assert.Equal(t, "job-9", payload.JobID)
		assert.Equal(t, models.JobStatusCompleted, payload.Status)
		assert.JSONEq(t, `{"article_id":"art-9"}`, string(payload.Result))
	case <-time.After(time.Second):
		t.Fatal("webhook never delivered")
	}
}

func TestNotifierSkipsWithoutCallbackURL(t *testing.T) {
	notifier := NewNotifier(time.Second, common.GetLogger())
	notifier.Notify(&models.Job{ID: "job-10", Status: models.JobStatusFailed})
}

func TestNotifierTimeoutBoundsDelivery(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	notifier := NewNotifier(100*time.Millisecond, common.GetLogger())
	start := time.Now()
	notifier.Notify(&models.Job{ID: "job-11", Status: models.JobStatusFailed, CallbackURL: server.URL})
	assert.Less(t, time.Since(start), time.Second)
}
