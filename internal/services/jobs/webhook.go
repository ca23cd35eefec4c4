package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/httpclient"
	"github.com/ternarybob/scriptor/internal/models"
)

// webhookPayload is the completion notification body
type webhookPayload struct {
	JobID     string          `json:"job_id"`
	Status    models.JobStatus `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Notifier delivers completion webhooks. Delivery is best-effort: failures
// are logged and never affect job state.
type Notifier struct {
	client  *http.Client
	timeout time.Duration
	logger  arbor.ILogger
}

func NewNotifier(timeout time.Duration, logger arbor.ILogger) *Notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Notifier{
		client:  httpclient.NewDefaultHTTPClient(timeout),
		timeout: timeout,
		logger:  logger,
	}
}

// Notify posts the terminal job state to the callback URL. Delivery runs on
// the notifier's own timeout, independent of the caller's lifecycle.
func (n *Notifier) Notify(job *models.Job) {
	if job.CallbackURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	payload := webhookPayload{
		JobID:     job.ID,
		Status:    job.Status,
		Timestamp: time.Now(),
		Error:     job.ErrorMessage,
	}
	if job.Result != "" && json.Valid([]byte(job.Result)) {
		payload.Result = json.RawMessage(job.Result)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Webhook payload serialization failed")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.CallbackURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Webhook request creation failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn().
			Str("job_id", job.ID).
			Str("callback_url", job.CallbackURL).
			Err(err).
			Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn().
			Str("job_id", job.ID).
			Str("callback_url", job.CallbackURL).
			Int("status_code", resp.StatusCode).
			Msg("Webhook rejected by receiver")
		return
	}

	n.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Msg("Webhook delivered")
}

// resultSummary builds the persisted result JSON for a completed job
func resultSummary(articleID, mirrorPath string, qualityReport map[string]any) (string, error) {
	data, err := json.Marshal(map[string]any{
		"article_id":     articleID,
		"mirror_path":    mirrorPath,
		"quality_report": qualityReport,
	})
	if err != nil {
		return "", fmt.Errorf("failed to serialize job result: %w", err)
	}
	return string(data), nil
}
