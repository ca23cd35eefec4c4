package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/httpclient"
)

type embedRequest struct {
	Texts    []string `json:"texts"`
	TaskType string   `json:"task_type"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Client calls the external embedding service. With no endpoint configured
// the client degrades to a no-op that returns nil vectors.
type Client struct {
	endpoint string
	client   *http.Client
	logger   arbor.ILogger
}

func NewClient(config *common.EmbeddingsConfig, logger arbor.ILogger) *Client {
	timeout := common.Duration(config.Timeout, 60*time.Second)
	return &Client{
		endpoint: config.Endpoint,
		client:   httpclient.NewDefaultHTTPClient(timeout),
		logger:   logger,
	}
}

// Embed returns one semantic-similarity vector per input text
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.endpoint == "" {
		c.logger.Debug().Msg("No embedding endpoint configured, skipping")
		return nil, nil
	}
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(embedRequest{
		Texts:    texts,
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(decoded.Embeddings))
	}

	c.logger.Debug().Int("texts", len(texts)).Msg("Embeddings generated")
	return decoded.Embeddings, nil
}
