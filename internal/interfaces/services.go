package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/scriptor/internal/models"
)

// SitemapService fetches and classifies a company's pages
type SitemapService interface {
	// Crawl returns the labeled page list for a company URL. It never
	// returns an error to callers; total failure yields an empty list.
	Crawl(ctx context.Context, companyURL string, maxURLs int) *models.SitemapPageList

	// CacheStats reports hits, misses, and current cache size
	CacheStats() (hits, misses, size int)
}

// ProbeResult is the outcome of one HEAD probe
type ProbeResult struct {
	StatusCode int
	FinalURL   string
}

// URLProber issues HEAD requests with redirect following
type URLProber interface {
	Head(ctx context.Context, url string) (*ProbeResult, error)
}

// Event is one published application event
type Event struct {
	Type      string         `json:"type"`
	JobID     string         `json:"job_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventHandler consumes published events
type EventHandler func(event Event)

// EventService is the in-process pub/sub used for progress streaming
type EventService interface {
	Publish(event Event)
	Subscribe(handler EventHandler) (unsubscribe func())
}
