package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/scriptor/internal/interfaces"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewPooledHTTPClient creates a client with a bounded connection pool,
// used by the sitemap crawler for concurrent sub-sitemap fetches.
func NewPooledHTTPClient(timeout time.Duration, maxConns, maxIdle int) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxConnsPerHost:     maxConns,
			MaxIdleConnsPerHost: maxIdle,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// Prober implements interfaces.URLProber over a standard client
type Prober struct {
	client *http.Client
}

// NewProber creates a HEAD prober that follows redirects
func NewProber(timeout time.Duration) *Prober {
	return &Prober{
		client: &http.Client{
			Timeout: timeout,
			// Default CheckRedirect follows up to 10 redirects
		},
	}
}

// Head issues a HEAD request and reports the final status and URL.
// No response body is read.
func (p *Prober) Head(ctx context.Context, url string) (*interfaces.ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "scriptor/1.0 (+link-validation)")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &interfaces.ProbeResult{
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
	}, nil
}
