package citations

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// softErrorMarkers are path substrings on the final redirect target that
// indicate a soft 404 despite a 200 status.
var softErrorMarkers = []string{
	"/404",
	"/not-found",
	"/error",
	"notfound",
	"page-not-found",
}

// Validator HEAD-probes citation URLs with a batch concurrency cap and a
// minimum delay between probes to the same host.
type Validator struct {
	prober        interfaces.URLProber
	maxConcurrent int
	perHostDelay  time.Duration
	logger        arbor.ILogger

	mu        sync.Mutex
	lastProbe map[string]time.Time
}

func NewValidator(prober interfaces.URLProber, maxConcurrent int, perHostDelay time.Duration, logger arbor.ILogger) *Validator {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &Validator{
		prober:        prober,
		maxConcurrent: maxConcurrent,
		perHostDelay:  perHostDelay,
		logger:        logger,
		lastProbe:     make(map[string]time.Time),
	}
}

// Validate probes a single URL. It passes only on status 200 with a final
// URL that does not look like an error page.
func (v *Validator) Validate(ctx context.Context, rawURL string) bool {
	if err := v.waitForHost(ctx, rawURL); err != nil {
		return false
	}

	result, err := v.prober.Head(ctx, rawURL)
	if err != nil {
		v.logger.Debug().Err(err).Str("url", rawURL).Msg("Citation probe failed")
		return false
	}
	if result.StatusCode != http.StatusOK {
		v.logger.Debug().Int("status", result.StatusCode).Str("url", rawURL).Msg("Citation probe non-200")
		return false
	}
	if isSoftErrorPage(result.FinalURL) {
		v.logger.Debug().Str("url", rawURL).Str("final_url", result.FinalURL).Msg("Citation resolved to error page")
		return false
	}
	return true
}

// ValidateAll probes a citation list concurrently and splits it into valid
// and failed citations, preserving input order within each group.
func (v *Validator) ValidateAll(ctx context.Context, list models.CitationList) (valid, failed models.CitationList) {
	if len(list) == 0 {
		return nil, nil
	}

	results := make([]bool, len(list))
	sem := make(chan struct{}, v.maxConcurrent)
	var wg sync.WaitGroup

	for i, c := range list {
		wg.Add(1)
		go func(i int, rawURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = v.Validate(ctx, rawURL)
		}(i, c.URL)
	}
	wg.Wait()

	for i, c := range list {
		if results[i] {
			valid = append(valid, c)
		} else {
			failed = append(failed, c)
		}
	}
	return valid, failed
}

// waitForHost enforces the per-host probe delay
func (v *Validator) waitForHost(ctx context.Context, rawURL string) error {
	if v.perHostDelay <= 0 {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	host := parsed.Host

	v.mu.Lock()
	last, seen := v.lastProbe[host]
	wait := time.Duration(0)
	if seen {
		if since := time.Since(last); since < v.perHostDelay {
			wait = v.perHostDelay - since
		}
	}
	v.lastProbe[host] = time.Now().Add(wait)
	v.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func isSoftErrorPage(finalURL string) bool {
	parsed, err := url.Parse(finalURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(parsed.Path)
	for _, marker := range softErrorMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}
