package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/httpclient"
	"github.com/ternarybob/scriptor/internal/models"
)

// sitemapIndex and urlSet model the two sitemap XML document shapes.
// encoding/xml does not resolve external entities, so the decode is safe
// against XXE by construction.
type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// candidatePaths are the sitemap locations tried in order
var candidatePaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap/sitemap.xml",
}

// Service crawls and classifies company sitemaps. It never propagates
// errors to callers; any total failure yields an empty page list.
type Service struct {
	client  *http.Client
	cache   *lruCache
	limiter *rate.Limiter
	logger  arbor.ILogger

	maxURLs int
}

// NewService creates a sitemap crawler from configuration
func NewService(config *common.SitemapConfig, logger arbor.ILogger) *Service {
	delay := common.Duration(config.RequestDelay, 500*time.Millisecond)
	ttl := common.Duration(config.CacheTTL, time.Hour)

	return &Service{
		// Connect/read budget ~5/10s overall; pool bounded to 5 conns, 2 idle
		client:  httpclient.NewPooledHTTPClient(10*time.Second, 5, 2),
		cache:   newLRUCache(config.CacheSize, ttl),
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		logger:  logger,
		maxURLs: config.MaxURLs,
	}
}

// CacheStats reports cache hits, misses, and current size
func (s *Service) CacheStats() (hits, misses, size int) {
	return s.cache.Stats()
}

// Crawl returns the labeled page list for a company URL. maxURLs <= 0 uses
// the configured default; results are LRU-cached by (company_url, max_urls).
func (s *Service) Crawl(ctx context.Context, companyURL string, maxURLs int) (result *models.SitemapPageList) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("company_url", companyURL).Str("panic", fmt.Sprintf("%v", r)).
				Msg("Sitemap crawl panicked, returning empty list")
			result = &models.SitemapPageList{CompanyURL: companyURL, FetchedAt: time.Now()}
		}
	}()

	if maxURLs <= 0 {
		maxURLs = s.maxURLs
	}

	normalized, err := common.NormalizeCompanyURL(companyURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("company_url", companyURL).Msg("Invalid company URL for sitemap crawl")
		return &models.SitemapPageList{CompanyURL: companyURL, FetchedAt: time.Now()}
	}

	if cached, ok := s.cache.Get(normalized, maxURLs); ok {
		s.logger.Debug().Str("company_url", normalized).Msg("Sitemap cache hit")
		return cached
	}

	urls := s.fetchAllURLs(ctx, normalized)
	urls = s.filterURLs(urls, maxURLs)

	pages := make([]models.SitemapPage, 0, len(urls))
	for _, u := range urls {
		pages = append(pages, ClassifyURL(u))
	}

	result = &models.SitemapPageList{
		CompanyURL: normalized,
		Pages:      pages,
		FetchedAt:  time.Now(),
	}
	s.cache.Put(normalized, maxURLs, result)

	hits, misses, size := s.cache.Stats()
	s.logger.Info().
		Str("company_url", normalized).
		Int("pages", len(pages)).
		Int("cache_hits", hits).
		Int("cache_misses", misses).
		Int("cache_size", size).
		Msg("Sitemap crawl completed")

	return result
}

// fetchAllURLs tries each candidate sitemap location, including a www.
// mirror when the host carries no www. prefix, and returns the first
// non-empty URL leaf set.
func (s *Service) fetchAllURLs(ctx context.Context, companyURL string) []string {
	candidates := make([]string, 0, len(candidatePaths)*2)
	for _, path := range candidatePaths {
		candidates = append(candidates, companyURL+path)
	}
	if mirror := wwwMirror(companyURL); mirror != "" {
		for _, path := range candidatePaths {
			candidates = append(candidates, mirror+path)
		}
	}

	for _, candidate := range candidates {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}

		urls, err := s.fetchSitemap(ctx, candidate, 0)
		if err != nil {
			s.logger.Debug().Err(err).Str("sitemap_url", candidate).Msg("Sitemap candidate failed")
			continue
		}
		if len(urls) > 0 {
			return urls
		}
	}
	return nil
}

// maxIndexDepth bounds recursion through nested sitemap indexes
const maxIndexDepth = 3

// fetchSitemap fetches and parses one sitemap document. A sitemap index
// recurses concurrently into its children; a urlset yields its leaves.
func (s *Service) fetchSitemap(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	if depth > maxIndexDepth {
		return nil, fmt.Errorf("sitemap index nesting exceeds depth %d", maxIndexDepth)
	}

	body, err := s.fetchWithRetry(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		return s.fetchIndexChildren(ctx, index, depth)
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("response is not sitemap XML: %w", err)
	}

	urls := make([]string, 0, len(set.URLs))
	for _, entry := range set.URLs {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// fetchIndexChildren fetches the children of a sitemap index concurrently
// under the shared client and rate limiter.
func (s *Service) fetchIndexChildren(ctx context.Context, index sitemapIndex, depth int) ([]string, error) {
	var (
		mu   sync.Mutex
		all  []string
		wg   sync.WaitGroup
	)

	for _, child := range index.Sitemaps {
		loc := strings.TrimSpace(child.Loc)
		if loc == "" {
			continue
		}

		wg.Add(1)
		go func(loc string) {
			defer wg.Done()

			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			urls, err := s.fetchSitemap(ctx, loc, depth+1)
			if err != nil {
				s.logger.Debug().Err(err).Str("sitemap_url", loc).Msg("Sub-sitemap fetch failed")
				return
			}

			mu.Lock()
			all = append(all, urls...)
			mu.Unlock()
		}(loc)
	}

	wg.Wait()
	return all, nil
}

// fetchWithRetry fetches a sitemap URL. 404/403/401 skip silently; 5xx and
// 429 retry with exponential backoff up to 3 attempts (2s, 4s, capped 8s).
func (s *Service) fetchWithRetry(ctx context.Context, sitemapURL string) ([]byte, error) {
	const maxAttempts = 3
	backoff := 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 8*time.Second {
				backoff = 8 * time.Second
			}
		}

		body, retryable, err := s.fetchOnce(ctx, sitemapURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (s *Service) fetchOnce(ctx context.Context, sitemapURL string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", "scriptor/1.0 (+sitemap-crawler)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return nil, true, err
		}
		return data, false, nil
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusUnauthorized:
		return nil, false, fmt.Errorf("sitemap not available: status %d", resp.StatusCode)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("sitemap fetch failed: status %d", resp.StatusCode)
	default:
		s.logger.Debug().Int("status", resp.StatusCode).Str("sitemap_url", sitemapURL).
			Msg("Unexpected sitemap status, skipping")
		return nil, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// filterURLs de-duplicates, validates, and truncates the crawled URL set
func (s *Service) filterURLs(urls []string, maxURLs int) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))

	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true

		if !common.IsValidPageURL(u) {
			s.logger.Debug().Str("url", u).Msg("Dropping invalid sitemap URL")
			continue
		}

		out = append(out, u)
		if len(out) >= maxURLs {
			break
		}
	}
	return out
}

// wwwMirror returns the www.-prefixed variant of a URL, or "" when the host
// already carries the prefix.
func wwwMirror(companyURL string) string {
	parsed, err := url.Parse(companyURL)
	if err != nil || strings.HasPrefix(parsed.Host, "www.") {
		return ""
	}
	parsed.Host = "www." + parsed.Host
	return parsed.String()
}
