package stages

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

const (
	maxInternalLinks = 10
	// batchSiblingBoost favors links to articles generated in the same batch
	batchSiblingBoost = 2
)

// LinksStage scores and validates internal-link candidates. Non-critical:
// the fallback keeps heuristically scored links without HEAD validation.
type LinksStage struct {
	sitemap interfaces.SitemapService
	prober  interfaces.URLProber
	logger  arbor.ILogger
}

func NewLinksStage(sitemap interfaces.SitemapService, prober interfaces.URLProber, logger arbor.ILogger) *LinksStage {
	return &LinksStage{sitemap: sitemap, prober: prober, logger: logger}
}

func (s *LinksStage) StageNum() int     { return 5 }
func (s *LinksStage) StageName() string { return "stage_05_internal_links" }

func (s *LinksStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	candidates := s.collectCandidates(ctx, ec)
	topics := articleTopics(ec.Article)

	scored := scoreCandidates(candidates, topics, ec.JobConfig.BatchSiblings)

	companyDomain := common.ExtractDomain(ec.JobConfig.CompanyURL)
	valid := make([]models.InternalLink, 0, len(scored))
	for _, link := range scored {
		if len(valid) >= maxInternalLinks {
			break
		}
		if !s.probe(ctx, link.URL) {
			s.logger.Debug().Str("url", link.URL).Msg("Dropping unreachable link candidate")
			continue
		}
		link.URL = normalizeInternalURL(link.URL, companyDomain)
		valid = append(valid, link)
	}

	valid = dedupeByDomain(valid)
	s.stage(ec, valid)

	s.logger.Info().
		Str("job_id", ec.JobID).
		Int("candidates", len(candidates)).
		Int("links", len(valid)).
		Msg("Internal links selected")

	return nil
}

// Fallback keeps the top heuristic candidates without reachability checks
func (s *LinksStage) Fallback(ctx context.Context, ec *pipeline.Context, cause error) error {
	s.logger.Warn().
		Str("job_id", ec.JobID).
		Err(cause).
		Msg("Internal link validation degraded to heuristics")

	scored := scoreCandidates(s.collectCandidates(ctx, ec), articleTopics(ec.Article), ec.JobConfig.BatchSiblings)
	if len(scored) > 5 {
		scored = scored[:5]
	}
	s.stage(ec, dedupeByDomain(scored))
	return nil
}

func (s *LinksStage) stage(ec *pipeline.Context, links []models.InternalLink) {
	parallel := ec.Parallel()
	parallel.Set(s.StageName(), "internal_links", links)
	parallel.Set(s.StageName(), "internal_links_count", len(links))
}

// collectCandidates gathers batch siblings, provided sitemap URLs (crawling
// any XML sitemap URL among them), and the crawled blog pool.
func (s *LinksStage) collectCandidates(ctx context.Context, ec *pipeline.Context) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] && common.IsValidPageURL(u) {
			seen[u] = true
			out = append(out, u)
		}
	}

	for _, u := range ec.JobConfig.BatchSiblings {
		add(u)
	}
	for _, u := range ec.JobConfig.SitemapURLs {
		if strings.HasSuffix(strings.ToLower(u), ".xml") {
			for _, crawled := range s.crawlSitemapURL(ctx, u) {
				add(crawled)
			}
			continue
		}
		add(u)
	}
	for _, u := range ec.BlogPool {
		add(u)
	}
	return out
}

// crawlSitemapURL expands one explicit XML sitemap URL into page URLs
func (s *LinksStage) crawlSitemapURL(ctx context.Context, sitemapURL string) []string {
	parsed, err := url.Parse(sitemapURL)
	if err != nil {
		return nil
	}
	base := parsed.Scheme + "://" + parsed.Host

	pages := s.sitemap.Crawl(ctx, base, 0)
	urls := make([]string, 0, len(pages.Pages))
	for _, page := range pages.Pages {
		urls = append(urls, page.URL)
	}
	return urls
}

func (s *LinksStage) probe(ctx context.Context, rawURL string) bool {
	result, err := s.prober.Head(ctx, rawURL)
	return err == nil && result.StatusCode == http.StatusOK
}

// articleTopics derives the topic word set from headline and section titles
func articleTopics(article *models.ArticleOutput) map[string]bool {
	topics := make(map[string]bool)
	addWords := func(text string) {
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,:;!?\"'()")
			if len(word) > 3 {
				topics[word] = true
			}
		}
	}

	addWords(article.Headline)
	for _, section := range article.Sections() {
		addWords(section.Title)
	}
	return topics
}

// scoreCandidates ranks candidates by topic overlap with the article,
// boosting batch siblings, and sorts by relevance descending.
func scoreCandidates(candidates []string, topics map[string]bool, siblings []string) []models.InternalLink {
	siblingSet := make(map[string]bool, len(siblings))
	for _, s := range siblings {
		siblingSet[s] = true
	}

	links := make([]models.InternalLink, 0, len(candidates))
	for _, candidate := range candidates {
		title := common.TitleFromSlug(candidate)
		relevance := 1
		for _, word := range strings.Fields(strings.ToLower(title)) {
			if topics[word] {
				relevance++
			}
		}
		if siblingSet[candidate] {
			relevance += batchSiblingBoost
		}
		if relevance > 10 {
			relevance = 10
		}

		links = append(links, models.InternalLink{
			URL:       candidate,
			Title:     title,
			Relevance: relevance,
			Domain:    common.ExtractDomain(candidate),
		})
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Relevance > links[j].Relevance
	})
	return links
}

// dedupeByDomain keeps the highest-relevance link per domain, preserving
// the sorted order.
func dedupeByDomain(links []models.InternalLink) []models.InternalLink {
	seen := make(map[string]bool, len(links))
	out := make([]models.InternalLink, 0, len(links))
	for _, link := range links {
		if seen[link.Domain] {
			continue
		}
		seen[link.Domain] = true
		out = append(out, link)
	}
	return out
}

// normalizeInternalURL rewrites company-domain references to the canonical
// /magazine/<slug> path.
func normalizeInternalURL(rawURL, companyDomain string) string {
	if companyDomain == "" || common.ExtractDomain(rawURL) != companyDomain {
		return rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	slug := segments[len(segments)-1]
	if slug == "" {
		return rawURL
	}
	if len(segments) == 2 && segments[0] == "magazine" {
		return rawURL
	}

	parsed.Path = "/magazine/" + slug
	return parsed.String()
}
