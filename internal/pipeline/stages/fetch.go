package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// defaultContentInstruction is used when the submission carries none
const defaultContentInstruction = "Write an in-depth, well-sourced article that answers the reader's question directly, " +
	"uses concrete examples, and cites reputable sources for every claim."

// FetchStage validates the submission, derives company defaults, crawls the
// sitemap, and builds the internal-link candidate pool.
type FetchStage struct {
	sitemap interfaces.SitemapService
	logger  arbor.ILogger
}

func NewFetchStage(sitemap interfaces.SitemapService, logger arbor.ILogger) *FetchStage {
	return &FetchStage{sitemap: sitemap, logger: logger}
}

func (s *FetchStage) StageNum() int     { return 0 }
func (s *FetchStage) StageName() string { return "stage_00_data_fetch" }

func (s *FetchStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	config := ec.JobConfig

	if missing := config.MissingFields(); len(missing) > 0 {
		return pipeline.NewValidationError(
			fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")))
	}
	config.Normalize()
	if config.ContentInstruction == "" {
		config.ContentInstruction = defaultContentInstruction
	}

	normalized, err := common.NormalizeCompanyURL(config.CompanyURL)
	if err != nil {
		return pipeline.NewValidationError(fmt.Errorf("invalid company_url: %w", err))
	}
	config.CompanyURL = normalized

	// Auto-detected fields never overwrite user-supplied company data
	if ec.CompanyData["company_name"] == "" {
		ec.CompanyData["company_name"] = common.DeriveCompanyName(normalized)
	}
	if ec.CompanyData["company_url"] == "" {
		ec.CompanyData["company_url"] = normalized
	}

	pages := s.sitemap.Crawl(ctx, normalized, 0)
	ec.SitemapData = summarizeSitemap(pages)

	ec.BlogPool = buildBlogPool(ec.SitemapData.BlogURLs, config)

	s.logger.Info().
		Str("job_id", ec.JobID).
		Str("company_url", normalized).
		Int("sitemap_pages", ec.SitemapData.TotalPages).
		Str("site_type", string(ec.SitemapData.SiteType)).
		Int("blog_pool", len(ec.BlogPool)).
		Msg("Data fetch completed")

	return nil
}

func summarizeSitemap(pages *models.SitemapPageList) *pipeline.SitemapData {
	blogPages := pages.PagesByLabel(models.PageLabelBlog)
	blogURLs := make([]string, 0, len(blogPages))
	for _, page := range blogPages {
		blogURLs = append(blogURLs, page.URL)
	}

	return &pipeline.SitemapData{
		TotalPages:   len(pages.Pages),
		BlogURLs:     blogURLs,
		LabelSummary: pages.LabelCounts(),
		SiteType:     pages.DetectSiteType(),
		Pages:        pages.Pages,
	}
}

// buildBlogPool selects the internal-link candidate pool. Crawled blog URLs
// win over provided sitemap URLs and batch siblings when both are present.
func buildBlogPool(crawledBlogURLs []string, config *models.JobConfig) []string {
	if len(crawledBlogURLs) > 0 {
		return crawledBlogURLs
	}

	pool := make([]string, 0, len(config.SitemapURLs)+len(config.BatchSiblings))
	seen := make(map[string]bool)
	for _, u := range append(append([]string{}, config.SitemapURLs...), config.BatchSiblings...) {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		pool = append(pool, u)
	}
	return pool
}
