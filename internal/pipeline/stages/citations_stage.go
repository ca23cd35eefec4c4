package stages

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/citations"
)

// CitationStage parses, validates, and repairs the article's sources.
// Non-critical: on exhaustion the fallback stages a single search-URL
// citation so the article still points readers somewhere.
type CitationStage struct {
	engine *citations.Engine
	logger arbor.ILogger
}

func NewCitationStage(engine *citations.Engine, logger arbor.ILogger) *CitationStage {
	return &CitationStage{engine: engine, logger: logger}
}

func (s *CitationStage) StageNum() int     { return 4 }
func (s *CitationStage) StageName() string { return "stage_04_citations" }

func (s *CitationStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	result, err := s.engine.Process(ctx, &citations.Request{
		Sources:           ec.Article.Sources,
		CompanyDomain:     common.ExtractDomain(ec.JobConfig.CompanyURL),
		CompetitorDomains: competitorDomains(ec.CompanyData),
		GroundingURLs:     ec.GroundingURLs,
	})
	if err != nil {
		return err
	}

	parallel := ec.Parallel()
	parallel.Set(s.StageName(), "citations_html", result.CitationsHTML)
	parallel.Set(s.StageName(), "citations_count", result.Count)
	parallel.Set(s.StageName(), "citations_list", result.Citations)

	return nil
}

// Fallback stages a single search-URL citation for the primary keyword
func (s *CitationStage) Fallback(_ context.Context, ec *pipeline.Context, cause error) error {
	s.logger.Warn().
		Str("job_id", ec.JobID).
		Err(cause).
		Msg("Citation processing degraded to search-URL fallback")

	searchURL := "https://www.google.com/search?q=" + url.QueryEscape(ec.JobConfig.PrimaryKeyword)
	list := models.CitationList{{
		Number: 1,
		URL:    searchURL,
		Title:  fmt.Sprintf("Search results for %q", ec.JobConfig.PrimaryKeyword),
	}}

	parallel := ec.Parallel()
	parallel.Set(s.StageName(), "citations_html", "")
	parallel.Set(s.StageName(), "citations_count", len(list))
	parallel.Set(s.StageName(), "citations_list", list)
	return nil
}

func competitorDomains(companyData map[string]string) []string {
	raw := companyData["competitor_domains"]
	if raw == "" {
		return nil
	}
	var out []string
	for _, d := range splitCSV(raw) {
		out = append(out, d)
	}
	return out
}
