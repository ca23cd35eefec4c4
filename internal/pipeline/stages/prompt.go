package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// PromptStage is a pure transformation from the normalized submission and
// crawl summary into the generation prompt. No external I/O.
type PromptStage struct {
	logger arbor.ILogger
}

func NewPromptStage(logger arbor.ILogger) *PromptStage {
	return &PromptStage{logger: logger}
}

func (s *PromptStage) StageNum() int     { return 1 }
func (s *PromptStage) StageName() string { return "stage_01_prompt" }

func (s *PromptStage) Execute(_ context.Context, ec *pipeline.Context) error {
	config := ec.JobConfig

	var b strings.Builder
	fmt.Fprintf(&b, "Write a complete article about %q for the company %s (%s).\n",
		config.PrimaryKeyword, ec.CompanyData["company_name"], config.CompanyURL)
	fmt.Fprintf(&b, "Target market: %s. Language: %s. Target length: %d words.\n",
		config.Country, config.Language, config.WordCount)
	fmt.Fprintf(&b, "\n%s\n", config.ContentInstruction)

	if desc := ec.CompanyData["description"]; desc != "" {
		fmt.Fprintf(&b, "\nAbout the company: %s\n", desc)
	}
	if audience := ec.CompanyData["target_audience"]; audience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", audience)
	}

	if ec.SitemapData != nil && ec.SitemapData.SiteType != "" {
		fmt.Fprintf(&b, "\nThe company runs a %s site", ec.SitemapData.SiteType)
		if n := len(ec.SitemapData.BlogURLs); n > 0 {
			fmt.Fprintf(&b, " with %d existing blog posts; avoid duplicating their topics", n)
		}
		b.WriteString(".\n")
	}

	b.WriteString("\nCite reputable sources for every statistic and factual claim using " +
		"numbered bracket references like [1], and list every source in the Sources field " +
		"as \"[N]: <url> – <title>\", one per line.\n")

	ec.Prompt = b.String()

	s.logger.Debug().
		Str("job_id", ec.JobID).
		Int("prompt_length", len(ec.Prompt)).
		Msg("Prompt built")

	return nil
}

// SystemInstruction budgets section lengths for the target word count
func SystemInstruction(config *models.JobConfig) string {
	sections := 6
	if config.WordCount >= 2000 {
		sections = 8
	} else if config.WordCount <= 900 {
		sections = 4
	}
	perSection := config.WordCount * 7 / 10 / sections

	return fmt.Sprintf(
		"You are a senior content writer producing structured articles as JSON. "+
			"Fill every required field. Use %d to %d sections of roughly %d words each, "+
			"keep paragraphs under 60 words, include at least two lists and one table, "+
			"and answer the primary question directly in Direct_Answer within two sentences.",
		sections-1, sections+1, perSection)
}
