package citations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// Finder replaces failed citation URLs using the generator's web search and
// upgrades domain-only URLs to specific articles via grounding metadata.
type Finder struct {
	generator        interfaces.Generator
	forbiddenDomains []string
	logger           arbor.ILogger
}

func NewFinder(generator interfaces.Generator, forbiddenDomains []string, logger arbor.ILogger) *Finder {
	return &Finder{
		generator:        generator,
		forbiddenDomains: forbiddenDomains,
		logger:           logger,
	}
}

// EnhanceWithGrounding upgrades a domain-only citation URL to the deepest
// grounding URL on the same domain, when one exists.
func (f *Finder) EnhanceWithGrounding(c models.Citation, grounding []interfaces.GroundingURL) models.Citation {
	if !IsDomainOnly(c.URL) {
		return c
	}

	domain := common.ExtractDomain(c.URL)
	if domain == "" {
		return c
	}

	best := ""
	bestDepth := 0
	for _, g := range grounding {
		if common.ExtractDomain(g.URL) != domain {
			continue
		}
		if depth := pathDepth(g.URL); depth > bestDepth {
			best = g.URL
			bestDepth = depth
		}
	}

	if best != "" {
		f.logger.Debug().Str("from", c.URL).Str("to", best).Msg("Upgraded domain-only citation from grounding")
		c.URL = best
	}
	return c
}

// FindReplacement asks the generator for a URL supporting the same claim.
// The company's own domain is excluded unless the original citation already
// pointed there; competitor and forbidden domains are always excluded.
func (f *Finder) FindReplacement(ctx context.Context, c models.Citation, companyDomain string, competitorDomains []string) (models.Citation, error) {
	if f.generator == nil {
		return c, fmt.Errorf("no generator available for citation replacement")
	}

	prompt := fmt.Sprintf(
		"The URL %s (cited as %q) is no longer reachable. "+
			"Search the web and reply with exactly one working URL, on its own line with no other text, "+
			"pointing to a reputable page that supports the same claim.",
		c.URL, c.Title)

	result, err := f.generator.Generate(ctx, &interfaces.GenerateRequest{
		Prompt:      prompt,
		EnableTools: true,
	})
	if err != nil {
		return c, fmt.Errorf("replacement search failed: %w", err)
	}

	candidate := firstURL(result.Text)
	if candidate == "" {
		return c, fmt.Errorf("replacement search returned no URL")
	}

	originalDomain := common.ExtractDomain(c.URL)
	if reason := f.rejectReason(candidate, companyDomain, originalDomain, competitorDomains); reason != "" {
		return c, fmt.Errorf("replacement %s rejected: %s", candidate, reason)
	}

	f.logger.Info().Str("from", c.URL).Str("to", candidate).Msg("Found replacement citation")
	c.URL = candidate
	return c, nil
}

func (f *Finder) rejectReason(candidate, companyDomain, originalDomain string, competitorDomains []string) string {
	domain := common.ExtractDomain(candidate)
	if domain == "" {
		return "not an absolute URL"
	}
	if companyDomain != "" && domain == companyDomain && originalDomain != companyDomain {
		return "company's own domain"
	}
	for _, competitor := range competitorDomains {
		if domain == strings.ToLower(strings.TrimSpace(competitor)) {
			return "competitor domain"
		}
	}
	for _, forbidden := range f.forbiddenDomains {
		if domain == strings.ToLower(strings.TrimSpace(forbidden)) {
			return "forbidden domain"
		}
	}
	return ""
}

func firstURL(text string) string {
	loc := urlInTextRE.FindString(text)
	return trimURLPunctuation(strings.TrimSpace(loc))
}

func pathDepth(rawURL string) int {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return 0
	}
	return len(strings.Split(path, "/"))
}
