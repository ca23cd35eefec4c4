package citations

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// Result is the citation stage output
type Result struct {
	Citations     models.CitationList
	CitationsHTML string
	CitationMap   map[int]string
	Count         int
}

// Request carries the inputs for one citation pass
type Request struct {
	Sources           string
	CompanyDomain     string
	CompetitorDomains []string
	GroundingURLs     []interfaces.GroundingURL
}

// Engine parses, validates, repairs, and renders an article's citations
type Engine struct {
	validator        *Validator
	finder           *Finder
	authorityDomains []string
	logger           arbor.ILogger
}

func NewEngine(validator *Validator, finder *Finder, authorityDomains []string, logger arbor.ILogger) *Engine {
	return &Engine{
		validator:        validator,
		finder:           finder,
		authorityDomains: authorityDomains,
		logger:           logger,
	}
}

// Process runs the full citation flow. Every URL in the returned citation
// map has passed validation; unrepairable citations are dropped and the
// survivors renumbered.
func (e *Engine) Process(ctx context.Context, req *Request) (*Result, error) {
	parsed := ParseSources(req.Sources)
	if len(parsed) == 0 {
		return &Result{CitationMap: map[int]string{}}, nil
	}

	for i := range parsed {
		parsed[i] = e.finder.EnhanceWithGrounding(parsed[i], req.GroundingURLs)
	}

	valid, failed := e.validator.ValidateAll(ctx, parsed)

	for _, c := range failed {
		replacement, err := e.finder.FindReplacement(ctx, c, req.CompanyDomain, req.CompetitorDomains)
		if err != nil {
			e.logger.Warn().Err(err).Int("number", c.Number).Str("url", c.URL).Msg("Dropping unrepairable citation")
			continue
		}
		if !e.validator.Validate(ctx, replacement.URL) {
			e.logger.Warn().Int("number", c.Number).Str("url", replacement.URL).Msg("Replacement citation failed validation, dropping")
			continue
		}
		valid = append(valid, replacement)
	}

	// Generic authority fallbacks never enter the map; the original broken
	// URL is not restored either.
	kept := make(models.CitationList, 0, len(valid))
	for _, c := range valid {
		if e.isAuthorityFallback(c.URL) {
			e.logger.Warn().Int("number", c.Number).Str("url", c.URL).Msg("Rejecting generic authority fallback citation")
			continue
		}
		kept = append(kept, c)
	}
	kept = kept.Renumber()

	result := &Result{
		Citations:     kept,
		CitationsHTML: renderCitationsHTML(kept),
		CitationMap:   kept.URLMap(),
		Count:         len(kept),
	}

	e.logger.Info().
		Int("parsed", len(parsed)).
		Int("failed_validation", len(failed)).
		Int("final", len(kept)).
		Msg("Citation processing completed")

	return result, nil
}

// isAuthorityFallback reports whether a URL is a bare domain on the
// configured authority list.
func (e *Engine) isAuthorityFallback(rawURL string) bool {
	if !IsDomainOnly(rawURL) {
		return false
	}
	domain := common.ExtractDomain(rawURL)
	for _, authority := range e.authorityDomains {
		if domain == strings.ToLower(strings.TrimSpace(authority)) {
			return true
		}
	}
	return false
}

// renderCitationsHTML renders the validated list as a paragraph block with
// superscript anchors addressable as #source-N.
func renderCitationsHTML(list models.CitationList) string {
	if len(list) == 0 {
		return ""
	}

	var b strings.Builder
	for i, c := range list {
		if i > 0 {
			b.WriteString("\n")
		}
		title := c.Title
		if title == "" {
			title = c.URL
		}
		fmt.Fprintf(&b,
			`<p id="source-%d"><sup>[%d]</sup> <a href="%s" target="_blank" rel="noopener">%s</a></p>`,
			c.Number, c.Number, c.URL, title)
	}
	return b.String()
}
