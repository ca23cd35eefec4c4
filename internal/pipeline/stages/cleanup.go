package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/citations"
	"github.com/ternarybob/scriptor/internal/services/quality"
	"github.com/ternarybob/scriptor/internal/services/render"
)

// CleanupStage is the fan-in stage: it canonicalizes the article HTML,
// merges the parallel scratchpad into the validated article, links
// citations, and produces the quality report. Critical.
type CleanupStage struct {
	renderer  *render.Renderer
	validator *citations.Validator
	logger    arbor.ILogger
}

func NewCleanupStage(renderer *render.Renderer, validator *citations.Validator, logger arbor.ILogger) *CleanupStage {
	return &CleanupStage{renderer: renderer, validator: validator, logger: logger}
}

func (s *CleanupStage) StageNum() int     { return 10 }
func (s *CleanupStage) StageName() string { return "stage_10_cleanup" }

func (s *CleanupStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	article := ec.Article

	// Canonicalize every body field to sanitized HTML before the
	// answer-engine pass, which operates on paragraph elements.
	article.Intro = s.renderer.Fragment(article.Intro)
	article.DirectAnswer = s.renderer.Fragment(article.DirectAnswer)
	for n := 1; n <= models.MaxSections; n++ {
		if content := article.Section(n).Content; content != "" {
			article.SetSectionContent(n, s.renderer.Fragment(content))
		}
	}

	aeoNotes := quality.Optimize(article, ec.JobConfig.Language)

	validated := make(map[string]any)
	if err := ec.Parallel().MergeInto(validated); err != nil {
		return err
	}

	citationList := stagedCitations(validated)
	ec.CitationMap = s.buildCitationMap(ctx, citationList)
	nameMap, _ := validated["source_name_map"].(map[string]string)
	s.linkify(article, ec.CitationMap, nameMap)

	validated["headline"] = article.Headline
	validated["subtitle"] = article.Subtitle
	validated["teaser"] = article.Teaser
	validated["direct_answer"] = article.DirectAnswer
	validated["intro"] = article.Intro
	validated["meta_title"] = article.MetaTitle
	validated["meta_description"] = article.MetaDescription
	validated["tldr"] = article.TLDR
	validated["search_queries"] = article.SearchQueries
	validated["content"] = combineContent(article, validated)
	validated["citation_map"] = ec.CitationMap

	report := quality.Check(&quality.CheckInput{
		Article:           article,
		WordCount:         intValue(validated["word_count"]),
		ReadTime:          intValue(validated["read_time"]),
		CitationCount:     len(ec.CitationMap),
		InternalLinkCount: intValue(validated["internal_links_count"]),
		FAQCount:          intValue(validated["faq_count"]),
		PAACount:          intValue(validated["paa_count"]),
		TargetWordCount:   ec.JobConfig.WordCount,
	})
	report.Warnings = append(report.Warnings, aeoNotes...)

	qualityMap, err := structToMap(report)
	if err != nil {
		return pipeline.NewInternalError(fmt.Errorf("failed to encode quality report: %w", err))
	}
	validated["quality_report"] = qualityMap

	ec.ValidatedArticle = validated
	ec.QualityReport = qualityMap

	s.logger.Info().
		Str("job_id", ec.JobID).
		Int("merged_keys", len(validated)).
		Int("citation_map", len(ec.CitationMap)).
		Float64("aeo_score", report.Metrics.AEOScore).
		Msg("Cleanup and merge completed")

	return nil
}

// buildCitationMap re-probes every citation before admitting it to the map.
// URLs that fail the final check stay out; nothing is restored.
func (s *CleanupStage) buildCitationMap(ctx context.Context, list models.CitationList) map[int]string {
	out := make(map[int]string, len(list))
	for _, c := range list {
		if !s.validator.Validate(ctx, c.URL) {
			s.logger.Warn().Int("number", c.Number).Str("url", c.URL).
				Msg("Citation failed final URL check, excluded from map")
			continue
		}
		out[c.Number] = c.URL
	}
	return out
}

// linkify rewrites bracket citations and natural source mentions in every
// body field.
func (s *CleanupStage) linkify(article *models.ArticleOutput, citationMap map[int]string, nameMap map[string]string) {
	apply := func(text string) string {
		text = citations.LinkifyBrackets(text, citationMap)
		return citations.LinkifyNames(text, nameMap)
	}

	article.Intro = apply(article.Intro)
	article.DirectAnswer = apply(article.DirectAnswer)
	for n := 1; n <= models.MaxSections; n++ {
		if content := article.Section(n).Content; content != "" {
			article.SetSectionContent(n, apply(content))
		}
	}
}

// combineContent joins headline, intro, and sections into one HTML body.
// The review stage reuses it to keep the merged body current after rewrites.
func combineContent(article *models.ArticleOutput, validated map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", article.Headline)
	if article.Intro != "" {
		b.WriteString(article.Intro + "\n")
	}

	toc, _ := validated["toc"].([]models.TOCEntry)
	for _, section := range article.Sections() {
		anchor := ""
		for _, entry := range toc {
			if entry.ID == section.Index {
				anchor = entry.Anchor
				break
			}
		}
		if anchor != "" {
			fmt.Fprintf(&b, `<h2 id="%s">%s</h2>`+"\n", anchor, section.Title)
		} else {
			fmt.Fprintf(&b, "<h2>%s</h2>\n", section.Title)
		}
		b.WriteString(section.Content + "\n")
	}

	return render.SanitizeHTML(b.String())
}

func stagedCitations(validated map[string]any) models.CitationList {
	list, _ := validated["citations_list"].(models.CitationList)
	return list
}

func intValue(v any) int {
	n, _ := v.(int)
	return n
}

func structToMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// splitCSV splits a comma-separated value list, trimming whitespace
func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
