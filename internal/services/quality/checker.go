package quality

import (
	"fmt"

	"github.com/ternarybob/scriptor/internal/models"
)

// Metrics are the measured properties of a finished article
type Metrics struct {
	WordCount         int     `json:"word_count"`
	ReadTime          int     `json:"read_time"`
	SectionCount      int     `json:"section_count"`
	CitationCount     int     `json:"citation_count"`
	InternalLinkCount int     `json:"internal_link_count"`
	FAQCount          int     `json:"faq_count"`
	PAACount          int     `json:"paa_count"`
	AEOScore          float64 `json:"aeo_score"`
}

// Report is the quality summary persisted with the job result. Warnings
// never fail a job.
type Report struct {
	Metrics  Metrics  `json:"metrics"`
	Warnings []string `json:"warnings,omitempty"`
}

// CheckInput carries the counted facts the checker cannot derive itself
type CheckInput struct {
	Article           *models.ArticleOutput
	WordCount         int
	ReadTime          int
	CitationCount     int
	InternalLinkCount int
	FAQCount          int
	PAACount          int
	TargetWordCount   int
}

// Check produces the quality report for a validated article
func Check(in *CheckInput) *Report {
	report := &Report{
		Metrics: Metrics{
			WordCount:         in.WordCount,
			ReadTime:          in.ReadTime,
			SectionCount:      len(in.Article.Sections()),
			CitationCount:     in.CitationCount,
			InternalLinkCount: in.InternalLinkCount,
			FAQCount:          in.FAQCount,
			PAACount:          in.PAACount,
			AEOScore:          Score(in.Article),
		},
	}

	warn := func(format string, args ...any) {
		report.Warnings = append(report.Warnings, fmt.Sprintf(format, args...))
	}

	if n := len(in.Article.MetaTitle); n > 0 && (n < 30 || n > 65) {
		warn("meta title is %d chars, recommended 30-65", n)
	}
	if n := len(in.Article.MetaDescription); n > 0 && (n < 120 || n > 165) {
		warn("meta description is %d chars, recommended 120-165", n)
	}
	if report.Metrics.SectionCount < 3 {
		warn("only %d sections, recommended at least 3", report.Metrics.SectionCount)
	}
	if in.CitationCount == 0 {
		warn("article carries no verified citations")
	}
	if in.FAQCount < 2 {
		warn("only %d FAQ items, recommended at least 2", in.FAQCount)
	}
	if in.TargetWordCount > 0 {
		lower := in.TargetWordCount * 7 / 10
		upper := in.TargetWordCount * 13 / 10
		if in.WordCount < lower || in.WordCount > upper {
			warn("word count %d outside ±30%% of target %d", in.WordCount, in.TargetWordCount)
		}
	}

	return report
}
