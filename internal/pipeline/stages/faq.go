package stages

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

const (
	maxFAQItems = 6
	maxPAAItems = 4
	minFAQItems = 2
)

// FAQStage validates and deduplicates the FAQ and People-Also-Ask pairs.
// Shortfalls warn, never fail.
type FAQStage struct {
	logger arbor.ILogger
}

func NewFAQStage(logger arbor.ILogger) *FAQStage {
	return &FAQStage{logger: logger}
}

func (s *FAQStage) StageNum() int     { return 8 }
func (s *FAQStage) StageName() string { return "stage_08_faq" }

func (s *FAQStage) Execute(_ context.Context, ec *pipeline.Context) error {
	faq := cleanPairs(ec.Article.FAQPairs(), maxFAQItems)
	paa := cleanPairs(ec.Article.PAAPairs(), maxPAAItems)

	if len(faq) < minFAQItems {
		s.logger.Warn().
			Str("job_id", ec.JobID).
			Int("faq_count", len(faq)).
			Msg("FAQ count below recommended minimum")
	}

	parallel := ec.Parallel()
	parallel.Set(s.StageName(), "faq_items", faq)
	parallel.Set(s.StageName(), "faq_count", len(faq))
	parallel.Set(s.StageName(), "paa_items", paa)
	parallel.Set(s.StageName(), "paa_count", len(paa))

	return nil
}

// cleanPairs drops incomplete pairs, removes duplicates by normalized
// question, and truncates to the slot limit.
func cleanPairs(pairs []models.QAPair, limit int) []models.QAPair {
	seen := make(map[string]bool, len(pairs))
	out := make([]models.QAPair, 0, len(pairs))

	for _, pair := range pairs {
		question := strings.TrimSpace(pair.Question)
		answer := strings.TrimSpace(pair.Answer)
		if question == "" || answer == "" {
			continue
		}

		key := normalizeQuestion(question)
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, models.QAPair{Question: question, Answer: answer})
		if len(out) >= limit {
			break
		}
	}
	return out
}

// normalizeQuestion canonicalizes a question for duplicate detection
func normalizeQuestion(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = strings.TrimSuffix(q, "?")
	return strings.Join(strings.Fields(q), " ")
}
