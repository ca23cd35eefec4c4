package stages

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

var sectionPromptRE = regexp.MustCompile(`(?i)section\s+(\d+)`)

// ReviewStage applies user review prompts with pattern-based local rewrites,
// calling the reviewer model for anything it cannot handle locally.
// Conditional: skipped entirely when the submission has no review prompts.
type ReviewStage struct {
	reviewer interfaces.Generator
	logger   arbor.ILogger
}

func NewReviewStage(reviewer interfaces.Generator, logger arbor.ILogger) *ReviewStage {
	return &ReviewStage{reviewer: reviewer, logger: logger}
}

func (s *ReviewStage) StageNum() int     { return 11 }
func (s *ReviewStage) StageName() string { return "stage_11_review" }

func (s *ReviewStage) ShouldSkip(ec *pipeline.Context) bool {
	return len(ec.JobConfig.ReviewPrompts) == 0
}

func (s *ReviewStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	for _, prompt := range ec.JobConfig.ReviewPrompts {
		if err := ctx.Err(); err != nil {
			return pipeline.Classify(err)
		}
		s.applyPrompt(ctx, ec, prompt)
	}

	// The validated article mirrors the fields the review may have touched,
	// and the merged body is rebuilt so it never carries pre-review text
	if ec.ValidatedArticle != nil {
		ec.ValidatedArticle["headline"] = ec.Article.Headline
		ec.ValidatedArticle["intro"] = ec.Article.Intro
		ec.ValidatedArticle["direct_answer"] = ec.Article.DirectAnswer
		ec.ValidatedArticle["content"] = combineContent(ec.Article, ec.ValidatedArticle)
	}
	return nil
}

// Fallback keeps the article unreviewed
func (s *ReviewStage) Fallback(_ context.Context, ec *pipeline.Context, cause error) error {
	s.logger.Warn().Str("job_id", ec.JobID).Err(cause).Msg("Review pass skipped after errors")
	return nil
}

// applyPrompt dispatches one review instruction. Individual prompt failures
// are logged and skipped; a review never takes the article down.
func (s *ReviewStage) applyPrompt(ctx context.Context, ec *pipeline.Context, prompt string) {
	lower := strings.ToLower(prompt)
	article := ec.Article
	sectionMatch := sectionPromptRE.FindStringSubmatch(lower)

	switch {
	case sectionMatch != nil:
		n, _ := strconv.Atoi(sectionMatch[1])
		section := article.Section(n)
		if section.Content == "" {
			s.logger.Warn().Str("job_id", ec.JobID).Int("section", n).Msg("Review prompt targets empty section")
			return
		}
		if rewritten, ok := s.rewrite(ctx, prompt, section.Content); ok {
			article.SetSectionContent(n, rewritten)
		}

	case strings.Contains(lower, "headline") || strings.Contains(lower, "title"):
		if rewritten, ok := s.rewrite(ctx, prompt, article.Headline); ok {
			article.Headline = strings.TrimSpace(strings.Trim(rewritten, `"`))
		}

	case strings.Contains(lower, "intro"):
		if rewritten, ok := s.rewrite(ctx, prompt, article.Intro); ok {
			article.Intro = rewritten
		}

	case strings.Contains(lower, "remove "):
		target := strings.TrimSpace(prompt[strings.Index(lower, "remove ")+len("remove "):])
		s.removeText(article, target)

	case strings.Contains(lower, "add ") || strings.Contains(lower, "include "):
		s.addContent(ctx, ec, prompt)

	case strings.Contains(lower, "tone") || strings.Contains(lower, "shorter") ||
		strings.Contains(lower, "longer") || strings.Contains(lower, "length"):
		if rewritten, ok := s.rewrite(ctx, prompt, article.Intro); ok {
			article.Intro = rewritten
		}

	default:
		if rewritten, ok := s.rewrite(ctx, prompt, article.Intro); ok {
			article.Intro = rewritten
		}
	}
}

// rewrite asks the reviewer to transform one text block per the instruction
func (s *ReviewStage) rewrite(ctx context.Context, instruction, text string) (string, bool) {
	result, err := s.reviewer.Generate(ctx, &interfaces.GenerateRequest{
		Prompt: fmt.Sprintf(
			"Apply this editorial instruction to the text below. Keep the HTML structure and any "+
				"[N] citation brackets intact. Reply with only the revised text.\n\nInstruction: %s\n\nText:\n%s",
			instruction, text),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Review rewrite failed, keeping original")
		return "", false
	}

	revised := strings.TrimSpace(result.Text)
	if revised == "" {
		return "", false
	}
	return revised, true
}

// removeText strips a literal phrase from every body field
func (s *ReviewStage) removeText(article *models.ArticleOutput, target string) {
	if target == "" {
		return
	}
	article.Intro = strings.ReplaceAll(article.Intro, target, "")
	article.DirectAnswer = strings.ReplaceAll(article.DirectAnswer, target, "")
	for n := 1; n <= models.MaxSections; n++ {
		if content := article.Section(n).Content; content != "" {
			article.SetSectionContent(n, strings.ReplaceAll(content, target, ""))
		}
	}
}

// addContent appends reviewer-generated material to the last section
func (s *ReviewStage) addContent(ctx context.Context, ec *pipeline.Context, prompt string) {
	sections := ec.Article.Sections()
	if len(sections) == 0 {
		return
	}
	last := sections[len(sections)-1]

	result, err := s.reviewer.Generate(ctx, &interfaces.GenerateRequest{
		Prompt: fmt.Sprintf(
			"The article is about %q. %s\n\nWrite one or two HTML paragraphs satisfying the request. "+
				"Reply with only the paragraphs.",
			ec.JobConfig.PrimaryKeyword, prompt),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Review addition failed, skipping")
		return
	}

	addition := strings.TrimSpace(result.Text)
	if addition != "" {
		ec.Article.SetSectionContent(last.Index, last.Content+"\n"+addition)
	}
}
