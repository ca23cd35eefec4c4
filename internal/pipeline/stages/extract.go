package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// aiLanguageMarkers are phrases that read as machine-generated filler
var aiLanguageMarkers = []string{
	"in today's fast-paced world",
	"in the ever-evolving landscape",
	"delve into",
	"it's important to note that",
	"unlock the power of",
	"game-changer",
}

// ExtractStage parses the raw generator output into the structured article.
// Missing required fields are fatal; metadata length problems only warn.
// A best-effort refinement pass may ask the generator to fix style issues.
type ExtractStage struct {
	generator interfaces.Generator
	logger    arbor.ILogger
}

func NewExtractStage(generator interfaces.Generator, logger arbor.ILogger) *ExtractStage {
	return &ExtractStage{generator: generator, logger: logger}
}

func (s *ExtractStage) StageNum() int     { return 3 }
func (s *ExtractStage) StageName() string { return "stage_03_extraction" }

func (s *ExtractStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	article, err := models.ParseArticleOutput(ec.RawArticle)
	if err != nil {
		return pipeline.NewValidationError(fmt.Errorf("failed to parse generator output: %w", err))
	}

	if missing := article.MissingRequiredFields(); len(missing) > 0 {
		return pipeline.NewValidationError(
			fmt.Errorf("structured output missing required fields: %s", strings.Join(missing, ", ")))
	}

	if n := len(article.MetaTitle); n > 65 {
		s.logger.Warn().Str("job_id", ec.JobID).Int("length", n).Msg("Meta title over recommended length")
	}
	if n := len(article.MetaDescription); n > 165 {
		s.logger.Warn().Str("job_id", ec.JobID).Int("length", n).Msg("Meta description over recommended length")
	}

	s.refine(ctx, ec, article)

	ec.Article = article

	s.logger.Info().
		Str("job_id", ec.JobID).
		Int("sections", len(article.Sections())).
		Int("tables", len(article.Tables)).
		Msg("Article extracted")

	return nil
}

// refine detects style problems and issues one targeted rewrite. Failures
// never block the pipeline.
func (s *ExtractStage) refine(ctx context.Context, ec *pipeline.Context, article *models.ArticleOutput) {
	issues := detectStyleIssues(article, ec.JobConfig.PrimaryKeyword)
	if len(issues) == 0 {
		return
	}

	s.logger.Debug().
		Str("job_id", ec.JobID).
		Strs("issues", issues).
		Msg("Requesting style refinement of intro")

	prompt := fmt.Sprintf(
		"Rewrite the following article introduction to fix these issues: %s. "+
			"Keep the meaning, length, and any [N] citation brackets. Reply with only the rewritten text.\n\n%s",
		strings.Join(issues, "; "), article.Intro)

	result, err := s.generator.Generate(ctx, &interfaces.GenerateRequest{Prompt: prompt})
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", ec.JobID).Msg("Style refinement failed, keeping original intro")
		return
	}

	rewritten := strings.TrimSpace(result.Text)
	if rewritten != "" && len(rewritten) >= len(article.Intro)/2 {
		article.Intro = rewritten
	}
}

// detectStyleIssues flags keyword stuffing, thin intros, AI filler, and
// academic citation style.
func detectStyleIssues(article *models.ArticleOutput, keyword string) []string {
	var issues []string

	intro := strings.ToLower(article.Intro)
	if keyword != "" {
		occurrences := strings.Count(intro, strings.ToLower(keyword))
		words := len(strings.Fields(intro))
		if words > 0 && occurrences >= 3 {
			issues = append(issues, "primary keyword is over-used")
		}
	}

	if len(strings.Fields(article.Intro)) < 25 {
		issues = append(issues, "introduction is too short")
	}

	for _, marker := range aiLanguageMarkers {
		if strings.Contains(intro, marker) {
			issues = append(issues, fmt.Sprintf("remove filler phrase %q", marker))
			break
		}
	}

	if strings.Contains(article.Intro, "et al.") || strings.Contains(article.Intro, "(ibid") {
		issues = append(issues, "academic citation style should be numbered brackets")
	}

	return issues
}
