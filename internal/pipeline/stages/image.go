package stages

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/images"
)

// ImageStage renders the hero, mid-article, and bottom images in parallel.
// Non-critical: each slot degrades to a placeholder independently, and the
// stage fallback fills all three.
type ImageStage struct {
	generator interfaces.ImageGenerator
	breakers  *pipeline.BreakerRegistry
	logger    arbor.ILogger
}

func NewImageStage(generator interfaces.ImageGenerator, breakers *pipeline.BreakerRegistry, logger arbor.ILogger) *ImageStage {
	return &ImageStage{generator: generator, breakers: breakers, logger: logger}
}

func (s *ImageStage) StageNum() int     { return 9 }
func (s *ImageStage) StageName() string { return "stage_09_image" }

// imageSlot describes one image position and its scratchpad key prefix
type imageSlot struct {
	prefix string
	prompt string
}

func (s *ImageStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	slots := s.slots(ec)

	var wg sync.WaitGroup
	for _, slot := range slots {
		wg.Add(1)
		go func(slot imageSlot) {
			defer wg.Done()
			s.renderSlot(ctx, ec, slot)
		}(slot)
	}
	wg.Wait()

	return nil
}

// Fallback fills every slot with a placeholder
func (s *ImageStage) Fallback(_ context.Context, ec *pipeline.Context, cause error) error {
	s.logger.Warn().Str("job_id", ec.JobID).Err(cause).Msg("Image generation degraded to placeholders")
	for _, slot := range s.slots(ec) {
		s.stageResult(ec, slot.prefix, placeholderImage(slot.prompt))
	}
	return nil
}

func (s *ImageStage) slots(ec *pipeline.Context) []imageSlot {
	article := ec.Article
	style := "photographic editorial style"
	if ec.JobConfig.UseGraphics {
		style = "flat vector infographic style"
	}

	return []imageSlot{
		{prefix: "image", prompt: fmt.Sprintf("%s, %s", article.Headline, style)},
		{prefix: "mid_image", prompt: fmt.Sprintf("%s, %s", sectionTheme(article, 3, 4), style)},
		{prefix: "bottom_image", prompt: fmt.Sprintf("%s, %s", sectionTheme(article, 6, 7), style)},
	}
}

func (s *ImageStage) renderSlot(ctx context.Context, ec *pipeline.Context, slot imageSlot) {
	breaker := s.breakers.Get("image")

	var result *interfaces.ImageResult
	err := pipeline.Retry(ctx, s.logger, pipeline.ProfileImageGeneration, func() error {
		return breaker.Execute(func() error {
			r, genErr := s.generator.GenerateImage(ctx, slot.prompt)
			if genErr != nil {
				return genErr
			}
			result = r
			return nil
		})
	})
	if err != nil {
		s.logger.Warn().
			Str("job_id", ec.JobID).
			Str("slot", slot.prefix).
			Err(err).
			Msg("Image slot degraded to placeholder")
		result = placeholderImage(slot.prompt)
	}

	s.stageResult(ec, slot.prefix, result)
}

func (s *ImageStage) stageResult(ec *pipeline.Context, prefix string, result *interfaces.ImageResult) {
	parallel := ec.Parallel()
	parallel.Set(s.StageName(), prefix+"_url", result.URL)
	parallel.Set(s.StageName(), prefix+"_alt_text", result.AltText)
	if result.Credit != "" {
		parallel.Set(s.StageName(), prefix+"_credit", result.Credit)
	}
}

// sectionTheme joins two section titles into an image prompt theme,
// falling back to the headline.
func sectionTheme(article *models.ArticleOutput, first, second int) string {
	titles := []string{}
	for _, n := range []int{first, second} {
		if title := article.Section(n).Title; title != "" {
			titles = append(titles, title)
		}
	}
	if len(titles) == 0 {
		return article.Headline
	}
	return strings.Join(titles, " and ")
}

func placeholderImage(prompt string) *interfaces.ImageResult {
	alt := images.TruncateAltText(prompt)
	return &interfaces.ImageResult{
		URL:     "https://placehold.co/1200x630?text=" + url.QueryEscape(alt),
		AltText: alt,
		Credit:  "Placeholder",
	}
}
