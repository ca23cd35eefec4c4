package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/pipeline"
	"github.com/ternarybob/scriptor/internal/services/citations"
)

// minResponseLength marks short generator responses as retryable failures
const minResponseLength = 500

// GenerateStage calls the generator with search tools and the article
// response schema, behind the generator circuit breaker and the api_calls
// retry profile.
type GenerateStage struct {
	generator interfaces.Generator
	breakers  *pipeline.BreakerRegistry
	logger    arbor.ILogger
}

func NewGenerateStage(generator interfaces.Generator, breakers *pipeline.BreakerRegistry, logger arbor.ILogger) *GenerateStage {
	return &GenerateStage{generator: generator, breakers: breakers, logger: logger}
}

func (s *GenerateStage) StageNum() int     { return 2 }
func (s *GenerateStage) StageName() string { return "stage_02_generate" }

func (s *GenerateStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	breaker := s.breakers.Get("generator")

	var result *interfaces.GenerateResult
	err := pipeline.Retry(ctx, s.logger, pipeline.ProfileAPICalls, func() error {
		return breaker.Execute(func() error {
			r, genErr := s.generator.Generate(ctx, &interfaces.GenerateRequest{
				Prompt:            ec.Prompt,
				SystemInstruction: SystemInstruction(ec.JobConfig),
				ResponseSchema:    true,
				EnableTools:       true,
			})
			if genErr != nil {
				return genErr
			}
			if len(r.Text) < minResponseLength {
				return pipeline.NewTransientError(
					fmt.Errorf("generator response too short: %d chars", len(r.Text)))
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return err
	}

	ec.RawArticle = result.Text
	ec.GroundingURLs = result.GroundingURLs

	// The linker's name map is derived here because only this stage sees the
	// grounding metadata.
	if json.Valid([]byte(result.Text)) {
		nameMap := citations.BuildNameMap(result.GroundingURLs)
		if len(nameMap) > 0 {
			ec.Parallel().Set(s.StageName(), "source_name_map", nameMap)
		}
	}

	s.logger.Info().
		Str("job_id", ec.JobID).
		Str("provider", s.generator.Name()).
		Int("response_length", len(result.Text)).
		Int("grounding_urls", len(result.GroundingURLs)).
		Msg("Article generated")

	return nil
}
