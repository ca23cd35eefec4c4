package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

const claudeMaxTokens = 16384

// ClaudeService implements the generator contract with the Anthropic API.
// It carries no search tooling, so grounding URLs are always empty; it is
// primarily used for review-rewrite passes.
type ClaudeService struct {
	config *common.ClaudeConfig
	client anthropic.Client
	logger arbor.ILogger
}

func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set claude.api_key or SCRIPTOR_CLAUDE_API_KEY)")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Info().Str("model", config.Model).Msg("Claude generator initialized")

	return &ClaudeService{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

func (s *ClaudeService) Name() string {
	return "claude"
}

func (s *ClaudeService) Generate(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: claudeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemInstruction},
		}
	}

	started := time.Now()
	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude generation failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("Claude returned an empty response")
	}

	s.logger.Info().
		Str("model", s.config.Model).
		Int("response_length", text.Len()).
		Dur("duration", time.Since(started)).
		Msg("Claude generation completed")

	return &interfaces.GenerateResult{Text: text.String()}, nil
}
