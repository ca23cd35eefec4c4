package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

// NewGenerator resolves the configured provider. An explicit llm.provider
// setting wins; otherwise the first provider with an API key is used, and
// with no keys at all the offline mock generator is returned.
func NewGenerator(config *common.Config, logger arbor.ILogger) (interfaces.Generator, error) {
	switch config.LLM.Provider {
	case "gemini":
		return NewGeminiService(&config.Gemini, logger)
	case "claude":
		return NewClaudeService(&config.Claude, logger)
	case "mock":
		return NewMockGenerator(logger), nil
	case "":
		// Resolve from available keys
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.LLM.Provider)
	}

	if config.Gemini.APIKey != "" {
		return NewGeminiService(&config.Gemini, logger)
	}
	if config.Claude.APIKey != "" {
		return NewClaudeService(&config.Claude, logger)
	}
	return NewMockGenerator(logger), nil
}

// NewReviewer returns the generator used for review-rewrite passes. Claude
// is preferred when a key is available; otherwise the primary generator is
// reused.
func NewReviewer(config *common.Config, primary interfaces.Generator, logger arbor.ILogger) interfaces.Generator {
	if config.Claude.APIKey != "" && primary.Name() != "claude" {
		reviewer, err := NewClaudeService(&config.Claude, logger)
		if err == nil {
			return reviewer
		}
		logger.Warn().Err(err).Msg("Falling back to primary generator for reviews")
	}
	return primary
}
