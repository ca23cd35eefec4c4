package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

// GeminiService implements the generator contract with the Gemini API.
// Article generation runs with Google Search and URL context tools so that
// responses arrive grounded in real sources.
type GeminiService struct {
	config  *common.GeminiConfig
	client  *genai.Client
	timeout time.Duration
	logger  arbor.ILogger
}

func NewGeminiService(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set gemini.api_key or SCRIPTOR_GEMINI_API_KEY)")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	timeout := common.Duration(config.Timeout, 5*time.Minute)

	logger.Info().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Gemini generator initialized")

	return &GeminiService{
		config:  config,
		client:  client,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (s *GeminiService) Name() string {
	return "gemini"
}

// Client exposes the underlying API client for services that share it,
// such as image generation.
func (s *GeminiService) Client() *genai.Client {
	return s.client
}

// Generate produces a completion. With ResponseSchema set the output is
// constrained to the article schema; with EnableTools set the model may
// search the web and fetch URLs, and the consulted sources are returned as
// grounding URLs.
func (s *GeminiService) Generate(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.ResponseSchema {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = articleSchema()
	}
	if req.EnableTools {
		config.Tools = []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
			{URLContext: &genai.URLContext{}},
		}
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	started := time.Now()
	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.config.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("Gemini returned an empty response")
	}

	grounding := extractGroundingURLs(resp)

	s.logger.Info().
		Str("model", s.config.Model).
		Int("response_length", len(text)).
		Int("grounding_urls", len(grounding)).
		Dur("duration", time.Since(started)).
		Msg("Gemini generation completed")

	return &interfaces.GenerateResult{
		Text:          text,
		GroundingURLs: grounding,
	}, nil
}

// extractGroundingURLs collects the web sources the model consulted
func extractGroundingURLs(resp *genai.GenerateContentResponse) []interfaces.GroundingURL {
	var out []interfaces.GroundingURL
	seen := make(map[string]bool)

	for _, candidate := range resp.Candidates {
		if candidate.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
				continue
			}
			seen[chunk.Web.URI] = true
			out = append(out, interfaces.GroundingURL{
				URL:    chunk.Web.URI,
				Title:  chunk.Web.Title,
				Domain: chunk.Web.Domain,
			})
		}
	}
	return out
}
