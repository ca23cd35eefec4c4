package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// MockGenerator produces deterministic offline output so the pipeline can
// run end to end without API keys.
type MockGenerator struct {
	logger arbor.ILogger
}

func NewMockGenerator(logger arbor.ILogger) *MockGenerator {
	logger.Warn().Msg("No LLM API key configured, using mock generator")
	return &MockGenerator{logger: logger}
}

func (m *MockGenerator) Name() string {
	return "mock"
}

func (m *MockGenerator) Generate(_ context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResult, error) {
	if !req.ResponseSchema {
		// Free-form request, e.g. a citation replacement search
		return &interfaces.GenerateResult{
			Text: "https://en.wikipedia.org/wiki/Information_security",
		}, nil
	}

	keyword := extractKeyword(req.Prompt)
	article := mockArticle(keyword)

	data, err := json.Marshal(article)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mock article: %w", err)
	}

	return &interfaces.GenerateResult{
		Text: string(data),
		GroundingURLs: []interfaces.GroundingURL{
			{URL: "https://en.wikipedia.org/wiki/Information_security", Title: "Information security", Domain: "wikipedia.org"},
		},
	}, nil
}

// extractKeyword pulls the quoted keyword out of the prompt, falling back to
// a generic topic.
func extractKeyword(prompt string) string {
	start := strings.Index(prompt, `"`)
	if start >= 0 {
		if end := strings.Index(prompt[start+1:], `"`); end > 0 {
			return prompt[start+1 : start+1+end]
		}
	}
	return "your topic"
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func mockArticle(keyword string) *models.ArticleOutput {
	title := titleCase(keyword)
	return &models.ArticleOutput{
		Headline:        fmt.Sprintf("%s: A Practical Guide", title),
		Subtitle:        fmt.Sprintf("What %s means for your organization", keyword),
		Teaser:          fmt.Sprintf("A grounded look at %s and how to apply it.", keyword),
		DirectAnswer:    fmt.Sprintf("%s is an approach organizations adopt to reduce risk and improve outcomes [1].", title),
		Intro:           fmt.Sprintf("This article explains %s from first principles and walks through adoption in practice [1].", keyword),
		MetaTitle:       fmt.Sprintf("%s Guide", title),
		MetaDescription: fmt.Sprintf("Learn what %s is, why it matters, and how to adopt it.", keyword),

		Section01Title:   fmt.Sprintf("What Is %s?", title),
		Section01Content: fmt.Sprintf("%s describes a set of practices teams use to meet their goals. It rests on clear ownership, measurable outcomes, and continuous review [1].", title),
		Section02Title:   "Why It Matters Now",
		Section02Content: "Adoption has accelerated across industries as teams look for measurable improvements in reliability and cost.",
		Section03Title:   "How to Get Started",
		Section03Content: "Start small. Pick one workflow, instrument it, and expand from what the data shows.",

		KeyTakeaway01: fmt.Sprintf("%s reduces risk when adopted incrementally.", title),
		KeyTakeaway02: "Measurement comes before optimization.",
		KeyTakeaway03: "Small pilots beat big-bang rollouts.",

		FAQ01Question: fmt.Sprintf("What is %s?", keyword),
		FAQ01Answer:   fmt.Sprintf("%s is a structured approach to reducing risk and improving outcomes.", title),
		FAQ02Question: fmt.Sprintf("Who should adopt %s?", keyword),
		FAQ02Answer:   "Any team that needs measurable, repeatable results.",

		PAA01Question: fmt.Sprintf("How long does %s take to implement?", keyword),
		PAA01Answer:   "Most teams see first results within one quarter.",

		Image01AltText: fmt.Sprintf("Diagram illustrating the core concepts of %s", keyword),
		Image02AltText: fmt.Sprintf("Team reviewing a %s rollout plan", keyword),

		Sources: "[1]: https://en.wikipedia.org/wiki/Information_security – Information security",

		SearchQueries: fmt.Sprintf("%s definition; %s best practices; %s examples", keyword, keyword, keyword),
		TLDR:          fmt.Sprintf("%s, explained and made actionable.", title),
	}
}
