package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

func TestArticleSchemaCoversRequiredFields(t *testing.T) {
	schema := articleSchema()

	require.Equal(t, genai.TypeObject, schema.Type)
	assert.ElementsMatch(t, []string{
		"Headline", "Subtitle", "Teaser", "Direct_Answer", "Intro", "Meta_Title", "Meta_Description",
	}, schema.Required)

	for _, field := range schema.Required {
		assert.Contains(t, schema.Properties, field)
	}
	assert.Contains(t, schema.Properties, "section_01_title")
	assert.Contains(t, schema.Properties, "faq_06_answer")
	assert.Contains(t, schema.Properties, "tables")
	assert.Equal(t, genai.TypeArray, schema.Properties["tables"].Type)
}

func TestMockGeneratorProducesValidArticle(t *testing.T) {
	gen := NewMockGenerator(common.GetLogger())

	result, err := gen.Generate(context.Background(), &interfaces.GenerateRequest{
		Prompt:         `Write an article about "zero trust security".`,
		ResponseSchema: true,
	})
	require.NoError(t, err)

	article, err := models.ParseArticleOutput(result.Text)
	require.NoError(t, err)
	assert.Empty(t, article.MissingRequiredFields())
	assert.Contains(t, article.Headline, "Zero Trust Security")
	assert.NotEmpty(t, article.Sources)
	assert.NotEmpty(t, result.GroundingURLs)
}

func TestMockGeneratorFreeFormReturnsURL(t *testing.T) {
	gen := NewMockGenerator(common.GetLogger())

	result, err := gen.Generate(context.Background(), &interfaces.GenerateRequest{
		Prompt:      "Find a replacement URL",
		EnableTools: true,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "https://")
}

func TestNewGeneratorProviderResolution(t *testing.T) {
	logger := common.GetLogger()

	config := common.DefaultConfig()
	gen, err := NewGenerator(config, logger)
	require.NoError(t, err)
	assert.Equal(t, "mock", gen.Name(), "no keys resolves to mock")

	config = common.DefaultConfig()
	config.LLM.Provider = "mock"
	gen, err = NewGenerator(config, logger)
	require.NoError(t, err)
	assert.Equal(t, "mock", gen.Name())

	config = common.DefaultConfig()
	config.LLM.Provider = "nonsense"
	_, err = NewGenerator(config, logger)
	assert.Error(t, err)

	config = common.DefaultConfig()
	config.LLM.Provider = "gemini"
	_, err = NewGenerator(config, logger)
	assert.Error(t, err, "explicit provider without key fails")
}
