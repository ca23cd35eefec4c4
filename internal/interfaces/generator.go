package interfaces

import "context"

// GroundingURL is a source the generator reports having consulted
type GroundingURL struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
}

// GenerateRequest carries one generation call
type GenerateRequest struct {
	Prompt            string
	SystemInstruction string
	ResponseSchema    bool // Constrain output to the article schema
	EnableTools       bool // Web search + URL context
}

// GenerateResult is the generator's response
type GenerateResult struct {
	Text          string
	GroundingURLs []GroundingURL
}

// Generator is the LLM provider contract. Implementations surface rate-limit
// and auth failures as classifiable errors.
type Generator interface {
	// Generate produces a completion for the request
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

	// Name identifies the provider for logging and circuit breaking
	Name() string
}

// ImageResult describes one generated image artifact
type ImageResult struct {
	URL     string // Public or file URL of the primary artifact
	AltText string
	Credit  string
}

// ImageGenerator produces article images
type ImageGenerator interface {
	// GenerateImage renders an image for the prompt and returns its location
	GenerateImage(ctx context.Context, prompt string) (*ImageResult, error)
}

// EmbeddingClient generates semantic embeddings via the external service
type EmbeddingClient interface {
	// Embed returns one embedding vector per input text
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
