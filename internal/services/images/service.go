package images

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

// maxAltTextLength caps alt text for accessibility tooling
const maxAltTextLength = 125

// Service generates article images with the Imagen API and stores them as
// MD5-keyed PNG artifacts. Without a client it degrades to placeholder URLs.
type Service struct {
	client    *genai.Client
	model     string
	outputDir string
	logger    arbor.ILogger
}

func NewService(config *common.Config, client *genai.Client, logger arbor.ILogger) *Service {
	return &Service{
		client:    client,
		model:     config.Gemini.ImageModel,
		outputDir: config.Storage.Filesystem.Images,
		logger:    logger,
	}
}

// GenerateImage renders one image for the prompt. The artifact filename is
// the MD5 of the prompt, so identical prompts reuse the same file.
func (s *Service) GenerateImage(ctx context.Context, prompt string) (*interfaces.ImageResult, error) {
	if s.client == nil {
		return s.placeholder(prompt), nil
	}

	hash := md5.Sum([]byte(prompt))
	filename := hex.EncodeToString(hash[:]) + ".png"
	path := filepath.Join(s.outputDir, filename)

	if _, err := os.Stat(path); err == nil {
		s.logger.Debug().Str("file", filename).Msg("Reusing existing image artifact")
		return &interfaces.ImageResult{
			URL:     "file://" + path,
			AltText: TruncateAltText(prompt),
		}, nil
	}

	started := time.Now()
	resp, err := s.client.Models.GenerateImages(ctx, s.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("image generation returned no images")
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := os.WriteFile(path, resp.GeneratedImages[0].Image.ImageBytes, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write image artifact: %w", err)
	}

	s.logger.Info().
		Str("file", filename).
		Int("bytes", len(resp.GeneratedImages[0].Image.ImageBytes)).
		Dur("duration", time.Since(started)).
		Msg("Image generated")

	return &interfaces.ImageResult{
		URL:     "file://" + path,
		AltText: TruncateAltText(prompt),
	}, nil
}

// placeholder returns a deterministic placeholder image URL for the prompt
func (s *Service) placeholder(prompt string) *interfaces.ImageResult {
	return &interfaces.ImageResult{
		URL:     "https://placehold.co/1200x630?text=" + url.QueryEscape(TruncateAltText(prompt)),
		AltText: TruncateAltText(prompt),
		Credit:  "Placeholder",
	}
}

// TruncateAltText trims alt text to the accessibility limit on a word
// boundary where possible.
func TruncateAltText(text string) string {
	if len(text) <= maxAltTextLength {
		return text
	}
	cut := text[:maxAltTextLength]
	for i := len(cut) - 1; i > 0; i-- {
		if cut[i] == ' ' {
			return cut[:i]
		}
	}
	return cut
}
