package textgen

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/example/smartkingston/internal/classifier"
	"github.com/example/smartkingston/internal/logging"
)

// GeminiGenerator calls the Gemini API generateContent method.
type GeminiGenerator struct {
	models *genai.Models
	model  string
	logger *zap.Logger
}

// NewGeminiGenerator returns a generator for cfg.Model (DefaultGeminiModel when empty).
func NewGeminiGenerator(ctx context.Context, cfg Config, logger *zap.Logger) (*GeminiGenerator, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/"
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		wrapped := logging.NewOperationError("textgen.gemini.new_client", "", err)
		logger.Error("failed to create gemini client", zap.Error(wrapped))
		return nil, wrapped
	}

	model := strings.TrimPrefix(firstNonEmpty(cfg.Model, DefaultGeminiModel), "models/")
	return &GeminiGenerator{models: client.Models, model: model, logger: logger.Named("gemini_generator")}, nil
}

// GenerateText sends prompt as a single user turn and returns the first
// text part of the first candidate.
func (g *GeminiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		wrapped := logging.NewOperationError("textgen.gemini.generate_content", "", err)
		g.logger.Error("generateContent call failed", zap.Error(wrapped), zap.String("model", g.model))
		return "", wrapped
	}

	text, err := candidateText(resp)
	if err != nil {
		wrapped := logging.NewOperationError("textgen.gemini.generate_content", "", err)
		g.logger.Warn("generateContent response rejected", zap.Error(wrapped), zap.String("model", g.model))
		return "", wrapped
	}
	return text, nil
}

func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: no candidates", classifier.ErrMalformedResponse)
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", fmt.Errorf("%w: candidate without content parts", classifier.ErrMalformedResponse)
	}
	for _, part := range content.Parts {
		if part != nil && strings.TrimSpace(part.Text) != "" {
			return part.Text, nil
		}
	}
	return "", fmt.Errorf("%w: candidate without text", classifier.ErrMalformedResponse)
}
