// Package textgen provides classifier.TextGenerator implementations backed
// by hosted language models.
package textgen

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/smartkingston/internal/classifier"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Config selects a provider and its credentials.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	// Endpoint overrides the provider's public API root. Optional.
	Endpoint string
}

// New builds the generator for cfg.Provider. An empty provider means Gemini.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (classifier.TextGenerator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		return NewGeminiGenerator(ctx, cfg, logger)
	case ProviderOpenAI:
		return NewOpenAIGenerator(cfg, logger), nil
	default:
		return nil, fmt.Errorf("textgen: unknown provider %q", cfg.Provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
