package textgen

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/example/smartkingston/internal/classifier"
	"github.com/example/smartkingston/internal/logging"
)

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIGenerator returns a generator for cfg.Model (DefaultOpenAIModel when empty).
// cfg.Endpoint, when set, is the API root without the /v1 suffix.
func NewOpenAIGenerator(cfg Config, logger *zap.Logger) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/v1"
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  firstNonEmpty(cfg.Model, DefaultOpenAIModel),
		logger: logger.Named("openai_generator"),
	}
}

// GenerateText returns the content of the first choice.
func (g *OpenAIGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		wrapped := logging.NewOperationError("textgen.openai.chat_completion", "", err)
		g.logger.Error("chat completion call failed", zap.Error(wrapped), zap.String("model", g.model))
		return "", wrapped
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		wrapped := logging.NewOperationError("textgen.openai.chat_completion", "",
			fmt.Errorf("%w: no choice content", classifier.ErrMalformedResponse))
		g.logger.Warn("chat completion response rejected", zap.Error(wrapped), zap.String("model", g.model))
		return "", wrapped
	}
	return resp.Choices[0].Message.Content, nil
}
