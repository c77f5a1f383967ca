// Package bootstrap assembles the classification pipeline from configuration.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/smartkingston/internal/classifier"
	"github.com/example/smartkingston/internal/config"
	"github.com/example/smartkingston/internal/textgen"
	"github.com/example/smartkingston/internal/visionclient"
)

// NewPipeline validates cfg and wires the vision client and text generator
// into a pipeline. opts are applied after the config-derived options.
func NewPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...classifier.Option) (*classifier.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	extractor, err := visionclient.New(ctx, visionclient.Config{
		APIKey:   cfg.VisionAPIKey,
		Endpoint: cfg.EndpointBaseURL,
	}, logger)
	if err != nil {
		return nil, err
	}

	generator, err := textgen.New(ctx, textgen.Config{
		Provider: cfg.GenerativeProvider,
		APIKey:   cfg.GenerativeAPIKey,
		Model:    cfg.GenerativeModel,
		Endpoint: cfg.EndpointBaseURL,
	}, logger)
	if err != nil {
		return nil, err
	}

	base := []classifier.Option{
		classifier.WithCallTimeout(cfg.Timeout()),
		classifier.WithMaxDimension(cfg.MaxImageDimension),
		classifier.WithCategory(cfg.Category),
	}
	logger.Info("classification pipeline configured",
		zap.String("provider", cfg.GenerativeProvider),
		zap.Duration("call_timeout", cfg.Timeout()),
		zap.Bool("custom_endpoint", cfg.EndpointBaseURL != ""),
	)
	return classifier.NewPipeline(extractor, generator, logger, append(base, opts...)...), nil
}
