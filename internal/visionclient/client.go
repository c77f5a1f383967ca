// Package visionclient extracts labels and text from images with the Google
// Cloud Vision images:annotate API.
package visionclient

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/example/smartkingston/internal/classifier"
	"github.com/example/smartkingston/internal/logging"
)

const (
	featureLabelDetection = "LABEL_DETECTION"
	featureTextDetection  = "TEXT_DETECTION"
)

// Config selects the credentials and endpoint of the vision service.
type Config struct {
	APIKey string
	// Endpoint overrides the public API root, e.g. for a proxy. Optional.
	Endpoint string
}

// Client implements classifier.ObservationExtractor.
type Client struct {
	images *vision.ImagesService
	logger *zap.Logger
}

// New returns a ready-to-use vision client.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(withTrailingSlash(cfg.Endpoint)))
	}

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		wrapped := logging.NewOperationError("visionclient.new_service", "", err)
		logger.Error("failed to create vision service", zap.Error(wrapped))
		return nil, wrapped
	}
	return &Client{images: svc.Images, logger: logger.Named("vision_client")}, nil
}

// ExtractObservations requests label and text detection for one image.
func (c *Client) ExtractObservations(ctx context.Context, image classifier.EncodedImage) (*classifier.VisionObservation, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image: &vision.Image{Content: image.Content},
			Features: []*vision.Feature{
				{Type: featureLabelDetection, MaxResults: classifier.MaxLabels},
				{Type: featureTextDetection, MaxResults: classifier.MaxTextRegions},
			},
		}},
	}

	resp, err := c.images.Annotate(req).Context(ctx).Do()
	if err != nil {
		wrapped := logging.NewOperationError("visionclient.annotate", "", err)
		c.logger.Error("vision annotate call failed", zap.Error(wrapped))
		return nil, wrapped
	}

	obs, err := observationFromResponse(resp)
	if err != nil {
		wrapped := logging.NewOperationError("visionclient.annotate", "", err)
		c.logger.Warn("vision response rejected", zap.Error(wrapped))
		return nil, wrapped
	}
	return obs, nil
}

func observationFromResponse(resp *vision.BatchAnnotateImagesResponse) (*classifier.VisionObservation, error) {
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, fmt.Errorf("%w: missing responses", classifier.ErrMalformedResponse)
	}
	first := resp.Responses[0]
	if first.Error != nil && first.Error.Code != 0 {
		return nil, fmt.Errorf("%w: image error %d: %s", classifier.ErrMalformedResponse, first.Error.Code, first.Error.Message)
	}

	obs := &classifier.VisionObservation{Labels: make([]string, 0, len(first.LabelAnnotations))}
	for _, label := range first.LabelAnnotations {
		if label == nil || strings.TrimSpace(label.Description) == "" {
			continue
		}
		obs.Labels = append(obs.Labels, label.Description)
	}
	// The first text annotation carries the full extracted text.
	if len(first.TextAnnotations) > 0 && first.TextAnnotations[0] != nil {
		obs.Text = first.TextAnnotations[0].Description
	}
	return obs, nil
}

func withTrailingSlash(endpoint string) string {
	if strings.HasSuffix(endpoint, "/") {
		return endpoint
	}
	return endpoint + "/"
}
