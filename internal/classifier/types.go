// Package classifier turns a photograph of an item into a recommendation on
// how to dispose of it in Kingston's waste streams.
//
// A run encodes the image, extracts labels and text through a vision
// service, asks a generative-text service for disposal advice and then asks
// it again to condense that advice. Each step feeds the next and any failure
// aborts the run with a *ClassificationError.
package classifier

import "context"

const (
	// UnknownItem names the item when the vision service found no labels.
	UnknownItem = "unknown"
	// DefaultCategory is the category attached to every result.
	DefaultCategory = "Eco-Friendly Disposal"

	// MaxLabels caps label detection results requested from the vision service.
	MaxLabels = 10
	// MaxTextRegions caps text detection results requested from the vision service.
	MaxTextRegions = 10
)

// VisionObservation holds what the vision service saw in an image.
type VisionObservation struct {
	Labels []string
	Text   string
}

// Item returns the first label or UnknownItem when there are none.
func (o *VisionObservation) Item() string {
	if o == nil || len(o.Labels) == 0 {
		return UnknownItem
	}
	return o.Labels[0]
}

// DisposalAdvice is the uncondensed answer of the first generative call.
type DisposalAdvice string

// DisposalResult is the outcome of a successful classification.
type DisposalResult struct {
	Item     string `json:"item"`
	Reason   string `json:"reason"`
	Category string `json:"category"`
}

// ObservationExtractor detects labels and text in an encoded image.
// Implementations return an error wrapping ErrMalformedResponse when the
// service answers without the expected structure.
type ObservationExtractor interface {
	ExtractObservations(ctx context.Context, image EncodedImage) (*VisionObservation, error)
}

// TextGenerator completes a prompt with free text.
// Implementations return an error wrapping ErrMalformedResponse when the
// answer has no candidate text.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}
