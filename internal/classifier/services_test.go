package classifier_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/smartkingston/internal/classifier"
	"github.com/example/smartkingston/internal/textgen"
	"github.com/example/smartkingston/internal/visionclient"
)

// fakeServices serves both APIs from one base URL, like a shared gateway.
type fakeServices struct {
	visionBody   string
	replies      []string
	visionCalls  atomic.Int32
	generateCall atomic.Int32
}

func (f *fakeServices) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/v1/images:annotate":
		f.visionCalls.Add(1)
		_, _ = w.Write([]byte(f.visionBody))
	case strings.HasSuffix(r.URL.Path, ":generateContent"):
		n := int(f.generateCall.Add(1))
		if n > len(f.replies) {
			http.Error(w, "unexpected call", http.StatusInternalServerError)
			return
		}
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": f.replies[n-1]}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	default:
		http.NotFound(w, r)
	}
}

func newServicePipeline(t *testing.T, fake *fakeServices) *classifier.Pipeline {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	ctx := context.Background()
	extractor, err := visionclient.New(ctx, visionclient.Config{APIKey: "vision-key", Endpoint: server.URL}, zap.NewNop())
	require.NoError(t, err)
	generator, err := textgen.New(ctx, textgen.Config{APIKey: "generative-key", Endpoint: server.URL}, zap.NewNop())
	require.NoError(t, err)
	return classifier.NewPipeline(extractor, generator, zap.NewNop())
}

func photo(t *testing.T) classifier.ImageHandle {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	img.Set(1, 1, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return classifier.ImageFromBytes(buf.Bytes())
}

func TestClassifyAgainstServices(t *testing.T) {
	fake := &fakeServices{
		visionBody: `{"responses":[{"labelAnnotations":[{"description":"Aluminum can"},{"description":"Beverage can"}],"textAnnotations":[{"description":""}]}]}`,
		replies:    []string{"Recycle in blue bin", "Put this aluminum can in the blue bin."},
	}
	p := newServicePipeline(t, fake)

	result, err := p.Classify(context.Background(), photo(t))
	require.NoError(t, err)
	assert.Equal(t, classifier.DisposalResult{
		Item:     "Aluminum can",
		Reason:   "Put this aluminum can in the blue bin.",
		Category: "Eco-Friendly Disposal",
	}, *result)
	assert.EqualValues(t, 1, fake.visionCalls.Load())
	assert.EqualValues(t, 2, fake.generateCall.Load())
}

func TestClassifyHaltsOnEmptyVisionResponse(t *testing.T) {
	fake := &fakeServices{visionBody: `{}`, replies: []string{"unused", "unused"}}
	p := newServicePipeline(t, fake)

	_, err := p.Classify(context.Background(), photo(t))
	require.ErrorIs(t, err, classifier.ErrVisionServiceFailed)
	require.ErrorIs(t, err, classifier.ErrMalformedResponse)
	assert.EqualValues(t, 1, fake.visionCalls.Load())
	assert.Zero(t, fake.generateCall.Load())
}

func TestClassifyMalformedCondenseResponse(t *testing.T) {
	fake := &fakeServices{
		visionBody: `{"responses":[{"labelAnnotations":[{"description":"Egg carton"}]}]}`,
		replies:    []string{"Paper egg cartons go in the green bin."},
	}
	p := newServicePipeline(t, fake)

	_, err := p.Classify(context.Background(), photo(t))
	require.ErrorIs(t, err, classifier.ErrCondenseServiceFailed)
	assert.EqualValues(t, 2, fake.generateCall.Load())
}
