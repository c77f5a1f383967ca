package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/smartkingston/internal/classifier"
)

type failingExtractor struct{}

func (failingExtractor) ExtractObservations(context.Context, classifier.EncodedImage) (*classifier.VisionObservation, error) {
	return nil, errors.New("vision unavailable")
}

type silentGenerator struct{}

func (silentGenerator) GenerateText(context.Context, string) (string, error) {
	return "", errors.New("unexpected generator call")
}

func TestPipelineMetricsCountsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(reg)
	require.NoError(t, err)

	m.RunFinished(classifier.StageDone, "", 0)
	m.RunFinished(classifier.StageDone, "", 0)
	m.RunFinished(classifier.StageFailed, classifier.KindTimeout, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("done", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("failed", "timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
	assert.Equal(t, 2, testutil.CollectAndCount(m.runs))
}

func TestPipelineMetricsObservesPipeline(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(reg)
	require.NoError(t, err)

	p := classifier.NewPipeline(failingExtractor{}, silentGenerator{}, zap.NewNop(), classifier.WithObserver(m))
	_, err = p.Classify(context.Background(), classifier.ImageFromBytes([]byte("not an image")))
	require.ErrorIs(t, err, classifier.ErrImageReadFailed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("failed", string(classifier.KindImageReadFailed))))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
}

func TestNewPipelineMetricsRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPipelineMetrics(reg)
	require.NoError(t, err)

	_, err = NewPipelineMetrics(reg)
	require.Error(t, err)
}
