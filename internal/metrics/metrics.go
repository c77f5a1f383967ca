// Package metrics exports classification pipeline telemetry to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/smartkingston/internal/classifier"
)

const namespace = "smartkingston"

// PipelineMetrics implements classifier.Observer.
type PipelineMetrics struct {
	stageDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// NewPipelineMetrics creates the collectors and registers them with reg.
func NewPipelineMetrics(reg prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "stage_duration_seconds",
			Help:      "Duration of classification pipeline stages.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"stage", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "runs_total",
			Help:      "Classification runs by terminal stage and error kind.",
		}, []string{"result", "kind"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "run_duration_seconds",
			Help:      "End-to-end duration of classification runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.stageDuration, m.runs, m.runDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// StageFinished records one stage duration.
func (m *PipelineMetrics) StageFinished(stage classifier.Stage, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stageDuration.WithLabelValues(stage.String(), outcome).Observe(elapsed.Seconds())
}

// RunFinished counts a finished run.
func (m *PipelineMetrics) RunFinished(final classifier.Stage, kind classifier.ErrorKind, elapsed time.Duration) {
	kindLabel := string(kind)
	if kindLabel == "" {
		kindLabel = "none"
	}
	m.runs.WithLabelValues(final.String(), kindLabel).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}
