// Package metrics records use-case outcomes as prometheus series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperr "kgv/backend/pkg/errors"
)

// Recorder 用例结果指标。nil Recorder 的所有方法均为空操作。
type Recorder struct {
	registry *prometheus.Registry

	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// New creates a Recorder on its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kgv_operations_total",
			Help: "Use-case invocations by operation and outcome category",
		}, []string{"operation", "outcome"}), // outcome: "ok", "validation", "not_found", "conflict", "unexpected"

		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kgv_operation_duration_seconds",
			Help:    "Duration of use-case invocations by operation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

// Outcome is the label value for err.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

// Observe records one invocation of op that started at started.
func (r *Recorder) Observe(op string, started time.Time, err error) {
	if r == nil {
		return
	}
	r.Operations.WithLabelValues(op, Outcome(err)).Inc()
	r.Duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// Gatherer exposes the registry, e.g. for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteToTextfile writes the current series in the text exposition format,
// for the node exporter textfile collector.
func (r *Recorder) WriteToTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
