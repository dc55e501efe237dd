// Package metrics counts workflow step outcomes for a provisioning run and
// writes them as a node_exporter textfile, since a one-shot CLI has no
// scrape endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder owns a private registry so repeated runs in one process (tests)
// do not collide. A nil *Recorder records nothing.
type Recorder struct {
	registry    *prometheus.Registry
	steps       *prometheus.CounterVec
	runDuration prometheus.Gauge
	runFailed   prometheus.Gauge
	lastRun     prometheus.Gauge
}

// New registers the provisioner metrics on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provisioner_step_results_total",
				Help: "Workflow step outcomes by step and result kind",
			},
			[]string{"step", "result"},
		),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "provisioner_run_duration_seconds",
			Help: "Wall time of the last provisioning run",
		}),
		runFailed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "provisioner_run_failed",
			Help: "1 if the last provisioning run had a fatal or failed step",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "provisioner_last_run_timestamp_seconds",
			Help: "Unix time the last provisioning run finished",
		}),
	}
}

// Step counts one outcome of step.
func (r *Recorder) Step(step, result string) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(step, result).Inc()
}

// Finish records the run summary.
func (r *Recorder) Finish(started time.Time, failed bool) {
	if r == nil {
		return
	}
	now := time.Now()
	r.runDuration.Set(now.Sub(started).Seconds())
	r.lastRun.Set(float64(now.Unix()))
	if failed {
		r.runFailed.Set(1)
	} else {
		r.runFailed.Set(0)
	}
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
