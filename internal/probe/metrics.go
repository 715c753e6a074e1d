package probe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records probe outcomes on a private registry so they can be
// written in the Prometheus text format (node-exporter textfile collector).
type Metrics struct {
	reg      *prometheus.Registry
	success  *prometheus.GaugeVec
	duration *prometheus.GaugeVec
	target   *prometheus.GaugeVec
	lastRun  prometheus.Gauge
}

// NewMetrics creates an empty registry with the probe collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "llmprobe",
			Name:      "check_success",
			Help:      "1 if the check passed on the last run, 0 otherwise",
		}, []string{"suite", "check"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "llmprobe",
			Name:      "check_duration_seconds",
			Help:      "Wall time of the check on the last run",
		}, []string{"suite", "check"}),
		target: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "llmprobe",
			Name:      "target_info",
			Help:      "Endpoint and model probed by each suite",
		}, []string{"suite", "endpoint", "model"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "llmprobe",
			Name:      "run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
	m.reg.MustRegister(m.success, m.duration, m.target, m.lastRun)
	return m
}

// Observe records one check result.
func (m *Metrics) Observe(r Result) {
	v := 0.0
	if r.Passed {
		v = 1
	}
	m.success.WithLabelValues(r.Suite, r.Check).Set(v)
	m.duration.WithLabelValues(r.Suite, r.Check).Set(r.Duration.Seconds())
	m.lastRun.Set(float64(time.Now().Unix()))
}

// Target records which endpoint and model a suite ran against.
func (m *Metrics) Target(suite, endpoint, model string) {
	m.target.WithLabelValues(suite, endpoint, model).Set(1)
}

// Gatherer exposes the registry, e.g. for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }

// WriteFile atomically replaces path with the current metrics.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
