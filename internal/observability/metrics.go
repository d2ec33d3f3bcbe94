package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xkilldash9x/taintscan/api/schemas"
)

const metricsNamespace = "taintscan"

// File outcomes recorded by ObserveFile.
const (
	OutcomeScanned = "scanned"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds the counters of a single scan. It uses a private registry so
// the result can be written out in the node_exporter textfile format. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	files        *prometheus.CounterVec
	findings     *prometheus.CounterVec
	warnings     *prometheus.CounterVec
	fileDuration prometheus.Histogram
	scanDuration prometheus.Gauge
}

// NewMetrics creates and registers the scan metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "files_total",
			Help:      "Files handled by the worker pool, by outcome.",
		}, []string{"outcome"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "findings_total",
			Help:      "Findings in the final report, by category and detector.",
		}, []string{"category", "detector"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "warnings_total",
			Help:      "Partial failures recorded during the scan, by kind.",
		}, []string{"kind"}),
		fileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "file_duration_seconds",
			Help:      "Wall time spent analyzing one file.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		}),
		scanDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of the last scan.",
		}),
	}
	m.registry.MustRegister(m.files, m.findings, m.warnings, m.fileDuration, m.scanDuration)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFile records one file result.
func (m *Metrics) ObserveFile(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(outcome).Inc()
	m.fileDuration.Observe(elapsed.Seconds())
}

// ObserveReport records the findings, warnings and duration of a finished
// report.
func (m *Metrics) ObserveReport(report *schemas.ScanReport) {
	if m == nil || report == nil {
		return
	}
	for _, f := range report.Findings {
		m.findings.WithLabelValues(string(f.Category), f.Detector).Inc()
	}
	for _, w := range report.Warnings {
		m.warnings.WithLabelValues(string(w.Kind)).Inc()
	}
	m.scanDuration.Set(report.Summary.Duration.Seconds())
}

// WriteFile writes the metrics atomically in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
