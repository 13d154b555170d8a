package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pagecompose"

// Metrics holds the collectors for one process. A nil *Metrics records
// nothing, so callers never need to check.
type Metrics struct {
	registry *prometheus.Registry

	assemblies    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	uploads       *prometheus.CounterVec
	pagesAnalyzed *prometheus.CounterVec
	outputPages   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		assemblies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assemblies_total",
				Help:      "Assemblies by result (done, failed)",
			},
			[]string{"result"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "assembly_stage_duration_seconds",
				Help:      "Time spent in each assembly stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Uploaded files by result (loaded, duplicate, unsupported, corrupt)",
			},
			[]string{"result"},
		),
		pagesAnalyzed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_analyzed_total",
				Help:      "Rasterised pages by background (dark, light)",
			},
			[]string{"background"},
		),
		outputPages: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "output_pages",
				Help:      "Pages in the last assembled document",
			},
		),
	}
	m.registry.MustRegister(m.assemblies, m.stageDuration, m.uploads, m.pagesAnalyzed, m.outputPages)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAssembly(result string, pages int) {
	if m == nil {
		return
	}
	m.assemblies.WithLabelValues(result).Inc()
	if result == "done" {
		m.outputPages.Set(float64(pages))
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) IncUpload(result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
}

func (m *Metrics) IncAnalyzed(dark bool) {
	if m == nil {
		return
	}
	m.pagesAnalyzed.WithLabelValues(background(dark)).Inc()
}

// WriteTextfile writes every metric in the text exposition format, for the
// node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func background(dark bool) string {
	if dark {
		return "dark"
	}
	return "light"
}
