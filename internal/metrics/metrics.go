// Package metrics exposes Prometheus instrumentation for the speech service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the service. Each instance owns
// its registry so tests and multiple servers do not collide.
type Metrics struct {
	registry *prometheus.Registry

	// Synthesis metrics
	SynthesisRequests *prometheus.CounterVec
	SynthesisFailures *prometheus.CounterVec
	SynthesisDuration *prometheus.HistogramVec
	AudioSeconds      prometheus.Histogram

	// Transcoding metrics
	TranscodeErrors *prometheus.CounterVec

	// Queue and history metrics
	QueueDepth  prometheus.Gauge
	HistorySize prometheus.Gauge
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SynthesisRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riser_synthesis_requests_total",
			Help: "Total number of speech synthesis requests",
		}, []string{"engine", "voice", "language"}),
		SynthesisFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riser_synthesis_failures_total",
			Help: "Total number of failed speech synthesis requests",
		}, []string{"engine"}),
		SynthesisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riser_synthesis_duration_seconds",
			Help:    "Time spent waiting on the speech engine",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"engine"}),
		AudioSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "riser_audio_duration_seconds",
			Help:    "Length of generated audio clips",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80},
		}),

		TranscodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riser_transcode_errors_total",
			Help: "Total number of transcoding failures by kind",
		}, []string{"kind"}),

		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "riser_queue_depth",
			Help: "Current number of pending speak jobs",
		}),
		HistorySize: f.NewGauge(prometheus.GaugeOpts{
			Name: "riser_history_entries",
			Help: "Current number of history entries",
		}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "riser_clip_cache_hits_total",
			Help: "Total number of clip cache hits",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "riser_clip_cache_misses_total",
			Help: "Total number of clip cache misses",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riser_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),
	}
}

// Handler returns the /metrics HTTP handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
