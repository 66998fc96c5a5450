package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meetscope"

type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal      *prometheus.CounterVec
	UploadDuration     prometheus.Histogram
	GenerationDuration prometheus.Histogram
	TokensTotal        *prometheus.CounterVec
	UploadCacheTotal   *prometheus.CounterVec
	IndicatorExamples  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Meeting analyses by outcome.",
		}, []string{"status"}),
		UploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time spent uploading one recording, including waiting for it to become active.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent waiting for the structured analysis.",
			Buckets:   []float64{5, 15, 30, 60, 120, 240, 480, 900},
		}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Model tokens consumed by kind.",
		}, []string{"kind"}),
		UploadCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_cache_total",
			Help:      "Upload cache lookups by result.",
		}, []string{"result"}),
		IndicatorExamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicator_examples_total",
			Help:      "Behavioral indicator examples returned by the model.",
		}, []string{"indicator"}),
	}

	m.registry.MustRegister(
		m.AnalysesTotal,
		m.UploadDuration,
		m.GenerationDuration,
		m.TokensTotal,
		m.UploadCacheTotal,
		m.IndicatorExamples,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The methods below are nil-safe so callers can run without metrics.

func (m *Metrics) ObserveUpload(d time.Duration) {
	if m == nil {
		return
	}
	m.UploadDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveGeneration(d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationDuration.Observe(d.Seconds())
}

func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.UploadCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Analysis(status string) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) Tokens(prompt, output int) {
	if m == nil {
		return
	}
	m.TokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	m.TokensTotal.WithLabelValues("output").Add(float64(output))
}

func (m *Metrics) Examples(indicator string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.IndicatorExamples.WithLabelValues(indicator).Add(float64(n))
}
