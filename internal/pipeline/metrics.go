package pipeline

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourorg/sui-wrapped/internal/model"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	generations  *prometheus.CounterVec
	duration     prometheus.Histogram
	cacheLookups *prometheus.CounterVec
	fetchPages   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wrapped_generations_total",
				Help: "Report generations by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wrapped_generation_duration_seconds",
				Help:    "Time spent generating uncached reports",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wrapped_cache_lookups_total",
				Help: "Result cache lookups by result",
			},
			[]string{"result"},
		),
		fetchPages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wrapped_fetch_pages_total",
				Help: "Ledger pages fetched by kind",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		m.generations,
		m.duration,
		m.cacheLookups,
		m.fetchPages,
	)
	return m
}

// outcome labels a generation result.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(string(model.CodeOf(err)))
}

func (m *Metrics) observeGeneration(err error, seconds float64) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.duration.Observe(seconds)
	}
}

func (m *Metrics) observeCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) observePages(kind string, pages int) {
	if m == nil || pages == 0 {
		return
	}
	m.fetchPages.WithLabelValues(kind).Add(float64(pages))
}
