// Package metrics exposes Prometheus counters for logins, edits and saves.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	logins       *prometheus.CounterVec
	mutations    *prometheus.CounterVec
	saves        *prometheus.CounterVec
	saveDuration *prometheus.HistogramVec
	contentLoads *prometheus.CounterVec
	searches     *prometheus.CounterVec
	sessions     prometheus.Gauge
}

// New registers every collector on a fresh registry, so tests can build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecopy_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecopy_mutations_total",
			Help: "Draft mutations by kind and outcome",
		}, []string{"kind", "outcome"}),
		saves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecopy_saves_total",
			Help: "Save attempts by outcome",
		}, []string{"outcome"}),
		saveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitecopy_save_duration_seconds",
			Help:    "Time spent writing the document to the store",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"outcome"}),
		contentLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecopy_content_loads_total",
			Help: "Committed document loads by outcome",
		}, []string{"outcome"}),
		searches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitecopy_searches_total",
			Help: "Search requests by backend",
		}, []string{"backend"}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sitecopy_editor_sessions",
			Help: "Editor sessions currently held in memory",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Mutation(kind, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Save(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(outcome).Inc()
	m.saveDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) ContentLoad(outcome string) {
	if m == nil {
		return
	}
	m.contentLoads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Search(backend string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(backend).Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
