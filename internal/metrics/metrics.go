// Package metrics exposes Prometheus collectors for the layout, recurrence,
// interaction and overdue components.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	LayoutPasses   prometheus.Counter
	LayoutDuration prometheus.Histogram
	Expansions     *prometheus.CounterVec
	Sessions       *prometheus.CounterVec
	Tasks          *prometheus.GaugeVec
	WSClients      prometheus.GaugeFunc
}

// New registers every collector on a fresh registry. clients, when non-nil,
// reports the number of connected websocket clients.
func New(clients func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		reg: reg,
		LayoutPasses: f.NewCounter(prometheus.CounterOpts{
			Name: "daygrid_layout_passes_total",
			Help: "Number of day layout passes computed",
		}),
		LayoutDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "daygrid_layout_duration_seconds",
			Help:    "Time spent computing one day layout",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		Expansions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "daygrid_recurrence_expansions_total",
			Help: "Recurrence expansions, by whether the safety cap cut the series short",
		}, []string{"truncated"}),
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "daygrid_sessions_total",
			Help: "Finished drag and resize sessions, by kind and outcome",
		}, []string{"kind", "outcome"}),
		Tasks: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "daygrid_tasks",
			Help: "Open tasks by overdue status at the last classification tick",
		}, []string{"status"}),
	}
	if clients != nil {
		m.WSClients = f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "daygrid_websocket_clients",
			Help: "Connected websocket clients",
		}, func() float64 { return float64(clients()) })
	}
	return m
}

// ObserveLayout records one layout pass that started at start.
func (m *Metrics) ObserveLayout(start time.Time) {
	m.LayoutPasses.Inc()
	m.LayoutDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveExpansion(truncated bool) {
	m.Expansions.WithLabelValues(strconv.FormatBool(truncated)).Inc()
}

func (m *Metrics) ObserveSession(kind, outcome string) {
	m.Sessions.WithLabelValues(kind, outcome).Inc()
}

// SetTasks replaces the per-status task gauge. Statuses missing from counts
// are reset to zero.
func (m *Metrics) SetTasks(statuses []string, counts map[string]int) {
	for _, s := range statuses {
		m.Tasks.WithLabelValues(s).Set(float64(counts[s]))
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
