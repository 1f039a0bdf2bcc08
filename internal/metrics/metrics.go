package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Results recorded for every registry mutation.
const (
	ResultApplied  = "applied"
	ResultVetoed   = "vetoed"
	ResultRejected = "rejected"
)

// Metrics holds the registry collectors.
type Metrics struct {
	Mutations    *prometheus.CounterVec
	Servers      prometheus.Gauge
	QueryEntries prometheus.Gauge
	PersistFails prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "serverlist",
			Name:      "mutations_total",
			Help:      "Registry mutations by operation and result.",
		}, []string{"op", "result"}),
		Servers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "serverlist",
			Name:      "servers",
			Help:      "Number of configured peer servers.",
		}),
		QueryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "serverlist",
			Name:      "query_cache_entries",
			Help:      "Number of cached status results.",
		}),
		PersistFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serverlist",
			Name:      "persist_failures_total",
			Help:      "Failed writes to the persistence backend.",
		}),
	}
	reg.MustRegister(m.Mutations, m.Servers, m.QueryEntries, m.PersistFails)
	return m
}

// Observe records one mutation outcome. Safe on a nil receiver.
func (m *Metrics) Observe(op, result string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, result).Inc()
}

// SetSizes updates the size gauges. Safe on a nil receiver.
func (m *Metrics) SetSizes(servers, entries int) {
	if m == nil {
		return
	}
	m.Servers.Set(float64(servers))
	m.QueryEntries.Set(float64(entries))
}

// PersistFailed counts a failed save. Safe on a nil receiver.
func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.PersistFails.Inc()
}
