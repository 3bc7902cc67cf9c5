// Package metrics exposes gate and banlog counters in the Prometheus
// text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "banlog"

// Source is the banlog state read at scrape time.
type Source interface {
	Len() int
	Generation() uint64
}

// Gate reports connection decisions since start.
type Gate interface {
	Stats() (allowed, rejected uint64)
}

type Metrics struct {
	registry  *prometheus.Registry
	snapshots *prometheus.CounterVec
}

// New registers the collectors with a fresh registry. It panics if
// registration fails, which only happens on a name collision.
func New(src Source, gate Gate) *Metrics {
	reg := prometheus.NewRegistry()

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Number of banned subnets held in memory.",
		}, func() float64 { return float64(src.Len()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Additions, removals and evictions applied to the banlog.",
		}, func() float64 { return float64(src.Generation()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_allowed_total",
			Help:      "Connections passed to the upstream.",
		}, func() float64 {
			allowed, _ := gate.Stats()
			return float64(allowed)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Connections closed because their subnet is banned.",
		}, func() float64 {
			_, rejected := gate.Stats()
			return float64(rejected)
		}),
	}

	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_total",
		Help:      "Snapshot writes, labeled by result.",
	}, []string{"result"})
	collectors = append(collectors, snapshots)

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			panic("metrics: failed to register collector: " + err.Error())
		}
	}
	return &Metrics{registry: reg, snapshots: snapshots}
}

// ObserveSnapshot counts one snapshot write.
func (m *Metrics) ObserveSnapshot(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.snapshots.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
