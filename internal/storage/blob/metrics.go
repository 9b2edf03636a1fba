package blob

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	active        prometheus.Gauge
	bytesReceived prometheus.Counter
	completed     prometheus.Counter
	pruned        prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "browserbox",
			Subsystem: "uploads",
			Name:      "active",
			Help:      "Pending chunked uploads",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "browserbox",
			Subsystem: "uploads",
			Name:      "bytes_received_total",
			Help:      "Chunk bytes committed to pending uploads",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "browserbox",
			Subsystem: "uploads",
			Name:      "completed_total",
			Help:      "Uploads finalized into archives",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "browserbox",
			Subsystem: "uploads",
			Name:      "pruned_total",
			Help:      "Stale pending uploads removed",
		}),
	}
}

func (m *metrics) register(registry prometheus.Registerer) {
	registry.MustRegister(m.active, m.bytesReceived, m.completed, m.pruned)
}
