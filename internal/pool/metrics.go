package pool

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	maxConcurrent    prometheus.Gauge
	capacityInUse    prometheus.Gauge
	instances        prometheus.Gauge
	instancesInUse   prometheus.Gauge
	exhausted        prometheus.Counter
	evictions        prometheus.Counter
	doubleRelease    *prometheus.CounterVec
	materializations *prometheus.CounterVec
}

func newMetrics() *metrics {
	const ns, sub = "browserbox", "pool"
	return &metrics{
		maxConcurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "max_concurrent",
			Help: "Configured admission limit.",
		}),
		capacityInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "capacity_in_use",
			Help: "Admission slots currently held.",
		}),
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "instances",
			Help: "Registered browser instances.",
		}),
		instancesInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: "instances_in_use",
			Help: "Registered browser instances currently executing a task.",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "exhausted_total",
			Help: "Admissions rejected because the pool was full.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "evictions_total",
			Help: "Idle instances evicted by the sweep.",
		}),
		doubleRelease: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "double_release_total",
			Help: "Releases without a matching acquire.",
		}, []string{"kind"}),
		materializations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: "materializations_total",
			Help: "Environment materializations by result.",
		}, []string{"result"}),
	}
}

// RegisterMetrics registers the pool collectors with reg.
func (m *Manager) RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.metrics.maxConcurrent,
		m.metrics.capacityInUse,
		m.metrics.instances,
		m.metrics.instancesInUse,
		m.metrics.exhausted,
		m.metrics.evictions,
		m.metrics.doubleRelease,
		m.metrics.materializations,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
