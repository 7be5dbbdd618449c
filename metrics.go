package herald

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus collectors shared by any number of handlers.
// Every series is labelled with the handler name given by WithName. Handlers
// sharing a name add to the same series, so the subscriptions gauge is the
// total across them.
type Metrics struct {
	deliveries    *prometheus.CounterVec
	suppressed    *prometheus.CounterVec
	failures      *prometheus.CounterVec
	subscriptions *prometheus.GaugeVec
}

// NewMetrics creates unregistered collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "deliveries_total",
				Help:      "Total number of callback deliveries",
			},
			[]string{"handler"},
		),
		suppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "suppressed_total",
				Help:      "Total number of deliveries vetoed by a filter",
			},
			[]string{"handler"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "failures_total",
				Help:      "Total number of invoke passes aborted by a callback error",
			},
			[]string{"handler"},
		),
		subscriptions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "subscriptions",
				Help:      "Callbacks currently registered",
			},
			[]string{"handler"},
		),
	}
}

// Register adds all collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.deliveries, m.suppressed, m.failures, m.subscriptions} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) delivered(name string) {
	if m != nil {
		m.deliveries.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) vetoed(name string) {
	if m != nil {
		m.suppressed.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) failed(name string) {
	if m != nil {
		m.failures.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) subscribed(name string) {
	if m != nil {
		m.subscriptions.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) unsubscribed(name string, n int) {
	if m != nil && n > 0 {
		m.subscriptions.WithLabelValues(name).Sub(float64(n))
	}
}
