package meross

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts device requests by namespace and outcome. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Requests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meross_device_requests_total",
				Help: "Device requests by namespace and outcome",
			},
			[]string{"namespace", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Requests)
	}
	return m
}

func (m *Metrics) observe(namespace, outcome string) {
	if m == nil || m.Requests == nil {
		return
	}
	m.Requests.WithLabelValues(namespace, outcome).Inc()
}
