package ingestion

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Runs     *prometheus.CounterVec
	Upserted prometheus.Counter
	Fetches  *prometheus.CounterVec
	GapDays  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_runs_total",
			Help: "Per user ingestion runs by outcome",
		}, []string{"outcome"}),
		Upserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_intervals_upserted_total",
			Help: "Energy intervals inserted or touched",
		}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestion_upstream_fetches_total",
			Help: "Upstream telemetry fetch attempts by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		GapDays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestion_gap_days_total",
			Help: "Days found with missing intervals during verification",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.Runs, m.Upserted, m.Fetches, m.GapDays} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) run(outcome string) {
	if m != nil {
		m.Runs.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) fetch(endpoint string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Fetches.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) upserted(n int64) {
	if m != nil {
		m.Upserted.Add(float64(n))
	}
}

func (m *Metrics) gapDays(n int) {
	if m != nil {
		m.GapDays.Add(float64(n))
	}
}
