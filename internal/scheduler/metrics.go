package scheduler

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	SweepOutcomes *prometheus.CounterVec
	SweepDuration *prometheus.HistogramVec
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		SweepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lunaglow_sweep_outcomes_total",
			Help: "Per-row outcomes of the referral sweeps.",
		}, []string{"job", "outcome"}),
		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lunaglow_sweep_duration_seconds",
			Help:    "Wall time of one sweep invocation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	reg.MustRegister(m.SweepOutcomes, m.SweepDuration)
	return m
}
