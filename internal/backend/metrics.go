package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts and times every call made through an instrumented Handle.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expensehq",
			Subsystem: "backend",
			Name:      "calls_total",
			Help:      "Backend calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "expensehq",
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "Backend call latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.duration)
	}
	return m
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if kind := errorKind(err); kind != "" {
			outcome = string(kind) + "_error"
		}
	}
	m.calls.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func errorKind(err error) Kind {
	for _, kind := range []Kind{KindAuth, KindQuery, KindMutation} {
		if IsKind(err, kind) {
			return kind
		}
	}
	return ""
}
