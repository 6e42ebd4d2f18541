package oracle

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "desattack"

// Metrics holds the Prometheus collectors for oracle traffic.
type Metrics struct {
	queries  prometheus.Counter
	failures prometheus.Counter
	latency  prometheus.Histogram
}

// NewMetrics creates the oracle collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "queries_total",
			Help:      "Number of plaintexts sent to the oracle.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "failures_total",
			Help:      "Number of failed oracle queries.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "query_seconds",
			Help:      "Time taken to answer a query.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.queries, m.failures, m.latency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

type instrumented struct {
	Oracle
	m *Metrics
}

// Instrument records every query to o in m.
func Instrument(o Oracle, m *Metrics) Oracle {
	return &instrumented{Oracle: o, m: m}
}

func (i *instrumented) Encrypt(ctx context.Context,
	plaintext uint64) (uint64, error) {

	start := time.Now()
	c, err := i.Oracle.Encrypt(ctx, plaintext)

	i.m.queries.Inc()
	i.m.latency.Observe(time.Since(start).Seconds())
	if err != nil {
		i.m.failures.Inc()
	}

	return c, err
}
