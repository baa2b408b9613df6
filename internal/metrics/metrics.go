// Package metrics exposes ledger operation metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/campusledger/internal/authz"
	"github.com/roach88/campusledger/internal/failure"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Collector holds Prometheus collectors for ledger operations.
// It implements ledger.Observer.
type Collector struct {
	Registry *prometheus.Registry

	Operations *prometheus.CounterVec
	Rejections *prometheus.CounterVec
	Latency    *prometheus.HistogramVec
}

// New registers and returns ledger collectors on a fresh registry, together
// with the Go runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		Registry: reg,
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campusledger_operations_total",
			Help: "Total number of ledger operations, labeled by operation and outcome",
		}, []string{"op", "outcome"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "campusledger_rejections_total",
			Help: "Total number of rejected ledger operations, labeled by operation and error code",
		}, []string{"op", "code"}),
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusledger_operation_latency_seconds",
			Help:    "Latency of ledger operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"op"}),
	}
}

// ObserveOperation records one operation outcome.
func (c *Collector) ObserveOperation(op authz.Op, err error, elapsed time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
		if code := failure.CodeOf(err); code != "" {
			outcome = OutcomeRejected
			c.Rejections.WithLabelValues(string(op), string(code)).Inc()
		}
	}
	c.Operations.WithLabelValues(string(op), outcome).Inc()
	c.Latency.WithLabelValues(string(op)).Observe(elapsed.Seconds())
}
