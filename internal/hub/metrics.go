package hub

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "hub"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Mutations counts committed operations, labeled by operation.
	Mutations metrics.Counter
	// Rejections counts refused operations, labeled by operation and error
	// kind.
	Rejections metrics.Counter
	// ReportsApplied counts oracle reports applied to vaults.
	ReportsApplied metrics.Counter
	// InvariantViolations counts operations that hit inconsistent state.
	InvariantViolations metrics.Counter
	// FeesSettled is the total value, in wei, paid to the treasury.
	FeesSettled metrics.Counter
	// DepositPauses counts beacon deposit pause and resume transitions,
	// labeled by direction.
	DepositPauses metrics.Counter
	// ConnectedVaults is the number of connected vaults.
	ConnectedVaults metrics.Gauge
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		Mutations: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "mutations",
			Help:      "Number of committed vault operations.",
		}, append(labels, "op")).With(labelsAndValues...),
		Rejections: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rejections",
			Help:      "Number of refused vault operations.",
		}, append(labels, "op", "kind")).With(labelsAndValues...),
		ReportsApplied: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "reports_applied",
			Help:      "Number of oracle reports applied to vaults.",
		}, labels).With(labelsAndValues...),
		InvariantViolations: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "invariant_violations",
			Help:      "Number of operations that found inconsistent vault state.",
		}, labels).With(labelsAndValues...),
		FeesSettled: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "fees_settled_wei",
			Help:      "Total protocol fees paid to the treasury, in wei.",
		}, labels).With(labelsAndValues...),
		DepositPauses: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "deposit_pause_transitions",
			Help:      "Number of beacon deposit pause and resume transitions.",
		}, append(labels, "direction")).With(labelsAndValues...),
		ConnectedVaults: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "connected_vaults",
			Help:      "Number of connected vaults.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Mutations:           discard.NewCounter(),
		Rejections:          discard.NewCounter(),
		ReportsApplied:      discard.NewCounter(),
		InvariantViolations: discard.NewCounter(),
		FeesSettled:         discard.NewCounter(),
		DepositPauses:       discard.NewCounter(),
		ConnectedVaults:     discard.NewGauge(),
	}
}
