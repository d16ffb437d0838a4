package oracle

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "oracle"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// RootsPublished counts accepted report roots.
	RootsPublished metrics.Counter
	// LastRefSlot is the reference slot of the latest published root.
	LastRefSlot metrics.Gauge
	// LeavesSubmitted counts vault leaf submissions, labeled by result.
	LeavesSubmitted metrics.Counter
	// QuarantinesOpened counts quarantines started by reports.
	QuarantinesOpened metrics.Counter
	// QuarantinesReleased counts cleared quarantines, labeled by reason.
	QuarantinesReleased metrics.Counter
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
		RootsPublished: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "roots_published",
			Help:      "Number of accepted report roots.",
		}, labels).With(labelsAndValues...),
		LastRefSlot: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "last_ref_slot",
			Help:      "Reference slot of the latest published root.",
		}, labels).With(labelsAndValues...),
		LeavesSubmitted: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "leaves_submitted",
			Help:      "Number of vault leaf submissions.",
		}, append(labels, "result")).With(labelsAndValues...),
		QuarantinesOpened: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "quarantines_opened",
			Help:      "Number of quarantines started by reports.",
		}, labels).With(labelsAndValues...),
		QuarantinesReleased: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "quarantines_released",
			Help:      "Number of cleared quarantines.",
		}, append(labels, "reason")).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		RootsPublished:      discard.NewCounter(),
		LastRefSlot:         discard.NewGauge(),
		LeavesSubmitted:     discard.NewCounter(),
		QuarantinesOpened:   discard.NewCounter(),
		QuarantinesReleased: discard.NewCounter(),
	}
}
