// =============================================================================
// Client Billing Consolidator - Run Metrics
// =============================================================================
//
// Prometheus collectors describing a processing run. The tool is a batch
// CLI with no HTTP listener, so metrics are written once per run to a file
// in the node-exporter textfile format (metrics_textfile in config.yaml).
//
// Each Metrics value owns a private registry; tests create as many as they
// like without colliding on the default registerer.
//
// =============================================================================

package telemetry

import (
	"fmt"
	"time"

	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "billing"

// File outcomes used as the "status" label.
const (
	StatusWritten = "written"
	StatusGated   = "gated"
	StatusBlocked = "blocked"
	StatusDryRun  = "dry_run"
	StatusFailed  = "failed"
)

// Metrics holds the collectors for one process run.
type Metrics struct {
	registry *prometheus.Registry

	FilesTotal           *prometheus.CounterVec
	RecordsTotal         prometheus.Counter
	ParseWarningsTotal   prometheus.Counter
	UnmappedAccounts     prometheus.Gauge
	GroupAccounts        *prometheus.GaugeVec
	ReconciliationPassed prometheus.Gauge
	ReconciliationDelta  *prometheus.GaugeVec
	FileDuration         prometheus.Histogram
	LastRunTimestamp     prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.FilesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "files",
			Name:      "processed_total",
			Help:      "Input files handled, by outcome",
		},
		[]string{"status"},
	)

	m.RecordsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "records",
		Name:      "normalized_total",
		Help:      "Usage records produced by normalisation",
	})

	m.ParseWarningsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "records",
		Name:      "parse_warnings_total",
		Help:      "Numeric cells that fell back to a default",
	})

	m.UnmappedAccounts = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "accounts",
		Name:      "unmapped",
		Help:      "Accounts in the last file with no billing group",
	})

	m.GroupAccounts = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "accounts",
			Name:      "per_group",
			Help:      "Accounts per billing group in the last report",
		},
		[]string{"group"},
	)

	m.ReconciliationPassed = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "reconciliation",
		Name:      "passed",
		Help:      "1 if the last reconciliation passed, 0 otherwise",
	})

	m.ReconciliationDelta = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "delta",
			Help:      "Input minus processed total per metric",
		},
		[]string{"metric"},
	)

	m.FileDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "files",
		Name:      "duration_seconds",
		Help:      "Time spent processing one input file",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	m.LastRunTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFile counts one file outcome and its duration.
func (m *Metrics) ObserveFile(status string, elapsed time.Duration) {
	m.FilesTotal.WithLabelValues(status).Inc()
	m.FileDuration.Observe(elapsed.Seconds())
}

// ObserveGroups records the account count of every group, zero included.
func (m *Metrics) ObserveGroups(groups []types.AggregatedGroup) {
	for _, g := range groups {
		m.GroupAccounts.WithLabelValues(g.Group.Identifier()).Set(float64(len(g.Accounts)))
	}
}

// ObserveReconciliation records the verdict and per-metric deltas.
func (m *Metrics) ObserveReconciliation(result types.ReconciliationResult) {
	if result.Passed {
		m.ReconciliationPassed.Set(1)
	} else {
		m.ReconciliationPassed.Set(0)
	}
	for _, d := range result.Diffs {
		m.ReconciliationDelta.WithLabelValues(d.Metric.String()).Set(d.Delta)
	}
}

// WriteTextfile stamps the run time and writes every collector to path.
func (m *Metrics) WriteTextfile(path string, now time.Time) error {
	m.LastRunTimestamp.Set(float64(now.Unix()))
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
