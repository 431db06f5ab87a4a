package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"meridian/contexts/warehouse-core/pipeline/ports"
)

// Metrics exposes pipeline run outcomes to prometheus. It implements the
// pipeline's RunObserver port so the application layer stays free of
// instrumentation imports.
type Metrics struct {
	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	conflictsTotal     *prometheus.CounterVec
	versionsOpened     *prometheus.CounterVec
	versionsSuperseded *prometheus.CounterVec
	orphansTotal       *prometheus.CounterVec
}

func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_pipeline_runs_total",
			Help: "Pipeline runs by entity type and terminal status.",
		}, []string{"entity_type", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meridian_pipeline_run_duration_seconds",
			Help:    "End-to-end duration of a pipeline run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"entity_type"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_reconciliation_conflicts_total",
			Help: "Field conflicts logged during merge, by entity type.",
		}, []string{"entity_type"}),
		versionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_dimension_versions_opened_total",
			Help: "New dimension versions opened, by entity type.",
		}, []string{"entity_type"}),
		versionsSuperseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_dimension_versions_superseded_total",
			Help: "Dimension versions closed by a newer version, by entity type.",
		}, []string{"entity_type"}),
		orphansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_source_orphan_records_total",
			Help: "Source records skipped for missing natural keys, by entity type.",
		}, []string{"entity_type"}),
	}
	registerer.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.conflictsTotal,
		m.versionsOpened,
		m.versionsSuperseded,
		m.orphansTotal,
	)
	return m
}

func (m *Metrics) ObserveRun(entityType string, status string, duration time.Duration, report ports.RunReport) {
	m.runsTotal.WithLabelValues(entityType, status).Inc()
	m.runDuration.WithLabelValues(entityType).Observe(duration.Seconds())
	m.conflictsTotal.WithLabelValues(entityType).Add(float64(report.Conflicts))
	m.versionsOpened.WithLabelValues(entityType).Add(float64(report.VersionsOpened))
	m.versionsSuperseded.WithLabelValues(entityType).Add(float64(report.VersionsSuperseded))
	m.orphansTotal.WithLabelValues(entityType).Add(float64(report.OrphanRecords))
}
