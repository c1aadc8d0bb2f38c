package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the availability engine.
type EngineMetrics struct {
	saveTotal       *prometheus.CounterVec
	bulkSaveTotal   *prometheus.CounterVec
	feedSyncSeconds *prometheus.HistogramVec
	projectedDays   prometheus.Counter
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		saveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "staffcal",
			Subsystem: "availability",
			Name:      "save_total",
			Help:      "Per-cell override saves by outcome (ok, failed, stale)",
		}, []string{"outcome"}),
		bulkSaveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "staffcal",
			Subsystem: "availability",
			Name:      "bulk_save_total",
			Help:      "Bulk override saves by outcome",
		}, []string{"outcome"}),
		feedSyncSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "staffcal",
			Subsystem: "availability",
			Name:      "feed_sync_seconds",
			Help:      "Duration of external calendar feed syncs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		projectedDays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "staffcal",
			Subsystem: "availability",
			Name:      "projected_days_total",
			Help:      "Days resolved by calendar projections",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.saveTotal, m.bulkSaveTotal, m.feedSyncSeconds, m.projectedDays)
	return m
}

func (m *EngineMetrics) ObserveSave(outcome string) {
	if m == nil {
		return
	}
	m.saveTotal.WithLabelValues(outcome).Inc()
}

func (m *EngineMetrics) ObserveBulkSave(outcome string) {
	if m == nil {
		return
	}
	m.bulkSaveTotal.WithLabelValues(outcome).Inc()
}

func (m *EngineMetrics) ObserveFeedSync(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.feedSyncSeconds.WithLabelValues(outcome).Observe(seconds)
}

func (m *EngineMetrics) ObserveProjection(days int) {
	if m == nil {
		return
	}
	m.projectedDays.Add(float64(days))
}
