package observability

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climascope"

// Metrics holds the gauges and counters for a single batch run. A run owns
// its registry, so nothing leaks into the process-wide default registry.
type Metrics struct {
	RowsProcessed    prometheus.Counter
	StageDuration    *prometheus.GaugeVec // labels: stage
	AnomaliesFlagged prometheus.Gauge
	ClusterSize      *prometheus.GaugeVec // labels: cluster
	ForecastPoints   prometheus.Gauge
	RunTimestamp     prometheus.Gauge

	registry *prometheus.Registry
	clock    clockwork.Clock
}

// NewMetrics creates run metrics registered on a fresh registry and timed
// with the wall clock.
func NewMetrics() *Metrics {
	return NewMetricsWithClock(clockwork.NewRealClock())
}

// NewMetricsWithClock is NewMetrics with an injectable clock.
func NewMetricsWithClock(clock clockwork.Clock) *Metrics {
	m := &Metrics{
		RowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "Dataset rows that went through the pipeline.",
		}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage in the last run.",
		}, []string{"stage"}),
		AnomaliesFlagged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomalies_flagged",
			Help:      "Rows labelled as outliers in the last run.",
		}),
		ClusterSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_size",
			Help:      "Rows assigned to each cluster in the last run.",
		}, []string{"cluster"}),
		ForecastPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_points",
			Help:      "Rows in the forecast series, observed plus horizon.",
		}),
		RunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		registry: prometheus.NewRegistry(),
		clock:    clock,
	}

	m.registry.MustRegister(
		m.RowsProcessed,
		m.StageDuration,
		m.AnomaliesFlagged,
		m.ClusterSize,
		m.ForecastPoints,
		m.RunTimestamp,
	)
	return m
}

// Clock returns the clock used for stage timing.
func (m *Metrics) Clock() clockwork.Clock { return m.clock }

// Registry exposes the run registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// StartStage starts timing a stage; call the returned func when it ends.
func (m *Metrics) StartStage(stage string) func() {
	start := m.clock.Now()
	return func() {
		m.StageDuration.WithLabelValues(stage).Set(m.clock.Since(start).Seconds())
	}
}

// RecordClusters sets the per-cluster row counts from a label slice.
func (m *Metrics) RecordClusters(labels []int) {
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}
	for c, n := range counts {
		m.ClusterSize.WithLabelValues(strconv.Itoa(c)).Set(float64(n))
	}
}

// MarkFinished stamps the run completion time.
func (m *Metrics) MarkFinished() {
	m.RunTimestamp.Set(float64(m.clock.Now().UnixNano()) / float64(time.Second))
}

// WriteTextfile writes the registry in the text exposition format, suitable
// for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
