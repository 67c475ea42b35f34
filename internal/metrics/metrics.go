// Package metrics provides Prometheus metrics for bargate.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a running store.
type Metrics struct {
	// Store operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Tree shape metrics
	EntriesTotal prometheus.Gauge
	NodesTotal   prometheus.Gauge
	Utilization  prometheus.Gauge

	// Paged file manager metrics
	FileSizeBytes  prometheus.Gauge
	FreeBlocks     prometheus.Gauge
	AllocationsTotal prometheus.Counter
	FreesTotal       prometheus.Counter

	// Write-ahead log metrics
	WalAppendsTotal prometheus.Counter
	WalFsyncsTotal  prometheus.Counter
	WalReplayedTotal prometheus.Counter

	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bargate_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)

	m.OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bargate_operation_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	m.EntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bargate_entries_total",
			Help: "Total number of entries stored",
		},
	)

	m.NodesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bargate_nodes_total",
			Help: "Total number of B+Tree nodes currently allocated",
		},
	)

	m.Utilization = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bargate_leaf_utilization_ratio",
			Help: "Fraction of leaf capacity currently in use",
		},
	)

	m.FileSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bargate_file_size_bytes",
			Help: "Current backing file size in bytes",
		},
	)

	m.FreeBlocks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bargate_free_blocks",
			Help: "Number of free paged-file-manager blocks",
		},
	)

	m.AllocationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bargate_pfm_allocations_total",
			Help: "Total number of paged-file-manager extent allocations",
		},
	)

	m.FreesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bargate_pfm_frees_total",
			Help: "Total number of paged-file-manager extent frees",
		},
	)

	m.WalAppendsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bargate_wal_appends_total",
			Help: "Total number of write-ahead log records appended",
		},
	)

	m.WalFsyncsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bargate_wal_fsyncs_total",
			Help: "Total number of write-ahead log fsyncs actually performed",
		},
	)

	m.WalReplayedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bargate_wal_replayed_total",
			Help: "Total number of write-ahead log records replayed at open",
		},
	)

	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bargate_uptime_seconds",
			Help: "Process uptime in seconds",
		},
	)

	go m.updateUptime()

	return m
}

// updateUptime periodically updates the uptime metric.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordOperation records a store operation's outcome and duration.
func (m *Metrics) RecordOperation(operation string, status string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateTreeStats updates the tree-shape gauges.
func (m *Metrics) UpdateTreeStats(entries int, nodes int, utilization float64) {
	m.EntriesTotal.Set(float64(entries))
	m.NodesTotal.Set(float64(nodes))
	m.Utilization.Set(utilization)
}

// UpdateFileStats updates the paged-file-manager gauges.
func (m *Metrics) UpdateFileStats(sizeBytes int64, freeBlocks int64) {
	m.FileSizeBytes.Set(float64(sizeBytes))
	m.FreeBlocks.Set(float64(freeBlocks))
}
