// Package metrics provides Prometheus metrics for sinkworker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a sinkworker process. One
// process hosts one writer per assigned (topic, source partition); the
// per-writer metrics below are labeled accordingly.
type Metrics struct {
	RecordsBuffered *prometheus.CounterVec
	FilesRotated    *prometheus.CounterVec
	FilesCommitted  *prometheus.CounterVec
	SchemaChanges   *prometheus.CounterVec
	Recoveries      *prometheus.CounterVec

	BufferDepth  *prometheus.GaugeVec
	CurrentOffset *prometheus.GaugeVec

	CommitDuration *prometheus.HistogramVec
	CommittedBytes *prometheus.HistogramVec

	WriteErrors *prometheus.CounterVec
	RetryWaits  *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Address string // Address for metrics HTTP server (e.g., ":9090")
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics. Call this once
// at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sinkworker"
	}

	labels := []string{"topic", "source_partition"}

	m := &Metrics{
		RecordsBuffered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_buffered_total",
				Help:      "Total number of records buffered for writing",
			},
			labels,
		),
		FilesRotated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_rotated_total",
				Help:      "Total number of temp files closed by a rotation",
			},
			[]string{"topic", "source_partition", "reason"},
		),
		FilesCommitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_committed_total",
				Help:      "Total number of temp files promoted to committed files",
			},
			labels,
		),
		SchemaChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schema_changes_total",
				Help:      "Total number of detected schema transitions",
			},
			labels,
		),
		Recoveries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recoveries_total",
				Help:      "Total number of WAL recovery replays performed on startup",
			},
			labels,
		),
		BufferDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "buffer_depth",
				Help:      "Current number of records buffered and not yet written",
			},
			labels,
		),
		CurrentOffset: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "current_offset",
				Help:      "Next offset this writer expects to consume",
			},
			labels,
		),
		CommitDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_duration_seconds",
				Help:      "Time to promote a temp file to its committed path",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			labels,
		),
		CommittedBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "committed_file_bytes",
				Help:      "Size of committed files in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 2, 15), // 1KB to ~16MB
			},
			labels,
		),
		WriteErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "write_errors_total",
				Help:      "Total number of errors encountered while writing or committing",
			},
			[]string{"topic", "source_partition", "kind"},
		),
		RetryWaits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_waits_total",
				Help:      "Total number of write() calls short-circuited by an active backoff",
			},
			labels,
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance. Returns nil if Init has not been
// called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// Labels is a convenience type for the per-writer metric labels.
type Labels struct {
	Topic           string
	SourcePartition string
}

func (m *Metrics) IncRecordsBuffered(l Labels, count float64) {
	m.RecordsBuffered.WithLabelValues(l.Topic, l.SourcePartition).Add(count)
}

func (m *Metrics) IncFilesRotated(l Labels, reason string) {
	m.FilesRotated.WithLabelValues(l.Topic, l.SourcePartition, reason).Inc()
}

func (m *Metrics) IncFilesCommitted(l Labels) {
	m.FilesCommitted.WithLabelValues(l.Topic, l.SourcePartition).Inc()
}

func (m *Metrics) IncSchemaChanges(l Labels) {
	m.SchemaChanges.WithLabelValues(l.Topic, l.SourcePartition).Inc()
}

func (m *Metrics) IncRecoveries(l Labels) {
	m.Recoveries.WithLabelValues(l.Topic, l.SourcePartition).Inc()
}

func (m *Metrics) SetBufferDepth(l Labels, depth float64) {
	m.BufferDepth.WithLabelValues(l.Topic, l.SourcePartition).Set(depth)
}

func (m *Metrics) SetCurrentOffset(l Labels, offset float64) {
	m.CurrentOffset.WithLabelValues(l.Topic, l.SourcePartition).Set(offset)
}

func (m *Metrics) ObserveCommitDuration(l Labels, seconds float64) {
	m.CommitDuration.WithLabelValues(l.Topic, l.SourcePartition).Observe(seconds)
}

func (m *Metrics) ObserveCommittedBytes(l Labels, bytes float64) {
	m.CommittedBytes.WithLabelValues(l.Topic, l.SourcePartition).Observe(bytes)
}

func (m *Metrics) IncWriteErrors(l Labels, kind string) {
	m.WriteErrors.WithLabelValues(l.Topic, l.SourcePartition, kind).Inc()
}

func (m *Metrics) IncRetryWaits(l Labels) {
	m.RetryWaits.WithLabelValues(l.Topic, l.SourcePartition).Inc()
}
