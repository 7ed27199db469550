// Package metrics provides Prometheus metrics for adb sessions.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transfer directions.
const (
	DirectionPush = "push"
	DirectionPull = "pull"
)

// Recorder owns a private registry so that tests and concurrent sessions do
// not share global state.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	reconnectsTotal  prometheus.Counter
	syncBytesTotal   *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with all adbx metrics registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adbx_requests_total",
				Help: "Total number of host and sync requests",
			},
			[]string{"command", "result"},
		),

		reconnectsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "adbx_reconnects_total",
				Help: "Total number of connection re-establishments",
			},
		),

		syncBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adbx_sync_bytes_total",
				Help: "Total file bytes moved over sync connections",
			},
			[]string{"direction"},
		),

		transferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adbx_transfer_duration_seconds",
				Help:    "Duration of single file transfers in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"direction"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordRequest counts one request by command name and outcome.
func (r *Recorder) RecordRequest(command string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.requestsTotal.WithLabelValues(command, result).Inc()
}

// RecordReconnect counts one reconnect.
func (r *Recorder) RecordReconnect() {
	if r == nil {
		return
	}
	r.reconnectsTotal.Inc()
}

// RecordTransfer records the bytes and duration of one file transfer.
func (r *Recorder) RecordTransfer(direction string, bytes int64, d time.Duration) {
	if r == nil {
		return
	}
	r.syncBytesTotal.WithLabelValues(direction).Add(float64(bytes))
	r.transferDuration.WithLabelValues(direction).Observe(d.Seconds())
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
