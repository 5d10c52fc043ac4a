// Package metrics provides Prometheus metrics for the project store and the
// sync receiver.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sync engine
	syncAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectfs_sync_attempts_total",
			Help: "Total sync attempts by result (success, failure, skipped)",
		},
		[]string{"result"},
	)

	syncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "projectfs_sync_duration_seconds",
			Help:    "Duration of sync round trips",
			Buckets: prometheus.DefBuckets,
		},
	)

	pendingChanges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "projectfs_pending_changes",
			Help: "Local changes not yet confirmed by the remote store",
		},
	)

	online = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "projectfs_online",
			Help: "1 when the remote store is considered reachable",
		},
	)

	// Local persistence
	persistWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectfs_persist_writes_total",
			Help: "Local store writes by result",
		},
		[]string{"result"},
	)

	persistBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "projectfs_persist_bytes",
			Help: "Size of the last persisted project envelope",
		},
	)

	// Scheduler
	autosaveRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectfs_autosave_runs_total",
			Help: "Autosave runs by trigger (interval, debounce, sync, shutdown)",
		},
		[]string{"trigger"},
	)

	// Status broadcaster
	statusSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "projectfs_status_subscribers",
			Help: "Number of registered status subscribers",
		},
	)

	// Receiver
	receiverRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectfs_receiver_requests_total",
			Help: "Requests handled by the sync receiver",
		},
		[]string{"method", "status"},
	)

	receiverSnapshotBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "projectfs_receiver_snapshot_bytes",
			Help:    "Size of received project snapshots",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
)

// RecordSync records one sync attempt.
func RecordSync(result string, d time.Duration) {
	syncAttemptsTotal.WithLabelValues(result).Inc()
	if d > 0 {
		syncDuration.Observe(d.Seconds())
	}
}

// SetPendingChanges sets the pending changes gauge.
func SetPendingChanges(n int) {
	pendingChanges.Set(float64(n))
}

// SetOnline sets the connectivity gauge.
func SetOnline(up bool) {
	if up {
		online.Set(1)
	} else {
		online.Set(0)
	}
}

// RecordPersist records a local store write.
func RecordPersist(success bool, size int) {
	if success {
		persistWritesTotal.WithLabelValues("success").Inc()
		persistBytes.Set(float64(size))
	} else {
		persistWritesTotal.WithLabelValues("failure").Inc()
	}
}

// RecordAutosave records a scheduler run.
func RecordAutosave(trigger string) {
	autosaveRunsTotal.WithLabelValues(trigger).Inc()
}

// SetStatusSubscribers sets the subscriber gauge.
func SetStatusSubscribers(n int) {
	statusSubscribers.Set(float64(n))
}

// RecordSnapshot records the size of a received snapshot.
func RecordSnapshot(size int64) {
	receiverSnapshotBytes.Observe(float64(size))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts receiver requests by method and status.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		receiverRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}
