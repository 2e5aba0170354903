package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncHeightTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carver2d",
		Subsystem: "sync",
		Name:      "heights_total",
		Help:      "Count of block heights processed by the sync loop.",
	}, []string{"status"})
	syncHeightDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "carver2d",
		Subsystem: "sync",
		Name:      "height_duration_seconds",
		Help:      "Duration of processing a single block height.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
	syncMovementsPerHeight = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "carver2d",
		Subsystem: "sync",
		Name:      "movements_per_height",
		Help:      "Number of movements applied per synced height.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
	})
	unwindTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carver2d",
		Subsystem: "sync",
		Name:      "unwinds_total",
		Help:      "Count of Unwinder invocations.",
	}, []string{"status"})
)

// Sync tracks metrics for the SyncCoordinator's per-height work.
type Sync struct{}

// NewSync constructs a metrics collector for the sync loop.
func NewSync() *Sync {
	return &Sync{}
}

// ObserveHeight records one height's outcome, duration, and movement count.
func (m Sync) ObserveHeight(err error, movements int, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	syncHeightTotal.WithLabelValues(status).Inc()
	syncHeightDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
	if err == nil {
		syncMovementsPerHeight.Observe(float64(movements))
	}
}

// ObserveUnwind records one Unwinder invocation's outcome.
func (m Sync) ObserveUnwind(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	unwindTotal.WithLabelValues(status).Inc()
}
