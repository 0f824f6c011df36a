package health

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptv_checks_total",
		Help: "Account checks performed, by normalized status.",
	}, []string{"status"})

	checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "iptv_check_duration_seconds",
		Help:    "Wall time of a single account check.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	batchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "iptv_batch_size",
		Help: "Number of accounts in the current or last batch.",
	})

	batchRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "iptv_batch_running",
		Help: "1 while a check batch is in progress.",
	})
)

// RecordCheck counts one finished check against its status label.
func RecordCheck(status string, elapsed time.Duration) {
	checksTotal.WithLabelValues(status).Inc()
	checkDuration.Observe(elapsed.Seconds())
}

// BatchStarted marks a batch of n accounts as in progress.
func BatchStarted(n int) {
	batchSize.Set(float64(n))
	batchRunning.Set(1)
}

// BatchFinished clears the in-progress flag.
func BatchFinished() {
	batchRunning.Set(0)
}
