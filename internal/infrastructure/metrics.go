package infrastructure

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the pipeline counters published at /metrics on the
// dashboard server. A single instance is shared between the analysis service
// and the HTTP transport.
type Metrics struct {
	RowsLoaded      prometheus.Counter
	RowsDropped     *prometheus.CounterVec
	DatesRepaired   *prometheus.CounterVec
	AnalysesStarted prometheus.Counter
	AnalysesFailed  prometheus.Counter
	AnalysisSeconds prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// GetMetrics returns the process-wide metrics set, registering the collectors
// on the default Prometheus registry on first use.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			RowsLoaded: promauto.NewCounter(prometheus.CounterOpts{
				Name: "churnlens_rows_loaded_total",
				Help: "Transaction rows read from the source file",
			}),
			RowsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "churnlens_rows_dropped_total",
				Help: "Rows dropped during cleanup, by reason",
			}, []string{"reason"}),
			DatesRepaired: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "churnlens_dates_repaired_total",
				Help: "Transactions whose dates required repair, by method",
			}, []string{"method"}),
			AnalysesStarted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "churnlens_analyses_started_total",
				Help: "Retention analysis runs started",
			}),
			AnalysesFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "churnlens_analyses_failed_total",
				Help: "Retention analysis runs that ended in error",
			}),
			AnalysisSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "churnlens_analysis_duration_seconds",
				Help:    "Wall-clock duration of full analysis runs",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			}),
		}
	})
	return metrics
}
