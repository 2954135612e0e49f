// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Resolution metrics
	ResolutionsTotal *prometheus.CounterVec
	ParseErrors      prometheus.Counter

	// Series query metrics
	SeriesQueryDuration *prometheus.HistogramVec
	SeriesBarsReturned  *prometheus.HistogramVec
	EmptySeriesTotal    prometheus.Counter

	// Snapshot metrics
	SnapshotRefreshes   *prometheus.CounterVec
	CalendarEntries     prometheus.Gauge
	PriceBarsLoaded     prometheus.Gauge
	LastRefreshUnixTime prometheus.Gauge

	// Transport metrics
	WSSessions      prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "endex_futures_lab"
	}

	return &Metrics{
		// Resolution metrics
		ResolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of reference resolutions by kind and outcome",
		}, []string{"kind", "outcome"}),
		ParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "parse_errors_total",
			Help:      "Total number of reference strings rejected by the parser",
		}),

		// Series query metrics
		SeriesQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "series",
			Name:      "query_duration_seconds",
			Help:      "Series query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query_type"}),
		SeriesBarsReturned: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "series",
			Name:      "bars_returned",
			Help:      "Number of bars returned per series query",
			Buckets:   []float64{0, 10, 50, 100, 500, 1000, 5000},
		}, []string{"query_type"}),
		EmptySeriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "series",
			Name:      "empty_series_total",
			Help:      "Total number of series queries that returned no bars",
		}),

		// Snapshot metrics
		SnapshotRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "refreshes_total",
			Help:      "Total number of calendar snapshot refreshes by status",
		}, []string{"status"}),
		CalendarEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "calendar_entries",
			Help:      "Number of calendar entries in the active snapshot",
		}),
		PriceBarsLoaded: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "price_bars_loaded",
			Help:      "Number of price bars loaded at startup",
		}),
		LastRefreshUnixTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "last_refresh_timestamp",
			Help:      "Unix timestamp of the last successful snapshot refresh",
		}),

		// Transport metrics
		WSSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "ws_sessions",
			Help:      "Number of connected websocket sessions",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordResolution records a resolution attempt and its outcome.
func RecordResolution(kind, outcome string) {
	DefaultMetrics.ResolutionsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordParseError increments the parse error counter.
func RecordParseError() {
	DefaultMetrics.ParseErrors.Inc()
}

// RecordSeriesQuery records duration and result size of a series query.
func RecordSeriesQuery(queryType string, seconds float64, bars int) {
	DefaultMetrics.SeriesQueryDuration.WithLabelValues(queryType).Observe(seconds)
	DefaultMetrics.SeriesBarsReturned.WithLabelValues(queryType).Observe(float64(bars))
	if bars == 0 {
		DefaultMetrics.EmptySeriesTotal.Inc()
	}
}

// RecordSnapshotRefresh records a snapshot refresh attempt.
func RecordSnapshotRefresh(status string, entries int) {
	DefaultMetrics.SnapshotRefreshes.WithLabelValues(status).Inc()
	if status == "ok" {
		DefaultMetrics.CalendarEntries.Set(float64(entries))
	}
}
