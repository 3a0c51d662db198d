package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wp_requests_total",
			Help: "Total number of WordPress operations executed through the router",
		},
		[]string{"site", "op", "status"},
	)

	wpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wp_request_duration_seconds",
			Help:    "Duration of WordPress operations, end to end through the router",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"site", "op"},
	)

	wpCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wp_cache_hits_total",
			Help: "Total cache hits served without an upstream call",
		},
		[]string{"site"},
	)

	wpCacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wp_cache_misses_total",
			Help: "Total cache misses, by reason",
		},
		[]string{"site", "reason"}, // reason: wpcache.Wrapper.Get records only "absent"
	)

	wpCacheRevalidatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wp_cache_revalidated_total",
			Help: "Total stale cache entries refreshed in place via a conditional GET 304",
		},
		[]string{"site"},
	)

	wpRateLimitWaitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wp_rate_limit_waits_total",
			Help: "Total token-bucket acquisitions before an upstream attempt, whether or not the acquisition waited",
		},
		[]string{"site"},
	)

	wpAuthRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wp_auth_refresh_total",
			Help: "Total auth token refresh attempts, by method and result",
		},
		[]string{"site", "method", "result"}, // result: success, failed
	)

	wpInflightSingleflight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wp_inflight_singleflight",
			Help: "Number of cache loads currently deduplicated in flight per site",
		},
		[]string{"site"},
	)
)

// RecordRequest records the outcome of one router.Execute call.
func RecordRequest(site, op, status string, durationSeconds float64) {
	wpRequestsTotal.WithLabelValues(site, op, status).Inc()
	wpRequestDuration.WithLabelValues(site, op).Observe(durationSeconds)
}

// RecordCacheHit records a cache hit for a site.
func RecordCacheHit(site string) {
	wpCacheHitsTotal.WithLabelValues(site).Inc()
}

// RecordCacheMiss records a cache miss for a site, tagged with why it missed.
func RecordCacheMiss(site, reason string) {
	wpCacheMissesTotal.WithLabelValues(site, reason).Inc()
}

// RecordCacheRevalidated records a stale entry refreshed in place via a 304.
func RecordCacheRevalidated(site string) {
	wpCacheRevalidatedTotal.WithLabelValues(site).Inc()
}

// RecordRateLimitWait records one token-bucket acquisition for a site; the
// Request Manager calls it after every Acquire, whether or not it waited.
func RecordRateLimitWait(site string) {
	wpRateLimitWaitsTotal.WithLabelValues(site).Inc()
}

// RecordAuthRefresh records an auth refresh attempt outcome.
func RecordAuthRefresh(site, method, result string) {
	wpAuthRefreshTotal.WithLabelValues(site, method, result).Inc()
}

// SetInflightSingleflight sets the number of in-flight deduplicated loads for a site.
func SetInflightSingleflight(site string, count float64) {
	wpInflightSingleflight.WithLabelValues(site).Set(count)
}
