package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper discovery service.
// Metrics are organized by subsystem: upstream OpenAlex calls, the two-tier
// cache, the search/following/recommendation feeds, and query parsing. All
// counters and histograms are registered via promauto for automatic
// registration with the default Prometheus registry.
type Metrics struct {
	// UpstreamRequestsTotal counts requests to OpenAlex, labeled by operation.
	UpstreamRequestsTotal *prometheus.CounterVec

	// UpstreamRequestsFailed counts failed OpenAlex requests, labeled by operation and error type.
	UpstreamRequestsFailed *prometheus.CounterVec

	// UpstreamRequestDuration observes OpenAlex request duration in seconds, labeled by operation.
	UpstreamRequestDuration *prometheus.HistogramVec

	// UpstreamRateLimited counts 429 responses from OpenAlex.
	UpstreamRateLimited prometheus.Counter

	// CacheHits counts cache hits, labeled by tier ("memory" or "store").
	CacheHits *prometheus.CounterVec

	// CacheMisses counts cache misses, labeled by tier.
	CacheMisses *prometheus.CounterVec

	// CacheStaleServed counts responses served from a stale cache entry
	// because the refresh against OpenAlex failed or timed out.
	CacheStaleServed prometheus.Counter

	// SingleflightCoalesced counts duplicate concurrent searches collapsed
	// into a single upstream call.
	SingleflightCoalesced prometheus.Counter

	// SearchesTotal counts search feed requests.
	SearchesTotal prometheus.Counter

	// SearchDuration observes search feed request duration in seconds.
	SearchDuration prometheus.Histogram

	// QueryParseTotal counts natural-language query parses, labeled by
	// strategy ("llm" or "rule_based").
	QueryParseTotal *prometheus.CounterVec

	// QueryParseFallback counts LLM parse attempts that fell back to the
	// rule-based parser.
	QueryParseFallback prometheus.Counter

	// FollowFanoutConcurrency observes how many entities were queried in
	// parallel for a single following-feed request.
	FollowFanoutConcurrency prometheus.Histogram

	// FollowFanoutPartialFailures counts following-feed requests where at
	// least one followed entity's upstream call failed.
	FollowFanoutPartialFailures prometheus.Counter

	// FollowsTotal tracks the current number of active follows, labeled by entity type.
	FollowsTotal *prometheus.GaugeVec

	// RecommendationsServed counts "for you" feed requests.
	RecommendationsServed prometheus.Counter

	// RecommendationColdStarts counts "for you" feed requests served to a
	// user with no feedback history yet.
	RecommendationColdStarts prometheus.Counter

	// FeedbackRecorded counts feedback writes, labeled by action.
	FeedbackRecorded *prometheus.CounterVec

	// HTTPRequestsTotal counts inbound HTTP requests, labeled by route and status class.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration observes inbound HTTP request duration in seconds, labeled by route.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Upstream OpenAlex
		UpstreamRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of requests to the OpenAlex API by operation",
		}, []string{"operation"}),
		UpstreamRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_failed_total",
			Help:      "Total number of failed requests to the OpenAlex API by operation and error type",
		}, []string{"operation", "error_type"}),
		UpstreamRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of requests to the OpenAlex API in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"operation"}),
		UpstreamRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_rate_limited_total",
			Help:      "Total number of 429 responses received from the OpenAlex API",
		}),

		// Cache
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits by tier",
		}, []string{"tier"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses by tier",
		}, []string{"tier"}),
		CacheStaleServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_stale_served_total",
			Help:      "Total number of responses served from a stale cache entry after a failed refresh",
		}),
		SingleflightCoalesced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_coalesced_total",
			Help:      "Total number of duplicate concurrent searches coalesced into one upstream call",
		}),

		// Search feed
		SearchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of search feed requests",
		}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of search feed requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		// Query parser
		QueryParseTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_parse_total",
			Help:      "Total number of natural-language query parses by strategy",
		}, []string{"strategy"}),
		QueryParseFallback: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_parse_fallback_total",
			Help:      "Total number of LLM query parses that fell back to the rule-based parser",
		}),

		// Following feed
		FollowFanoutConcurrency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "follow_fanout_concurrency",
			Help:      "Number of followed entities queried in parallel per following-feed request",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}),
		FollowFanoutPartialFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "follow_fanout_partial_failures_total",
			Help:      "Total number of following-feed requests with at least one failed entity call",
		}),
		FollowsTotal: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "follows_total",
			Help:      "Current number of active follows by entity type",
		}, []string{"entity_type"}),

		// Recommendation feed
		RecommendationsServed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_served_total",
			Help:      "Total number of \"for you\" feed requests served",
		}),
		RecommendationColdStarts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_cold_starts_total",
			Help:      "Total number of \"for you\" feed requests served to a user with no feedback history",
		}),

		// Feedback
		FeedbackRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_recorded_total",
			Help:      "Total number of feedback writes by action",
		}, []string{"action"}),

		// HTTP
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of inbound HTTP requests by route and status class",
		}, []string{"route", "status_class"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of inbound HTTP requests in seconds by route",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
	}
}

// RecordUpstreamRequest records a completed call to OpenAlex.
func (m *Metrics) RecordUpstreamRequest(operation string, durationSeconds float64) {
	m.UpstreamRequestsTotal.WithLabelValues(operation).Inc()
	m.UpstreamRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordUpstreamRequestFailed records a failed call to OpenAlex.
func (m *Metrics) RecordUpstreamRequestFailed(operation, errorType string) {
	m.UpstreamRequestsFailed.WithLabelValues(operation, errorType).Inc()
}

// RecordUpstreamRateLimited records a 429 response from OpenAlex.
func (m *Metrics) RecordUpstreamRateLimited() {
	m.UpstreamRateLimited.Inc()
}

// RecordCacheHit records a cache hit at the given tier.
func (m *Metrics) RecordCacheHit(tier string) {
	m.CacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a cache miss at the given tier.
func (m *Metrics) RecordCacheMiss(tier string) {
	m.CacheMisses.WithLabelValues(tier).Inc()
}

// RecordCacheStaleServed records that a stale cache entry was served after a
// failed upstream refresh.
func (m *Metrics) RecordCacheStaleServed() {
	m.CacheStaleServed.Inc()
}

// RecordSingleflightCoalesced records a duplicate search collapsed into an
// in-flight upstream call.
func (m *Metrics) RecordSingleflightCoalesced() {
	m.SingleflightCoalesced.Inc()
}

// RecordSearch records a completed search feed request.
func (m *Metrics) RecordSearch(durationSeconds float64) {
	m.SearchesTotal.Inc()
	m.SearchDuration.Observe(durationSeconds)
}

// RecordQueryParse records a completed query parse by strategy.
func (m *Metrics) RecordQueryParse(strategy string) {
	m.QueryParseTotal.WithLabelValues(strategy).Inc()
}

// RecordQueryParseFallback records an LLM parse falling back to rule-based parsing.
func (m *Metrics) RecordQueryParseFallback() {
	m.QueryParseFallback.Inc()
}

// RecordFollowFanout records the fan-out width and outcome of a following-feed request.
func (m *Metrics) RecordFollowFanout(entityCount int, hadPartialFailure bool) {
	m.FollowFanoutConcurrency.Observe(float64(entityCount))
	if hadPartialFailure {
		m.FollowFanoutPartialFailures.Inc()
	}
}

// SetFollowsTotal sets the current count of active follows for an entity type.
func (m *Metrics) SetFollowsTotal(entityType string, count int) {
	m.FollowsTotal.WithLabelValues(entityType).Set(float64(count))
}

// RecordRecommendationServed records a "for you" feed request, noting whether
// it was a cold start.
func (m *Metrics) RecordRecommendationServed(coldStart bool) {
	m.RecommendationsServed.Inc()
	if coldStart {
		m.RecommendationColdStarts.Inc()
	}
}

// RecordFeedback records a feedback write by action.
func (m *Metrics) RecordFeedback(action string) {
	m.FeedbackRecorded.WithLabelValues(action).Inc()
}

// RecordHTTPRequest records a completed inbound HTTP request.
func (m *Metrics) RecordHTTPRequest(route, statusClass string, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(route, statusClass).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(durationSeconds)
}
