package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("test_paperfeed_new")

	assert.NotNil(t, m.UpstreamRequestsTotal)
	assert.NotNil(t, m.UpstreamRequestsFailed)
	assert.NotNil(t, m.UpstreamRequestDuration)
	assert.NotNil(t, m.UpstreamRateLimited)
	assert.NotNil(t, m.CacheHits)
	assert.NotNil(t, m.CacheMisses)
	assert.NotNil(t, m.SingleflightCoalesced)
	assert.NotNil(t, m.SearchesTotal)
	assert.NotNil(t, m.QueryParseTotal)
	assert.NotNil(t, m.FollowFanoutConcurrency)
	assert.NotNil(t, m.FollowsTotal)
	assert.NotNil(t, m.RecommendationsServed)
	assert.NotNil(t, m.FeedbackRecorded)
	assert.NotNil(t, m.HTTPRequestsTotal)
}

func TestRecordUpstreamRequest(t *testing.T) {
	m := NewMetrics("test_upstream_request")

	m.RecordUpstreamRequest("search_works", 0.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRequestsTotal.WithLabelValues("search_works")))

	histCount, err := getHistogramSampleCount(m.UpstreamRequestDuration.WithLabelValues("search_works"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histCount)
}

func TestRecordUpstreamRequestFailed(t *testing.T) {
	m := NewMetrics("test_upstream_request_failed")

	m.RecordUpstreamRequestFailed("fetch_work_by_id", "timeout")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.UpstreamRequestsFailed.WithLabelValues("fetch_work_by_id", "timeout")))
}

func TestRecordUpstreamRateLimited(t *testing.T) {
	m := NewMetrics("test_upstream_rate_limited")

	initial := testutil.ToFloat64(m.UpstreamRateLimited)
	m.RecordUpstreamRateLimited()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.UpstreamRateLimited))
}

func TestRecordCacheHitAndMiss(t *testing.T) {
	m := NewMetrics("test_cache_hit_miss")

	m.RecordCacheHit("memory")
	m.RecordCacheMiss("store")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits.WithLabelValues("memory")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMisses.WithLabelValues("store")))
}

func TestRecordCacheStaleServed(t *testing.T) {
	m := NewMetrics("test_cache_stale_served")

	initial := testutil.ToFloat64(m.CacheStaleServed)
	m.RecordCacheStaleServed()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.CacheStaleServed))
}

func TestRecordSingleflightCoalesced(t *testing.T) {
	m := NewMetrics("test_singleflight_coalesced")

	initial := testutil.ToFloat64(m.SingleflightCoalesced)
	m.RecordSingleflightCoalesced()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.SingleflightCoalesced))
}

func TestRecordSearch(t *testing.T) {
	m := NewMetrics("test_search")

	initial := testutil.ToFloat64(m.SearchesTotal)
	m.RecordSearch(0.25)
	assert.Equal(t, initial+1, testutil.ToFloat64(m.SearchesTotal))

	histCount, err := getHistogramSampleCount(m.SearchDuration)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histCount)
}

func TestRecordQueryParse(t *testing.T) {
	m := NewMetrics("test_query_parse")

	m.RecordQueryParse("llm")
	m.RecordQueryParseFallback()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueryParseTotal.WithLabelValues("llm")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueryParseFallback))
}

func TestRecordFollowFanout(t *testing.T) {
	m := NewMetrics("test_follow_fanout")

	m.RecordFollowFanout(12, true)
	initial := testutil.ToFloat64(m.FollowFanoutPartialFailures)
	assert.Equal(t, float64(1), initial)

	histCount, err := getHistogramSampleCount(m.FollowFanoutConcurrency)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histCount)
}

func TestSetFollowsTotal(t *testing.T) {
	m := NewMetrics("test_follows_total")

	m.SetFollowsTotal("author", 7)
	assert.Equal(t, float64(7), testutil.ToFloat64(m.FollowsTotal.WithLabelValues("author")))
}

func TestRecordRecommendationServed(t *testing.T) {
	m := NewMetrics("test_recommendation_served")

	m.RecordRecommendationServed(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecommendationsServed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RecommendationColdStarts))
}

func TestRecordFeedback(t *testing.T) {
	m := NewMetrics("test_feedback")

	m.RecordFeedback("liked")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FeedbackRecorded.WithLabelValues("liked")))
}

func TestRecordHTTPRequest(t *testing.T) {
	m := NewMetrics("test_http_request")

	m.RecordHTTPRequest("/api/search", "2xx", 0.1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/api/search", "2xx")))
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Observer) (uint64, error) {
	collector, ok := h.(prometheus.Histogram)
	if !ok {
		return 0, nil
	}

	ch := make(chan prometheus.Metric, 1)
	collector.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var metric = &dto.Metric{}
	if err := m.Write(metric); err != nil {
		return 0, err
	}

	return metric.Histogram.GetSampleCount(), nil
}
