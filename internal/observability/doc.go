// Package observability provides logging, metrics, and tracing support for
// the paper discovery service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for upstream calls, caching, and the feed engines
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("request_id", reqID).Msg("search started")
//
// Add request context to logger:
//
//	logger = observability.WithRequestContext(logger, requestID, userID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("paperfeed")
//
// Record metrics:
//
//	metrics.RecordUpstreamRequest("search_works", 0.3)
//	metrics.RecordCacheHit("memory")
//	metrics.RecordSearch(0.12)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithUserID(ctx, userID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	userID := observability.UserIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - user_id: Authenticated caller's user identifier
//   - query: User's search query
//   - paper_id: OpenAlex work identifier
//   - trace_id: Distributed trace identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
