// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the gateway.
//
// # Description
//
// Metrics cover the chat relay lifecycle:
//   - Request counters (by endpoint, status)
//   - Relayed SSE bytes/events
//   - Latency histograms (time to first byte, total stream duration)
//   - Active stream gauge
//   - Errors by taxonomy code
//
// Exposed via the /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "mentora"

// Subsystem for the chat relay
const gatewaySubsystem = "gateway"

// GatewayMetrics holds all Prometheus metrics for the chat relay.
//
// # Description
//
// Counters, histograms, and gauges for the relay's request lifecycle.
// Initialize once at startup via InitMetrics().
type GatewayMetrics struct {
	// RequestsTotal counts requests by endpoint and status.
	// Labels: endpoint (chat_stream, image, conversations, ...), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// RelayedBytesTotal counts SSE bytes relayed to clients.
	// Labels: endpoint
	RelayedBytesTotal *prometheus.CounterVec

	// TimeToFirstByteSeconds measures latency until the first upstream byte.
	// Labels: endpoint
	TimeToFirstByteSeconds *prometheus.HistogramVec

	// StreamDurationSeconds measures total relay duration.
	// Labels: endpoint, status
	StreamDurationSeconds *prometheus.HistogramVec

	// ActiveStreams tracks currently open relay connections.
	// Labels: endpoint
	ActiveStreams *prometheus.GaugeVec

	// ErrorsTotal counts errors by taxonomy code.
	// Labels: endpoint, error_code (rate_limit, quota, upstream, validation, ...)
	ErrorsTotal *prometheus.CounterVec

	// ClientDisconnectsTotal counts callers that dropped mid-stream.
	// Labels: endpoint
	ClientDisconnectsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of GatewayMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *GatewayMetrics

// InitMetrics creates and registers all Prometheus metrics. Call once at
// startup; a second call panics on duplicate registration.
func InitMetrics() *GatewayMetrics {
	DefaultMetrics = &GatewayMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "requests_total",
				Help:      "Total requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		RelayedBytesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "relayed_bytes_total",
				Help:      "Total SSE bytes relayed to clients",
			},
			[]string{"endpoint"},
		),

		TimeToFirstByteSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "time_to_first_byte_seconds",
				Help:      "Time from request to first upstream byte in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"endpoint"},
		),

		StreamDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total relay duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"endpoint", "status"},
		),

		ActiveStreams: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "active_streams",
				Help:      "Number of currently open relay connections",
			},
			[]string{"endpoint"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "errors_total",
				Help:      "Total errors by taxonomy code and endpoint",
			},
			[]string{"endpoint", "error_code"},
		),

		ClientDisconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "client_disconnects_total",
				Help:      "Total callers that dropped mid-stream",
			},
			[]string{"endpoint"},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode is a categorized error type for metrics labels.
type ErrorCode string

const (
	// ErrorCodeRateLimit indicates upstream throttling (429).
	ErrorCodeRateLimit ErrorCode = "rate_limit"

	// ErrorCodeQuota indicates upstream quota exhaustion (402).
	ErrorCodeQuota ErrorCode = "quota"

	// ErrorCodeUpstream indicates any other upstream failure.
	ErrorCodeUpstream ErrorCode = "upstream"

	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeStore indicates a persistence failure.
	ErrorCodeStore ErrorCode = "store"

	// ErrorCodeInternal indicates an internal server error.
	ErrorCodeInternal ErrorCode = "internal"
)

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint labels a handler for metrics.
type Endpoint string

const (
	// EndpointChatStream is the streaming chat relay.
	EndpointChatStream Endpoint = "chat_stream"

	// EndpointImage is the image-generation branch.
	EndpointImage Endpoint = "image"

	// EndpointConversations covers the conversation CRUD surface.
	EndpointConversations Endpoint = "conversations"

	// EndpointPreferences covers the preference endpoints.
	EndpointPreferences Endpoint = "preferences"

	// EndpointAnalytics covers the analytics endpoints.
	EndpointAnalytics Endpoint = "analytics"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed request.
func (m *GatewayMetrics) RecordRequest(endpoint Endpoint, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordError records an error by taxonomy code.
func (m *GatewayMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// RecordRelayedBytes adds to the relayed byte counter.
func (m *GatewayMetrics) RecordRelayedBytes(endpoint Endpoint, n int) {
	m.RelayedBytesTotal.WithLabelValues(string(endpoint)).Add(float64(n))
}

// StreamStarted increments the active streams gauge.
func (m *GatewayMetrics) StreamStarted(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

// StreamEnded decrements the active streams gauge.
func (m *GatewayMetrics) StreamEnded(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
}

// RecordTimeToFirstByte records latency to the first upstream byte.
func (m *GatewayMetrics) RecordTimeToFirstByte(endpoint Endpoint, seconds float64) {
	m.TimeToFirstByteSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordStreamDuration records the total relay duration.
func (m *GatewayMetrics) RecordStreamDuration(endpoint Endpoint, seconds float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.StreamDurationSeconds.WithLabelValues(string(endpoint), status).Observe(seconds)
}

// RecordClientDisconnect increments the client disconnect counter.
func (m *GatewayMetrics) RecordClientDisconnect(endpoint Endpoint) {
	m.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
}
