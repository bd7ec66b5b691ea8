package metrics

import (
	"time"

	"github.com/trendrelay/trendrelay/internal/observability"
)

// Relay outcomes reported on RelayMessagesTotal.
const (
	OutcomeDelivered = "delivered"
	OutcomeThrottled = "throttled"
	OutcomeFailed    = "failed"
)

// Application-level metrics following Prometheus conventions
var (
	// Relay metrics
	RelayMessagesTotal       = "relay_messages_total"
	RelayUpstreamDuration    = "relay_upstream_duration_ms"
	RelayRateLimitWindowSize = "relay_rate_limit_window_calls"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
)

// RecordRelay counts a relay attempt by channel and outcome
func RecordRelay(channel string, outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RelayMessagesTotal,
			1,
			map[string]string{
				"channel": channel,
				"outcome": outcome,
			},
		)
	}
}

// RecordUpstreamDuration records how long the webhook call took
func RecordUpstreamDuration(channel string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			RelayUpstreamDuration,
			duration,
			map[string]string{
				"channel": channel,
			},
		)
	}
}

// SetRateLimitWindowCalls reports how many admissions sit in a channel's current window
func SetRateLimitWindowCalls(channel string, count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			RelayRateLimitWindowSize,
			float64(count),
			map[string]string{
				"channel": channel,
			},
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
