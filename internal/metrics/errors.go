package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trendrelay/trendrelay/internal/observability"
)

// Error metric names
const (
	RelayErrorResponsesTotal = "relay_error_responses_total"
	RelayPanicsTotal         = "relay_panics_total"
	RelayRouteErrorsTotal    = "relay_route_errors_total"
)

// UnmatchedRoute labels requests that matched no registered route.
const UnmatchedRoute = "unmatched"

// RouteLabel returns the chi route pattern for r, so labels stay bounded
// even when clients probe arbitrary paths.
func RouteLabel(r *http.Request) string {
	if r == nil {
		return UnmatchedRoute
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return UnmatchedRoute
}

// RecordErrorResponse counts an error envelope written to a client.
func RecordErrorResponse(errorCode string, httpStatus int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(RelayErrorResponsesTotal, 1, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordPanic counts a recovered panic on route.
func RecordPanic(route string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(RelayPanicsTotal, 1, map[string]string{
		"route": route,
	})
}

// RecordRouteError counts an error envelope by route pattern.
func RecordRouteError(route string, errorCode string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(RelayRouteErrorsTotal, 1, map[string]string{
		"route":      route,
		"error_code": errorCode,
	})
}
