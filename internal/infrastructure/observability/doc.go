// Package observability wires Prometheus metrics and OpenTelemetry tracing
// into the gateway and the routing service.
//
// The Collector owns a private Prometheus registry exposed on /metrics. It
// also implements the string-keyed MetricsRecorder contracts used by the
// cache, history and orchestrator packages, so those packages stay free of
// any Prometheus import.
//
// HTTP middleware:
//
//	router.Use(observability.TracingMiddleware("commuteos-gateway"))
//	router.Use(observability.MetricsMiddleware(collector))
//
// Both resolve the matched route pattern from chi or gorilla/mux so label
// cardinality stays bounded.
package observability
