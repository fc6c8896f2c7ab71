// Package observability bundles the operational concerns of the service:
// structured JSON logging (slog), Prometheus metrics, dependency health
// probes, and graceful shutdown coordination.
package observability
